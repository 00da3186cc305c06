package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies the kind of equity event.
type EventType string

// Equity event types
const (
	EventIncorporation EventType = "incorporation"
	EventFundingRound  EventType = "funding_round"
	EventGrant         EventType = "grant"
	EventSecondary     EventType = "secondary"
	EventConversion    EventType = "conversion"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventIncorporation, EventFundingRound, EventGrant, EventSecondary, EventConversion:
		return true
	}
	return false
}

// IsRound reports whether the event counts as a priced round for KPI purposes.
func (t EventType) IsRound() bool {
	return t == EventFundingRound || t == EventIncorporation
}

// EquityEvent is a single immutable ledger entry. Allocations are created and
// deleted together with their event.
// Corresponds to the equity_events table.
type EquityEvent struct {
	ID                string           `json:"id"`
	CompanyID         string           `json:"company_id"`
	Name              string           `json:"name"`
	Type              EventType        `json:"event_type"`
	Date              *time.Time       `json:"date"`
	PreMoneyValuation *decimal.Decimal `json:"pre_money_valuation"`
	AmountRaised      *decimal.Decimal `json:"amount_raised"`
	PricePerShare     *decimal.Decimal `json:"price_per_share"`
	TotalSharesAfter  *int64           `json:"total_shares_after"`
	Notes             *string          `json:"notes"`
	Seq               uint64           `json:"seq"` // append order within the company ledger
	Allocations       []Allocation     `json:"allocations"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Allocation assigns part of an event's shares to one stakeholder in one share class.
// Stakeholder and ShareClass are resolved by the caller before projection.
// Corresponds to the allocations table.
type Allocation struct {
	ID             string           `json:"id"`
	EventID        string           `json:"equity_event_id"`
	StakeholderID  string           `json:"stakeholder_id"`
	ShareClassID   string           `json:"share_class_id"`
	Stakeholder    *Stakeholder     `json:"stakeholder,omitempty"`
	ShareClass     *ShareClass      `json:"share_class,omitempty"`
	Shares         int64            `json:"shares"`
	AmountInvested *decimal.Decimal `json:"amount_invested"`
	OwnershipPct   float64          `json:"ownership_pct"` // advisory; projections recompute it
	Notes          *string          `json:"notes"`
}

// Clone returns a deep copy of the event, including its allocation slice.
// Resolved stakeholder and share class pointers are shared.
func (e *EquityEvent) Clone() *EquityEvent {
	c := *e
	if e.Allocations != nil {
		c.Allocations = make([]Allocation, len(e.Allocations))
		copy(c.Allocations, e.Allocations)
	}
	return &c
}

// TotalAllocated returns the sum of shares across the event's allocations.
func (e *EquityEvent) TotalAllocated() int64 {
	var total int64
	for _, a := range e.Allocations {
		total += a.Shares
	}
	return total
}
