package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CapTableRow is one stakeholder's derived position. Never stored.
type CapTableRow struct {
	Stakeholder   Stakeholder      `json:"stakeholder"`
	SharesByClass map[string]int64 `json:"shares_by_class"` // keyed by share class id
	TotalShares   int64            `json:"total_shares"`
	OwnershipPct  float64          `json:"ownership_pct"` // 2 decimals
	TotalInvested decimal.Decimal  `json:"total_invested"`
}

// CapTableSnapshot is the ownership state after some prefix of the ledger.
type CapTableSnapshot struct {
	Rows         []CapTableRow `json:"rows"` // ownership_pct DESC, first-seen on ties
	TotalShares  int64         `json:"total_shares"`
	ShareClasses []ShareClass  `json:"share_classes"`
}

// EvolutionEntry pairs a ledger event with the snapshot immediately after it.
type EvolutionEntry struct {
	Event    EquityEvent      `json:"event"`
	Snapshot CapTableSnapshot `json:"snapshot"`
}

// CapTableKPIs summarizes the ledger.
type CapTableKPIs struct {
	LastValuation       *decimal.Decimal `json:"last_valuation"`
	PostMoneyValuation  *decimal.Decimal `json:"post_money_valuation"`
	TotalRaised         decimal.Decimal  `json:"total_raised"`
	TotalShareholders   int              `json:"total_shareholders"`
	FounderOwnershipPct float64          `json:"founder_ownership_pct"`
	TotalShares         int64            `json:"total_shares"`
	RoundsCount         int              `json:"rounds_count"`
	LastRoundName       *string          `json:"last_round_name"`
}

// Vesting is the time-derived vesting state of a grant. It is orthogonal to
// the grant's administrative Status: an active grant may read 100%.
type Vesting struct {
	VestedShares   int64   `json:"vested_shares"`
	UnvestedShares int64   `json:"unvested_shares"`
	VestingPct     float64 `json:"vesting_pct"` // 1 decimal
	CliffMet       bool    `json:"cliff_met"`
}

// GrantView is a grant with its computed vesting fields.
type GrantView struct {
	VsopGrant
	Vesting
}

// VsopSummary aggregates a pool and its grants. Terminated grants appear in
// Grants but are excluded from every total.
type VsopSummary struct {
	Pool               *VsopPool   `json:"pool"`
	Grants             []GrantView `json:"grants"`
	TotalGranted       int64       `json:"total_granted"`
	TotalAvailable     int64       `json:"total_available"` // may be negative when over-allocated
	TotalVested        int64       `json:"total_vested"`
	TotalUnvested      int64       `json:"total_unvested"`
	PoolUtilizationPct float64     `json:"pool_utilization_pct"`
	OverallVestingPct  float64     `json:"overall_vesting_pct"`
}

// OwnershipPoint is one stakeholder's position after one ledger event,
// flattened for analytical storage.
// Corresponds to the ownership_history table.
type OwnershipPoint struct {
	CompanyID       string     `json:"company_id"`
	Fingerprint     string     `json:"fingerprint"` // ledger fingerprint at export time
	EventID         string     `json:"event_id"`
	EventIndex      int        `json:"event_index"` // position in the evolution series
	EventDate       *time.Time `json:"event_date"`
	StakeholderID   string     `json:"stakeholder_id"`
	StakeholderName string     `json:"stakeholder_name"`
	Shares          int64      `json:"shares"`
	TotalShares     int64      `json:"total_shares"`
	OwnershipPct    float64    `json:"ownership_pct"`
	ExportedAt      time.Time  `json:"exported_at"`
}

// Change operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LedgerChange describes one mutation, published to change subscribers.
type LedgerChange struct {
	CompanyID string    `json:"company_id"`
	Entity    string    `json:"entity"` // share_class | stakeholder | equity_event | vsop_pool | vsop_grant
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Version   uint64    `json:"version,omitempty"` // ledger version after the change, for equity events
	At        time.Time `json:"at"`
}
