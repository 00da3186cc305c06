package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GrantStatus is the administrative lifecycle state of an option grant.
// It is set explicitly by the caller and never derived from elapsed time.
type GrantStatus string

// Grant status constants
const (
	GrantActive      GrantStatus = "active"
	GrantTerminated  GrantStatus = "terminated"
	GrantFullyVested GrantStatus = "fully_vested"
)

// IsValid reports whether s is a known grant status.
func (s GrantStatus) IsValid() bool {
	switch s {
	case GrantActive, GrantTerminated, GrantFullyVested:
		return true
	}
	return false
}

// Grant and pool defaults.
const (
	DefaultCliffMonths   = 12
	DefaultVestingMonths = 48
	DefaultPoolName      = "Employee VSOP Pool"
)

// VsopPool is the option pool reserved for employee grants. A company has at most one.
// Corresponds to the vsop_pools table.
type VsopPool struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Name         string    `json:"name"`
	TotalShares  int64     `json:"total_shares"`
	ShareClassID *string   `json:"share_class_id"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VsopGrant is an option grant drawn from a pool.
// Corresponds to the vsop_grants table.
type VsopGrant struct {
	ID            string           `json:"id"`
	PoolID        string           `json:"pool_id"`
	StakeholderID string           `json:"stakeholder_id"`
	Stakeholder   *Stakeholder     `json:"stakeholder,omitempty"`
	SharesGranted int64            `json:"shares_granted"`
	StrikePrice   *decimal.Decimal `json:"strike_price"`
	GrantDate     *time.Time       `json:"grant_date"`
	CliffMonths   int              `json:"cliff_months"`
	VestingMonths int              `json:"vesting_months"`
	Status        GrantStatus      `json:"status"`
	Notes         *string          `json:"notes"`
	CreatedAt     time.Time        `json:"created_at"`
}
