package domain

import "time"

// ShareClass is a category of stock with its own voting and liquidation terms.
// Corresponds to the share_classes table.
type ShareClass struct {
	ID                    string    `json:"id"`
	CompanyID             string    `json:"company_id"`
	Name                  string    `json:"name"`
	VotesPerShare         int       `json:"votes_per_share"`
	LiquidationPreference *string   `json:"liquidation_preference"` // e.g. "1x non-participating"
	Seniority             int       `json:"seniority"`              // ordering hint only, never used in math
	CreatedAt             time.Time `json:"created_at"`
}

// Share class defaults applied on creation.
const (
	DefaultVotesPerShare = 1
	DefaultSeniority     = 0
)
