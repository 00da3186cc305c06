package domain

import "time"

// StakeholderType classifies a holder on the cap table.
type StakeholderType string

// Stakeholder type constants
const (
	StakeholderFounder  StakeholderType = "founder"
	StakeholderEmployee StakeholderType = "employee"
	StakeholderAngel    StakeholderType = "angel"
	StakeholderVC       StakeholderType = "vc"
	StakeholderOther    StakeholderType = "other"
)

// IsValid reports whether t is a known stakeholder type.
func (t StakeholderType) IsValid() bool {
	switch t {
	case StakeholderFounder, StakeholderEmployee, StakeholderAngel, StakeholderVC, StakeholderOther:
		return true
	}
	return false
}

// Stakeholder is a person or entity that can hold shares or option grants.
// Corresponds to the stakeholders table.
type Stakeholder struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	Name          string          `json:"name"`
	Type          StakeholderType `json:"type"`
	Email         *string         `json:"email"`
	Phone         *string         `json:"phone"`
	EntityName    *string         `json:"entity_name"`    // fund or holding vehicle
	ContactPerson *string         `json:"contact_person"` // for entity holders
	PartnerEmails *string         `json:"partner_emails"` // comma-separated
	LinkedInURL   *string         `json:"linkedin_url"`
	Notes         *string         `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IsFounder reports whether the stakeholder counts toward founder ownership.
func (s *Stakeholder) IsFounder() bool {
	return s.Type == StakeholderFounder
}
