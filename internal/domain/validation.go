package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the share class fields. All problems are joined into one error.
func (c *ShareClass) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CompanyID) == "" {
		errs = append(errs, invalid("company_id", "required"))
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, invalid("name", "required"))
	}
	if c.VotesPerShare < 0 {
		errs = append(errs, invalid("votes_per_share", "must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate checks the stakeholder fields.
func (s *Stakeholder) Validate() error {
	var errs []error
	if strings.TrimSpace(s.CompanyID) == "" {
		errs = append(errs, invalid("company_id", "required"))
	}
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, invalid("name", "required"))
	}
	if !s.Type.IsValid() {
		errs = append(errs, invalid("type", fmt.Sprintf("unknown stakeholder type %q", s.Type)))
	}
	return errors.Join(errs...)
}

// Validate checks the event and each of its allocations.
func (e *EquityEvent) Validate() error {
	var errs []error
	if strings.TrimSpace(e.CompanyID) == "" {
		errs = append(errs, invalid("company_id", "required"))
	}
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, invalid("name", "required"))
	}
	if !e.Type.IsValid() {
		errs = append(errs, invalid("event_type", fmt.Sprintf("unknown event type %q", e.Type)))
	}
	if e.TotalSharesAfter != nil && *e.TotalSharesAfter < 0 {
		errs = append(errs, invalid("total_shares_after", "must not be negative"))
	}
	if e.PreMoneyValuation != nil && e.PreMoneyValuation.IsNegative() {
		errs = append(errs, invalid("pre_money_valuation", "must not be negative"))
	}
	if e.AmountRaised != nil && e.AmountRaised.IsNegative() {
		errs = append(errs, invalid("amount_raised", "must not be negative"))
	}
	for i := range e.Allocations {
		if err := e.Allocations[i].validate(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Allocation) validate(idx int) error {
	field := func(name string) string { return fmt.Sprintf("allocations[%d].%s", idx, name) }

	var errs []error
	if strings.TrimSpace(a.StakeholderID) == "" {
		errs = append(errs, invalid(field("stakeholder_id"), "required"))
	}
	if strings.TrimSpace(a.ShareClassID) == "" {
		errs = append(errs, invalid(field("share_class_id"), "required"))
	}
	if a.Shares < 0 {
		errs = append(errs, invalid(field("shares"), "must not be negative"))
	}
	if a.AmountInvested != nil && a.AmountInvested.IsNegative() {
		errs = append(errs, invalid(field("amount_invested"), "must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate checks the pool fields.
func (p *VsopPool) Validate() error {
	var errs []error
	if strings.TrimSpace(p.CompanyID) == "" {
		errs = append(errs, invalid("company_id", "required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, invalid("name", "required"))
	}
	if p.TotalShares < 0 {
		errs = append(errs, invalid("total_shares", "must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate checks the grant fields. Capacity against the pool is not checked here.
func (g *VsopGrant) Validate() error {
	var errs []error
	if strings.TrimSpace(g.PoolID) == "" {
		errs = append(errs, invalid("pool_id", "required"))
	}
	if strings.TrimSpace(g.StakeholderID) == "" {
		errs = append(errs, invalid("stakeholder_id", "required"))
	}
	if g.SharesGranted < 0 {
		errs = append(errs, invalid("shares_granted", "must not be negative"))
	}
	if g.CliffMonths < 0 {
		errs = append(errs, invalid("cliff_months", "must not be negative"))
	}
	if g.VestingMonths < 0 {
		errs = append(errs, invalid("vesting_months", "must not be negative"))
	}
	if g.StrikePrice != nil && g.StrikePrice.IsNegative() {
		errs = append(errs, invalid("strike_price", "must not be negative"))
	}
	if !g.Status.IsValid() {
		errs = append(errs, invalid("status", fmt.Sprintf("unknown grant status %q", g.Status)))
	}
	return errors.Join(errs...)
}
