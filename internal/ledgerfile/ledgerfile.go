// Package ledgerfile reads company ledgers from TOML files and loads them
// through the ledger services. Money values are written as strings.
package ledgerfile

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/ledger"
)

// File is one company ledger. Keys are local to the file and are mapped to
// generated ids when the file is applied.
type File struct {
	Company      string        `toml:"company"`
	ShareClasses []ShareClass  `toml:"share_classes"`
	Stakeholders []Stakeholder `toml:"stakeholders"`
	Events       []Event       `toml:"events"`
	Pool         *Pool         `toml:"pool"`
	Grants       []Grant       `toml:"grants"`
}

type ShareClass struct {
	Key                   string  `toml:"key"`
	Name                  string  `toml:"name"`
	VotesPerShare         *int    `toml:"votes_per_share"`
	LiquidationPreference *string `toml:"liquidation_preference"`
	Seniority             *int    `toml:"seniority"`
}

type Stakeholder struct {
	Key        string                 `toml:"key"`
	Name       string                 `toml:"name"`
	Type       domain.StakeholderType `toml:"type"`
	Email      *string                `toml:"email"`
	EntityName *string                `toml:"entity_name"`
	Notes      *string                `toml:"notes"`
}

type Event struct {
	Name              string           `toml:"name"`
	Type              domain.EventType `toml:"type"`
	Date              string           `toml:"date"`
	PreMoneyValuation *decimal.Decimal `toml:"pre_money_valuation"`
	AmountRaised      *decimal.Decimal `toml:"amount_raised"`
	PricePerShare     *decimal.Decimal `toml:"price_per_share"`
	TotalSharesAfter  *int64           `toml:"total_shares_after"`
	Notes             *string          `toml:"notes"`
	Allocations       []Allocation     `toml:"allocations"`
}

type Allocation struct {
	Stakeholder    string           `toml:"stakeholder"`
	ShareClass     string           `toml:"share_class"`
	Shares         int64            `toml:"shares"`
	AmountInvested *decimal.Decimal `toml:"amount_invested"`
}

type Pool struct {
	Name        string  `toml:"name"`
	TotalShares int64   `toml:"total_shares"`
	ShareClass  string  `toml:"share_class"`
	Notes       *string `toml:"notes"`
}

type Grant struct {
	Stakeholder   string             `toml:"stakeholder"`
	Shares        int64              `toml:"shares"`
	StrikePrice   *decimal.Decimal   `toml:"strike_price"`
	GrantDate     string             `toml:"grant_date"`
	CliffMonths   *int               `toml:"cliff_months"`
	VestingMonths *int               `toml:"vesting_months"`
	Status        domain.GrantStatus `toml:"status"`
}

// Decode parses a ledger file from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("decode ledger file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode ledger file: unknown key %s", undecoded[0])
	}
	if f.Company == "" {
		return nil, fmt.Errorf("decode ledger file: company is required")
	}
	return &f, nil
}

// Load reads a ledger file from path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Applied maps file keys to the ids assigned while applying.
type Applied struct {
	ShareClasses map[string]string
	Stakeholders map[string]string
	Events       []*ledger.CreateEventResult
	Grants       []*domain.VsopGrant
}

// Apply writes the file through the services in file order: share classes,
// stakeholders, events, pool and grants. It stops at the first error.
func (f *File) Apply(ctx context.Context, caps *ledger.CapTable, vsop *ledger.Vsop) (*Applied, error) {
	out := &Applied{
		ShareClasses: make(map[string]string),
		Stakeholders: make(map[string]string),
	}

	for _, c := range f.ShareClasses {
		created, err := caps.CreateShareClass(ctx, f.Company, ledger.ShareClassInput{
			Name:                  c.Name,
			VotesPerShare:         c.VotesPerShare,
			LiquidationPreference: c.LiquidationPreference,
			Seniority:             c.Seniority,
		})
		if err != nil {
			return nil, fmt.Errorf("share class %q: %w", c.Key, err)
		}
		out.ShareClasses[keyOr(c.Key, c.Name)] = created.ID
	}

	for _, s := range f.Stakeholders {
		created, err := caps.CreateStakeholder(ctx, f.Company, ledger.StakeholderInput{
			Name:       s.Name,
			Type:       s.Type,
			Email:      s.Email,
			EntityName: s.EntityName,
			Notes:      s.Notes,
		})
		if err != nil {
			return nil, fmt.Errorf("stakeholder %q: %w", s.Key, err)
		}
		out.Stakeholders[keyOr(s.Key, s.Name)] = created.ID
	}

	for i, e := range f.Events {
		in := ledger.EquityEventInput{
			Name:              e.Name,
			Type:              e.Type,
			Date:              e.Date,
			PreMoneyValuation: e.PreMoneyValuation,
			AmountRaised:      e.AmountRaised,
			PricePerShare:     e.PricePerShare,
			TotalSharesAfter:  e.TotalSharesAfter,
			Notes:             e.Notes,
		}
		for j, a := range e.Allocations {
			holderID, ok := out.Stakeholders[a.Stakeholder]
			if !ok {
				return nil, fmt.Errorf("events[%d].allocations[%d]: unknown stakeholder %q", i, j, a.Stakeholder)
			}
			classID, ok := out.ShareClasses[a.ShareClass]
			if !ok {
				return nil, fmt.Errorf("events[%d].allocations[%d]: unknown share class %q", i, j, a.ShareClass)
			}
			in.Allocations = append(in.Allocations, ledger.AllocationInput{
				StakeholderID:  holderID,
				ShareClassID:   classID,
				Shares:         a.Shares,
				AmountInvested: a.AmountInvested,
			})
		}

		res, err := caps.CreateEquityEvent(ctx, f.Company, in)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", e.Name, err)
		}
		out.Events = append(out.Events, res)
	}

	if f.Pool == nil {
		if len(f.Grants) > 0 {
			return nil, fmt.Errorf("grants: %w", ledger.ErrNoPool)
		}
		return out, nil
	}

	pool := ledger.PoolInput{Name: &f.Pool.Name, TotalShares: &f.Pool.TotalShares, Notes: f.Pool.Notes}
	if f.Pool.ShareClass != "" {
		classID, ok := out.ShareClasses[f.Pool.ShareClass]
		if !ok {
			return nil, fmt.Errorf("pool: unknown share class %q", f.Pool.ShareClass)
		}
		pool.ShareClassID = &classID
	}
	if _, err := vsop.UpsertPool(ctx, f.Company, pool); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	for i, g := range f.Grants {
		holderID, ok := out.Stakeholders[g.Stakeholder]
		if !ok {
			return nil, fmt.Errorf("grants[%d]: unknown stakeholder %q", i, g.Stakeholder)
		}
		created, err := vsop.CreateGrant(ctx, f.Company, ledger.GrantInput{
			StakeholderID: holderID,
			SharesGranted: g.Shares,
			StrikePrice:   g.StrikePrice,
			GrantDate:     g.GrantDate,
			CliffMonths:   g.CliffMonths,
			VestingMonths: g.VestingMonths,
		})
		if err != nil {
			return nil, fmt.Errorf("grants[%d]: %w", i, err)
		}
		// New grants start active; other states are later transitions.
		if g.Status != "" && g.Status != domain.GrantActive {
			status := g.Status
			if created, err = vsop.UpdateGrant(ctx, f.Company, created.ID, ledger.GrantUpdate{Status: &status}); err != nil {
				return nil, fmt.Errorf("grants[%d]: status: %w", i, err)
			}
		}
		out.Grants = append(out.Grants, &created.VsopGrant)
	}
	return out, nil
}

func keyOr(key, name string) string {
	if key != "" {
		return key
	}
	return name
}
