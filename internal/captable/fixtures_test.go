package captable

import (
	"time"

	"github.com/shopspring/decimal"

	"equity-ledger/internal/domain"
)

var (
	common    = domain.ShareClass{ID: "cls-common", CompanyID: "acme", Name: "Common", VotesPerShare: 1, Seniority: 0}
	preferred = domain.ShareClass{ID: "cls-seed", CompanyID: "acme", Name: "Seed Preferred", VotesPerShare: 1, Seniority: 1}

	alice = domain.Stakeholder{ID: "sh-alice", CompanyID: "acme", Name: "Alice", Type: domain.StakeholderFounder}
	bob   = domain.Stakeholder{ID: "sh-bob", CompanyID: "acme", Name: "Bob", Type: domain.StakeholderFounder}
	fund  = domain.Stakeholder{ID: "sh-fund", CompanyID: "acme", Name: "Fund I", Type: domain.StakeholderVC}
	angel = domain.Stakeholder{ID: "sh-angel", CompanyID: "acme", Name: "Angel", Type: domain.StakeholderAngel}
)

func day(year int, month time.Month, d int) *time.Time {
	t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func money(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func alloc(sh domain.Stakeholder, cls domain.ShareClass, shares int64) domain.Allocation {
	return domain.Allocation{
		ID:            sh.ID + "-" + cls.ID,
		StakeholderID: sh.ID,
		ShareClassID:  cls.ID,
		Stakeholder:   &sh,
		ShareClass:    &cls,
		Shares:        shares,
	}
}

func invested(a domain.Allocation, amount int64) domain.Allocation {
	a.AmountInvested = money(amount)
	return a
}

func event(id string, seq uint64, typ domain.EventType, date *time.Time, allocs ...domain.Allocation) domain.EquityEvent {
	return domain.EquityEvent{
		ID:          id,
		CompanyID:   "acme",
		Name:        id,
		Type:        typ,
		Date:        date,
		Seq:         seq,
		Allocations: allocs,
	}
}

// seedLedger is incorporation, a seed round and an angel secondary.
func seedLedger() []domain.EquityEvent {
	return []domain.EquityEvent{
		event("incorporation", 1, domain.EventIncorporation, day(2022, 1, 10),
			alloc(alice, common, 500_000),
			alloc(bob, common, 500_000),
		),
		event("seed", 2, domain.EventFundingRound, day(2023, 3, 1),
			invested(alloc(fund, preferred, 250_000), 1_000_000),
		),
		event("angel-secondary", 3, domain.EventSecondary, day(2023, 6, 15),
			invested(alloc(angel, common, 50_000), 100_000),
		),
	}
}
