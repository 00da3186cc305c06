package captable

import (
	"sort"

	"github.com/shopspring/decimal"

	"equity-ledger/internal/domain"
)

// holding is one stakeholder's running position.
type holding struct {
	stakeholder domain.Stakeholder
	byClass     map[string]int64
	total       int64
	invested    decimal.Decimal
}

// accumulator folds allocations into cumulative per-stakeholder totals.
// Insertion order of stakeholders and classes is kept for deterministic output.
type accumulator struct {
	holders     map[string]*holding
	order       []string // stakeholder ids, first-seen
	classes     map[string]domain.ShareClass
	classOrder  []string // share class ids, first-seen
	totalShares int64
}

func newAccumulator() *accumulator {
	return &accumulator{
		holders: make(map[string]*holding),
		classes: make(map[string]domain.ShareClass),
	}
}

// apply folds every allocation of one event into the running totals.
func (a *accumulator) apply(evt *domain.EquityEvent) {
	for i := range evt.Allocations {
		alloc := &evt.Allocations[i]

		h, ok := a.holders[alloc.StakeholderID]
		if !ok {
			h = &holding{
				stakeholder: domain.Stakeholder{ID: alloc.StakeholderID},
				byClass:     make(map[string]int64),
			}
			a.holders[alloc.StakeholderID] = h
			a.order = append(a.order, alloc.StakeholderID)
		}
		if alloc.Stakeholder != nil {
			h.stakeholder = *alloc.Stakeholder
		}

		if _, seen := a.classes[alloc.ShareClassID]; !seen {
			a.classOrder = append(a.classOrder, alloc.ShareClassID)
			a.classes[alloc.ShareClassID] = domain.ShareClass{ID: alloc.ShareClassID}
		}
		if alloc.ShareClass != nil {
			a.classes[alloc.ShareClassID] = *alloc.ShareClass
		}

		h.byClass[alloc.ShareClassID] += alloc.Shares
		h.total += alloc.Shares
		a.totalShares += alloc.Shares
		if alloc.AmountInvested != nil {
			h.invested = h.invested.Add(*alloc.AmountInvested)
		}
	}
}

// snapshot materializes the current totals. The returned value shares no
// maps with the accumulator, so later applies do not mutate it.
func (a *accumulator) snapshot() domain.CapTableSnapshot {
	rows := make([]domain.CapTableRow, 0, len(a.order))
	for _, id := range a.order {
		h := a.holders[id]

		byClass := make(map[string]int64, len(h.byClass))
		for classID, shares := range h.byClass {
			byClass[classID] = shares
		}

		rows = append(rows, domain.CapTableRow{
			Stakeholder:   h.stakeholder,
			SharesByClass: byClass,
			TotalShares:   h.total,
			OwnershipPct:  domain.Percent(h.total, a.totalShares, 2),
			TotalInvested: h.invested,
		})
	}

	// Stable: equal percentages keep first-seen order
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].OwnershipPct > rows[j].OwnershipPct
	})

	return domain.CapTableSnapshot{
		Rows:         rows,
		TotalShares:  a.totalShares,
		ShareClasses: a.shareClasses(),
	}
}

// shareClasses returns the classes seen so far ordered by seniority, then first-seen.
func (a *accumulator) shareClasses() []domain.ShareClass {
	classes := make([]domain.ShareClass, 0, len(a.classOrder))
	for _, id := range a.classOrder {
		classes = append(classes, a.classes[id])
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].Seniority < classes[j].Seniority
	})
	return classes
}
