package captable

import (
	"github.com/shopspring/decimal"

	"equity-ledger/internal/domain"
)

// ComputeKPIs walks the ledger chronologically and summarizes it.
//
// TotalRaised sums AmountRaised over every event that sets it, regardless of
// type. Round-level fields come from the last incorporation or funding_round
// event in chronological order, not the maximum; a round without a non-zero
// pre-money valuation leaves the previous valuation in place.
func ComputeKPIs(events []domain.EquityEvent) domain.CapTableKPIs {
	kpis := domain.CapTableKPIs{TotalRaised: decimal.Zero}

	for _, evt := range SortChronological(events) {
		if evt.AmountRaised != nil {
			kpis.TotalRaised = kpis.TotalRaised.Add(*evt.AmountRaised)
		}
		if !evt.Type.IsRound() {
			continue
		}

		kpis.RoundsCount++
		name := evt.Name
		kpis.LastRoundName = &name

		if evt.PreMoneyValuation != nil && !evt.PreMoneyValuation.IsZero() {
			pre := *evt.PreMoneyValuation
			post := pre
			if evt.AmountRaised != nil {
				post = pre.Add(*evt.AmountRaised)
			}
			kpis.LastValuation = &pre
			kpis.PostMoneyValuation = &post
		}
	}

	return withSnapshotKPIs(kpis, ProjectCurrent(events))
}

// withSnapshotKPIs fills the ownership-derived fields from a current snapshot.
func withSnapshotKPIs(kpis domain.CapTableKPIs, snap domain.CapTableSnapshot) domain.CapTableKPIs {
	founderPct := 0.0
	for _, row := range snap.Rows {
		if row.Stakeholder.IsFounder() {
			founderPct += row.OwnershipPct
		}
	}

	kpis.FounderOwnershipPct = domain.Round(founderPct, 2)
	kpis.TotalShareholders = len(snap.Rows)
	kpis.TotalShares = snap.TotalShares
	return kpis
}
