package captable

import (
	"equity-ledger/internal/domain"
)

// ProjectCurrent folds every allocation of every event into the current cap table.
// The totals do not depend on ledger order; rows are replayed in chronological
// order so that first-seen tie-breaking matches ProjectEvolution.
func ProjectCurrent(events []domain.EquityEvent) domain.CapTableSnapshot {
	acc := newAccumulator()
	for _, evt := range SortChronological(events) {
		acc.apply(&evt)
	}
	return acc.snapshot()
}

// ProjectEvolution replays events chronologically and emits the cumulative
// snapshot immediately after each one. TotalShares is non-decreasing across
// the series because allocation shares are non-negative.
func ProjectEvolution(events []domain.EquityEvent) []domain.EvolutionEntry {
	sorted := SortChronological(events)
	entries := make([]domain.EvolutionEntry, 0, len(sorted))

	acc := newAccumulator()
	for i := range sorted {
		acc.apply(&sorted[i])
		entries = append(entries, domain.EvolutionEntry{
			Event:    *sorted[i].Clone(),
			Snapshot: acc.snapshot(),
		})
	}
	return entries
}

// ShareCount returns the total shares across all allocations of all events.
func ShareCount(events []domain.EquityEvent) int64 {
	var total int64
	for i := range events {
		total += events[i].TotalAllocated()
	}
	return total
}
