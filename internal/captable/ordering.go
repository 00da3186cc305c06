package captable

import (
	"sort"

	"equity-ledger/internal/domain"
)

// SortChronological returns a copy of events in replay order:
// dated events by date ASC, then undated events, with ties broken by
// ledger sequence ASC and finally event id ASC.
// The input slice is not modified.
func SortChronological(events []domain.EquityEvent) []domain.EquityEvent {
	sorted := make([]domain.EquityEvent, len(events))
	copy(sorted, events)

	sort.SliceStable(sorted, func(i, j int) bool {
		return lessChronological(&sorted[i], &sorted[j])
	})
	return sorted
}

func lessChronological(a, b *domain.EquityEvent) bool {
	switch {
	case a.Date != nil && b.Date == nil:
		return true
	case a.Date == nil && b.Date != nil:
		return false
	case a.Date != nil && b.Date != nil && !a.Date.Equal(*b.Date):
		return a.Date.Before(*b.Date)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}
