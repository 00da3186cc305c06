package vesting

import (
	"sort"
	"time"

	"equity-ledger/internal/domain"
)

// Summarize computes the vesting state of every grant at now and aggregates
// the pool totals. Terminated grants are listed but excluded from every total.
// TotalAvailable may be negative when the pool is over-allocated.
//
// A nil pool yields a zero summary with an empty grant list.
func Summarize(pool *domain.VsopPool, grants []domain.VsopGrant, now time.Time) domain.VsopSummary {
	summary := domain.VsopSummary{Grants: []domain.GrantView{}}
	if pool == nil {
		return summary
	}
	p := *pool
	summary.Pool = &p

	for _, g := range sortByGrantDate(grants) {
		v := ComputeVesting(&g, now)
		summary.Grants = append(summary.Grants, domain.GrantView{VsopGrant: g, Vesting: v})

		if g.Status == domain.GrantTerminated {
			continue
		}
		summary.TotalGranted += g.SharesGranted
		summary.TotalVested += v.VestedShares
		summary.TotalUnvested += v.UnvestedShares
	}

	summary.TotalAvailable = pool.TotalShares - summary.TotalGranted
	summary.PoolUtilizationPct = domain.Percent(summary.TotalGranted, pool.TotalShares, 1)
	summary.OverallVestingPct = domain.Percent(summary.TotalVested, summary.TotalGranted, 1)
	return summary
}

// Committed returns the shares held by non-terminated grants.
func Committed(grants []domain.VsopGrant) int64 {
	var total int64
	for i := range grants {
		if grants[i].Status != domain.GrantTerminated {
			total += grants[i].SharesGranted
		}
	}
	return total
}

// CheckCapacity reports whether adding extra shares to the committed grants
// stays within the pool, and the shares that would remain.
func CheckCapacity(pool *domain.VsopPool, grants []domain.VsopGrant, extra int64) (remaining int64, ok bool) {
	remaining = pool.TotalShares - Committed(grants) - extra
	return remaining, remaining >= 0
}

// sortByGrantDate orders grants by grant date ASC with undated grants last,
// keeping input order on ties.
func sortByGrantDate(grants []domain.VsopGrant) []domain.VsopGrant {
	sorted := make([]domain.VsopGrant, len(grants))
	copy(sorted, grants)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].GrantDate, sorted[j].GrantDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return sorted
}
