// Package vesting computes time-based vesting for option grants and
// aggregates grants into pool summaries. Everything here is pure: the
// caller supplies the evaluation instant.
package vesting

import (
	"time"

	"equity-ledger/internal/domain"
)

// MonthsElapsed counts calendar months from grant to now in UTC.
// Day of month is ignored: a grant dated the 31st counts a full month on the 1st of the next month.
func MonthsElapsed(grant, now time.Time) int {
	g, n := grant.UTC(), now.UTC()
	return (n.Year()-g.Year())*12 + int(n.Month()) - int(g.Month())
}

// ComputeVesting returns the vesting state of g at now.
//
// Terminated grants report zero vested and zero unvested shares. A fully_vested
// status is a manual override and bypasses the date math. Otherwise nothing
// vests before the cliff, everything vests once VestingMonths have elapsed, and
// in between shares accrue linearly (floored) over the whole vesting period.
func ComputeVesting(g *domain.VsopGrant, now time.Time) domain.Vesting {
	if g.Status == domain.GrantTerminated {
		return domain.Vesting{}
	}
	if g.GrantDate == nil {
		return domain.Vesting{UnvestedShares: g.SharesGranted}
	}
	if g.Status == domain.GrantFullyVested {
		return fullyVested(g.SharesGranted)
	}

	months := MonthsElapsed(*g.GrantDate, now)
	if months < g.CliffMonths {
		return domain.Vesting{UnvestedShares: g.SharesGranted}
	}
	if months >= g.VestingMonths || g.VestingMonths <= 0 {
		return fullyVested(g.SharesGranted)
	}

	vested := g.SharesGranted * int64(months) / int64(g.VestingMonths)
	return domain.Vesting{
		VestedShares:   vested,
		UnvestedShares: g.SharesGranted - vested,
		VestingPct:     domain.Percent(vested, g.SharesGranted, 1),
		CliffMet:       true,
	}
}

func fullyVested(shares int64) domain.Vesting {
	return domain.Vesting{
		VestedShares: shares,
		VestingPct:   100,
		CliffMet:     true,
	}
}
