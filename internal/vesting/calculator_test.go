package vesting

import (
	"testing"
	"time"

	"equity-ledger/internal/domain"
)

var now = time.Date(2024, 9, 15, 12, 0, 0, 0, time.UTC)

func date(year int, month time.Month, d int) *time.Time {
	t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func grant(shares int64, grantDate *time.Time, status domain.GrantStatus) domain.VsopGrant {
	return domain.VsopGrant{
		ID:            "grant-1",
		PoolID:        "pool-1",
		StakeholderID: "sh-1",
		SharesGranted: shares,
		GrantDate:     grantDate,
		CliffMonths:   domain.DefaultCliffMonths,
		VestingMonths: domain.DefaultVestingMonths,
		Status:        status,
	}
}

func TestMonthsElapsed(t *testing.T) {
	tests := []struct {
		name       string
		grant, now time.Time
		want       int
	}{
		{"same month", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 0},
		{"day of month ignored", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1},
		{"across years", time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC), 18},
		{"before grant", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), -2},
		{"evaluated in utc", time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 1, 0, 0, 0, time.FixedZone("CEST", 2*60*60)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthsElapsed(tt.grant, tt.now); got != tt.want {
				t.Errorf("expected %d months, got %d", tt.want, got)
			}
		})
	}
}

func TestComputeVesting(t *testing.T) {
	tests := []struct {
		name  string
		grant domain.VsopGrant
		want  domain.Vesting
	}{
		{
			name:  "linear after cliff",
			grant: grant(4800, date(2023, 3, 15), domain.GrantActive),
			want:  domain.Vesting{VestedShares: 1800, UnvestedShares: 3000, VestingPct: 37.5, CliffMet: true},
		},
		{
			name:  "before cliff",
			grant: grant(4800, date(2024, 3, 15), domain.GrantActive),
			want:  domain.Vesting{VestedShares: 0, UnvestedShares: 4800, VestingPct: 0, CliffMet: false},
		},
		{
			name:  "exactly at cliff",
			grant: grant(4800, date(2023, 9, 15), domain.GrantActive),
			want:  domain.Vesting{VestedShares: 1200, UnvestedShares: 3600, VestingPct: 25, CliffMet: true},
		},
		{
			name:  "past full vesting",
			grant: grant(4800, date(2019, 1, 1), domain.GrantActive),
			want:  domain.Vesting{VestedShares: 4800, UnvestedShares: 0, VestingPct: 100, CliffMet: true},
		},
		{
			name:  "terminated ignores dates",
			grant: grant(4800, date(2019, 1, 1), domain.GrantTerminated),
			want:  domain.Vesting{},
		},
		{
			name:  "terminated without date",
			grant: grant(4800, nil, domain.GrantTerminated),
			want:  domain.Vesting{},
		},
		{
			name:  "no grant date",
			grant: grant(4800, nil, domain.GrantActive),
			want:  domain.Vesting{UnvestedShares: 4800},
		},
		{
			name:  "no grant date beats fully vested override",
			grant: grant(4800, nil, domain.GrantFullyVested),
			want:  domain.Vesting{UnvestedShares: 4800},
		},
		{
			name:  "fully vested override before cliff",
			grant: grant(4800, date(2024, 9, 1), domain.GrantFullyVested),
			want:  domain.Vesting{VestedShares: 4800, UnvestedShares: 0, VestingPct: 100, CliffMet: true},
		},
		{
			name:  "floor on uneven accrual",
			grant: grant(1000, date(2023, 2, 1), domain.GrantActive),
			// 19 months: 1000*19/48 = 395.83
			want: domain.Vesting{VestedShares: 395, UnvestedShares: 605, VestingPct: 39.5, CliffMet: true},
		},
		{
			name:  "zero shares granted",
			grant: grant(0, date(2023, 3, 15), domain.GrantActive),
			want:  domain.Vesting{VestedShares: 0, UnvestedShares: 0, VestingPct: 0, CliffMet: true},
		},
		{
			name:  "grant dated in the future",
			grant: grant(4800, date(2025, 1, 1), domain.GrantActive),
			want:  domain.Vesting{UnvestedShares: 4800},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeVesting(&tt.grant, now)
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestComputeVesting_NoCliffNoPeriod(t *testing.T) {
	g := grant(500, date(2024, 9, 1), domain.GrantActive)
	g.CliffMonths = 0
	g.VestingMonths = 0

	got := ComputeVesting(&g, now)
	if got.VestedShares != 500 || !got.CliffMet {
		t.Errorf("expected immediate full vesting, got %+v", got)
	}
}

func TestComputeVesting_Conservation(t *testing.T) {
	g := grant(7331, date(2021, 6, 20), domain.GrantActive)
	at := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 72; i++ {
		v := ComputeVesting(&g, at)
		if v.VestedShares+v.UnvestedShares != g.SharesGranted {
			t.Fatalf("month %d: vested %d + unvested %d != granted %d", i, v.VestedShares, v.UnvestedShares, g.SharesGranted)
		}
		at = at.AddDate(0, 1, 0)
	}
}

func TestComputeVesting_Monotonic(t *testing.T) {
	g := grant(4800, date(2022, 1, 31), domain.GrantActive)
	at := time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC)

	prev := ComputeVesting(&g, at)
	for i := 0; i < 400; i++ {
		at = at.Add(5 * 24 * time.Hour)
		cur := ComputeVesting(&g, at)
		if cur.VestingPct < prev.VestingPct || cur.VestedShares < prev.VestedShares {
			t.Fatalf("vesting decreased at %s: %+v -> %+v", at.Format(time.DateOnly), prev, cur)
		}
		prev = cur
	}
	if prev.VestingPct != 100 {
		t.Errorf("expected full vesting after the period, got %v", prev.VestingPct)
	}
}

func TestComputeVesting_StatusNotPromoted(t *testing.T) {
	g := grant(4800, date(2019, 1, 1), domain.GrantActive)

	v := ComputeVesting(&g, now)

	if v.VestingPct != 100 {
		t.Fatalf("expected 100%%, got %v", v.VestingPct)
	}
	if g.Status != domain.GrantActive {
		t.Errorf("expected status to stay active, got %s", g.Status)
	}
}
