package captable

import (
	"testing"

	"github.com/shopspring/decimal"

	"equity-ledger/internal/domain"
)

func TestComputeKPIs_LastRoundWinsNotMax(t *testing.T) {
	first := event("seed", 1, domain.EventFundingRound, day(2023, 1, 1), alloc(fund, preferred, 100))
	first.PreMoneyValuation = money(5_000_000)
	first.AmountRaised = money(1_000_000)

	second := event("bridge", 2, domain.EventFundingRound, day(2024, 1, 1), alloc(angel, preferred, 10))
	second.PreMoneyValuation = money(8_000_000)
	second.AmountRaised = money(0)

	// Input order is reversed; chronological order decides
	kpis := ComputeKPIs([]domain.EquityEvent{second, first})

	if kpis.LastValuation == nil || !kpis.LastValuation.Equal(decimal.NewFromInt(8_000_000)) {
		t.Errorf("expected last valuation 8000000, got %v", kpis.LastValuation)
	}
	if kpis.PostMoneyValuation == nil || !kpis.PostMoneyValuation.Equal(decimal.NewFromInt(8_000_000)) {
		t.Errorf("expected post-money 8000000, got %v", kpis.PostMoneyValuation)
	}
	if !kpis.TotalRaised.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("expected total raised 1000000, got %s", kpis.TotalRaised)
	}
	if kpis.RoundsCount != 2 {
		t.Errorf("expected 2 rounds, got %d", kpis.RoundsCount)
	}
	if kpis.LastRoundName == nil || *kpis.LastRoundName != "bridge" {
		t.Errorf("expected last round bridge, got %v", kpis.LastRoundName)
	}
}

func TestComputeKPIs_TotalRaisedIncludesEveryEventType(t *testing.T) {
	round := event("seed", 1, domain.EventFundingRound, day(2023, 1, 1))
	round.AmountRaised = money(1_000)
	secondary := event("secondary", 2, domain.EventSecondary, day(2023, 6, 1))
	secondary.AmountRaised = money(250)

	kpis := ComputeKPIs([]domain.EquityEvent{round, secondary})

	if !kpis.TotalRaised.Equal(decimal.NewFromInt(1_250)) {
		t.Errorf("expected 1250 raised across all event types, got %s", kpis.TotalRaised)
	}
	if kpis.RoundsCount != 1 {
		t.Errorf("expected only the funding round counted, got %d", kpis.RoundsCount)
	}
}

func TestComputeKPIs_RoundWithoutValuationKeepsPrevious(t *testing.T) {
	inc := event("incorporation", 1, domain.EventIncorporation, day(2022, 1, 1))
	seed := event("seed", 2, domain.EventFundingRound, day(2023, 1, 1))
	seed.PreMoneyValuation = money(4_000_000)
	seed.AmountRaised = money(500_000)
	unpriced := event("safe", 3, domain.EventFundingRound, day(2023, 9, 1))
	unpriced.AmountRaised = money(100_000)

	kpis := ComputeKPIs([]domain.EquityEvent{inc, seed, unpriced})

	if !kpis.LastValuation.Equal(decimal.NewFromInt(4_000_000)) {
		t.Errorf("expected valuation from last priced round, got %v", kpis.LastValuation)
	}
	if !kpis.PostMoneyValuation.Equal(decimal.NewFromInt(4_500_000)) {
		t.Errorf("expected post-money 4500000, got %v", kpis.PostMoneyValuation)
	}
	if *kpis.LastRoundName != "safe" {
		t.Errorf("expected last round name safe, got %s", *kpis.LastRoundName)
	}
	if kpis.RoundsCount != 3 {
		t.Errorf("expected 3 rounds, got %d", kpis.RoundsCount)
	}
}

func TestComputeKPIs_OwnershipFields(t *testing.T) {
	kpis := ComputeKPIs(seedLedger())

	// 38.46 + 38.46
	if kpis.FounderOwnershipPct != 76.92 {
		t.Errorf("expected founder ownership 76.92, got %v", kpis.FounderOwnershipPct)
	}
	if kpis.TotalShareholders != 4 {
		t.Errorf("expected 4 shareholders, got %d", kpis.TotalShareholders)
	}
	if kpis.TotalShares != 1_300_000 {
		t.Errorf("expected 1300000 shares, got %d", kpis.TotalShares)
	}
}

func TestComputeKPIs_EmptyLedger(t *testing.T) {
	kpis := ComputeKPIs(nil)

	if kpis.LastValuation != nil || kpis.PostMoneyValuation != nil || kpis.LastRoundName != nil {
		t.Errorf("expected nil round fields, got %+v", kpis)
	}
	if !kpis.TotalRaised.IsZero() || kpis.RoundsCount != 0 || kpis.TotalShareholders != 0 {
		t.Errorf("expected zero totals, got %+v", kpis)
	}
}
