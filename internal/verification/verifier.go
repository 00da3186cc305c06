// Package verification checks an exported ownership history against a fresh
// replay of the ledger it was exported from.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/ledger"
)

// PctTolerance is the tolerance for ownership percentage comparisons.
const PctTolerance = 1e-7

// ErrNotExported is returned when the current ledger has no stored export.
var ErrNotExported = errors.New("ledger has not been exported")

// PointKey identifies one point of an evolution series.
type PointKey struct {
	EventIndex    int
	StakeholderID string
}

func (k PointKey) String() string {
	return fmt.Sprintf("%d/%s", k.EventIndex, k.StakeholderID)
}

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Key      PointKey
	Field    string
	Expected any // stored value
	Actual   any // replayed value
}

// Result is the outcome of verifying one export.
type Result struct {
	CompanyID      string
	Fingerprint    string
	StoredPoints   int
	ReplayedPoints int
	Match          bool
	Divergences    []FieldDivergence
	Missing        []PointKey // replayed but not stored
	Unexpected     []PointKey // stored but not replayed
}

// HistoryReader reads stored exports.
type HistoryReader interface {
	GetByFingerprint(ctx context.Context, companyID, fingerprint string) ([]*domain.OwnershipPoint, error)
}

// EvolutionSource replays a ledger into its evolution series.
type EvolutionSource interface {
	GetEvolution(ctx context.Context, companyID string) (*ledger.EvolutionView, error)
}

// ExportVerifier compares stored exports with replays.
type ExportVerifier struct {
	history HistoryReader
	caps    EvolutionSource
}

// NewExportVerifier creates a verifier.
func NewExportVerifier(history HistoryReader, caps EvolutionSource) *ExportVerifier {
	return &ExportVerifier{history: history, caps: caps}
}

// Verify replays the current company ledger and compares it with the export
// stored under the same fingerprint.
func (v *ExportVerifier) Verify(ctx context.Context, companyID string) (*Result, error) {
	view, err := v.caps.GetEvolution(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("replay ledger: %w", err)
	}

	stored, err := v.history.GetByFingerprint(ctx, companyID, view.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("load export: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: %s at %s", ErrNotExported, companyID, view.Fingerprint)
	}

	replayed := ledger.OwnershipPoints(companyID, view, time.Time{})
	res := CompareSeries(stored, replayed)
	res.CompanyID = companyID
	res.Fingerprint = view.Fingerprint
	return res, nil
}

// CompareSeries matches points by event index and stakeholder and compares
// every matched pair. ExportedAt is ignored.
func CompareSeries(stored, replayed []*domain.OwnershipPoint) *Result {
	res := &Result{StoredPoints: len(stored), ReplayedPoints: len(replayed)}

	byKey := make(map[PointKey]*domain.OwnershipPoint, len(stored))
	for _, p := range stored {
		byKey[keyOf(p)] = p
	}

	for _, r := range replayed {
		k := keyOf(r)
		s, ok := byKey[k]
		if !ok {
			res.Missing = append(res.Missing, k)
			continue
		}
		delete(byKey, k)
		res.Divergences = append(res.Divergences, ComparePoints(s, r)...)
	}

	for k := range byKey {
		res.Unexpected = append(res.Unexpected, k)
	}
	sort.Slice(res.Unexpected, func(i, j int) bool {
		a, b := res.Unexpected[i], res.Unexpected[j]
		if a.EventIndex != b.EventIndex {
			return a.EventIndex < b.EventIndex
		}
		return a.StakeholderID < b.StakeholderID
	})

	res.Match = len(res.Divergences) == 0 && len(res.Missing) == 0 && len(res.Unexpected) == 0
	return res
}

// ComparePoints compares two points of the same key and returns divergences.
func ComparePoints(stored, replayed *domain.OwnershipPoint) []FieldDivergence {
	k := keyOf(stored)
	var divergences []FieldDivergence
	diff := func(field string, expected, actual any) {
		divergences = append(divergences, FieldDivergence{Key: k, Field: field, Expected: expected, Actual: actual})
	}

	if stored.CompanyID != replayed.CompanyID {
		diff("CompanyID", stored.CompanyID, replayed.CompanyID)
	}
	if stored.Fingerprint != replayed.Fingerprint {
		diff("Fingerprint", stored.Fingerprint, replayed.Fingerprint)
	}
	if stored.EventID != replayed.EventID {
		diff("EventID", stored.EventID, replayed.EventID)
	}
	if !timePtrEquals(stored.EventDate, replayed.EventDate) {
		diff("EventDate", stored.EventDate, replayed.EventDate)
	}
	if stored.StakeholderName != replayed.StakeholderName {
		diff("StakeholderName", stored.StakeholderName, replayed.StakeholderName)
	}
	if stored.Shares != replayed.Shares {
		diff("Shares", stored.Shares, replayed.Shares)
	}
	if stored.TotalShares != replayed.TotalShares {
		diff("TotalShares", stored.TotalShares, replayed.TotalShares)
	}
	if math.Abs(stored.OwnershipPct-replayed.OwnershipPct) > PctTolerance {
		diff("OwnershipPct", stored.OwnershipPct, replayed.OwnershipPct)
	}
	return divergences
}

func keyOf(p *domain.OwnershipPoint) PointKey {
	return PointKey{EventIndex: p.EventIndex, StakeholderID: p.StakeholderID}
}

func timePtrEquals(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
