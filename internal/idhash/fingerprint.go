// Package idhash computes deterministic identifiers from ledger content.
package idhash

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"equity-ledger/internal/domain"
)

// LedgerFingerprint computes a content hash of a company ledger.
// Formula: base58(SHA256(company_id, then one line per event in seq order and
// one line per allocation)). Resolved stakeholder and share class fields that
// appear in projections are part of the hash, so a rename changes it.
// Input order does not matter.
func LedgerFingerprint(companyID string, events []domain.EquityEvent) string {
	ordered := make([]*domain.EquityEvent, len(events))
	for i := range events {
		ordered[i] = &events[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Seq != ordered[j].Seq {
			return ordered[i].Seq < ordered[j].Seq
		}
		return ordered[i].ID < ordered[j].ID
	})

	var b strings.Builder
	b.WriteString(companyID)
	for _, e := range ordered {
		fmt.Fprintf(&b, "\nE|%s|%d|%s|%s|%s|%s|%s",
			e.ID,
			e.Seq,
			e.Type,
			e.Name,
			formatDate(e.Date),
			formatDecimal(e.PreMoneyValuation),
			formatDecimal(e.AmountRaised),
		)
		for _, a := range e.Allocations {
			fmt.Fprintf(&b, "\nA|%s|%s|%d|%s",
				a.StakeholderID,
				a.ShareClassID,
				a.Shares,
				formatDecimal(a.AmountInvested),
			)
			if a.Stakeholder != nil {
				fmt.Fprintf(&b, "|%s|%s", a.Stakeholder.Name, a.Stakeholder.Type)
			}
			if a.ShareClass != nil {
				fmt.Fprintf(&b, "|%s|%d", a.ShareClass.Name, a.ShareClass.Seniority)
			}
		}
	}

	hash := sha256.Sum256([]byte(b.String()))
	return base58.Encode(hash[:])
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// formatDecimal normalizes trailing zeros so 1.50 and 1.5 hash alike.
func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
