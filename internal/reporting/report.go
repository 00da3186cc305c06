package reporting

import (
	"time"

	"equity-ledger/internal/domain"
)

// Report file names written by Generator.Write.
const (
	CapTableMarkdownFile = "CAP_TABLE.md"
	CapTableCSVFile      = "cap_table.csv"
	EvolutionCSVFile     = "evolution.csv"
	VsopMarkdownFile     = "VSOP.md"
)

// Report is everything rendered for one company at one point in time.
type Report struct {
	// Metadata
	CompanyID   string
	GeneratedAt time.Time
	Fingerprint string // ledger fingerprint the views were projected from
	Version     uint64

	CapTable  domain.CapTableSnapshot
	KPIs      domain.CapTableKPIs
	Evolution []domain.EvolutionEntry

	// Vesting is computed as of GeneratedAt.
	Vsop domain.VsopSummary
}

// formatDate renders a calendar date, empty when absent.
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
