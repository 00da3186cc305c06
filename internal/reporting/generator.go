package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/ledger"
)

// CapTableSource serves the projected cap table views.
type CapTableSource interface {
	GetCapTable(ctx context.Context, companyID string) (*ledger.CapTableView, error)
	GetKPIs(ctx context.Context, companyID string) (*ledger.KPIView, error)
	GetEvolution(ctx context.Context, companyID string) (*ledger.EvolutionView, error)
}

// VsopSource serves pool summaries at a given instant.
type VsopSource interface {
	SummaryAt(ctx context.Context, companyID string, asOf time.Time) (domain.VsopSummary, error)
}

// Generator produces reports from the ledger services.
type Generator struct {
	caps CapTableSource
	vsop VsopSource
	now  func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. vsop may be nil, in which case
// reports carry an empty VSOP summary.
func NewGenerator(caps CapTableSource, vsop VsopSource) *Generator {
	return &Generator{
		caps: caps,
		vsop: vsop,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate collects every view of the company ledger into a Report.
func (g *Generator) Generate(ctx context.Context, companyID string) (*Report, error) {
	table, err := g.caps.GetCapTable(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("cap table: %w", err)
	}
	kpis, err := g.caps.GetKPIs(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("kpis: %w", err)
	}
	evolution, err := g.caps.GetEvolution(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("evolution: %w", err)
	}

	generatedAt := g.now()

	var summary domain.VsopSummary
	if g.vsop != nil {
		summary, err = g.vsop.SummaryAt(ctx, companyID, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("vsop summary: %w", err)
		}
	}

	// A mutation between reads shows up as a fingerprint mismatch.
	if kpis.Fingerprint != table.Fingerprint || evolution.Fingerprint != table.Fingerprint {
		return nil, fmt.Errorf("ledger for %s changed while generating report", companyID)
	}

	return &Report{
		CompanyID:   companyID,
		GeneratedAt: generatedAt,
		Fingerprint: table.Fingerprint,
		Version:     table.Version,
		CapTable:    table.CapTableSnapshot,
		KPIs:        kpis.CapTableKPIs,
		Evolution:   evolution.Entries,
		Vsop:        summary,
	}, nil
}

// Write renders r into dir and returns the written paths.
func Write(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	capCSV, err := RenderCapTableCSV(r.CapTable)
	if err != nil {
		return nil, fmt.Errorf("render cap table csv: %w", err)
	}
	evoCSV, err := RenderEvolutionCSV(r.Evolution)
	if err != nil {
		return nil, fmt.Errorf("render evolution csv: %w", err)
	}

	files := []struct {
		name    string
		content string
	}{
		{CapTableMarkdownFile, RenderCapTableMarkdown(r)},
		{CapTableCSVFile, capCSV},
		{EvolutionCSVFile, evoCSV},
		{VsopMarkdownFile, RenderVsopMarkdown(r)},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
