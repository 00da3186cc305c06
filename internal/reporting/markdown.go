package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RenderCapTableMarkdown renders the cap table, KPIs and round history as markdown.
func RenderCapTableMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Cap Table: %s\n\n", r.CompanyID))
	writeHeader(&sb, r)

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Shares | %s |\n", formatInt(r.KPIs.TotalShares)))
	sb.WriteString(fmt.Sprintf("| Shareholders | %d |\n", r.KPIs.TotalShareholders))
	sb.WriteString(fmt.Sprintf("| Founder Ownership | %.2f%% |\n", r.KPIs.FounderOwnershipPct))
	sb.WriteString(fmt.Sprintf("| Total Raised | %s |\n", r.KPIs.TotalRaised.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Rounds | %d |\n", r.KPIs.RoundsCount))
	sb.WriteString(fmt.Sprintf("| Last Round | %s |\n", optString(r.KPIs.LastRoundName)))
	sb.WriteString(fmt.Sprintf("| Last Pre-Money Valuation | %s |\n", optMoney(r.KPIs.LastValuation)))
	sb.WriteString(fmt.Sprintf("| Post-Money Valuation | %s |\n", optMoney(r.KPIs.PostMoneyValuation)))
	sb.WriteString("\n")

	// Ownership
	sb.WriteString("## Ownership\n\n")
	if len(r.CapTable.Rows) == 0 {
		sb.WriteString("No allocations recorded.\n\n")
	} else {
		classes := r.CapTable.ShareClasses
		sb.WriteString("| Stakeholder | Type |")
		for _, c := range classes {
			sb.WriteString(" " + c.Name + " |")
		}
		sb.WriteString(" Total Shares | Ownership % | Invested |\n")
		sb.WriteString("|-------------|------|")
		for range classes {
			sb.WriteString("------|")
		}
		sb.WriteString("--------------|-------------|----------|\n")

		for _, row := range r.CapTable.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %s |", escapeCell(row.Stakeholder.Name), row.Stakeholder.Type))
			for _, c := range classes {
				sb.WriteString(" " + formatInt(row.SharesByClass[c.ID]) + " |")
			}
			sb.WriteString(fmt.Sprintf(" %s | %.2f%% | %s |\n",
				formatInt(row.TotalShares), row.OwnershipPct, row.TotalInvested.StringFixed(2)))
		}
		sb.WriteString("\n")
	}

	// Ledger
	sb.WriteString("## Ledger\n\n")
	if len(r.Evolution) == 0 {
		sb.WriteString("No equity events recorded.\n")
		return sb.String()
	}
	sb.WriteString("| # | Date | Event | Type | Shares Issued | Total Shares After |\n")
	sb.WriteString("|---|------|-------|------|---------------|--------------------|\n")
	for i, entry := range r.Evolution {
		date := formatDate(entry.Event.Date)
		if date == "" {
			date = "-"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
			i+1,
			date,
			escapeCell(entry.Event.Name),
			entry.Event.Type,
			formatInt(entry.Event.TotalAllocated()),
			formatInt(entry.Snapshot.TotalShares),
		))
	}

	return sb.String()
}

// RenderVsopMarkdown renders the VSOP pool summary and its grants.
func RenderVsopMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# VSOP: %s\n\n", r.CompanyID))
	writeHeader(&sb, r)

	s := r.Vsop
	if s.Pool == nil {
		sb.WriteString("No VSOP pool configured.\n")
		return sb.String()
	}

	sb.WriteString("## Pool\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Name | %s |\n", escapeCell(s.Pool.Name)))
	sb.WriteString(fmt.Sprintf("| Pool Size | %s |\n", formatInt(s.Pool.TotalShares)))
	sb.WriteString(fmt.Sprintf("| Granted | %s |\n", formatInt(s.TotalGranted)))
	sb.WriteString(fmt.Sprintf("| Available | %s |\n", formatInt(s.TotalAvailable)))
	sb.WriteString(fmt.Sprintf("| Vested | %s |\n", formatInt(s.TotalVested)))
	sb.WriteString(fmt.Sprintf("| Unvested | %s |\n", formatInt(s.TotalUnvested)))
	sb.WriteString(fmt.Sprintf("| Utilization | %.1f%% |\n", s.PoolUtilizationPct))
	sb.WriteString(fmt.Sprintf("| Overall Vesting | %.1f%% |\n", s.OverallVestingPct))
	sb.WriteString("\n")
	if s.TotalAvailable < 0 {
		sb.WriteString(fmt.Sprintf("**Warning:** pool is over-allocated by %s shares.\n\n", formatInt(-s.TotalAvailable)))
	}

	sb.WriteString("## Grants\n\n")
	if len(s.Grants) == 0 {
		sb.WriteString("No grants issued.\n")
		return sb.String()
	}
	sb.WriteString("| Holder | Granted | Grant Date | Cliff | Vesting | Status | Vested | Unvested | Vesting % |\n")
	sb.WriteString("|--------|---------|------------|-------|---------|--------|--------|----------|-----------|\n")
	for _, g := range s.Grants {
		holder := g.StakeholderID
		if g.Stakeholder != nil {
			holder = g.Stakeholder.Name
		}
		date := formatDate(g.GrantDate)
		if date == "" {
			date = "-"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %dm | %dm | %s | %s | %s | %.1f%% |\n",
			escapeCell(holder),
			formatInt(g.SharesGranted),
			date,
			g.CliffMonths,
			g.VestingMonths,
			g.Status,
			formatInt(g.VestedShares),
			formatInt(g.UnvestedShares),
			g.VestingPct,
		))
	}

	return sb.String()
}

func writeHeader(sb *strings.Builder, r *Report) {
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Ledger: `%s` (version %d)\n\n", r.Fingerprint, r.Version))
}

// formatInt renders n with comma thousands separators.
func formatInt(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func optMoney(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

func optString(s *string) string {
	if s == nil {
		return "-"
	}
	return escapeCell(*s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
