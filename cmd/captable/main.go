package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/reporting"
	chstore "equity-ledger/internal/storage/clickhouse"
	"equity-ledger/internal/storage/migrations"
	"equity-ledger/internal/verification"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "captable",
		Short:        "Cap table reports from TOML ledger files",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("ledger", "l", "", "TOML ledger file")
	root.PersistentFlags().String("config", "", "TOML config file (defaults to the environment)")
	root.PersistentFlags().String("env-file", ".env", "Optional .env file")
	root.MarkPersistentFlagRequired("ledger")

	root.AddCommand(newReportCmd())
	root.AddCommand(newEvolutionCmd())
	root.AddCommand(newVestingCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newVerifyCmd())
	return root
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write cap table and VSOP reports (markdown + CSV) to an output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output-dir")
			at, err := timeFlag(cmd, "generated-at")
			if err != nil {
				return err
			}

			l, err := openLedger(cmd, nil)
			if err != nil {
				return err
			}

			gen := reporting.NewGenerator(l.caps, l.vsop)
			if at != nil {
				gen = gen.WithClock(func() time.Time { return *at })
			}
			report, err := gen.Generate(cmd.Context(), l.company)
			if err != nil {
				return fmt.Errorf("generating report: %w", err)
			}
			paths, err := reporting.Write(outputDir, report)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Report for %s generated (ledger %s):\n", l.company, report.Fingerprint)
			for _, p := range paths {
				fmt.Fprintf(out, "  - %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output-dir", "o", "docs", "Output directory for generated files")
	cmd.Flags().String("generated-at", "", "Fixed report timestamp (ISO-8601) for reproducible output")
	return cmd
}

func newEvolutionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evolution",
		Short: "Print the ownership evolution as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd, nil)
			if err != nil {
				return err
			}
			view, err := l.caps.GetEvolution(cmd.Context(), l.company)
			if err != nil {
				return err
			}
			csv, err := reporting.RenderEvolutionCSV(view.Entries)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), csv)
			return nil
		},
	}
	return cmd
}

func newVestingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vesting",
		Short: "Print the VSOP pool vesting state",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := timeFlag(cmd, "as-of")
			if err != nil {
				return err
			}
			at := time.Now().UTC()
			if asOf != nil {
				at = *asOf
			}

			l, err := openLedger(cmd, nil)
			if err != nil {
				return err
			}
			summary, err := l.vsop.SummaryAt(cmd.Context(), l.company, at)
			if err != nil {
				return err
			}
			printVesting(cmd, summary, at)
			return nil
		},
	}
	cmd.Flags().String("as-of", "", "Evaluation date (ISO-8601, default now)")
	return cmd
}

func printVesting(cmd *cobra.Command, s domain.VsopSummary, at time.Time) {
	out := cmd.OutOrStdout()
	if s.Pool == nil {
		fmt.Fprintln(out, "No VSOP pool configured.")
		return
	}

	fmt.Fprintf(out, "%s as of %s\n", s.Pool.Name, at.Format("2006-01-02"))
	fmt.Fprintf(out, "Pool %d, granted %d, available %d, vested %d (%.1f%%), utilization %.1f%%\n\n",
		s.Pool.TotalShares, s.TotalGranted, s.TotalAvailable, s.TotalVested, s.OverallVestingPct, s.PoolUtilizationPct)

	if len(s.Grants) == 0 {
		fmt.Fprintln(out, "No grants issued.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOLDER\tGRANTED\tGRANT DATE\tSTATUS\tVESTED\tUNVESTED\tPCT\tCLIFF MET")
	for _, g := range s.Grants {
		holder := g.StakeholderID
		if g.Stakeholder != nil {
			holder = g.Stakeholder.Name
		}
		date := "-"
		if g.GrantDate != nil {
			date = g.GrantDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\t%.1f%%\t%t\n",
			holder, g.SharesGranted, date, g.Status, g.VestedShares, g.UnvestedShares, g.VestingPct, g.CliffMet)
	}
	w.Flush()
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Append the ownership evolution to ClickHouse ownership history",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectClickhouse(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			l, err := openLedger(cmd, conn)
			if err != nil {
				return err
			}
			res, err := l.caps.ExportEvolution(cmd.Context(), l.company)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d ownership points for %s (ledger %s)\n",
				res.Points, res.CompanyID, res.Fingerprint)
			return nil
		},
	}
	cmd.Flags().String("clickhouse-dsn", "", "ClickHouse connection string")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the ClickHouse export of the ledger with a fresh replay",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectClickhouse(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			l, err := openLedger(cmd, conn)
			if err != nil {
				return err
			}
			res, err := verification.NewExportVerifier(chstore.NewOwnershipHistoryStore(conn), l.caps).
				Verify(cmd.Context(), l.company)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Match {
				fmt.Fprintf(out, "Export of %s (ledger %s) matches: %d points\n", res.CompanyID, res.Fingerprint, res.StoredPoints)
				return nil
			}
			for _, d := range res.Divergences {
				fmt.Fprintf(out, "%s %s: stored %v, replayed %v\n", d.Key, d.Field, d.Expected, d.Actual)
			}
			for _, k := range res.Missing {
				fmt.Fprintf(out, "%s: missing from export\n", k)
			}
			for _, k := range res.Unexpected {
				fmt.Fprintf(out, "%s: not in replay\n", k)
			}
			return fmt.Errorf("export of %s diverges from the ledger", res.CompanyID)
		},
	}
	cmd.Flags().String("clickhouse-dsn", "", "ClickHouse connection string")
	return cmd
}

// connectClickhouse opens and migrates the ClickHouse database named by
// --clickhouse-dsn or the configuration.
func connectClickhouse(cmd *cobra.Command) (*chstore.Conn, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if dsn, _ := cmd.Flags().GetString("clickhouse-dsn"); dsn != "" {
		cfg.ClickhouseDSN = dsn
	}
	if cfg.ClickhouseDSN == "" {
		return nil, fmt.Errorf("--clickhouse-dsn is required (or set LEDGER_CLICKHOUSE_DSN)")
	}

	conn, err := migrations.RunClickhouseMigrations(cmd.Context(), cfg.ClickhouseDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to clickhouse: %w", err)
	}
	return conn, nil
}

// timeFlag parses an optional ISO-8601 flag value.
func timeFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	p := domain.ParseDate(raw)
	if p.Status != domain.DateValid {
		return nil, fmt.Errorf("--%s: unparseable date %q", name, raw)
	}
	return p.Time, nil
}
