package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/growcalendar/grow-calendar/internal/app"
	"github.com/growcalendar/grow-calendar/internal/catalog"
	"github.com/growcalendar/grow-calendar/internal/config"
	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
	"github.com/growcalendar/grow-calendar/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfgFile, dbPath, cfg = "", "", nil

	rootCmd := &cobra.Command{
		Use:   "growcal",
		Short: "Grow Calendar - frost alerts and crop phases for a US ZIP code",
		Long: `Grow Calendar combines the weekly weather forecast with state crop
progress statistics to tell you where each crop is in its season and
whether frost is coming.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.growcal/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default is $HOME/.growcal/growcal.db)")

	rootCmd.AddCommand(weatherCmd())
	rootCmd.AddCommand(cropsCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(zipCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(cacheCmd())

	return rootCmd
}

// openApp builds the full application. Logs go to stderr so command output
// stays clean.
func openApp(cmd *cobra.Command) (*app.App, error) {
	logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return app.New(cfg, nil, logger)
}

func weatherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weather <zip>",
		Short: "Show the weekly forecast with frost risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			weekly, err := a.Service.Weather(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printWeather(cmd.OutOrStdout(), weekly)
			return nil
		},
	}
}

func printWeather(w io.Writer, weekly *engine.WeeklyWeather) {
	fmt.Fprintf(w, "%s\n\n", weekly.Location)
	fmt.Fprintf(w, "%-20s %8s  %-30s %-8s\n", "NAME", "TEMP", "CONDITION", "FROST")
	fmt.Fprintln(w, strings.Repeat("-", 70))

	for _, p := range weekly.Periods {
		temp := "n/a"
		if p.TemperatureValue != nil {
			temp = fmt.Sprintf("%.0f°%s", *p.TemperatureValue, p.TemperatureUnit)
		}
		frost := "-"
		if p.FrostRisk {
			frost = string(p.FrostType)
		}
		fmt.Fprintf(w, "%-20s %8s  %-30s %-8s\n",
			truncate(p.Name, 20), temp, truncate(p.ShortCondition, 30), frost)
	}

	if alert := engine.FrostAlert(weekly); alert != "" {
		fmt.Fprintf(w, "\n%s\n", alert)
	}
}

func cropsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crops <zip>",
		Short: "Show the current phase of each crop reported for the ZIP code's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Service.CropProgress(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(report.Results) == 0 {
				fmt.Fprintf(out, "No crop progress reported for %s\n", report.State)
				return nil
			}

			fmt.Fprintf(out, "%-20s %-14s %s\n", "CROP", "PHASE", "EXPLANATION")
			fmt.Fprintln(out, strings.Repeat("-", 80))
			for _, p := range report.Results {
				fmt.Fprintf(out, "%-20s %-14s %s\n", truncate(p.Name, 20), p.CurrentPhase, p.PhaseExplanation)
			}
			return nil
		},
	}
}

func calendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar <zip>",
		Short: "Print the combined weather and crop calendar as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cal, err := a.Service.Calendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			// Output as JSON
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cal)
		},
	}
}

func zipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zip",
		Short: "Manage the ZIP code table",
	}

	cmd.AddCommand(zipImportCmd())
	cmd.AddCommand(zipLookupCmd())

	return cmd
}

func zipImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Import ZIP codes with coordinates and state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locs, err := store.ReadZipFile(args[0])
			if err != nil {
				return err
			}

			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			n, err := st.ImportZips(cmd.Context(), locs)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d ZIP codes\n", n)
			fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", cfg.DBPath)
			return nil
		},
	}
}

func zipLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <zip>",
		Short: "Show the stored location for a ZIP code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zip, ok := store.NormalizeZip(args[0])
			if !ok {
				return fmt.Errorf("invalid zip code %q", args[0])
			}

			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			loc, err := st.LookupZip(cmd.Context(), zip)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("zip code %s not found (run 'growcal zip import' first)", zip)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", loc.Zip, loc.Label())
			fmt.Fprintf(out, "  Latitude:  %.4f\n", loc.Latitude)
			fmt.Fprintf(out, "  Longitude: %.4f\n", loc.Longitude)
			return nil
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the crop instruction catalog",
	}

	cmd.AddCommand(catalogListCmd())
	cmd.AddCommand(catalogShowCmd())

	return cmd
}

func catalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog crops and their growing windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-14s %-10s %-10s %-18s %-18s %-18s\n",
				"ID", "PERENNIAL", "HARDY", "SOWING", "TRANSPLANTING", "HARVESTING")
			fmt.Fprintln(out, strings.Repeat("-", 92))

			for _, id := range catalog.IDs(c) {
				instr := c[id]
				fmt.Fprintf(out, "%-14s %-10s %-10s %-18s %-18s %-18s\n",
					id,
					yesNo(instr.Characteristics.Perennial),
					yesNo(instr.Characteristics.FrostTolerant),
					windowText(instr.Growing[engine.WindowSowing]),
					windowText(instr.Growing[engine.WindowTransplanting]),
					windowText(instr.Growing[engine.WindowHarvesting]),
				)
			}
			return nil
		},
	}
}

func catalogShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one catalog entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}

			id := strings.ToLower(strings.TrimSpace(args[0]))
			instr, ok := c[id]
			if !ok {
				return fmt.Errorf("crop not found: %s", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(instr)
		},
	}
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached forecasts and crop statistics",
	}

	cmd.AddCommand(cachePurgeCmd())

	return cmd
}

func cachePurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cache entries fetched before the cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			n, err := st.PurgeCache(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Purged %d cache entries\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only purge entries older than this (0 purges everything)")

	return cmd
}

func windowText(s engine.MonthSet) string {
	if s.Empty() {
		return "-"
	}
	return truncate(s.String(), 18)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
