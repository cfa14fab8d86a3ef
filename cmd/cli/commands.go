package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"heartprev/adapters/source"
	"heartprev/domain/prevalence"
	"heartprev/internal/config"
	"heartprev/internal/dashboard"
	"heartprev/internal/errors"
	"heartprev/internal/export"
	"heartprev/internal/render"
)

// cli carries the flags shared by every command
type cli struct {
	configFile string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:           "heartprev-cli",
		Short:         "Inspect and export the Scottish heart disease prevalence datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", time.Minute, "overall time limit for loading the datasets")

	rootCmd.AddCommand(
		c.newConfigCmd(),
		c.newBoardsCmd(),
		c.newThresholdsCmd(),
		c.newSummaryCmd(),
		c.newExportCmd(),
		c.newRenderCmd(),
	)
	return rootCmd
}

func (c *cli) loadConfig() (*config.Config, error) {
	return config.LoadFile(c.configFile)
}

// service builds the dashboard service the web server would use
func (c *cli) service() (*dashboard.Service, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	loader := source.NewLoader(
		source.NewDataReader(cfg.Data.FetchTimeout),
		cfg.Data.SnapshotSource,
		cfg.Data.TimeSeriesSource,
		0,
	)
	return dashboard.NewService(loader, cfg.Dashboard), nil
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

func (c *cli) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return errors.Wrap(err, "failed to encode configuration")
			}
			return enc.Close()
		},
	}
}

func (c *cli) newBoardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the health boards and factor columns of the time series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			opts, err := svc.TimeSeriesOptions(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Health boards (%d):\n", len(opts.HealthBoards))
			for _, b := range opts.HealthBoards {
				fmt.Fprintf(out, "  %s\n", b)
			}
			fmt.Fprintf(out, "Factors (%d):\n", len(opts.Factors))
			for _, f := range opts.Factors {
				fmt.Fprintf(out, "  %s\n", f)
			}
			return nil
		},
	}
}

func (c *cli) newThresholdsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Show the quantile thresholds and highlight rules of the snapshot table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			view, err := svc.MapView(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RULE\tCOLUMN\tBACKGROUND\tTEXT")
			for _, r := range view.Rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.FilterQuery(), r.Column, r.Background, r.Color)
			}
			return w.Flush()
		},
	}
}

func (c *cli) newSummaryCmd() *cobra.Command {
	var board string
	var factors []string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise factors over the years for one health board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			if board == "" {
				board = svc.Settings().DefaultHealthBoard
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			view, err := svc.TimeSeriesView(ctx, board, factors)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "%s\n", dashboard.TimeSeriesTitle(board))
			fmt.Fprintln(w, "FACTOR\tYEARS\tMIN\tMAX\tMEAN\tMEDIAN\tCHANGE")
			for _, s := range view.Summaries {
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%+.2f\n", s.Factor, s.Count, s.Min, s.Max, s.Mean, s.Median, s.Change)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&board, "board", "", "health board (default from config)")
	cmd.Flags().StringSliceVar(&factors, "factor", nil, "factor columns to summarise")
	_ = cmd.MarkFlagRequired("factor")
	return cmd
}

func (c *cli) newExportCmd() *cobra.Command {
	var out string
	var board string
	var factors []string

	cmd := &cobra.Command{
		Use:       "export snapshot|timeseries",
		Short:     "Write the snapshot table or time series rows to an Excel workbook",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"snapshot", "timeseries"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			var buf bytes.Buffer
			switch args[0] {
			case "snapshot":
				view, err := svc.MapView(ctx)
				if err != nil {
					return err
				}
				err = export.WriteSnapshot(&buf, view)
				if err != nil {
					return err
				}
			case "timeseries":
				rows, err := svc.TimeSeriesRows(ctx, board, factors...)
				if err != nil {
					return err
				}
				if err := export.WriteTimeSeries(&buf, rows, factors); err != nil {
					return err
				}
			}
			if out == "" {
				out = defaultExportName(args[0], board)
			}
			return writeOutput(cmd.OutOrStdout(), out, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&board, "board", "", "limit time series rows to one health board")
	cmd.Flags().StringSliceVar(&factors, "factor", nil, "factor columns to shade in the time series export")
	return cmd
}

func (c *cli) newRenderCmd() *cobra.Command {
	var out string
	var board string
	var factors []string

	cmd := &cobra.Command{
		Use:       "render timeseries|trendline",
		Short:     "Render the time series or trendline figure to a PNG file",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"timeseries", "trendline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			settings := svc.Settings()
			if board == "" {
				board = settings.DefaultHealthBoard
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			var buf bytes.Buffer
			switch args[0] {
			case "timeseries":
				rows, err := svc.TimeSeriesRows(ctx, board, factors...)
				if err != nil {
					return err
				}
				if err := render.LineChart(&buf, rows, prevalence.ColumnYear, factors, dashboard.TimeSeriesTitle(board)); err != nil {
					return err
				}
			case "trendline":
				x, y := settings.DefaultFactorX, settings.DefaultFactorY
				if len(factors) >= 2 {
					x, y = factors[0], factors[1]
				}
				rows, err := svc.CorrelationRows(ctx, board, x, y)
				if err != nil {
					return err
				}
				fit, err := render.TrendlineChart(&buf, rows, x, y, fmt.Sprintf("%s vs %s in %s", y, x, board))
				if err != nil {
					return err
				}
				if fit != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s (R² %.3f, n=%d)\n", fit.Equation(x, y), fit.RSquared, fit.N)
				}
			}
			if out == "" {
				out = args[0] + ".png"
			}
			return writeOutput(cmd.OutOrStdout(), out, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&board, "board", "", "health board (default from config)")
	cmd.Flags().StringSliceVar(&factors, "factor", nil, "factors to draw; the trendline takes the first two")
	return cmd
}

func defaultExportName(kind, board string) string {
	if kind == "timeseries" && board != "" {
		return "heart_prev_timeseries_" + strings.ReplaceAll(strings.ToLower(board), " ", "_") + ".xlsx"
	}
	return "heart_prev_" + kind + ".xlsx"
}

func writeOutput(log io.Writer, path string, body []byte) error {
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	fmt.Fprintf(log, "Wrote %s (%d bytes)\n", path, len(body))
	return nil
}
