// Command basel prints the partial sum of the Basel series Σ 1/i² for
// i = 1..n. With no arguments it sums 100,000,000 terms.
//
// Usage:
//
//	basel [--n N] [--format plain|json|prom] [--config config.yaml]
//	basel serve --config config.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/basel-bench/basel/internal/api"
	"github.com/basel-bench/basel/internal/compute"
	"github.com/basel-bench/basel/internal/config"
	"github.com/basel-bench/basel/internal/metrics"
	"github.com/basel-bench/basel/internal/store"
	"github.com/basel-bench/basel/pkg/series"
)

// options holds the flags shared by the root and serve commands.
type options struct {
	configPath string
	logLevel   string
	n          int
	format     string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		slog.Error("basel failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "basel",
		Short:         "Sum the Basel series 1/i^2 for i = 1..n",
		Long:          "Computes the truncated Basel series in double precision, adding terms in increasing i, and prints the result.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(stderr, opts.logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveRun(cmd, opts)
			if err != nil {
				return fmt.Errorf("invalid run configuration: %w", err)
			}
			return runOnce(cmd.Context(), stdout, cfg.Run)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to config file (defaults apply when empty)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug | info | warn | error")

	f := root.Flags()
	f.IntVar(&opts.n, "n", config.DefaultN, "number of terms to sum")
	f.StringVar(&opts.format, "format", config.DefaultFormat, "output format: plain | json | prom")

	root.AddCommand(newServeCmd(opts))
	return root
}

// setupLogging installs a JSON slog handler on w. Logs never go to stdout,
// which carries only the result.
func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// loadConfig returns the file at path, or the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

// resolveRun merges the config file with the flags that were set explicitly.
func resolveRun(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("n") {
		cfg.Run.N = opts.n
	}
	if cmd.Flags().Changed("format") {
		cfg.Run.Format = opts.format
	}
	if err := series.Validate(cfg.Run.N); err != nil {
		return nil, err
	}
	if err := config.ValidateFormat(cfg.Run.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runOnce computes one partial sum and writes it to out in run.Format.
func runOnce(ctx context.Context, out io.Writer, run config.RunConfig) error {
	slog.Info("basel: summing", "n", run.N, "format", run.Format)

	if run.Format == config.FormatPlain {
		start := time.Now()
		sum := series.Sum(run.N)
		slog.Info("basel: done", "n", run.N, "elapsed", time.Since(start))
		_, err := fmt.Fprintln(out, sum)
		return err
	}

	eng := compute.NewEngine(store.New(time.Minute), run.Tolerance)
	res, err := eng.Compute(ctx, run.N)
	if err != nil {
		return err
	}
	slog.Info("basel: done", "n", res.N, "elapsed", res.Elapsed, "converged", res.Converged)

	switch run.Format {
	case config.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(api.ToResultResponse(res))
	case config.FormatProm:
		return metrics.Write(out, metrics.Families(eng.Results(), eng.Stats()))
	}
	return fmt.Errorf("unknown format %q", run.Format)
}
