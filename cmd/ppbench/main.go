// Package main provides the CLI entry point for ppbench, a cross-backend
// benchmark of the pessimistic proof.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/workload"
)

func main() {
	var level slog.LevelVar

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &level,
	}))

	root := newRootCmd(logger, &level)
	if err := root.Execute(); err != nil {
		logger.Error("ppbench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "ppbench",
		Short: "Cross-backend pessimistic proof benchmark",
		Long: `ppbench builds a deterministic pessimistic proof fixture, validates it
locally, and runs the same network state and batch header through each
zkVM backend, comparing latency and committed outputs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("parse --log-level: %w", err)
			}

			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	root.AddCommand(
		newRunCmd(logger),
		newFixtureCmd(logger),
		newBackendsCmd(),
	)

	return root
}

func newFixtureCmd(logger *slog.Logger) *cobra.Command {
	var (
		exits      int
		imported   int
		samplePath string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Build a fixture and write it as JSON",
		Long: `Build the initial network state, certificate and batch header for the
requested exit counts and write them as one JSON document. The file can be
fed back to "ppbench run --fixture" or to a host that reads JSON input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fx, summary, err := workload.NewGenerator(workload.Config{
				NumExits:         exits,
				NumImportedExits: imported,
				SamplePath:       samplePath,
			}).Generate()
			if err != nil {
				return fmt.Errorf("generate fixture: %w", err)
			}

			logFixture(cmd.Context(), logger, summary)

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := workload.WriteFixture(w, fx); err != nil {
				return fmt.Errorf("write fixture: %w", err)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&exits, "exits", 10, "Number of bridge exits")
	flags.IntVar(&imported, "imported-exits", 10, "Number of imported bridge exits")
	flags.StringVar(&samplePath, "sample-path", "",
		"Custom bridge exit sample file (default: built-in samples)")
	flags.StringVarP(&out, "out", "o", "", "Output file (default: stdout)")

	return cmd
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List supported backends and their I/O conventions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BACKEND\tINPUT\tOUTPUT\tELF")

			for _, s := range backend.Specs() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					s.Name, s.Input.Name(), s.Output.Name(), s.ELF)
			}

			return tw.Flush()
		},
	}
}
