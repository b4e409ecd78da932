package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/bench"
	"github.com/weiihann/ppbench/config"
	"github.com/weiihann/ppbench/harness"
	"github.com/weiihann/ppbench/metrics"
	"github.com/weiihann/ppbench/report"
	"github.com/weiihann/ppbench/workload"
)

type runConfig struct {
	exits        int
	imported     int
	proofDir     string
	samplePath   string
	fixturePath  string
	backends     []string
	mode         string
	engine       string
	host         string
	elfDir       string
	harnessesDir string
	skipBuild    bool
	parallel     int
	timeout      time.Duration
	outputJSON   bool
	metricsFile  string
	configPath   string
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pessimistic proof across backends",
		Long: `Build a fixture (or load one), validate it locally, and execute or prove
it on each selected backend. Outputs are compared against the local run and
successful runs are optionally persisted under --proof-dir.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.configPath != "" {
				file, err := config.Load(cfg.configPath)
				if err != nil {
					return err
				}
				mergeConfig(cmd, &cfg, file)

				return runBenchmark(cmd.Context(), logger, cfg, file)
			}

			return runBenchmark(cmd.Context(), logger, cfg, &config.Config{})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.exits, "exits", 10, "Number of bridge exits")
	flags.IntVar(&cfg.imported, "imported-exits", 10,
		"Number of imported bridge exits")
	flags.StringVar(&cfg.proofDir, "proof-dir", "",
		"Directory for per-run result files (default: do not persist)")
	flags.StringVar(&cfg.samplePath, "sample-path", "",
		"Custom bridge exit sample file (default: built-in samples)")
	flags.StringVar(&cfg.fixturePath, "fixture", "",
		"Path to a pre-generated fixture (skip generation)")
	flags.StringSliceVar(&cfg.backends, "backends", backend.Names(),
		"Backends to run")
	flags.StringVar(&cfg.mode, "mode", string(backend.ModeExecute),
		"execute or prove")
	flags.StringVar(&cfg.engine, "engine", config.EngineReference,
		"reference (in process) or process (host binaries)")
	flags.StringVar(&cfg.host, "host", "",
		"Host used for every backend with --engine process (e.g. reference)")
	flags.StringVar(&cfg.elfDir, "elf-dir", "",
		"Directory holding the guest binaries")
	flags.StringVar(&cfg.harnessesDir, "harnesses-dir", "",
		"Path to harnesses directory (default: ./harnesses)")
	flags.BoolVar(&cfg.skipBuild, "skip-build", false,
		"Skip building host binaries")
	flags.IntVar(&cfg.parallel, "parallel", 1,
		"Number of backends run at once")
	flags.DurationVar(&cfg.timeout, "timeout", 0,
		"Per-call engine timeout (0 = wait forever)")
	flags.BoolVar(&cfg.outputJSON, "json", false,
		"Output results as JSON instead of table")
	flags.StringVar(&cfg.metricsFile, "metrics-file", "",
		"Write prometheus metrics in textfile format to this path")
	flags.StringVar(&cfg.configPath, "config", "",
		"YAML file with per-backend guest and host settings")

	return cmd
}

// mergeConfig fills every flag the user did not set from the file.
func mergeConfig(cmd *cobra.Command, cfg *runConfig, file *config.Config) {
	flags := cmd.Flags()

	setString := func(name string, dst *string, v string) {
		if v != "" && !flags.Changed(name) {
			*dst = v
		}
	}

	setString("engine", &cfg.engine, file.Engine)
	setString("mode", &cfg.mode, file.Mode)
	setString("elf-dir", &cfg.elfDir, file.ELFDir)
	setString("harnesses-dir", &cfg.harnessesDir, file.HarnessesDir)
	setString("proof-dir", &cfg.proofDir, file.ProofDir)
	setString("sample-path", &cfg.samplePath, file.SamplePath)

	if file.Parallel > 0 && !flags.Changed("parallel") {
		cfg.parallel = file.Parallel
	}
	if file.Timeout > 0 && !flags.Changed("timeout") {
		cfg.timeout = file.Timeout
	}
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
	file *config.Config,
) error {
	if len(cfg.backends) == 0 {
		return fmt.Errorf("at least one backend must be specified via --backends")
	}

	mode, err := backend.ParseMode(cfg.mode)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting benchmark",
		slog.Int("exits", cfg.exits),
		slog.Int("imported_exits", cfg.imported),
		slog.String("mode", string(mode)),
		slog.String("engine", cfg.engine),
		slog.Any("backends", cfg.backends),
	)

	// Step 1: Build the fixture (or load a pre-generated one).
	fx, err := loadFixture(ctx, logger, cfg)
	if err != nil {
		return err
	}

	// Reject a bad fixture before paying for any host build.
	if _, err := bench.Validate(fx); err != nil {
		return err
	}

	// Step 2: Resolve guest programs and engines.
	jobs, err := buildJobs(ctx, logger, cfg, file)
	if err != nil {
		return err
	}

	// Step 3: Validate locally, then run every backend.
	driver := &bench.Driver{
		Logger:   logger,
		Mode:     mode,
		Timeout:  cfg.timeout,
		Parallel: cfg.parallel,
	}

	if cfg.metricsFile != "" {
		driver.Metrics = metrics.New()
	}

	if cfg.proofDir != "" {
		driver.Store, err = bench.NewStore(cfg.proofDir)
		if err != nil {
			return err
		}
	}

	summary, err := driver.Run(ctx, fx, jobs)
	if err != nil {
		return err
	}

	if driver.Metrics != nil {
		if err := driver.Metrics.WriteFile(cfg.metricsFile); err != nil {
			return err
		}
	}

	// Step 4: Generate report.
	if cfg.outputJSON {
		if err := report.GenerateJSON(os.Stdout, summary.Results); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		if err := report.Generate(os.Stdout, summary.Results); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	if failed := summary.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d backends failed", len(failed), len(summary.Results))
	}

	logger.InfoContext(ctx, "benchmark complete",
		slog.String("certificate_id", summary.CertificateID),
	)

	return nil
}

func loadFixture(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
) (*workload.Fixture, error) {
	if cfg.fixturePath != "" {
		f, err := os.Open(cfg.fixturePath)
		if err != nil {
			return nil, fmt.Errorf("open fixture: %w", err)
		}
		defer f.Close()

		fx, err := workload.ReadFixture(f)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", cfg.fixturePath, err)
		}

		logger.InfoContext(ctx, "fixture loaded",
			slog.String("path", cfg.fixturePath),
			slog.String("certificate_id", fx.Certificate.ID()),
		)

		return fx, nil
	}

	fx, summary, err := workload.NewGenerator(workload.Config{
		NumExits:         cfg.exits,
		NumImportedExits: cfg.imported,
		SamplePath:       cfg.samplePath,
	}).Generate()
	if err != nil {
		return nil, fmt.Errorf("generate fixture: %w", err)
	}

	logFixture(ctx, logger, summary)

	return fx, nil
}

func logFixture(ctx context.Context, logger *slog.Logger, s workload.Summary) {
	logger.InfoContext(ctx, "fixture generated",
		slog.Int("exits", s.Exits),
		slog.Int("imported_exits", s.ImportedExits),
		slog.String("certificate_id", s.CertificateID),
		slog.String("header_id", s.HeaderID),
		slog.String("hash", s.Hash),
		slog.String("l1_info_root", s.L1InfoRoot.Hex()),
	)

	if s.DefaultedL1InfoRoot {
		logger.WarnContext(ctx, "certificate has no imported exits, using zero l1 info root")
	}
}

func buildJobs(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
	file *config.Config,
) ([]bench.Job, error) {
	harnessesDir := cfg.harnessesDir
	if harnessesDir == "" {
		harnessesDir = "harnesses"
	}

	harnessesDir, err := filepath.Abs(harnessesDir)
	if err != nil {
		return nil, fmt.Errorf("resolve harnesses dir: %w", err)
	}

	reference := backend.NewReferenceEngine()
	built := make(map[string]string)
	jobs := make([]bench.Job, 0, len(cfg.backends))

	for _, name := range cfg.backends {
		spec, err := backend.Lookup(name)
		if err != nil {
			return nil, err
		}

		elfPath, err := file.ELFPath(name, cfg.elfDir)
		if err != nil {
			return nil, err
		}

		var prog *backend.Program
		switch {
		case elfPath != "":
			prog, err = backend.LoadProgram(name, elfPath)
			if err != nil {
				return nil, err
			}
		case cfg.engine == config.EngineReference:
			// The in-process guest needs no binary; give it a stable identity.
			prog = backend.NewProgram(name, []byte("ppbench-reference-guest/"+name))
		default:
			return nil, fmt.Errorf("%s: no guest binary, set --elf-dir or the config file", name)
		}

		var engine backend.Engine
		switch cfg.engine {
		case config.EngineReference:
			engine = reference

		case config.EngineProcess:
			runner, err := hostRunner(ctx, logger, cfg, file, harnessesDir, name, built)
			if err != nil {
				return nil, err
			}
			engine = harness.NewProcessEngine(runner)

		default:
			return nil, fmt.Errorf("unknown engine %q", cfg.engine)
		}

		jobs = append(jobs, bench.Job{Spec: spec, Program: prog, Engine: engine})
	}

	return jobs, nil
}

// hostRunner resolves, and unless --skip-build builds, the host binary that
// serves backend name. Each host is built at most once.
func hostRunner(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
	file *config.Config,
	harnessesDir, name string,
	built map[string]string,
) (*harness.Runner, error) {
	if hostCfg, ok := file.Host(name); ok && cfg.host == "" {
		return harness.NewRunner(name, hostCfg.Host, hostCfg.Args, hostCfg.Env, logger), nil
	}

	host := cfg.host
	if host == "" {
		host = name
	}

	binPath, ok := built[host]
	if !ok {
		binPath = harness.ResolveBinary(harnessesDir, host)

		if !cfg.skipBuild {
			var err error

			binPath, err = harness.Build(ctx, logger, harnessesDir, host)
			if err != nil {
				return nil, fmt.Errorf("build %s: %w", host, err)
			}
		}

		built[host] = binPath
	}

	return harness.NewRunner(host, binPath, nil, nil, logger), nil
}
