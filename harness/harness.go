package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/weiihann/ppbench/backend"
)

// RunConfig holds parameters for a single host execution.
type RunConfig struct {
	Mode    string
	Backend string
	ELFPath string
}

// Runner launches and manages a single host binary.
type Runner struct {
	Name       string
	BinaryPath string
	ExtraArgs  []string
	Env        []string
	Logger     *slog.Logger
}

// NewRunner creates a Runner for the named host. Env is appended to the
// inherited environment.
func NewRunner(
	name, binaryPath string,
	extraArgs, env []string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Name:       name,
		BinaryPath: binaryPath,
		ExtraArgs:  extraArgs,
		Env:        env,
		Logger:     logger.With(slog.String("host", name)),
	}
}

// Run executes the host binary with request as its stdin document and
// returns the parsed result. A host that exits non-zero or writes no
// result fails with backend.ErrExecution.
func (r *Runner) Run(ctx context.Context, cfg RunConfig, request any) (*Result, error) {
	stdin, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", cfg.Mode, err)
	}

	args := make([]string, 0, len(r.ExtraArgs)+6)
	args = append(args, r.ExtraArgs...)
	args = append(args,
		"--mode", cfg.Mode,
		"--backend", cfg.Backend,
		"--elf", cfg.ELFPath,
	)

	cmd := exec.CommandContext(ctx, r.BinaryPath, args...)

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Logger.Info("starting host",
		slog.String("binary", r.BinaryPath),
		slog.String("backend", cfg.Backend),
		slog.String("mode", cfg.Mode),
	)

	wallStart := time.Now()

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("host %s: %w", r.Name, ctxErr)
		}

		return nil, fmt.Errorf(
			"%w: host %s failed: %v\nstderr: %s",
			backend.ErrExecution, r.Name, err, stderr.String(),
		)
	}

	wallElapsed := time.Since(wallStart)

	r.Logger.Info("host finished",
		slog.Duration("wall_time", wallElapsed),
	)

	result, err := parseResult(cfg.Backend, &stdout)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: parse %s output: %v\nstdout: %s",
			backend.ErrExecution, r.Name, err, stdout.String(),
		)
	}

	if result.ElapsedMs == 0 {
		result.ElapsedMs = wallElapsed.Milliseconds()
	}

	return result, nil
}

func parseResult(name string, r io.Reader) (*Result, error) {
	var result Result
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if result.Backend == "" {
		result.Backend = name
	}

	return &result, nil
}
