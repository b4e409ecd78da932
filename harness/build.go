package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/weiihann/ppbench/backend"
)

// Reference is the in-repo host that serves every backend.
const Reference = "reference"

// KnownHosts returns the list of host names that can be built.
func KnownHosts() []string {
	return append([]string{Reference}, backend.Names()...)
}

// ResolveBinary returns the expected binary path for a host given the
// harnesses root directory.
func ResolveBinary(harnessesDir, host string) string {
	if host == Reference {
		return filepath.Join(harnessesDir, Reference, "reference-host")
	}

	if slices.Contains(backend.Names(), host) {
		return filepath.Join(
			harnessesDir, host, "target", "release", "pp-"+host+"-host",
		)
	}

	return filepath.Join(harnessesDir, host, host+"-host")
}

// Build compiles the host binary for the given host.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	harnessesDir string,
	host string,
) (string, error) {
	srcDir := filepath.Join(harnessesDir, host)
	binPath := ResolveBinary(harnessesDir, host)

	logger.InfoContext(ctx, "building host",
		slog.String("host", host),
		slog.String("source_dir", srcDir),
	)

	var cmd *exec.Cmd

	switch {
	case host == Reference:
		cmd = exec.CommandContext(
			ctx, "go", "build", "-o", binPath, ".",
		)
		cmd.Dir = srcDir

	case slices.Contains(backend.Names(), host):
		cmd = exec.CommandContext(
			ctx, "cargo", "build", "--release",
		)
		cmd.Dir = srcDir

	default:
		return "", fmt.Errorf("unknown host %q", host)
	}

	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build %s: %w", host, err)
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf(
			"build %s: binary not found at %s", host, binPath,
		)
	}

	logger.InfoContext(ctx, "host built",
		slog.String("host", host),
		slog.String("binary", binPath),
	)

	return binPath, nil
}
