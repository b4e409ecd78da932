package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/codec"
)

var errNoELF = errors.New("process engine needs a guest binary on disk")

// ProcessEngine drives a backend through its host binary.
type ProcessEngine struct {
	runner *Runner
}

// NewProcessEngine returns an engine that runs every call through r.
func NewProcessEngine(r *Runner) *ProcessEngine {
	return &ProcessEngine{runner: r}
}

func (e *ProcessEngine) Name() string { return "process:" + e.runner.Name }

func (e *ProcessEngine) call(
	ctx context.Context,
	mode string,
	prog *backend.Program,
	request any,
) (*Result, error) {
	if prog == nil || prog.Path == "" {
		return nil, fmt.Errorf("%w: %w", backend.ErrProgram, errNoELF)
	}

	return e.runner.Run(ctx, RunConfig{
		Mode:    mode,
		Backend: prog.Backend,
		ELFPath: prog.Path,
	}, request)
}

func (e *ProcessEngine) Setup(ctx context.Context, prog *backend.Program) (backend.VerifyingKey, error) {
	res, err := e.call(ctx, ModeSetup, prog, struct{}{})
	if err != nil {
		return nil, err
	}
	if len(res.VerifyingKey) == 0 {
		return nil, fmt.Errorf("%w: host %s returned no verifying key",
			backend.ErrExecution, e.runner.Name)
	}

	return backend.VerifyingKey(res.VerifyingKey), nil
}

func (e *ProcessEngine) Execute(ctx context.Context, prog *backend.Program, in codec.Input) (*backend.Execution, error) {
	res, err := e.call(ctx, string(backend.ModeExecute), prog, in)
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", backend.ErrExecution, res.Error)
	}

	return &backend.Execution{Output: res.Output, Cycles: res.Cycles}, nil
}

func (e *ProcessEngine) Prove(ctx context.Context, prog *backend.Program, in codec.Input) (*backend.Receipt, error) {
	res, err := e.call(ctx, string(backend.ModeProve), prog, in)
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", backend.ErrExecution, res.Error)
	}
	if len(res.Proof) == 0 {
		return nil, fmt.Errorf("%w: host %s returned no proof",
			backend.ErrExecution, e.runner.Name)
	}

	return &backend.Receipt{
		Backend:     res.Backend,
		ProgramID:   prog.ID(),
		InputDigest: backend.InputDigest(in),
		Output:      res.Output,
		Seal:        res.Proof,
		Cycles:      res.Cycles,
	}, nil
}

// Verify hands the receipt to the host. The verifier's verdict is taken
// from the result document; a host crash is an execution error, not a
// rejection.
func (e *ProcessEngine) Verify(ctx context.Context, r *backend.Receipt, vk backend.VerifyingKey) error {
	if r == nil {
		return fmt.Errorf("%w: nil receipt", backend.ErrVerificationFailed)
	}

	res, err := e.runner.Run(ctx, RunConfig{
		Mode:    ModeVerify,
		Backend: r.Backend,
	}, VerifyRequest{Receipt: r, VerifyingKey: vk})
	if err != nil {
		return err
	}

	if !res.Verified {
		return fmt.Errorf("%w: %s", backend.ErrVerificationFailed, res.Error)
	}

	return nil
}
