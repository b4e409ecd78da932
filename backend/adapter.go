package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiihann/ppbench/codec"
	"github.com/weiihann/ppbench/pessimistic"
	"github.com/weiihann/ppbench/pessimistic/hasher"
)

// Header is the batch header every backend proves.
type Header = pessimistic.MultiBatchHeader[hasher.Keccak256]

// Stage is the position of an Adapter in its run.
type Stage int

const (
	StageIdle Stage = iota
	StageEncoded
	StageExecuted
	StageProved
	StageDecoded
	StageVerified
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageEncoded:
		return "encoded"
	case StageExecuted:
		return "executed"
	case StageProved:
		return "proved"
	case StageDecoded:
		return "decoded"
	case StageVerified:
		return "verified"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Steps of a run, as reported by StepError.
const (
	StepEncode = "encode"
	StepRun    = "run"
	StepDecode = "decode"
	StepVerify = "verify"
)

// ErrStage is returned when a step is called out of order.
var ErrStage = errors.New("backend: step out of order")

// StepError reports which backend failed at which step.
type StepError struct {
	Backend string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// RunStats describes the timed step of a run.
type RunStats struct {
	Mode    Mode
	Latency time.Duration
	Cycles  uint64
}

// Adapter runs one backend once: Encode, Run, Decode, then Verify when a
// proof was produced, then Finish. An Adapter is not reusable and must not
// be shared between goroutines.
type Adapter struct {
	Spec    Spec
	Program *Program
	Engine  Engine

	stage   Stage
	err     error
	input   codec.Input
	output  codec.Output
	receipt *Receipt
}

// NewAdapter returns an idle adapter.
func NewAdapter(spec Spec, prog *Program, engine Engine) *Adapter {
	return &Adapter{Spec: spec, Program: prog, Engine: engine}
}

// Stage returns the current stage.
func (a *Adapter) Stage() Stage { return a.stage }

// Receipt returns the proof produced in prove mode.
func (a *Adapter) Receipt() *Receipt { return a.receipt }

func (a *Adapter) expect(step string, stages ...Stage) error {
	for _, s := range stages {
		if a.stage == s {
			return nil
		}
	}

	err := fmt.Errorf("%w: adapter is %s", ErrStage, a.stage)
	if a.err != nil {
		err = fmt.Errorf("%w: adapter is %s after %v", ErrStage, a.stage, a.err)
	}

	return &StepError{Backend: a.Spec.Name, Step: step, Err: err}
}

func (a *Adapter) fail(step string, err error) error {
	a.stage = StageFailed
	a.err = &StepError{Backend: a.Spec.Name, Step: step, Err: err}

	return a.err
}

// Encode serializes state and header with the backend's input convention.
func (a *Adapter) Encode(state pessimistic.NetworkState, header *Header) (codec.Input, error) {
	if err := a.expect(StepEncode, StageIdle); err != nil {
		return codec.Input{}, err
	}

	in, err := a.Spec.Input.Encode(state, header)
	if err != nil {
		return codec.Input{}, a.fail(StepEncode, err)
	}

	a.input = in
	a.stage = StageEncoded

	return in, nil
}

// Run executes or proves the encoded input. Only the engine call is timed.
func (a *Adapter) Run(ctx context.Context, mode Mode) (RunStats, error) {
	if err := a.expect(StepRun, StageEncoded); err != nil {
		return RunStats{}, err
	}

	stats := RunStats{Mode: mode}

	switch mode {
	case ModeExecute:
		start := time.Now()
		exec, err := a.Engine.Execute(ctx, a.Program, a.input)
		stats.Latency = time.Since(start)
		if err != nil {
			return stats, a.fail(StepRun, err)
		}

		a.output = exec.Output
		stats.Cycles = exec.Cycles
		a.stage = StageExecuted

	case ModeProve:
		start := time.Now()
		receipt, err := a.Engine.Prove(ctx, a.Program, a.input)
		stats.Latency = time.Since(start)
		if err != nil {
			return stats, a.fail(StepRun, err)
		}

		a.receipt = receipt
		a.output = receipt.Output
		stats.Cycles = receipt.Cycles
		a.stage = StageProved

	default:
		return stats, a.fail(StepRun, fmt.Errorf("unknown mode %q", mode))
	}

	return stats, nil
}

// Decode reads the committed proof output with the backend's output
// convention.
func (a *Adapter) Decode() (*pessimistic.ProofOutput, error) {
	if err := a.expect(StepDecode, StageExecuted, StageProved); err != nil {
		return nil, err
	}

	var out pessimistic.ProofOutput
	if err := a.Spec.Output.Open(a.output, &out); err != nil {
		return nil, a.fail(StepDecode, err)
	}

	a.stage = StageDecoded

	return &out, nil
}

// Verify checks the receipt with the backend's own verifier. It is only
// valid after a proof was produced and decoded.
func (a *Adapter) Verify(ctx context.Context) error {
	if err := a.expect(StepVerify, StageDecoded); err != nil {
		return err
	}
	if a.receipt == nil {
		return a.fail(StepVerify, fmt.Errorf("%w: no proof to verify", ErrStage))
	}

	vk, err := a.Engine.Setup(ctx, a.Program)
	if err != nil {
		return a.fail(StepVerify, err)
	}

	if err := a.Engine.Verify(ctx, a.receipt, vk); err != nil {
		return a.fail(StepVerify, err)
	}

	a.stage = StageVerified

	return nil
}

// Finish marks a successful run as done.
func (a *Adapter) Finish() error {
	if a.receipt != nil {
		if err := a.expect("finish", StageVerified); err != nil {
			return err
		}
	} else if err := a.expect("finish", StageDecoded); err != nil {
		return err
	}

	a.stage = StageDone

	return nil
}
