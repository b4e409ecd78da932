// Package backend adapts the pessimistic proof program to the six proving
// backends. Every backend reads the same network state and batch header and
// commits the same proof output; only the way bytes cross the guest
// boundary differs, and that is captured by a Spec's codec pair.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/weiihann/ppbench/codec"
	"github.com/weiihann/ppbench/pessimistic"
)

var (
	// ErrExecution is wrapped when a guest program traps or its host
	// crashes.
	ErrExecution = errors.New("backend: execution failed")

	// ErrVerificationFailed is wrapped when a backend's verifier rejects a
	// proof.
	ErrVerificationFailed = errors.New("backend: proof verification failed")

	// ErrUnknownBackend is returned for backend names that have no Spec.
	ErrUnknownBackend = errors.New("backend: unknown backend")

	// ErrProgram is wrapped when a guest program cannot be loaded.
	ErrProgram = errors.New("backend: program unavailable")
)

// Mode selects between plain execution and full proof generation.
type Mode string

const (
	ModeExecute Mode = "execute"
	ModeProve   Mode = "prove"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeExecute, ModeProve:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want execute or prove)", s)
	}
}

// VerifyingKey identifies the statement a proof is checked against.
type VerifyingKey = hexutil.Bytes

// Execution is the result of running a guest without proving.
type Execution struct {
	Output codec.Output `json:"output"`
	Cycles uint64       `json:"cycles"`
}

// Receipt is a proof together with the public values it commits to.
type Receipt struct {
	Backend     string             `json:"backend"`
	ProgramID   pessimistic.Digest `json:"program_id"`
	InputDigest pessimistic.Digest `json:"input_digest"`
	Output      codec.Output       `json:"output"`
	Seal        hexutil.Bytes      `json:"seal"`
	Cycles      uint64             `json:"cycles"`
}

// Engine drives one proving system. Calls block until the engine is done;
// engines are not expected to honor cancellation beyond what ctx offers.
type Engine interface {
	Name() string
	Setup(ctx context.Context, prog *Program) (VerifyingKey, error)
	Execute(ctx context.Context, prog *Program, in codec.Input) (*Execution, error)
	Prove(ctx context.Context, prog *Program, in codec.Input) (*Receipt, error)
	Verify(ctx context.Context, receipt *Receipt, vk VerifyingKey) error
}

// Program is a compiled guest for one backend.
type Program struct {
	Backend string
	Path    string
	ELF     []byte
}

// NewProgram wraps guest bytes that are already in memory.
func NewProgram(backend string, elf []byte) *Program {
	return &Program{Backend: backend, ELF: elf}
}

// LoadProgram reads a guest binary from path.
func LoadProgram(backend, path string) (*Program, error) {
	elf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProgram, backend, err)
	}
	if len(elf) == 0 {
		return nil, fmt.Errorf("%w: %s: %s is empty", ErrProgram, backend, path)
	}

	return &Program{Backend: backend, Path: path, ELF: elf}, nil
}

// ID is the keccak-256 digest of the guest binary.
func (p *Program) ID() pessimistic.Digest {
	return crypto.Keccak256Hash(p.ELF)
}
