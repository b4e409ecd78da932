package backend

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/weiihann/ppbench/codec"
	"github.com/weiihann/ppbench/pessimistic"
)

// ReferenceEngine runs the guest program in process. It reads the two
// inputs with the backend's input primitive and publishes the output with
// the backend's output primitive, so it exercises exactly the conventions a
// real guest uses. Its proofs are hash commitments:
//
//	vk   = keccak("ppbench/vk" || program id)
//	seal = keccak(vk || input digest || public values)
//
// They bind program, input and output, but carry no zero-knowledge.
type ReferenceEngine struct{}

// NewReferenceEngine returns the in-process engine.
func NewReferenceEngine() *ReferenceEngine { return &ReferenceEngine{} }

func (*ReferenceEngine) Name() string { return "reference" }

func (*ReferenceEngine) Setup(_ context.Context, prog *Program) (VerifyingKey, error) {
	if prog == nil || len(prog.ELF) == 0 {
		return nil, fmt.Errorf("%w: empty program", ErrProgram)
	}

	return referenceKey(prog.ID()), nil
}

func (e *ReferenceEngine) Execute(ctx context.Context, prog *Program, in codec.Input) (*Execution, error) {
	out, cycles, err := e.guest(ctx, prog, in)
	if err != nil {
		return nil, err
	}

	return &Execution{Output: out, Cycles: cycles}, nil
}

func (e *ReferenceEngine) Prove(ctx context.Context, prog *Program, in codec.Input) (*Receipt, error) {
	out, cycles, err := e.guest(ctx, prog, in)
	if err != nil {
		return nil, err
	}

	id := prog.ID()
	digest := InputDigest(in)

	return &Receipt{
		Backend:     prog.Backend,
		ProgramID:   id,
		InputDigest: digest,
		Output:      out,
		Seal:        referenceSeal(referenceKey(id), digest, out),
		Cycles:      cycles,
	}, nil
}

func (*ReferenceEngine) Verify(_ context.Context, r *Receipt, vk VerifyingKey) error {
	if r == nil {
		return fmt.Errorf("%w: nil receipt", ErrVerificationFailed)
	}

	if !bytes.Equal(vk, referenceKey(r.ProgramID)) {
		return fmt.Errorf("%w: receipt not produced by this program", ErrVerificationFailed)
	}

	if !bytes.Equal(r.Seal, referenceSeal(vk, r.InputDigest, r.Output)) {
		return fmt.Errorf("%w: seal does not match public values", ErrVerificationFailed)
	}

	return nil
}

// guest is the program every backend runs: read state, read header, run the
// state transition, commit the output.
func (*ReferenceEngine) guest(ctx context.Context, prog *Program, in codec.Input) (codec.Output, uint64, error) {
	if err := ctx.Err(); err != nil {
		return codec.Output{}, 0, err
	}
	if prog == nil || len(prog.ELF) == 0 {
		return codec.Output{}, 0, fmt.Errorf("%w: %w: empty program", ErrExecution, ErrProgram)
	}

	spec, err := Lookup(prog.Backend)
	if err != nil {
		return codec.Output{}, 0, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	var (
		state  pessimistic.NetworkState
		header Header
	)
	if err := codec.DecodeInput(spec.Input, in, &state, &header); err != nil {
		return codec.Output{}, 0, fmt.Errorf("%w: guest read: %w", ErrExecution, err)
	}

	result, err := pessimistic.GenerateProof(state, &header)
	if err != nil {
		return codec.Output{}, 0, fmt.Errorf("%w: guest panicked: %w", ErrExecution, err)
	}

	out, err := spec.Output.Commit(result)
	if err != nil {
		return codec.Output{}, 0, fmt.Errorf("%w: guest commit: %w", ErrExecution, err)
	}

	return out, cycleCount(in, out), nil
}

// InputDigest is the keccak-256 digest of everything a guest reads. Every
// part is length prefixed so that distinct record splits never collide.
func InputDigest(in codec.Input) pessimistic.Digest {
	buf := make([]byte, 0, 8*(3+len(in.Records))+len(in.Format)+in.Size())

	part := func(b []byte) {
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(b)))
		buf = append(buf, b...)
	}

	part([]byte(in.Format))
	part(in.Data)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(in.Records)))
	for _, r := range in.Records {
		part(r)
	}

	return crypto.Keccak256Hash(buf)
}

func referenceKey(id pessimistic.Digest) VerifyingKey {
	return crypto.Keccak256([]byte("ppbench/vk"), id[:])
}

func referenceSeal(vk VerifyingKey, digest pessimistic.Digest, out codec.Output) []byte {
	return crypto.Keccak256(vk, digest[:], []byte(out.Format), out.Bytes())
}

// cycleCount approximates guest work as the number of words moved across
// the guest boundary.
func cycleCount(in codec.Input, out codec.Output) uint64 {
	words := func(n int) uint64 { return uint64((n + codec.WordSize - 1) / codec.WordSize) }

	return words(in.Size()) + words(len(out.Bytes()))
}
