package backend_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/codec"
	"github.com/weiihann/ppbench/pessimistic"
	"github.com/weiihann/ppbench/workload"
)

func fixture(t *testing.T, exits, imported int) *workload.Fixture {
	t.Helper()

	fx, _, err := workload.NewGenerator(workload.Config{
		NumExits:         exits,
		NumImportedExits: imported,
	}).Generate()
	require.NoError(t, err)

	return fx
}

func adapter(spec backend.Spec) *backend.Adapter {
	prog := backend.NewProgram(spec.Name, []byte("guest-"+spec.Name))
	return backend.NewAdapter(spec, prog, backend.NewReferenceEngine())
}

func runAdapter(t *testing.T, a *backend.Adapter, fx *workload.Fixture, mode backend.Mode) *pessimistic.ProofOutput {
	t.Helper()

	ctx := context.Background()

	_, err := a.Encode(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	stats, err := a.Run(ctx, mode)
	require.NoError(t, err)
	require.Equal(t, mode, stats.Mode)
	require.NotZero(t, stats.Cycles)

	out, err := a.Decode()
	require.NoError(t, err)

	if mode == backend.ModeProve {
		require.NoError(t, a.Verify(ctx))
	}
	require.NoError(t, a.Finish())
	require.Equal(t, backend.StageDone, a.Stage())

	return out
}

func TestSpecsCoverAllBackends(t *testing.T) {
	require.Equal(t,
		[]string{"sp1", "risc0", "openvm", "pico", "nexus", "valida"},
		backend.Names())

	_, err := backend.Lookup("zkwasm")
	require.ErrorIs(t, err, backend.ErrUnknownBackend)
}

func TestCrossBackendEquivalence(t *testing.T) {
	fx := fixture(t, 10, 10)

	want, err := pessimistic.GenerateProof(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	for _, mode := range []backend.Mode{backend.ModeExecute, backend.ModeProve} {
		for _, spec := range backend.Specs() {
			t.Run(string(mode)+"/"+spec.Name, func(t *testing.T) {
				got := runAdapter(t, adapter(spec), fx, mode)

				require.Equal(t, want, got)
				require.NotEqual(t, got.PrevLocalExitRoot, got.NewLocalExitRoot)
				require.Equal(t, fx.Header.L1InfoRoot, got.L1InfoRoot)
			})
		}
	}
}

func TestEmptyBatchOnEveryBackend(t *testing.T) {
	fx := fixture(t, 0, 0)

	for _, spec := range backend.Specs() {
		t.Run(spec.Name, func(t *testing.T) {
			got := runAdapter(t, adapter(spec), fx, backend.ModeExecute)
			require.Equal(t, got.PrevLocalExitRoot, got.NewLocalExitRoot)
		})
	}
}

func TestHeaderBytesIdenticalAcrossBackends(t *testing.T) {
	fx := fixture(t, 3, 2)

	want, err := codec.Marshal(fx.Header)
	require.NoError(t, err)

	for _, spec := range backend.Specs() {
		in, err := adapter(spec).Encode(fx.State(), fx.BatchHeader())
		require.NoError(t, err)

		_, hdr, err := spec.Input.Split(in)
		require.NoError(t, err)
		require.Equal(t, want, hdr, spec.Name)
	}
}

func TestTamperedReceiptFailsVerification(t *testing.T) {
	fx := fixture(t, 2, 2)
	ctx := context.Background()
	engine := backend.NewReferenceEngine()

	spec, err := backend.Lookup("openvm")
	require.NoError(t, err)
	prog := backend.NewProgram(spec.Name, []byte("guest-openvm"))

	in, err := spec.Input.Encode(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	receipt, err := engine.Prove(ctx, prog, in)
	require.NoError(t, err)

	vk, err := engine.Setup(ctx, prog)
	require.NoError(t, err)
	require.NoError(t, engine.Verify(ctx, receipt, vk))

	tampered := *receipt
	tampered.Output.Words = append([]codec.Word(nil), receipt.Output.Words...)
	tampered.Output.Words[0].Value ^= 1
	require.ErrorIs(t, engine.Verify(ctx, &tampered, vk), backend.ErrVerificationFailed)

	other, err := engine.Setup(ctx, backend.NewProgram("openvm", []byte("another guest")))
	require.NoError(t, err)
	require.ErrorIs(t, engine.Verify(ctx, receipt, other), backend.ErrVerificationFailed)
}

func TestGuestRejectsInvalidBatch(t *testing.T) {
	fx := fixture(t, 2, 0)
	hdr := fx.BatchHeader()
	hdr.TargetLocalExitRoot[0] ^= 1

	a := adapter(backend.Specs()[0])
	_, err := a.Encode(fx.State(), hdr)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), backend.ModeExecute)
	require.ErrorIs(t, err, backend.ErrExecution)
	require.ErrorIs(t, err, pessimistic.ErrValidation)

	var stepErr *backend.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "sp1", stepErr.Backend)
	require.Equal(t, backend.StepRun, stepErr.Step)
	require.Equal(t, backend.StageFailed, a.Stage())

	_, err = a.Decode()
	require.ErrorIs(t, err, backend.ErrStage)
	require.ErrorContains(t, err, "after sp1: run:")
}

func TestInputDigestSeparatesRecords(t *testing.T) {
	split := func(records ...[]byte) codec.Input {
		in := codec.Input{Format: "records"}
		for _, r := range records {
			in.Records = append(in.Records, r)
		}

		return in
	}

	a := backend.InputDigest(split([]byte{1, 2}, []byte{3}))
	b := backend.InputDigest(split([]byte{1}, []byte{2, 3}))
	require.NotEqual(t, a, b)

	require.NotEqual(t,
		backend.InputDigest(codec.Input{Format: "concat", Data: []byte{1, 2, 3}}),
		backend.InputDigest(codec.Input{Format: "conca", Data: []byte{'t', 1, 2, 3}}))

	require.Equal(t, a, backend.InputDigest(split([]byte{1, 2}, []byte{3})))
}

func TestAdapterEnforcesOrder(t *testing.T) {
	a := adapter(backend.Specs()[2])

	_, err := a.Run(context.Background(), backend.ModeExecute)
	require.ErrorIs(t, err, backend.ErrStage)
	require.Equal(t, backend.StageIdle, a.Stage())

	_, err = a.Decode()
	require.ErrorIs(t, err, backend.ErrStage)

	require.ErrorIs(t, a.Verify(context.Background()), backend.ErrStage)
}

func TestVerifyRequiresProof(t *testing.T) {
	fx := fixture(t, 1, 1)
	a := adapter(backend.Specs()[1])

	_, err := a.Encode(fx.State(), fx.BatchHeader())
	require.NoError(t, err)
	_, err = a.Run(context.Background(), backend.ModeExecute)
	require.NoError(t, err)
	_, err = a.Decode()
	require.NoError(t, err)

	require.ErrorIs(t, a.Verify(context.Background()), backend.ErrStage)
	require.Equal(t, backend.StageFailed, a.Stage())
}

func TestMismatchedConventionFailsDecode(t *testing.T) {
	fx := fixture(t, 1, 0)

	// Host encodes for openvm, guest was built for sp1.
	spec, err := backend.Lookup("openvm")
	require.NoError(t, err)

	a := backend.NewAdapter(spec, backend.NewProgram("sp1", []byte("guest")), backend.NewReferenceEngine())
	_, err = a.Encode(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	_, err = a.Run(context.Background(), backend.ModeExecute)
	require.ErrorIs(t, err, backend.ErrExecution)
	require.ErrorIs(t, err, codec.ErrEncoding)
}

func TestMismatchedOutputConventionFailsDecode(t *testing.T) {
	fx := fixture(t, 1, 0)

	// Guest commits a byte buffer, host expects a typed record.
	spec, err := backend.Lookup("nexus")
	require.NoError(t, err)

	a := backend.NewAdapter(spec, backend.NewProgram("pico", []byte("guest")), backend.NewReferenceEngine())
	_, err = a.Encode(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	_, err = a.Run(context.Background(), backend.ModeExecute)
	require.NoError(t, err)

	_, err = a.Decode()
	require.ErrorIs(t, err, codec.ErrEncoding)

	var stepErr *backend.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, backend.StepDecode, stepErr.Step)
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	spec, err := backend.Lookup("pico")
	require.NoError(t, err)

	_, err = backend.LoadProgram(spec.Name, spec.ELFPath(dir))
	require.ErrorIs(t, err, backend.ErrProgram)

	require.NoError(t, os.WriteFile(spec.ELFPath(dir), []byte{0x7f, 'E', 'L', 'F'}, 0o644))

	prog, err := backend.LoadProgram(spec.Name, spec.ELFPath(dir))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "pp-pico-guest"), prog.Path)
	require.Equal(t, backend.NewProgram("pico", []byte{0x7f, 'E', 'L', 'F'}).ID(), prog.ID())
}

func TestParseMode(t *testing.T) {
	m, err := backend.ParseMode("PROVE")
	require.NoError(t, err)
	require.Equal(t, backend.ModeProve, m)

	_, err = backend.ParseMode("simulate")
	require.Error(t, err)
}
