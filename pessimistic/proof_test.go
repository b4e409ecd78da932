package pessimistic_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

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

func TestGenerateProofTenAndTen(t *testing.T) {
	fx := fixture(t, 10, 10)

	out, err := pessimistic.GenerateProof(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	require.NotEqual(t, out.PrevLocalExitRoot, out.NewLocalExitRoot)
	require.Equal(t, fx.Certificate.NewLocalExitRoot, out.NewLocalExitRoot)
	require.Equal(t, fx.Header.L1InfoRoot, out.L1InfoRoot)
	require.Equal(t, workload.SampleNetworkID, out.OriginNetwork)

	claimed, err := fx.Certificate.L1InfoRoot()
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, *claimed, out.L1InfoRoot)
}

func TestGenerateProofEmptyBatch(t *testing.T) {
	fx := fixture(t, 0, 0)

	out, err := pessimistic.GenerateProof(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	require.Equal(t, out.PrevLocalExitRoot, out.NewLocalExitRoot)
	require.Equal(t, out.PrevPessimisticRoot, out.NewPessimisticRoot)
	require.Equal(t, pessimistic.Digest{}, out.L1InfoRoot)
}

func TestGenerateProofDoesNotMutateState(t *testing.T) {
	fx := fixture(t, 4, 4)

	state := fx.State()
	before, err := rlp.EncodeToBytes(state)
	require.NoError(t, err)

	_, err = pessimistic.GenerateProof(state, fx.BatchHeader())
	require.NoError(t, err)

	after, err := rlp.EncodeToBytes(state)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestGenerateProofDeterministic(t *testing.T) {
	fx := fixture(t, 6, 2)

	first, err := pessimistic.GenerateProof(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	second, err := pessimistic.GenerateProof(fx.State(), fx.BatchHeader())
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestGenerateProofRejects(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(state *pessimistic.NetworkState, hdr *workload.Header)
		want   error
	}{
		{
			name: "origin network",
			tamper: func(_ *pessimistic.NetworkState, hdr *workload.Header) {
				hdr.OriginNetwork = 7
			},
			want: pessimistic.ErrMismatchedOrigin,
		},
		{
			name: "previous exit root",
			tamper: func(_ *pessimistic.NetworkState, hdr *workload.Header) {
				hdr.PrevLocalExitRoot[0] ^= 1
			},
			want: pessimistic.ErrMismatchedPrevRoot,
		},
		{
			name: "signer",
			tamper: func(_ *pessimistic.NetworkState, hdr *workload.Header) {
				hdr.Signer[0] ^= 1
			},
			want: pessimistic.ErrInvalidSignature,
		},
		{
			name: "truncated signature",
			tamper: func(_ *pessimistic.NetworkState, hdr *workload.Header) {
				hdr.Signature = hdr.Signature[:10]
			},
			want: pessimistic.ErrInvalidSignature,
		},
		{
			name: "l1 info root",
			tamper: func(_ *pessimistic.NetworkState, hdr *workload.Header) {
				hdr.L1InfoRoot[5] ^= 1
			},
			want: pessimistic.ErrMismatchedL1InfoRoot,
		},
		{
			name: "claim proof",
			tamper: func(_ *pessimistic.NetworkState, hdr *workload.Header) {
				hdr.ImportedBridgeExits[0].Claim.ProofLeafLER[0][0] ^= 1
			},
			want: pessimistic.ErrInvalidClaimProof,
		},
		{
			name: "already claimed",
			tamper: func(state *pessimistic.NetworkState, hdr *workload.Header) {
				state.AddNullifier(hdr.ImportedBridgeExits[0].GlobalIndex.Nullifier())
				hdr.PrevPessimisticRoot = pessimistic.PessimisticRoot[workload.Hasher](*state)
			},
			want: pessimistic.ErrDuplicateNullifier,
		},
		{
			name: "exit amount",
			tamper: func(_ *pessimistic.NetworkState, hdr *workload.Header) {
				hdr.BridgeExits[0].Amount = uint256.NewInt(1)
			},
			want: pessimistic.ErrMismatchedTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := fixture(t, 3, 3)

			state := fx.State()
			hdr := fx.BatchHeader()
			tt.tamper(&state, hdr)

			_, err := pessimistic.GenerateProof(state, hdr)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, pessimistic.ErrValidation)
		})
	}
}

func TestGenerateProofBalanceUnderflow(t *testing.T) {
	fx := fixture(t, 1, 0)

	state := fx.State()
	token := fx.Header.BridgeExits[0].TokenInfo
	state.SetBalance(token, uint256.NewInt(0))

	hdr := fx.BatchHeader()
	hdr.PrevPessimisticRoot = pessimistic.PessimisticRoot[workload.Hasher](state)

	_, err := pessimistic.GenerateProof(state, hdr)
	require.ErrorIs(t, err, pessimistic.ErrBalanceUnderflow)
}

func TestCertificateIDIsStable(t *testing.T) {
	a := fixture(t, 2, 1)
	b := fixture(t, 2, 1)

	require.Equal(t, a.Certificate.ID(), b.Certificate.ID())
	require.Equal(t, a.Header.ID(), b.Header.ID())
	require.NotEqual(t, a.Certificate.ID(), fixture(t, 3, 1).Certificate.ID())
}
