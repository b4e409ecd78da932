package pessimistic

import (
	"errors"
	"fmt"

	"github.com/weiihann/ppbench/pessimistic/hasher"
)

// ErrValidation is wrapped by every business-rule violation of a batch.
var ErrValidation = errors.New("pessimistic: invalid batch")

var (
	ErrMismatchedOrigin           = fmt.Errorf("%w: origin network mismatch", ErrValidation)
	ErrMismatchedPrevRoot         = fmt.Errorf("%w: previous root mismatch", ErrValidation)
	ErrInvalidSignature           = fmt.Errorf("%w: invalid signature", ErrValidation)
	ErrInvalidImportedDestination = fmt.Errorf("%w: imported exit not destined to this network", ErrValidation)
	ErrMismatchedL1InfoRoot       = fmt.Errorf("%w: claim l1 info root mismatch", ErrValidation)
	ErrInvalidClaimProof          = fmt.Errorf("%w: invalid claim inclusion proof", ErrValidation)
	ErrDuplicateNullifier         = fmt.Errorf("%w: imported exit already claimed", ErrValidation)
	ErrBalanceUnderflow           = fmt.Errorf("%w: balance underflow", ErrValidation)
	ErrMismatchedTarget           = fmt.Errorf("%w: target root mismatch", ErrValidation)
)

// GenerateProof runs the pessimistic state transition of header on state
// and returns the committed outputs. It is deterministic and never mutates
// the caller's state.
func GenerateProof[H hasher.Hasher](
	state NetworkState,
	header *MultiBatchHeader[H],
) (*ProofOutput, error) {
	s := state.Clone()

	if header.OriginNetwork != s.NetworkID {
		return nil, fmt.Errorf("%w: header %d, state %d",
			ErrMismatchedOrigin, header.OriginNetwork, s.NetworkID)
	}

	prevLER := LocalExitRoot[H](s)
	if prevLER != header.PrevLocalExitRoot {
		return nil, fmt.Errorf("%w: local exit root %s, header %s",
			ErrMismatchedPrevRoot, prevLER.Hex(), header.PrevLocalExitRoot.Hex())
	}

	prevPR := PessimisticRoot[H](s)
	if prevPR != header.PrevPessimisticRoot {
		return nil, fmt.Errorf("%w: pessimistic root %s, header %s",
			ErrMismatchedPrevRoot, prevPR.Hex(), header.PrevPessimisticRoot.Hex())
	}

	commitment := SignatureCommitment(
		header.OriginNetwork, header.Height,
		header.TargetLocalExitRoot, header.ImportedBridgeExits,
	)
	signer, err := RecoverSigner(commitment, header.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != header.Signer {
		return nil, fmt.Errorf("%w: recovered %s, expected %s",
			ErrInvalidSignature, signer.Hex(), header.Signer.Hex())
	}

	for i, ie := range header.ImportedBridgeExits {
		if err := importExit[H](&s, header.L1InfoRoot, ie); err != nil {
			return nil, fmt.Errorf("imported exit %d: %w", i, err)
		}
	}

	for i, e := range header.BridgeExits {
		if err := exportExit[H](&s, e); err != nil {
			return nil, fmt.Errorf("bridge exit %d: %w", i, err)
		}
	}

	newLER := LocalExitRoot[H](s)
	if newLER != header.TargetLocalExitRoot {
		return nil, fmt.Errorf("%w: local exit root %s, target %s",
			ErrMismatchedTarget, newLER.Hex(), header.TargetLocalExitRoot.Hex())
	}

	newPR := PessimisticRoot[H](s)
	if newPR != header.TargetPessimisticRoot {
		return nil, fmt.Errorf("%w: pessimistic root %s, target %s",
			ErrMismatchedTarget, newPR.Hex(), header.TargetPessimisticRoot.Hex())
	}

	return &ProofOutput{
		PrevLocalExitRoot:   prevLER,
		PrevPessimisticRoot: prevPR,
		L1InfoRoot:          header.L1InfoRoot,
		OriginNetwork:       header.OriginNetwork,
		NewLocalExitRoot:    newLER,
		NewPessimisticRoot:  newPR,
	}, nil
}

func importExit[H hasher.Hasher](s *NetworkState, l1InfoRoot Digest, ie ImportedBridgeExit) error {
	if ie.BridgeExit.DestNetwork != s.NetworkID {
		return fmt.Errorf("%w: destination %d", ErrInvalidImportedDestination, ie.BridgeExit.DestNetwork)
	}

	claim := ie.Claim
	if claim.L1InfoRoot != l1InfoRoot {
		return fmt.Errorf("%w: claim %s, header %s",
			ErrMismatchedL1InfoRoot, claim.L1InfoRoot.Hex(), l1InfoRoot.Hex())
	}

	leaf := ExitHash[H](ie.BridgeExit)
	if !VerifyMerkleProof[H](leaf, claim.ProofLeafLER, ie.GlobalIndex.LeafIndex, claim.OriginLocalExitRoot) {
		return fmt.Errorf("%w: exit leaf not in origin exit tree", ErrInvalidClaimProof)
	}

	l1Leaf := L1InfoLeaf[H](claim.OriginLocalExitRoot)
	if !VerifyMerkleProof[H](l1Leaf, claim.ProofLERL1, claim.L1LeafIndex, claim.L1InfoRoot) {
		return fmt.Errorf("%w: origin exit root not in l1 info tree", ErrInvalidClaimProof)
	}

	if !s.AddNullifier(ie.GlobalIndex.Nullifier()) {
		return fmt.Errorf("%w: %+v", ErrDuplicateNullifier, ie.GlobalIndex)
	}

	token := ie.BridgeExit.TokenInfo
	if s.tracks(token) {
		bal := s.Balance(token)
		if _, overflow := bal.AddOverflow(bal, amountOrZero(ie.BridgeExit.Amount)); overflow {
			return fmt.Errorf("%w: balance overflow", ErrValidation)
		}
		s.SetBalance(token, bal)
	}

	return nil
}

func exportExit[H hasher.Hasher](s *NetworkState, e BridgeExit) error {
	if s.tracks(e.TokenInfo) {
		bal := s.Balance(e.TokenInfo)
		amount := amountOrZero(e.Amount)
		if bal.Lt(amount) {
			return fmt.Errorf("%w: token %d/%s has %s, exit %s",
				ErrBalanceUnderflow,
				e.TokenInfo.OriginNetwork, e.TokenInfo.OriginTokenAddress.Hex(),
				bal.Dec(), amount.Dec())
		}
		bal.Sub(bal, amount)
		s.SetBalance(e.TokenInfo, bal)
	}

	return AppendLeaf[H](&s.ExitTree, ExitHash[H](e))
}

// L1InfoLeaf is the leaf under which a network's exit root is recorded in
// the L1 info tree.
func L1InfoLeaf[H hasher.Hasher](localExitRoot Digest) Digest {
	var h H
	return h.Sum(localExitRoot[:])
}
