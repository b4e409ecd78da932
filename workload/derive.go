package workload

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/weiihann/ppbench/pessimistic"
)

// ErrHeaderDerivation is returned for certificates a header cannot be
// derived from.
var ErrHeaderDerivation = errors.New("workload: header derivation failed")

// ResolveL1InfoRoot returns the L1 info root claimed by the certificate's
// imported exits. A certificate without imported exits resolves to the zero
// root, and defaulted reports that the fallback was taken.
func ResolveL1InfoRoot(cert *pessimistic.Certificate) (root pessimistic.Digest, defaulted bool, err error) {
	claimed, err := cert.L1InfoRoot()
	if err != nil {
		return pessimistic.Digest{}, false, fmt.Errorf("%w: %v", ErrHeaderDerivation, err)
	}

	if claimed == nil {
		return pessimistic.Digest{}, true, nil
	}

	return *claimed, false, nil
}

// DeriveHeader builds the batch header for applying cert on old. The state
// is read, never modified.
func DeriveHeader(
	old pessimistic.NetworkState,
	cert *pessimistic.Certificate,
	signer pessimistic.Address,
	l1InfoRoot pessimistic.Digest,
) (*Header, error) {
	if cert.NetworkID != old.NetworkID {
		return nil, fmt.Errorf("%w: certificate for network %d, state of network %d",
			ErrHeaderDerivation, cert.NetworkID, old.NetworkID)
	}

	prevLER := pessimistic.LocalExitRoot[Hasher](old)
	if cert.PrevLocalExitRoot != prevLER {
		return nil, fmt.Errorf("%w: certificate builds on %s, state is at %s",
			ErrHeaderDerivation, cert.PrevLocalExitRoot.Hex(), prevLER.Hex())
	}

	_, targetPR, err := pessimistic.ProjectTargets[Hasher](old, cert)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderDerivation, err)
	}

	c := cert.Clone()

	return &Header{
		OriginNetwork:         c.NetworkID,
		Height:                c.Height,
		PrevLocalExitRoot:     prevLER,
		PrevPessimisticRoot:   pessimistic.PessimisticRoot[Hasher](old),
		BridgeExits:           c.BridgeExits,
		ImportedBridgeExits:   c.ImportedBridgeExits,
		L1InfoRoot:            l1InfoRoot,
		TargetLocalExitRoot:   c.NewLocalExitRoot,
		TargetPessimisticRoot: targetPR,
		Signer:                signer,
		Signature:             append(hexutil.Bytes(nil), c.Signature...),
	}, nil
}
