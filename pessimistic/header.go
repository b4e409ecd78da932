package pessimistic

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/weiihann/ppbench/pessimistic/hasher"
)

// MultiBatchHeader binds a certificate to the state it is applied on. The
// hash function used for every tree is the type parameter H; it is not part
// of the encoding.
type MultiBatchHeader[H hasher.Hasher] struct {
	OriginNetwork         uint32               `json:"origin_network"`
	Height                uint64               `json:"height"`
	PrevLocalExitRoot     Digest               `json:"prev_local_exit_root"`
	PrevPessimisticRoot   Digest               `json:"prev_pessimistic_root"`
	BridgeExits           []BridgeExit         `json:"bridge_exits"`
	ImportedBridgeExits   []ImportedBridgeExit `json:"imported_bridge_exits"`
	L1InfoRoot            Digest               `json:"l1_info_root"`
	TargetLocalExitRoot   Digest               `json:"target_local_exit_root"`
	TargetPessimisticRoot Digest               `json:"target_pessimistic_root"`
	Signer                Address              `json:"signer"`
	Signature             hexutil.Bytes        `json:"signature"`
}

// ID returns a content identifier of the header's canonical encoding.
func (hdr *MultiBatchHeader[H]) ID() string {
	enc, err := rlp.EncodeToBytes(hdr)
	if err != nil {
		return ""
	}

	return ContentID(crypto.Keccak256Hash(enc))
}

// Clone returns a deep copy of hdr.
func (hdr *MultiBatchHeader[H]) Clone() *MultiBatchHeader[H] {
	out := *hdr
	out.BridgeExits = cloneExits(hdr.BridgeExits)
	out.ImportedBridgeExits = cloneImported(hdr.ImportedBridgeExits)
	out.Signature = append(hexutil.Bytes(nil), hdr.Signature...)

	return &out
}

// ProjectTargets applies the certificate's exits to a copy of state and
// returns the resulting local exit root and pessimistic root. Balance
// arithmetic wraps and claims are not checked: the result is only the
// target a valid batch must reach, validity is decided by GenerateProof.
func ProjectTargets[H hasher.Hasher](
	state NetworkState,
	cert *Certificate,
) (Digest, Digest, error) {
	s := state.Clone()

	for _, ie := range cert.ImportedBridgeExits {
		s.AddNullifier(ie.GlobalIndex.Nullifier())

		token := ie.BridgeExit.TokenInfo
		if !s.tracks(token) {
			continue
		}
		bal := s.Balance(token)
		bal.Add(bal, amountOrZero(ie.BridgeExit.Amount))
		s.SetBalance(token, bal)
	}

	for _, e := range cert.BridgeExits {
		if s.tracks(e.TokenInfo) {
			bal := s.Balance(e.TokenInfo)
			bal.Sub(bal, amountOrZero(e.Amount))
			s.SetBalance(e.TokenInfo, bal)
		}

		if err := AppendLeaf[H](&s.ExitTree, ExitHash[H](e)); err != nil {
			return Digest{}, Digest{}, err
		}
	}

	return LocalExitRoot[H](s), PessimisticRoot[H](s), nil
}
