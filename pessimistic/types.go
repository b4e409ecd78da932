// Package pessimistic implements the pessimistic proof state transition: a
// network's local state is advanced by a batch of imported and exported
// bridge exits, and the resulting roots are committed as ProofOutput.
package pessimistic

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weiihann/ppbench/pessimistic/hasher"
)

// Digest is a 32-byte tree node or commitment.
type Digest = common.Hash

// Address is a 20-byte account address.
type Address = common.Address

// TreeDepth is the depth of every Merkle tree used by the transition.
const TreeDepth = 32

// MerkleProof holds the sibling path from a leaf to the root.
type MerkleProof [TreeDepth]Digest

// LeafTypeAsset marks a token transfer leaf.
const LeafTypeAsset uint8 = 0

// TokenInfo identifies a token by its origin network and address there.
type TokenInfo struct {
	OriginNetwork      uint32  `json:"origin_network"`
	OriginTokenAddress Address `json:"origin_token_address"`
}

// BridgeExit is a single transfer leaving a network through the bridge.
type BridgeExit struct {
	LeafType    uint8        `json:"leaf_type"`
	TokenInfo   TokenInfo    `json:"token_info"`
	DestNetwork uint32       `json:"dest_network"`
	DestAddress Address      `json:"dest_address"`
	Amount      *uint256.Int `json:"amount"`
	Metadata    Digest       `json:"metadata"`
}

// Clone returns a deep copy of e.
func (e BridgeExit) Clone() BridgeExit {
	e.Amount = cloneAmount(e.Amount)
	return e
}

// leafBytes packs the exit the way the bridge contract does before hashing.
func (e BridgeExit) leafBytes() []byte {
	buf := make([]byte, 0, 1+4+20+4+20+32+32)
	buf = append(buf, e.LeafType)
	buf = binary.BigEndian.AppendUint32(buf, e.TokenInfo.OriginNetwork)
	buf = append(buf, e.TokenInfo.OriginTokenAddress[:]...)
	buf = binary.BigEndian.AppendUint32(buf, e.DestNetwork)
	buf = append(buf, e.DestAddress[:]...)
	amount := amountOrZero(e.Amount).Bytes32()
	buf = append(buf, amount[:]...)
	buf = append(buf, e.Metadata[:]...)

	return buf
}

// ExitHash returns the leaf hash of e under H.
func ExitHash[H hasher.Hasher](e BridgeExit) Digest {
	var h H
	return h.Sum(e.leafBytes())
}

// GlobalIndex locates an exit in the unified bridge: either in the mainnet
// exit tree or in the exit tree of a rollup.
type GlobalIndex struct {
	MainnetFlag bool   `json:"mainnet_flag"`
	RollupIndex uint32 `json:"rollup_index"`
	LeafIndex   uint32 `json:"leaf_index"`
}

// Nullifier returns the key that marks this index as claimed.
func (g GlobalIndex) Nullifier() Nullifier {
	return Nullifier(g)
}

func (g GlobalIndex) bytes() []byte {
	buf := make([]byte, 0, 9)
	if g.MainnetFlag {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint32(buf, g.RollupIndex)
	buf = binary.BigEndian.AppendUint32(buf, g.LeafIndex)

	return buf
}

// Nullifier marks an imported exit as consumed.
type Nullifier GlobalIndex

func (n Nullifier) less(o Nullifier) bool {
	if n.MainnetFlag != o.MainnetFlag {
		return n.MainnetFlag
	}
	if n.RollupIndex != o.RollupIndex {
		return n.RollupIndex < o.RollupIndex
	}

	return n.LeafIndex < o.LeafIndex
}

// Claim proves that an imported exit was settled on L1: the exit is a leaf
// of the origin network's local exit tree, and that tree's root is a leaf of
// the L1 info tree.
type Claim struct {
	L1InfoRoot          Digest      `json:"l1_info_root"`
	L1LeafIndex         uint32      `json:"l1_leaf_index"`
	OriginLocalExitRoot Digest      `json:"origin_local_exit_root"`
	ProofLeafLER        MerkleProof `json:"proof_leaf_ler"`
	ProofLERL1          MerkleProof `json:"proof_ler_l1"`
}

// ImportedBridgeExit is an exit from another network claimed by this one.
type ImportedBridgeExit struct {
	BridgeExit  BridgeExit  `json:"bridge_exit"`
	GlobalIndex GlobalIndex `json:"global_index"`
	Claim       Claim       `json:"claim"`
}

// Clone returns a deep copy of ie.
func (ie ImportedBridgeExit) Clone() ImportedBridgeExit {
	ie.BridgeExit = ie.BridgeExit.Clone()
	return ie
}

// ProofOutput is the public result committed by the state transition.
type ProofOutput struct {
	PrevLocalExitRoot   Digest `json:"prev_local_exit_root"`
	PrevPessimisticRoot Digest `json:"prev_pessimistic_root"`
	L1InfoRoot          Digest `json:"l1_info_root"`
	OriginNetwork       uint32 `json:"origin_network"`
	NewLocalExitRoot    Digest `json:"new_local_exit_root"`
	NewPessimisticRoot  Digest `json:"new_pessimistic_root"`
}

func cloneAmount(a *uint256.Int) *uint256.Int {
	if a == nil {
		return nil
	}

	return new(uint256.Int).Set(a)
}

func amountOrZero(a *uint256.Int) *uint256.Int {
	if a == nil {
		return new(uint256.Int)
	}

	return a
}

func cloneExits(exits []BridgeExit) []BridgeExit {
	if exits == nil {
		return nil
	}

	out := make([]BridgeExit, len(exits))
	for i, e := range exits {
		out[i] = e.Clone()
	}

	return out
}

func cloneImported(exits []ImportedBridgeExit) []ImportedBridgeExit {
	if exits == nil {
		return nil
	}

	out := make([]ImportedBridgeExit, len(exits))
	for i, e := range exits {
		out[i] = e.Clone()
	}

	return out
}
