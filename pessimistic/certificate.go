package pessimistic

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ErrInconsistentL1InfoRoot is returned when the imported exits of a
// certificate are claimed against different L1 info roots.
var ErrInconsistentL1InfoRoot = errors.New("pessimistic: imported exits claim different l1 info roots")

// Certificate is the batch of exits a network proposes on top of its state.
type Certificate struct {
	NetworkID           uint32               `json:"network_id"`
	Height              uint64               `json:"height"`
	PrevLocalExitRoot   Digest               `json:"prev_local_exit_root"`
	NewLocalExitRoot    Digest               `json:"new_local_exit_root"`
	BridgeExits         []BridgeExit         `json:"bridge_exits"`
	ImportedBridgeExits []ImportedBridgeExit `json:"imported_bridge_exits"`
	Metadata            Digest               `json:"metadata"`
	Signature           hexutil.Bytes        `json:"signature"`
}

// L1InfoRoot returns the L1 info root the imported exits are claimed
// against, or nil when the certificate imports nothing.
func (c *Certificate) L1InfoRoot() (*Digest, error) {
	var root *Digest

	for i := range c.ImportedBridgeExits {
		claimed := c.ImportedBridgeExits[i].Claim.L1InfoRoot
		if root == nil {
			root = &claimed
			continue
		}
		if *root != claimed {
			return nil, fmt.Errorf("%w: %s and %s",
				ErrInconsistentL1InfoRoot, root.Hex(), claimed.Hex())
		}
	}

	return root, nil
}

// Commitment is the digest signed by the certificate's signer.
func (c *Certificate) Commitment() Digest {
	return SignatureCommitment(c.NetworkID, c.Height, c.NewLocalExitRoot, c.ImportedBridgeExits)
}

// Sign sets the signature over the certificate commitment.
func (c *Certificate) Sign(key *ecdsa.PrivateKey) error {
	commitment := c.Commitment()

	sig, err := crypto.Sign(commitment[:], key)
	if err != nil {
		return fmt.Errorf("sign certificate: %w", err)
	}
	c.Signature = sig

	return nil
}

// Hash returns the keccak-256 of the canonical encoding of c.
func (c *Certificate) Hash() Digest {
	enc, err := rlp.EncodeToBytes(c)
	if err != nil {
		// Every field type is RLP encodable.
		panic(fmt.Sprintf("encode certificate: %v", err))
	}

	return crypto.Keccak256Hash(enc)
}

// ID returns a content identifier for c. It is meant for logs and file
// names; nothing branches on it.
func (c *Certificate) ID() string {
	return ContentID(c.Hash())
}

// Clone returns a deep copy of c.
func (c *Certificate) Clone() *Certificate {
	out := *c
	out.BridgeExits = cloneExits(c.BridgeExits)
	out.ImportedBridgeExits = cloneImported(c.ImportedBridgeExits)
	out.Signature = append(hexutil.Bytes(nil), c.Signature...)

	return &out
}

// ContentID wraps a keccak-256 digest into a CIDv1 string.
func ContentID(d Digest) string {
	mh, err := multihash.Encode(d[:], multihash.KECCAK_256)
	if err != nil {
		return d.Hex()
	}

	return cid.NewCidV1(cid.Raw, mh).String()
}

// SignatureCommitment computes the digest a network signs for a batch.
func SignatureCommitment(
	networkID uint32,
	height uint64,
	newLocalExitRoot Digest,
	imported []ImportedBridgeExit,
) Digest {
	importedBytes := make([]byte, 0, len(imported)*(9+32))
	for _, ie := range imported {
		importedBytes = append(importedBytes, ie.GlobalIndex.bytes()...)
		importedBytes = append(importedBytes, crypto.Keccak256(ie.BridgeExit.leafBytes())...)
	}

	return crypto.Keccak256Hash(
		newLocalExitRoot[:],
		binary.BigEndian.AppendUint32(nil, networkID),
		binary.BigEndian.AppendUint64(nil, height),
		crypto.Keccak256(importedBytes),
	)
}

// RecoverSigner returns the address that produced sig over commitment.
func RecoverSigner(commitment Digest, sig []byte) (Address, error) {
	if len(sig) != crypto.SignatureLength {
		return Address{}, fmt.Errorf("signature length %d, want %d",
			len(sig), crypto.SignatureLength)
	}

	pub, err := crypto.SigToPub(commitment[:], sig)
	if err != nil {
		return Address{}, err
	}

	return crypto.PubkeyToAddress(*pub), nil
}
