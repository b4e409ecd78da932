// Package hasher defines the hash functions a batch header can be
// parameterized with.
package hasher

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Hasher is implemented by zero-size types so that the hash function can be
// named as a type parameter, e.g. MultiBatchHeader[hasher.Keccak256].
type Hasher interface {
	Name() string
	Sum(data ...[]byte) common.Hash
	Merge(left, right common.Hash) common.Hash
}

// Keccak256 is the legacy Keccak-256 used by the bridge contracts.
type Keccak256 struct{}

func (Keccak256) Name() string { return "keccak256" }

func (Keccak256) Sum(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}

	var out common.Hash
	h.Sum(out[:0])

	return out
}

func (k Keccak256) Merge(left, right common.Hash) common.Hash {
	return k.Sum(left[:], right[:])
}
