package pessimistic

import (
	"errors"

	"github.com/weiihann/ppbench/pessimistic/hasher"
)

// ErrTreeFull is returned when appending to a tree that holds 2^32-1 leaves.
var ErrTreeFull = errors.New("pessimistic: exit tree is full")

// LocalExitTree is the append-only exit tree of a network, stored as its
// frontier: for every level the last left-hand node still waiting for a
// right sibling.
type LocalExitTree struct {
	LeafCount uint32      `json:"leaf_count"`
	Frontier  MerkleProof `json:"frontier"`
}

// ZeroHashes returns the roots of empty subtrees for every level under H.
func ZeroHashes[H hasher.Hasher]() MerkleProof {
	var (
		h     H
		zeros MerkleProof
	)

	for i := 1; i < TreeDepth; i++ {
		zeros[i] = h.Merge(zeros[i-1], zeros[i-1])
	}

	return zeros
}

// AppendLeaf adds leaf at index LeafCount.
func AppendLeaf[H hasher.Hasher](t *LocalExitTree, leaf Digest) error {
	if t.LeafCount == ^uint32(0) {
		return ErrTreeFull
	}

	var h H

	node := leaf
	size := uint64(t.LeafCount) + 1

	for height := 0; height < TreeDepth; height++ {
		if (size>>height)&1 == 1 {
			t.Frontier[height] = node
			break
		}
		node = h.Merge(t.Frontier[height], node)
	}

	t.LeafCount++

	return nil
}

// ExitRoot returns the root of t under H.
func ExitRoot[H hasher.Hasher](t LocalExitTree) Digest {
	var h H

	zeros := ZeroHashes[H]()
	node := Digest{}
	size := uint64(t.LeafCount)

	for height := 0; height < TreeDepth; height++ {
		if (size>>height)&1 == 1 {
			node = h.Merge(t.Frontier[height], node)
		} else {
			node = h.Merge(node, zeros[height])
		}
	}

	return node
}

// VerifyMerkleProof reports whether leaf sits at index under root.
func VerifyMerkleProof[H hasher.Hasher](
	leaf Digest,
	proof MerkleProof,
	index uint32,
	root Digest,
) bool {
	var h H

	node := leaf
	for height := 0; height < TreeDepth; height++ {
		if (index>>height)&1 == 1 {
			node = h.Merge(proof[height], node)
		} else {
			node = h.Merge(node, proof[height])
		}
	}

	return node == root
}

// FullExitTree keeps every leaf so it can produce inclusion proofs. It is
// used to build claims; the transition itself only needs the frontier.
type FullExitTree[H hasher.Hasher] struct {
	leaves   []Digest
	frontier LocalExitTree
}

// Append adds a leaf and returns its index.
func (t *FullExitTree[H]) Append(leaf Digest) (uint32, error) {
	index := t.frontier.LeafCount
	if err := AppendLeaf[H](&t.frontier, leaf); err != nil {
		return 0, err
	}
	t.leaves = append(t.leaves, leaf)

	return index, nil
}

// Len returns the number of leaves.
func (t *FullExitTree[H]) Len() uint32 { return t.frontier.LeafCount }

// Root returns the current root.
func (t *FullExitTree[H]) Root() Digest { return ExitRoot[H](t.frontier) }

// Proof returns the sibling path of the leaf at index.
func (t *FullExitTree[H]) Proof(index uint32) (MerkleProof, error) {
	if index >= t.frontier.LeafCount {
		return MerkleProof{}, errors.New("pessimistic: leaf index out of range")
	}

	var (
		h     H
		proof MerkleProof
	)

	zeros := ZeroHashes[H]()
	level := append([]Digest(nil), t.leaves...)
	pos := index

	for height := 0; height < TreeDepth; height++ {
		sibling := pos ^ 1
		if int(sibling) < len(level) {
			proof[height] = level[sibling]
		} else {
			proof[height] = zeros[height]
		}

		next := make([]Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := zeros[height]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, h.Merge(level[i], right))
		}

		level = next
		pos >>= 1
	}

	return proof, nil
}

// merkleRoot hashes leaves pairwise up to a single root, padding odd levels
// with the zero digest. An empty set has the zero root.
func merkleRoot[H hasher.Hasher](leaves []Digest) Digest {
	if len(leaves) == 0 {
		return Digest{}
	}

	var h H

	level := append([]Digest(nil), leaves...)
	for len(level) > 1 {
		next := make([]Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := Digest{}
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, h.Merge(level[i], right))
		}
		level = next
	}

	return level[0]
}
