package pessimistic

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/holiman/uint256"

	"github.com/weiihann/ppbench/pessimistic/hasher"
)

// TokenBalance is one entry of the balance tree.
type TokenBalance struct {
	Token  TokenInfo    `json:"token"`
	Amount *uint256.Int `json:"amount"`
}

// NetworkState is the local state of one network prior to a batch. It is a
// plain value: balances and nullifiers are kept sorted so that the wire
// encoding is canonical.
type NetworkState struct {
	NetworkID  uint32         `json:"network_id"`
	ExitTree   LocalExitTree  `json:"exit_tree"`
	Balances   []TokenBalance `json:"balances"`
	Nullifiers []Nullifier    `json:"nullifiers"`
}

// Clone returns a copy of s that shares no mutable memory with it.
func (s NetworkState) Clone() NetworkState {
	out := NetworkState{
		NetworkID: s.NetworkID,
		ExitTree:  s.ExitTree,
	}

	if s.Balances != nil {
		out.Balances = make([]TokenBalance, len(s.Balances))
		for i, b := range s.Balances {
			out.Balances[i] = TokenBalance{Token: b.Token, Amount: cloneAmount(b.Amount)}
		}
	}

	if s.Nullifiers != nil {
		out.Nullifiers = append([]Nullifier(nil), s.Nullifiers...)
	}

	return out
}

// Balance returns the tracked balance of token, zero when untracked.
func (s *NetworkState) Balance(token TokenInfo) *uint256.Int {
	if i, ok := s.findBalance(token); ok {
		return new(uint256.Int).Set(amountOrZero(s.Balances[i].Amount))
	}

	return new(uint256.Int)
}

// SetBalance stores amount for token, keeping the balances sorted.
func (s *NetworkState) SetBalance(token TokenInfo, amount *uint256.Int) {
	i, ok := s.findBalance(token)
	if ok {
		s.Balances[i].Amount = cloneAmount(amount)
		return
	}

	s.Balances = append(s.Balances, TokenBalance{})
	copy(s.Balances[i+1:], s.Balances[i:])
	s.Balances[i] = TokenBalance{Token: token, Amount: cloneAmount(amount)}
}

// AddNullifier marks n as consumed. It reports false if n was present.
func (s *NetworkState) AddNullifier(n Nullifier) bool {
	i, ok := s.findNullifier(n)
	if ok {
		return false
	}

	s.Nullifiers = append(s.Nullifiers, Nullifier{})
	copy(s.Nullifiers[i+1:], s.Nullifiers[i:])
	s.Nullifiers[i] = n

	return true
}

// tracks reports whether the balance of token is accounted for. Tokens
// native to this network can be minted freely and are not tracked.
func (s *NetworkState) tracks(token TokenInfo) bool {
	return token.OriginNetwork != s.NetworkID
}

func (s *NetworkState) findBalance(token TokenInfo) (int, bool) {
	i := sort.Search(len(s.Balances), func(i int) bool {
		return !tokenLess(s.Balances[i].Token, token)
	})

	return i, i < len(s.Balances) && s.Balances[i].Token == token
}

func (s *NetworkState) findNullifier(n Nullifier) (int, bool) {
	i := sort.Search(len(s.Nullifiers), func(i int) bool {
		return !s.Nullifiers[i].less(n)
	})

	return i, i < len(s.Nullifiers) && s.Nullifiers[i] == n
}

func tokenLess(a, b TokenInfo) bool {
	if a.OriginNetwork != b.OriginNetwork {
		return a.OriginNetwork < b.OriginNetwork
	}

	return bytes.Compare(a.OriginTokenAddress[:], b.OriginTokenAddress[:]) < 0
}

// LocalExitRoot returns the root of the network's exit tree under H.
func LocalExitRoot[H hasher.Hasher](s NetworkState) Digest {
	return ExitRoot[H](s.ExitTree)
}

// BalanceRoot commits to every tracked balance.
func BalanceRoot[H hasher.Hasher](s NetworkState) Digest {
	var h H

	leaves := make([]Digest, 0, len(s.Balances))
	for _, b := range s.Balances {
		amount := amountOrZero(b.Amount).Bytes32()
		leaves = append(leaves, h.Sum(
			binary.BigEndian.AppendUint32(nil, b.Token.OriginNetwork),
			b.Token.OriginTokenAddress[:],
			amount[:],
		))
	}

	return merkleRoot[H](leaves)
}

// NullifierRoot commits to every consumed imported exit.
func NullifierRoot[H hasher.Hasher](s NetworkState) Digest {
	var h H

	leaves := make([]Digest, 0, len(s.Nullifiers))
	for _, n := range s.Nullifiers {
		leaves = append(leaves, h.Sum(GlobalIndex(n).bytes()))
	}

	return merkleRoot[H](leaves)
}

// PessimisticRoot binds the balance and nullifier roots together.
func PessimisticRoot[H hasher.Hasher](s NetworkState) Digest {
	var h H
	return h.Merge(BalanceRoot[H](s), NullifierRoot[H](s))
}
