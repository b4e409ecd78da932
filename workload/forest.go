package workload

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/weiihann/ppbench/pessimistic"
	"github.com/weiihann/ppbench/pessimistic/hasher"
)

// Hasher is the hash function every fixture is built with.
type Hasher = hasher.Keccak256

// Header is the batch header type handed to every backend.
type Header = pessimistic.MultiBatchHeader[Hasher]

const (
	// SampleNetworkID is the network whose batch is proven.
	SampleNetworkID uint32 = 1

	// sampleSignerKey signs every sample certificate.
	sampleSignerKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

// Event is a single token movement used to build bridge exits.
type Event struct {
	Token  pessimistic.TokenInfo
	Amount *uint256.Int
}

// Forest holds the evolving state of the sample network together with the
// trees needed to build claims for imported exits: the mainnet exit tree
// they originate from and the L1 info tree it is settled into.
type Forest struct {
	State pessimistic.NetworkState

	mainnet   pessimistic.FullExitTree[Hasher]
	l1Info    pessimistic.FullExitTree[Hasher]
	key       *ecdsa.PrivateKey
	recipient pessimistic.Address
	height    uint64
}

// SampleState returns the forest every benchmark starts from: network 1
// with an empty exit tree and every canonical sample token pre-funded.
func SampleState() (*Forest, error) {
	key, err := crypto.HexToECDSA(sampleSignerKey)
	if err != nil {
		return nil, fmt.Errorf("load signer key: %w", err)
	}

	samples, err := CanonicalBridgeExits()
	if err != nil {
		return nil, err
	}

	f := &Forest{
		State:     pessimistic.NetworkState{NetworkID: SampleNetworkID},
		key:       key,
		recipient: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}

	funding := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(30))
	for _, s := range samples {
		if s.TokenInfo.OriginNetwork == SampleNetworkID {
			continue
		}
		f.State.SetBalance(s.TokenInfo, funding)
	}

	return f, nil
}

// Signer returns the address that signs the forest's certificates.
func (f *Forest) Signer() pessimistic.Address {
	return crypto.PubkeyToAddress(f.key.PublicKey)
}

// ApplyEvents turns the events into a signed certificate and advances the
// forest's state past it. The state held before the call is not aliased by
// the new state, so a clone taken beforehand stays valid.
func (f *Forest) ApplyEvents(imported, exported []Event) (*pessimistic.Certificate, error) {
	f.State = f.State.Clone()

	prevLER := pessimistic.LocalExitRoot[Hasher](f.State)

	importedExits, err := f.importEvents(imported)
	if err != nil {
		return nil, err
	}

	bridgeExits := make([]pessimistic.BridgeExit, 0, len(exported))

	for _, ev := range exported {
		exit := pessimistic.BridgeExit{
			LeafType:    pessimistic.LeafTypeAsset,
			TokenInfo:   ev.Token,
			DestNetwork: 0,
			DestAddress: f.recipient,
			Amount:      new(uint256.Int).Set(ev.Amount),
		}

		if ev.Token.OriginNetwork != f.State.NetworkID {
			bal := f.State.Balance(ev.Token)
			bal.Sub(bal, ev.Amount)
			f.State.SetBalance(ev.Token, bal)
		}

		if err := pessimistic.AppendLeaf[Hasher](&f.State.ExitTree, pessimistic.ExitHash[Hasher](exit)); err != nil {
			return nil, fmt.Errorf("append bridge exit: %w", err)
		}

		bridgeExits = append(bridgeExits, exit)
	}

	cert := &pessimistic.Certificate{
		NetworkID:           f.State.NetworkID,
		Height:              f.height,
		PrevLocalExitRoot:   prevLER,
		NewLocalExitRoot:    pessimistic.LocalExitRoot[Hasher](f.State),
		BridgeExits:         bridgeExits,
		ImportedBridgeExits: importedExits,
	}

	if err := cert.Sign(f.key); err != nil {
		return nil, err
	}

	f.height++

	return cert, nil
}

// importEvents settles the events on mainnet, records the mainnet exit
// root in the L1 info tree and returns the claims for them.
func (f *Forest) importEvents(events []Event) ([]pessimistic.ImportedBridgeExit, error) {
	if len(events) == 0 {
		return nil, nil
	}

	exits := make([]pessimistic.BridgeExit, len(events))
	indices := make([]uint32, len(events))

	for i, ev := range events {
		exits[i] = pessimistic.BridgeExit{
			LeafType:    pessimistic.LeafTypeAsset,
			TokenInfo:   ev.Token,
			DestNetwork: f.State.NetworkID,
			DestAddress: f.recipient,
			Amount:      new(uint256.Int).Set(ev.Amount),
		}

		idx, err := f.mainnet.Append(pessimistic.ExitHash[Hasher](exits[i]))
		if err != nil {
			return nil, fmt.Errorf("settle imported exit: %w", err)
		}
		indices[i] = idx
	}

	originLER := f.mainnet.Root()

	l1Index, err := f.l1Info.Append(pessimistic.L1InfoLeaf[Hasher](originLER))
	if err != nil {
		return nil, fmt.Errorf("record exit root: %w", err)
	}

	l1Proof, err := f.l1Info.Proof(l1Index)
	if err != nil {
		return nil, err
	}

	l1Root := f.l1Info.Root()
	imported := make([]pessimistic.ImportedBridgeExit, len(events))

	for i := range events {
		proof, err := f.mainnet.Proof(indices[i])
		if err != nil {
			return nil, err
		}

		global := pessimistic.GlobalIndex{MainnetFlag: true, LeafIndex: indices[i]}
		imported[i] = pessimistic.ImportedBridgeExit{
			BridgeExit:  exits[i],
			GlobalIndex: global,
			Claim: pessimistic.Claim{
				L1InfoRoot:          l1Root,
				L1LeafIndex:         l1Index,
				OriginLocalExitRoot: originLER,
				ProofLeafLER:        proof,
				ProofLERL1:          l1Proof,
			},
		}

		f.State.AddNullifier(global.Nullifier())

		if exits[i].TokenInfo.OriginNetwork != f.State.NetworkID {
			bal := f.State.Balance(exits[i].TokenInfo)
			bal.Add(bal, exits[i].Amount)
			f.State.SetBalance(exits[i].TokenInfo, bal)
		}
	}

	return imported, nil
}
