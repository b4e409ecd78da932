// Package workload builds deterministic pessimistic proof fixtures: a prior
// network state, a certificate of imported and exported bridge exits applied
// on top of it, and the batch header every backend proves.
package workload

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/weiihann/ppbench/pessimistic"
)

// Fixture is the canonical input of a benchmark. It is never modified once
// built; backends receive clones of its state and header.
type Fixture struct {
	OldState    pessimistic.NetworkState `json:"initial_state"`
	Certificate *pessimistic.Certificate `json:"certificate"`
	Header      *Header                  `json:"multi_batch_header"`
}

// State returns a private copy of the prior network state.
func (f *Fixture) State() pessimistic.NetworkState {
	return f.OldState.Clone()
}

// BatchHeader returns a private copy of the batch header.
func (f *Fixture) BatchHeader() *Header {
	return f.Header.Clone()
}

// Summary contains statistics about the generated fixture.
type Summary struct {
	Exits               int
	ImportedExits       int
	CertificateID       string
	HeaderID            string
	Hash                string
	L1InfoRoot          pessimistic.Digest
	DefaultedL1InfoRoot bool
}

// Config controls fixture generation parameters.
type Config struct {
	NumExits         int
	NumImportedExits int
	SamplePath       string
}

// Generator produces deterministic fixtures from a Config.
type Generator struct {
	cfg Config
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate builds the fixture: sample events are cycled up to the requested
// counts, applied to the sample state, and a header is derived from the
// resulting certificate.
func (g *Generator) Generate() (*Fixture, Summary, error) {
	var summary Summary

	if g.cfg.NumExits < 0 || g.cfg.NumImportedExits < 0 {
		return nil, summary, fmt.Errorf("negative exit count")
	}

	exported, err := Events(g.cfg.NumExits, g.cfg.SamplePath)
	if err != nil {
		return nil, summary, fmt.Errorf("bridge exits: %w", err)
	}

	imported, err := Events(g.cfg.NumImportedExits, g.cfg.SamplePath)
	if err != nil {
		return nil, summary, fmt.Errorf("imported bridge exits: %w", err)
	}

	forest, err := SampleState()
	if err != nil {
		return nil, summary, fmt.Errorf("sample state: %w", err)
	}

	oldState := forest.State.Clone()

	cert, err := forest.ApplyEvents(imported, exported)
	if err != nil {
		return nil, summary, fmt.Errorf("apply events: %w", err)
	}

	l1InfoRoot, defaulted, err := ResolveL1InfoRoot(cert)
	if err != nil {
		return nil, summary, err
	}

	header, err := DeriveHeader(oldState, cert, forest.Signer(), l1InfoRoot)
	if err != nil {
		return nil, summary, err
	}

	summary = Summary{
		Exits:               len(cert.BridgeExits),
		ImportedExits:       len(cert.ImportedBridgeExits),
		CertificateID:       cert.ID(),
		HeaderID:            header.ID(),
		Hash:                Hasher{}.Name(),
		L1InfoRoot:          l1InfoRoot,
		DefaultedL1InfoRoot: defaulted,
	}

	return &Fixture{
		OldState:    oldState,
		Certificate: cert,
		Header:      header,
	}, summary, nil
}

// Events returns exactly n events taken cyclically, in order, from the
// sample sequence at path, or from the canonical sequence when path is
// empty. The path is read even when n is zero.
func Events(n int, path string) ([]Event, error) {
	var (
		samples []pessimistic.BridgeExit
		err     error
	)

	if path != "" {
		samples, err = LoadBridgeExits(path)
	} else {
		samples, err = CanonicalBridgeExits()
	}
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		s := samples[i%len(samples)]
		events = append(events, Event{Token: s.TokenInfo, Amount: s.Amount.Clone()})
	}

	return events, nil
}

// WriteFixture writes f as indented JSON to w.
func WriteFixture(w io.Writer, f *Fixture) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(f)
}

// ReadFixture decodes a fixture previously written by WriteFixture.
func ReadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode fixture: %v", ErrDataUnavailable, err)
	}

	if f.Certificate == nil || f.Header == nil {
		return nil, fmt.Errorf("%w: fixture misses certificate or header", ErrDataUnavailable)
	}

	return &f, nil
}
