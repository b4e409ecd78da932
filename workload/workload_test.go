package workload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/weiihann/ppbench/pessimistic"
)

func TestGenerateDeterministic(t *testing.T) {
	cfg := Config{NumExits: 7, NumImportedExits: 3}

	fx1, sum1, err := NewGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("first generation failed: %v", err)
	}

	fx2, sum2, err := NewGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("second generation failed: %v", err)
	}

	h1, err := rlp.EncodeToBytes(fx1.Header)
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	h2, err := rlp.EncodeToBytes(fx2.Header)
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}

	if !bytes.Equal(h1, h2) {
		t.Error("headers are not byte-identical for the same config")
	}

	if sum1 != sum2 {
		t.Errorf("summaries differ: %+v vs %+v", sum1, sum2)
	}
}

func TestGenerateCounts(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantExits    int
		wantImported int
	}{
		{
			name:         "ten and ten",
			cfg:          Config{NumExits: 10, NumImportedExits: 10},
			wantExits:    10,
			wantImported: 10,
		},
		{
			name:         "exports only",
			cfg:          Config{NumExits: 4},
			wantExits:    4,
			wantImported: 0,
		},
		{
			name:         "empty batch",
			cfg:          Config{},
			wantExits:    0,
			wantImported: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx, sum, err := NewGenerator(tt.cfg).Generate()
			if err != nil {
				t.Fatalf("generation failed: %v", err)
			}

			if sum.Exits != tt.wantExits {
				t.Errorf("exits: got %d, want %d", sum.Exits, tt.wantExits)
			}
			if sum.ImportedExits != tt.wantImported {
				t.Errorf("imported exits: got %d, want %d",
					sum.ImportedExits, tt.wantImported)
			}
			if sum.Hash != "keccak256" {
				t.Errorf("hash: got %q, want keccak256", sum.Hash)
			}
			if len(fx.Header.BridgeExits) != tt.wantExits {
				t.Errorf("header exits: got %d, want %d",
					len(fx.Header.BridgeExits), tt.wantExits)
			}
		})
	}
}

func TestEventsCycleInOrder(t *testing.T) {
	samples, err := CanonicalBridgeExits()
	if err != nil {
		t.Fatalf("canonical samples: %v", err)
	}

	n := 2*len(samples) + 1

	events, err := Events(n, "")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(events) != n {
		t.Fatalf("len(events) = %d, want %d", len(events), n)
	}

	for i, ev := range events {
		want := samples[i%len(samples)]
		if ev.Token != want.TokenInfo {
			t.Errorf("event %d token = %+v, want %+v", i, ev.Token, want.TokenInfo)
		}
		if !ev.Amount.Eq(want.Amount) {
			t.Errorf("event %d amount = %s, want %s", i, ev.Amount, want.Amount)
		}
	}
}

func TestEventsCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exits.json")
	data := `[{"origNetwork": 0,
		"tokenAddress": "0x00000000000000000000000000000000000000f1",
		"amount": "7", "destNetwork": 1,
		"destAddress": "0x00000000000000000000000000000000000000f2"}]`

	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write sample file: %v", err)
	}

	events, err := Events(3, path)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Amount.Uint64() != 7 {
			t.Errorf("event %d amount = %s, want 7", i, ev.Amount)
		}
	}
}

func TestGenerateMissingSamplePath(t *testing.T) {
	cfg := Config{
		NumExits:         10,
		NumImportedExits: 10,
		SamplePath:       filepath.Join(t.TempDir(), "does-not-exist.json"),
	}

	fx, _, err := NewGenerator(cfg).Generate()
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if errors.Is(err, ErrHeaderDerivation) {
		t.Error("missing sample data reported as header derivation failure")
	}
	if fx != nil {
		t.Error("expected no fixture")
	}
}

func TestLoadBridgeExitsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"empty list", "[]"},
		{"bad amount", `[{"tokenAddress": "0x0000000000000000000000000000000000000001", "amount": "lots"}]`},
		{"bad address", `[{"tokenAddress": "0x12", "amount": "1"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "exits.json")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatalf("write sample file: %v", err)
			}

			_, err := LoadBridgeExits(path)
			if !errors.Is(err, ErrDataUnavailable) {
				t.Errorf("err = %v, want ErrDataUnavailable", err)
			}
		})
	}
}

func TestL1InfoRootResolution(t *testing.T) {
	fx, sum, err := NewGenerator(Config{NumExits: 2}).Generate()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	if !sum.DefaultedL1InfoRoot {
		t.Error("expected the zero root fallback without imported exits")
	}
	if fx.Header.L1InfoRoot != (pessimistic.Digest{}) {
		t.Errorf("l1 info root = %s, want zero", fx.Header.L1InfoRoot.Hex())
	}

	fx, sum, err = NewGenerator(Config{NumExits: 2, NumImportedExits: 2}).Generate()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	claimed, err := fx.Certificate.L1InfoRoot()
	if err != nil || claimed == nil {
		t.Fatalf("certificate l1 info root = %v, %v", claimed, err)
	}
	if sum.DefaultedL1InfoRoot {
		t.Error("fallback taken although exits were imported")
	}
	if fx.Header.L1InfoRoot != *claimed {
		t.Errorf("header l1 info root = %s, want %s",
			fx.Header.L1InfoRoot.Hex(), claimed.Hex())
	}
}

func TestResolveL1InfoRootInconsistent(t *testing.T) {
	fx, _, err := NewGenerator(Config{NumImportedExits: 2}).Generate()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	cert := fx.Certificate.Clone()
	cert.ImportedBridgeExits[1].Claim.L1InfoRoot[0] ^= 0xff

	if _, _, err := ResolveL1InfoRoot(cert); !errors.Is(err, ErrHeaderDerivation) {
		t.Errorf("err = %v, want ErrHeaderDerivation", err)
	}
}

func TestDeriveHeaderRejectsForeignState(t *testing.T) {
	fx, _, err := NewGenerator(Config{NumExits: 1}).Generate()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	other := fx.State()
	other.NetworkID = 9

	_, err = DeriveHeader(other, fx.Certificate, fx.Header.Signer, fx.Header.L1InfoRoot)
	if !errors.Is(err, ErrHeaderDerivation) {
		t.Errorf("err = %v, want ErrHeaderDerivation", err)
	}
}

func TestApplyEventsLeavesOldStateIntact(t *testing.T) {
	forest, err := SampleState()
	if err != nil {
		t.Fatalf("sample state: %v", err)
	}

	old := forest.State.Clone()
	before, err := rlp.EncodeToBytes(old)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}

	events, err := Events(5, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	if _, err := forest.ApplyEvents(events, events); err != nil {
		t.Fatalf("ApplyEvents failed: %v", err)
	}

	after, err := rlp.EncodeToBytes(old)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}

	if !bytes.Equal(before, after) {
		t.Error("ApplyEvents mutated the previously cloned state")
	}
}

func TestFixtureJSONRoundTrip(t *testing.T) {
	fx, _, err := NewGenerator(Config{NumExits: 3, NumImportedExits: 2}).Generate()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteFixture(&buf, fx); err != nil {
		t.Fatalf("WriteFixture failed: %v", err)
	}

	parsed, err := ReadFixture(&buf)
	if err != nil {
		t.Fatalf("ReadFixture failed: %v", err)
	}

	want, _ := rlp.EncodeToBytes(fx.Header)
	got, _ := rlp.EncodeToBytes(parsed.Header)

	if !bytes.Equal(got, want) {
		t.Error("header bytes changed across JSON round trip")
	}
	if parsed.Certificate.ID() != fx.Certificate.ID() {
		t.Errorf("certificate id = %s, want %s",
			parsed.Certificate.ID(), fx.Certificate.ID())
	}
}
