package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/bench"
	"github.com/weiihann/ppbench/pessimistic"
)

func output(ler string) *pessimistic.ProofOutput {
	return &pessimistic.ProofOutput{
		OriginNetwork:    1,
		NewLocalExitRoot: common.HexToHash(ler),
	}
}

func TestGenerateMatchingOutputs(t *testing.T) {
	results := []bench.Result{
		{
			Backend:   "sp1",
			Engine:    "reference",
			Mode:      backend.ModeProve,
			LatencyMs: 1000,
			Cycles:    1_500_000,
			Output:    output("0xabc"),
			Verified:  true,
		},
		{
			Backend:   "risc0",
			Engine:    "reference",
			Mode:      backend.ModeProve,
			LatencyMs: 2000,
			Cycles:    2_000_000,
			Output:    output("0xabc"),
			Verified:  true,
		},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := buf.String()

	if !strings.Contains(out, "all match") {
		t.Error("expected 'all match' for matching outputs")
	}
	if !strings.Contains(out, "sp1") {
		t.Error("expected sp1 in output")
	}
	if !strings.Contains(out, "risc0") {
		t.Error("expected risc0 in output")
	}
	if !strings.Contains(out, "2.00x") {
		t.Error("expected 2.00x speedup for risc0 (twice as slow)")
	}
	if !strings.Contains(out, "1.5M") {
		t.Error("expected formatted cycle count")
	}
	if strings.Contains(out, "| Step |") {
		t.Error("unexpected failure table")
	}
}

func TestGenerateMismatchedOutputs(t *testing.T) {
	results := []bench.Result{
		{Backend: "openvm", LatencyMs: 100, Output: output("0xabc")},
		{
			Backend:   "valida",
			LatencyMs: 200,
			Output:    output("0xdef"),
			Step:      bench.StepCompare,
			Error:     "output differs",
			Err:       errors.New("output differs"),
		},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := buf.String()

	if !strings.Contains(out, "MISMATCH") {
		t.Error("expected MISMATCH for different outputs")
	}
	if !strings.Contains(out, common.HexToHash("0xabc").Hex()) {
		t.Error("expected openvm root in mismatch details")
	}
	if !strings.Contains(out, common.HexToHash("0xdef").Hex()) {
		t.Error("expected valida root in mismatch details")
	}
	if !strings.Contains(out, "FAILED (compare)") {
		t.Error("expected failed status for valida")
	}
}

func TestGenerateFailedRunsIgnoredForMatch(t *testing.T) {
	results := []bench.Result{
		{Backend: "sp1", LatencyMs: 100, Output: output("0xabc")},
		{
			Backend: "nexus",
			Step:    backend.StepRun,
			Error:   "nexus: run: guest | trapped\nat pc 0x40",
			Err:     errors.New("trapped"),
		},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := buf.String()

	if !strings.Contains(out, "all match") {
		t.Error("a run without output must not cause a mismatch")
	}
	if !strings.Contains(out, `guest \| trapped at pc 0x40`) {
		t.Errorf("error not escaped into the table:\n%s", out)
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(&buf, nil)
	if err == nil {
		t.Error("expected error for empty results")
	}
}

func TestGenerateJSON(t *testing.T) {
	results := []bench.Result{
		{Backend: "pico", Mode: backend.ModeExecute, LatencyMs: 1000, Output: output("0x1")},
	}

	var buf bytes.Buffer
	if err := GenerateJSON(&buf, results); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	var parsed []bench.Result
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if len(parsed) != 1 {
		t.Fatalf("expected 1 result, got %d", len(parsed))
	}
	if parsed[0].Backend != "pico" {
		t.Errorf("backend = %q, want pico", parsed[0].Backend)
	}
	if *parsed[0].Output != *results[0].Output {
		t.Error("output changed across JSON round trip")
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		input uint64
		want  string
	}{
		{0, "-"},
		{512, "512"},
		{1000, "1K"},
		{1500, "1.5K"},
		{2_000_000, "2M"},
		{3_300_000_000, "3.3G"},
	}

	for _, tt := range tests {
		got := formatCount(tt.input)
		if got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0ms"},
		{500, "500ms"},
		{999, "999ms"},
		{1000, "1.00s"},
		{1500, "1.50s"},
		{60000, "60.00s"},
	}

	for _, tt := range tests {
		got := formatMs(tt.input)
		if got != tt.want {
			t.Errorf("formatMs(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
