// Package harness runs external host prover binaries. A host reads a JSON
// request on stdin, drives its backend, and writes one JSON Result on
// stdout:
//
//	<host> --mode execute|prove|setup|verify --backend <name> --elf <path>
package harness

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/codec"
	"github.com/weiihann/ppbench/pessimistic"
)

// Modes understood by a host binary besides backend.ModeExecute and
// backend.ModeProve.
const (
	ModeSetup  = "setup"
	ModeVerify = "verify"
)

// Result holds the structured output from a host execution.
type Result struct {
	Backend         string             `json:"backend"`
	Mode            string             `json:"mode"`
	Output          codec.Output       `json:"output"`
	ProgramID       pessimistic.Digest `json:"program_id"`
	InputDigest     pessimistic.Digest `json:"input_digest"`
	Proof           hexutil.Bytes      `json:"proof,omitempty"`
	VerifyingKey    hexutil.Bytes      `json:"verifying_key,omitempty"`
	Verified        bool               `json:"verified"`
	Error           string             `json:"error,omitempty"`
	Cycles          uint64             `json:"cycles"`
	ElapsedMs       int64              `json:"elapsed_ms"`
	PeakMemoryBytes uint64             `json:"peak_memory_bytes"`
}

// VerifyRequest is the stdin document of a verify call.
type VerifyRequest struct {
	Receipt      *backend.Receipt     `json:"receipt"`
	VerifyingKey backend.VerifyingKey `json:"verifying_key"`
}
