// Reference host reads a request from stdin, runs the pessimistic proof
// guest in process with the conventions of the requested backend, and
// writes a harness result as JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/codec"
	"github.com/weiihann/ppbench/harness"
)

func main() {
	mode := flag.String("mode", "execute", "execute, prove, setup or verify")
	name := flag.String("backend", "", "backend whose conventions the guest uses")
	elf := flag.String("elf", "", "guest binary")
	flag.Parse()

	if *name == "" {
		fatal("--backend flag is required")
	}

	ctx := context.Background()
	engine := backend.NewReferenceEngine()
	start := time.Now()

	r := harness.Result{Backend: *name, Mode: *mode}

	switch *mode {
	case harness.ModeVerify:
		var req harness.VerifyRequest
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			fatal("decode verify request: %v", err)
		}

		if err := engine.Verify(ctx, req.Receipt, req.VerifyingKey); err != nil {
			r.Error = err.Error()
		} else {
			r.Verified = true
		}

	case harness.ModeSetup:
		prog := loadProgram(*name, *elf)

		vk, err := engine.Setup(ctx, prog)
		if err != nil {
			fatal("setup: %v", err)
		}
		r.ProgramID = prog.ID()
		r.VerifyingKey = vk

	case string(backend.ModeExecute), string(backend.ModeProve):
		prog := loadProgram(*name, *elf)

		var in codec.Input
		if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
			fatal("decode input: %v", err)
		}

		r.ProgramID = prog.ID()
		r.InputDigest = backend.InputDigest(in)

		if *mode == string(backend.ModeExecute) {
			exec, err := engine.Execute(ctx, prog, in)
			if err != nil {
				r.Error = err.Error()
				break
			}
			r.Output = exec.Output
			r.Cycles = exec.Cycles
		} else {
			receipt, err := engine.Prove(ctx, prog, in)
			if err != nil {
				r.Error = err.Error()
				break
			}
			r.Output = receipt.Output
			r.Cycles = receipt.Cycles
			r.Proof = receipt.Seal
		}

	default:
		fatal("unknown mode %q", *mode)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.ElapsedMs = time.Since(start).Milliseconds()
	r.PeakMemoryBytes = m.Sys

	if err := json.NewEncoder(os.Stdout).Encode(r); err != nil {
		fatal("encode result: %v", err)
	}
}

func loadProgram(name, path string) *backend.Program {
	if path == "" {
		fatal("--elf flag is required")
	}

	prog, err := backend.LoadProgram(name, path)
	if err != nil {
		fatal("%v", err)
	}

	return prog
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "reference-host: "+format+"\n", args...)
	os.Exit(1)
}
