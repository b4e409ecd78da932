// Package report formats benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/weiihann/ppbench/bench"
)

// Generate writes a markdown comparison table for the given results.
func Generate(w io.Writer, results []bench.Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	outputMatch := checkOutputs(results)
	fastestMs := findFastest(results)

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	if outputMatch {
		fmt.Fprintln(w, "Proof outputs: **all match**")
	} else {
		fmt.Fprintln(w, "Proof outputs: **MISMATCH**")

		for _, r := range results {
			if r.Output == nil {
				continue
			}
			fmt.Fprintf(w, "  - %s: %s\n", r.Backend, r.Output.NewLocalExitRoot.Hex())
		}
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Backend | Engine | Mode | Latency | Cycles "+
		"| Verified | Speedup | Status |")
	fmt.Fprintln(w, "|---------|--------|------|---------|--------"+
		"|----------|---------|--------|")

	for _, r := range results {
		speedup := "-"
		if r.OK() && fastestMs > 0 && r.LatencyMs > 0 {
			speedup = fmt.Sprintf("%.2fx", float64(r.LatencyMs)/float64(fastestMs))
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			r.Backend,
			r.Engine,
			r.Mode,
			formatMs(r.LatencyMs),
			formatCount(r.Cycles),
			formatBool(r.Verified),
			speedup,
			status(r),
		)
	}

	if failed := failures(results); len(failed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Backend | Step | Error |")
		fmt.Fprintln(w, "|---------|------|-------|")

		for _, r := range failed {
			fmt.Fprintf(w, "| %s | %s | %s |\n",
				r.Backend, r.Step, escape(r.Error))
		}
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []bench.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

// checkOutputs reports whether every backend that produced an output
// produced the same one.
func checkOutputs(results []bench.Result) bool {
	var first *bench.Result
	for i := range results {
		r := &results[i]
		if r.Output == nil {
			continue
		}
		if first == nil {
			first = r
			continue
		}
		if *r.Output != *first.Output {
			return false
		}
	}

	return true
}

func failures(results []bench.Result) []bench.Result {
	var out []bench.Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}

	return out
}

func findFastest(results []bench.Result) int64 {
	fastest := int64(math.MaxInt64)
	for _, r := range results {
		if r.OK() && r.LatencyMs > 0 && r.LatencyMs < fastest {
			fastest = r.LatencyMs
		}
	}

	if fastest == math.MaxInt64 {
		return 0
	}

	return fastest
}

func status(r bench.Result) string {
	if r.OK() {
		return "ok"
	}

	return "FAILED (" + r.Step + ")"
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}

	return "-"
}

func formatCount(n uint64) string {
	if n == 0 {
		return "-"
	}

	units := []string{"", "K", "M", "G"}
	size := float64(n)
	unit := 0

	for size >= 1000 && unit < len(units)-1 {
		size /= 1000
		unit++
	}

	if unit == 0 {
		return fmt.Sprintf("%d", n)
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + units[unit]
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
