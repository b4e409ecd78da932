// Package bench validates a fixture locally and then runs it through any
// number of backends, timing the execute or prove step of each.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/metrics"
	"github.com/weiihann/ppbench/pessimistic"
	"github.com/weiihann/ppbench/workload"
)

// Steps the driver adds to the adapter's own.
const (
	StepCompare = "compare"
	StepPersist = "persist"
)

// ErrOutputMismatch is returned when a backend commits an output that
// differs from the local run of the state transition.
var ErrOutputMismatch = errors.New("bench: backend output differs from local validation")

// Validate runs the state transition off-VM. A fixture it rejects must not
// reach any backend.
func Validate(fx *workload.Fixture) (*pessimistic.ProofOutput, error) {
	out, err := pessimistic.GenerateProof(fx.State(), fx.BatchHeader())
	if err != nil {
		return nil, fmt.Errorf("local validation: %w", err)
	}

	return out, nil
}

// Job is one backend to run.
type Job struct {
	Spec    backend.Spec
	Program *backend.Program
	Engine  backend.Engine
}

// Result is the outcome of one job.
type Result struct {
	Backend   string                   `json:"backend"`
	Engine    string                   `json:"engine"`
	Mode      backend.Mode             `json:"mode"`
	Latency   time.Duration            `json:"-"`
	LatencyMs int64                    `json:"latency_ms"`
	Cycles    uint64                   `json:"cycles"`
	Output    *pessimistic.ProofOutput `json:"output,omitempty"`
	Verified  bool                     `json:"verified"`
	Step      string                   `json:"failed_step,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Path      string                   `json:"path,omitempty"`
	Err       error                    `json:"-"`
}

// OK reports whether the job completed every step.
func (r *Result) OK() bool { return r.Err == nil }

// Summary is the outcome of a driver run.
type Summary struct {
	CertificateID string                   `json:"certificate_id"`
	HeaderID      string                   `json:"header_id"`
	Expected      *pessimistic.ProofOutput `json:"expected"`
	Results       []Result                 `json:"results"`
}

// Failed returns the results that did not complete.
func (s *Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}

	return out
}

// Driver runs jobs against one fixture.
type Driver struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Store   *Store
	Mode    backend.Mode
	// Timeout bounds each engine call. Zero waits forever.
	Timeout time.Duration
	// Parallel is the number of jobs run at once. Values below 1 mean 1.
	Parallel int
}

// Run validates fx and, only if that succeeds, runs every job. Job
// failures are reported in the summary and never stop other jobs; the
// returned error is reserved for failures before any job started.
func (d *Driver) Run(ctx context.Context, fx *workload.Fixture, jobs []Job) (*Summary, error) {
	expected, err := Validate(fx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		CertificateID: fx.Certificate.ID(),
		HeaderID:      fx.Header.ID(),
		Expected:      expected,
		Results:       make([]Result, len(jobs)),
	}

	limit := d.Parallel
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			summary.Results[i] = d.runJob(ctx, fx, expected, job)
			return nil
		})
	}

	_ = g.Wait()

	return summary, nil
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}

	return d.Logger
}

func (d *Driver) runJob(
	ctx context.Context,
	fx *workload.Fixture,
	expected *pessimistic.ProofOutput,
	job Job,
) Result {
	logger := d.logger().With(
		slog.String("backend", job.Spec.Name),
		slog.String("engine", job.Engine.Name()),
	)

	res := Result{
		Backend: job.Spec.Name,
		Engine:  job.Engine.Name(),
		Mode:    d.Mode,
	}

	fail := func(step string, err error) Result {
		var stepErr *backend.StepError
		if errors.As(err, &stepErr) {
			step = stepErr.Step
		} else {
			err = &backend.StepError{Backend: job.Spec.Name, Step: step, Err: err}
		}

		res.Step = step
		res.Err = err
		res.Error = err.Error()

		if d.Metrics != nil {
			d.Metrics.ObserveFailure(job.Spec.Name, step)
		}

		logger.ErrorContext(ctx, "backend run failed",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)

		return res
	}

	a := backend.NewAdapter(job.Spec, job.Program, WithTimeout(job.Engine, d.Timeout))

	in, err := a.Encode(fx.State(), fx.BatchHeader())
	if err != nil {
		return fail(backend.StepEncode, err)
	}

	logger.InfoContext(ctx, "running backend",
		slog.String("mode", string(d.Mode)),
		slog.String("input_format", in.Format),
		slog.Int("input_bytes", in.Size()),
	)

	stats, err := a.Run(ctx, d.Mode)
	res.Latency = stats.Latency
	res.LatencyMs = stats.Latency.Milliseconds()
	res.Cycles = stats.Cycles
	if err != nil {
		return fail(backend.StepRun, err)
	}

	out, err := a.Decode()
	if err != nil {
		return fail(backend.StepDecode, err)
	}
	res.Output = out

	if d.Mode == backend.ModeProve {
		if err := a.Verify(ctx); err != nil {
			return fail(backend.StepVerify, err)
		}
		res.Verified = true
	}

	if *out != *expected {
		return fail(StepCompare, fmt.Errorf("%w: new local exit root %s, want %s",
			ErrOutputMismatch, out.NewLocalExitRoot.Hex(), expected.NewLocalExitRoot.Hex()))
	}

	if err := a.Finish(); err != nil {
		return fail(StepCompare, err)
	}

	if d.Store != nil {
		path, err := d.Store.Save(&Record{
			CertificateID: fx.Certificate.ID(),
			HeaderID:      fx.Header.ID(),
			Backend:       job.Spec.Name,
			Engine:        job.Engine.Name(),
			Mode:          d.Mode,
			Exits:         len(fx.Header.BridgeExits),
			ImportedExits: len(fx.Header.ImportedBridgeExits),
			LatencyMs:     res.LatencyMs,
			Cycles:        res.Cycles,
			Certificate:   fx.Certificate,
			Outputs:       out,
			Receipt:       a.Receipt(),
		})
		if err != nil {
			return fail(StepPersist, err)
		}
		res.Path = path
	}

	if d.Metrics != nil {
		d.Metrics.ObserveRun(job.Spec.Name, string(d.Mode), res.Latency, res.Cycles)
	}

	logger.InfoContext(ctx, "backend run complete",
		slog.Duration("latency", res.Latency),
		slog.Uint64("cycles", res.Cycles),
		slog.String("new_local_exit_root", out.NewLocalExitRoot.Hex()),
	)

	return res
}
