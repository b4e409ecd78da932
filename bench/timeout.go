package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiihann/ppbench/backend"
	"github.com/weiihann/ppbench/codec"
)

// ErrTimeout is returned when an engine call outlives the driver's timeout.
var ErrTimeout = errors.New("bench: engine call timed out")

// WithTimeout bounds every call of e by d. Engines cannot be interrupted,
// so a call that runs over is abandoned: its goroutine keeps running until
// the engine returns and its result is dropped.
func WithTimeout(e backend.Engine, d time.Duration) backend.Engine {
	if d <= 0 {
		return e
	}

	return &timeoutEngine{engine: e, timeout: d}
}

type timeoutEngine struct {
	engine  backend.Engine
	timeout time.Duration
}

func (t *timeoutEngine) Name() string { return t.engine.Name() }

func (t *timeoutEngine) Setup(ctx context.Context, prog *backend.Program) (backend.VerifyingKey, error) {
	return bounded(ctx, t.timeout, func(ctx context.Context) (backend.VerifyingKey, error) {
		return t.engine.Setup(ctx, prog)
	})
}

func (t *timeoutEngine) Execute(ctx context.Context, prog *backend.Program, in codec.Input) (*backend.Execution, error) {
	return bounded(ctx, t.timeout, func(ctx context.Context) (*backend.Execution, error) {
		return t.engine.Execute(ctx, prog, in)
	})
}

func (t *timeoutEngine) Prove(ctx context.Context, prog *backend.Program, in codec.Input) (*backend.Receipt, error) {
	return bounded(ctx, t.timeout, func(ctx context.Context) (*backend.Receipt, error) {
		return t.engine.Prove(ctx, prog, in)
	})
}

func (t *timeoutEngine) Verify(ctx context.Context, r *backend.Receipt, vk backend.VerifyingKey) error {
	_, err := bounded(ctx, t.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.engine.Verify(ctx, r, vk)
	})

	return err
}

func bounded[T any](ctx context.Context, d time.Duration, f func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan result, 1)
	go func() {
		v, err := f(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}

		return zero, ctx.Err()
	}
}
