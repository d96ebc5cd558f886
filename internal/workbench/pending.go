package workbench

import (
	"context"

	"github.com/hpungsan/clinote/internal/record"
)

// Pending is an in-flight assistant call. It remembers the record kind and
// the workbench generation it was started under, so a result that arrives
// after a kind switch or reset can be recognised as stale.
type Pending[T any] struct {
	Kind       record.Kind
	Generation uint64

	done   chan struct{}
	cancel context.CancelFunc
	result T
	err    error
}

func newPending[T any](kind record.Kind, gen uint64, cancel context.CancelFunc) *Pending[T] {
	return &Pending[T]{Kind: kind, Generation: gen, done: make(chan struct{}), cancel: cancel}
}

func (p *Pending[T]) resolve(v T, err error) {
	p.result, p.err = v, err
	close(p.done)
}

// Done is closed once the call finished.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call finishes or ctx is done. Giving up on the wait
// does not cancel the call.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel aborts the call. The result, if it still arrives, is discarded.
func (p *Pending[T]) Cancel() {
	p.cancel()
}
