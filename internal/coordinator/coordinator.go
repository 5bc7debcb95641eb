// Package coordinator runs at most one live cancellable operation at a time.
// Starting an operation cancels the previous one, and a superseded
// operation's outcome is discarded whenever it arrives.
package coordinator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/pkg/invoiceapi"
)

// Phase is the coordinator's externally visible status.
type Phase int

const (
	Idle Phase = iota
	Running
	Succeeded
	Failed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Kind labels an operation for logging and state reporting.
type Kind string

const (
	KindParseText  Kind = "parse_text"
	KindParseImage Kind = "parse_image"
)

// State is a copy of the coordinator's status.
type State struct {
	Phase     Phase
	LastError string
	Kind      Kind
	Op        uint64
}

// Outcome is how an operation resolved.
type Outcome int

const (
	// Pending means the operation has not resolved yet.
	Pending Outcome = iota
	Success
	Failure
	// Discarded means the operation was cancelled or superseded and its
	// result was dropped without touching coordinator state.
	Discarded
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Discarded:
		return "discarded"
	default:
		return "pending"
	}
}

// Operation is a handle to one started unit of work.
type Operation struct {
	id     uint64
	kind   Kind
	cancel context.CancelFunc
	done   chan struct{}

	outcome Outcome
	err     error
}

// ID returns the operation's sequence number, starting at 1.
func (op *Operation) ID() uint64 { return op.id }

// Kind returns the operation kind.
func (op *Operation) Kind() Kind { return op.kind }

// Done is closed once the operation has resolved and its outcome is applied.
func (op *Operation) Done() <-chan struct{} { return op.done }

// Wait blocks until the operation resolves. The error is set for Failure and
// for Discarded operations that ended in an error.
func (op *Operation) Wait() (Outcome, error) {
	<-op.done
	return op.outcome, op.err
}

type task func(ctx context.Context) (commit func(), err error)

// Coordinator tracks the live operation and the resulting phase/error state.
type Coordinator struct {
	// commitMu orders supersession against commits: Start and Cancel hold it
	// while swapping the live operation, and resolution holds it across the
	// liveness check and the success handler.
	commitMu sync.Mutex

	mu       sync.Mutex
	state    State
	seq      uint64
	live     *Operation
	watchers []func(State)
}

// New creates an idle Coordinator.
func New() *Coordinator {
	return &Coordinator{}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watch registers fn to receive every state transition. fn runs
// synchronously and must not call Start or Cancel.
func (c *Coordinator) Watch(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Start cancels any live operation, clears the last error, enters Running
// and invokes run in a new goroutine with a fresh cancellable context
// derived from ctx. When run resolves and the operation is still live,
// onSuccess receives the payload and the phase becomes Succeeded, or the
// phase becomes Failed with the error's message. Cancelled or superseded
// operations change nothing. onSuccess must not call Start or Cancel.
func Start[T any](c *Coordinator, ctx context.Context, kind Kind, run func(context.Context) (T, error), onSuccess func(T)) *Operation {
	return c.start(ctx, kind, func(ctx context.Context) (func(), error) {
		v, err := run(ctx)
		if err != nil {
			return nil, err
		}
		return func() {
			if onSuccess != nil {
				onSuccess(v)
			}
		}, nil
	})
}

func (c *Coordinator) start(parent context.Context, kind Kind, t task) *Operation {
	ctx, cancel := context.WithCancel(parent)

	c.commitMu.Lock()
	c.mu.Lock()
	if prev := c.live; prev != nil {
		prev.cancel()
		zap.L().Debug("coordinator: superseding operation",
			zap.Uint64("op", prev.id),
			zap.String("kind", string(prev.kind)),
		)
	}
	c.seq++
	op := &Operation{id: c.seq, kind: kind, cancel: cancel, done: make(chan struct{})}
	c.live = op
	c.state = State{Phase: Running, Kind: kind, Op: op.id}
	state, watchers := c.state, c.watchers
	c.mu.Unlock()
	notify(watchers, state)
	c.commitMu.Unlock()

	zap.L().Debug("coordinator: operation started", zap.Uint64("op", op.id), zap.String("kind", string(kind)))

	go c.run(ctx, op, t)
	return op
}

func (c *Coordinator) run(ctx context.Context, op *Operation, t task) {
	defer close(op.done)
	defer op.cancel()

	commit, err := t(ctx)

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	c.mu.Lock()
	live := c.live == op
	c.mu.Unlock()

	cancelled := err != nil && (invoiceapi.IsCancelled(err) || errors.Is(ctx.Err(), context.Canceled))
	if !live || cancelled {
		op.outcome, op.err = Discarded, err
		zap.L().Debug("coordinator: operation discarded",
			zap.Uint64("op", op.id),
			zap.String("kind", string(op.kind)),
			zap.Bool("superseded", !live),
		)
		return
	}

	if err != nil {
		msg := invoiceapi.Message(err)
		op.outcome, op.err = Failure, err
		c.transition(op, Failed, msg)
		zap.L().Warn("coordinator: operation failed",
			zap.Uint64("op", op.id),
			zap.String("kind", string(op.kind)),
			zap.String("error", msg),
		)
		return
	}

	commit()
	op.outcome = Success
	c.transition(op, Succeeded, "")
	zap.L().Info("coordinator: operation succeeded", zap.Uint64("op", op.id), zap.String("kind", string(op.kind)))
}

// transition is called with commitMu held.
func (c *Coordinator) transition(op *Operation, phase Phase, lastError string) {
	c.mu.Lock()
	c.live = nil
	c.state = State{Phase: phase, LastError: lastError, Kind: op.kind, Op: op.id}
	state, watchers := c.state, c.watchers
	c.mu.Unlock()
	notify(watchers, state)
}

// Cancel aborts the live operation, if any, and returns to Idle. The
// aborted operation resolves as Discarded.
func (c *Coordinator) Cancel() {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	c.mu.Lock()
	op := c.live
	if op == nil {
		c.mu.Unlock()
		return
	}
	op.cancel()
	c.live = nil
	c.state = State{Phase: Idle, Kind: op.kind, Op: op.id}
	state, watchers := c.state, c.watchers
	c.mu.Unlock()
	notify(watchers, state)

	zap.L().Info("coordinator: operation cancelled", zap.Uint64("op", op.id), zap.String("kind", string(op.kind)))
}

func notify(watchers []func(State), s State) {
	for _, fn := range watchers {
		fn(s)
	}
}
