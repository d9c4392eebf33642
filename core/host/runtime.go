package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/observability"
	telemetry "github.com/hustletexas/cyber-arcade-verse-rally/observability/otel"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

var sequenceKey = []byte("host/sequence")

// Clock supplies the unix time observed by an operation.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// Tx is the per-operation view handed to module code.
type Tx struct {
	op       string
	state    *state.Tx
	buffer   *events.Buffer
	now      int64
	sequence uint64
}

// State returns the write overlay for the operation.
func (t *Tx) State() *state.Tx { return t.state }

// Emitter returns the buffer collecting the operation's events.
func (t *Tx) Emitter() events.Emitter { return t.buffer }

// Now returns the clock reading taken when the operation started.
func (t *Tx) Now() int64 { return t.now }

// Sequence returns the commit sequence this operation will receive.
func (t *Tx) Sequence() uint64 { return t.sequence }

// Op returns the operation name.
func (t *Tx) Op() string { return t.op }

// Runtime serializes state transitions over one store. Each Execute call runs
// against a private overlay that is committed as one batch only when the
// operation succeeds; its events are released after the commit.
type Runtime struct {
	mu      sync.RWMutex
	manager *state.Manager
	clock   Clock
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.ProtocolMetrics
}

// Option customises a Runtime.
type Option func(*Runtime)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(r *Runtime) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithEmitter sets the downstream sink receiving committed events.
func WithEmitter(e events.Emitter) Option {
	return func(r *Runtime) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer sets the tracer used for per-operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runtime) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMetrics overrides the protocol metrics registry.
func WithMetrics(m *observability.ProtocolMetrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// New creates a runtime over db.
func New(db storage.Database, opts ...Option) *Runtime {
	r := &Runtime{
		manager: state.NewManager(db),
		clock:   SystemClock{},
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  telemetry.Tracer(),
		metrics: observability.Protocol(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Manager exposes the committed state manager.
func (r *Runtime) Manager() *state.Manager { return r.manager }

// Now samples the runtime clock.
func (r *Runtime) Now() int64 { return r.clock.Now() }

// Execute runs fn as one atomic operation named op.
func (r *Runtime) Execute(ctx context.Context, op string, fn func(*Tx) error) (err error) {
	if fn == nil {
		return fmt.Errorf("host: %w: nil operation", coreerrors.ErrInvalidArgument)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := r.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("arcade.op", op)))
	defer span.End()
	started := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &Tx{op: op, state: r.manager.Begin(), buffer: &events.Buffer{}, now: r.clock.Now()}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("host: operation %s panicked: %v", op, rec)
		}
		if err != nil {
			tx.state.Discard()
			r.observeFailure(ctx, span, op, err, time.Since(started))
		}
	}()

	seq, err := state.NextSequence(tx.state, sequenceKey)
	if err != nil {
		return err
	}
	tx.sequence = seq
	if err = fn(tx); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tx.state.Commit(); err != nil {
		return fmt.Errorf("host: commit %s: %w", op, err)
	}
	emitted := tx.buffer.Len()
	tx.buffer.FlushTo(r.emitter)

	elapsed := time.Since(started)
	r.metrics.ObserveOperation(op, "ok", elapsed)
	r.metrics.SetSequence(seq)
	span.SetAttributes(attribute.Int64("arcade.sequence", int64(seq)), attribute.Int("arcade.events", emitted))
	r.logger.DebugContext(ctx, "operation committed",
		slog.String("op", op),
		slog.Uint64("sequence", seq),
		slog.Int("events", emitted),
		slog.Duration("duration", elapsed))
	return nil
}

func (r *Runtime) observeFailure(ctx context.Context, span trace.Span, op string, err error, elapsed time.Duration) {
	kind := coreerrors.Kind(err)
	r.metrics.ObserveOperation(op, kind, elapsed)
	switch {
	case errors.Is(err, coreerrors.ErrNonceReplay):
		r.metrics.RecordNonceRejection("replay")
	case errors.Is(err, coreerrors.ErrInvalidNonceSequence):
		r.metrics.RecordNonceRejection("sequence")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	level := slog.LevelInfo
	if coreerrors.Classify(err) == coreerrors.ClassUnknown {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "operation rejected",
		slog.String("op", op),
		slog.String("status", kind),
		slog.String("error", err.Error()))
}

// View runs fn against committed state. It may run concurrently with other
// views but never with Execute.
func (r *Runtime) View(ctx context.Context, fn func(state.Reader) error) error {
	if fn == nil {
		return fmt.Errorf("host: %w: nil view", coreerrors.ErrInvalidArgument)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.manager)
}

// Query runs fn against a private overlay of committed state that is always
// discarded. Getters use it so they can share engine code with Execute.
func (r *Runtime) Query(ctx context.Context, op string, fn func(*Tx) error) error {
	if fn == nil {
		return fmt.Errorf("host: %w: nil query", coreerrors.ErrInvalidArgument)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx := &Tx{op: op, state: r.manager.Begin(), buffer: &events.Buffer{}, now: r.clock.Now()}
	defer tx.state.Discard()
	return fn(tx)
}

// Sequence returns the last committed sequence.
func (r *Runtime) Sequence() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return state.LoadUint64(r.manager, sequenceKey)
}
