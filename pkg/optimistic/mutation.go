package optimistic

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Mutation describes one optimistic change: a pure local transform paired
// with the remote operation that persists it. ApplyRemote may return an
// authoritative copy of the entity (server-assigned fields) which replaces
// the optimistic one on success.
type Mutation[E Entity[E]] interface {
	// TargetID identifies the entity the mutation touches. Mutations with
	// the same target are serialized; distinct targets run concurrently.
	TargetID() string
	// ApplyLocal transforms the current list into the optimistic list.
	// It must not retain or mutate its argument beyond the return value.
	ApplyLocal(items []E) []E
	// ApplyRemote persists the change. The returned entity, when non-nil,
	// is the authoritative server state for the target.
	ApplyRemote(ctx context.Context) (*E, error)
}

// Describer lets a mutation name itself in user-facing notifications.
type Describer interface {
	Describe() string
}

// Executor applies mutations to a collection with rollback on failure.
type Executor[E Entity[E]] struct {
	collection *Collection[E]
	notifier   Notifier
	logger     *zap.Logger
	metrics    *Metrics

	mu    sync.Mutex
	locks map[string]*targetLock
}

type targetLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures an Executor.
type Option[E Entity[E]] func(*Executor[E])

// WithNotifier injects the user-facing notification sink.
func WithNotifier[E Entity[E]](n Notifier) Option[E] {
	return func(x *Executor[E]) { x.notifier = n }
}

// WithLogger injects a structured logger for mutation outcomes.
func WithLogger[E Entity[E]](logger *zap.Logger) Option[E] {
	return func(x *Executor[E]) { x.logger = logger }
}

// WithMetrics injects mutation outcome counters.
func WithMetrics[E Entity[E]](m *Metrics) Option[E] {
	return func(x *Executor[E]) { x.metrics = m }
}

// NewExecutor builds an executor over the given collection.
func NewExecutor[E Entity[E]](c *Collection[E], opts ...Option[E]) *Executor[E] {
	x := &Executor[E]{
		collection: c,
		notifier:   NopNotifier{},
		logger:     zap.NewNop(),
		locks:      make(map[string]*targetLock),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Collection returns the collection the executor mutates.
func (x *Executor[E]) Collection() *Collection[E] { return x.collection }

// Apply runs the mutation optimistically. The visible collection after the
// call settles is either the fully applied transform, possibly reconciled
// with the authoritative server entity, or the pre-mutation snapshot.
//
// A cancelled context suppresses any post-settlement write: the optimistic
// state is left as-is and the settlement is dropped, so a discarded view
// can never be mutated by a late response.
func (x *Executor[E]) Apply(ctx context.Context, m Mutation[E]) error {
	release := x.acquire(m.TargetID())
	defer release()

	snapshot, version := x.collection.snapshotAndApply(m.ApplyLocal)

	authoritative, err := m.ApplyRemote(ctx)

	if ctx.Err() != nil {
		x.metrics.observeDropped()
		x.logger.Debug("dropped stale settlement",
			zap.String("target", m.TargetID()),
			zap.Error(ctx.Err()))
		return ctx.Err()
	}

	if err != nil {
		kind := Classify(err)
		if !x.collection.compareAndRestore(snapshot, version) {
			x.collection.rollbackTarget(m.TargetID(), snapshot)
		}
		x.metrics.observeRollback(kind)
		x.logger.Warn("mutation rolled back",
			zap.String("target", m.TargetID()),
			zap.String("failure_kind", string(kind)),
			zap.Error(err))
		x.notifier.Notify(LevelError,
			fmt.Sprintf("%s failed: %s; the change was reverted", describe(m), kind.reason()))
		return err
	}

	if authoritative != nil {
		x.collection.reconcile(m.TargetID(), *authoritative)
	}
	x.metrics.observeApplied()
	x.notifier.Notify(LevelSuccess, fmt.Sprintf("%s saved", describe(m)))
	return nil
}

// acquire serializes mutations per target ID. The lock entry is dropped once
// no mutation on the target is queued or running.
func (x *Executor[E]) acquire(id string) func() {
	x.mu.Lock()
	tl := x.locks[id]
	if tl == nil {
		tl = &targetLock{}
		x.locks[id] = tl
	}
	tl.refs++
	x.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		x.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(x.locks, id)
		}
		x.mu.Unlock()
	}
}

func describe[E Entity[E]](m Mutation[E]) string {
	if d, ok := m.(Describer); ok {
		return d.Describe()
	}
	return "change"
}
