package optimistic

import "sync"

// Entity is satisfied by records managed in a Collection. Clone must deep
// copy nested fields so snapshots survive later mutation of the original.
type Entity[E any] interface {
	EntityID() string
	Clone() E
}

// Collection holds an ordered entity list keyed by ID. Exactly one
// collection instance is the rendering source of truth for a screen;
// all reads return clones so callers can never alias internal state.
type Collection[E Entity[E]] struct {
	mu      sync.RWMutex
	items   []E
	version uint64
}

// NewCollection builds a collection seeded with the given items.
func NewCollection[E Entity[E]](items ...E) *Collection[E] {
	c := &Collection[E]{}
	c.Reset(items)
	return c
}

// Items returns a deep copy of the current list in display order.
func (c *Collection[E]) Items() []E {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.items)
}

// Len reports the number of entities held.
func (c *Collection[E]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns a clone of the entity with the given ID.
func (c *Collection[E]) Get(id string) (E, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.EntityID() == id {
			return item.Clone(), true
		}
	}
	var zero E
	return zero, false
}

// Version returns the current mutation counter. Every committed change to
// the list, including rollbacks, advances it.
func (c *Collection[E]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Reset replaces the whole list, e.g. after a fresh fetch from the server.
func (c *Collection[E]) Reset(items []E) {
	c.mu.Lock()
	c.items = cloneAll(items)
	c.version++
	c.mu.Unlock()
}

// snapshotAndApply captures a deep copy of the list and commits the transform
// in one critical section, returning the snapshot and the post-transform
// version. Holding the lock across both steps guarantees the snapshot is
// exactly the state the transform ran against: no other mutation can land in
// between, so a later compareAndRestore against the returned version can never
// discard an unrelated change.
func (c *Collection[E]) snapshotAndApply(transform func([]E) []E) ([]E, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := cloneAll(c.items)
	c.items = cloneAll(transform(cloneAll(c.items)))
	c.version++
	return snapshot, c.version
}

// compareAndRestore restores the snapshot only when no other mutation landed
// since version was observed. Reports whether the restore happened.
func (c *Collection[E]) compareAndRestore(snapshot []E, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		return false
	}
	c.items = cloneAll(snapshot)
	c.version++
	return true
}

// rollbackTarget undoes a single entity's optimistic change using the
// captured snapshot: a removed or modified entity is reinstated at its
// snapshot position, an optimistically inserted one is removed. Used when
// interleaved mutations made a whole-list restore unsafe.
func (c *Collection[E]) rollbackTarget(id string, snapshot []E) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevIdx := -1
	for i, item := range snapshot {
		if item.EntityID() == id {
			prevIdx = i
			break
		}
	}

	curIdx := -1
	for i, item := range c.items {
		if item.EntityID() == id {
			curIdx = i
			break
		}
	}

	switch {
	case prevIdx == -1 && curIdx == -1:
		return
	case prevIdx == -1:
		// optimistic insert: remove it
		c.items = append(c.items[:curIdx], c.items[curIdx+1:]...)
	case curIdx == -1:
		// optimistic delete: reinstate at the snapshot position
		restored := snapshot[prevIdx].Clone()
		at := prevIdx
		if at > len(c.items) {
			at = len(c.items)
		}
		c.items = append(c.items[:at], append([]E{restored}, c.items[at:]...)...)
	default:
		c.items[curIdx] = snapshot[prevIdx].Clone()
	}
	c.version++
}

// reconcile swaps the entity carrying id (typically a temporary client ID)
// for the authoritative server copy.
func (c *Collection[E]) reconcile(id string, authoritative E) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, item := range c.items {
		if item.EntityID() == id {
			c.items[i] = authoritative.Clone()
			c.version++
			return
		}
	}
}

func cloneAll[E Entity[E]](items []E) []E {
	out := make([]E, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
