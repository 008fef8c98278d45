// Package tracker owns the lifecycle of the current context snapshot:
// staleness decay over time, the decision between a cheap refresh and a
// full rebuild when pending events drain, and single-flight protection
// so concurrent drains never rebuild twice.
package tracker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkfold/inkfold/pkg/editlog"
	"github.com/inkfold/inkfold/pkg/snapshot"
)

// SnapshotBuilder produces a new snapshot for a focus. Satisfied by
// snapshot.Builder.
type SnapshotBuilder interface {
	Build(focus snapshot.Focus, prev *snapshot.Snapshot) (*snapshot.Snapshot, error)
}

// Config sets decay windows and rebuild thresholds. Zero values select
// the defaults.
type Config struct {
	// FreshFor is how long after an update the snapshot reads fresh.
	FreshFor time.Duration
	// RecentFor extends from FreshFor; past it the snapshot is stale.
	RecentFor time.Duration
	// StaleFor extends from RecentFor; past it the snapshot is outdated.
	StaleFor time.Duration
	// QueueRebuildThreshold is the drained batch size that forces a full
	// rebuild even without a high-priority event.
	QueueRebuildThreshold int
	// EditRebuildThreshold is the count of edits recorded since the last
	// rebuild that forces a full rebuild.
	EditRebuildThreshold int
}

// DefaultConfig returns the decay and threshold defaults.
func DefaultConfig() Config {
	return Config{
		FreshFor:              30 * time.Second,
		RecentFor:             2 * time.Minute,
		StaleFor:              10 * time.Minute,
		QueueRebuildThreshold: 5,
		EditRebuildThreshold:  10,
	}
}

// Tracker keeps the current snapshot and decides when to rebuild it.
// Reads decay the staleness lazily; nothing ticks in the background.
type Tracker struct {
	cfg     Config
	builder SnapshotBuilder
	log     *editlog.Log
	queue   *editlog.Queue

	updating atomic.Bool

	mu      sync.RWMutex
	current *snapshot.Snapshot
	focus   snapshot.Focus
	lastErr error
	now     func() time.Time
}

// New wires a tracker over the builder, edit trail, and event queue.
func New(builder SnapshotBuilder, log *editlog.Log, queue *editlog.Queue, cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.FreshFor <= 0 {
		cfg.FreshFor = def.FreshFor
	}
	if cfg.RecentFor <= 0 {
		cfg.RecentFor = def.RecentFor
	}
	if cfg.StaleFor <= 0 {
		cfg.StaleFor = def.StaleFor
	}
	if cfg.QueueRebuildThreshold <= 0 {
		cfg.QueueRebuildThreshold = def.QueueRebuildThreshold
	}
	if cfg.EditRebuildThreshold <= 0 {
		cfg.EditRebuildThreshold = def.EditRebuildThreshold
	}
	return &Tracker{
		cfg:     cfg,
		builder: builder,
		log:     log,
		queue:   queue,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// SetFocus records which project and document the next builds target.
func (t *Tracker) SetFocus(f snapshot.Focus) {
	t.mu.Lock()
	t.focus = f
	t.mu.Unlock()
}

// Focus returns the current build target.
func (t *Tracker) Focus() snapshot.Focus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.focus
}

// Current returns a copy of the tracked snapshot with its staleness
// decayed to the present. Nil before the first build. Staleness never
// moves backwards without an update. The copy is detached: later
// refreshes or prunes do not reach through it.
func (t *Tracker) Current() *snapshot.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	decayed := t.decayLocked()
	if decayed.Rank() > t.current.Staleness.Rank() {
		t.current.Staleness = decayed
	}
	return t.current.Clone()
}

func (t *Tracker) decayLocked() snapshot.Staleness {
	age := t.now().Sub(t.current.LastUpdatedAt)
	switch {
	case age <= t.cfg.FreshFor:
		return snapshot.Fresh
	case age <= t.cfg.FreshFor+t.cfg.RecentFor:
		return snapshot.Recent
	case age <= t.cfg.FreshFor+t.cfg.RecentFor+t.cfg.StaleFor:
		return snapshot.Stale
	default:
		return snapshot.Outdated
	}
}

// DrainAndProcess consumes all pending events in one batch and either
// fully rebuilds the snapshot or cheaply refreshes its timestamps.
// A full rebuild happens when the batch carries a high-priority event,
// when the batch is large, or when enough edits piled up since the last
// rebuild. Concurrent calls are single-flight: the loser returns nil
// without touching the queue. An empty queue is a no-op unless no
// snapshot exists yet, in which case the first build runs.
func (t *Tracker) DrainAndProcess() error {
	if !t.updating.CompareAndSwap(false, true) {
		return nil
	}
	defer t.updating.Store(false)

	batch := t.queue.DrainSnapshot()

	t.mu.RLock()
	missing := t.current == nil
	t.mu.RUnlock()

	if batch == nil && !missing {
		return nil
	}

	rebuild := missing ||
		editlog.HasHighPriority(batch) ||
		len(batch) >= t.cfg.QueueRebuildThreshold ||
		t.log.SinceMark() >= t.cfg.EditRebuildThreshold

	if !rebuild {
		t.refresh()
		return nil
	}
	return t.rebuild()
}

func (t *Tracker) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.current.Staleness = snapshot.Fresh
	t.current.LastUpdatedAt = t.now()
}

func (t *Tracker) rebuild() error {
	t.mu.RLock()
	focus := t.focus
	prev := t.current
	t.mu.RUnlock()

	snap, err := t.builder.Build(focus, prev)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.lastErr = fmt.Errorf("tracker: rebuild snapshot: %w", err)
		return t.lastErr
	}
	t.current = snap
	t.lastErr = nil
	t.log.Mark()
	return nil
}

// ForceRefresh bypasses the thresholds: it enqueues a high-priority
// refresh event and drains immediately, so the next snapshot is a full
// rebuild.
func (t *Tracker) ForceRefresh() error {
	t.queue.Enqueue(editlog.NewEvent(editlog.EventForceRefresh, nil, editlog.PriorityHigh))
	return t.DrainAndProcess()
}

// PruneCharacter drops a deleted character from the current snapshot's
// active set and presence map so readers never cite it between the
// delete and the next rebuild.
func (t *Tracker) PruneCharacter(characterID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	kept := t.current.ActiveCharacterIDs[:0]
	for _, id := range t.current.ActiveCharacterIDs {
		if id != characterID {
			kept = append(kept, id)
		}
	}
	t.current.ActiveCharacterIDs = kept
	delete(t.current.Presence, characterID)
}

// LastError returns the most recent rebuild failure, if any.
func (t *Tracker) LastError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastErr
}

// ClearError discards the recorded failure.
func (t *Tracker) ClearError() {
	t.mu.Lock()
	t.lastErr = nil
	t.mu.Unlock()
}
