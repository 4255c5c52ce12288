// Package timer implements the per-project countdown engine: one independent
// work-interval state machine per project, converting completed or partially
// elapsed intervals into project store commits.
package timer

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/davrk/stint/internal/models"
	"github.com/davrk/stint/internal/storage"
	"github.com/google/uuid"
)

// DocumentKey is the storage key of the timers document.
const DocumentKey = "timers"

var (
	// ErrTimerRunning rejects reconfiguration of a ticking timer.
	ErrTimerRunning = errors.New("timer is running")
	// ErrUnsavedPartial asks the caller to confirm discarding elapsed time.
	ErrUnsavedPartial = errors.New("timer has unsaved partial time")
	// ErrNoPartial rejects a partial commit when nothing is pending.
	ErrNoPartial = errors.New("no partial time to commit")
	// ErrInvalidInterval rejects a non-positive interval length.
	ErrInvalidInterval = errors.New("interval must be at least one minute")
)

// Committer is the slice of the project store the engine commits through.
type Committer interface {
	CommitTime(id string, amount float64, at *models.Millis) error
}

// Notifier receives best-effort completion and progress signals. Calls must
// never block; failures are swallowed.
type Notifier interface {
	// IntervalComplete fires after an auto-commit has been persisted.
	IntervalComplete(projectID string, minutes int64)
	// Progress fires once per tick with the remaining seconds.
	Progress(projectID string, remaining int64)
}

// Snapshot is the read view of one project's timer. PendingPartialMinutes is
// derived on every read, never stored: it is nonzero only in the
// paused-partial state (stopped with part of the interval elapsed).
type Snapshot struct {
	Time                  int64
	InitialTime           int64
	Running               bool
	PendingPartialMinutes int64
}

// state is the live record for one project's timer. handle identifies the
// single active countdown resource; ticks carrying a stale handle are
// discarded, which is what makes double commits impossible.
type state struct {
	snap   models.TimerSnapshot
	handle string
	cancel context.CancelFunc
}

// Engine owns every project timer. Timers are materialized lazily with
// defaults on first touch and their state (minus the live countdown resource)
// is persisted on every change.
type Engine struct {
	mu       sync.Mutex
	storage  *storage.Store
	comm     Committer
	notifier Notifier
	timers   map[string]*state

	initialSeconds int64
	tickEvery      time.Duration

	beforeShutdown []func()
	wg             sync.WaitGroup
}

// Options configures engine defaults.
type Options struct {
	// DefaultIntervalSeconds is the interval length for timers that have not
	// been configured; 0 means the standard 25 minutes.
	DefaultIntervalSeconds int64
	// Notifier receives completion and progress signals; may be nil.
	Notifier Notifier
}

// Open loads the timers document and returns an engine ready to start
// countdowns. A timer persisted as running rehydrates paused at its remaining
// time; the countdown resource is only ever re-established by an explicit
// Start.
func Open(st *storage.Store, comm Committer, opts Options) (*Engine, error) {
	e := &Engine{
		storage:        st,
		comm:           comm,
		notifier:       opts.Notifier,
		timers:         make(map[string]*state),
		initialSeconds: opts.DefaultIntervalSeconds,
		tickEvery:      time.Second,
	}
	if e.initialSeconds <= 0 {
		e.initialSeconds = models.DefaultIntervalSeconds
	}

	var saved models.TimerMap
	if _, err := st.Load(DocumentKey, &saved); err != nil {
		return nil, err
	}
	for id, snap := range saved {
		if snap.InitialTime <= 0 {
			continue
		}
		if snap.Time < 0 || snap.Time > snap.InitialTime {
			log.Printf("timer: discarding out-of-range saved timer for %q", id)
			continue
		}
		snap.Running = false
		e.timers[id] = &state{snap: snap}
	}
	return e, nil
}

// OnBeforeShutdown registers a hook that runs at the start of Shutdown, while
// countdowns are still live, so the host can warn about running timers.
func (e *Engine) OnBeforeShutdown(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beforeShutdown = append(e.beforeShutdown, fn)
}

// materialize returns the state for id, creating it with defaults on first
// touch. Caller holds e.mu.
func (e *Engine) materialize(id string) *state {
	st, ok := e.timers[id]
	if !ok {
		st = &state{snap: models.TimerSnapshot{
			Time:        e.initialSeconds,
			InitialTime: e.initialSeconds,
			LastUpdated: models.Now(),
		}}
		e.timers[id] = st
	}
	return st
}

// persistLocked writes the timers document. Caller holds e.mu. Persistence
// failures are logged, never propagated: the in-memory machine stays
// authoritative for the rest of the process lifetime.
func (e *Engine) persistLocked() {
	doc := make(models.TimerMap, len(e.timers))
	for id, st := range e.timers {
		doc[id] = st.snap
	}
	if err := e.storage.Save(DocumentKey, doc); err != nil {
		log.Printf("timer: persist failed: %v", err)
	}
}

// Start begins (or resumes) the countdown for a project. Starting a timer
// that is already ticking is a no-op. A timer at zero is reset to its full
// interval first.
func (e *Engine) Start(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.materialize(id)
	if st.handle != "" {
		return
	}
	if st.snap.Time == 0 {
		st.snap.Time = st.snap.InitialTime
	}
	st.snap.Running = true
	st.snap.LastUpdated = models.Now()

	handle := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	st.handle = handle
	st.cancel = cancel

	e.wg.Add(1)
	go e.run(ctx, id, handle)

	e.persistLocked()
}

// run drives one countdown resource, ticking once per interval until the
// timer completes or the resource is cancelled.
func (e *Engine) run(ctx context.Context, id, handle string) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.tick(id, handle) {
				return
			}
		}
	}
}

// tick decrements the timer by one second and handles completion. It reports
// whether the countdown resource identified by handle should keep ticking.
// On completion the interval is committed to the project store before the
// timer state is reset, so a crash between the two can never lose the
// interval.
func (e *Engine) tick(id, handle string) bool {
	e.mu.Lock()

	st, ok := e.timers[id]
	if !ok || st.handle != handle || !st.snap.Running || st.snap.Time <= 0 {
		// Stale resource: stopped, reset or replaced since this tick fired.
		e.mu.Unlock()
		return false
	}

	st.snap.Time--
	st.snap.LastUpdated = models.Now()

	if st.snap.Time > 0 {
		e.persistLocked()
		remaining := st.snap.Time
		e.mu.Unlock()
		if e.notifier != nil {
			e.notifier.Progress(id, remaining)
		}
		return true
	}

	// Completion: commit first, then reset. The handle is cleared before
	// anything else so no second tick of this resource can observe a
	// committable state again.
	minutes := roundMinutes(st.snap.InitialTime)
	st.handle = ""
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	if err := e.comm.CommitTime(id, float64(minutes), nil); err != nil {
		log.Printf("timer: auto-commit for %q failed: %v", id, err)
	}
	st.snap.Time = st.snap.InitialTime
	st.snap.Running = false
	st.snap.LastUpdated = models.Now()
	e.persistLocked()
	e.mu.Unlock()

	if e.notifier != nil {
		go e.notifier.IntervalComplete(id, minutes)
	}
	return false
}

// Stop pauses a running countdown. Stopping an idle timer is a no-op. A stop
// partway through the interval leaves the timer in the paused-partial state
// with a pending commit derivable from Snapshot.
func (e *Engine) Stop(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.timers[id]
	if !ok || st.handle == "" {
		return
	}

	st.cancel()
	st.cancel = nil
	st.handle = ""
	st.snap.Running = false
	st.snap.LastUpdated = models.Now()
	e.persistLocked()
}

// Reset returns the timer to a full idle interval, cancelling any live
// countdown. When elapsed time would be discarded and confirmed is false it
// returns ErrUnsavedPartial so the caller can prompt; pass confirmed=true for
// programmatic resets.
func (e *Engine) Reset(id string, confirmed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.materialize(id)
	if !confirmed && st.snap.Time > 0 && st.snap.Time < st.snap.InitialTime {
		return ErrUnsavedPartial
	}
	e.resetLocked(st)
	e.persistLocked()
	return nil
}

// resetLocked tears down the countdown resource and restores the full
// interval. Caller holds e.mu.
func (e *Engine) resetLocked(st *state) {
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.handle = ""
	st.snap.Time = st.snap.InitialTime
	st.snap.Running = false
	st.snap.LastUpdated = models.Now()
}

// CommitPartial commits the pending minutes of a paused-partial timer to the
// project store, then resets the timer.
func (e *Engine) CommitPartial(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.timers[id]
	if !ok {
		return ErrNoPartial
	}
	minutes := pendingPartial(st.snap, st.handle != "")
	if minutes == 0 {
		return ErrNoPartial
	}

	if err := e.comm.CommitTime(id, float64(minutes), nil); err != nil {
		return err
	}
	e.resetLocked(st)
	e.persistLocked()
	return nil
}

// Configure sets a new interval length in minutes and fully resets the timer
// to it. Rejected while the countdown is running.
func (e *Engine) Configure(id string, minutes int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if minutes <= 0 {
		return ErrInvalidInterval
	}
	st := e.materialize(id)
	if st.handle != "" {
		return ErrTimerRunning
	}
	st.snap.InitialTime = minutes * 60
	st.snap.Time = st.snap.InitialTime
	st.snap.Running = false
	st.snap.LastUpdated = models.Now()
	e.persistLocked()
	return nil
}

// Snapshot returns the read view of a project's timer, materializing defaults
// on first read.
func (e *Engine) Snapshot(id string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.materialize(id)
	return Snapshot{
		Time:                  st.snap.Time,
		InitialTime:           st.snap.InitialTime,
		Running:               st.snap.Running,
		PendingPartialMinutes: pendingPartial(st.snap, st.handle != ""),
	}
}

// AnyRunning reports whether any project's countdown is live.
func (e *Engine) AnyRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.timers {
		if st.handle != "" {
			return true
		}
	}
	return false
}

// Shutdown runs the registered lifecycle hooks, tears down every live
// countdown resource and waits for their goroutines to drain. Timer
// snapshots keep their last persisted values so a later session can recover
// them.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	hooks := append([]func(){}, e.beforeShutdown...)
	e.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	e.mu.Lock()
	for _, st := range e.timers {
		if st.cancel != nil {
			st.cancel()
			st.cancel = nil
		}
		st.handle = ""
	}
	e.persistLocked()
	e.mu.Unlock()

	e.wg.Wait()
}

// pendingPartial derives the committable minutes of a paused-partial timer:
// stopped, with some but not all of the interval elapsed. Anything over zero
// elapsed floors at one minute so short stints never vanish.
func pendingPartial(snap models.TimerSnapshot, live bool) int64 {
	if live || snap.Running {
		return 0
	}
	if snap.Time <= 0 || snap.Time >= snap.InitialTime {
		return 0
	}
	elapsed := snap.InitialTime - snap.Time
	m := roundMinutes(elapsed)
	if m < 1 {
		m = 1
	}
	return m
}

// roundMinutes converts seconds to the nearest whole minute.
func roundMinutes(seconds int64) int64 {
	return int64(math.Round(float64(seconds) / 60))
}
