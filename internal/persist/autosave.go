package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/logging"
	"github.com/hpungsan/clinote/internal/record"
)

// Default autosave timings.
const (
	DefaultDebounce = 2 * time.Second
	DefaultInterval = 30 * time.Second
)

// SnapshotFunc returns a copy of the live record of kind, or nil if none.
type SnapshotFunc func(kind record.Kind) record.Record

// Autosaver flushes the active draft after edits go quiet and on a fixed
// period while a record is active. Lifecycle: Start(kind), Touch/Tick, Stop.
// Once Stop returns, no further writes happen.
type Autosaver struct {
	keeper   *Keeper
	snapshot SnapshotFunc
	debounce time.Duration
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	kind      record.Kind
	running   bool
	stopped   bool
	debounceT *time.Timer
	stopCh    chan struct{}
	wg        sync.WaitGroup

	// flushMu serializes flushes so Stop can wait out an in-flight write.
	flushMu sync.Mutex
}

// AutosaveOptions configures an Autosaver. Zero durations use the defaults.
type AutosaveOptions struct {
	Debounce time.Duration
	Interval time.Duration
	Logger   *zap.Logger
}

// NewAutosaver creates an idle autosaver.
func NewAutosaver(k *Keeper, snapshot SnapshotFunc, opts AutosaveOptions) *Autosaver {
	a := &Autosaver{
		keeper:   k,
		snapshot: snapshot,
		debounce: opts.Debounce,
		interval: opts.Interval,
		logger:   logging.OrNop(opts.Logger),
	}
	if a.debounce <= 0 {
		a.debounce = DefaultDebounce
	}
	if a.interval <= 0 {
		a.interval = DefaultInterval
	}
	return a
}

// Start makes kind the active record and starts the periodic flush.
// Starting a different kind flushes the previous one first.
func (a *Autosaver) Start(kind record.Kind) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	if a.running && a.kind == kind {
		a.mu.Unlock()
		return
	}
	prev, wasRunning := a.kind, a.running
	a.mu.Unlock()

	if wasRunning {
		a.flush(prev)
		a.halt()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.kind = kind
	a.running = true
	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.loop(kind, a.stopCh)
	a.logger.Debug("autosave started", zap.String("kind", string(kind)))
}

func (a *Autosaver) loop(kind record.Kind, stop <-chan struct{}) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.flush(kind)
		case <-stop:
			return
		}
	}
}

// Touch records an edit; the draft is saved once edits pause for the debounce period.
func (a *Autosaver) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running || a.stopped {
		return
	}
	kind := a.kind
	if a.debounceT != nil {
		a.debounceT.Stop()
	}
	a.debounceT = time.AfterFunc(a.debounce, func() { a.flush(kind) })
}

// Tick flushes the active draft immediately.
func (a *Autosaver) Tick() {
	a.mu.Lock()
	kind, running := a.kind, a.running
	a.mu.Unlock()
	if running {
		a.flush(kind)
	}
}

// Active returns the active kind and whether a session is running.
func (a *Autosaver) Active() (record.Kind, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kind, a.running
}

// Stop tears down both timers. It is safe to call more than once.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()

	a.halt()

	// Wait out a flush that started before stopped was set.
	a.flushMu.Lock()
	defer a.flushMu.Unlock()
}

// halt stops the timers and the periodic goroutine without marking the
// autosaver stopped.
func (a *Autosaver) halt() {
	a.mu.Lock()
	if a.debounceT != nil {
		a.debounceT.Stop()
		a.debounceT = nil
	}
	if a.running {
		close(a.stopCh)
		a.running = false
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Autosaver) flush(kind record.Kind) {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		return
	}

	rec := a.snapshot(kind)
	if rec == nil {
		return
	}
	a.keeper.SaveDraft(context.Background(), rec)
}
