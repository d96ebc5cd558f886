// Package workbench owns the live Admission and Evolution records of one
// drafting session and sequences every mutation of them: edits, assistant
// results, resets, exports and history commits.
//
// All methods are safe for concurrent use. Assistant calls run on their own
// goroutines; their results are applied only if the session generation has
// not moved on since the call started.
package workbench

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/bridge"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/logging"
	"github.com/hpungsan/clinote/internal/merge"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
)

// Options configures a Workbench.
type Options struct {
	Keeper  *persist.Keeper // required
	Bridge  *bridge.Bridge  // required for parse and analyze
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time

	// Autosave timings; zero uses the persist defaults.
	Debounce time.Duration
	Interval time.Duration
}

type storedAnalysis struct {
	generation uint64
	analysis   record.Analysis
}

// Workbench is one drafting session.
type Workbench struct {
	keeper    *persist.Keeper
	bridge    *bridge.Bridge
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	autosaver *persist.Autosaver

	mu         sync.Mutex
	records    map[record.Kind]record.Record
	kind       record.Kind
	generation uint64
	inflight   map[uint64]context.CancelFunc
	nextCall   uint64
	busy       map[string]bool
	analyses   map[record.Kind]storedAnalysis
	closed     bool
}

// New creates a session with default records. Call Open to restore drafts.
func New(opts Options) *Workbench {
	w := &Workbench{
		keeper:   opts.Keeper,
		bridge:   opts.Bridge,
		logger:   logging.OrNop(opts.Logger),
		metrics:  opts.Metrics,
		now:      opts.Now,
		kind:     record.KindAdmission,
		inflight: make(map[uint64]context.CancelFunc),
		busy:     make(map[string]bool),
		analyses: make(map[record.Kind]storedAnalysis),
		records: map[record.Kind]record.Record{
			record.KindAdmission: record.NewAdmission(),
			record.KindEvolution: record.NewEvolution(),
		},
	}
	if w.now == nil {
		w.now = time.Now
	}
	w.autosaver = persist.NewAutosaver(opts.Keeper, w.Snapshot, persist.AutosaveOptions{
		Debounce: opts.Debounce,
		Interval: opts.Interval,
		Logger:   opts.Logger,
	})
	return w
}

// Open restores both drafts onto fresh defaults, restores the signature and
// starts autosaving the active kind.
func (w *Workbench) Open(ctx context.Context) {
	now := w.now()
	for _, kind := range []record.Kind{record.KindAdmission, record.KindEvolution} {
		draft, ok := w.keeper.LoadDraft(ctx, kind)
		if !ok {
			continue
		}
		w.mu.Lock()
		merge.Merge(w.records[kind], draft, now)
		w.mu.Unlock()
		w.logger.Debug("draft restored", zap.String("kind", string(kind)))
	}

	if sig, ok := w.keeper.LoadSignature(ctx); ok {
		w.mu.Lock()
		w.records[record.KindAdmission].(*record.Admission).FirmaDataURL = &sig
		w.mu.Unlock()
	}

	w.autosaver.Start(w.Kind())
}

// Close cancels in-flight calls, flushes the active draft and stops both
// autosave timers. The store can be closed once Close returns.
func (w *Workbench) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.cancelInflightLocked()
	w.mu.Unlock()

	w.autosaver.Tick()
	w.autosaver.Stop()
}

// Kind returns the active record kind.
func (w *Workbench) Kind() record.Kind {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.kind
}

// Generation returns the current session generation.
func (w *Workbench) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generation
}

// SwitchKind makes kind the active record. Pending assistant calls are
// cancelled and their results become stale.
func (w *Workbench) SwitchKind(kind record.Kind) {
	w.mu.Lock()
	if w.kind == kind {
		w.mu.Unlock()
		return
	}
	w.kind = kind
	w.bumpLocked()
	closed := w.closed
	w.mu.Unlock()

	if !closed {
		w.autosaver.Start(kind)
	}
}

// Now returns the session clock.
func (w *Workbench) Now() time.Time {
	return w.now()
}

// Snapshot returns a deep copy of the live record of kind.
func (w *Workbench) Snapshot(kind record.Kind) record.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneRecord(w.records[kind])
}

// Current returns a copy of the active record.
func (w *Workbench) Current() record.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneRecord(w.records[w.kind])
}

// Replace swaps the live record of rec's kind for a copy of rec.
func (w *Workbench) Replace(rec record.Record) record.Record {
	rec = cloneRecord(rec)
	rec.Derive(w.now())

	w.mu.Lock()
	w.records[rec.Kind()] = rec
	out := cloneRecord(rec)
	w.mu.Unlock()

	w.touch(rec.Kind())
	return out
}

// Mutate runs fn on the live record of kind, then recomputes derived fields.
// An error from fn is returned as is; the record keeps whatever fn changed.
func (w *Workbench) Mutate(kind record.Kind, fn func(rec record.Record) error) (record.Record, error) {
	w.mu.Lock()
	rec := w.records[kind]
	err := fn(rec)
	rec.Derive(w.now())
	out := cloneRecord(rec)
	w.mu.Unlock()

	w.touch(kind)
	return out, err
}

// Merge folds a partial record onto the live record of its kind using the
// parse-merge rule.
func (w *Workbench) Merge(partial record.Record) record.Record {
	out, _ := w.Mutate(partial.Kind(), func(rec record.Record) error {
		merge.Merge(rec, partial, w.now())
		return nil
	})
	return out
}

// Reset restores kind to its defaults and clears its draft. The admission
// signature survives a reset. Pending assistant calls become stale.
func (w *Workbench) Reset(ctx context.Context, kind record.Kind) record.Record {
	w.mu.Lock()
	fresh := record.New(kind)
	if old, ok := w.records[kind].(*record.Admission); ok && old.FirmaDataURL != nil {
		sig := *old.FirmaDataURL
		fresh.(*record.Admission).FirmaDataURL = &sig
	}
	w.records[kind] = fresh
	delete(w.analyses, kind)
	w.bumpLocked()
	out := cloneRecord(fresh)
	w.mu.Unlock()

	w.keeper.ClearDraft(ctx, kind)
	return out
}

// SetSignature stores the clinician signature and attaches it to the
// admission record. An empty value removes it.
func (w *Workbench) SetSignature(ctx context.Context, dataURL string) {
	w.keeper.SaveSignature(ctx, dataURL)
	_, _ = w.Mutate(record.KindAdmission, func(rec record.Record) error {
		a := rec.(*record.Admission)
		if dataURL == "" {
			a.FirmaDataURL = nil
		} else {
			a.FirmaDataURL = &dataURL
		}
		return nil
	})
}

// SetBirthDate sets the admission birth date from its parts and derives the age.
func (w *Workbench) SetBirthDate(year, month, day int) record.Record {
	out, _ := w.Mutate(record.KindAdmission, func(rec record.Record) error {
		rec.(*record.Admission).SetBirthDate(year, month, day, w.now())
		return nil
	})
	return out
}

// AppendExamTemplate appends a named normal-exam paragraph to the physical
// exam of kind.
func (w *Workbench) AppendExamTemplate(kind record.Kind, name string) (record.Record, error) {
	tpl, ok := record.FindExamTemplate(name)
	if !ok {
		return nil, errors.NewNotFound("exam template " + name)
	}
	return w.Mutate(kind, func(rec record.Record) error {
		switch r := rec.(type) {
		case *record.Admission:
			r.Exploracion = appendParagraph(r.Exploracion, tpl.Text)
		case *record.Evolution:
			r.ExploracionFisica = appendParagraph(r.ExploracionFisica, tpl.Text)
		}
		return nil
	})
}

func appendParagraph(existing, text string) string {
	if strings.TrimSpace(existing) == "" {
		return text
	}
	return strings.TrimRight(existing, "\n") + "\n" + text
}

// TryBegin claims the busy gate for op. It returns false if op is already
// running; otherwise release must be called when op finishes.
func (w *Workbench) TryBegin(op string) (release func(), ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy[op] {
		return nil, false
	}
	w.busy[op] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.busy, op)
			w.mu.Unlock()
		})
	}, true
}

func (w *Workbench) touch(kind record.Kind) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	if active, running := w.autosaver.Active(); running && active == kind {
		w.autosaver.Touch()
		return
	}
	// Edits to the inactive kind are saved right away.
	if rec := w.Snapshot(kind); rec != nil {
		w.keeper.SaveDraft(context.Background(), rec)
	}
}

// bumpLocked starts a new generation and cancels every in-flight call.
func (w *Workbench) bumpLocked() {
	w.generation++
	w.cancelInflightLocked()
}

func (w *Workbench) cancelInflightLocked() {
	for id, cancel := range w.inflight {
		cancel()
		delete(w.inflight, id)
	}
}

// track registers a cancellable call context under the current generation.
func (w *Workbench) track(ctx context.Context) (context.Context, uint64, func()) {
	callCtx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		cancel()
	}
	w.nextCall++
	id := w.nextCall
	w.inflight[id] = cancel
	gen := w.generation

	return callCtx, gen, func() {
		w.mu.Lock()
		delete(w.inflight, id)
		w.mu.Unlock()
		cancel()
	}
}

func cloneRecord(rec record.Record) record.Record {
	switch r := rec.(type) {
	case *record.Admission:
		return r.Clone()
	case *record.Evolution:
		return r.Clone()
	}
	return nil
}
