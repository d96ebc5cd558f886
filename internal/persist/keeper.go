// Package persist keeps drafts, history and the clinician signature in a
// store.Store on a best-effort basis. Store failures never reach callers:
// the keeper logs them, counts them, and continues in memory.
package persist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/logging"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/store"
)

// Options configures a Keeper.
type Options struct {
	Logger       *zap.Logger
	Metrics      *metrics.Metrics // optional
	HistoryLimit int              // 0 means DefaultHistoryLimit
	Now          func() time.Time // defaults to time.Now
}

// Status reports whether the keeper is still writing through to the store.
type Status struct {
	Degraded  bool   `json:"degraded"`
	Failures  int    `json:"failures"`
	LastError string `json:"last_error,omitempty"`
}

// Keeper is safe for concurrent use.
type Keeper struct {
	store   store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	limit   int
	now     func() time.Time

	mu            sync.Mutex
	status        Status
	drafts        map[record.Kind]string
	history       []HistoryEntry
	historyLoaded bool
	signature     string
}

// NewKeeper wraps s.
func NewKeeper(s store.Store, opts Options) *Keeper {
	k := &Keeper{
		store:   s,
		logger:  logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
		limit:   opts.HistoryLimit,
		now:     opts.Now,
		drafts:  make(map[record.Kind]string),
	}
	if k.limit <= 0 {
		k.limit = DefaultHistoryLimit
	}
	if k.now == nil {
		k.now = time.Now
	}
	return k
}

// Status returns the current persistence status.
func (k *Keeper) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status
}

// HistoryLimit returns the configured history capacity.
func (k *Keeper) HistoryLimit() int {
	return k.limit
}

func draftKey(kind record.Kind) string {
	if kind == record.KindEvolution {
		return store.KeyEvolutionDraft
	}
	return store.KeyAdmissionDraft
}

// fail records a store error and switches the keeper to memory-only.
// Caller must hold k.mu.
func (k *Keeper) fail(op string, err error) {
	k.status.Failures++
	k.status.LastError = err.Error()
	if k.metrics != nil {
		k.metrics.PersistenceFailures.WithLabelValues(op).Inc()
		k.metrics.PersistenceDegraded.Set(1)
	}
	if !k.status.Degraded {
		k.status.Degraded = true
		k.logger.Warn("persistence unavailable, continuing in memory",
			zap.String("operation", op), zap.Error(err))
		return
	}
	k.logger.Error("persistence failure", zap.String("operation", op), zap.Error(err))
}

// write stores value under key unless the keeper is degraded. Caller must hold k.mu.
func (k *Keeper) write(ctx context.Context, op, key, value string) {
	if k.status.Degraded {
		return
	}
	if err := k.store.Set(ctx, key, value); err != nil {
		k.fail(op, err)
	}
}

// remove deletes key unless the keeper is degraded. Caller must hold k.mu.
func (k *Keeper) remove(ctx context.Context, op, key string) {
	if k.status.Degraded {
		return
	}
	if err := k.store.Delete(ctx, key); err != nil {
		k.fail(op, err)
	}
}

// read returns the stored value, or ok=false when missing or degraded.
// Caller must hold k.mu.
func (k *Keeper) read(ctx context.Context, op, key string) (string, bool) {
	if k.status.Degraded {
		return "", false
	}
	v, ok, err := k.store.Get(ctx, key)
	if err != nil {
		k.fail(op, err)
		return "", false
	}
	return v, ok
}

// SaveDraft overwrites the draft for rec's kind.
func (k *Keeper) SaveDraft(ctx context.Context, rec record.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		k.logger.Error("encode draft", zap.String("kind", string(rec.Kind())), zap.Error(err))
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.drafts[rec.Kind()] = string(data)
	k.write(ctx, "save_draft", draftKey(rec.Kind()), string(data))
}

// LoadDraft returns the saved draft of kind as a partial record: blank fields
// are absent, and fields that no longer decode are dropped.
// Absence is not an error.
func (k *Keeper) LoadDraft(ctx context.Context, kind record.Kind) (record.Record, bool) {
	k.mu.Lock()
	data, ok := k.drafts[kind]
	if !ok {
		data, ok = k.read(ctx, "load_draft", draftKey(kind))
		if ok {
			k.drafts[kind] = data
		}
	}
	k.mu.Unlock()

	if !ok {
		return nil, false
	}
	rec, issues, err := record.DecodePartialJSON(kind, []byte(data))
	if err != nil {
		k.logger.Warn("discarding unreadable draft", zap.String("kind", string(kind)), zap.Error(err))
		return nil, false
	}
	if len(issues) > 0 {
		k.logger.Debug("draft fields dropped", zap.String("kind", string(kind)), zap.Any("issues", issues))
	}
	return rec, true
}

// ClearDraft removes the draft of kind.
func (k *Keeper) ClearDraft(ctx context.Context, kind record.Kind) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.drafts, kind)
	k.remove(ctx, "clear_draft", draftKey(kind))
}

// loadHistory reads history from the store once. Caller must hold k.mu.
func (k *Keeper) loadHistory(ctx context.Context) {
	if k.historyLoaded {
		return
	}
	k.historyLoaded = true

	data, ok := k.read(ctx, "load_history", store.KeyHistory)
	if !ok {
		return
	}
	var entries []HistoryEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		k.logger.Warn("discarding unreadable history", zap.Error(err))
		return
	}
	k.history = entries
	k.observeHistory()
}

// saveHistory writes the in-memory history through. Caller must hold k.mu.
func (k *Keeper) saveHistory(ctx context.Context, op string) {
	k.observeHistory()
	data, err := json.Marshal(k.history)
	if err != nil {
		k.logger.Error("encode history", zap.Error(err))
		return
	}
	k.write(ctx, op, store.KeyHistory, string(data))
}

func (k *Keeper) observeHistory() {
	if k.metrics != nil {
		k.metrics.HistoryEntries.Set(float64(len(k.history)))
	}
}

func (k *Keeper) snapshot() []HistoryEntry {
	return append([]HistoryEntry{}, k.history...)
}

// AppendHistory prepends entry, evicts entries beyond the limit, and returns
// the updated list, newest first.
func (k *Keeper) AppendHistory(ctx context.Context, entry HistoryEntry) []HistoryEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.loadHistory(ctx)
	k.history = prepend(k.history, entry, k.limit)
	k.saveHistory(ctx, "append_history")
	return k.snapshot()
}

// Commit snapshots rec into history with a fresh, strictly increasing id.
func (k *Keeper) Commit(ctx context.Context, rec record.Record) (HistoryEntry, []HistoryEntry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.loadHistory(ctx)

	var lastID int64
	for _, e := range k.history {
		if e.ID > lastID {
			lastID = e.ID
		}
	}
	entry, err := NewHistoryEntry(rec, k.now(), lastID)
	if err != nil {
		return HistoryEntry{}, k.snapshot(), err
	}
	k.history = prepend(k.history, entry, k.limit)
	k.saveHistory(ctx, "append_history")
	return entry, k.snapshot(), nil
}

// ListHistory returns the history, newest first.
func (k *Keeper) ListHistory(ctx context.Context) []HistoryEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.loadHistory(ctx)
	return k.snapshot()
}

// GetHistory returns the entry with id.
func (k *Keeper) GetHistory(ctx context.Context, id int64) (HistoryEntry, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.loadHistory(ctx)
	for _, e := range k.history {
		if e.ID == id {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

// DeleteHistory removes the entry with id and returns the updated list and
// whether the entry existed.
func (k *Keeper) DeleteHistory(ctx context.Context, id int64) ([]HistoryEntry, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.loadHistory(ctx)

	kept := make([]HistoryEntry, 0, len(k.history))
	found := false
	for _, e := range k.history {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return k.snapshot(), false
	}
	k.history = kept
	k.saveHistory(ctx, "delete_history")
	return k.snapshot(), true
}

// ClearHistory removes every entry and returns the (empty) list.
func (k *Keeper) ClearHistory(ctx context.Context) []HistoryEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.historyLoaded = true
	k.history = nil
	k.observeHistory()
	k.remove(ctx, "clear_history", store.KeyHistory)
	return []HistoryEntry{}
}

// SaveSignature stores the clinician's signature image. An empty value clears it.
func (k *Keeper) SaveSignature(ctx context.Context, dataURL string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.signature = dataURL
	if dataURL == "" {
		k.remove(ctx, "clear_signature", store.KeySignature)
		return
	}
	k.write(ctx, "save_signature", store.KeySignature, dataURL)
}

// LoadSignature returns the stored signature image.
func (k *Keeper) LoadSignature(ctx context.Context) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.signature != "" {
		return k.signature, true
	}
	v, ok := k.read(ctx, "load_signature", store.KeySignature)
	if ok && v != "" {
		k.signature = v
		return v, true
	}
	return "", false
}
