package persist

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/clinote/internal/record"
)

// DefaultHistoryLimit is the number of committed notes kept.
const DefaultHistoryLimit = 30

// HistoryEntry is an immutable snapshot of a committed note.
type HistoryEntry struct {
	// ID is a unix-millisecond timestamp, strictly increasing across entries.
	ID        int64           `json:"id"`
	CreatedAt string          `json:"createdAt"`
	Kind      record.Kind     `json:"kind"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// NewHistoryEntry snapshots rec. The id is the commit time in milliseconds,
// bumped past lastID when two commits land in the same millisecond.
func NewHistoryEntry(rec record.Record, now time.Time, lastID int64) (HistoryEntry, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("snapshot %s: %w", rec.Kind(), err)
	}
	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	return HistoryEntry{
		ID:        id,
		CreatedAt: now.UTC().Format(time.RFC3339),
		Kind:      rec.Kind(),
		Snapshot:  data,
	}, nil
}

// Record decodes the snapshot into its typed record.
func (e HistoryEntry) Record() (record.Record, error) {
	var rec record.Record
	if e.Kind == record.KindEvolution {
		rec = &record.Evolution{}
	} else {
		rec = &record.Admission{}
	}
	if err := json.Unmarshal(e.Snapshot, rec); err != nil {
		return nil, fmt.Errorf("decode history entry %d: %w", e.ID, err)
	}
	return rec, nil
}

// HistorySummary is an entry without its snapshot body.
type HistorySummary struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"createdAt"`
	record.Summary
}

// Summary projects the entry for browse operations. Undecodable snapshots
// still produce a summary with the kind and timestamps.
func (e HistoryEntry) Summary() HistorySummary {
	s := HistorySummary{ID: e.ID, CreatedAt: e.CreatedAt, Summary: record.Summary{Kind: e.Kind}}
	if rec, err := e.Record(); err == nil {
		s.Summary = record.Summarize(rec)
	}
	return s
}

// HistoryFilter narrows a history listing.
type HistoryFilter struct {
	Kind  record.Kind // empty matches both kinds
	Query string      // case-insensitive match on name, folio and diagnoses
}

// FilterHistory returns the entries matching f, preserving order.
func FilterHistory(entries []HistoryEntry, f HistoryFilter) []HistoryEntry {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if query != "" && !matchesQuery(e.Summary(), query) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesQuery(s HistorySummary, query string) bool {
	fields := append([]string{s.Nombre, s.Folio}, s.Diagnostico...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// prepend adds entry at the head and evicts the oldest entries beyond limit.
func prepend(entries []HistoryEntry, entry HistoryEntry, limit int) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries)+1)
	out = append(out, entry)
	out = append(out, entries...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
