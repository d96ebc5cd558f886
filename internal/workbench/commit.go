package workbench

import (
	"context"
	"fmt"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
)

// CommitResult is the record as it stood when a commit was attempted.
type CommitResult struct {
	Record       record.Record           `json:"record"`
	Committed    bool                    `json:"committed"`
	Entry        *persist.HistorySummary `json:"entry,omitempty"`
	HistoryCount int                     `json:"history_count,omitempty"`
}

// Validate rejects a record that is not ready to leave the session.
func Validate(rec record.Record) error {
	if lint := record.Lint(rec); !lint.Valid {
		return errors.NewValidationFailed(lint.MissingFields)
	}
	return nil
}

// Commit validates the live record of kind and snapshots it into history.
// Exports call it before rendering; nothing is written when validation fails.
func (w *Workbench) Commit(ctx context.Context, kind record.Kind) (*CommitResult, error) {
	rec := w.Snapshot(kind)
	if err := Validate(rec); err != nil {
		return nil, err
	}
	entry, list, err := w.keeper.Commit(ctx, rec)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	summary := entry.Summary()
	return &CommitResult{Record: rec, Committed: true, Entry: &summary, HistoryCount: len(list)}, nil
}

// LoadFromHistory replaces the live record of the entry's kind with the
// entry's snapshot and makes that kind active.
func (w *Workbench) LoadFromHistory(ctx context.Context, id int64) (record.Record, error) {
	entry, ok := w.keeper.GetHistory(ctx, id)
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("history entry %d", id))
	}
	rec, err := entry.Record()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	w.SwitchKind(rec.Kind())
	return w.Replace(rec), nil
}

// Keeper exposes the session's persistence for history browsing.
func (w *Workbench) Keeper() *persist.Keeper {
	return w.keeper
}
