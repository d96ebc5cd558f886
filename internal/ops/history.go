package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/export"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// HistoryListInput contains parameters for the HistoryList operation.
type HistoryListInput struct {
	Kind   string // optional filter; empty lists both kinds
	Query  string // optional: matches name, folio and diagnoses
	Limit  int
	Offset int
}

// HistoryListOutput contains a page of history summaries, newest first.
type HistoryListOutput struct {
	Entries    []persist.HistorySummary `json:"entries"`
	Pagination Pagination               `json:"pagination"`
}

// HistoryList browses committed notes.
func HistoryList(ctx context.Context, wb *workbench.Workbench, input HistoryListInput) (*HistoryListOutput, error) {
	filter := persist.HistoryFilter{Query: input.Query}
	if input.Kind != "" {
		kind, ok := record.ParseKind(input.Kind)
		if !ok {
			return nil, errors.NewInvalidRequest("kind must be admission or evolution")
		}
		filter.Kind = kind
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	matched := persist.FilterHistory(wb.Keeper().ListHistory(ctx), filter)
	total := len(matched)

	page := []persist.HistoryEntry{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = matched[offset:end]
	}

	summaries := make([]persist.HistorySummary, 0, len(page))
	for _, e := range page {
		summaries = append(summaries, e.Summary())
	}

	return &HistoryListOutput{
		Entries: summaries,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(page) < total,
			Total:   total,
		},
	}, nil
}

// HistoryGetInput contains parameters for the HistoryGet operation.
type HistoryGetInput struct {
	ID int64
}

// HistoryGetOutput is a full history entry.
type HistoryGetOutput struct {
	persist.HistorySummary
	Record record.Record `json:"record"`
}

// HistoryGet returns one committed note with its snapshot.
func HistoryGet(ctx context.Context, wb *workbench.Workbench, input HistoryGetInput) (*HistoryGetOutput, error) {
	entry, ok := wb.Keeper().GetHistory(ctx, input.ID)
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("history entry %d", input.ID))
	}
	rec, err := entry.Record()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &HistoryGetOutput{HistorySummary: entry.Summary(), Record: rec}, nil
}

// HistoryDeleteInput contains parameters for the HistoryDelete operation.
type HistoryDeleteInput struct {
	ID int64
}

// HistoryDeleteOutput reports the history size after a delete or clear.
type HistoryDeleteOutput struct {
	Deleted   int `json:"deleted"`
	Remaining int `json:"remaining"`
}

// HistoryDelete removes one committed note.
func HistoryDelete(ctx context.Context, wb *workbench.Workbench, input HistoryDeleteInput) (*HistoryDeleteOutput, error) {
	remaining, ok := wb.Keeper().DeleteHistory(ctx, input.ID)
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("history entry %d", input.ID))
	}
	return &HistoryDeleteOutput{Deleted: 1, Remaining: len(remaining)}, nil
}

// HistoryClear removes every committed note.
func HistoryClear(ctx context.Context, wb *workbench.Workbench) *HistoryDeleteOutput {
	before := len(wb.Keeper().ListHistory(ctx))
	wb.Keeper().ClearHistory(ctx)
	return &HistoryDeleteOutput{Deleted: before, Remaining: 0}
}

// HistoryLoadInput contains parameters for the HistoryLoad operation.
type HistoryLoadInput struct {
	ID int64
}

// HistoryLoad copies a committed note back into the live record of its kind
// and makes that kind active.
func HistoryLoad(ctx context.Context, wb *workbench.Workbench, input HistoryLoadInput) (*DraftOutput, error) {
	rec, err := wb.LoadFromHistory(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return draftOutput(wb, rec, nil), nil
}

// HistoryWorkbookInput contains parameters for the HistoryWorkbook operation.
type HistoryWorkbookInput struct {
	Kind  string
	Query string
	Path  string // optional .xlsx destination
}

// HistoryWorkbookOutput holds the spreadsheet or where it was written.
type HistoryWorkbookOutput struct {
	Data    []byte `json:"-"`
	Path    string `json:"path,omitempty"`
	Bytes   int    `json:"bytes"`
	Entries int    `json:"entries"`
}

// HistoryWorkbook renders the (optionally filtered) history as a spreadsheet.
func HistoryWorkbook(ctx context.Context, wb *workbench.Workbench, cfg *config.Config, input HistoryWorkbookInput) (*HistoryWorkbookOutput, error) {
	filter := persist.HistoryFilter{Query: input.Query}
	if input.Kind != "" {
		kind, ok := record.ParseKind(input.Kind)
		if !ok {
			return nil, errors.NewInvalidRequest("kind must be admission or evolution")
		}
		filter.Kind = kind
	}
	entries := persist.FilterHistory(wb.Keeper().ListHistory(ctx), filter)

	data, err := export.HistoryWorkbook(entries)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	out := &HistoryWorkbookOutput{Bytes: len(data), Entries: len(entries)}
	if input.Path == "" {
		out.Data = data
		return out, nil
	}
	if err := export.WriteFile(input.Path, data, cfg); err != nil {
		return nil, err
	}
	out.Path = input.Path
	return out, nil
}
