package ops

import (
	"context"

	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// StatusOutput summarizes the session.
type StatusOutput struct {
	ActiveKind   record.Kind    `json:"active_kind"`
	Generation   uint64         `json:"generation"`
	HistoryCount int            `json:"history_count"`
	HistoryLimit int            `json:"history_limit"`
	Persistence  persist.Status `json:"persistence"`
	Assistant    string         `json:"assistant,omitempty"` // circuit breaker state
}

// BreakerReporter is implemented by collaborators guarded by a circuit breaker.
type BreakerReporter interface {
	State() string
}

// Status reports the active kind, history size and persistence health.
// breaker may be nil.
func Status(ctx context.Context, wb *workbench.Workbench, breaker BreakerReporter) *StatusOutput {
	out := &StatusOutput{
		ActiveKind:   wb.Kind(),
		Generation:   wb.Generation(),
		HistoryCount: len(wb.Keeper().ListHistory(ctx)),
		HistoryLimit: wb.Keeper().HistoryLimit(),
		Persistence:  wb.Keeper().Status(),
	}
	if breaker != nil {
		out.Assistant = breaker.State()
	}
	return out
}
