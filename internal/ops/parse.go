package ops

import (
	"context"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/workbench"
)

// ParseInput contains parameters for the Parse operation.
type ParseInput struct {
	Kind string // optional, default: active kind
	Text string // free clinical text, required
}

// Parse extracts fields from free text with the assistant and merges them
// onto the live record. Blank extracted values never overwrite.
func Parse(ctx context.Context, wb *workbench.Workbench, input ParseInput) (*DraftOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	if input.Text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	out, err := wb.Parse(ctx, kind, input.Text)
	if err != nil {
		return nil, err
	}
	return draftOutput(wb, out.Record, out.Issues), nil
}
