package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// DraftOutput is a live record with its lint result and derived values.
type DraftOutput struct {
	Kind         record.Kind        `json:"kind"`
	Active       bool               `json:"active"`
	Record       record.Record      `json:"record"`
	GlasgowTotal int                `json:"glasgow_total"`
	Lint         *record.LintResult `json:"lint"`
	Issues       []record.Issue     `json:"issues,omitempty"`
	Persistence  persist.Status     `json:"persistence"`
}

func draftOutput(wb *workbench.Workbench, rec record.Record, issues []record.Issue) *DraftOutput {
	out := &DraftOutput{
		Kind:        rec.Kind(),
		Active:      rec.Kind() == wb.Kind(),
		Record:      rec,
		Lint:        record.Lint(rec),
		Issues:      issues,
		Persistence: wb.Keeper().Status(),
	}
	switch r := rec.(type) {
	case *record.Admission:
		out.GlasgowTotal = record.GlasgowTotal(r.G)
	case *record.Evolution:
		out.GlasgowTotal = record.GlasgowTotal(r.G)
	}
	return out
}

// DraftGetInput contains parameters for the DraftGet operation.
type DraftGetInput struct {
	Kind     string // optional, default: active kind
	Activate bool   // make Kind the active record
}

// DraftGet returns the live record of a kind.
func DraftGet(wb *workbench.Workbench, input DraftGetInput) (*DraftOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	if input.Activate {
		wb.SwitchKind(kind)
	}
	return draftOutput(wb, wb.Snapshot(kind), nil), nil
}

// DraftUpdateInput contains parameters for the DraftUpdate operation.
type DraftUpdateInput struct {
	Kind string
	// Fields is a JSON object of record fields. With Replace=false it is
	// merged like an assistant result: blank values never erase. With
	// Replace=true it becomes the whole record.
	Fields  json.RawMessage
	Replace bool
}

// DraftUpdate edits the live record of a kind.
func DraftUpdate(wb *workbench.Workbench, input DraftUpdateInput) (*DraftOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	if len(input.Fields) == 0 {
		return nil, errors.NewInvalidRequest("fields is required")
	}

	partial, issues, err := record.DecodePartialJSON(kind, input.Fields)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("fields must be a JSON object: %v", err))
	}

	var rec record.Record
	if input.Replace {
		rec = wb.Replace(partial)
	} else {
		rec = wb.Merge(partial)
	}
	return draftOutput(wb, rec, issues), nil
}

// DraftClearInput contains parameters for the DraftClear operation.
type DraftClearInput struct {
	Kind string
}

// DraftClear resets a kind to its defaults and deletes its saved draft.
func DraftClear(ctx context.Context, wb *workbench.Workbench, input DraftClearInput) (*DraftOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	return draftOutput(wb, wb.Reset(ctx, kind), nil), nil
}

// BirthDateInput contains parameters for the SetBirthDate operation.
type BirthDateInput struct {
	Year  int
	Month int
	Day   int
}

// SetBirthDate sets the admission birth date and derives the age.
func SetBirthDate(wb *workbench.Workbench, input BirthDateInput) (*DraftOutput, error) {
	if input.Year < 1 || input.Month < 1 || input.Month > 12 || input.Day < 1 || input.Day > 31 {
		return nil, errors.NewInvalidRequest("year, month and day are required")
	}
	return draftOutput(wb, wb.SetBirthDate(input.Year, input.Month, input.Day), nil), nil
}

// SignatureInput contains parameters for the SetSignature operation.
type SignatureInput struct {
	DataURL string // empty removes the signature
}

// SetSignature stores the clinician signature and attaches it to the admission.
func SetSignature(ctx context.Context, wb *workbench.Workbench, input SignatureInput) (*DraftOutput, error) {
	if input.DataURL != "" && !strings.HasPrefix(input.DataURL, "data:image/") {
		return nil, errors.NewInvalidRequest("signature must be an image data URL")
	}
	wb.SetSignature(ctx, input.DataURL)
	return draftOutput(wb, wb.Snapshot(record.KindAdmission), nil), nil
}
