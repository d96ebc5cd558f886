package ops

import (
	"fmt"
	"strings"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// List edit actions.
const (
	ListAdd    = "add"
	ListRemove = "remove"
	ListToggle = "toggle"
)

// ListEditInput contains parameters for the ListEdit operation.
type ListEditInput struct {
	Kind   string
	Field  string // antecedentes, diagnostico, diagnosticosIngreso, diagnosticosActivos
	Action string // add (default), remove, toggle
	Value  string
	// Code, when set with Value as the label, is rendered "code - label".
	Code string
}

// ListEdit adds, removes or toggles one item of a list field. Adding an item
// that is already present is a no-op.
func ListEdit(wb *workbench.Workbench, input ListEditInput) (*DraftOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	item := strings.TrimSpace(input.Value)
	if input.Code != "" {
		item = record.FormatDiagnosis(input.Code, input.Value)
	}
	if item == "" {
		return nil, errors.NewInvalidRequest("value is required")
	}

	action := input.Action
	if action == "" {
		action = ListAdd
	}
	var edit func([]string, string) []string
	switch action {
	case ListAdd:
		edit = record.AddUnique
	case ListRemove:
		edit = record.Remove
	case ListToggle:
		edit = record.Toggle
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown action %q", action))
	}

	rec, err := wb.Mutate(kind, func(rec record.Record) error {
		list, ok := listField(rec, input.Field)
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("%s has no list field %q", kind.Slug(), input.Field))
		}
		*list = edit(*list, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return draftOutput(wb, rec, nil), nil
}

func listField(rec record.Record, field string) (*[]string, bool) {
	switch r := rec.(type) {
	case *record.Admission:
		switch field {
		case "antecedentes":
			return &r.Antecedentes, true
		case "diagnostico":
			return &r.Diagnostico, true
		}
	case *record.Evolution:
		switch field {
		case "diagnosticosIngreso":
			return &r.DiagnosticosIngreso, true
		case "diagnosticosActivos":
			return &r.DiagnosticosActivos, true
		}
	}
	return nil, false
}
