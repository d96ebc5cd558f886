package ops

import (
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// AppendTemplateInput contains parameters for the AppendTemplate operation.
type AppendTemplateInput struct {
	Kind     string
	Template string // exam template name, e.g. "Abdomen"
}

// AppendTemplate appends a normal-exam paragraph to the physical exam.
func AppendTemplate(wb *workbench.Workbench, input AppendTemplateInput) (*DraftOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	if input.Template == "" {
		return nil, errors.NewInvalidRequest("template is required")
	}
	rec, err := wb.AppendExamTemplate(kind, input.Template)
	if err != nil {
		return nil, err
	}
	return draftOutput(wb, rec, nil), nil
}

// CatalogOutput lists the fixed choices offered while drafting.
type CatalogOutput struct {
	ExamTemplates      []record.ExamTemplate `json:"exam_templates"`
	Antecedents        []string              `json:"antecedents"`
	SuggestedDiagnoses []string              `json:"suggested_diagnoses"`
	PupilStates        []string              `json:"pupil_states"`
	Prognoses          []string              `json:"prognoses"`
	VitalSigns         []record.VitalSign    `json:"vital_signs"`
}

// Catalog returns the drafting choices.
func Catalog() *CatalogOutput {
	return &CatalogOutput{
		ExamTemplates:      record.ExamTemplates,
		Antecedents:        record.AntecedentOptions,
		SuggestedDiagnoses: record.SuggestedDiagnoses,
		PupilStates:        record.PupilStates,
		Prognoses:          record.Prognoses,
		VitalSigns:         record.VitalSignOrder,
	}
}
