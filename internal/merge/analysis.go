package merge

import (
	"github.com/hpungsan/clinote/internal/record"
)

// ApplyAdmissionAnalysis takes the improved narrative and structured plan when
// present, and unions the suggested diagnoses as "code - label" tokens.
func ApplyAdmissionAnalysis(dst *record.Admission, a *record.AdmissionAnalysis) {
	if dst == nil || a == nil {
		return
	}
	setString(&dst.PadecimientoActual, a.PadecimientoMedico)
	setString(&dst.Plan, a.PlanEstructurado)
	dst.Diagnostico = record.Union(dst.Diagnostico, suggestionTokens(a.DiagnosticosSugeridos))
}

// ApplyEvolutionAnalysis takes the improved subjective, assessment and plan
// when present, and unions the suggested diagnoses into the active list.
func ApplyEvolutionAnalysis(dst *record.Evolution, a *record.EvolutionAnalysis) {
	if dst == nil || a == nil {
		return
	}
	setString(&dst.Subjetivo, a.SubjetivoMejorado)
	setString(&dst.Analisis, a.AnalisisClinico)
	setString(&dst.Plan, a.PlanSugerido)
	dst.DiagnosticosActivos = record.Union(dst.DiagnosticosActivos, suggestionTokens(a.DiagnosticosSugeridos))
}

// ApplyAnalysis dispatches on the record kind. It reports false when the
// analysis was produced for the other kind.
func ApplyAnalysis(dst record.Record, a record.Analysis) bool {
	switch d := dst.(type) {
	case *record.Admission:
		an, ok := a.(*record.AdmissionAnalysis)
		if !ok {
			return false
		}
		ApplyAdmissionAnalysis(d, an)
		return true
	case *record.Evolution:
		an, ok := a.(*record.EvolutionAnalysis)
		if !ok {
			return false
		}
		ApplyEvolutionAnalysis(d, an)
		return true
	}
	return false
}

func suggestionTokens(s []record.DiagnosisSuggestion) []string {
	tokens := make([]string, 0, len(s))
	for _, d := range s {
		tokens = append(tokens, d.Token())
	}
	return tokens
}
