package record

// DiagnosisSuggestion is one assistant-proposed diagnosis.
type DiagnosisSuggestion struct {
	Codigo        string `json:"codigo"`
	Nombre        string `json:"nombre"`
	Justificacion string `json:"justificacion"`
}

// Token renders the suggestion the way diagnosis lists store it.
func (d DiagnosisSuggestion) Token() string {
	return FormatDiagnosis(d.Codigo, d.Nombre)
}

// AdmissionAnalysis is the assistant's critique of an admission note.
type AdmissionAnalysis struct {
	Observaciones         []string              `json:"observaciones"`
	PadecimientoMedico    string                `json:"padecimientoMedico"`
	DiagnosticosSugeridos []DiagnosisSuggestion `json:"diagnosticosSugeridos"`
	PlanEstructurado      string                `json:"planEstructurado"`
}

// EvolutionAnalysis is the assistant's critique of a SOAP note.
type EvolutionAnalysis struct {
	Observaciones         []string              `json:"observaciones"`
	SubjetivoMejorado     string                `json:"subjetivoMejorado"`
	DiagnosticosSugeridos []DiagnosisSuggestion `json:"diagnosticosSugeridos"`
	AnalisisClinico       string                `json:"analisisClinico"`
	PlanSugerido          string                `json:"planSugerido"`
}

// Analysis is implemented by *AdmissionAnalysis and *EvolutionAnalysis.
type Analysis interface {
	Kind() Kind
}

func (*AdmissionAnalysis) Kind() Kind { return KindAdmission }
func (*EvolutionAnalysis) Kind() Kind { return KindEvolution }
