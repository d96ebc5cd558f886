package record

// Summary is a record's identifying metadata without the clinical narrative.
// Used for browse operations (history list, search results).
type Summary struct {
	Kind        Kind     `json:"kind"`
	Nombre      string   `json:"nombre"`
	Folio       string   `json:"folio,omitempty"`
	Diagnostico []string `json:"diagnostico,omitempty"`
}

// Summarize projects a record to its Summary.
func Summarize(r Record) Summary {
	return Summary{
		Kind:        r.Kind(),
		Nombre:      r.PatientName(),
		Folio:       FolioOf(r),
		Diagnostico: Diagnoses(r),
	}
}
