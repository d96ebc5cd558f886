// Package record defines the Admission and SOAP Evolution note schemas and the
// pure rules that keep their derived fields consistent.
//
// JSON keys are the clinical form's field names; drafts, history snapshots,
// transfer payloads and assistant schemas all share them.
package record

import (
	"strings"
	"time"
)

// Kind identifies a record schema. The values are the history wire values.
type Kind string

const (
	KindAdmission Kind = "ingreso"
	KindEvolution Kind = "evolucion"
)

// Slug returns the English name used in store keys, URLs and CLI arguments.
func (k Kind) Slug() string {
	if k == KindEvolution {
		return "evolution"
	}
	return "admission"
}

// Title returns the document heading for the kind.
func (k Kind) Title() string {
	if k == KindEvolution {
		return "NOTA DE EVOLUCIÓN"
	}
	return "NOTA DE INGRESO"
}

// ParseKind accepts either the slug or the wire value.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admission", "ingreso":
		return KindAdmission, true
	case "evolution", "evolucion", "evolución":
		return KindEvolution, true
	}
	return "", false
}

// Record is implemented by *Admission and *Evolution.
type Record interface {
	Kind() Kind
	PatientName() string
	// Derive recomputes derived fields (BMI, and age where a birth date exists).
	Derive(now time.Time)
}

// VitalSigns holds the nine numeric-as-text vital sign fields. IMC is derived.
type VitalSigns struct {
	TA    string `json:"ta"`
	FC    string `json:"fc"`
	FR    string `json:"fr"`
	Temp  string `json:"temp"`
	Sat   string `json:"sat"`
	Gluc  string `json:"gluc"`
	Peso  string `json:"peso"`
	Talla string `json:"talla"`
	IMC   string `json:"imc"`
}

// GlasgowScale holds the ocular, verbal and motor sub-scores. Zero means absent.
type GlasgowScale struct {
	O Score `json:"o"`
	V Score `json:"v"`
	M Score `json:"m"`
}

// Obstetric holds gestas, partos, abortos and cesáreas.
type Obstetric struct {
	G Score `json:"g"`
	P Score `json:"p"`
	A Score `json:"a"`
	C Score `json:"c"`
}

// Admission is the initial-encounter note.
type Admission struct {
	Folio             string `json:"folio"`
	Nombre            string `json:"nombre"`
	FN                string `json:"fn"`
	Edad              string `json:"edad"`
	Sexo              string `json:"sexo"`
	Domicilio         string `json:"domicilio"`
	Telefono          string `json:"telefono"`
	Escolaridad       string `json:"escolaridad"`
	Ocupacion         string `json:"ocupacion"`
	EstadoCivil       string `json:"estadoCivil"`
	Responsable       string `json:"responsable"`
	MedicoTratante    string `json:"medicoTratante"`
	CedulaProfesional string `json:"cedulaProfesional"`

	SintomaPrincipal   string `json:"sintomaPrincipal"`
	TiempoEvolucion    string `json:"tiempoEvolucion"`
	PadecimientoActual string `json:"padecimientoActual"`

	Signos      VitalSigns   `json:"signos"`
	G           GlasgowScale `json:"g"`
	Pupilas     string       `json:"pupilas"`
	Exploracion string       `json:"exploracion"`

	Antecedentes []string  `json:"antecedentes"`
	Alergias     string    `json:"alergias"`
	Tabaquismo   string    `json:"tabaquismo"`
	Alcohol      string    `json:"alcohol"`
	GPAC         Obstetric `json:"gpac"`

	Diagnostico []string `json:"diagnostico"`
	Pronostico  string   `json:"pronostico"`
	Plan        string   `json:"plan"`

	// FirmaDataURL is the clinician's signature image as a data URL.
	FirmaDataURL *string `json:"firmaDataURL"`
}

// Evolution is the SOAP follow-up note.
type Evolution struct {
	Folio               string `json:"folio"`
	Nombre              string `json:"nombre"`
	Edad                string `json:"edad"`
	Sexo                string `json:"sexo"`
	Cama                string `json:"cama"`
	Escolaridad         string `json:"escolaridad"`
	Ocupacion           string `json:"ocupacion"`
	FechaIngreso        string `json:"fechaIngreso"`
	Fecha               string `json:"fecha"`
	Hora                string `json:"hora"`
	Medico              string `json:"medico"`
	FamiliarResponsable string `json:"familiarResponsable"`
	TelefonoFamiliar    string `json:"telefonoFamiliar"`

	// S
	Subjetivo string `json:"subjetivo"`

	// O
	Signos                VitalSigns   `json:"signos"`
	G                     GlasgowScale `json:"g"`
	Pupilas               string       `json:"pupilas"`
	ResultadosLaboratorio string       `json:"resultadosLaboratorio"`
	ExploracionFisica     string       `json:"exploracionFisica"`

	// A
	DiagnosticosIngreso []string `json:"diagnosticosIngreso"`
	DiagnosticosActivos []string `json:"diagnosticosActivos"`
	Analisis            string   `json:"analisis"`
	Pronostico          string   `json:"pronostico"`
	Pendientes          string   `json:"pendientes"`

	// P
	Plan string `json:"plan"`
}

func (a *Admission) Kind() Kind          { return KindAdmission }
func (a *Admission) PatientName() string { return a.Nombre }

func (e *Evolution) Kind() Kind          { return KindEvolution }
func (e *Evolution) PatientName() string { return e.Nombre }

// Derive recomputes imc from peso/talla, and edad when fn is a valid date.
func (a *Admission) Derive(now time.Time) {
	a.Signos.IMC = ComputeBMI(a.Signos.Peso, a.Signos.Talla)
	if _, ok := parseBirthDate(a.FN); ok {
		a.Edad = ComputeAge(a.FN, now)
	}
}

// Derive recomputes imc. Evolution notes carry age as free text.
func (e *Evolution) Derive(now time.Time) {
	e.Signos.IMC = ComputeBMI(e.Signos.Peso, e.Signos.Talla)
}

// Clone returns a deep copy.
func (a *Admission) Clone() *Admission {
	c := *a
	c.Antecedentes = cloneList(a.Antecedentes)
	c.Diagnostico = cloneList(a.Diagnostico)
	if a.FirmaDataURL != nil {
		s := *a.FirmaDataURL
		c.FirmaDataURL = &s
	}
	return &c
}

// Clone returns a deep copy.
func (e *Evolution) Clone() *Evolution {
	c := *e
	c.DiagnosticosIngreso = cloneList(e.DiagnosticosIngreso)
	c.DiagnosticosActivos = cloneList(e.DiagnosticosActivos)
	return &c
}

func cloneList(list []string) []string {
	if list == nil {
		return nil
	}
	return append([]string(nil), list...)
}

// Diagnoses returns the diagnosis list shown in summaries: the admission
// diagnosis list, or the active list of an evolution note.
func Diagnoses(r Record) []string {
	switch rec := r.(type) {
	case *Admission:
		return rec.Diagnostico
	case *Evolution:
		return rec.DiagnosticosActivos
	}
	return nil
}

// FolioOf returns the folio of either record kind.
func FolioOf(r Record) string {
	switch rec := r.(type) {
	case *Admission:
		return rec.Folio
	case *Evolution:
		return rec.Folio
	}
	return ""
}
