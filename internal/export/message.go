package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/clinote/internal/record"
)

// Message renders rec as a chat digest with *bold* labels. A line or section
// appears only when at least one of its values is non-empty.
func Message(rec record.Record, now time.Time) string {
	var m digest
	switch r := rec.(type) {
	case *record.Admission:
		admissionMessage(&m, r, now)
	case *record.Evolution:
		evolutionMessage(&m, r, now)
	default:
		return ""
	}
	return m.String()
}

func admissionMessage(m *digest, a *record.Admission, now time.Time) {
	m.title(record.KindAdmission, now)

	m.line(field("Paciente", a.Nombre), field("Edad", a.Edad), field("Sexo", a.Sexo))
	m.line(field("Folio", a.Folio))
	m.line(field("Fecha Nac", a.FN))
	m.line(field("Síntoma", a.SintomaPrincipal), field("Evolución", a.TiempoEvolucion))
	m.line(field("Padecimiento", a.PadecimientoActual))
	m.end()

	vitalsSection(m, a.Signos, a.G, a.Pupilas)

	m.line(field("Antecedentes", strings.Join(a.Antecedentes, ", ")))
	m.line(field("Alergias", a.Alergias))
	m.line(field("G", a.GPAC.G.String()), field("P", a.GPAC.P.String()), field("A", a.GPAC.A.String()), field("C", a.GPAC.C.String()))
	m.end()

	m.bullets("DIAGNÓSTICO", a.Diagnostico)
	m.block("PLAN:", a.Plan)
	m.line(field("Médico", a.MedicoTratante), field("Cédula", a.CedulaProfesional))
}

func evolutionMessage(m *digest, e *record.Evolution, now time.Time) {
	m.title(record.KindEvolution, now)

	m.line(field("Paciente", e.Nombre), field("Edad", e.Edad), field("Cama", e.Cama))
	m.line(field("Folio", e.Folio), field("Ingreso", e.FechaIngreso))
	m.end()

	m.block("S:", e.Subjetivo)
	vitalsSection(m, e.Signos, e.G, e.Pupilas)
	m.block("Laboratorio:", e.ResultadosLaboratorio)
	m.block("Exploración:", e.ExploracionFisica)
	m.bullets("DIAGNÓSTICOS ACTIVOS", e.DiagnosticosActivos)
	m.block("A:", e.Analisis)
	m.line(field("Pronóstico", e.Pronostico))
	m.end()
	m.block("Pendientes:", e.Pendientes)
	m.block("P:", e.Plan)
	m.line(field("Médico", e.Medico))
}

func vitalsSection(m *digest, s record.VitalSigns, g record.GlasgowScale, pupilas string) {
	vitals := joinParts(" | ",
		plain("TA", s.TA), plain("FC", s.FC), plain("FR", s.FR), plain("Temp", s.Temp),
		plain("Sat", s.Sat), plain("Gluc", s.Gluc))
	body := joinParts(" | ", plain("Peso", s.Peso), plain("Talla", s.Talla), plain("IMC", s.IMC))

	glasgow := ""
	if g.O != 0 || g.V != 0 || g.M != 0 {
		glasgow = strconv.Itoa(record.GlasgowTotal(g))
	}
	neuro := joinParts(" | ", field("Glasgow", glasgow), field("Pupilas", pupilas))

	if vitals == "" && body == "" && neuro == "" {
		return
	}
	m.raw("*SIGNOS VITALES*")
	m.raw(vitals)
	m.raw(body)
	m.raw(neuro)
	m.end()
}

// digest accumulates message lines, collapsing runs of blank lines.
type digest struct {
	lines []string
}

func (m *digest) title(kind record.Kind, now time.Time) {
	m.raw("*" + kind.Title() + "*")
	m.raw("_" + now.Format(dateLayout+" "+timeLayout) + "_")
	m.end()
}

// line joins the non-empty parts with " | " and drops the line when all are empty.
func (m *digest) line(parts ...string) {
	m.raw(joinParts(" | ", parts...))
}

func (m *digest) raw(s string) {
	if s != "" {
		m.lines = append(m.lines, s)
	}
}

// end closes a section with a blank line.
func (m *digest) end() {
	if n := len(m.lines); n > 0 && m.lines[n-1] != "" {
		m.lines = append(m.lines, "")
	}
}

func (m *digest) block(label, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	m.raw("*" + label + "*")
	m.raw(body)
	m.end()
}

func (m *digest) bullets(label string, items []string) {
	var kept []string
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			kept = append(kept, "• "+item)
		}
	}
	if len(kept) == 0 {
		return
	}
	m.raw("*" + label + "*")
	m.lines = append(m.lines, kept...)
	m.end()
}

func (m *digest) String() string {
	return strings.TrimRight(strings.Join(m.lines, "\n"), "\n")
}

func field(label, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return "*" + label + ":* " + value
}

func plain(label, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return label + ": " + value
}

func joinParts(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
