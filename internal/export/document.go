// Package export renders records as a print document, a chat digest, a
// transfer payload and a history spreadsheet, and writes export files safely.
//
// Renderers are pure functions of a record and a timestamp. Blank fields
// render as empty strings, never placeholders.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hpungsan/clinote/internal/record"
)

const (
	dateLayout = "02/01/2006"
	timeLayout = "15:04"
	facility   = "HOSPITAL GENERAL • URGENCIAS"
)

// Document renders rec as the fixed-layout markdown note.
func Document(rec record.Record, now time.Time) string {
	switch r := rec.(type) {
	case *record.Admission:
		return admissionDocument(r, now)
	case *record.Evolution:
		return evolutionDocument(r, now)
	}
	return ""
}

func admissionDocument(a *record.Admission, now time.Time) string {
	var b strings.Builder
	writeHeader(&b, record.KindAdmission, now.Format(dateLayout), now.Format(timeLayout), a.Folio)

	writeTable(&b, []string{"Paciente", "Edad", "Sexo"}, []string{a.Nombre, a.Edad, a.Sexo})

	writeSection(&b, "Motivo", a.PadecimientoActual)
	writeVitals(&b, a.Signos, a.G, a.Pupilas)
	writeSection(&b, "Exploración Física", a.Exploracion)
	writeList(&b, "Diagnóstico", a.Diagnostico)
	writeSection(&b, "Plan", a.Plan)
	writeSignature(&b, a.MedicoTratante, &a.CedulaProfesional)

	return b.String()
}

func evolutionDocument(e *record.Evolution, now time.Time) string {
	date := e.Fecha
	if strings.TrimSpace(date) == "" {
		date = now.Format(dateLayout)
	}
	hour := e.Hora
	if strings.TrimSpace(hour) == "" {
		hour = now.Format(timeLayout)
	}

	var b strings.Builder
	writeHeader(&b, record.KindEvolution, date, hour, e.Folio)

	writeTable(&b,
		[]string{"Paciente", "Edad", "Sexo", "Cama", "Fecha de ingreso"},
		[]string{e.Nombre, e.Edad, e.Sexo, e.Cama, e.FechaIngreso})

	writeSection(&b, "Subjetivo", e.Subjetivo)
	writeVitals(&b, e.Signos, e.G, e.Pupilas)
	writeSection(&b, "Resultados de Laboratorio", e.ResultadosLaboratorio)
	writeSection(&b, "Exploración Física", e.ExploracionFisica)
	writeList(&b, "Diagnósticos de Ingreso", e.DiagnosticosIngreso)
	writeList(&b, "Diagnósticos Activos", e.DiagnosticosActivos)
	writeSection(&b, "Análisis", e.Analisis)
	writeSection(&b, "Pronóstico", e.Pronostico)
	writeSection(&b, "Pendientes", e.Pendientes)
	writeSection(&b, "Plan", e.Plan)
	writeSignature(&b, e.Medico, nil)

	return b.String()
}

func writeHeader(b *strings.Builder, kind record.Kind, date, hour, folio string) {
	fmt.Fprintf(b, "# %s\n\n%s\n\n", kind.Title(), facility)
	writeTable(b, []string{"Fecha", "Hora", "Folio"}, []string{date, hour, folio})
}

func writeTable(b *strings.Builder, headers, values []string) {
	b.WriteString("|")
	for _, h := range headers {
		b.WriteString(" " + h + " |")
	}
	b.WriteString("\n|")
	for range headers {
		b.WriteString("---|")
	}
	b.WriteString("\n|")
	for _, v := range values {
		b.WriteString(" " + cell(v) + " |")
	}
	b.WriteString("\n\n")
}

func writeSection(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "## %s\n\n%s\n\n", title, strings.TrimSpace(body))
}

func writeList(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- **%s**\n", inline(item))
	}
	b.WriteString("\n")
}

func writeVitals(b *strings.Builder, s record.VitalSigns, g record.GlasgowScale, pupilas string) {
	b.WriteString("## Signos Vitales\n\n")

	headers := make([]string, 0, len(record.VitalSignOrder)+2)
	values := make([]string, 0, len(record.VitalSignOrder)+2)
	for _, vs := range record.VitalSignOrder {
		label := vs.Label
		if vs.Unit != "" {
			label += " (" + vs.Unit + ")"
		}
		headers = append(headers, label)
		values = append(values, s.Value(vs.Key))
	}
	headers = append(headers, "Glasgow", "Pupilas")
	values = append(values, strconv.Itoa(record.GlasgowTotal(g)), pupilas)

	writeTable(b, headers, values)
}

// writeSignature closes the document. license is nil for notes that carry
// no professional license field.
func writeSignature(b *strings.Builder, physician string, license *string) {
	b.WriteString("---\n\n")
	fmt.Fprintf(b, "**%s**\n", strings.TrimSpace("Dr(a). "+inline(physician)))
	if license != nil {
		fmt.Fprintf(b, "\n%s\n", strings.TrimSpace("Céd. Prof. "+inline(*license)))
	}
}

// cell flattens v for a table cell.
func cell(v string) string {
	return strings.ReplaceAll(inline(v), "|", `\|`)
}

func inline(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// DocumentHTML renders the document as an HTML fragment. Raw HTML typed into
// a field is not passed through.
func DocumentHTML(rec record.Record, now time.Time) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Document(rec, now)), &buf); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}

const wordEnvelope = "<html xmlns:o='urn:schemas-microsoft-com:office:office' " +
	"xmlns:w='urn:schemas-microsoft-com:office:word' " +
	"xmlns='http://www.w3.org/TR/REC-html40'><head><meta charset='utf-8'></head><body>"

// WordDocument wraps the HTML document in the Office HTML envelope that word
// processors open as a .doc file. It returns the suggested file name too.
func WordDocument(rec record.Record, now time.Time) (string, []byte, error) {
	body, err := DocumentHTML(rec, now)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	buf.WriteString(wordEnvelope)
	buf.WriteString(body)
	buf.WriteString("</body></html>")
	return FileName(rec, ".doc"), buf.Bytes(), nil
}

// FileName returns "Nota_<patient name with underscores><ext>".
func FileName(rec record.Record, ext string) string {
	name := strings.Join(strings.Fields(rec.PatientName()), "_")
	return "Nota_" + SanitizeForFilename(name) + ext
}
