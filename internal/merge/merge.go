// Package merge folds partial records and assistant critiques into the live
// record. A blank incoming value never erases an existing one.
package merge

import (
	"strings"
	"time"

	"github.com/hpungsan/clinote/internal/record"
)

// MergeAdmission copies every non-empty field of src onto dst, unions the
// list fields and recomputes derived fields. src is not modified.
func MergeAdmission(dst, src *record.Admission, now time.Time) {
	if dst == nil || src == nil {
		return
	}
	setString(&dst.Folio, src.Folio)
	setString(&dst.Nombre, src.Nombre)
	setString(&dst.FN, src.FN)
	setString(&dst.Edad, src.Edad)
	setString(&dst.Sexo, src.Sexo)
	setString(&dst.Domicilio, src.Domicilio)
	setString(&dst.Telefono, src.Telefono)
	setString(&dst.Escolaridad, src.Escolaridad)
	setString(&dst.Ocupacion, src.Ocupacion)
	setString(&dst.EstadoCivil, src.EstadoCivil)
	setString(&dst.Responsable, src.Responsable)
	setString(&dst.MedicoTratante, src.MedicoTratante)
	setString(&dst.CedulaProfesional, src.CedulaProfesional)
	setString(&dst.SintomaPrincipal, src.SintomaPrincipal)
	setString(&dst.TiempoEvolucion, src.TiempoEvolucion)
	setString(&dst.PadecimientoActual, src.PadecimientoActual)

	mergeSignos(&dst.Signos, src.Signos)
	mergeGlasgow(&dst.G, src.G)
	setString(&dst.Pupilas, src.Pupilas)
	setString(&dst.Exploracion, src.Exploracion)

	dst.Antecedentes = record.Union(dst.Antecedentes, src.Antecedentes)
	setString(&dst.Alergias, src.Alergias)
	setString(&dst.Tabaquismo, src.Tabaquismo)
	setString(&dst.Alcohol, src.Alcohol)
	setScore(&dst.GPAC.G, src.GPAC.G)
	setScore(&dst.GPAC.P, src.GPAC.P)
	setScore(&dst.GPAC.A, src.GPAC.A)
	setScore(&dst.GPAC.C, src.GPAC.C)

	dst.Diagnostico = record.Union(dst.Diagnostico, src.Diagnostico)
	setString(&dst.Pronostico, src.Pronostico)
	setString(&dst.Plan, src.Plan)

	if src.FirmaDataURL != nil && *src.FirmaDataURL != "" {
		s := *src.FirmaDataURL
		dst.FirmaDataURL = &s
	}

	dst.Derive(now)
}

// MergeEvolution is MergeAdmission for SOAP notes.
func MergeEvolution(dst, src *record.Evolution, now time.Time) {
	if dst == nil || src == nil {
		return
	}
	setString(&dst.Folio, src.Folio)
	setString(&dst.Nombre, src.Nombre)
	setString(&dst.Edad, src.Edad)
	setString(&dst.Sexo, src.Sexo)
	setString(&dst.Cama, src.Cama)
	setString(&dst.Escolaridad, src.Escolaridad)
	setString(&dst.Ocupacion, src.Ocupacion)
	setString(&dst.FechaIngreso, src.FechaIngreso)
	setString(&dst.Fecha, src.Fecha)
	setString(&dst.Hora, src.Hora)
	setString(&dst.Medico, src.Medico)
	setString(&dst.FamiliarResponsable, src.FamiliarResponsable)
	setString(&dst.TelefonoFamiliar, src.TelefonoFamiliar)

	setString(&dst.Subjetivo, src.Subjetivo)

	mergeSignos(&dst.Signos, src.Signos)
	mergeGlasgow(&dst.G, src.G)
	setString(&dst.Pupilas, src.Pupilas)
	setString(&dst.ResultadosLaboratorio, src.ResultadosLaboratorio)
	setString(&dst.ExploracionFisica, src.ExploracionFisica)

	dst.DiagnosticosIngreso = record.Union(dst.DiagnosticosIngreso, src.DiagnosticosIngreso)
	dst.DiagnosticosActivos = record.Union(dst.DiagnosticosActivos, src.DiagnosticosActivos)
	setString(&dst.Analisis, src.Analisis)
	setString(&dst.Pronostico, src.Pronostico)
	setString(&dst.Pendientes, src.Pendientes)

	setString(&dst.Plan, src.Plan)

	dst.Derive(now)
}

// Merge dispatches on the record kinds. It reports false when the kinds differ.
func Merge(dst, src record.Record, now time.Time) bool {
	switch d := dst.(type) {
	case *record.Admission:
		s, ok := src.(*record.Admission)
		if !ok {
			return false
		}
		MergeAdmission(d, s, now)
		return true
	case *record.Evolution:
		s, ok := src.(*record.Evolution)
		if !ok {
			return false
		}
		MergeEvolution(d, s, now)
		return true
	}
	return false
}

func mergeSignos(dst *record.VitalSigns, src record.VitalSigns) {
	setString(&dst.TA, src.TA)
	setString(&dst.FC, src.FC)
	setString(&dst.FR, src.FR)
	setString(&dst.Temp, src.Temp)
	setString(&dst.Sat, src.Sat)
	setString(&dst.Gluc, src.Gluc)
	setString(&dst.Peso, src.Peso)
	setString(&dst.Talla, src.Talla)
	// imc is derived after the merge
}

func mergeGlasgow(dst *record.GlasgowScale, src record.GlasgowScale) {
	setScore(&dst.O, src.O)
	setScore(&dst.V, src.V)
	setScore(&dst.M, src.M)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setScore(dst *record.Score, v record.Score) {
	if v != 0 {
		*dst = v
	}
}
