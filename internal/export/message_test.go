package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hpungsan/clinote/internal/record"
)

func TestMessage_Admission(t *testing.T) {
	msg := Message(sampleAdmission(), now)

	assert.True(t, strings.HasPrefix(msg, "*NOTA DE INGRESO*\n_17/10/2026 09:30_\n\n"))
	assert.Contains(t, msg, "*Paciente:* Ana María López | *Edad:* 35 años | *Sexo:* Femenino\n")
	assert.Contains(t, msg, "*Fecha Nac:* 1990-10-18\n")
	assert.Contains(t, msg, "*Síntoma:* Cefalea\n")
	assert.Contains(t, msg, "*SIGNOS VITALES*\nTA: 150/95 | FC: 88 | Temp: 36.7 | Sat: 97\nPeso: 70 | Talla: 175 | IMC: 22.9\n*Glasgow:* 15 | *Pupilas:* Isocóricas\n")
	assert.Contains(t, msg, "*DIAGNÓSTICO*\n• I10 - Hipertensión\n")
	assert.Contains(t, msg, "*PLAN:*\n1. Dieta hiposódica")
	assert.False(t, strings.HasSuffix(msg, "\n"))
}

func TestMessage_ConditionalInclusion(t *testing.T) {
	a := &record.Admission{Nombre: "Ana"}
	msg := Message(a, now)

	assert.Contains(t, msg, "*Paciente:* Ana")
	assert.NotContains(t, msg, "Edad")
	assert.NotContains(t, msg, "Fecha Nac")
	assert.NotContains(t, msg, "SIGNOS VITALES")
	assert.NotContains(t, msg, "DIAGNÓSTICO")
	assert.NotContains(t, msg, "PLAN")
	assert.NotContains(t, msg, "\n\n\n")
}

func TestMessage_GlasgowOnlyWhenScored(t *testing.T) {
	a := &record.Admission{Nombre: "Ana", Pupilas: "Mióticas"}
	msg := Message(a, now)
	assert.Contains(t, msg, "*SIGNOS VITALES*\n*Pupilas:* Mióticas")
	assert.NotContains(t, msg, "Glasgow")

	a.G = record.GlasgowScale{O: 3, V: 4, M: 5}
	assert.Contains(t, Message(a, now), "*Glasgow:* 12 | *Pupilas:* Mióticas")
}

func TestMessage_Evolution(t *testing.T) {
	e := &record.Evolution{
		Nombre:              "Luis",
		Cama:                "12-B",
		Subjetivo:           "Sin dolor",
		DiagnosticosActivos: []string{"J18 - Neumonía", " "},
		Plan:                "Alta mañana",
	}
	msg := Message(e, now)

	assert.True(t, strings.HasPrefix(msg, "*NOTA DE EVOLUCIÓN*\n"))
	assert.Contains(t, msg, "*Paciente:* Luis | *Cama:* 12-B\n")
	assert.Contains(t, msg, "*S:*\nSin dolor\n")
	assert.Contains(t, msg, "*DIAGNÓSTICOS ACTIVOS*\n• J18 - Neumonía\n\n")
	assert.Contains(t, msg, "*P:*\nAlta mañana")
	assert.NotContains(t, msg, "*A:*")
	assert.NotContains(t, msg, "Pendientes")
}
