package bridge

import (
	"reflect"
	"strings"

	"github.com/hpungsan/clinote/internal/record"
)

// planOrder is the seven-part ordering every generated plan must follow.
const planOrder = `1. Tipo de dieta.
2. SV (Signos Vitales) y CGE (Cuidados Generales de Enfermería).
3. Soluciones parenterales (calculadas si es posible o indicadas según patología).
4. Medicamentos (nombre, dosis, vía, horario).
5. Laboratorios y gabinete solicitados.
6. Otras indicaciones (posición, oxigenoterapia, etc.).
7. Criterios de alarma y reportar eventualidades.`

const parseAdmissionInstructions = `Analiza el siguiente texto (puede ser un reporte de mensajería o notas sueltas) y extrae la información para llenar una nota médica de ingreso.

INSTRUCCIONES:
1. Busca datos administrativos: folio, domicilio, teléfono, responsable, cédula profesional, médico tratante, escolaridad, ocupación.
2. Busca datos clínicos: síntoma principal, tiempo de evolución, padecimiento actual, signos vitales, Glasgow, pupilas, exploración, antecedentes, diagnósticos y plan.
3. Si el texto contiene etiquetas explícitas (ej. "Folio: 123"), úsalas con prioridad.
4. NO inventes datos. Lo que no aparezca en el texto devuélvelo como cadena vacía o lista vacía.
5. Los puntajes de Glasgow (o, v, m) van como cadenas de dígitos; usa "0" si el texto no los menciona.
6. La fecha de nacimiento (fn) va en formato YYYY-MM-DD.

Responde únicamente con un objeto JSON.

Texto a analizar:`

const parseEvolutionInstructions = `Analiza el siguiente texto y extrae la información para llenar una nota de evolución en formato SOAP (Subjetivo, Objetivo, Análisis, Plan).

INSTRUCCIONES:
1. Datos de estancia: folio, cama, fecha de ingreso, fecha y hora de la nota, médico, familiar responsable y su teléfono.
2. S: lo que refiere el paciente. O: signos vitales, Glasgow, pupilas, exploración física, resultados de laboratorio y gabinete.
3. A: diagnósticos de ingreso y diagnósticos activos por separado, análisis clínico, pronóstico y pendientes. P: plan.
4. NO inventes datos. Lo que no aparezca en el texto devuélvelo como cadena vacía o lista vacía.
5. Los puntajes de Glasgow (o, v, m) van como cadenas de dígitos; usa "0" si el texto no los menciona.

Responde únicamente con un objeto JSON.

Texto a analizar:`

const analyzeAdmissionInstructions = `Actúa como Jefe de Servicio de Medicina Interna revisando una nota de ingreso. Analiza, corrige y mejora la información del paciente (JSON al final).

1. padecimientoMedico: reescribe el padecimiento actual con terminología médica técnica (ej. "dolor de panza" -> "dolor abdominal", "vomitó sangre" -> "hematemesis"), en orden cronológico (inicio, evolución, estado actual) y congruente con los signos vitales. Integra los antecedentes relevantes.
2. diagnosticosSugeridos: de 3 a 5 diagnósticos CIE-10 ordenados por prioridad clínica, cada uno con código exacto, nombre estándar y una justificación breve basada en los datos.
3. planEstructurado: plan completo y congruente con los diagnósticos, en este orden obligatorio:
` + planOrder + `
4. observaciones: incongruencias clínicas, datos críticos faltantes o contradicciones (ej. "paciente inconsciente" con Glasgow 15).

Responde únicamente con un objeto JSON.

Información del paciente:`

const analyzeEvolutionInstructions = `Actúa como Jefe de Servicio de Medicina Interna revisando una nota de evolución SOAP. Analiza, corrige y mejora la nota (JSON al final).

1. subjetivoMejorado: reescribe el apartado subjetivo con terminología médica técnica, conservando lo que refiere el paciente.
2. analisisClinico: integra subjetivo, signos vitales, exploración y resultados en un análisis clínico de la evolución (mejoría, estabilidad o deterioro) y su justificación.
3. diagnosticosSugeridos: de 3 a 5 diagnósticos CIE-10 activos ordenados por prioridad clínica, con código exacto, nombre estándar y justificación breve.
4. planSugerido: plan actualizado en este orden obligatorio:
` + planOrder + `
5. observaciones: incongruencias clínicas, datos críticos faltantes o pendientes no resueltos.

Responde únicamente con un objeto JSON.

Nota de evolución:`

var scoreType = reflect.TypeOf(record.Score(0))

// recordSchema derives a response schema from a record type's JSON fields.
// The signature image is never requested.
func recordSchema(t reflect.Type) map[string]any {
	props := make(map[string]any)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" || name == "firmaDataURL" {
			continue
		}
		props[name] = fieldSchema(f.Type)
	}
	return map[string]any{"type": "OBJECT", "properties": props}
}

func fieldSchema(t reflect.Type) map[string]any {
	switch {
	case t == scoreType:
		return map[string]any{"type": "STRING", "description": "Cadena de dígitos; \"0\" si no se menciona"}
	case t.Kind() == reflect.Slice:
		return map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}}
	case t.Kind() == reflect.Struct:
		return recordSchema(t)
	}
	return map[string]any{"type": "STRING"}
}

var diagnosisSchema = map[string]any{
	"type":        "ARRAY",
	"description": "3 a 5 diagnósticos CIE-10 ordenados por prioridad clínica",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"codigo":        map[string]any{"type": "STRING", "description": "Código CIE-10 exacto"},
			"nombre":        map[string]any{"type": "STRING", "description": "Nombre estándar del diagnóstico"},
			"justificacion": map[string]any{"type": "STRING", "description": "Justificación clínica breve"},
		},
	},
}

var observationsSchema = map[string]any{
	"type":  "ARRAY",
	"items": map[string]any{"type": "STRING"},
}

var admissionAnalysisSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"observaciones":         observationsSchema,
		"padecimientoMedico":    map[string]any{"type": "STRING"},
		"diagnosticosSugeridos": diagnosisSchema,
		"planEstructurado":      map[string]any{"type": "STRING", "description": "Plan en el orden: 1. Dieta, 2. SV y CGE, 3. Soluciones, 4. Medicamentos, 5. Labs/Gabinete, 6. Otras, 7. Eventualidades"},
	},
	"required": []string{"observaciones", "padecimientoMedico", "diagnosticosSugeridos", "planEstructurado"},
}

var evolutionAnalysisSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"observaciones":         observationsSchema,
		"subjetivoMejorado":     map[string]any{"type": "STRING"},
		"diagnosticosSugeridos": diagnosisSchema,
		"analisisClinico":       map[string]any{"type": "STRING"},
		"planSugerido":          map[string]any{"type": "STRING", "description": "Plan en el orden: 1. Dieta, 2. SV y CGE, 3. Soluciones, 4. Medicamentos, 5. Labs/Gabinete, 6. Otras, 7. Eventualidades"},
	},
	"required": []string{"observaciones", "subjetivoMejorado", "diagnosticosSugeridos", "analisisClinico", "planSugerido"},
}
