package bridge

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/record"
)

// fakeCollaborator returns a canned response and records the last request.
type fakeCollaborator struct {
	response string
	err      error
	calls    int
	last     Request
}

func (f *fakeCollaborator) Generate(ctx context.Context, req Request) (string, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestParseAdmission(t *testing.T) {
	fake := &fakeCollaborator{response: "```json\n" + `{
		"nombre": "Juan Pérez",
		"edad": "45 años",
		"signos": {"ta": "140/90", "peso": "70", "talla": "175"},
		"g": {"o": "4", "v": "5", "m": "6"},
		"diagnostico": [],
		"campoInventado": "x"
	}` + "\n```"}
	b := New(fake, nil, nil)

	res, err := b.ParseAdmission(context.Background(), "Juan Pérez 45 años, TA 140/90")
	require.NoError(t, err)

	adm, ok := res.Record.(*record.Admission)
	require.True(t, ok)
	assert.Equal(t, "Juan Pérez", adm.Nombre)
	assert.Equal(t, "140/90", adm.Signos.TA)
	assert.Equal(t, 15, record.GlasgowTotal(adm.G))
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "campoInventado", res.Issues[0].Field)

	assert.Equal(t, OpParse, fake.last.Operation)
	assert.Equal(t, "Juan Pérez 45 años, TA 140/90", fake.last.Payload)
	props := fake.last.Schema["properties"].(map[string]any)
	assert.Contains(t, props, "padecimientoActual")
	assert.NotContains(t, props, "firmaDataURL")
}

func TestParseEvolution_UsesSOAPSchema(t *testing.T) {
	fake := &fakeCollaborator{response: `{"subjetivo": "Refiere mejoría", "cama": "12"}`}
	res, err := New(fake, nil, nil).ParseEvolution(context.Background(), "cama 12, refiere mejoría")
	require.NoError(t, err)

	evo := res.Record.(*record.Evolution)
	assert.Equal(t, "12", evo.Cama)
	assert.Contains(t, fake.last.Instructions, "SOAP")
	assert.Contains(t, fake.last.Schema["properties"], "diagnosticosActivos")
}

func TestParse_EmptyTextShortCircuits(t *testing.T) {
	fake := &fakeCollaborator{response: `{}`}
	_, err := New(fake, nil, nil).ParseAdmission(context.Background(), "   \n")

	assert.True(t, errors.Is(err, errors.ErrCollaboratorFailure))
	assert.Zero(t, fake.calls)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeCollaborator
	}{
		{"transport error", &fakeCollaborator{err: stderrors.New("connection refused")}},
		{"not json", &fakeCollaborator{response: "Lo siento, no puedo ayudar con eso."}},
		{"json array", &fakeCollaborator{response: `["nombre"]`}},
		{"empty response", &fakeCollaborator{response: "```json\n```"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			res, err := New(tt.fake, nil, m).ParseAdmission(context.Background(), "texto")
			assert.Nil(t, res, "never a partial result")
			assert.ErrorIs(t, err, ErrFailure)
			assert.True(t, errors.Is(err, errors.ErrCollaboratorFailure))
			assert.Equal(t, 1, tt.fake.calls, "no retries")
		})
	}
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeCollaborator{err: context.Canceled}

	_, err := New(fake, nil, nil).ParseAdmission(ctx, "texto")
	assert.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestAnalyzeAdmission(t *testing.T) {
	fake := &fakeCollaborator{response: `{
		"observaciones": ["Falta tiempo de evolución"],
		"padecimientoMedico": "Paciente masculino de 45 años con dolor abdominal...",
		"diagnosticosSugeridos": [{"codigo": "I10", "nombre": "Hipertensión", "justificacion": "TA 160/100"}],
		"planEstructurado": "1. Dieta blanda..."
	}`}
	m := metrics.New()
	b := New(fake, nil, m)

	sig := "data:image/png;base64,AAAA"
	rec := record.NewAdmission()
	rec.Nombre = "Juan"
	rec.FirmaDataURL = &sig

	a, err := b.AnalyzeAdmission(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "I10 - Hipertensión", a.DiagnosticosSugeridos[0].Token())
	assert.Equal(t, "1. Dieta blanda...", a.PlanEstructurado)

	assert.NotContains(t, fake.last.Payload, "base64", "signature image is never sent")
	assert.Contains(t, fake.last.Payload, `"nombre": "Juan"`)
	assert.Contains(t, fake.last.Instructions, "7. Criterios de alarma")
	assert.Equal(t, &sig, rec.FirmaDataURL, "caller's record untouched")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssistantRequests.WithLabelValues(OpAnalyze, "ok")))
}

func TestAnalyze_DispatchAndFailure(t *testing.T) {
	fake := &fakeCollaborator{response: `{"observaciones": "debería ser lista"}`}
	b := New(fake, nil, nil)

	res, err := b.Analyze(context.Background(), record.NewEvolution())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrFailure)

	fake.response = `{"subjetivoMejorado": "Refiere disminución del dolor", "planSugerido": "1. Dieta"}`
	res, err = b.Analyze(context.Background(), record.NewEvolution())
	require.NoError(t, err)
	evo, ok := res.(*record.EvolutionAnalysis)
	require.True(t, ok)
	assert.Equal(t, "Refiere disminución del dolor", evo.SubjetivoMejorado)
	assert.True(t, strings.HasPrefix(fake.last.Instructions, "Actúa como Jefe"))
}
