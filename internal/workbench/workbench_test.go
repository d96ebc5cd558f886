package workbench

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/clinote/internal/bridge"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/store"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

// scripted answers every request with respond.
type scripted struct {
	calls   int32
	respond func(ctx context.Context, req bridge.Request) (string, error)
}

func (s *scripted) Generate(ctx context.Context, req bridge.Request) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.respond(ctx, req)
}

func answer(text string) *scripted {
	return &scripted{respond: func(context.Context, bridge.Request) (string, error) { return text, nil }}
}

// blocking holds every request until release is closed or the call is cancelled.
func blocking(text string) (*scripted, chan struct{}) {
	release := make(chan struct{})
	return &scripted{respond: func(ctx context.Context, _ bridge.Request) (string, error) {
		select {
		case <-release:
			return text, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}, release
}

type fixture struct {
	store  *store.Memory
	keeper *persist.Keeper
	wb     *Workbench
}

func newFixture(t *testing.T, c bridge.Collaborator) *fixture {
	t.Helper()
	s := store.NewMemory()
	k := persist.NewKeeper(s, persist.Options{Now: func() time.Time { return testNow }})
	wb := New(Options{
		Keeper:   k,
		Bridge:   bridge.New(c, nil, nil),
		Now:      func() time.Time { return testNow },
		Debounce: time.Hour,
		Interval: time.Hour,
	})
	wb.Open(context.Background())
	t.Cleanup(wb.Close)
	return &fixture{store: s, keeper: k, wb: wb}
}

func admission(t *testing.T, rec record.Record) *record.Admission {
	t.Helper()
	a, ok := rec.(*record.Admission)
	require.True(t, ok, "expected admission, got %T", rec)
	return a
}

func TestOpen_RestoresDraftOntoDefaults(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(context.Background(), store.KeyAdmissionDraft, `{"nombre":"Ana","alergias":"","g":{"o":3}}`))
	require.NoError(t, s.Set(context.Background(), store.KeySignature, "data:image/png;base64,AA"))

	k := persist.NewKeeper(s, persist.Options{})
	wb := New(Options{Keeper: k, Bridge: bridge.New(answer("{}"), nil, nil), Now: func() time.Time { return testNow }})
	wb.Open(context.Background())
	defer wb.Close()

	a := admission(t, wb.Snapshot(record.KindAdmission))
	assert.Equal(t, "Ana", a.Nombre)
	assert.Equal(t, "Negados", a.Alergias, "blank draft values keep defaults")
	assert.Equal(t, record.Score(3), a.G.O)
	assert.Equal(t, record.Score(5), a.G.V)
	require.NotNil(t, a.FirmaDataURL)
	assert.Equal(t, "data:image/png;base64,AA", *a.FirmaDataURL)

	kind, running := wb.autosaver.Active()
	assert.True(t, running)
	assert.Equal(t, record.KindAdmission, kind)
}

func TestParse_MergesOntoLiveRecord(t *testing.T) {
	f := newFixture(t, answer(`{"nombre":"Ana","signos":{"peso":"70","talla":"175"},"diagnostico":["I10 - Hipertensión"]}`))
	f.wb.Merge(&record.Admission{Folio: "000-9", Diagnostico: []string{"I10 - Hipertensión"}})

	out, err := f.wb.Parse(context.Background(), record.KindAdmission, "Ana, 70 kg, 175 cm")
	require.NoError(t, err)

	a := admission(t, out.Record)
	assert.Equal(t, "Ana", a.Nombre)
	assert.Equal(t, "000-9", a.Folio)
	assert.Equal(t, "22.9", a.Signos.IMC)
	assert.Equal(t, []string{"I10 - Hipertensión"}, a.Diagnostico)
}

func TestParse_BlankTextRejected(t *testing.T) {
	c := answer("{}")
	f := newFixture(t, c)

	_, err := f.wb.Parse(context.Background(), record.KindAdmission, "   ")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.Zero(t, atomic.LoadInt32(&c.calls))
}

func TestParse_FailureLeavesRecord(t *testing.T) {
	f := newFixture(t, answer("no es json"))
	before := f.wb.Snapshot(record.KindAdmission)

	_, err := f.wb.Parse(context.Background(), record.KindAdmission, "texto")
	assert.True(t, errors.Is(err, errors.ErrCollaboratorFailure))
	assert.Equal(t, before, f.wb.Snapshot(record.KindAdmission))
}

func TestApplyParse_StaleAfterSwitch(t *testing.T) {
	c, release := blocking(`{"nombre":"Tarde"}`)
	f := newFixture(t, c)

	p, err := f.wb.StartParse(context.Background(), record.KindAdmission, "Tarde")
	require.NoError(t, err)

	f.wb.SwitchKind(record.KindEvolution)
	close(release)

	_, err = f.wb.ApplyParse(context.Background(), p)
	assert.True(t, errors.Is(err, errors.ErrStaleResult), "got %v", err)
	assert.Empty(t, admission(t, f.wb.Snapshot(record.KindAdmission)).Nombre)
}

func TestApplyParse_StaleAfterReset(t *testing.T) {
	c, release := blocking(`{"nombre":"Tarde"}`)
	f := newFixture(t, c)

	p, err := f.wb.StartParse(context.Background(), record.KindAdmission, "Tarde")
	require.NoError(t, err)
	f.wb.Reset(context.Background(), record.KindAdmission)
	close(release)

	_, err = f.wb.ApplyParse(context.Background(), p)
	assert.True(t, errors.Is(err, errors.ErrStaleResult))
}

func TestPending_Cancel(t *testing.T) {
	c, _ := blocking(`{}`)
	f := newFixture(t, c)

	p, err := f.wb.StartParse(context.Background(), record.KindAdmission, "x")
	require.NoError(t, err)
	p.Cancel()

	_, err = f.wb.ApplyParse(context.Background(), p)
	assert.True(t, errors.Is(err, errors.ErrCancelled), "got %v", err)
}

func TestParse_BusyGate(t *testing.T) {
	f := newFixture(t, answer(`{}`))

	release, ok := f.wb.TryBegin(bridge.OpParse)
	require.True(t, ok)

	_, err := f.wb.Parse(context.Background(), record.KindAdmission, "x")
	assert.True(t, errors.Is(err, errors.ErrBusy))

	_, again := f.wb.TryBegin(bridge.OpParse)
	assert.False(t, again)

	release()
	release()
	_, err = f.wb.Parse(context.Background(), record.KindAdmission, "x")
	assert.NoError(t, err)
}

func TestAnalyze_RequiresNarrative(t *testing.T) {
	c := answer(`{}`)
	f := newFixture(t, c)
	f.wb.Merge(&record.Admission{Nombre: "Ana", PadecimientoActual: "dolor"})

	_, err := f.wb.Analyze(context.Background(), record.KindAdmission)
	assert.True(t, errors.Is(err, errors.ErrValidationFailed))
	assert.Zero(t, atomic.LoadInt32(&c.calls), "rejected before any network call")
}

const analysisJSON = `{
	"observaciones": ["Falta exploración neurológica"],
	"padecimientoMedico": "Cefalea holocraneana de 24 horas",
	"diagnosticosSugeridos": [{"codigo": "I10", "nombre": "Hipertensión", "justificacion": "TA elevada"}],
	"planEstructurado": "1. Dieta hiposódica"
}`

func TestAnalyzeAndApply_CommitsToHistory(t *testing.T) {
	f := newFixture(t, answer(analysisJSON))
	f.wb.Merge(&record.Admission{
		Nombre:             "Ana",
		PadecimientoActual: "dolor de cabeza desde ayer",
		Diagnostico:        []string{"I10 - Hipertensión"},
	})

	a, err := f.wb.Analyze(context.Background(), record.KindAdmission)
	require.NoError(t, err)
	assert.Equal(t, []string{"Falta exploración neurológica"}, a.(*record.AdmissionAnalysis).Observaciones)

	res, err := f.wb.ApplyAnalysis(context.Background(), record.KindAdmission, nil)
	require.NoError(t, err)
	assert.True(t, res.Committed)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "Ana", res.Entry.Nombre)

	rec := admission(t, res.Record)
	assert.Equal(t, "Cefalea holocraneana de 24 horas", rec.PadecimientoActual)
	assert.Equal(t, "1. Dieta hiposódica", rec.Plan)
	assert.Equal(t, []string{"I10 - Hipertensión"}, rec.Diagnostico)

	assert.Len(t, f.keeper.ListHistory(context.Background()), 1)

	_, err = f.wb.ApplyAnalysis(context.Background(), record.KindAdmission, nil)
	assert.True(t, errors.Is(err, errors.ErrStaleResult), "an analysis is applied once")
}

func TestApplyAnalysis_WithoutNameIsNotCommitted(t *testing.T) {
	f := newFixture(t, answer("{}"))

	res, err := f.wb.ApplyAnalysis(context.Background(), record.KindAdmission, &record.AdmissionAnalysis{PlanEstructurado: "plan"})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, "plan", admission(t, res.Record).Plan)
	assert.Empty(t, f.keeper.ListHistory(context.Background()))

	_, err = f.wb.ApplyAnalysis(context.Background(), record.KindEvolution, &record.AdmissionAnalysis{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestAnalysis_StaleAfterSwitch(t *testing.T) {
	c, release := blocking(analysisJSON)
	f := newFixture(t, c)
	f.wb.Merge(&record.Admission{PadecimientoActual: "dolor de cabeza desde ayer"})

	p, err := f.wb.StartAnalyze(context.Background(), record.KindAdmission)
	require.NoError(t, err)
	f.wb.SwitchKind(record.KindEvolution)
	close(release)

	_, err = f.wb.AwaitAnalysis(context.Background(), p)
	assert.True(t, errors.Is(err, errors.ErrStaleResult))
	_, ok := f.wb.LastAnalysis(record.KindAdmission)
	assert.False(t, ok)
}

func TestCommit_ValidationGate(t *testing.T) {
	f := newFixture(t, answer("{}"))

	_, err := f.wb.Commit(context.Background(), record.KindAdmission)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidationFailed))
	assert.Empty(t, f.keeper.ListHistory(context.Background()))

	f.wb.Merge(&record.Admission{Nombre: "Ana"})
	res, err := f.wb.Commit(context.Background(), record.KindAdmission)
	require.NoError(t, err)
	assert.Equal(t, 1, res.HistoryCount)
}

func TestLoadFromHistory(t *testing.T) {
	f := newFixture(t, answer("{}"))
	f.wb.SwitchKind(record.KindEvolution)
	f.wb.Merge(&record.Evolution{Nombre: "Luis", Cama: "4"})
	res, err := f.wb.Commit(context.Background(), record.KindEvolution)
	require.NoError(t, err)

	f.wb.Reset(context.Background(), record.KindEvolution)
	f.wb.SwitchKind(record.KindAdmission)

	rec, err := f.wb.LoadFromHistory(context.Background(), res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, record.KindEvolution, f.wb.Kind())
	assert.Equal(t, "4", rec.(*record.Evolution).Cama)

	_, err = f.wb.LoadFromHistory(context.Background(), 1)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReset_KeepsSignatureAndClearsDraft(t *testing.T) {
	f := newFixture(t, answer("{}"))
	ctx := context.Background()
	f.wb.SetSignature(ctx, "data:image/png;base64,ZZ")
	f.wb.Merge(&record.Admission{Nombre: "Ana"})
	f.wb.autosaver.Tick()

	_, ok, _ := f.store.Get(ctx, store.KeyAdmissionDraft)
	require.True(t, ok)

	a := admission(t, f.wb.Reset(ctx, record.KindAdmission))
	assert.Empty(t, a.Nombre)
	require.NotNil(t, a.FirmaDataURL)

	_, ok, _ = f.store.Get(ctx, store.KeyAdmissionDraft)
	assert.False(t, ok)
}

func TestMutations(t *testing.T) {
	f := newFixture(t, answer("{}"))

	a := admission(t, f.wb.SetBirthDate(1990, 10, 18))
	assert.Equal(t, "1990-10-18", a.FN)
	assert.Equal(t, "35 años", a.Edad)

	rec, err := f.wb.AppendExamTemplate(record.KindAdmission, "Abdomen")
	require.NoError(t, err)
	first := admission(t, rec).Exploracion
	assert.Contains(t, first, "Abdomen blando")

	rec, err = f.wb.AppendExamTemplate(record.KindAdmission, "Extremidades")
	require.NoError(t, err)
	assert.Contains(t, admission(t, rec).Exploracion, first+"\nExtremidades íntegras")

	_, err = f.wb.AppendExamTemplate(record.KindAdmission, "Inexistente")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	rec, err = f.wb.AppendExamTemplate(record.KindEvolution, "Abdomen")
	require.NoError(t, err)
	assert.Contains(t, rec.(*record.Evolution).ExploracionFisica, "Abdomen blando")
}

func TestEditInactiveKind_SavedImmediately(t *testing.T) {
	f := newFixture(t, answer("{}"))
	f.wb.Merge(&record.Evolution{Nombre: "Luis"})

	v, ok, err := f.store.Get(context.Background(), store.KeyEvolutionDraft)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, v, `"nombre":"Luis"`)
}

func TestClose_FlushesAndStops(t *testing.T) {
	f := newFixture(t, answer("{}"))
	f.wb.Merge(&record.Admission{Nombre: "Ana"})

	f.wb.Close()
	f.wb.Close()

	v, ok, _ := f.store.Get(context.Background(), store.KeyAdmissionDraft)
	require.True(t, ok)
	assert.Contains(t, v, `"nombre":"Ana"`)

	require.NoError(t, f.store.Delete(context.Background(), store.KeyAdmissionDraft))
	f.wb.Merge(&record.Admission{Nombre: "Otra"})
	f.wb.autosaver.Tick()
	_, ok, _ = f.store.Get(context.Background(), store.KeyAdmissionDraft)
	assert.False(t, ok, "no writes after close")
}

func TestConcurrentEdits(t *testing.T) {
	f := newFixture(t, answer("{}"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.wb.Merge(&record.Admission{Antecedentes: []string{"A", "B"}})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"A", "B"}, admission(t, f.wb.Snapshot(record.KindAdmission)).Antecedentes)
}
