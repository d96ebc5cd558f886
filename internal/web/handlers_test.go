package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hpungsan/clinote/internal/bridge"
	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/store"
	"github.com/hpungsan/clinote/internal/workbench"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

type cannedCollaborator struct {
	text string
}

func (c cannedCollaborator) Generate(context.Context, bridge.Request) (string, error) {
	return c.text, nil
}

func setupTest(t *testing.T, answer string) (http.Handler, *workbench.Workbench) {
	t.Helper()
	keeper := persist.NewKeeper(store.NewMemory(), persist.Options{Now: func() time.Time { return testNow }})
	wb := workbench.New(workbench.Options{
		Keeper:   keeper,
		Bridge:   bridge.New(cannedCollaborator{text: answer}, nil, nil),
		Now:      func() time.Time { return testNow },
		Debounce: time.Hour,
		Interval: time.Hour,
	})
	wb.Open(context.Background())
	t.Cleanup(wb.Close)

	router := NewRouter(Deps{
		Workbench: wb,
		Config:    config.DefaultConfig(),
		Metrics:   metrics.New(),
	}, "test")
	return router, wb
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	obj, ok := decodeJSON(t, rec)["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	return obj["code"].(string)
}

func TestHealth(t *testing.T) {
	h, _ := setupTest(t, "{}")

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	h, _ := setupTest(t, "{}")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "ward-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "ward-7" {
		t.Errorf("X-Request-ID = %q, want ward-7", got)
	}
}

func TestDraftUpdateAndGet(t *testing.T) {
	h, _ := setupTest(t, "{}")

	rec := do(t, h, http.MethodPut, "/notes/admission", `{"nombre":"Ana","signos":{"peso":"70","talla":"175"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/notes/admission", "")
	body := decodeJSON(t, rec)
	draft := body["record"].(map[string]any)
	if draft["nombre"] != "Ana" {
		t.Errorf("nombre = %v, want Ana", draft["nombre"])
	}
	if draft["signos"].(map[string]any)["imc"] != "22.9" {
		t.Errorf("imc = %v, want 22.9", draft["signos"].(map[string]any)["imc"])
	}
}

func TestDraftUpdate_InvalidKind(t *testing.T) {
	h, _ := setupTest(t, "{}")

	rec := do(t, h, http.MethodGet, "/notes/discharge", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_REQUEST" {
		t.Errorf("code = %s", code)
	}
}

func TestActivateAndClear(t *testing.T) {
	h, wb := setupTest(t, "{}")

	do(t, h, http.MethodPut, "/notes/evolution", `{"nombre":"Luis"}`)
	rec := do(t, h, http.MethodPost, "/notes/evolution/activate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("activate status = %d", rec.Code)
	}
	if wb.Kind() != record.KindEvolution {
		t.Errorf("active kind = %s, want evolution", wb.Kind())
	}

	rec = do(t, h, http.MethodDelete, "/notes/evolution", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if wb.Snapshot(record.KindEvolution).(*record.Evolution).Nombre != "" {
		t.Error("evolution should be reset")
	}
}

func TestListEditAndExam(t *testing.T) {
	h, wb := setupTest(t, "{}")

	rec := do(t, h, http.MethodPost, "/notes/admission/lists/diagnostico", `{"value":"Neumonía","code":"J18.9"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("list edit status = %d: %s", rec.Code, rec.Body.String())
	}
	a := wb.Snapshot(record.KindAdmission).(*record.Admission)
	if len(a.Diagnostico) != 1 || a.Diagnostico[0] != "J18.9 - Neumonía" {
		t.Errorf("diagnostico = %v", a.Diagnostico)
	}

	rec = do(t, h, http.MethodPost, "/notes/admission/exam", `{"template":"Abdomen"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("exam status = %d: %s", rec.Code, rec.Body.String())
	}
	if wb.Snapshot(record.KindAdmission).(*record.Admission).Exploracion == "" {
		t.Error("exam template not appended")
	}

	rec = do(t, h, http.MethodPost, "/notes/admission/exam", `{"template":"Nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown template status = %d, want 404", rec.Code)
	}
}

func TestBirthDate_AdmissionOnly(t *testing.T) {
	h, _ := setupTest(t, "{}")

	rec := do(t, h, http.MethodPut, "/notes/admission/birth-date", `{"year":1990,"month":1,"day":15}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if age := decodeJSON(t, rec)["record"].(map[string]any)["edad"]; age != "36 años" {
		t.Errorf("edad = %v, want 36 años", age)
	}

	rec = do(t, h, http.MethodPut, "/notes/evolution/birth-date", `{"year":1990,"month":1,"day":15}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("evolution birth-date status = %d, want 404", rec.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	h, _ := setupTest(t, "{}")

	rec := do(t, h, http.MethodPost, "/notes/admission/parse", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestParse(t *testing.T) {
	h, wb := setupTest(t, `{"nombre":"Luis","sintomaPrincipal":"Disnea"}`)

	rec := do(t, h, http.MethodPost, "/notes/admission/parse", `{"text":"Luis con disnea de 2 días"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := wb.Snapshot(record.KindAdmission).(*record.Admission).Nombre; got != "Luis" {
		t.Errorf("nombre = %q, want Luis", got)
	}
}

func TestParse_CollaboratorFailure(t *testing.T) {
	h, _ := setupTest(t, "no JSON here")

	rec := do(t, h, http.MethodPost, "/notes/admission/parse", `{"text":"algo"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if code := errorCode(t, rec); code != "COLLABORATOR_FAILURE" {
		t.Errorf("code = %s", code)
	}
}

func TestAnalyzeAndApply(t *testing.T) {
	h, wb := setupTest(t, `{"observaciones":["ok"],"subjetivoMejorado":"Paciente refiere mejoría","diagnosticosSugeridos":[],"analisisClinico":"Evolución favorable","planSugerido":"Alta"}`)

	do(t, h, http.MethodPut, "/notes/evolution", `{"nombre":"Luis","subjetivo":"mejor"}`)

	rec := do(t, h, http.MethodPost, "/notes/evolution/analyze", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/notes/evolution/apply", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d: %s", rec.Code, rec.Body.String())
	}
	if decodeJSON(t, rec)["committed"] != true {
		t.Error("apply should commit a named note")
	}
	if got := wb.Snapshot(record.KindEvolution).(*record.Evolution).Plan; got != "Alta" {
		t.Errorf("plan = %q, want Alta", got)
	}

	rec = do(t, h, http.MethodPost, "/notes/evolution/apply", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second apply status = %d, want 409", rec.Code)
	}
}

func TestExport(t *testing.T) {
	h, _ := setupTest(t, "{}")
	do(t, h, http.MethodPut, "/notes/admission", `{"nombre":"Ana López"}`)

	rec := do(t, h, http.MethodGet, "/notes/admission/export/html?download=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("X-History-Entry") == "" {
		t.Error("export should report the history entry")
	}
	if !strings.Contains(rec.Body.String(), "Ana López") {
		t.Error("body missing patient name")
	}

	rec = do(t, h, http.MethodGet, "/history", "")
	entries := decodeJSON(t, rec)["entries"].([]any)
	if len(entries) != 1 {
		t.Errorf("history entries = %d, want 1", len(entries))
	}
}

func TestExport_Unnamed(t *testing.T) {
	h, _ := setupTest(t, "{}")

	rec := do(t, h, http.MethodGet, "/notes/admission/export/document", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if code := errorCode(t, rec); code != "VALIDATION_FAILED" {
		t.Errorf("code = %s", code)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	src, _ := setupTest(t, "{}")
	do(t, src, http.MethodPut, "/notes/admission", `{"nombre":"Ana","folio":"A-1"}`)

	rec := do(t, src, http.MethodGet, "/notes/admission/export/payload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("payload status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := rec.Body.String()

	dst, wb := setupTest(t, "{}")
	rec = do(t, dst, http.MethodPost, "/notes/admission/ingest", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d: %s", rec.Code, rec.Body.String())
	}
	if decodeJSON(t, rec)["applied"] != true {
		t.Error("payload should be applied")
	}
	if got := wb.Snapshot(record.KindAdmission).(*record.Admission).Folio; got != "A-1" {
		t.Errorf("folio = %q, want A-1", got)
	}
}

func TestHistoryRoutes(t *testing.T) {
	h, _ := setupTest(t, "{}")
	do(t, h, http.MethodPut, "/notes/admission", `{"nombre":"Ana"}`)
	do(t, h, http.MethodGet, "/notes/admission/export/document", "")
	do(t, h, http.MethodPut, "/notes/admission", `{"nombre":"Berta"}`)
	do(t, h, http.MethodGet, "/notes/admission/export/document", "")

	body := decodeJSON(t, do(t, h, http.MethodGet, "/history?q=berta", ""))
	entries := body["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("filtered entries = %d, want 1", len(entries))
	}
	id := int64(entries[0].(map[string]any)["id"].(float64))
	path := "/history/" + jsonNumber(id)

	rec := do(t, h, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, path+"/load", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/history.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx status = %d: %s", rec.Code, rec.Body.String())
	}
	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("xlsx unreadable: %v", err)
	}
	_ = f.Close()

	rec = do(t, h, http.MethodDelete, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if remaining := decodeJSON(t, rec)["remaining"]; remaining != float64(1) {
		t.Errorf("remaining = %v, want 1", remaining)
	}

	rec = do(t, h, http.MethodGet, path, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted entry status = %d, want 404", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/history/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/history", "")
	if decodeJSON(t, rec)["remaining"] != float64(0) {
		t.Errorf("clear body = %s", rec.Body.String())
	}
}

func TestStatusCatalogAndMetrics(t *testing.T) {
	h, _ := setupTest(t, "{}")

	body := decodeJSON(t, do(t, h, http.MethodGet, "/status", ""))
	if body["active_kind"] == nil {
		t.Errorf("status body = %v", body)
	}

	rec := do(t, h, http.MethodGet, "/catalog", "")
	if rec.Code != http.StatusOK {
		t.Errorf("catalog status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "clinote_") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestSignature(t *testing.T) {
	h, wb := setupTest(t, "{}")

	rec := do(t, h, http.MethodPut, "/signature", `{"data_url":"data:image/png;base64,AA"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if wb.Snapshot(record.KindAdmission).(*record.Admission).FirmaDataURL == nil {
		t.Error("signature not attached")
	}

	rec = do(t, h, http.MethodPut, "/signature", `{"data_url":"https://example.com/x.png"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
