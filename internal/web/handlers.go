package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/ops"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// maxBodyBytes bounds request bodies; a signature data URL is the largest input.
const maxBodyBytes = 2 << 20

// Handlers contains the HTTP route handlers.
type Handlers struct {
	wb      *workbench.Workbench
	cfg     *config.Config
	metrics *metrics.Metrics
	breaker ops.BreakerReporter
	logger  *zap.Logger
	version string
}

var contentTypes = map[string]string{
	ops.FormatDocument: "text/markdown; charset=utf-8",
	ops.FormatHTML:     "text/html; charset=utf-8",
	ops.FormatWord:     "application/msword",
	ops.FormatMessage:  "text/plain; charset=utf-8",
	ops.FormatPayload:  "application/json",
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

// HandleStatus handles GET /status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ops.Status(r.Context(), h.wb, h.breaker))
}

// HandleCatalog handles GET /catalog.
func (h *Handlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ops.Catalog())
}

// HandleSignature handles PUT /signature with {"data_url": "..."}.
func (h *Handlers) HandleSignature(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DataURL string `json:"data_url"`
	}
	if !h.decodeBody(w, r, &body) {
		return
	}
	h.respond(w, r)(ops.SetSignature(r.Context(), h.wb, ops.SignatureInput{DataURL: body.DataURL}))
}

// HandleDraftGet handles GET /notes/{kind}.
func (h *Handlers) HandleDraftGet(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(ops.DraftGet(h.wb, ops.DraftGetInput{Kind: chi.URLParam(r, "kind")}))
}

// HandleActivate handles POST /notes/{kind}/activate.
func (h *Handlers) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(ops.DraftGet(h.wb, ops.DraftGetInput{Kind: chi.URLParam(r, "kind"), Activate: true}))
}

// HandleDraftUpdate handles PUT /notes/{kind}. The body is a JSON object of
// record fields; ?replace=true replaces the record instead of merging.
func (h *Handlers) HandleDraftUpdate(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(ops.DraftUpdate(h.wb, ops.DraftUpdateInput{
		Kind:    chi.URLParam(r, "kind"),
		Fields:  data,
		Replace: parseBoolParam(r, "replace"),
	}))
}

// HandleDraftClear handles DELETE /notes/{kind}.
func (h *Handlers) HandleDraftClear(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(ops.DraftClear(r.Context(), h.wb, ops.DraftClearInput{Kind: chi.URLParam(r, "kind")}))
}

// HandleListEdit handles POST /notes/{kind}/lists/{field}.
func (h *Handlers) HandleListEdit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
		Value  string `json:"value"`
		Code   string `json:"code"`
	}
	if !h.decodeBody(w, r, &body) {
		return
	}
	h.respond(w, r)(ops.ListEdit(h.wb, ops.ListEditInput{
		Kind:   chi.URLParam(r, "kind"),
		Field:  chi.URLParam(r, "field"),
		Action: body.Action,
		Value:  body.Value,
		Code:   body.Code,
	}))
}

// HandleExamTemplate handles POST /notes/{kind}/exam with {"template": "..."}.
func (h *Handlers) HandleExamTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Template string `json:"template"`
	}
	if !h.decodeBody(w, r, &body) {
		return
	}
	h.respond(w, r)(ops.AppendTemplate(h.wb, ops.AppendTemplateInput{Kind: chi.URLParam(r, "kind"), Template: body.Template}))
}

// HandleBirthDate handles PUT /notes/admission/birth-date.
func (h *Handlers) HandleBirthDate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmission(w, r) {
		return
	}
	var body ops.BirthDateInput
	if !h.decodeBody(w, r, &body) {
		return
	}
	h.respond(w, r)(ops.SetBirthDate(h.wb, body))
}

// HandleParse handles POST /notes/{kind}/parse with {"text": "..."}.
func (h *Handlers) HandleParse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !h.decodeBody(w, r, &body) {
		return
	}
	h.respond(w, r)(ops.Parse(r.Context(), h.wb, ops.ParseInput{Kind: chi.URLParam(r, "kind"), Text: body.Text}))
}

// HandleAnalyze handles POST /notes/{kind}/analyze. ?apply=true applies the
// suggestions and commits the note.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(ops.Analyze(r.Context(), h.wb, ops.AnalyzeInput{
		Kind:  chi.URLParam(r, "kind"),
		Apply: parseBoolParam(r, "apply"),
	}))
}

// HandleApplyAnalysis handles POST /notes/{kind}/apply. An empty body applies
// the last analysis.
func (h *Handlers) HandleApplyAnalysis(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(ops.ApplyAnalysis(r.Context(), h.wb, ops.ApplyAnalysisInput{
		Kind:     chi.URLParam(r, "kind"),
		Analysis: data,
	}))
}

// HandleExport handles GET /notes/{kind}/export/{format}. The rendered note
// is the response body.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	out, err := ops.Export(r.Context(), h.wb, h.cfg, h.metrics, ops.ExportInput{
		Kind:   chi.URLParam(r, "kind"),
		Format: format,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[out.Format])
	disposition := "inline"
	if parseBoolParam(r, "download") {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(out.FileName)))
	if out.Entry != nil {
		w.Header().Set("X-History-Entry", strconv.FormatInt(out.Entry.ID, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out.Content)
}

// HandleIngest handles POST /notes/admission/ingest. The body is the decoded
// QR text.
func (h *Handlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmission(w, r) {
		return
	}
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(ops.Ingest(h.wb, h.cfg, h.metrics, ops.IngestInput{Payload: string(data)}))
}

// HandleHistoryList handles GET /history.
func (h *Handlers) HandleHistoryList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.respond(w, r)(ops.HistoryList(r.Context(), h.wb, ops.HistoryListInput{
		Kind:   q.Get("kind"),
		Query:  q.Get("q"),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}))
}

// HandleHistoryClear handles DELETE /history.
func (h *Handlers) HandleHistoryClear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ops.HistoryClear(r.Context(), h.wb))
}

// HandleHistoryGet handles GET /history/{id}.
func (h *Handlers) HandleHistoryGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.historyID(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(ops.HistoryGet(r.Context(), h.wb, ops.HistoryGetInput{ID: id}))
}

// HandleHistoryLoad handles POST /history/{id}/load.
func (h *Handlers) HandleHistoryLoad(w http.ResponseWriter, r *http.Request) {
	id, ok := h.historyID(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(ops.HistoryLoad(r.Context(), h.wb, ops.HistoryLoadInput{ID: id}))
}

// HandleHistoryDelete handles DELETE /history/{id}.
func (h *Handlers) HandleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.historyID(w, r)
	if !ok {
		return
	}
	h.respond(w, r)(ops.HistoryDelete(r.Context(), h.wb, ops.HistoryDeleteInput{ID: id}))
}

// HandleHistoryWorkbook handles GET /history.xlsx.
func (h *Handlers) HandleHistoryWorkbook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := ops.HistoryWorkbook(r.Context(), h.wb, h.cfg, ops.HistoryWorkbookInput{
		Kind:  q.Get("kind"),
		Query: q.Get("q"),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="historial.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// respond writes v as JSON, or the error. Used as h.respond(w, r)(op(...)).
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request) func(v any, err error) {
	return func(v any, err error) {
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// renderError writes a NoteError as {"error": {...}}. Internal errors are
// logged and reported without their message.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var nErr *errors.NoteError
	if !stderrors.As(err, &nErr) {
		nErr = errors.NewInternal(err)
	}

	switch nErr.Code {
	case errors.ErrInternal:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err),
			zap.String("request_id", getRequestID(r.Context())))
		writeJSON(w, nErr.Status, errorBody(string(nErr.Code), "an internal error occurred", nErr.Status, nil))
		return
	case errors.ErrCollaboratorFailure:
		h.logger.Warn("assistant call failed", zap.String("path", r.URL.Path), zap.Error(stderrors.Unwrap(nErr)),
			zap.String("request_id", getRequestID(r.Context())))
	}
	writeJSON(w, nErr.Status, errorBody(string(nErr.Code), nErr.Message, nErr.Status, nErr.Details))
}

func errorBody(code, message string, status int, details map[string]any) map[string]any {
	obj := map[string]any{
		"code":    code,
		"message": message,
		"status":  status,
	}
	if details != nil {
		obj["details"] = details
	}
	return map[string]any{"error": obj}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody reads the whole request body up to maxBodyBytes.
func (h *Handlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("could not read request body: %v", err)))
		return nil, false
	}
	return data, true
}

// decodeBody decodes a JSON request body into v. An empty body leaves v zero.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		h.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return false
	}
	return true
}

func (h *Handlers) requireAdmission(w http.ResponseWriter, r *http.Request) bool {
	kind, err := ops.ResolveKind(h.wb, chi.URLParam(r, "kind"))
	if err != nil {
		h.renderError(w, r, err)
		return false
	}
	if kind != record.KindAdmission {
		h.renderError(w, r, errors.NewNotFound(r.URL.Path))
		return false
	}
	return true
}

func (h *Handlers) historyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.renderError(w, r, errors.NewInvalidRequest("history id must be an integer"))
		return 0, false
	}
	return id, true
}

// parseIntParam extracts an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

// parseBoolParam returns true if the query parameter is "true" or "1".
func parseBoolParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}
