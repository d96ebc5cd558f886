package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/logging"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/ops"
	"github.com/hpungsan/clinote/internal/workbench"
)

// Deps are the session objects the tools operate on.
type Deps struct {
	Workbench *workbench.Workbench
	Config    *config.Config
	Metrics   *metrics.Metrics    // optional
	Breaker   ops.BreakerReporter // optional
	Logger    *zap.Logger
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	wb      *workbench.Workbench
	cfg     *config.Config
	metrics *metrics.Metrics
	breaker ops.BreakerReporter
	logger  *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{
		wb:      deps.Workbench,
		cfg:     cfg,
		metrics: deps.Metrics,
		breaker: deps.Breaker,
		logger:  logging.OrNop(deps.Logger),
	}
}

// Request types for each tool

// DraftRequest represents the arguments for note_draft_get and note_draft_clear.
type DraftRequest struct {
	Kind     string `json:"kind,omitempty"`
	Activate bool   `json:"activate,omitempty"`
}

// DraftUpdateRequest represents the arguments for note_draft_update.
type DraftUpdateRequest struct {
	Kind    string          `json:"kind,omitempty"`
	Fields  json.RawMessage `json:"fields"`
	Replace bool            `json:"replace,omitempty"`
}

// ListEditRequest represents the arguments for note_list_edit.
type ListEditRequest struct {
	Kind   string `json:"kind,omitempty"`
	Field  string `json:"field"`
	Action string `json:"action,omitempty"`
	Value  string `json:"value"`
	Code   string `json:"code,omitempty"`
}

// ExamTemplateRequest represents the arguments for note_exam_template.
type ExamTemplateRequest struct {
	Kind     string `json:"kind,omitempty"`
	Template string `json:"template"`
}

// BirthDateRequest represents the arguments for note_birth_date.
type BirthDateRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// ParseRequest represents the arguments for note_parse.
type ParseRequest struct {
	Kind string `json:"kind,omitempty"`
	Text string `json:"text"`
}

// AnalyzeRequest represents the arguments for note_analyze.
type AnalyzeRequest struct {
	Kind  string `json:"kind,omitempty"`
	Apply bool   `json:"apply,omitempty"`
}

// ApplyAnalysisRequest represents the arguments for note_apply_analysis.
type ApplyAnalysisRequest struct {
	Kind     string          `json:"kind,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
}

// ExportRequest represents the arguments for note_export.
type ExportRequest struct {
	Kind   string `json:"kind,omitempty"`
	Format string `json:"format,omitempty"`
	Path   string `json:"path,omitempty"`
}

// PayloadEncodeRequest represents the arguments for note_payload_encode.
type PayloadEncodeRequest struct {
	Path string `json:"path,omitempty"`
}

// PayloadIngestRequest represents the arguments for note_payload_ingest.
type PayloadIngestRequest struct {
	Payload string `json:"payload,omitempty"`
	Path    string `json:"path,omitempty"`
}

// HistoryListRequest represents the arguments for history_list.
type HistoryListRequest struct {
	Kind   string `json:"kind,omitempty"`
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// HistoryIDRequest represents the arguments for history_get, history_load and history_delete.
type HistoryIDRequest struct {
	ID int64 `json:"id"`
}

// HandleDraftGet handles the note_draft_get tool call.
func (h *Handlers) HandleDraftGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DraftRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DraftGet(h.wb, ops.DraftGetInput{Kind: input.Kind, Activate: input.Activate})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDraftUpdate handles the note_draft_update tool call.
func (h *Handlers) HandleDraftUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DraftUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DraftUpdate(h.wb, ops.DraftUpdateInput{
		Kind:    input.Kind,
		Fields:  input.Fields,
		Replace: input.Replace,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDraftClear handles the note_draft_clear tool call.
func (h *Handlers) HandleDraftClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DraftRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DraftClear(ctx, h.wb, ops.DraftClearInput{Kind: input.Kind})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleListEdit handles the note_list_edit tool call.
func (h *Handlers) HandleListEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListEditRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListEdit(h.wb, ops.ListEditInput{
		Kind:   input.Kind,
		Field:  input.Field,
		Action: input.Action,
		Value:  input.Value,
		Code:   input.Code,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExamTemplate handles the note_exam_template tool call.
func (h *Handlers) HandleExamTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExamTemplateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AppendTemplate(h.wb, ops.AppendTemplateInput{Kind: input.Kind, Template: input.Template})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBirthDate handles the note_birth_date tool call.
func (h *Handlers) HandleBirthDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BirthDateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SetBirthDate(h.wb, ops.BirthDateInput{Year: input.Year, Month: input.Month, Day: input.Day})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleParse handles the note_parse tool call.
func (h *Handlers) HandleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ParseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Parse(ctx, h.wb, ops.ParseInput{Kind: input.Kind, Text: input.Text})
	if err != nil {
		h.logFailure("note_parse", err)
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAnalyze handles the note_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Analyze(ctx, h.wb, ops.AnalyzeInput{Kind: input.Kind, Apply: input.Apply})
	if err != nil {
		h.logFailure("note_analyze", err)
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplyAnalysis handles the note_apply_analysis tool call.
func (h *Handlers) HandleApplyAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplyAnalysisRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ApplyAnalysis(ctx, h.wb, ops.ApplyAnalysisInput{Kind: input.Kind, Analysis: input.Analysis})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the note_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Format == ops.FormatPayload {
		return errorResult(errors.NewInvalidRequest("use note_payload_encode for transfer payloads")), nil
	}

	result, err := ops.Export(ctx, h.wb, h.cfg, h.metrics, ops.ExportInput{
		Kind:   input.Kind,
		Format: input.Format,
		Path:   input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePayloadEncode handles the note_payload_encode tool call.
func (h *Handlers) HandlePayloadEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PayloadEncodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.wb, h.cfg, h.metrics, ops.ExportInput{
		Kind:   "admission",
		Format: ops.FormatPayload,
		Path:   input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePayloadIngest handles the note_payload_ingest tool call.
func (h *Handlers) HandlePayloadIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PayloadIngestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Ingest(h.wb, h.cfg, h.metrics, ops.IngestInput{Payload: input.Payload, Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStatus handles the note_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.Status(ctx, h.wb, h.breaker))
}

// HandleHistoryList handles the history_list tool call.
func (h *Handlers) HandleHistoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.HistoryList(ctx, h.wb, ops.HistoryListInput{
		Kind:   input.Kind,
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryGet handles the history_get tool call.
func (h *Handlers) HandleHistoryGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.HistoryGet(ctx, h.wb, ops.HistoryGetInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryLoad handles the history_load tool call.
func (h *Handlers) HandleHistoryLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.HistoryLoad(ctx, h.wb, ops.HistoryLoadInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryDelete handles the history_delete tool call.
func (h *Handlers) HandleHistoryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.HistoryDelete(ctx, h.wb, ops.HistoryDeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryClear handles the history_clear tool call.
func (h *Handlers) HandleHistoryClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.HistoryClear(ctx, h.wb))
}

// logFailure records assistant failures with their cause, which the tool
// result never carries.
func (h *Handlers) logFailure(tool string, err error) {
	if errors.Is(err, errors.ErrCollaboratorFailure) {
		h.logger.Warn("assistant call failed", zap.String("tool", tool), zap.Error(stderrors.Unwrap(err)))
	}
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var noteErr *errors.NoteError
	if stderrors.As(err, &noteErr) {
		errorObj := map[string]any{
			"code":    noteErr.Code,
			"message": noteErr.Message,
			"status":  noteErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// file paths or store errors
		if noteErr.Code != errors.ErrInternal && noteErr.Details != nil {
			errorObj["details"] = noteErr.Details
		}
		if noteErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
