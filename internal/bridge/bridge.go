// Package bridge turns free clinical text into partial records and records
// into structured critiques, by way of an external assistant.
//
// Every failure (network, status, empty or undecodable response) yields a
// COLLABORATOR_FAILURE error wrapping ErrFailure and never a partial result.
// The bridge does not retry.
package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/logging"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/record"
)

// ErrFailure marks "no usable result" as opposed to an empty but valid one.
var ErrFailure = stderrors.New("assistant produced no usable result")

// Operations.
const (
	OpParse   = "parse"
	OpAnalyze = "analyze"
)

// ParseResult is a partial record plus the fields that were rejected while
// decoding it.
type ParseResult struct {
	Record record.Record  `json:"record"`
	Issues []record.Issue `json:"issues,omitempty"`
}

// Bridge wraps a Collaborator with the clinote request and response contracts.
type Bridge struct {
	collab  Collaborator
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a bridge. logger and m may be nil.
func New(c Collaborator, logger *zap.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{collab: c, logger: logging.OrNop(logger), metrics: m}
}

// ParseAdmission extracts an admission partial record from free text.
func (b *Bridge) ParseAdmission(ctx context.Context, text string) (*ParseResult, error) {
	return b.Parse(ctx, record.KindAdmission, text)
}

// ParseEvolution extracts an evolution partial record from free text.
func (b *Bridge) ParseEvolution(ctx context.Context, text string) (*ParseResult, error) {
	return b.Parse(ctx, record.KindEvolution, text)
}

// Parse extracts a partial record of kind from free text. Blank input fails
// without calling the assistant.
func (b *Bridge) Parse(ctx context.Context, kind record.Kind, text string) (*ParseResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, failure(OpParse, stderrors.New("empty input text"))
	}

	req := Request{Operation: OpParse, Payload: text}
	if kind == record.KindEvolution {
		req.Instructions = parseEvolutionInstructions
		req.Schema = recordSchema(reflect.TypeOf(record.Evolution{}))
	} else {
		req.Instructions = parseAdmissionInstructions
		req.Schema = recordSchema(reflect.TypeOf(record.Admission{}))
	}

	raw, err := b.generate(ctx, kind, req)
	if err != nil {
		return nil, err
	}

	rec, issues, err := record.DecodePartialJSON(kind, []byte(raw))
	if err != nil {
		b.observe(OpParse, "undecodable")
		return nil, failure(OpParse, err)
	}
	b.observe(OpParse, "ok")
	if len(issues) > 0 {
		b.logger.Info("assistant fields rejected", zap.String("kind", string(kind)), zap.Any("issues", issues))
	}
	return &ParseResult{Record: rec, Issues: issues}, nil
}

// AnalyzeAdmission asks for a rewritten narrative, ranked diagnoses and a
// seven-part plan for an admission note.
func (b *Bridge) AnalyzeAdmission(ctx context.Context, rec *record.Admission) (*record.AdmissionAnalysis, error) {
	out := &record.AdmissionAnalysis{}
	if err := b.analyze(ctx, rec, analyzeAdmissionInstructions, admissionAnalysisSchema, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeEvolution asks for a SOAP critique of an evolution note.
func (b *Bridge) AnalyzeEvolution(ctx context.Context, rec *record.Evolution) (*record.EvolutionAnalysis, error) {
	out := &record.EvolutionAnalysis{}
	if err := b.analyze(ctx, rec, analyzeEvolutionInstructions, evolutionAnalysisSchema, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Analyze dispatches on the record kind.
func (b *Bridge) Analyze(ctx context.Context, rec record.Record) (record.Analysis, error) {
	switch r := rec.(type) {
	case *record.Admission:
		a, err := b.AnalyzeAdmission(ctx, r)
		if err != nil {
			return nil, err
		}
		return a, nil
	case *record.Evolution:
		a, err := b.AnalyzeEvolution(ctx, r)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot analyze %T", rec))
}

func (b *Bridge) analyze(ctx context.Context, rec record.Record, instructions string, schema map[string]any, out any) error {
	payload, err := analysisPayload(rec)
	if err != nil {
		return failure(OpAnalyze, err)
	}

	raw, err := b.generate(ctx, rec.Kind(), Request{
		Operation:    OpAnalyze,
		Instructions: instructions,
		Payload:      payload,
		Schema:       schema,
	})
	if err != nil {
		return err
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(out); err != nil {
		b.observe(OpAnalyze, "undecodable")
		return failure(OpAnalyze, err)
	}
	b.observe(OpAnalyze, "ok")
	return nil
}

// analysisPayload renders the record without the signature image.
func analysisPayload(rec record.Record) (string, error) {
	if a, ok := rec.(*record.Admission); ok && a.FirmaDataURL != nil {
		c := a.Clone()
		c.FirmaDataURL = nil
		rec = c
	}
	return marshalPayload(rec)
}

// generate calls the collaborator and returns fence-stripped response text.
func (b *Bridge) generate(ctx context.Context, kind record.Kind, req Request) (string, error) {
	requestID := ulid.Make().String()
	log := b.logger.With(
		zap.String("request_id", requestID),
		zap.String("operation", req.Operation),
		zap.String("kind", string(kind)),
	)
	log.Info("assistant request")

	start := time.Now()
	raw, err := b.collab.Generate(ctx, req)
	if b.metrics != nil {
		b.metrics.AssistantDuration.WithLabelValues(req.Operation).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Info("assistant request cancelled", zap.Error(ctxErr))
			b.observe(req.Operation, "cancelled")
			return "", errors.NewCancelled(req.Operation)
		}
		log.Warn("assistant request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		b.observe(req.Operation, "error")
		return "", failure(req.Operation, err)
	}

	text := StripFences(raw)
	if text == "" {
		b.observe(req.Operation, "empty")
		return "", failure(req.Operation, stderrors.New("empty response"))
	}
	log.Info("assistant response", zap.Duration("elapsed", time.Since(start)), zap.Int("bytes", len(text)))
	return text, nil
}

func (b *Bridge) observe(op, outcome string) {
	if b.metrics != nil {
		b.metrics.AssistantRequests.WithLabelValues(op, outcome).Inc()
	}
}

func failure(op string, cause error) error {
	return errors.NewCollaboratorFailure(op, fmt.Errorf("%w: %v", ErrFailure, cause))
}
