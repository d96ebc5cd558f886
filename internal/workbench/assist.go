package workbench

import (
	"context"
	stderrors "errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/bridge"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/merge"
	"github.com/hpungsan/clinote/internal/record"
)

// MinNarrativeLength is the shortest present-illness narrative worth sending
// for an admission critique.
const MinNarrativeLength = 10

// ParseOutcome is an applied parse: the merged record and the fields the
// assistant returned that could not be used.
type ParseOutcome struct {
	Record record.Record  `json:"record"`
	Issues []record.Issue `json:"issues,omitempty"`
}

// StartParse sends text to the assistant for extraction into kind. The
// result is not applied until ApplyParse.
func (w *Workbench) StartParse(ctx context.Context, kind record.Kind, text string) (*Pending[*bridge.ParseResult], error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	callCtx, gen, finish := w.track(ctx)
	p := newPending[*bridge.ParseResult](kind, gen, finish)
	go func() {
		defer finish()
		p.resolve(w.bridge.Parse(callCtx, kind, text))
	}()
	return p, nil
}

// ApplyParse waits for p and merges its partial record onto the live record.
// A result from an earlier generation is discarded with STALE_RESULT.
func (w *Workbench) ApplyParse(ctx context.Context, p *Pending[*bridge.ParseResult]) (*ParseOutcome, error) {
	res, err := p.Wait(ctx)

	w.mu.Lock()
	stale := p.Generation != w.generation
	w.mu.Unlock()
	if stale {
		w.logger.Info("discarding stale parse result", zap.String("kind", string(p.Kind)))
		return nil, errors.NewStaleResult(bridge.OpParse)
	}
	if err != nil {
		if isCancellation(err) {
			return nil, errors.NewCancelled(bridge.OpParse)
		}
		return nil, err
	}

	out, _ := w.Mutate(p.Kind, func(rec record.Record) error {
		merge.Merge(rec, res.Record, w.now())
		return nil
	})
	return &ParseOutcome{Record: out, Issues: res.Issues}, nil
}

// Parse is StartParse and ApplyParse behind the busy gate: a second parse
// while one is pending fails with BUSY.
func (w *Workbench) Parse(ctx context.Context, kind record.Kind, text string) (*ParseOutcome, error) {
	release, ok := w.TryBegin(bridge.OpParse)
	if !ok {
		return nil, errors.NewBusy(bridge.OpParse)
	}
	defer release()

	p, err := w.StartParse(ctx, kind, text)
	if err != nil {
		return nil, err
	}
	return w.ApplyParse(ctx, p)
}

// CheckAnalyzable reports why rec cannot be sent for critique, if it cannot.
func CheckAnalyzable(rec record.Record) error {
	switch r := rec.(type) {
	case *record.Admission:
		if utf8.RuneCountInString(strings.TrimSpace(r.PadecimientoActual)) < MinNarrativeLength {
			return errors.NewValidationFailed([]string{"padecimientoActual"})
		}
	case *record.Evolution:
		if strings.TrimSpace(r.Subjetivo) == "" && strings.TrimSpace(r.Analisis) == "" {
			return errors.NewValidationFailed([]string{"subjetivo", "analisis"})
		}
	}
	return nil
}

// StartAnalyze sends a snapshot of the live record of kind for critique.
func (w *Workbench) StartAnalyze(ctx context.Context, kind record.Kind) (*Pending[record.Analysis], error) {
	rec := w.Snapshot(kind)
	if err := CheckAnalyzable(rec); err != nil {
		return nil, err
	}

	callCtx, gen, finish := w.track(ctx)
	p := newPending[record.Analysis](kind, gen, finish)
	go func() {
		defer finish()
		p.resolve(w.bridge.Analyze(callCtx, rec))
	}()
	return p, nil
}

// AwaitAnalysis waits for p and keeps the analysis for a later ApplyAnalysis.
func (w *Workbench) AwaitAnalysis(ctx context.Context, p *Pending[record.Analysis]) (record.Analysis, error) {
	a, err := p.Wait(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if p.Generation != w.generation {
		return nil, errors.NewStaleResult(bridge.OpAnalyze)
	}
	if err != nil {
		if isCancellation(err) {
			return nil, errors.NewCancelled(bridge.OpAnalyze)
		}
		return nil, err
	}
	w.analyses[p.Kind] = storedAnalysis{generation: p.Generation, analysis: a}
	return a, nil
}

// Analyze is StartAnalyze and AwaitAnalysis behind the busy gate.
func (w *Workbench) Analyze(ctx context.Context, kind record.Kind) (record.Analysis, error) {
	release, ok := w.TryBegin(bridge.OpAnalyze)
	if !ok {
		return nil, errors.NewBusy(bridge.OpAnalyze)
	}
	defer release()

	p, err := w.StartAnalyze(ctx, kind)
	if err != nil {
		return nil, err
	}
	return w.AwaitAnalysis(ctx, p)
}

// LastAnalysis returns the analysis kept for kind, if it is still current.
func (w *Workbench) LastAnalysis(kind record.Kind) (record.Analysis, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.analyses[kind]
	if !ok || s.generation != w.generation {
		return nil, false
	}
	return s.analysis, true
}

// ApplyAnalysis merges a into the live record of kind and commits the result
// to history when the record is complete enough to commit. A nil a applies
// the analysis kept by the last Analyze of kind; if that analysis predates a
// switch or reset, STALE_RESULT is returned.
func (w *Workbench) ApplyAnalysis(ctx context.Context, kind record.Kind, a record.Analysis) (*CommitResult, error) {
	if a == nil {
		kept, ok := w.LastAnalysis(kind)
		if !ok {
			return nil, errors.NewStaleResult(bridge.OpAnalyze)
		}
		a = kept
	}
	if a.Kind() != kind {
		return nil, errors.NewInvalidRequest("analysis does not match the record kind")
	}

	w.Mutate(kind, func(rec record.Record) error {
		merge.ApplyAnalysis(rec, a)
		return nil
	})

	w.mu.Lock()
	delete(w.analyses, kind)
	w.mu.Unlock()

	res, err := w.Commit(ctx, kind)
	if errors.Is(err, errors.ErrValidationFailed) {
		return &CommitResult{Record: w.Snapshot(kind)}, nil
	}
	return res, err
}

func isCancellation(err error) bool {
	return errors.Is(err, errors.ErrCancelled) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}
