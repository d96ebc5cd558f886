package ops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// AnalyzeInput contains parameters for the Analyze operation.
type AnalyzeInput struct {
	Kind  string
	Apply bool // apply the suggestions right away
}

// AnalyzeOutput contains the critique and, when applied, the commit.
type AnalyzeOutput struct {
	Kind     record.Kind             `json:"kind"`
	Analysis record.Analysis         `json:"analysis"`
	Applied  *workbench.CommitResult `json:"applied,omitempty"`
}

// Analyze asks the assistant to critique the live record.
func Analyze(ctx context.Context, wb *workbench.Workbench, input AnalyzeInput) (*AnalyzeOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	a, err := wb.Analyze(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := &AnalyzeOutput{Kind: kind, Analysis: a}
	if input.Apply {
		applied, err := wb.ApplyAnalysis(ctx, kind, a)
		if err != nil {
			return nil, err
		}
		out.Applied = applied
	}
	return out, nil
}

// ApplyAnalysisInput contains parameters for the ApplyAnalysis operation.
type ApplyAnalysisInput struct {
	Kind string
	// Analysis is the critique to apply. Empty applies the one returned by
	// the last Analyze of this session.
	Analysis json.RawMessage
}

// ApplyAnalysis merges a critique into the live record and commits the result
// to history when the record has a patient name.
func ApplyAnalysis(ctx context.Context, wb *workbench.Workbench, input ApplyAnalysisInput) (*workbench.CommitResult, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	if len(input.Analysis) == 0 {
		return wb.ApplyAnalysis(ctx, kind, nil)
	}

	a, err := decodeAnalysis(kind, input.Analysis)
	if err != nil {
		return nil, err
	}
	return wb.ApplyAnalysis(ctx, kind, a)
}

func decodeAnalysis(kind record.Kind, data json.RawMessage) (record.Analysis, error) {
	var a record.Analysis
	if kind == record.KindEvolution {
		a = &record.EvolutionAnalysis{}
	} else {
		a = &record.AdmissionAnalysis{}
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid analysis: %v", err))
	}
	return a, nil
}
