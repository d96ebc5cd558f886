package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/logging"
	"github.com/hpungsan/clinote/internal/metrics"
)

// Request is one instruction/payload exchange with the assistant.
type Request struct {
	Operation    string         // "parse" or "analyze"; used for logs and metrics
	Instructions string         // task description in the clinician's language
	Payload      string         // free text or the record JSON
	Schema       map[string]any // expected response schema
}

// Collaborator is the external text-understanding service. Generate returns
// the raw response text, which is expected to hold a JSON object.
type Collaborator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrNoAPIKey is returned when the HTTP collaborator has no credentials.
var ErrNoAPIKey = errors.New("assistant API key not configured")

// HTTPConfig configures an HTTPCollaborator.
type HTTPConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	// Timeout bounds a single request. 0 means no timeout.
	Timeout time.Duration
	// BreakerMaxFailures consecutive failures open the breaker.
	BreakerMaxFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open before a probe.
	BreakerOpenTimeout time.Duration
}

// HTTPCollaborator calls a generateContent-style endpoint through a circuit
// breaker. It never retries.
type HTTPCollaborator struct {
	client  *resty.Client
	cfg     HTTPConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewHTTPCollaborator creates a collaborator. m may be nil.
func NewHTTPCollaborator(cfg HTTPConfig, logger *zap.Logger, m *metrics.Metrics) *HTTPCollaborator {
	logger = logging.OrNop(logger)
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerOpenTimeout == 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	h := &HTTPCollaborator{client: client, cfg: cfg, logger: logger, metrics: m}

	h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "assistant",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if m != nil {
				m.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			}
		},
		// A caller giving up is not a fault of the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return h
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	}
	return 0
}

// State returns the breaker state name.
func (h *HTTPCollaborator) State() string {
	return h.breaker.State().String()
}

// Generate sends req and returns the concatenated text of the first candidate.
func (h *HTTPCollaborator) Generate(ctx context.Context, req Request) (string, error) {
	if h.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	out, err := h.breaker.Execute(func() (interface{}, error) {
		return h.call(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (h *HTTPCollaborator) call(ctx context.Context, req Request) (string, error) {
	body := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: req.Instructions + "\n\n" + req.Payload}},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   req.Schema,
		},
	}

	var result generateResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", h.cfg.APIKey).
		SetPathParam("model", h.cfg.Model).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("assistant returned %d: %s", resp.StatusCode(), msg)
	}
	if len(result.Candidates) == 0 {
		return "", errors.New("assistant returned no candidates")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("assistant returned empty text (finish reason %q)", result.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

// compile-time check
var _ Collaborator = (*HTTPCollaborator)(nil)

// marshalPayload renders v as indented JSON for the payload part.
func marshalPayload(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
