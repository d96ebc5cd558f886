package ops

import (
	"strings"

	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/export"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// IngestInput contains parameters for the Ingest operation.
// Exactly one of Payload or Path is required.
type IngestInput struct {
	Payload string // decoded QR text
	Path    string // .json or .txt file holding the payload
}

// IngestOutput reports whether the payload was merged.
type IngestOutput struct {
	Applied bool          `json:"applied"`
	Record  record.Record `json:"record"`
}

// Ingest merges a scanned transfer payload onto the live admission record.
// A payload that is not a JSON object is ignored and leaves the record as
// it was; that is not an error.
func Ingest(wb *workbench.Workbench, cfg *config.Config, m *metrics.Metrics, input IngestInput) (*IngestOutput, error) {
	hasPayload := strings.TrimSpace(input.Payload) != ""
	hasPath := input.Path != ""
	if hasPayload == hasPath {
		return nil, errors.NewInvalidRequest("exactly one of payload or path is required")
	}

	payload := input.Payload
	if hasPath {
		data, err := export.ReadPayloadFile(input.Path, cfg)
		if err != nil {
			return nil, err
		}
		payload = data
	}

	var applied bool
	rec, _ := wb.Mutate(record.KindAdmission, func(r record.Record) error {
		applied = export.IngestPayload(r.(*record.Admission), payload, wb.Now())
		return nil
	})

	if m != nil {
		outcome := "ignored"
		if applied {
			outcome = "merged"
		}
		m.PayloadsIngested.WithLabelValues(outcome).Inc()
	}
	return &IngestOutput{Applied: applied, Record: rec}, nil
}
