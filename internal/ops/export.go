package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/export"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/persist"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

// Export formats.
const (
	FormatDocument = "document"
	FormatHTML     = "html"
	FormatWord     = "word"
	FormatMessage  = "message"
	FormatPayload  = "payload"
)

// Formats lists every export format.
var Formats = []string{FormatDocument, FormatHTML, FormatWord, FormatMessage, FormatPayload}

var formatExt = map[string]string{
	FormatDocument: ".md",
	FormatHTML:     ".html",
	FormatWord:     ".doc",
	FormatMessage:  ".txt",
	FormatPayload:  ".json",
}

// FormatExt returns the file extension written for format.
func FormatExt(format string) string {
	return formatExt[format]
}

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Kind   string
	Format string // document, html, word, message, payload
	Path   string // optional: write to file instead of returning content
}

// ExportOutput contains the rendered note.
type ExportOutput struct {
	Kind      record.Kind             `json:"kind"`
	Format    string                  `json:"format"`
	FileName  string                  `json:"file_name"`
	Content   string                  `json:"content,omitempty"`
	Path      string                  `json:"path,omitempty"`
	Bytes     int                     `json:"bytes,omitempty"`
	Committed bool                    `json:"committed"`
	Entry     *persist.HistorySummary `json:"entry,omitempty"`
}

// Export renders the live record of a kind. Every format except payload
// commits the record to history first; a record without a patient name is
// rejected before anything is rendered or written.
func Export(ctx context.Context, wb *workbench.Workbench, cfg *config.Config, m *metrics.Metrics, input ExportInput) (*ExportOutput, error) {
	kind, err := ResolveKind(wb, input.Kind)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = FormatDocument
	}
	ext, ok := formatExt[format]
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("format must be one of %s", strings.Join(Formats, ", ")))
	}
	if format == FormatPayload && kind != record.KindAdmission {
		return nil, errors.NewInvalidRequest("payload export is only available for admission notes")
	}

	out := &ExportOutput{Kind: kind, Format: format}
	var rec record.Record
	if format == FormatPayload {
		rec = wb.Snapshot(kind)
		if err := workbench.Validate(rec); err != nil {
			return nil, err
		}
	} else {
		res, err := wb.Commit(ctx, kind)
		if err != nil {
			return nil, err
		}
		rec = res.Record
		out.Committed = true
		out.Entry = res.Entry
	}

	data, err := render(rec, format, wb.Now())
	if err != nil {
		return nil, err
	}
	out.FileName = export.FileName(rec, ext)

	if input.Path != "" {
		if filepath.Ext(input.Path) != ext {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s exports must be written to a %s file", format, ext))
		}
		if err := export.WriteFile(input.Path, data, cfg); err != nil {
			return nil, err
		}
		out.Path = input.Path
		out.Bytes = len(data)
	} else {
		out.Content = string(data)
	}

	if m != nil {
		m.Exports.WithLabelValues(format).Inc()
	}
	return out, nil
}

func render(rec record.Record, format string, now time.Time) ([]byte, error) {
	switch format {
	case FormatHTML:
		html, err := export.DocumentHTML(rec, now)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return []byte(html), nil
	case FormatWord:
		_, data, err := export.WordDocument(rec, now)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return data, nil
	case FormatMessage:
		return []byte(export.Message(rec, now)), nil
	case FormatPayload:
		adm, _ := rec.(*record.Admission)
		payload, err := export.EncodePayload(adm)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return []byte(payload), nil
	default:
		return []byte(export.Document(rec, now)), nil
	}
}
