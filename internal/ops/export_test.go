package ops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/record"
)

func TestExport_CommitsAndRenders(t *testing.T) {
	wb := newWorkbench(t, "{}")
	cfg, _ := testConfig(t)
	m := testMetrics()
	wb.Merge(&record.Admission{Nombre: "Ana López", Folio: "A-1"})

	for _, format := range []string{FormatDocument, FormatHTML, FormatWord, FormatMessage} {
		out, err := Export(context.Background(), wb, cfg, m, ExportInput{Format: format})
		if err != nil {
			t.Fatalf("Export(%s) failed: %v", format, err)
		}
		if !out.Committed || out.Entry == nil {
			t.Errorf("Export(%s) should commit", format)
		}
		if !strings.Contains(out.Content, "Ana López") {
			t.Errorf("Export(%s) content missing patient name", format)
		}
		if out.FileName != "Nota_Ana_López"+FormatExt(format) {
			t.Errorf("FileName = %q", out.FileName)
		}
	}

	if got := len(wb.Keeper().ListHistory(context.Background())); got != 4 {
		t.Errorf("history = %d entries, want 4", got)
	}
	if got := testutil.ToFloat64(m.Exports.WithLabelValues(FormatWord)); got != 1 {
		t.Errorf("exports{word} = %v, want 1", got)
	}
}

func TestExport_RequiresName(t *testing.T) {
	wb := newWorkbench(t, "{}")
	cfg, _ := testConfig(t)

	_, err := Export(context.Background(), wb, cfg, nil, ExportInput{Format: FormatDocument})
	assertCode(t, err, errors.ErrValidationFailed)

	_, err = Export(context.Background(), wb, cfg, nil, ExportInput{Format: FormatPayload})
	assertCode(t, err, errors.ErrValidationFailed)

	if got := len(wb.Keeper().ListHistory(context.Background())); got != 0 {
		t.Errorf("rejected export must not reach history, got %d", got)
	}
}

func TestExport_InvalidFormat(t *testing.T) {
	wb := newWorkbench(t, "{}")
	cfg, _ := testConfig(t)
	wb.Merge(&record.Evolution{Nombre: "Luis"})

	_, err := Export(context.Background(), wb, cfg, nil, ExportInput{Format: "pdf"})
	assertCode(t, err, errors.ErrInvalidRequest)

	_, err = Export(context.Background(), wb, cfg, nil, ExportInput{Kind: "evolution", Format: FormatPayload})
	assertCode(t, err, errors.ErrInvalidRequest)
}

func TestExport_PayloadDoesNotCommit(t *testing.T) {
	wb := newWorkbench(t, "{}")
	cfg, _ := testConfig(t)
	wb.Merge(&record.Admission{Nombre: "Ana"})
	wb.SetSignature(context.Background(), "data:image/png;base64,AA")

	out, err := Export(context.Background(), wb, cfg, nil, ExportInput{Format: FormatPayload})
	if err != nil {
		t.Fatalf("Export payload failed: %v", err)
	}
	if out.Committed {
		t.Error("payload export should not commit")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out.Content), &m); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if m["nombre"] != "Ana" {
		t.Errorf("nombre = %v", m["nombre"])
	}
	if _, ok := m["firmaDataURL"]; ok {
		t.Error("payload must not carry the signature")
	}
	if len(wb.Keeper().ListHistory(context.Background())) != 0 {
		t.Error("payload export must not reach history")
	}
}

func TestExport_ToFile(t *testing.T) {
	wb := newWorkbench(t, "{}")
	cfg, dir := testConfig(t)
	wb.Merge(&record.Admission{Nombre: "Ana"})

	path := filepath.Join(dir, "nota.md")
	out, err := Export(context.Background(), wb, cfg, nil, ExportInput{Path: path})
	if err != nil {
		t.Fatalf("Export to file failed: %v", err)
	}
	if out.Content != "" || out.Path != path {
		t.Errorf("Content/Path = %q/%q", out.Content, out.Path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(data) != out.Bytes || !strings.HasPrefix(string(data), "# NOTA DE INGRESO") {
		t.Errorf("unexpected export file (%d bytes)", len(data))
	}

	_, err = Export(context.Background(), wb, cfg, nil, ExportInput{Format: FormatHTML, Path: path})
	assertCode(t, err, errors.ErrInvalidRequest)

	_, err = Export(context.Background(), wb, cfg, nil, ExportInput{Path: filepath.Join(t.TempDir(), "nota.md")})
	assertCode(t, err, errors.ErrInvalidRequest)
}
