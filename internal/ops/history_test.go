package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/record"
	"github.com/hpungsan/clinote/internal/workbench"
)

func commitAdmission(t *testing.T, wb *workbench.Workbench, name, dx string) int64 {
	t.Helper()
	wb.Replace(&record.Admission{Nombre: name, Diagnostico: []string{dx}})
	res, err := wb.Commit(context.Background(), record.KindAdmission)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return res.Entry.ID
}

func TestHistoryList_FilterAndPaginate(t *testing.T) {
	wb := newWorkbench(t, "{}")
	for i := 0; i < 5; i++ {
		commitAdmission(t, wb, fmt.Sprintf("Paciente %d", i), "I10 - Hipertensión")
	}
	wb.Replace(&record.Evolution{Nombre: "Luis"})
	if _, err := wb.Commit(context.Background(), record.KindEvolution); err != nil {
		t.Fatal(err)
	}

	out, err := HistoryList(context.Background(), wb, HistoryListInput{Limit: 2})
	if err != nil {
		t.Fatalf("HistoryList failed: %v", err)
	}
	if len(out.Entries) != 2 || out.Pagination.Total != 6 || !out.Pagination.HasMore {
		t.Errorf("page = %d entries, pagination %+v", len(out.Entries), out.Pagination)
	}
	if out.Entries[0].Nombre != "Luis" {
		t.Errorf("newest first: got %q", out.Entries[0].Nombre)
	}

	out, err = HistoryList(context.Background(), wb, HistoryListInput{Kind: "admission", Offset: 4})
	if err != nil {
		t.Fatalf("HistoryList failed: %v", err)
	}
	if len(out.Entries) != 1 || out.Pagination.Total != 5 || out.Pagination.HasMore {
		t.Errorf("last admission page = %d entries, pagination %+v", len(out.Entries), out.Pagination)
	}
	if out.Entries[0].Nombre != "Paciente 0" {
		t.Errorf("oldest admission = %q", out.Entries[0].Nombre)
	}

	out, err = HistoryList(context.Background(), wb, HistoryListInput{Query: "paciente 3"})
	if err != nil {
		t.Fatalf("HistoryList failed: %v", err)
	}
	if len(out.Entries) != 1 {
		t.Errorf("query matched %d entries, want 1", len(out.Entries))
	}

	out, err = HistoryList(context.Background(), wb, HistoryListInput{Offset: 50})
	if err != nil {
		t.Fatalf("HistoryList failed: %v", err)
	}
	if len(out.Entries) != 0 || out.Entries == nil {
		t.Error("offset past the end should return an empty, non-nil page")
	}

	_, err = HistoryList(context.Background(), wb, HistoryListInput{Kind: "alta"})
	assertCode(t, err, errors.ErrInvalidRequest)
}

func TestHistoryGetDeleteLoad(t *testing.T) {
	wb := newWorkbench(t, "{}")
	id := commitAdmission(t, wb, "Ana", "I10 - Hipertensión")
	commitAdmission(t, wb, "Bea", "E11 - Diabetes")

	got, err := HistoryGet(context.Background(), wb, HistoryGetInput{ID: id})
	if err != nil {
		t.Fatalf("HistoryGet failed: %v", err)
	}
	if got.Record.(*record.Admission).Nombre != "Ana" {
		t.Errorf("HistoryGet record = %q", got.Record.PatientName())
	}

	wb.SwitchKind(record.KindEvolution)
	loaded, err := HistoryLoad(context.Background(), wb, HistoryLoadInput{ID: id})
	if err != nil {
		t.Fatalf("HistoryLoad failed: %v", err)
	}
	if !loaded.Active || loaded.Record.PatientName() != "Ana" {
		t.Errorf("HistoryLoad should activate the admission and load Ana")
	}

	del, err := HistoryDelete(context.Background(), wb, HistoryDeleteInput{ID: id})
	if err != nil {
		t.Fatalf("HistoryDelete failed: %v", err)
	}
	if del.Deleted != 1 || del.Remaining != 1 {
		t.Errorf("HistoryDelete = %+v", del)
	}

	_, err = HistoryGet(context.Background(), wb, HistoryGetInput{ID: id})
	assertCode(t, err, errors.ErrNotFound)
	_, err = HistoryDelete(context.Background(), wb, HistoryDeleteInput{ID: id})
	assertCode(t, err, errors.ErrNotFound)
	_, err = HistoryLoad(context.Background(), wb, HistoryLoadInput{ID: id})
	assertCode(t, err, errors.ErrNotFound)

	cleared := HistoryClear(context.Background(), wb)
	if cleared.Deleted != 1 || cleared.Remaining != 0 {
		t.Errorf("HistoryClear = %+v", cleared)
	}
}

func TestHistoryWorkbook(t *testing.T) {
	wb := newWorkbench(t, "{}")
	cfg, dir := testConfig(t)
	commitAdmission(t, wb, "Ana", "I10 - Hipertensión")
	commitAdmission(t, wb, "Bea", "E11 - Diabetes")

	out, err := HistoryWorkbook(context.Background(), wb, cfg, HistoryWorkbookInput{Query: "bea"})
	if err != nil {
		t.Fatalf("HistoryWorkbook failed: %v", err)
	}
	if out.Entries != 1 || len(out.Data) == 0 {
		t.Errorf("Entries/Data = %d/%d", out.Entries, len(out.Data))
	}

	path := filepath.Join(dir, "historial.xlsx")
	out, err = HistoryWorkbook(context.Background(), wb, cfg, HistoryWorkbookInput{Path: path})
	if err != nil {
		t.Fatalf("HistoryWorkbook to file failed: %v", err)
	}
	if out.Data != nil || out.Path != path {
		t.Error("file output should not carry the bytes")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	book, err := excelize.OpenReader(f)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("Historial")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want header + 2", len(rows))
	}
}
