package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/internal/repository"
)

func sampleSnapshot() domain.ListSnapshot {
	return domain.ListSnapshot{
		ID:            uuid.MustParse("6f1c2a4e-2b1d-4c55-9f7e-0a2e3b4c5d6e"),
		Endpoint:      domain.EndpointBatches,
		Filters:       map[string]string{"hall__in": "1,2", "area__in": "5"},
		FilterSummary: "Hall: 2, Area: 1",
		ItemCount:     2,
		Items: []domain.Record{
			{"id": json.Number("2"), "batch_number": "B-002", "active": true, "population": json.Number("1500")},
			{"id": json.Number("1"), "batch_number": "B-001", "notes": map[string]any{"lane": "A"}, "weight": json.Number("12.5")},
		},
		FetchedAt: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestWriteCSV(t *testing.T) {
	svc := NewService(repository.NewMemorySnapshotRepository())
	var buf bytes.Buffer
	n, err := svc.Write(&buf, sampleSnapshot(), domain.ExportFormatCSV)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("reported %d bytes, buffer has %d", n, buf.Len())
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	wantHeader := []string{"id", "active", "batch_number", "notes", "population", "weight"}
	if strings.Join(rows[0], ",") != strings.Join(wantHeader, ",") {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if got := strings.Join(rows[1], ","); got != "2,true,B-002,,1500," {
		t.Fatalf("unexpected first row: %q", got)
	}
	if rows[2][3] != `{"lane":"A"}` || rows[2][5] != "12.5" {
		t.Fatalf("unexpected second row: %v", rows[2])
	}
}

func TestWriteXLSX(t *testing.T) {
	svc := NewService(repository.NewMemorySnapshotRepository())
	var buf bytes.Buffer
	if _, err := svc.Write(&buf, sampleSnapshot(), domain.ExportFormatXLSX); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(itemsSheet)
	if err != nil {
		t.Fatalf("read items: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[1][0] != "2" || rows[2][2] != "B-001" {
		t.Fatalf("unexpected items sheet: %v", rows)
	}

	meta, err := f.GetRows(filtersSheet)
	if err != nil {
		t.Fatalf("read filters: %v", err)
	}
	if meta[0][1] != domain.EndpointBatches.String() {
		t.Fatalf("unexpected endpoint row: %v", meta[0])
	}
	if meta[3][1] != "Hall: 2, Area: 1" {
		t.Fatalf("unexpected summary row: %v", meta[3])
	}
	// filters are sorted by key
	if meta[5][0] != "Area" || meta[5][1] != "5" || meta[6][0] != "Hall" {
		t.Fatalf("unexpected filter rows: %v", meta[4:])
	}
}

func TestWriteEmptySnapshot(t *testing.T) {
	svc := NewService(repository.NewMemorySnapshotRepository())
	var buf bytes.Buffer
	if _, err := svc.Write(&buf, domain.ListSnapshot{Endpoint: domain.EndpointHalls}, domain.ExportFormatCSV); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "id\n" {
		t.Fatalf("expected header only, got %q", buf.String())
	}
	if _, err := svc.Write(&buf, domain.ListSnapshot{}, domain.ExportFormat("pdf")); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	repo := repository.NewMemorySnapshotRepository()
	svc := NewService(repo, WithExportDirectory(dir))
	saved, err := svc.Save(context.Background(), sampleSnapshot())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	path, err := svc.ExportToFile(context.Background(), saved.ID, domain.ExportFormatCSV, "")
	if err != nil {
		t.Fatalf("ExportToFile: %v", err)
	}
	if want := filepath.Join(dir, "batches-"+saved.ID.String()+".csv"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,") {
		t.Fatalf("unexpected export contents: %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be promoted, found %d entries", len(entries))
	}

	if _, err := svc.ExportToFile(context.Background(), uuid.New(), domain.ExportFormatCSV, ""); err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestDownloadTokens(t *testing.T) {
	open := NewService(repository.NewMemorySnapshotRepository())
	if _, _, ok := open.DownloadToken(uuid.New()); ok {
		t.Fatal("expected signed links disabled by default")
	}
	if err := open.ValidateDownloadToken(uuid.New(), ""); err != nil {
		t.Fatalf("expected any token accepted when disabled: %v", err)
	}

	svc := NewService(repository.NewMemorySnapshotRepository(), WithDownloadTokenTTL(time.Minute))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	id := uuid.New()
	token, expires, ok := svc.DownloadToken(id)
	if !ok || !expires.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected token metadata: %v %v", expires, ok)
	}
	if err := svc.ValidateDownloadToken(id, token); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if err := svc.ValidateDownloadToken(uuid.New(), token); err == nil {
		t.Fatal("expected token bound to snapshot")
	}
	if err := svc.ValidateDownloadToken(id, ""); err == nil {
		t.Fatal("expected missing token rejected")
	}

	now = now.Add(2 * time.Minute)
	if err := svc.ValidateDownloadToken(id, token); err == nil {
		t.Fatal("expected expired token rejected")
	}
}

func TestFileNameAndSanitize(t *testing.T) {
	snapshot := domain.ListSnapshot{ID: uuid.Nil, Endpoint: domain.EndpointStations}
	if got := FileName(snapshot, domain.ExportFormatXLSX); got != "freshwater-stations-"+uuid.Nil.String()+".xlsx" {
		t.Fatalf("unexpected file name: %q", got)
	}
	if got := FileName(domain.ListSnapshot{}, domain.ExportFormatCSV); !strings.HasPrefix(got, "snapshot-") {
		t.Fatalf("expected fallback name, got %q", got)
	}
	if got := sanitizeFileComponent("  Feed Stock/2024 "); got != "feed-stock-2024" {
		t.Fatalf("unexpected sanitize result: %q", got)
	}
	if got := sanitizeFileComponent("***"); got != "export" {
		t.Fatalf("expected fallback component, got %q", got)
	}
}
