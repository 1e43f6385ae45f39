package export

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/internal/repository"
	"github.com/rpattn/aquamind/pkg/filter"
)

const (
	itemsSheet   = "Items"
	filtersSheet = "Filters"
)

var errUnknownFormat = errors.New("unknown export format")

type Service struct {
	repo      repository.SnapshotRepository
	exportDir string
	now       func() time.Time
	logger    *zap.Logger

	// downloadSigner is nil unless signed links are enabled.
	downloadSigner *downloadSigner
}

type Option func(*Service)

func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// WithDownloadTokenTTL requires a signed token on export downloads and sets
// how long generated links stay valid.
func WithDownloadTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.downloadSigner = newDownloadSigner(ttl)
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo repository.SnapshotRepository, opts ...Option) *Service {
	service := &Service{
		repo:      repo,
		exportDir: filepath.Join(os.TempDir(), "aquamind-exports"),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Save stores a freshly fetched listing.
func (s *Service) Save(ctx context.Context, snapshot domain.ListSnapshot) (domain.ListSnapshot, error) {
	if snapshot.Endpoint == "" {
		return domain.ListSnapshot{}, errors.New("snapshot endpoint is required")
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = s.now().UTC()
	}
	saved, err := s.repo.Create(ctx, snapshot)
	if err != nil {
		return domain.ListSnapshot{}, err
	}
	s.logger.Info("saved snapshot",
		zap.String("id", saved.ID.String()),
		zap.String("endpoint", saved.Endpoint.String()),
		zap.Int("items", saved.ItemCount),
	)
	return saved, nil
}

func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (domain.ListSnapshot, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Snapshots(ctx context.Context, filter repository.SnapshotFilter) ([]domain.ListSnapshot, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Write renders snapshot in format to w and returns the bytes written.
func (s *Service) Write(w io.Writer, snapshot domain.ListSnapshot, format domain.ExportFormat) (int64, error) {
	buffered := bufio.NewWriter(w)
	counter := &countingWriter{writer: buffered}

	var err error
	switch format {
	case domain.ExportFormatXLSX:
		err = writeXLSX(counter, snapshot)
	case domain.ExportFormatCSV:
		err = writeCSV(counter, snapshot)
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
	if err != nil {
		return counter.count, err
	}
	if err := buffered.Flush(); err != nil {
		return counter.count, fmt.Errorf("flush export: %w", err)
	}
	return counter.count, nil
}

// ExportToFile writes the stored snapshot id to dest, or to the export
// directory when dest is empty, and returns the final path.
func (s *Service) ExportToFile(ctx context.Context, id uuid.UUID, format domain.ExportFormat, dest string) (string, error) {
	snapshot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	finalPath := strings.TrimSpace(dest)
	if finalPath == "" {
		if err := s.ensureExportDirectory(); err != nil {
			return "", err
		}
		finalPath = filepath.Join(s.exportDir, FileName(snapshot, format))
	}

	tempFile, err := os.CreateTemp(filepath.Dir(finalPath), ".export-*")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	written, err := s.Write(tempFile, snapshot, format)
	if err != nil {
		return "", err
	}
	if err := tempFile.Sync(); err != nil {
		return "", fmt.Errorf("sync export file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("promote export file: %w", err)
	}
	cleanup = false

	s.logger.Info("exported snapshot",
		zap.String("id", id.String()),
		zap.String("format", string(format)),
		zap.String("path", finalPath),
		zap.Int64("bytes", written),
	)
	return finalPath, nil
}

// DownloadToken signs a time-limited token for the snapshot's export link.
// It returns false when signed links are disabled.
func (s *Service) DownloadToken(id uuid.UUID) (string, time.Time, bool) {
	if s.downloadSigner == nil {
		return "", time.Time{}, false
	}
	now := s.now()
	return s.downloadSigner.Sign(id, now), now.Add(s.downloadSigner.ttl), true
}

// ValidateDownloadToken accepts any token when signed links are disabled.
func (s *Service) ValidateDownloadToken(id uuid.UUID, token string) error {
	if s.downloadSigner == nil {
		return nil
	}
	return s.downloadSigner.Verify(id, token, s.now())
}

// FileName derives a download name like "batches-<id>.xlsx".
func FileName(snapshot domain.ListSnapshot, format domain.ExportFormat) string {
	base := "snapshot"
	if trimmed := strings.TrimSuffix(snapshot.Endpoint.String(), "/"); trimmed != "" {
		base = sanitizeFileComponent(path.Base(trimmed))
	}
	return fmt.Sprintf("%s-%s.%s", base, snapshot.ID.String(), format)
}

func (s *Service) ensureExportDirectory() error {
	if strings.TrimSpace(s.exportDir) == "" {
		return errors.New("export directory is not configured")
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}
	return nil
}

// columns returns "id" followed by the sorted union of every other key.
func columns(items []domain.Record) []string {
	seen := map[string]struct{}{}
	for _, item := range items {
		for key := range item {
			if key != "id" {
				seen[key] = struct{}{}
			}
		}
	}
	rest := make([]string, 0, len(seen))
	for key := range seen {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append([]string{"id"}, rest...)
}

func writeCSV(w io.Writer, snapshot domain.ListSnapshot) error {
	cols := columns(snapshot.Items)
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rowBuffer := make([]string, len(cols))
	for _, item := range snapshot.Items {
		for i, column := range cols {
			rowBuffer[i] = formatValue(item[column])
		}
		if err := csvWriter.Write(rowBuffer); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, snapshot domain.ListSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	stream, err := f.NewStreamWriter(itemsSheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	cols := columns(snapshot.Items)
	header := make([]any, len(cols))
	for i, column := range cols {
		header[i] = column
	}
	if err := stream.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for rowIdx, item := range snapshot.Items {
		row := make([]any, len(cols))
		for i, column := range cols {
			row[i] = cellValue(item[column])
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		if err := stream.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", rowIdx+1, err)
		}
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}

	if err := writeFiltersSheet(f, snapshot); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writeFiltersSheet records what produced the listing.
func writeFiltersSheet(f *excelize.File, snapshot domain.ListSnapshot) error {
	if _, err := f.NewSheet(filtersSheet); err != nil {
		return fmt.Errorf("create filters sheet: %w", err)
	}
	rows := [][]any{
		{"Endpoint", snapshot.Endpoint.String()},
		{"Fetched At", snapshot.FetchedAt.UTC().Format(time.RFC3339)},
		{"Items", snapshot.ItemCount},
		{"Summary", snapshot.FilterSummary},
		{"Filter", "IDs"},
	}
	keys := make([]string, 0, len(snapshot.Filters))
	for key := range snapshot.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		rows = append(rows, []any{filter.Label(key), snapshot.Filters[key]})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		if err := f.SetSheetRow(filtersSheet, cell, &row); err != nil {
			return fmt.Errorf("write filters row: %w", err)
		}
	}
	return nil
}

// cellValue keeps numbers and booleans typed in the spreadsheet.
func cellValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case bool, string, int, int32, int64, float32, float64:
		return v
	default:
		return formatValue(v)
	}
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := builder.String()
	result = strings.Trim(result, "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer io.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float32, float64, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%v", v)
	case []byte:
		return string(v)
	case map[string]any, []any, domain.Record:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

type downloadSigner struct {
	secret []byte
	ttl    time.Duration
}

func newDownloadSigner(ttl time.Duration) *downloadSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &downloadSigner{secret: []byte(uuid.New().String()), ttl: ttl}
}

func (s *downloadSigner) Sign(snapshotID uuid.UUID, now time.Time) string {
	expires := now.Add(s.ttl).Unix()
	payload := fmt.Sprintf("%s:%d", snapshotID.String(), expires)
	raw := fmt.Sprintf("%s:%s", payload, s.mac(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func (s *downloadSigner) Verify(snapshotID uuid.UUID, token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("missing download token")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return errors.New("invalid token format")
	}
	if parts[0] != snapshotID.String() {
		return errors.New("token does not match snapshot")
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token expiration: %w", err)
	}
	if now.Unix() > expires {
		return errors.New("download token expired")
	}
	expected, _ := hex.DecodeString(s.mac(parts[0] + ":" + parts[1]))
	provided, err := hex.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("invalid token signature: %w", err)
	}
	if !hmac.Equal(expected, provided) {
		return errors.New("invalid download token")
	}
	return nil
}

func (s *downloadSigner) mac(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
