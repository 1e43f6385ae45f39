package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListSnapshot is a fully materialised listing of an endpoint, captured
// with the filters that produced it.
type ListSnapshot struct {
	ID            uuid.UUID         `json:"id"`
	Endpoint      Endpoint          `json:"endpoint"`
	Filters       map[string]string `json:"filters"`
	FilterSummary string            `json:"filter_summary"`
	ItemCount     int               `json:"item_count"`
	Items         []Record          `json:"items,omitempty"`
	FetchedAt     time.Time         `json:"fetched_at"`
}

// ExportFormat names a snapshot export file type.
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
)

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// ParseExportFormat accepts "xlsx" or "csv"; empty means xlsx.
func ParseExportFormat(value string) (ExportFormat, bool) {
	switch ExportFormat(value) {
	case "", ExportFormatXLSX:
		return ExportFormatXLSX, true
	case ExportFormatCSV:
		return ExportFormatCSV, true
	default:
		return "", false
	}
}
