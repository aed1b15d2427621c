/*
Package report builds read-only snapshots of the ledger for screens and
exports.

PURPOSE:
  Reports never mutate stock. They read committed state through
  ledger.QueryStore, shape it into rows, and hand out a short report id that
  is recorded in the report log so a printed copy can be traced back.

KEY CONCEPTS:
  Report:    Title, headers and rows of one generated report
  Log:       Where report ids are recorded (generated_reports table)
  Dashboard: Aggregates for the admin landing page

EMPTY RESULTS:
  A report with no rows is not generated. The caller gets an
  EmptyReportError carrying the message to show, which unwraps to
  ledger.ErrNotFound.

SEE ALSO:
  - service.go: Report queries
  - dashboard.go: Chart aggregates
  - store/sqlite/reports.go: Log implementation
*/
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/warp/stock-ledger/ledger"
	"github.com/xuri/excelize/v2"
)

type Kind string

const (
	KindInventory    Kind = "inventory"
	KindDistribution Kind = "distribution"
	KindDispensing   Kind = "dispensing"
)

// Report is one generated table.
type Report struct {
	ID          string    `json:"report_id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Headers     []string  `json:"headers"`
	Rows        [][]any   `json:"rows"`
	GeneratedBy string    `json:"generated_by"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Filename is the download name of the XLSX export.
func (r *Report) Filename() string {
	return fmt.Sprintf("%s_%s_%s.xlsx", r.Kind, r.ID, r.GeneratedAt.Format("20060102_150405"))
}

const sheet = "Sheet1"

// WriteXLSX renders the report as a single-sheet workbook: title, report id,
// a blank row, headers, then data.
func (r *Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	cell := func(col, row int) string {
		name, _ := excelize.CoordinatesToCellName(col, row)
		return name
	}

	if err := f.SetCellValue(sheet, cell(1, 1), r.Title); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell(1, 2), "Report ID: "+r.ID); err != nil {
		return err
	}
	const headerRow = 4
	for i, h := range r.Headers {
		if err := f.SetCellValue(sheet, cell(i+1, headerRow), h); err != nil {
			return err
		}
	}
	for ri, row := range r.Rows {
		for ci, v := range row {
			if err := f.SetCellValue(sheet, cell(ci+1, headerRow+1+ri), v); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

// =============================================================================
// ERRORS
// =============================================================================

var ErrDuplicateReportID = errors.New("duplicate report id")

// EmptyReportError means the filters matched nothing.
type EmptyReportError struct {
	Message string
}

func (e *EmptyReportError) Error() string { return e.Message }

func (e *EmptyReportError) Unwrap() error { return ledger.ErrNotFound }

// =============================================================================
// REPORT LOG
// =============================================================================

// Record is one entry of the report log.
type Record struct {
	ReportID    string    `json:"report_id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	RowCount    int       `json:"row_count"`
	GeneratedBy string    `json:"generated_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Log records report ids. SaveReport returns ErrDuplicateReportID when the
// id is already taken.
type Log interface {
	SaveReport(ctx context.Context, rec Record) error
	ListReports(ctx context.Context, limit int) ([]Record, error)
}

// MemoryLog is an in-process Log.
type MemoryLog struct {
	mu      sync.Mutex
	records []Record
}

func (m *MemoryLog) SaveReport(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ReportID == rec.ReportID {
			return ErrDuplicateReportID
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryLog) ListReports(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for i := len(m.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}
