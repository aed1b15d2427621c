package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// REPORT LOG (report.Log interface)
// =============================================================================

func (s *Store) SaveReport(ctx context.Context, rec report.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_reports (report_id, report_type, title, row_count, generated_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ReportID, string(rec.Kind), rec.Title, rec.RowCount, rec.GeneratedBy,
		rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return report.ErrDuplicateReportID
		}
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// ListReports returns the most recent reports first. limit <= 0 means all.
func (s *Store) ListReports(ctx context.Context, limit int) ([]report.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT report_id, report_type, title, row_count, generated_by, created_at
		FROM generated_reports ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var result []report.Record
	for rows.Next() {
		var rec report.Record
		var kind, createdAt string
		if err := rows.Scan(&rec.ReportID, &kind, &rec.Title, &rec.RowCount, &rec.GeneratedBy, &createdAt); err != nil {
			return nil, err
		}
		rec.Kind = report.Kind(kind)
		rec.CreatedAt = parseTimestamp(createdAt)
		result = append(result, rec)
	}
	return result, rows.Err()
}
