package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

const DefaultExpiryWindowMonths = 3

type Service struct {
	queries      ledger.QueryStore
	log          Log
	logger       logrus.FieldLogger
	expiryMonths int
	now          func() time.Time
	newID        func() string
}

type Option func(*Service)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

// WithExpiryWindow sets how many months ahead the dashboard looks for
// expiring lots.
func WithExpiryWindow(months int) Option {
	return func(s *Service) { s.expiryMonths = months }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(queries ledger.QueryStore, log Log, opts ...Option) *Service {
	discard := logrus.New()
	discard.Out = io.Discard
	s := &Service{
		queries:      queries,
		log:          log,
		logger:       discard,
		expiryMonths: DefaultExpiryWindowMonths,
		now:          time.Now,
		newID:        shortID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// shortID is the first 8 characters of a random UUID.
func shortID() string {
	return uuid.NewString()[:8]
}

const idAttempts = 3

// issue assigns a report id and records it in the log.
func (s *Service) issue(ctx context.Context, r *Report, by ledger.Actor) error {
	r.GeneratedBy = by.String()
	r.GeneratedAt = s.now().UTC()
	for attempt := 0; attempt < idAttempts; attempt++ {
		r.ID = s.newID()
		err := s.log.SaveReport(ctx, Record{
			ReportID:    r.ID,
			Kind:        r.Kind,
			Title:       r.Title,
			RowCount:    len(r.Rows),
			GeneratedBy: r.GeneratedBy,
			CreatedAt:   r.GeneratedAt,
		})
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"report_id": r.ID,
				"kind":      r.Kind,
				"rows":      len(r.Rows),
				"actor":     r.GeneratedBy,
			}).Info("report generated")
			return nil
		}
		if !errors.Is(err, ErrDuplicateReportID) {
			return fmt.Errorf("record report: %w", err)
		}
	}
	return fmt.Errorf("record report: %w", ErrDuplicateReportID)
}

func (s *Service) History(ctx context.Context, limit int) ([]Record, error) {
	return s.log.ListReports(ctx, limit)
}

// =============================================================================
// INVENTORY REPORT
// =============================================================================

type InventoryQuery struct {
	LotNumber string
	StockType ledger.StockType
	Received  ledger.Period // On, Month+Year or Year
}

func (q InventoryQuery) title() string {
	title := "Inventory Report"
	if q.StockType != "" {
		title += " - " + string(q.StockType)
	}
	if q.LotNumber != "" {
		title += " - Lot #" + q.LotNumber
	}
	if p := q.Received.Describe(); p != "" {
		title += " for " + p
	}
	return title
}

func (q InventoryQuery) emptyMessage() string {
	if p := q.Received.Describe(); p != "" {
		return "No inventory records found for " + p + "."
	}
	if q.LotNumber != "" {
		return "No inventory found for Lot #" + q.LotNumber + "."
	}
	return "No inventory found matching the provided filters."
}

func (s *Service) buildInventory(ctx context.Context, q InventoryQuery) (*Report, error) {
	lots, err := s.queries.ListLots(ctx, ledger.LotFilter{
		LotNumber: q.LotNumber,
		StockType: q.StockType,
		Received:  q.Received,
	})
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	if len(lots) == 0 {
		return nil, &EmptyReportError{Message: q.emptyMessage()}
	}
	sort.SliceStable(lots, func(i, j int) bool { return lots[i].DateIn.After(lots[j].DateIn) })

	r := &Report{
		Kind:  KindInventory,
		Title: q.title(),
		Headers: []string{"Date In", "Brand Name", "Generic Name", "Unit", "Lot Number",
			"Quantity", "Stocks", "Expiration Date", "Stock Type"},
	}
	for _, l := range lots {
		r.Rows = append(r.Rows, []any{
			l.DateIn.String(), l.BrandName, l.GenericName, l.Utils, l.LotNumber,
			l.Quantity, l.Stocks, l.ExpirationDate.String(), string(l.StockType),
		})
	}
	return r, nil
}

// Inventory generates the inventory report, newest receipts first.
func (s *Service) Inventory(ctx context.Context, by ledger.Actor, q InventoryQuery) (*Report, error) {
	r, err := s.buildInventory(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.issue(ctx, r, by); err != nil {
		return nil, err
	}
	return r, nil
}

// CheckInventory reports whether Inventory would produce rows without
// issuing an id.
func (s *Service) CheckInventory(ctx context.Context, q InventoryQuery) error {
	_, err := s.buildInventory(ctx, q)
	return err
}

// =============================================================================
// DISTRIBUTION REPORT
// =============================================================================

type DistributionQuery struct {
	Channel     string // empty or "all" means every channel
	StockType   ledger.StockType
	Distributed ledger.Period
}

func (q DistributionQuery) channel() string {
	if strings.EqualFold(q.Channel, "all") {
		return ""
	}
	return q.Channel
}

func orAll(s string) string {
	if s == "" {
		return "All"
	}
	return s
}

func (q DistributionQuery) title() string {
	title := fmt.Sprintf("Distribution Report - %s - %s", orAll(q.channel()), orAll(string(q.StockType)))
	if p := q.Distributed.Describe(); p != "" {
		title += " for " + p
	}
	return title
}

func (s *Service) buildDistribution(ctx context.Context, q DistributionQuery) (*Report, error) {
	entries, err := s.queries.ListEntries(ctx, ledger.EntryFilter{
		Channel:     q.channel(),
		StockType:   q.StockType,
		Distributed: q.Distributed,
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, &EmptyReportError{Message: "No distributions found for the selected filters."}
	}

	r := &Report{
		Kind:  KindDistribution,
		Title: q.title(),
		Headers: []string{"Date", "Channel", "Lot Number", "Brand Name", "Generic Name",
			"Quantity", "Undispensed", "Reason", "Stock Type"},
	}
	for _, e := range entries {
		r.Rows = append(r.Rows, []any{
			e.Date.String(), e.Channel, e.Lot.LotNumber, e.Lot.BrandName, e.Lot.GenericName,
			e.Quantity, e.Stocks, e.Reason, string(e.Lot.StockType),
		})
	}
	return r, nil
}

// Distribution generates the distribution report for one channel or all.
func (s *Service) Distribution(ctx context.Context, by ledger.Actor, q DistributionQuery) (*Report, error) {
	r, err := s.buildDistribution(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.issue(ctx, r, by); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) CheckDistribution(ctx context.Context, q DistributionQuery) error {
	_, err := s.buildDistribution(ctx, q)
	return err
}

// =============================================================================
// DISPENSING REPORT
// =============================================================================

func (s *Service) buildDispensing(ctx context.Context, f ledger.DispensingFilter) (*Report, error) {
	views, err := s.queries.ListDispensings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list dispensings: %w", err)
	}
	if len(views) == 0 {
		return nil, &EmptyReportError{Message: "No records found for the selected filters."}
	}

	title := "Recipient Dispensing Report"
	if p := f.Given.Describe(); p != "" {
		title += " for " + p
	}
	r := &Report{
		Kind:  KindDispensing,
		Title: title,
		Headers: []string{"Date Given", "Recipient", "Birthdate", "Barangay", "Gender",
			"Medicine", "Lot Number", "Quantity", "Channel"},
	}
	for _, v := range views {
		r.Rows = append(r.Rows, []any{
			v.DateGiven.String(), v.Recipient.FullName, v.Recipient.Birthdate.String(),
			v.Recipient.Barangay, v.Recipient.Gender, v.Lot.MedicineName(), v.Lot.LotNumber,
			v.Quantity, v.Entry.Channel,
		})
	}
	return r, nil
}

// Dispensing generates the recipient dispensing report.
func (s *Service) Dispensing(ctx context.Context, by ledger.Actor, f ledger.DispensingFilter) (*Report, error) {
	r, err := s.buildDispensing(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.issue(ctx, r, by); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) CheckDispensing(ctx context.Context, f ledger.DispensingFilter) error {
	_, err := s.buildDispensing(ctx, f)
	return err
}

// AvailableMonths lists the months (1-12, ascending) that have at least one
// dispensing. A zero year means any year.
func (s *Service) AvailableMonths(ctx context.Context, year int) ([]int, error) {
	views, err := s.queries.ListDispensings(ctx, ledger.DispensingFilter{Given: ledger.Period{Year: year}})
	if err != nil {
		return nil, fmt.Errorf("list dispensings: %w", err)
	}
	seen := make(map[int]bool)
	months := []int{}
	for _, v := range views {
		m := int(v.DateGiven.Month())
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Ints(months)
	return months, nil
}
