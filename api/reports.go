package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================
//
//   GET /api/reports/inventory[/check]       lot_number, stock_type, date params
//   GET /api/reports/distributions[/check]   remarks ("all" for every channel), stock_type, date params
//   GET /api/reports/dispensings[/check]     dispensing filters
//   GET /api/reports/months?year=            months that have dispensings
//   GET /api/reports/history?limit=          generated report log
//   GET /api/dashboard
//
// Reports download as XLSX unless format=json. The /check variants answer
// {exists, message} without issuing a report id.

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func inventoryQuery(r *http.Request) (report.InventoryQuery, error) {
	f, err := lotFilter(r.URL.Query())
	if err != nil {
		return report.InventoryQuery{}, err
	}
	return report.InventoryQuery{LotNumber: f.LotNumber, StockType: f.StockType, Received: f.Received}, nil
}

func distributionQuery(r *http.Request) (report.DistributionQuery, error) {
	f, err := entryFilter(r.URL.Query())
	if err != nil {
		return report.DistributionQuery{}, err
	}
	return report.DistributionQuery{Channel: f.Channel, StockType: f.StockType, Distributed: f.Distributed}, nil
}

// sendReport writes rep as an XLSX attachment, or as JSON on request.
func (h *Handler) sendReport(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		writeJSON(w, http.StatusOK, rep)
		return
	}
	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename()))
	w.Header().Set("X-Report-ID", rep.ID)
	if err := rep.WriteXLSX(w); err != nil {
		h.Logger.WithError(err).WithField("report_id", rep.ID).Error("failed to write report")
	}
}

// sendCheck answers a /check endpoint from the error of a dry run.
func (h *Handler) sendCheck(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	var empty *report.EmptyReportError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CheckResponse{Exists: true})
	case errors.As(err, &empty):
		writeJSON(w, http.StatusOK, CheckResponse{Exists: false, Message: empty.Message})
	default:
		h.fail(w, r, funcName, err)
	}
}

func (h *Handler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	q, err := inventoryQuery(r)
	if err != nil {
		h.fail(w, r, "InventoryReport", err)
		return
	}
	rep, err := h.Reports.Inventory(r.Context(), actorFrom(r.Context()), q)
	if err != nil {
		h.fail(w, r, "InventoryReport", err)
		return
	}
	h.sendReport(w, r, rep)
}

func (h *Handler) CheckInventoryReport(w http.ResponseWriter, r *http.Request) {
	q, err := inventoryQuery(r)
	if err == nil {
		err = h.Reports.CheckInventory(r.Context(), q)
	}
	h.sendCheck(w, r, "CheckInventoryReport", err)
}

func (h *Handler) DistributionReport(w http.ResponseWriter, r *http.Request) {
	q, err := distributionQuery(r)
	if err != nil {
		h.fail(w, r, "DistributionReport", err)
		return
	}
	rep, err := h.Reports.Distribution(r.Context(), actorFrom(r.Context()), q)
	if err != nil {
		h.fail(w, r, "DistributionReport", err)
		return
	}
	h.sendReport(w, r, rep)
}

func (h *Handler) CheckDistributionReport(w http.ResponseWriter, r *http.Request) {
	q, err := distributionQuery(r)
	if err == nil {
		err = h.Reports.CheckDistribution(r.Context(), q)
	}
	h.sendCheck(w, r, "CheckDistributionReport", err)
}

func (h *Handler) DispensingReport(w http.ResponseWriter, r *http.Request) {
	f, err := dispensingFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, "DispensingReport", err)
		return
	}
	rep, err := h.Reports.Dispensing(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, "DispensingReport", err)
		return
	}
	h.sendReport(w, r, rep)
}

func (h *Handler) CheckDispensingReport(w http.ResponseWriter, r *http.Request) {
	f, err := dispensingFilter(r.URL.Query())
	if err == nil {
		err = h.Reports.CheckDispensing(r.Context(), f)
	}
	h.sendCheck(w, r, "CheckDispensingReport", err)
}

// AvailableMonths lists the months of a year that have dispensings.
// GET /api/reports/months?year=2025
func (h *Handler) AvailableMonths(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r.URL.Query(), "year", 1, 9999)
	if err != nil {
		h.fail(w, r, "AvailableMonths", err)
		return
	}
	months, err := h.Reports.AvailableMonths(r.Context(), year)
	if err != nil {
		h.fail(w, r, "AvailableMonths", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "months": months})
}

func (h *Handler) ReportHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", 1, 1000)
	if err != nil {
		h.fail(w, r, "ReportHistory", err)
		return
	}
	records, err := h.Reports.History(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "ReportHistory", err)
		return
	}
	dtos := make([]ReportRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toReportRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Dashboard returns dispensing aggregates, lot levels and expiring lots.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reports.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, "Dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
