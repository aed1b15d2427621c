/*
handlers_test.go - HTTP tests for the stock ledger API

Tests run the full router against an in-memory SQLite store:
- Status mapping for each error kind
- Request validation (field map)
- Actor headers and the guest write refusal
- Report download and check endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/report"
	"github.com/warp/stock-ledger/store/sqlite"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, _ := test.NewNullLogger()
	l := ledger.New(store, ledger.WithLogger(logger))
	reports := report.NewService(store, store, report.WithLogger(logger))
	h := NewHandler(l, reports, store, logger)
	return &testServer{t: t, router: NewRouter(h, nil)}
}

// do sends a request as an admin unless role is overridden via headers.
func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderActorID, "pharmacist-1")
	req.Header.Set(HeaderActorRole, "admin")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type lotEnvelope struct {
	Message string `json:"message"`
	Data    LotDTO `json:"data"`
}

type entryEnvelope struct {
	Data EntryDTO `json:"data"`
}

type dispensingEnvelope struct {
	Data DispensingDTO `json:"data"`
}

func lotBody(qty int) map[string]any {
	return map[string]any{
		"date_in":         "2025-01-01",
		"brand_name":      "Biogesic",
		"generic_name":    "Paracetamol",
		"utils":           "tablet",
		"lot_number":      "LOT001",
		"quantity":        qty,
		"expiration_date": "2026-01-01",
	}
}

func janeBody(entryID int64, qty int) map[string]any {
	return map[string]any{
		"full_name":       "Jane Doe",
		"birthdate":       "1990-05-05",
		"barangay":        "Poblacion",
		"gender":          "Female",
		"distribution_id": entryID,
		"quantity":        qty,
		"date_given":      "2025-01-02",
	}
}

// seed receives a 100 unit lot and allocates 30 to the pharmacy.
func (s *testServer) seed() (LotDTO, EntryDTO) {
	rec := s.do(http.MethodPost, "/api/inventory", lotBody(100))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	lot := decodeBody[lotEnvelope](s.t, rec).Data

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/inventory/%d/distribute", lot.ID), map[string]any{
		"date_distribute": "2025-01-01", "remarks": "Pharmacy", "quantity": 30,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return lot, decodeBody[entryEnvelope](s.t, rec).Data
}

// =============================================================================
// INVENTORY AND DISTRIBUTION
// =============================================================================

func TestReceiveAndAllocate(t *testing.T) {
	// GIVEN: A received lot with 30 units allocated
	s := newTestServer(t)
	lot, entry := s.seed()

	// THEN: The entry carries the full allocation and the lot is debited
	assert.Equal(t, 30, entry.Quantity)
	assert.Equal(t, 30, entry.Stocks)
	assert.Equal(t, "Pharmacy", entry.Remarks)

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/inventory/%d", lot.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[LotDTO](t, rec)
	assert.Equal(t, 70, got.Stocks)
	assert.Equal(t, "LGU Procured", got.StockType)
	assert.Equal(t, "2025-01-01", got.DateIn.String())

	rec = s.do(http.MethodGet, "/api/medicines", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	medicines := decodeBody[[]EntryDTO](t, rec)
	require.Len(t, medicines, 1)
	require.NotNil(t, medicines[0].Lot)
	assert.Equal(t, "LOT001", medicines[0].Lot.LotNumber)
}

func TestReceiveLot_ValidationFields(t *testing.T) {
	s := newTestServer(t)
	body := lotBody(0)
	body["date_in"] = "01/02/2025"
	delete(body, "brand_name")

	rec := s.do(http.MethodPost, "/api/inventory", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "required", resp.Fields["brand_name"])
	assert.Equal(t, "required", resp.Fields["quantity"])
	assert.Equal(t, "datetime=2006-01-02", resp.Fields["date_in"])
}

func TestReceiveLot_DomainValidation(t *testing.T) {
	// GIVEN: An expiration before the receipt date, which tags cannot express
	s := newTestServer(t)
	body := lotBody(5)
	body["expiration_date"] = "2024-12-31"

	rec := s.do(http.MethodPost, "/api/inventory", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Fields, "expiration_date")
}

func TestAllocate_Insufficient(t *testing.T) {
	s := newTestServer(t)
	lot, _ := s.seed()

	rec := s.do(http.MethodPost, fmt.Sprintf("/api/inventory/%d/distribute", lot.ID), map[string]any{
		"date_distribute": "2025-01-05", "remarks": "RHU 1", "quantity": 71,
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Insufficient stock", decodeBody[ErrorResponse](t, rec).Error)
}

func TestNotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/inventory/99", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/distributions/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/inventory/abc", nil).Code)
}

func TestDeleteLot_WithEntriesConflicts(t *testing.T) {
	s := newTestServer(t)
	lot, _ := s.seed()

	rec := s.do(http.MethodDelete, fmt.Sprintf("/api/inventory/%d", lot.ID), nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGuestCannotWrite(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/inventory", lotBody(10), HeaderActorRole, "guest")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// a malformed body from a guest is still refused, not validated
	rec = s.do(http.MethodPost, "/api/inventory", map[string]any{}, HeaderActorRole, "guest")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/inventory", nil, HeaderActorRole, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]LotDTO](t, rec))
}

// =============================================================================
// DISPENSING
// =============================================================================

func TestDispenseEditDelete(t *testing.T) {
	s := newTestServer(t)
	_, entry := s.seed()

	// WHEN: 10 units are dispensed to a new recipient
	rec := s.do(http.MethodPost, "/api/recipients/dispense", janeBody(entry.ID, 10))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decodeBody[dispensingEnvelope](t, rec).Data

	// AND: edited up to 15
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/dispensings/%d", d.ID), janeBody(entry.ID, 15))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// AND: edited beyond the entry balance
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/dispensings/%d", d.ID), janeBody(entry.ID, 31))
	require.Equal(t, http.StatusConflict, rec.Code)

	// THEN: the entry holds 15 and keeps it after the dispensing is deleted
	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/dispensings/%d", d.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/distributions/%d", entry.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15, decodeBody[EntryDTO](t, rec).Stocks)
}

func TestEditDispensing_GenderRequired(t *testing.T) {
	s := newTestServer(t)
	_, entry := s.seed()
	rec := s.do(http.MethodPost, "/api/recipients/dispense", janeBody(entry.ID, 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decodeBody[dispensingEnvelope](t, rec).Data

	body := janeBody(entry.ID, 4)
	delete(body, "gender")
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/dispensings/%d", d.ID), body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decodeBody[ErrorResponse](t, rec).Fields["gender"])

	body["gender"] = "Male"
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/dispensings/%d", d.ID), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/recipients/%d", d.RecipientID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Male", decodeBody[RecipientDetailDTO](t, rec).Gender)
}

func TestRecipientDetailAndExistingDispense(t *testing.T) {
	s := newTestServer(t)
	_, entry := s.seed()

	rec := s.do(http.MethodPost, "/api/recipients/dispense", janeBody(entry.ID, 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	recipientID := decodeBody[dispensingEnvelope](t, rec).Data.RecipientID

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/recipients/%d/dispense", recipientID), map[string]any{
		"distribution_id": entry.ID, "quantity": 3, "date_given": "2025-02-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/recipients/%d", recipientID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[RecipientDetailDTO](t, rec)
	assert.Equal(t, "Jane Doe", detail.FullName)
	require.Len(t, detail.Dispensings, 2)
	require.NotNil(t, detail.Dispensings[0].Distribution)
	assert.Equal(t, "LOT001", detail.Dispensings[0].Distribution.Lot.LotNumber)

	rec = s.do(http.MethodGet, "/api/dispensings?month=2&year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]DispensingDTO](t, rec), 1)
}

func TestDispense_InvalidGender(t *testing.T) {
	s := newTestServer(t)
	_, entry := s.seed()
	body := janeBody(entry.ID, 1)
	body["gender"] = "F"

	rec := s.do(http.MethodPost, "/api/recipients/dispense", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "oneof=Male Female Other", decodeBody[ErrorResponse](t, rec).Fields["gender"])
}

func TestListQuery_BadPeriod(t *testing.T) {
	s := newTestServer(t)

	tests := []struct{ name, path, field string }{
		{"month without year", "/api/dispensings?month=3", "year"},
		{"month out of range", "/api/dispensings?month=13&year=2025", "month"},
		{"bad date", "/api/inventory?date=2025-13-01", "date"},
		{"inverted range", "/api/recipients?start_date=2025-02-01&end_date=2025-01-01", "end_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody[ErrorResponse](t, rec).Fields, tt.field)
		})
	}
}

// =============================================================================
// REPORTS
// =============================================================================

func TestInventoryReport_XLSX(t *testing.T) {
	s := newTestServer(t)
	s.seed()

	rec := s.do(http.MethodGet, "/api/reports/inventory?year=2025", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	reportID := rec.Header().Get("X-Report-ID")
	assert.Len(t, reportID, 8)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inventory_"+reportID)

	wb, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer wb.Close()
	title, err := wb.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Inventory Report for 2025", title)

	rec = s.do(http.MethodGet, "/api/reports/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]ReportRecordDTO](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, reportID, history[0].ReportID)
	assert.Equal(t, "pharmacist-1", history[0].GeneratedBy)
}

func TestReportChecks(t *testing.T) {
	s := newTestServer(t)
	s.seed()

	rec := s.do(http.MethodGet, "/api/reports/distributions/check?remarks=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[CheckResponse](t, rec).Exists)

	rec = s.do(http.MethodGet, "/api/reports/inventory/check?year=2023", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	check := decodeBody[CheckResponse](t, rec)
	assert.False(t, check.Exists)
	assert.Equal(t, "No inventory records found for 2023.", check.Message)

	rec = s.do(http.MethodGet, "/api/reports/dispensings?format=json", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No records found for the selected filters.", decodeBody[ErrorResponse](t, rec).Error)
}

func TestDistributionReport_JSON(t *testing.T) {
	s := newTestServer(t)
	s.seed()

	rec := s.do(http.MethodGet, "/api/reports/distributions?remarks=Pharmacy&format=json", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Title string  `json:"title"`
		Rows  [][]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Distribution Report - Pharmacy - All", body.Title)
	assert.Len(t, body.Rows, 1)
}

func TestAvailableMonthsAndDashboard(t *testing.T) {
	s := newTestServer(t)
	_, entry := s.seed()
	rec := s.do(http.MethodPost, "/api/recipients/dispense", janeBody(entry.ID, 4))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/reports/months?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var months struct {
		Months []int `json:"months"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &months))
	assert.Equal(t, []int{1}, months.Months)

	rec = s.do(http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeBody[report.Dashboard](t, rec)
	assert.Equal(t, 4, d.ByGender["Female"])
	assert.Equal(t, 4, d.ByMedicine["Biogesic (Paracetamol)"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}
