/*
handlers.go - HTTP API handlers for the stock ledger

PURPOSE:
  Exposes the three-tier stock ledger via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to package ledger.

ENDPOINTS:
  Inventory:
    GET    /api/inventory                   List lots (filters in query)
    POST   /api/inventory                   Receive a lot
    GET    /api/inventory/{id}              Get lot
    PUT    /api/inventory/{id}              Amend lot
    DELETE /api/inventory/{id}              Delete lot (refused with entries)
    POST   /api/inventory/{id}/distribute   Allocate to a channel

  Distributions:
    GET    /api/distributions               List entries
    GET    /api/distributions/{id}          Get entry with its lot
    DELETE /api/distributions/{id}          Delete entry (refused with dispensings)
    GET    /api/medicines                   Pharmacy entries

  Recipients:
    GET    /api/recipients                  List recipients
    POST   /api/recipients                  Find or create recipient
    POST   /api/recipients/dispense         Dispense, creating the recipient if needed
    GET    /api/recipients/{id}             Recipient with dispensing history
    POST   /api/recipients/{id}/dispense    Dispense to an existing recipient

  Dispensings:
    GET    /api/dispensings                 List dispensings
    GET    /api/dispensings/{id}            Get dispensing
    PUT    /api/dispensings/{id}            Edit dispensing
    DELETE /api/dispensings/{id}            Delete dispensing

REQUEST FLOW:
  1. Resolve the actor (actorMiddleware)
  2. Decode and validate the body (decode)
  3. Call the ledger
  4. Serialize response, or map the error kind to a status (statusFor)

ERROR HANDLING:
  - 400: Validation errors, malformed body or query
  - 403: Actor may not write
  - 404: Resource not found, empty report
  - 409: Insufficient stock, dependents, lost write race
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - reports.go: Report, export and dashboard endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/stock-ledger/config"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Ledger
	Reports *report.Service
	Store   Pinger
	Logger  logrus.FieldLogger
}

func NewHandler(l *ledger.Ledger, reports *report.Service, store Pinger, logger logrus.FieldLogger) *Handler {
	return &Handler{Ledger: l, Reports: reports, Store: store, Logger: logger}
}

// Health reports store reachability.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListLots returns lots matching the query filters.
func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	f, err := lotFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, "ListLots", err)
		return
	}
	lots, err := h.Ledger.ListLots(r.Context(), f)
	if err != nil {
		h.fail(w, r, "ListLots", err)
		return
	}
	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	lot, err := h.Ledger.Lot(r.Context(), ledger.LotID(id))
	if err != nil {
		h.fail(w, r, "GetLot", err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(*lot))
}

// ReceiveLot records a new inventory lot.
func (h *Handler) ReceiveLot(w http.ResponseWriter, r *http.Request) {
	var req LotRequest
	if !decode(w, r, &req) {
		return
	}
	lot, err := h.Ledger.Receive(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		h.fail(w, r, "ReceiveLot", err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Inventory lot received", Data: toLotDTO(*lot)})
}

// AmendLot overwrites a lot's fields; stocks follow the configured amend policy.
func (h *Handler) AmendLot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req LotRequest
	if !decode(w, r, &req) {
		return
	}
	lot, err := h.Ledger.Amend(r.Context(), actorFrom(r.Context()), ledger.LotID(id), req.input())
	if err != nil {
		h.fail(w, r, "AmendLot", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Inventory lot updated", Data: toLotDTO(*lot)})
}

func (h *Handler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.DeleteLot(r.Context(), actorFrom(r.Context()), ledger.LotID(id)); err != nil {
		h.fail(w, r, "DeleteLot", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Inventory lot deleted"})
}

// Allocate moves stock from the lot in the path to a channel.
// POST /api/inventory/{id}/distribute
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AllocateRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := h.Ledger.Allocate(r.Context(), actorFrom(r.Context()), ledger.AllocateInput{
		LotID:    ledger.LotID(id),
		Date:     mustDate(req.DateDistribute),
		Channel:  req.Remarks,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		h.fail(w, r, "Allocate", err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Stock distributed", Data: toEntryDTO(*entry)})
}

// =============================================================================
// DISTRIBUTION HANDLERS
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	f, err := entryFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, "ListEntries", err)
		return
	}
	views, err := h.Ledger.ListEntries(r.Context(), f)
	if err != nil {
		h.fail(w, r, "ListEntries", err)
		return
	}
	writeJSON(w, http.StatusOK, entryViewDTOs(views))
}

// ListMedicines returns pharmacy entries, the stock available for dispensing.
// GET /api/medicines
func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	f, err := entryFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, "ListMedicines", err)
		return
	}
	views, err := h.Ledger.Medicines(r.Context(), f)
	if err != nil {
		h.fail(w, r, "ListMedicines", err)
		return
	}
	writeJSON(w, http.StatusOK, entryViewDTOs(views))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.Ledger.Entry(r.Context(), ledger.EntryID(id))
	if err != nil {
		h.fail(w, r, "GetEntry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryViewDTO(*view))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.DeleteEntry(r.Context(), actorFrom(r.Context()), ledger.EntryID(id)); err != nil {
		h.fail(w, r, "DeleteEntry", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Distribution deleted"})
}

func entryViewDTOs(views []ledger.EntryView) []EntryDTO {
	dtos := make([]EntryDTO, len(views))
	for i, v := range views {
		dtos[i] = toEntryViewDTO(v)
	}
	return dtos
}

// =============================================================================
// RECIPIENT HANDLERS
// =============================================================================

func (h *Handler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	f, err := recipientFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, "ListRecipients", err)
		return
	}
	recipients, err := h.Ledger.ListRecipients(r.Context(), f)
	if err != nil {
		h.fail(w, r, "ListRecipients", err)
		return
	}
	dtos := make([]RecipientDTO, len(recipients))
	for i, rec := range recipients {
		dtos[i] = toRecipientDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// FindOrCreateRecipient returns the recipient with the given identity,
// recording it first if needed.
func (h *Handler) FindOrCreateRecipient(w http.ResponseWriter, r *http.Request) {
	var req RecipientRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.Ledger.FindOrCreateRecipient(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		h.fail(w, r, "FindOrCreateRecipient", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Recipient saved", Data: toRecipientDTO(*rec)})
}

// GetRecipient returns the recipient and every dispensing they received.
func (h *Handler) GetRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.Ledger.Recipient(r.Context(), ledger.RecipientID(id))
	if err != nil {
		h.fail(w, r, "GetRecipient", err)
		return
	}
	dto := RecipientDetailDTO{
		RecipientDTO: toRecipientDTO(detail.Recipient),
		Dispensings:  dispensingViewDTOs(detail.Dispensings),
	}
	writeJSON(w, http.StatusOK, dto)
}

// Dispense records a handout, creating the recipient if needed.
// POST /api/recipients/dispense
func (h *Handler) Dispense(w http.ResponseWriter, r *http.Request) {
	var req DispenseRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Ledger.Dispense(r.Context(), actorFrom(r.Context()), ledger.DispenseInput{
		Recipient: req.RecipientRequest.input(),
		EntryID:   ledger.EntryID(req.DistributionID),
		Quantity:  req.Quantity,
		DateGiven: mustDate(req.DateGiven),
	})
	if err != nil {
		h.fail(w, r, "Dispense", err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Medicine dispensed", Data: toDispensingDTO(*d)})
}

// DispenseToRecipient records a handout for the recipient in the path.
// POST /api/recipients/{id}/dispense
func (h *Handler) DispenseToRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req HandoutRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Ledger.DispenseToRecipient(r.Context(), actorFrom(r.Context()), ledger.DispenseExistingInput{
		RecipientID: ledger.RecipientID(id),
		EntryID:     ledger.EntryID(req.DistributionID),
		Quantity:    req.Quantity,
		DateGiven:   mustDate(req.DateGiven),
	})
	if err != nil {
		h.fail(w, r, "DispenseToRecipient", err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Medicine dispensed", Data: toDispensingDTO(*d)})
}

// =============================================================================
// DISPENSING HANDLERS
// =============================================================================

func (h *Handler) ListDispensings(w http.ResponseWriter, r *http.Request) {
	f, err := dispensingFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, "ListDispensings", err)
		return
	}
	views, err := h.Ledger.ListDispensings(r.Context(), f)
	if err != nil {
		h.fail(w, r, "ListDispensings", err)
		return
	}
	writeJSON(w, http.StatusOK, dispensingViewDTOs(views))
}

func (h *Handler) GetDispensing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.Ledger.Dispensing(r.Context(), ledger.DispensingID(id))
	if err != nil {
		h.fail(w, r, "GetDispensing", err)
		return
	}
	writeJSON(w, http.StatusOK, toDispensingViewDTO(*view))
}

// EditDispensing replaces the recipient, entry, quantity and date of a
// dispensing, moving stock between entries when the entry changes.
// PUT /api/dispensings/{id}
func (h *Handler) EditDispensing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req EditDispensingRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Ledger.EditDispensing(r.Context(), actorFrom(r.Context()), ledger.DispensingID(id), req.input())
	if err != nil {
		h.fail(w, r, "EditDispensing", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Dispensing updated", Data: toDispensingDTO(*d)})
}

func (h *Handler) DeleteDispensing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.DeleteDispensing(r.Context(), actorFrom(r.Context()), ledger.DispensingID(id)); err != nil {
		h.fail(w, r, "DeleteDispensing", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Dispensing deleted"})
}

func dispensingViewDTOs(views []ledger.DispensingView) []DispensingDTO {
	dtos := make([]DispensingDTO, len(views))
	for i, v := range views {
		dtos[i] = toDispensingViewDTO(v)
	}
	return dtos
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps ledger error kinds to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusConflict, "Insufficient stock"
	case errors.Is(err, ledger.ErrHasDependents):
		return http.StatusConflict, "Record is still referenced"
	case errors.Is(err, ledger.ErrDuplicateRecipient):
		return http.StatusConflict, "Duplicate recipient"
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return http.StatusConflict, "Concurrent modification, try again"
	}
	return http.StatusInternalServerError, "Internal error"
}

// fail writes the error response for err. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	status, message := statusFor(err)
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var verr *ledger.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		resp.Fields = map[string]string{verr.Field: verr.Message}
	}
	var empty *report.EmptyReportError
	if errors.As(err, &empty) {
		resp.Error = empty.Message
		resp.Details = ""
	}

	if status == http.StatusInternalServerError {
		config.LogError(h.Logger, "api", funcName, r.Method+" "+r.URL.Path, nil, err)
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

// pathID parses the {id} URL parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}
