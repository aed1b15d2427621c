/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types in package
  ledger carry no JSON tags; these types are the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Envelopes

VALIDATION:
  Request types carry validator tags checked by decode() before any ledger
  call. Field names in validation failures use the json tag. The ledger
  re-checks its own invariants (quantity >= 1, expiration after receipt).

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Tag based validation
*/
package api

import (
	"time"

	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// ENVELOPES
// =============================================================================

// MessageResponse wraps the result of a mutation.
type MessageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// CheckResponse answers the report pre-flight endpoints.
type CheckResponse struct {
	Exists  bool   `json:"exists"`
	Message string `json:"message,omitempty"`
}

// =============================================================================
// INVENTORY
// =============================================================================

type LotRequest struct {
	DateIn         string `json:"date_in" validate:"required,datetime=2006-01-02"`
	BrandName      string `json:"brand_name" validate:"required,max=255"`
	GenericName    string `json:"generic_name" validate:"required,max=255"`
	Utils          string `json:"utils" validate:"required,max=255"`
	LotNumber      string `json:"lot_number" validate:"max=255"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
	ExpirationDate string `json:"expiration_date" validate:"required,datetime=2006-01-02"`
	StockType      string `json:"stock_type" validate:"omitempty,max=255"`
}

func (r LotRequest) input() ledger.LotInput {
	return ledger.LotInput{
		DateIn:         mustDate(r.DateIn),
		BrandName:      r.BrandName,
		GenericName:    r.GenericName,
		Utils:          r.Utils,
		LotNumber:      r.LotNumber,
		Quantity:       r.Quantity,
		ExpirationDate: mustDate(r.ExpirationDate),
		StockType:      ledger.StockType(r.StockType),
	}
}

type LotDTO struct {
	ID             int64       `json:"id"`
	DateIn         ledger.Date `json:"date_in"`
	BrandName      string      `json:"brand_name"`
	GenericName    string      `json:"generic_name"`
	Utils          string      `json:"utils"`
	LotNumber      string      `json:"lot_number"`
	Quantity       int         `json:"quantity"`
	Stocks         int         `json:"stocks"`
	ExpirationDate ledger.Date `json:"expiration_date"`
	StockType      string      `json:"stock_type"`
	CreatedAt      string      `json:"created_at"`
	UpdatedAt      string      `json:"updated_at"`
}

func toLotDTO(l ledger.InventoryLot) LotDTO {
	return LotDTO{
		ID:             int64(l.ID),
		DateIn:         l.DateIn,
		BrandName:      l.BrandName,
		GenericName:    l.GenericName,
		Utils:          l.Utils,
		LotNumber:      l.LotNumber,
		Quantity:       l.Quantity,
		Stocks:         l.Stocks,
		ExpirationDate: l.ExpirationDate,
		StockType:      string(l.StockType),
		CreatedAt:      formatTime(l.CreatedAt),
		UpdatedAt:      formatTime(l.UpdatedAt),
	}
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

type AllocateRequest struct {
	DateDistribute string `json:"date_distribute" validate:"required,datetime=2006-01-02"`
	Remarks        string `json:"remarks" validate:"required,max=255"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
	Reason         string `json:"reason" validate:"max=255"`
}

type EntryDTO struct {
	ID             int64       `json:"id"`
	InventoryID    int64       `json:"inventory_id"`
	DateDistribute ledger.Date `json:"date_distribute"`
	Quantity       int         `json:"quantity"`
	Stocks         int         `json:"stocks"`
	Remarks        string      `json:"remarks"`
	Reason         string      `json:"reason"`
	Lot            *LotDTO     `json:"inventory,omitempty"`
}

func toEntryDTO(e ledger.DistributionEntry) EntryDTO {
	return EntryDTO{
		ID:             int64(e.ID),
		InventoryID:    int64(e.LotID),
		DateDistribute: e.Date,
		Quantity:       e.Quantity,
		Stocks:         e.Stocks,
		Remarks:        e.Channel,
		Reason:         e.Reason,
	}
}

func toEntryViewDTO(v ledger.EntryView) EntryDTO {
	dto := toEntryDTO(v.DistributionEntry)
	lot := toLotDTO(v.Lot)
	dto.Lot = &lot
	return dto
}

// =============================================================================
// RECIPIENTS AND DISPENSINGS
// =============================================================================

type RecipientRequest struct {
	FullName  string `json:"full_name" validate:"required,max=255"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02"`
	Barangay  string `json:"barangay" validate:"required,max=255"`
	Gender    string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
}

func (r RecipientRequest) input() ledger.RecipientInput {
	return ledger.RecipientInput{
		FullName:  r.FullName,
		Birthdate: mustDate(r.Birthdate),
		Barangay:  r.Barangay,
		Gender:    r.Gender,
	}
}

// HandoutRequest is the part of a dispensing that does not name the recipient.
type HandoutRequest struct {
	DistributionID int64  `json:"distribution_id" validate:"required,min=1"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
	DateGiven      string `json:"date_given" validate:"required,datetime=2006-01-02"`
}

// DispenseRequest creates or reuses the recipient and records a handout.
type DispenseRequest struct {
	RecipientRequest
	HandoutRequest
}

// EditDispensingRequest overwrites every recipient field, gender included.
type EditDispensingRequest struct {
	FullName  string `json:"full_name" validate:"required,max=255"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02"`
	Barangay  string `json:"barangay" validate:"required,max=255"`
	Gender    string `json:"gender" validate:"required,oneof=Male Female Other"`
	HandoutRequest
}

func (r EditDispensingRequest) input() ledger.EditInput {
	return ledger.EditInput{
		Recipient: RecipientRequest{
			FullName:  r.FullName,
			Birthdate: r.Birthdate,
			Barangay:  r.Barangay,
			Gender:    r.Gender,
		}.input(),
		EntryID:   ledger.EntryID(r.DistributionID),
		Quantity:  r.Quantity,
		DateGiven: mustDate(r.DateGiven),
	}
}

type RecipientDTO struct {
	ID        int64       `json:"id"`
	FullName  string      `json:"full_name"`
	Birthdate ledger.Date `json:"birthdate"`
	Barangay  string      `json:"barangay"`
	Gender    string      `json:"gender"`
	CreatedAt string      `json:"created_at"`
}

func toRecipientDTO(r ledger.Recipient) RecipientDTO {
	return RecipientDTO{
		ID:        int64(r.ID),
		FullName:  r.FullName,
		Birthdate: r.Birthdate,
		Barangay:  r.Barangay,
		Gender:    r.Gender,
		CreatedAt: formatTime(r.CreatedAt),
	}
}

type DispensingDTO struct {
	ID             int64         `json:"id"`
	RecipientID    int64         `json:"recipient_id"`
	DistributionID int64         `json:"distribution_id"`
	Quantity       int           `json:"quantity"`
	DateGiven      ledger.Date   `json:"date_given"`
	Recipient      *RecipientDTO `json:"recipient,omitempty"`
	Distribution   *EntryDTO     `json:"distribution,omitempty"`
}

func toDispensingDTO(d ledger.Dispensing) DispensingDTO {
	return DispensingDTO{
		ID:             int64(d.ID),
		RecipientID:    int64(d.RecipientID),
		DistributionID: int64(d.EntryID),
		Quantity:       d.Quantity,
		DateGiven:      d.DateGiven,
	}
}

func toDispensingViewDTO(v ledger.DispensingView) DispensingDTO {
	dto := toDispensingDTO(v.Dispensing)
	rec := toRecipientDTO(v.Recipient)
	entry := toEntryViewDTO(ledger.EntryView{DistributionEntry: v.Entry, Lot: v.Lot})
	dto.Recipient = &rec
	dto.Distribution = &entry
	return dto
}

type RecipientDetailDTO struct {
	RecipientDTO
	Dispensings []DispensingDTO `json:"dispensings"`
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportRecordDTO struct {
	ReportID    string `json:"report_id"`
	Kind        string `json:"report_type"`
	Title       string `json:"title"`
	RowCount    int    `json:"row_count"`
	GeneratedBy string `json:"generated_by"`
	CreatedAt   string `json:"created_at"`
}

func toReportRecordDTO(r report.Record) ReportRecordDTO {
	return ReportRecordDTO{
		ReportID:    r.ReportID,
		Kind:        string(r.Kind),
		Title:       r.Title,
		RowCount:    r.RowCount,
		GeneratedBy: r.GeneratedBy,
		CreatedAt:   formatTime(r.CreatedAt),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// mustDate parses a date that already passed the datetime validator.
func mustDate(s string) ledger.Date {
	d, err := ledger.ParseDate(s)
	if err != nil {
		return ledger.Date{}
	}
	return d
}
