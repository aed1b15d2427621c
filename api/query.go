package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// QUERY STRING PARSING
// =============================================================================
//
// Every list and report endpoint accepts the same date parameters:
//   start_date, end_date  inclusive range, either bound may be omitted
//   date                  exact day
//   month, year           calendar month (month needs year) or whole year
// Malformed values are ValidationErrors and map to 400.

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ledger.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

func dateParam(q url.Values, key string) (ledger.Date, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return ledger.Date{}, nil
	}
	d, err := ledger.ParseDate(s)
	if err != nil {
		return ledger.Date{}, &ledger.ValidationError{Field: key, Message: "must be YYYY-MM-DD"}
	}
	return d, nil
}

func intParam(q url.Values, key string, min, max int) (int, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, &ledger.ValidationError{Field: key, Message: "out of range"}
	}
	return n, nil
}

func period(q url.Values) (ledger.Period, error) {
	var p ledger.Period
	var err error
	if p.From, err = dateParam(q, "start_date"); err != nil {
		return p, err
	}
	if p.To, err = dateParam(q, "end_date"); err != nil {
		return p, err
	}
	if p.On, err = dateParam(q, "date"); err != nil {
		return p, err
	}
	if p.Month, err = intParam(q, "month", 1, 12); err != nil {
		return p, err
	}
	if p.Year, err = intParam(q, "year", 1, 9999); err != nil {
		return p, err
	}
	if p.Month != 0 && p.Year == 0 {
		return p, &ledger.ValidationError{Field: "year", Message: "is required with month"}
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return p, &ledger.ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return p, nil
}

func lotFilter(q url.Values) (ledger.LotFilter, error) {
	received, err := period(q)
	if err != nil {
		return ledger.LotFilter{}, err
	}
	expiring, err := dateParam(q, "expiring_by")
	if err != nil {
		return ledger.LotFilter{}, err
	}
	return ledger.LotFilter{
		LotNumber:  strings.TrimSpace(q.Get("lot_number")),
		StockType:  ledger.StockType(strings.TrimSpace(q.Get("stock_type"))),
		Received:   received,
		ExpiringBy: expiring,
	}, nil
}

func entryFilter(q url.Values) (ledger.EntryFilter, error) {
	distributed, err := period(q)
	if err != nil {
		return ledger.EntryFilter{}, err
	}
	var lotID int64
	if s := q.Get("inventory_id"); s != "" {
		if lotID, err = parseID(s); err != nil {
			return ledger.EntryFilter{}, &ledger.ValidationError{Field: "inventory_id", Message: "must be a positive integer"}
		}
	}
	return ledger.EntryFilter{
		LotID:       ledger.LotID(lotID),
		Channel:     strings.TrimSpace(q.Get("remarks")),
		StockType:   ledger.StockType(strings.TrimSpace(q.Get("stock_type"))),
		Distributed: distributed,
	}, nil
}

func recipientFilter(q url.Values) (ledger.RecipientFilter, error) {
	created, err := period(q)
	if err != nil {
		return ledger.RecipientFilter{}, err
	}
	return ledger.RecipientFilter{
		Search:      strings.TrimSpace(q.Get("search")),
		Barangay:    strings.TrimSpace(q.Get("barangay")),
		Gender:      strings.TrimSpace(q.Get("gender")),
		Created:     created,
		BrandName:   strings.TrimSpace(q.Get("brand_name")),
		GenericName: strings.TrimSpace(q.Get("generic_name")),
		LotNumber:   strings.TrimSpace(q.Get("lot_number")),
	}, nil
}

func dispensingFilter(q url.Values) (ledger.DispensingFilter, error) {
	given, err := period(q)
	if err != nil {
		return ledger.DispensingFilter{}, err
	}
	f := ledger.DispensingFilter{
		BrandName:   strings.TrimSpace(q.Get("brand_name")),
		GenericName: strings.TrimSpace(q.Get("generic_name")),
		LotNumber:   strings.TrimSpace(q.Get("lot_number")),
		Barangay:    strings.TrimSpace(q.Get("barangay")),
		Gender:      strings.TrimSpace(q.Get("gender")),
		Given:       given,
	}
	if s := q.Get("recipient_id"); s != "" {
		id, err := parseID(s)
		if err != nil {
			return f, &ledger.ValidationError{Field: "recipient_id", Message: "must be a positive integer"}
		}
		f.RecipientID = ledger.RecipientID(id)
	}
	if s := q.Get("distribution_id"); s != "" {
		id, err := parseID(s)
		if err != nil {
			return f, &ledger.ValidationError{Field: "distribution_id", Message: "must be a positive integer"}
		}
		f.EntryID = ledger.EntryID(id)
	}
	return f, nil
}
