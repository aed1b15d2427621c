/*
query.go - Filters for read-only listings

PURPOSE:
  One definition of what each filter means. The SQLite store translates
  filters to SQL; the memory store calls Match. Both must agree, and the
  Match methods are the reference.

DATE PRECEDENCE:
  A filter may set several date constraints. They are applied the same way
  everywhere:
    1. From/To range (either bound may be open)
    2. exact day (On)
    3. Month + Year, or Year alone
  Only the first one that is set applies.

TEXT MATCHING:
  Brand, generic and lot number filters are case-insensitive substring
  matches with Unicode case folding (strings.ToLower). Channel, barangay,
  gender and stock type are exact.
*/
package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Period is the shared date constraint of every filter.
type Period struct {
	From  Date
	To    Date
	On    Date
	Month int // 1-12, only with Year
	Year  int
}

func (p Period) IsZero() bool {
	return p.From.IsZero() && p.To.IsZero() && p.On.IsZero() && p.Year == 0
}

// Match reports whether d satisfies the period.
func (p Period) Match(d Date) bool {
	switch {
	case !p.From.IsZero() || !p.To.IsZero():
		if !p.From.IsZero() && d.Before(p.From) {
			return false
		}
		if !p.To.IsZero() && d.After(p.To) {
			return false
		}
		return true
	case !p.On.IsZero():
		return d.Equal(p.On)
	case p.Month != 0 && p.Year != 0:
		return d.Year() == p.Year && int(d.Month()) == p.Month
	case p.Year != 0:
		return d.Year() == p.Year
	}
	return true
}

// Describe renders the period for report titles, e.g. "January 2, 2025",
// "January 2025" or "2025". Ranges render as "2025-01-01 to 2025-01-31".
func (p Period) Describe() string {
	switch {
	case !p.From.IsZero() || !p.To.IsZero():
		return fmt.Sprintf("%s to %s", orOpen(p.From), orOpen(p.To))
	case !p.On.IsZero():
		return p.On.Time.Format("January 2, 2006")
	case p.Month != 0 && p.Year != 0:
		return fmt.Sprintf("%s %d", monthName(p.Month), p.Year)
	case p.Year != 0:
		return fmt.Sprintf("%d", p.Year)
	}
	return ""
}

func orOpen(d Date) string {
	if d.IsZero() {
		return "…"
	}
	return d.String()
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("month %d", m)
	}
	return time.Month(m).String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// =============================================================================
// LOTS
// =============================================================================

type LotFilter struct {
	LotNumber  string
	StockType  StockType
	Received   Period // on DateIn
	ExpiringBy Date   // ExpirationDate <= ExpiringBy
}

func (f LotFilter) Match(l InventoryLot) bool {
	if f.LotNumber != "" && l.LotNumber != f.LotNumber {
		return false
	}
	if f.StockType != "" && l.StockType != f.StockType {
		return false
	}
	if !f.ExpiringBy.IsZero() && l.ExpirationDate.After(f.ExpiringBy) {
		return false
	}
	return f.Received.Match(l.DateIn)
}

// =============================================================================
// DISTRIBUTION ENTRIES
// =============================================================================

type EntryFilter struct {
	LotID       LotID
	Channel     string
	StockType   StockType
	Distributed Period // on entry Date
}

func (f EntryFilter) Match(v EntryView) bool {
	if f.LotID != 0 && v.LotID != f.LotID {
		return false
	}
	if f.Channel != "" && v.Channel != f.Channel {
		return false
	}
	if f.StockType != "" && v.Lot.StockType != f.StockType {
		return false
	}
	return f.Distributed.Match(v.Date)
}

// =============================================================================
// RECIPIENTS
// =============================================================================

type RecipientFilter struct {
	Search   string // substring of full name
	Barangay string
	Gender   string
	Created  Period // on the day the recipient was first recorded

	// Medicine filters: the recipient must have received at least one
	// dispensing whose lot matches all of the set fields.
	BrandName   string
	GenericName string
	LotNumber   string
}

func (f RecipientFilter) HasMedicineFilter() bool {
	return f.BrandName != "" || f.GenericName != "" || f.LotNumber != ""
}

// MatchLot applies the medicine filters to one lot.
func (f RecipientFilter) MatchLot(l InventoryLot) bool {
	return matchMedicine(l, f.BrandName, f.GenericName, f.LotNumber)
}

// Match applies the recipient's own fields. Medicine filters need the
// recipient's dispensings and are applied by the store.
func (f RecipientFilter) Match(r Recipient) bool {
	if f.Search != "" && !containsFold(r.FullName, f.Search) {
		return false
	}
	if f.Barangay != "" && r.Barangay != f.Barangay {
		return false
	}
	if f.Gender != "" && r.Gender != f.Gender {
		return false
	}
	return f.Created.Match(DateOf(r.CreatedAt))
}

func matchMedicine(l InventoryLot, brand, generic, lot string) bool {
	if brand != "" && !containsFold(l.BrandName, brand) {
		return false
	}
	if generic != "" && !containsFold(l.GenericName, generic) {
		return false
	}
	if lot != "" && !containsFold(l.LotNumber, lot) {
		return false
	}
	return true
}

// =============================================================================
// DISPENSINGS
// =============================================================================

type DispensingFilter struct {
	RecipientID RecipientID
	EntryID     EntryID
	BrandName   string
	GenericName string
	LotNumber   string
	Barangay    string
	Gender      string
	Given       Period // on DateGiven
}

func (f DispensingFilter) Match(v DispensingView) bool {
	if f.RecipientID != 0 && v.RecipientID != f.RecipientID {
		return false
	}
	if f.EntryID != 0 && v.EntryID != f.EntryID {
		return false
	}
	if !matchMedicine(v.Lot, f.BrandName, f.GenericName, f.LotNumber) {
		return false
	}
	if f.Barangay != "" && v.Recipient.Barangay != f.Barangay {
		return false
	}
	if f.Gender != "" && v.Recipient.Gender != f.Gender {
		return false
	}
	return f.Given.Match(v.DateGiven)
}
