package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day (receipts, distributions, dispensings, birthdates)
// =============================================================================

// DateLayout is the wire and storage format for every calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar day normalized to UTC midnight.
// Two Dates compare equal when they fall on the same day, which is what the
// distribution merge key needs (exact date match, no tolerance window).
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) IsZero() bool                 { return d.Time.IsZero() }
func (d Date) Year() int                    { return d.Time.Year() }
func (d Date) Month() time.Month            { return d.Time.Month() }
func (d Date) Before(other Date) bool       { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool        { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool        { return d.Time.Equal(other.Time) }
func (d Date) AfterOrEqual(other Date) bool { return !d.Before(other) }
func (d Date) AddMonths(n int) Date         { return Date{Time: d.Time.AddDate(0, n, 0)} }
func (d Date) AddDays(n int) Date           { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
