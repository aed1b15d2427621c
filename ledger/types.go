/*
Package ledger provides the three-tier pharmaceutical stock ledger.

PURPOSE:
  Tracks medicine stock from receipt to the person who finally receives it.
  Every tier owns a live "stocks" counter and only ever debits (or, on an
  edit, restores) the tier above it:

    InventoryLot ──Allocate──▶ DistributionEntry ──Dispense──▶ Dispensing
    (received)                 (allocated)                     (dispensed)

KEY CONCEPTS IN THIS FILE (types.go):
  - InventoryLot: one receipt of brand/generic/lot/expiration
  - DistributionEntry: stock allocated from a lot to a channel on a date
  - Recipient: a person, identified by (full name, birthdate, barangay)
  - Dispensing: the handout of entry stock to one recipient

INVARIANTS:
  1. 0 <= lot.Stocks <= lot.Quantity
  2. 0 <= entry.Stocks <= entry.Quantity
  3. (lot, date, channel) identifies at most one DistributionEntry
  4. (full name, birthdate, barangay) identifies at most one Recipient

SEE ALSO:
  - ledger.go: Transaction boundary, retries, event publishing
  - inventory.go, distribution.go, dispensing.go: The three tiers
  - store.go: Persistence interfaces
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LotID int64
type EntryID int64
type RecipientID int64
type DispensingID int64

// =============================================================================
// INVENTORY LOT
// =============================================================================

// StockType is the funding source of a lot.
type StockType string

const (
	StockLGUProcured StockType = "LGU Procured"
	StockDOH         StockType = "DOH"
	StockTrustFunds  StockType = "Trust Funds"
	StockDonations   StockType = "Donations"
)

func (t StockType) Valid() bool {
	switch t {
	case StockLGUProcured, StockDOH, StockTrustFunds, StockDonations:
		return true
	}
	return false
}

type InventoryLot struct {
	ID             LotID
	DateIn         Date
	BrandName      string
	GenericName    string
	Utils          string // unit of measure
	LotNumber      string // optional batch number
	Quantity       int    // received
	Stocks         int    // currently available
	ExpirationDate Date
	StockType      StockType
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Distributed is how much of the lot has left for distribution entries.
func (l InventoryLot) Distributed() int { return l.Quantity - l.Stocks }

// MedicineName renders "Brand (Generic)".
func (l InventoryLot) MedicineName() string {
	return fmt.Sprintf("%s (%s)", l.BrandName, l.GenericName)
}

// Label renders "LOT - Brand (Generic)", the inventory level key.
func (l InventoryLot) Label() string {
	return fmt.Sprintf("%s - %s", l.LotNumber, l.MedicineName())
}

// =============================================================================
// DISTRIBUTION ENTRY
// =============================================================================

// ChannelPharmacy is the channel label of the pharmacy counter.
const ChannelPharmacy = "Pharmacy"

type DistributionEntry struct {
	ID        EntryID
	LotID     LotID
	Date      Date
	Quantity  int    // cumulative amount ever allocated
	Stocks    int    // not yet dispensed
	Channel   string // "Pharmacy", facility name, ...
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryKey is the merge key of a distribution entry.
type EntryKey struct {
	LotID   LotID
	Date    Date
	Channel string
}

func (e DistributionEntry) Key() EntryKey {
	return EntryKey{LotID: e.LotID, Date: e.Date, Channel: e.Channel}
}

// =============================================================================
// RECIPIENT
// =============================================================================

type Recipient struct {
	ID        RecipientID
	FullName  string
	Birthdate Date
	Barangay  string
	Gender    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecipientKey is the identity tuple of a recipient. Gender is not part of it.
type RecipientKey struct {
	FullName  string
	Birthdate Date
	Barangay  string
}

func (r Recipient) Key() RecipientKey {
	return RecipientKey{FullName: r.FullName, Birthdate: r.Birthdate, Barangay: r.Barangay}
}

// =============================================================================
// DISPENSING
// =============================================================================

type Dispensing struct {
	ID          DispensingID
	RecipientID RecipientID
	EntryID     EntryID
	Quantity    int
	DateGiven   Date
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// JOINED VIEWS - Read-only snapshots for listings and reports
// =============================================================================

// EntryView is a distribution entry with its lot.
type EntryView struct {
	DistributionEntry
	Lot InventoryLot
}

// DispensingView is a dispensing joined with everything above it.
type DispensingView struct {
	Dispensing
	Recipient Recipient
	Entry     DistributionEntry
	Lot       InventoryLot
}

// RecipientDetail is a recipient with their dispensing history.
type RecipientDetail struct {
	Recipient
	Dispensings []DispensingView
}
