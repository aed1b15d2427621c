/*
store.go - Persistence interfaces for the stock ledger

PURPOSE:
  Defines the boundary between ledger rules and the relational store.
  The ledger never writes outside a transaction: every mutation asks the
  TxStore for a transactional Store, reads, validates and writes through
  it, and lets WithTx commit or roll back.

KEY INTERFACES:
  Store:      Row-level reads and writes used inside one transaction
  TxStore:    Transaction boundary (all-or-nothing)
  QueryStore: Read-only listings and joined snapshots
  Repository: Everything the Ledger needs

CONDITIONAL WRITES:
  DebitLot and AdjustEntry only apply when the counter stays >= 0. A write
  that matches no row returns ErrConcurrencyConflict: the ledger already
  validated the balance in the same transaction, so a miss means another
  writer got there first.

CASCADES:
  The schema declares ON DELETE CASCADE on every foreign key. The ledger
  does not rely on it: DeleteLot and DeleteEntry are only called once the
  ledger has verified there are no children.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - ledger/store/memory.go: In-memory for tests

SEE ALSO:
  - ledger.go: Uses TxStore.WithTx for every mutation
  - query.go: Filter types accepted by QueryStore
*/
package ledger

import "context"

// =============================================================================
// STORE - Row operations inside a transaction
// =============================================================================

// Store reads and writes ledger rows. Get*/Find* return (nil, nil) when the
// row does not exist.
type Store interface {
	CreateLot(ctx context.Context, lot *InventoryLot) error
	GetLot(ctx context.Context, id LotID) (*InventoryLot, error)
	UpdateLot(ctx context.Context, lot InventoryLot) error
	// DebitLot subtracts amount from stocks only if stocks >= amount.
	DebitLot(ctx context.Context, id LotID, amount int) error
	DeleteLot(ctx context.Context, id LotID) error

	GetEntry(ctx context.Context, id EntryID) (*DistributionEntry, error)
	FindEntry(ctx context.Context, key EntryKey) (*DistributionEntry, error)
	CreateEntry(ctx context.Context, entry *DistributionEntry) error
	// AdjustEntry adds the deltas only if stocks+stocksDelta stays >= 0.
	AdjustEntry(ctx context.Context, id EntryID, quantityDelta, stocksDelta int) error
	CountEntries(ctx context.Context, lotID LotID) (int, error)
	DeleteEntry(ctx context.Context, id EntryID) error

	GetRecipient(ctx context.Context, id RecipientID) (*Recipient, error)
	FindRecipient(ctx context.Context, key RecipientKey) (*Recipient, error)
	CreateRecipient(ctx context.Context, r *Recipient) error
	UpdateRecipient(ctx context.Context, r Recipient) error

	GetDispensing(ctx context.Context, id DispensingID) (*Dispensing, error)
	CreateDispensing(ctx context.Context, d *Dispensing) error
	UpdateDispensing(ctx context.Context, d Dispensing) error
	CountDispensings(ctx context.Context, entryID EntryID) (int, error)
	DeleteDispensing(ctx context.Context, id DispensingID) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore runs fn inside a transaction.
// If fn returns an error, every write made through the Store is rolled back.
// If fn returns nil, the transaction is committed.
type TxStore interface {
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// QUERY STORE - Read-only listings
// =============================================================================

// QueryStore returns committed state. Results are ordered newest first.
type QueryStore interface {
	ListLots(ctx context.Context, f LotFilter) ([]InventoryLot, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]EntryView, error)
	ListRecipients(ctx context.Context, f RecipientFilter) ([]Recipient, error)
	ListDispensings(ctx context.Context, f DispensingFilter) ([]DispensingView, error)
}

// Repository is the full persistence surface of the Ledger.
type Repository interface {
	TxStore
	QueryStore
}
