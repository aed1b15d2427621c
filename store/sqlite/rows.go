package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/stock-ledger/ledger"
)

// txStore implements ledger.Store on top of one *sql.Tx. Reads go through
// the transaction so they see its own uncommitted writes.
type txStore struct {
	q querier
}

// =============================================================================
// INVENTORY LOTS
// =============================================================================

const lotColumns = `id, date_in, brand_name, generic_name, utils, lot_number,
	quantity, stocks, expiration_date, stock_type, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// lotRow holds the raw columns of one inventories row.
type lotRow struct {
	l                                                   ledger.InventoryLot
	dateIn, expiration, stockType, createdAt, updatedAt string
}

func (r *lotRow) dest() []any {
	return []any{&r.l.ID, &r.dateIn, &r.l.BrandName, &r.l.GenericName, &r.l.Utils, &r.l.LotNumber,
		&r.l.Quantity, &r.l.Stocks, &r.expiration, &r.stockType, &r.createdAt, &r.updatedAt}
}

func (r *lotRow) value() ledger.InventoryLot {
	l := r.l
	l.DateIn = parseDate(r.dateIn)
	l.ExpirationDate = parseDate(r.expiration)
	l.StockType = ledger.StockType(r.stockType)
	l.CreatedAt = parseTimestamp(r.createdAt)
	l.UpdatedAt = parseTimestamp(r.updatedAt)
	return l
}

func scanLot(row scanner) (ledger.InventoryLot, error) {
	var r lotRow
	if err := row.Scan(r.dest()...); err != nil {
		return ledger.InventoryLot{}, err
	}
	return r.value(), nil
}

func (ts *txStore) CreateLot(ctx context.Context, lot *ledger.InventoryLot) error {
	now := timestamp()
	res, err := ts.q.ExecContext(ctx, `
		INSERT INTO inventories
		(date_in, brand_name, generic_name, utils, lot_number, quantity, stocks,
		 expiration_date, stock_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lot.DateIn.String(), lot.BrandName, lot.GenericName, lot.Utils, lot.LotNumber,
		lot.Quantity, lot.Stocks, lot.ExpirationDate.String(), string(lot.StockType), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	lot.ID = ledger.LotID(id)
	lot.CreatedAt = parseTimestamp(now)
	lot.UpdatedAt = lot.CreatedAt
	return nil
}

func (ts *txStore) GetLot(ctx context.Context, id ledger.LotID) (*ledger.InventoryLot, error) {
	lot, err := scanLot(ts.q.QueryRowContext(ctx,
		"SELECT "+lotColumns+" FROM inventories WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (ts *txStore) UpdateLot(ctx context.Context, lot ledger.InventoryLot) error {
	return expectOne(ts.q.ExecContext(ctx, `
		UPDATE inventories SET
			date_in = ?, brand_name = ?, generic_name = ?, utils = ?, lot_number = ?,
			quantity = ?, stocks = ?, expiration_date = ?, stock_type = ?, updated_at = ?
		WHERE id = ?
	`,
		lot.DateIn.String(), lot.BrandName, lot.GenericName, lot.Utils, lot.LotNumber,
		lot.Quantity, lot.Stocks, lot.ExpirationDate.String(), string(lot.StockType), timestamp(),
		lot.ID,
	))
}

func (ts *txStore) DebitLot(ctx context.Context, id ledger.LotID, amount int) error {
	return expectOne(ts.q.ExecContext(ctx,
		"UPDATE inventories SET stocks = stocks - ?, updated_at = ? WHERE id = ? AND stocks >= ?",
		amount, timestamp(), id, amount,
	))
}

func (ts *txStore) DeleteLot(ctx context.Context, id ledger.LotID) error {
	_, err := ts.q.ExecContext(ctx, "DELETE FROM inventories WHERE id = ?", id)
	return err
}

// =============================================================================
// DISTRIBUTION ENTRIES
// =============================================================================

const entryColumns = `id, inventory_id, date_distribute, quantity, stocks, remarks, reason,
	created_at, updated_at`

type entryRow struct {
	e                          ledger.DistributionEntry
	date, createdAt, updatedAt string
}

func (r *entryRow) dest() []any {
	return []any{&r.e.ID, &r.e.LotID, &r.date, &r.e.Quantity, &r.e.Stocks, &r.e.Channel, &r.e.Reason,
		&r.createdAt, &r.updatedAt}
}

func (r *entryRow) value() ledger.DistributionEntry {
	e := r.e
	e.Date = parseDate(r.date)
	e.CreatedAt = parseTimestamp(r.createdAt)
	e.UpdatedAt = parseTimestamp(r.updatedAt)
	return e
}

func scanEntry(row scanner) (ledger.DistributionEntry, error) {
	var r entryRow
	if err := row.Scan(r.dest()...); err != nil {
		return ledger.DistributionEntry{}, err
	}
	return r.value(), nil
}

func (ts *txStore) queryEntry(ctx context.Context, where string, args ...any) (*ledger.DistributionEntry, error) {
	e, err := scanEntry(ts.q.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM distributions WHERE "+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.DistributionEntry, error) {
	return ts.queryEntry(ctx, "id = ?", id)
}

func (ts *txStore) FindEntry(ctx context.Context, key ledger.EntryKey) (*ledger.DistributionEntry, error) {
	return ts.queryEntry(ctx, "inventory_id = ? AND date_distribute = ? AND remarks = ?",
		key.LotID, key.Date.String(), key.Channel)
}

func (ts *txStore) CreateEntry(ctx context.Context, entry *ledger.DistributionEntry) error {
	now := timestamp()
	res, err := ts.q.ExecContext(ctx, `
		INSERT INTO distributions
		(inventory_id, date_distribute, quantity, stocks, remarks, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.LotID, entry.Date.String(), entry.Quantity, entry.Stocks,
		entry.Channel, entry.Reason, now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrConcurrencyConflict
		}
		return fmt.Errorf("failed to insert distribution: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = ledger.EntryID(id)
	entry.CreatedAt = parseTimestamp(now)
	entry.UpdatedAt = entry.CreatedAt
	return nil
}

func (ts *txStore) AdjustEntry(ctx context.Context, id ledger.EntryID, quantityDelta, stocksDelta int) error {
	return expectOne(ts.q.ExecContext(ctx, `
		UPDATE distributions
		SET quantity = quantity + ?, stocks = stocks + ?, updated_at = ?
		WHERE id = ? AND stocks + ? >= 0
	`, quantityDelta, stocksDelta, timestamp(), id, stocksDelta))
}

func (ts *txStore) CountEntries(ctx context.Context, lotID ledger.LotID) (int, error) {
	var n int
	err := ts.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM distributions WHERE inventory_id = ?", lotID).Scan(&n)
	return n, err
}

func (ts *txStore) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	_, err := ts.q.ExecContext(ctx, "DELETE FROM distributions WHERE id = ?", id)
	return err
}

// =============================================================================
// RECIPIENTS
// =============================================================================

const recipientColumns = `id, full_name, birthdate, barangay, gender, created_at, updated_at`

type recipientRow struct {
	r                               ledger.Recipient
	birthdate, createdAt, updatedAt string
}

func (r *recipientRow) dest() []any {
	return []any{&r.r.ID, &r.r.FullName, &r.birthdate, &r.r.Barangay, &r.r.Gender, &r.createdAt, &r.updatedAt}
}

func (r *recipientRow) value() ledger.Recipient {
	v := r.r
	v.Birthdate = parseDate(r.birthdate)
	v.CreatedAt = parseTimestamp(r.createdAt)
	v.UpdatedAt = parseTimestamp(r.updatedAt)
	return v
}

func scanRecipient(row scanner) (ledger.Recipient, error) {
	var r recipientRow
	if err := row.Scan(r.dest()...); err != nil {
		return ledger.Recipient{}, err
	}
	return r.value(), nil
}

func (ts *txStore) queryRecipient(ctx context.Context, where string, args ...any) (*ledger.Recipient, error) {
	r, err := scanRecipient(ts.q.QueryRowContext(ctx,
		"SELECT "+recipientColumns+" FROM recipients WHERE "+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (ts *txStore) GetRecipient(ctx context.Context, id ledger.RecipientID) (*ledger.Recipient, error) {
	return ts.queryRecipient(ctx, "id = ?", id)
}

func (ts *txStore) FindRecipient(ctx context.Context, key ledger.RecipientKey) (*ledger.Recipient, error) {
	return ts.queryRecipient(ctx, "full_name = ? AND birthdate = ? AND barangay = ?",
		key.FullName, key.Birthdate.String(), key.Barangay)
}

func (ts *txStore) CreateRecipient(ctx context.Context, r *ledger.Recipient) error {
	now := timestamp()
	res, err := ts.q.ExecContext(ctx, `
		INSERT INTO recipients (full_name, birthdate, barangay, gender, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.FullName, r.Birthdate.String(), r.Barangay, r.Gender, now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateRecipient
		}
		return fmt.Errorf("failed to insert recipient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = ledger.RecipientID(id)
	r.CreatedAt = parseTimestamp(now)
	r.UpdatedAt = r.CreatedAt
	return nil
}

func (ts *txStore) UpdateRecipient(ctx context.Context, r ledger.Recipient) error {
	err := expectOne(ts.q.ExecContext(ctx, `
		UPDATE recipients SET full_name = ?, birthdate = ?, barangay = ?, gender = ?, updated_at = ?
		WHERE id = ?
	`, r.FullName, r.Birthdate.String(), r.Barangay, r.Gender, timestamp(), r.ID))
	if isUniqueConstraintError(err) {
		return ledger.ErrDuplicateRecipient
	}
	return err
}

// =============================================================================
// DISPENSINGS
// =============================================================================

const dispensingColumns = `id, recipient_id, distribution_id, quantity, date_given, created_at, updated_at`

type dispensingRow struct {
	d                           ledger.Dispensing
	given, createdAt, updatedAt string
}

func (r *dispensingRow) dest() []any {
	return []any{&r.d.ID, &r.d.RecipientID, &r.d.EntryID, &r.d.Quantity, &r.given, &r.createdAt, &r.updatedAt}
}

func (r *dispensingRow) value() ledger.Dispensing {
	d := r.d
	d.DateGiven = parseDate(r.given)
	d.CreatedAt = parseTimestamp(r.createdAt)
	d.UpdatedAt = parseTimestamp(r.updatedAt)
	return d
}

func scanDispensing(row scanner) (ledger.Dispensing, error) {
	var r dispensingRow
	if err := row.Scan(r.dest()...); err != nil {
		return ledger.Dispensing{}, err
	}
	return r.value(), nil
}

func (ts *txStore) GetDispensing(ctx context.Context, id ledger.DispensingID) (*ledger.Dispensing, error) {
	d, err := scanDispensing(ts.q.QueryRowContext(ctx,
		"SELECT "+dispensingColumns+" FROM recipient_distributions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (ts *txStore) CreateDispensing(ctx context.Context, d *ledger.Dispensing) error {
	now := timestamp()
	res, err := ts.q.ExecContext(ctx, `
		INSERT INTO recipient_distributions
		(recipient_id, distribution_id, quantity, date_given, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.RecipientID, d.EntryID, d.Quantity, d.DateGiven.String(), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert dispensing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = ledger.DispensingID(id)
	d.CreatedAt = parseTimestamp(now)
	d.UpdatedAt = d.CreatedAt
	return nil
}

func (ts *txStore) UpdateDispensing(ctx context.Context, d ledger.Dispensing) error {
	return expectOne(ts.q.ExecContext(ctx, `
		UPDATE recipient_distributions
		SET recipient_id = ?, distribution_id = ?, quantity = ?, date_given = ?, updated_at = ?
		WHERE id = ?
	`, d.RecipientID, d.EntryID, d.Quantity, d.DateGiven.String(), timestamp(), d.ID))
}

func (ts *txStore) CountDispensings(ctx context.Context, entryID ledger.EntryID) (int, error) {
	var n int
	err := ts.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM recipient_distributions WHERE distribution_id = ?", entryID).Scan(&n)
	return n, err
}

func (ts *txStore) DeleteDispensing(ctx context.Context, id ledger.DispensingID) error {
	_, err := ts.q.ExecContext(ctx, "DELETE FROM recipient_distributions WHERE id = ?", id)
	return err
}
