package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// QUERY STORE (ledger.QueryStore interface)
// =============================================================================

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) eq(col string, v string) {
	if v != "" {
		w.add(col+" = ?", v)
	}
}

// like is a case-insensitive substring match, Unicode included.
func (w *where) like(col string, v string) {
	if v != "" {
		w.add("instr(fold("+col+"), fold(?)) > 0", v)
	}
}

// period mirrors ledger.Period.Match on a YYYY-MM-DD expression.
func (w *where) period(expr string, p ledger.Period) {
	switch {
	case !p.From.IsZero() || !p.To.IsZero():
		if !p.From.IsZero() {
			w.add(expr+" >= ?", p.From.String())
		}
		if !p.To.IsZero() {
			w.add(expr+" <= ?", p.To.String())
		}
	case !p.On.IsZero():
		w.add(expr+" = ?", p.On.String())
	case p.Month != 0 && p.Year != 0:
		w.add("substr("+expr+", 1, 7) = ?", fmt.Sprintf("%04d-%02d", p.Year, p.Month))
	case p.Year != 0:
		w.add("substr("+expr+", 1, 4) = ?", fmt.Sprintf("%04d", p.Year))
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (s *Store) ListLots(ctx context.Context, f ledger.LotFilter) ([]ledger.InventoryLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w where
	w.eq("lot_number", f.LotNumber)
	w.eq("stock_type", string(f.StockType))
	if !f.ExpiringBy.IsZero() {
		w.add("expiration_date <= ?", f.ExpiringBy.String())
	}
	w.period("date_in", f.Received)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+lotColumns+" FROM inventories"+w.String()+" ORDER BY id DESC", w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var result []ledger.InventoryLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, lot)
	}
	return result, rows.Err()
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (s *Store) ListEntries(ctx context.Context, f ledger.EntryFilter) ([]ledger.EntryView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w where
	if f.LotID != 0 {
		w.add("d.inventory_id = ?", f.LotID)
	}
	w.eq("d.remarks", f.Channel)
	w.eq("i.stock_type", string(f.StockType))
	w.period("d.date_distribute", f.Distributed)

	query := "SELECT " + prefixed("d", entryColumns) + ", " + prefixed("i", lotColumns) +
		" FROM distributions d JOIN inventories i ON i.id = d.inventory_id" +
		w.String() + " ORDER BY d.id DESC"
	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var result []ledger.EntryView
	for rows.Next() {
		v, err := scanEntryView(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *Store) ListRecipients(ctx context.Context, f ledger.RecipientFilter) ([]ledger.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w where
	w.like("r.full_name", f.Search)
	w.eq("r.barangay", f.Barangay)
	w.eq("r.gender", f.Gender)
	w.period("substr(r.created_at, 1, 10)", f.Created)
	if f.HasMedicineFilter() {
		var med where
		med.like("i.brand_name", f.BrandName)
		med.like("i.generic_name", f.GenericName)
		med.like("i.lot_number", f.LotNumber)
		w.add(`EXISTS (SELECT 1 FROM recipient_distributions rd
			JOIN distributions d ON d.id = rd.distribution_id
			JOIN inventories i ON i.id = d.inventory_id`+
			med.String()+" AND rd.recipient_id = r.id)", med.args...)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+prefixed("r", recipientColumns)+" FROM recipients r"+w.String()+" ORDER BY r.id DESC",
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	var result []ledger.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) ListDispensings(ctx context.Context, f ledger.DispensingFilter) ([]ledger.DispensingView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w where
	if f.RecipientID != 0 {
		w.add("rd.recipient_id = ?", f.RecipientID)
	}
	if f.EntryID != 0 {
		w.add("rd.distribution_id = ?", f.EntryID)
	}
	w.like("i.brand_name", f.BrandName)
	w.like("i.generic_name", f.GenericName)
	w.like("i.lot_number", f.LotNumber)
	w.eq("r.barangay", f.Barangay)
	w.eq("r.gender", f.Gender)
	w.period("rd.date_given", f.Given)

	query := "SELECT " + prefixed("rd", dispensingColumns) + ", " +
		prefixed("r", recipientColumns) + ", " +
		prefixed("d", entryColumns) + ", " +
		prefixed("i", lotColumns) + `
		FROM recipient_distributions rd
		JOIN recipients r ON r.id = rd.recipient_id
		JOIN distributions d ON d.id = rd.distribution_id
		JOIN inventories i ON i.id = d.inventory_id` +
		w.String() + " ORDER BY rd.id DESC"
	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispensings: %w", err)
	}
	defer rows.Close()

	var result []ledger.DispensingView
	for rows.Next() {
		v, err := scanDispensingView(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// =============================================================================
// JOINED ROW SCANNERS
// =============================================================================

func concat(dests ...[]any) []any {
	var all []any
	for _, d := range dests {
		all = append(all, d...)
	}
	return all
}

func scanEntryView(row scanner) (ledger.EntryView, error) {
	var e entryRow
	var l lotRow
	if err := row.Scan(concat(e.dest(), l.dest())...); err != nil {
		return ledger.EntryView{}, err
	}
	return ledger.EntryView{DistributionEntry: e.value(), Lot: l.value()}, nil
}

func scanDispensingView(row scanner) (ledger.DispensingView, error) {
	var d dispensingRow
	var r recipientRow
	var e entryRow
	var l lotRow
	if err := row.Scan(concat(d.dest(), r.dest(), e.dest(), l.dest())...); err != nil {
		return ledger.DispensingView{}, err
	}
	return ledger.DispensingView{
		Dispensing: d.value(),
		Recipient:  r.value(),
		Entry:      e.value(),
		Lot:        l.value(),
	}, nil
}
