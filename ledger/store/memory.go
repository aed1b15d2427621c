// Package store provides in-process ledger.Repository implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	memoryState
}

type memoryState struct {
	lots        map[ledger.LotID]ledger.InventoryLot
	entries     map[ledger.EntryID]ledger.DistributionEntry
	recipients  map[ledger.RecipientID]ledger.Recipient
	dispensings map[ledger.DispensingID]ledger.Dispensing
	nextID      int64
}

func NewMemory() *Memory {
	return &Memory{memoryState: memoryState{
		lots:        make(map[ledger.LotID]ledger.InventoryLot),
		entries:     make(map[ledger.EntryID]ledger.DistributionEntry),
		recipients:  make(map[ledger.RecipientID]ledger.Recipient),
		dispensings: make(map[ledger.DispensingID]ledger.Dispensing),
	}}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memoryTx{state: &m.memoryState}); err != nil {
		m.memoryState = snapshot
		return err
	}
	return nil
}

func (m *Memory) snapshot() memoryState {
	s := memoryState{
		lots:        make(map[ledger.LotID]ledger.InventoryLot, len(m.lots)),
		entries:     make(map[ledger.EntryID]ledger.DistributionEntry, len(m.entries)),
		recipients:  make(map[ledger.RecipientID]ledger.Recipient, len(m.recipients)),
		dispensings: make(map[ledger.DispensingID]ledger.Dispensing, len(m.dispensings)),
		nextID:      m.nextID,
	}
	for k, v := range m.lots {
		s.lots[k] = v
	}
	for k, v := range m.entries {
		s.entries[k] = v
	}
	for k, v := range m.recipients {
		s.recipients[k] = v
	}
	for k, v := range m.dispensings {
		s.dispensings[k] = v
	}
	return s
}

// memoryTx writes straight into the parent state; WithTx holds the lock.
type memoryTx struct {
	state *memoryState
}

func (s *memoryState) id() int64 {
	s.nextID++
	return s.nextID
}

func now() time.Time { return time.Now().UTC() }

// =============================================================================
// LOTS
// =============================================================================

func (tx *memoryTx) CreateLot(_ context.Context, lot *ledger.InventoryLot) error {
	lot.ID = ledger.LotID(tx.state.id())
	lot.CreatedAt, lot.UpdatedAt = now(), now()
	tx.state.lots[lot.ID] = *lot
	return nil
}

func (tx *memoryTx) GetLot(_ context.Context, id ledger.LotID) (*ledger.InventoryLot, error) {
	lot, ok := tx.state.lots[id]
	if !ok {
		return nil, nil
	}
	return &lot, nil
}

func (tx *memoryTx) UpdateLot(_ context.Context, lot ledger.InventoryLot) error {
	old, ok := tx.state.lots[lot.ID]
	if !ok {
		return ledger.ErrConcurrencyConflict
	}
	lot.CreatedAt = old.CreatedAt
	lot.UpdatedAt = now()
	tx.state.lots[lot.ID] = lot
	return nil
}

func (tx *memoryTx) DebitLot(_ context.Context, id ledger.LotID, amount int) error {
	lot, ok := tx.state.lots[id]
	if !ok || lot.Stocks < amount {
		return ledger.ErrConcurrencyConflict
	}
	lot.Stocks -= amount
	lot.UpdatedAt = now()
	tx.state.lots[id] = lot
	return nil
}

func (tx *memoryTx) DeleteLot(_ context.Context, id ledger.LotID) error {
	delete(tx.state.lots, id)
	for eid, e := range tx.state.entries {
		if e.LotID == id {
			tx.deleteEntry(eid)
		}
	}
	return nil
}

// =============================================================================
// DISTRIBUTION ENTRIES
// =============================================================================

func (tx *memoryTx) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.DistributionEntry, error) {
	e, ok := tx.state.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (tx *memoryTx) FindEntry(_ context.Context, key ledger.EntryKey) (*ledger.DistributionEntry, error) {
	for _, e := range tx.state.entries {
		if e.Key() == key {
			return &e, nil
		}
	}
	return nil, nil
}

func (tx *memoryTx) CreateEntry(ctx context.Context, entry *ledger.DistributionEntry) error {
	if existing, _ := tx.FindEntry(ctx, entry.Key()); existing != nil {
		return ledger.ErrConcurrencyConflict
	}
	if _, ok := tx.state.lots[entry.LotID]; !ok {
		return ledger.ErrConcurrencyConflict
	}
	entry.ID = ledger.EntryID(tx.state.id())
	entry.CreatedAt, entry.UpdatedAt = now(), now()
	tx.state.entries[entry.ID] = *entry
	return nil
}

func (tx *memoryTx) AdjustEntry(_ context.Context, id ledger.EntryID, quantityDelta, stocksDelta int) error {
	e, ok := tx.state.entries[id]
	if !ok || e.Stocks+stocksDelta < 0 || e.Stocks+stocksDelta > e.Quantity+quantityDelta {
		return ledger.ErrConcurrencyConflict
	}
	e.Quantity += quantityDelta
	e.Stocks += stocksDelta
	e.UpdatedAt = now()
	tx.state.entries[id] = e
	return nil
}

func (tx *memoryTx) CountEntries(_ context.Context, lotID ledger.LotID) (int, error) {
	n := 0
	for _, e := range tx.state.entries {
		if e.LotID == lotID {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	tx.deleteEntry(id)
	return nil
}

func (tx *memoryTx) deleteEntry(id ledger.EntryID) {
	delete(tx.state.entries, id)
	for did, d := range tx.state.dispensings {
		if d.EntryID == id {
			delete(tx.state.dispensings, did)
		}
	}
}

// =============================================================================
// RECIPIENTS
// =============================================================================

func (tx *memoryTx) GetRecipient(_ context.Context, id ledger.RecipientID) (*ledger.Recipient, error) {
	r, ok := tx.state.recipients[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (tx *memoryTx) FindRecipient(_ context.Context, key ledger.RecipientKey) (*ledger.Recipient, error) {
	for _, r := range tx.state.recipients {
		if r.Key() == key {
			return &r, nil
		}
	}
	return nil, nil
}

func (tx *memoryTx) CreateRecipient(ctx context.Context, r *ledger.Recipient) error {
	if existing, _ := tx.FindRecipient(ctx, r.Key()); existing != nil {
		return ledger.ErrDuplicateRecipient
	}
	r.ID = ledger.RecipientID(tx.state.id())
	r.CreatedAt, r.UpdatedAt = now(), now()
	tx.state.recipients[r.ID] = *r
	return nil
}

func (tx *memoryTx) UpdateRecipient(ctx context.Context, r ledger.Recipient) error {
	old, ok := tx.state.recipients[r.ID]
	if !ok {
		return ledger.ErrConcurrencyConflict
	}
	if existing, _ := tx.FindRecipient(ctx, r.Key()); existing != nil && existing.ID != r.ID {
		return ledger.ErrDuplicateRecipient
	}
	r.CreatedAt = old.CreatedAt
	r.UpdatedAt = now()
	tx.state.recipients[r.ID] = r
	return nil
}

// =============================================================================
// DISPENSINGS
// =============================================================================

func (tx *memoryTx) GetDispensing(_ context.Context, id ledger.DispensingID) (*ledger.Dispensing, error) {
	d, ok := tx.state.dispensings[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (tx *memoryTx) CreateDispensing(_ context.Context, d *ledger.Dispensing) error {
	if _, ok := tx.state.entries[d.EntryID]; !ok {
		return ledger.ErrConcurrencyConflict
	}
	if _, ok := tx.state.recipients[d.RecipientID]; !ok {
		return ledger.ErrConcurrencyConflict
	}
	d.ID = ledger.DispensingID(tx.state.id())
	d.CreatedAt, d.UpdatedAt = now(), now()
	tx.state.dispensings[d.ID] = *d
	return nil
}

func (tx *memoryTx) UpdateDispensing(_ context.Context, d ledger.Dispensing) error {
	old, ok := tx.state.dispensings[d.ID]
	if !ok {
		return ledger.ErrConcurrencyConflict
	}
	d.CreatedAt = old.CreatedAt
	d.UpdatedAt = now()
	tx.state.dispensings[d.ID] = d
	return nil
}

func (tx *memoryTx) CountDispensings(_ context.Context, entryID ledger.EntryID) (int, error) {
	n := 0
	for _, d := range tx.state.dispensings {
		if d.EntryID == entryID {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) DeleteDispensing(_ context.Context, id ledger.DispensingID) error {
	delete(tx.state.dispensings, id)
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (m *Memory) ListLots(_ context.Context, f ledger.LotFilter) ([]ledger.InventoryLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.InventoryLot
	for _, lot := range m.lots {
		if f.Match(lot) {
			result = append(result, lot)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *Memory) ListEntries(_ context.Context, f ledger.EntryFilter) ([]ledger.EntryView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.EntryView
	for _, e := range m.entries {
		v := ledger.EntryView{DistributionEntry: e, Lot: m.lots[e.LotID]}
		if f.Match(v) {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *Memory) ListRecipients(_ context.Context, f ledger.RecipientFilter) ([]ledger.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Recipient
	for _, r := range m.recipients {
		if !f.Match(r) {
			continue
		}
		if f.HasMedicineFilter() && !m.receivedMatching(r.ID, f) {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *Memory) receivedMatching(id ledger.RecipientID, f ledger.RecipientFilter) bool {
	for _, d := range m.dispensings {
		if d.RecipientID != id {
			continue
		}
		if f.MatchLot(m.lots[m.entries[d.EntryID].LotID]) {
			return true
		}
	}
	return false
}

func (m *Memory) ListDispensings(_ context.Context, f ledger.DispensingFilter) ([]ledger.DispensingView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.DispensingView
	for _, d := range m.dispensings {
		e := m.entries[d.EntryID]
		v := ledger.DispensingView{
			Dispensing: d,
			Recipient:  m.recipients[d.RecipientID],
			Entry:      e,
			Lot:        m.lots[e.LotID],
		}
		if f.Match(v) {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}
