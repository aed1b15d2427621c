package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// DASHBOARD
// =============================================================================

const unknown = "Unknown"

type Dashboard struct {
	ByGender        map[string]int           `json:"by_gender"`
	ByBarangay      map[string]int           `json:"by_barangay"`
	ByMedicine      map[string]int           `json:"by_medicine"`
	InventoryLevels []InventoryLevel         `json:"inventory_levels"`
	ExpiringSoon    map[string]ExpiringGroup `json:"expiring_soon"`
}

// InventoryLevel is the current balance of one lot, named "LOT - Brand (Generic)".
type InventoryLevel struct {
	Name   string `json:"name"`
	Stocks int    `json:"stocks"`
}

// ExpiringGroup collects the lots sharing one lot number.
type ExpiringGroup struct {
	Count     int                `json:"count"`
	Medicines []ExpiringMedicine `json:"medicines"`
}

type ExpiringMedicine struct {
	BrandName      string      `json:"brand_name"`
	GenericName    string      `json:"generic_name"`
	ExpirationDate ledger.Date `json:"expiration_date"`
	Stocks         int         `json:"stocks"`
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// Dashboard aggregates dispensed quantities and lot balances.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{
		ByGender:     make(map[string]int),
		ByBarangay:   make(map[string]int),
		ByMedicine:   make(map[string]int),
		ExpiringSoon: make(map[string]ExpiringGroup),
	}

	views, err := s.queries.ListDispensings(ctx, ledger.DispensingFilter{})
	if err != nil {
		return nil, fmt.Errorf("list dispensings: %w", err)
	}
	for _, v := range views {
		d.ByGender[orUnknown(v.Recipient.Gender)] += v.Quantity
		d.ByBarangay[orUnknown(v.Recipient.Barangay)] += v.Quantity
		d.ByMedicine[v.Lot.MedicineName()] += v.Quantity
	}

	lots, err := s.queries.ListLots(ctx, ledger.LotFilter{})
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	sort.SliceStable(lots, func(i, j int) bool { return lots[i].LotNumber < lots[j].LotNumber })
	d.InventoryLevels = make([]InventoryLevel, 0, len(lots))
	for _, l := range lots {
		d.InventoryLevels = append(d.InventoryLevels, InventoryLevel{Name: l.Label(), Stocks: l.Stocks})
	}

	horizon := ledger.DateOf(s.now()).AddMonths(s.expiryMonths)
	expiring, err := s.queries.ListLots(ctx, ledger.LotFilter{ExpiringBy: horizon})
	if err != nil {
		return nil, fmt.Errorf("list expiring lots: %w", err)
	}
	sort.SliceStable(expiring, func(i, j int) bool {
		return expiring[i].ExpirationDate.Before(expiring[j].ExpirationDate)
	})
	for _, l := range expiring {
		g := d.ExpiringSoon[l.LotNumber]
		g.Count++
		g.Medicines = append(g.Medicines, ExpiringMedicine{
			BrandName:      l.BrandName,
			GenericName:    l.GenericName,
			ExpirationDate: l.ExpirationDate,
			Stocks:         l.Stocks,
		})
		d.ExpiringSoon[l.LotNumber] = g
	}
	return d, nil
}
