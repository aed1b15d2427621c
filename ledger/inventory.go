package ledger

import (
	"context"
	"strings"
)

// =============================================================================
// INVENTORY LEDGER - Receipts and lot stock
// =============================================================================

// LotInput carries the descriptive fields of a lot for Receive and Amend.
type LotInput struct {
	DateIn         Date
	BrandName      string
	GenericName    string
	Utils          string
	LotNumber      string
	Quantity       int
	ExpirationDate Date
	StockType      StockType // empty means LGU Procured
}

// Validate checks the input and fills defaults.
func (in *LotInput) Validate() error {
	in.BrandName = strings.TrimSpace(in.BrandName)
	in.GenericName = strings.TrimSpace(in.GenericName)
	in.Utils = strings.TrimSpace(in.Utils)
	in.LotNumber = strings.TrimSpace(in.LotNumber)
	switch {
	case in.DateIn.IsZero():
		return invalid("date_in", "is required")
	case in.BrandName == "":
		return invalid("brand_name", "is required")
	case in.GenericName == "":
		return invalid("generic_name", "is required")
	case in.Utils == "":
		return invalid("utils", "is required")
	case in.Quantity < 1:
		return invalid("quantity", "must be at least 1")
	case in.ExpirationDate.IsZero():
		return invalid("expiration_date", "is required")
	case in.ExpirationDate.Before(in.DateIn):
		return invalid("expiration_date", "must not be before date_in")
	}
	if in.StockType == "" {
		in.StockType = StockLGUProcured
	}
	if !in.StockType.Valid() {
		return invalid("stock_type", "must be one of LGU Procured, DOH, Trust Funds, Donations")
	}
	return nil
}

func (in LotInput) apply(lot *InventoryLot) {
	lot.DateIn = in.DateIn
	lot.BrandName = in.BrandName
	lot.GenericName = in.GenericName
	lot.Utils = in.Utils
	lot.LotNumber = in.LotNumber
	lot.Quantity = in.Quantity
	lot.ExpirationDate = in.ExpirationDate
	lot.StockType = in.StockType
}

// Receive records a new lot with all of its quantity available.
func (l *Ledger) Receive(ctx context.Context, actor Actor, in LotInput) (*InventoryLot, error) {
	if err := l.authorize(actor, "receive"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var created InventoryLot
	err := l.mutate(ctx, actor, "receive", func(s Store) ([]Event, error) {
		lot := InventoryLot{}
		in.apply(&lot)
		lot.Stocks = lot.Quantity
		if err := s.CreateLot(ctx, &lot); err != nil {
			return nil, wrapStore("create lot", err)
		}
		created = lot
		return []Event{{Type: EventLotReceived, LotID: lot.ID, Quantity: lot.Quantity, Stocks: lot.Stocks}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Amend overwrites the descriptive fields of a lot. Stocks follow the
// ledger's AmendPolicy.
func (l *Ledger) Amend(ctx context.Context, actor Actor, id LotID, in LotInput) (*InventoryLot, error) {
	if err := l.authorize(actor, "amend"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var amended InventoryLot
	err := l.mutate(ctx, actor, "amend", func(s Store) ([]Event, error) {
		lot, err := s.GetLot(ctx, id)
		if err != nil {
			return nil, wrapStore("get lot", err)
		}
		if lot == nil {
			return nil, notFound("inventory lot", int64(id))
		}
		distributed := lot.Distributed()
		in.apply(lot)
		switch l.amend {
		case AmendPreserve:
			if in.Quantity < distributed {
				return nil, &InsufficientStockError{
					Layer: LayerInventory, ID: int64(id),
					Available: in.Quantity, Requested: distributed,
				}
			}
			lot.Stocks = in.Quantity - distributed
		default:
			lot.Stocks = in.Quantity
		}
		if err := s.UpdateLot(ctx, *lot); err != nil {
			return nil, wrapStore("update lot", err)
		}
		amended = *lot
		return []Event{{Type: EventLotAmended, LotID: id, Quantity: lot.Quantity, Stocks: lot.Stocks}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &amended, nil
}

// debitLot removes amount from a lot inside the caller's transaction.
func debitLot(ctx context.Context, s Store, lot *InventoryLot, amount int) error {
	if amount > lot.Stocks {
		return &InsufficientStockError{
			Layer: LayerInventory, ID: int64(lot.ID),
			Available: lot.Stocks, Requested: amount,
		}
	}
	if err := s.DebitLot(ctx, lot.ID, amount); err != nil {
		return wrapStore("debit lot", err)
	}
	lot.Stocks -= amount
	return nil
}

// DeleteLot removes a lot that has never been distributed.
func (l *Ledger) DeleteLot(ctx context.Context, actor Actor, id LotID) error {
	return l.mutate(ctx, actor, "delete lot", func(s Store) ([]Event, error) {
		lot, err := s.GetLot(ctx, id)
		if err != nil {
			return nil, wrapStore("get lot", err)
		}
		if lot == nil {
			return nil, notFound("inventory lot", int64(id))
		}
		n, err := s.CountEntries(ctx, id)
		if err != nil {
			return nil, wrapStore("count entries", err)
		}
		if n > 0 {
			return nil, &DependentsError{Entity: "inventory lot", ID: int64(id), Count: n}
		}
		if err := s.DeleteLot(ctx, id); err != nil {
			return nil, wrapStore("delete lot", err)
		}
		return []Event{{Type: EventLotDeleted, LotID: id, Quantity: lot.Quantity, Stocks: lot.Stocks}}, nil
	})
}

// Lot returns one lot or a NotFoundError.
func (l *Ledger) Lot(ctx context.Context, id LotID) (*InventoryLot, error) {
	var lot *InventoryLot
	err := l.repo.WithTx(ctx, func(s Store) error {
		var err error
		lot, err = s.GetLot(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrapStore("get lot", err)
	}
	if lot == nil {
		return nil, notFound("inventory lot", int64(id))
	}
	return lot, nil
}

func (l *Ledger) ListLots(ctx context.Context, f LotFilter) ([]InventoryLot, error) {
	return l.repo.ListLots(ctx, f)
}
