package ledger

import (
	"context"
	"strings"
)

// =============================================================================
// DISTRIBUTION LEDGER - Allocations from lots to channels
// =============================================================================

type AllocateInput struct {
	LotID    LotID
	Date     Date
	Channel  string
	Quantity int
	Reason   string
}

func (in *AllocateInput) Validate() error {
	in.Channel = strings.TrimSpace(in.Channel)
	in.Reason = strings.TrimSpace(in.Reason)
	switch {
	case in.LotID == 0:
		return invalid("inventory_id", "is required")
	case in.Date.IsZero():
		return invalid("date_distribute", "is required")
	case in.Channel == "":
		return invalid("remarks", "is required")
	case in.Quantity < 1:
		return invalid("quantity", "must be at least 1")
	}
	return nil
}

// Allocate moves stock from a lot into the entry for (lot, date, channel).
// A repeat allocation with the same key grows the existing entry and keeps
// its original reason.
func (l *Ledger) Allocate(ctx context.Context, actor Actor, in AllocateInput) (*DistributionEntry, error) {
	if err := l.authorize(actor, "allocate"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var result DistributionEntry
	err := l.mutate(ctx, actor, "allocate", func(s Store) ([]Event, error) {
		lot, err := s.GetLot(ctx, in.LotID)
		if err != nil {
			return nil, wrapStore("get lot", err)
		}
		if lot == nil {
			return nil, notFound("inventory lot", int64(in.LotID))
		}
		if in.Quantity > lot.Stocks {
			return nil, &InsufficientStockError{
				Layer: LayerInventory, ID: int64(lot.ID),
				Available: lot.Stocks, Requested: in.Quantity,
			}
		}

		key := EntryKey{LotID: in.LotID, Date: in.Date, Channel: in.Channel}
		entry, err := s.FindEntry(ctx, key)
		if err != nil {
			return nil, wrapStore("find entry", err)
		}
		if entry != nil {
			if err := s.AdjustEntry(ctx, entry.ID, in.Quantity, in.Quantity); err != nil {
				return nil, wrapStore("merge entry", err)
			}
			entry.Quantity += in.Quantity
			entry.Stocks += in.Quantity
		} else {
			entry = &DistributionEntry{
				LotID:    in.LotID,
				Date:     in.Date,
				Channel:  in.Channel,
				Quantity: in.Quantity,
				Stocks:   in.Quantity,
				Reason:   in.Reason,
			}
			if err := s.CreateEntry(ctx, entry); err != nil {
				return nil, wrapStore("create entry", err)
			}
		}

		if err := debitLot(ctx, s, lot, in.Quantity); err != nil {
			return nil, err
		}
		result = *entry
		return []Event{{
			Type: EventDistributionAllocated, LotID: lot.ID, EntryID: entry.ID,
			Quantity: in.Quantity, Stocks: entry.Stocks,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteEntry removes an entry without returning its stock to the lot.
func (l *Ledger) DeleteEntry(ctx context.Context, actor Actor, id EntryID) error {
	return l.mutate(ctx, actor, "delete entry", func(s Store) ([]Event, error) {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return nil, wrapStore("get entry", err)
		}
		if entry == nil {
			return nil, notFound("distribution entry", int64(id))
		}
		n, err := s.CountDispensings(ctx, id)
		if err != nil {
			return nil, wrapStore("count dispensings", err)
		}
		if n > 0 {
			return nil, &DependentsError{Entity: "distribution entry", ID: int64(id), Count: n}
		}
		if err := s.DeleteEntry(ctx, id); err != nil {
			return nil, wrapStore("delete entry", err)
		}
		return []Event{{
			Type: EventDistributionDeleted, LotID: entry.LotID, EntryID: id,
			Quantity: entry.Quantity, Stocks: entry.Stocks,
		}}, nil
	})
}

// Entry returns one entry joined with its lot.
func (l *Ledger) Entry(ctx context.Context, id EntryID) (*EntryView, error) {
	var view *EntryView
	err := l.repo.WithTx(ctx, func(s Store) error {
		entry, err := s.GetEntry(ctx, id)
		if err != nil || entry == nil {
			return err
		}
		lot, err := s.GetLot(ctx, entry.LotID)
		if err != nil || lot == nil {
			return err
		}
		view = &EntryView{DistributionEntry: *entry, Lot: *lot}
		return nil
	})
	if err != nil {
		return nil, wrapStore("get entry", err)
	}
	if view == nil {
		return nil, notFound("distribution entry", int64(id))
	}
	return view, nil
}

func (l *Ledger) ListEntries(ctx context.Context, f EntryFilter) ([]EntryView, error) {
	return l.repo.ListEntries(ctx, f)
}

// Medicines lists entries on the pharmacy channel.
func (l *Ledger) Medicines(ctx context.Context, f EntryFilter) ([]EntryView, error) {
	f.Channel = ChannelPharmacy
	return l.repo.ListEntries(ctx, f)
}
