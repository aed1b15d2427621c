/*
dispensing.go - Recipient dispensing ledger

PURPOSE:
  Final debit of a distribution entry when stock reaches a person.

EDIT BRANCHES:
  same entry    diff = new - old
                  diff > 0: requires diff <= entry.Stocks, then debits diff
                  diff < 0: credits |diff| back to the entry
  entry A → B   requires new <= B.Stocks, then credits old to A and debits
                new from B

  Capacity is checked before anything is written, and the whole edit runs in
  one transaction, so a refused edit leaves both entries untouched.

  The recipient row is shared by all of that person's dispensings. Every
  successful edit overwrites it with the submitted fields.
*/
package ledger

import "context"

type DispenseInput struct {
	Recipient RecipientInput
	EntryID   EntryID
	Quantity  int
	DateGiven Date
}

// DispenseExistingInput dispenses to a recipient that is already on record.
type DispenseExistingInput struct {
	RecipientID RecipientID
	EntryID     EntryID
	Quantity    int
	DateGiven   Date
}

type EditInput struct {
	Recipient RecipientInput
	EntryID   EntryID
	Quantity  int
	DateGiven Date
}

func validateHandout(entryID EntryID, quantity int, given Date) error {
	switch {
	case entryID == 0:
		return invalid("distribution_id", "is required")
	case quantity < 1:
		return invalid("quantity", "must be at least 1")
	case given.IsZero():
		return invalid("date_given", "is required")
	}
	return nil
}

func entryShort(e *DistributionEntry, requested int) error {
	return &InsufficientStockError{
		Layer: LayerDistribution, ID: int64(e.ID),
		Available: e.Stocks, Requested: requested,
	}
}

func loadEntry(ctx context.Context, s Store, id EntryID) (*DistributionEntry, error) {
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, wrapStore("get entry", err)
	}
	if e == nil {
		return nil, notFound("distribution entry", int64(id))
	}
	return e, nil
}

// handOut debits entryID and records the dispensing for r.
func handOut(ctx context.Context, s Store, r *Recipient, entryID EntryID, quantity int, given Date) (*Dispensing, *DistributionEntry, error) {
	entry, err := loadEntry(ctx, s, entryID)
	if err != nil {
		return nil, nil, err
	}
	if quantity > entry.Stocks {
		return nil, nil, entryShort(entry, quantity)
	}
	if err := s.AdjustEntry(ctx, entry.ID, 0, -quantity); err != nil {
		return nil, nil, wrapStore("debit entry", err)
	}
	entry.Stocks -= quantity
	d := &Dispensing{RecipientID: r.ID, EntryID: entry.ID, Quantity: quantity, DateGiven: given}
	if err := s.CreateDispensing(ctx, d); err != nil {
		return nil, nil, wrapStore("create dispensing", err)
	}
	return d, entry, nil
}

func dispensedEvent(d *Dispensing, e *DistributionEntry) Event {
	return Event{
		Type: EventDispensingCreated, LotID: e.LotID, EntryID: e.ID,
		RecipientID: d.RecipientID, DispensingID: d.ID,
		Quantity: d.Quantity, Stocks: e.Stocks,
	}
}

// Dispense resolves (or creates) the recipient and hands out quantity from
// the entry.
func (l *Ledger) Dispense(ctx context.Context, actor Actor, in DispenseInput) (*Dispensing, error) {
	if err := l.authorize(actor, "dispense"); err != nil {
		return nil, err
	}
	if err := in.Recipient.Validate(); err != nil {
		return nil, err
	}
	if err := validateHandout(in.EntryID, in.Quantity, in.DateGiven); err != nil {
		return nil, err
	}
	var result Dispensing
	err := l.mutate(ctx, actor, "dispense", func(s Store) ([]Event, error) {
		r, err := findOrCreateRecipient(ctx, s, in.Recipient)
		if err != nil {
			return nil, err
		}
		d, entry, err := handOut(ctx, s, r, in.EntryID, in.Quantity, in.DateGiven)
		if err != nil {
			return nil, err
		}
		result = *d
		return []Event{dispensedEvent(d, entry)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DispenseToRecipient hands out stock to an existing recipient.
func (l *Ledger) DispenseToRecipient(ctx context.Context, actor Actor, in DispenseExistingInput) (*Dispensing, error) {
	if err := l.authorize(actor, "dispense"); err != nil {
		return nil, err
	}
	if in.RecipientID == 0 {
		return nil, invalid("recipient_id", "is required")
	}
	if err := validateHandout(in.EntryID, in.Quantity, in.DateGiven); err != nil {
		return nil, err
	}
	var result Dispensing
	err := l.mutate(ctx, actor, "dispense", func(s Store) ([]Event, error) {
		r, err := s.GetRecipient(ctx, in.RecipientID)
		if err != nil {
			return nil, wrapStore("get recipient", err)
		}
		if r == nil {
			return nil, notFound("recipient", int64(in.RecipientID))
		}
		d, entry, err := handOut(ctx, s, r, in.EntryID, in.Quantity, in.DateGiven)
		if err != nil {
			return nil, err
		}
		result = *d
		return []Event{dispensedEvent(d, entry)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// EditDispensing changes quantity, entry, date and recipient of a dispensing.
// Every recipient field is overwritten, so gender is required.
func (l *Ledger) EditDispensing(ctx context.Context, actor Actor, id DispensingID, in EditInput) (*Dispensing, error) {
	if err := l.authorize(actor, "edit dispensing"); err != nil {
		return nil, err
	}
	if err := in.Recipient.Validate(); err != nil {
		return nil, err
	}
	if in.Recipient.Gender == "" {
		return nil, invalid("gender", "is required")
	}
	if err := validateHandout(in.EntryID, in.Quantity, in.DateGiven); err != nil {
		return nil, err
	}
	var result Dispensing
	err := l.mutate(ctx, actor, "edit dispensing", func(s Store) ([]Event, error) {
		d, err := s.GetDispensing(ctx, id)
		if err != nil {
			return nil, wrapStore("get dispensing", err)
		}
		if d == nil {
			return nil, notFound("dispensing", int64(id))
		}
		r, err := s.GetRecipient(ctx, d.RecipientID)
		if err != nil {
			return nil, wrapStore("get recipient", err)
		}
		if r == nil {
			return nil, notFound("recipient", int64(d.RecipientID))
		}

		var events []Event
		if in.EntryID == d.EntryID {
			entry, err := loadEntry(ctx, s, d.EntryID)
			if err != nil {
				return nil, err
			}
			diff := in.Quantity - d.Quantity
			if diff > 0 && diff > entry.Stocks {
				return nil, entryShort(entry, diff)
			}
			if diff != 0 {
				if err := s.AdjustEntry(ctx, entry.ID, 0, -diff); err != nil {
					return nil, wrapStore("adjust entry", err)
				}
				entry.Stocks -= diff
			}
			events = append(events, editedEvent(d, entry, in.Quantity))
		} else {
			from, err := loadEntry(ctx, s, d.EntryID)
			if err != nil {
				return nil, err
			}
			to, err := loadEntry(ctx, s, in.EntryID)
			if err != nil {
				return nil, err
			}
			if in.Quantity > to.Stocks {
				return nil, entryShort(to, in.Quantity)
			}
			if err := s.AdjustEntry(ctx, from.ID, 0, d.Quantity); err != nil {
				return nil, wrapStore("restore entry", err)
			}
			from.Stocks += d.Quantity
			if err := s.AdjustEntry(ctx, to.ID, 0, -in.Quantity); err != nil {
				return nil, wrapStore("debit entry", err)
			}
			to.Stocks -= in.Quantity
			events = append(events, editedEvent(d, from, -d.Quantity), editedEvent(d, to, in.Quantity))
		}

		if err := overwriteRecipient(ctx, s, r, in.Recipient); err != nil {
			return nil, err
		}
		d.EntryID = in.EntryID
		d.Quantity = in.Quantity
		d.DateGiven = in.DateGiven
		if err := s.UpdateDispensing(ctx, *d); err != nil {
			return nil, wrapStore("update dispensing", err)
		}
		result = *d
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func editedEvent(d *Dispensing, e *DistributionEntry, quantity int) Event {
	return Event{
		Type: EventDispensingEdited, LotID: e.LotID, EntryID: e.ID,
		RecipientID: d.RecipientID, DispensingID: d.ID,
		Quantity: quantity, Stocks: e.Stocks,
	}
}

// DeleteDispensing removes the record. The entry keeps its current balance.
func (l *Ledger) DeleteDispensing(ctx context.Context, actor Actor, id DispensingID) error {
	return l.mutate(ctx, actor, "delete dispensing", func(s Store) ([]Event, error) {
		d, err := s.GetDispensing(ctx, id)
		if err != nil {
			return nil, wrapStore("get dispensing", err)
		}
		if d == nil {
			return nil, notFound("dispensing", int64(id))
		}
		entry, err := loadEntry(ctx, s, d.EntryID)
		if err != nil {
			return nil, err
		}
		if err := s.DeleteDispensing(ctx, id); err != nil {
			return nil, wrapStore("delete dispensing", err)
		}
		return []Event{{
			Type: EventDispensingDeleted, LotID: entry.LotID, EntryID: entry.ID,
			RecipientID: d.RecipientID, DispensingID: id,
			Quantity: d.Quantity, Stocks: entry.Stocks,
		}}, nil
	})
}

// Dispensing returns one dispensing joined with its recipient, entry and lot.
func (l *Ledger) Dispensing(ctx context.Context, id DispensingID) (*DispensingView, error) {
	var view *DispensingView
	err := l.repo.WithTx(ctx, func(s Store) error {
		d, err := s.GetDispensing(ctx, id)
		if err != nil || d == nil {
			return err
		}
		r, err := s.GetRecipient(ctx, d.RecipientID)
		if err != nil || r == nil {
			return err
		}
		e, err := s.GetEntry(ctx, d.EntryID)
		if err != nil || e == nil {
			return err
		}
		lot, err := s.GetLot(ctx, e.LotID)
		if err != nil || lot == nil {
			return err
		}
		view = &DispensingView{Dispensing: *d, Recipient: *r, Entry: *e, Lot: *lot}
		return nil
	})
	if err != nil {
		return nil, wrapStore("get dispensing", err)
	}
	if view == nil {
		return nil, notFound("dispensing", int64(id))
	}
	return view, nil
}

func (l *Ledger) ListDispensings(ctx context.Context, f DispensingFilter) ([]DispensingView, error) {
	return l.repo.ListDispensings(ctx, f)
}
