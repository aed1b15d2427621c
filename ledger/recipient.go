package ledger

import (
	"context"
	"errors"
	"strings"
)

// =============================================================================
// RECIPIENTS
// =============================================================================

var genders = map[string]bool{"Male": true, "Female": true, "Other": true}

type RecipientInput struct {
	FullName  string
	Birthdate Date
	Barangay  string
	Gender    string // optional on lookup, required on edit
}

func (in *RecipientInput) Validate() error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Barangay = strings.TrimSpace(in.Barangay)
	in.Gender = strings.TrimSpace(in.Gender)
	switch {
	case in.FullName == "":
		return invalid("full_name", "is required")
	case in.Birthdate.IsZero():
		return invalid("birthdate", "is required")
	case in.Barangay == "":
		return invalid("barangay", "is required")
	case in.Gender != "" && !genders[in.Gender]:
		return invalid("gender", "must be one of Male, Female, Other")
	}
	return nil
}

func (in RecipientInput) Key() RecipientKey {
	return RecipientKey{FullName: in.FullName, Birthdate: in.Birthdate, Barangay: in.Barangay}
}

// findOrCreateRecipient resolves the recipient by identity tuple. An existing
// recipient gets its gender overwritten when in.Gender is set.
func findOrCreateRecipient(ctx context.Context, s Store, in RecipientInput) (*Recipient, error) {
	r, err := s.FindRecipient(ctx, in.Key())
	if err != nil {
		return nil, wrapStore("find recipient", err)
	}
	if r == nil {
		r = &Recipient{FullName: in.FullName, Birthdate: in.Birthdate, Barangay: in.Barangay, Gender: in.Gender}
		if err := s.CreateRecipient(ctx, r); err != nil {
			return nil, wrapStore("create recipient", err)
		}
		return r, nil
	}
	if in.Gender != "" && in.Gender != r.Gender {
		r.Gender = in.Gender
		if err := s.UpdateRecipient(ctx, *r); err != nil {
			return nil, wrapStore("update recipient", err)
		}
	}
	return r, nil
}

// overwriteRecipient replaces every field of r, gender included. A clash
// with another recipient's tuple is reported as a validation error.
func overwriteRecipient(ctx context.Context, s Store, r *Recipient, in RecipientInput) error {
	r.FullName = in.FullName
	r.Birthdate = in.Birthdate
	r.Barangay = in.Barangay
	r.Gender = in.Gender
	err := s.UpdateRecipient(ctx, *r)
	if errors.Is(err, ErrDuplicateRecipient) {
		return invalid("full_name", "another recipient already has this name, birthdate and barangay")
	}
	return wrapStore("update recipient", err)
}

// FindOrCreateRecipient returns the recipient with the same name, birthdate
// and barangay, creating it when none exists.
func (l *Ledger) FindOrCreateRecipient(ctx context.Context, actor Actor, in RecipientInput) (*Recipient, error) {
	if err := l.authorize(actor, "find or create recipient"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var result Recipient
	err := l.mutate(ctx, actor, "find or create recipient", func(s Store) ([]Event, error) {
		r, err := findOrCreateRecipient(ctx, s, in)
		if err != nil {
			return nil, err
		}
		result = *r
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Recipient returns a recipient with their dispensing history, newest first.
func (l *Ledger) Recipient(ctx context.Context, id RecipientID) (*RecipientDetail, error) {
	var r *Recipient
	err := l.repo.WithTx(ctx, func(s Store) error {
		var err error
		r, err = s.GetRecipient(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrapStore("get recipient", err)
	}
	if r == nil {
		return nil, notFound("recipient", int64(id))
	}
	history, err := l.repo.ListDispensings(ctx, DispensingFilter{RecipientID: id})
	if err != nil {
		return nil, wrapStore("list dispensings", err)
	}
	return &RecipientDetail{Recipient: *r, Dispensings: history}, nil
}

func (l *Ledger) ListRecipients(ctx context.Context, f RecipientFilter) ([]Recipient, error) {
	return l.repo.ListRecipients(ctx, f)
}
