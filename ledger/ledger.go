/*
ledger.go - Ledger service: transaction boundary, retries, events

PURPOSE:
  Ledger is the only entry point that mutates stock. Every public mutation
  follows the same shape:

    authorize actor ─▶ WithTx(read ─▶ validate ─▶ write) ─▶ log ─▶ publish

  The closure passed to mutate returns the events to publish. Events are
  only published after the transaction commits, so a rolled-back mutation
  never produces one.

RETRIES:
  A conditional write that matches no row returns ErrConcurrencyConflict.
  mutate reruns the whole closure (fresh reads included) up to the retry
  budget, then gives up with the conflict.

AMEND POLICY:
  reset     stocks = quantity on every amend (prior debits are discarded)
  preserve  stocks = quantity - distributed

SEE ALSO:
  - inventory.go, distribution.go, recipient.go, dispensing.go
  - store.go: TxStore contract
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// AMEND POLICY
// =============================================================================

type AmendPolicy string

const (
	AmendReset    AmendPolicy = "reset"
	AmendPreserve AmendPolicy = "preserve"
)

func ParseAmendPolicy(s string) (AmendPolicy, error) {
	switch p := AmendPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AmendReset, nil
	case AmendReset, AmendPreserve:
		return p, nil
	}
	return "", fmt.Errorf("unknown amend policy %q (want reset or preserve)", s)
}

// =============================================================================
// LEDGER
// =============================================================================

const DefaultRetryBudget = 3

type Ledger struct {
	repo     Repository
	log      logrus.FieldLogger
	notifier Notifier
	amend    AmendPolicy
	retries  int
	now      func() time.Time
}

type Option func(*Ledger)

func WithLogger(l logrus.FieldLogger) Option {
	return func(lg *Ledger) { lg.log = l }
}

func WithNotifier(n Notifier) Option {
	return func(lg *Ledger) { lg.notifier = n }
}

func WithAmendPolicy(p AmendPolicy) Option {
	return func(lg *Ledger) { lg.amend = p }
}

// WithRetryBudget sets how many times a conflicting mutation is attempted.
// Values below 1 mean a single attempt.
func WithRetryBudget(n int) Option {
	return func(lg *Ledger) { lg.retries = n }
}

func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

func New(repo Repository, opts ...Option) *Ledger {
	discard := logrus.New()
	discard.Out = io.Discard
	lg := &Ledger{
		repo:     repo,
		log:      discard,
		notifier: NopNotifier{},
		amend:    AmendReset,
		retries:  DefaultRetryBudget,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(lg)
	}
	if lg.retries < 1 {
		lg.retries = 1
	}
	return lg
}

func (l *Ledger) AmendPolicy() AmendPolicy { return l.amend }

// Queries exposes read-only listings for reports.
func (l *Ledger) Queries() QueryStore { return l.repo }

// =============================================================================
// MUTATION PIPELINE
// =============================================================================

// authorize refuses writes by non-admin actors. Public mutations call it
// before validating their input.
func (l *Ledger) authorize(actor Actor, op string) error {
	if err := actor.authorize(op); err != nil {
		l.log.WithFields(logrus.Fields{"op": op, "actor": actor.String()}).WithError(err).Warn("mutation refused")
		return err
	}
	return nil
}

// mutate runs fn in a transaction on behalf of actor. fn may be called more
// than once, so it must not keep state across calls.
func (l *Ledger) mutate(ctx context.Context, actor Actor, op string, fn func(Store) ([]Event, error)) error {
	if err := l.authorize(actor, op); err != nil {
		return err
	}
	entry := l.log.WithFields(logrus.Fields{"op": op, "actor": actor.String()})

	var events []Event
	var err error
	for attempt := 1; attempt <= l.retries; attempt++ {
		err = l.repo.WithTx(ctx, func(s Store) error {
			var txErr error
			events, txErr = fn(s)
			return txErr
		})
		if err == nil || !IsRetryable(err) {
			break
		}
		entry.WithField("attempt", attempt).Debug("conflict, retrying")
	}
	if err != nil {
		if IsClientError(err) || IsNotFound(err) {
			entry.WithError(err).Info("mutation rejected")
		} else {
			entry.WithError(err).Error("mutation failed")
		}
		return err
	}

	at := l.now().UTC()
	for _, e := range events {
		e.Actor = actor.String()
		e.At = at
		entry.WithFields(logrus.Fields{
			"event":    e.Type,
			"lot_id":   e.LotID,
			"entry_id": e.EntryID,
			"quantity": e.Quantity,
			"stocks":   e.Stocks,
		}).Info("committed")
		if perr := l.notifier.Notify(ctx, e); perr != nil {
			entry.WithError(perr).WithField("event", e.Type).Warn("event not delivered")
		}
	}
	return nil
}

// wrapStore annotates store errors that are not already ledger kinds.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrNotFound, ErrInsufficientStock, ErrValidation,
		ErrConcurrencyConflict, ErrHasDependents, ErrDuplicateRecipient} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
