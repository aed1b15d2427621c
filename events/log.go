package events

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/stock-ledger/ledger"
)

// LogNotifier writes each event as a structured log line. It is the
// notifier used when no Kafka brokers are configured.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, e ledger.Event) error {
	fields := logrus.Fields{
		"event":    e.Type,
		"lot_id":   e.LotID,
		"quantity": e.Quantity,
		"stocks":   e.Stocks,
		"actor":    e.Actor,
	}
	if e.EntryID != 0 {
		fields["entry_id"] = e.EntryID
	}
	if e.RecipientID != 0 {
		fields["recipient_id"] = e.RecipientID
	}
	if e.DispensingID != 0 {
		fields["dispensing_id"] = e.DispensingID
	}
	n.Logger.WithFields(fields).Info("stock event")
	return nil
}
