package notify

import (
	"context"

	"go.uber.org/multierr"
)

// MultiNotifier dispatches summaries to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier. Nil notifiers are ignored.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards summary to every notifier and combines their failures.
func (m *MultiNotifier) Notify(ctx context.Context, summary RunSummary) error {
	if m == nil {
		return nil
	}
	var errs error
	for _, notifier := range m.notifiers {
		if notifier != nil {
			errs = multierr.Append(errs, notifier.Notify(ctx, summary))
		}
	}
	return errs
}
