package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes summaries to the process log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, s RunSummary) error {
	n.logger.Info().
		Str("event", "run_summary").
		Str("run_id", s.RunID).
		Str("provider", s.Provider).
		Str("status", s.Status).
		Int("processed", s.Processed).
		Int("failed", s.Failed).
		Int("skipped", s.Skipped).
		Int("placeholders", s.Placeholders).
		Msg(formatSummary(s))
	return nil
}
