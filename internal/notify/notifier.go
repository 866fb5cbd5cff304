package notify

import "context"

// RunSummary is the payload sent when a run finishes.
type RunSummary struct {
	RunID        string            `json:"run_id"`
	Provider     string            `json:"provider"`
	Status       string            `json:"status"`
	From         string            `json:"from"`
	To           string            `json:"to"`
	Processed    int               `json:"processed"`
	Failed       int               `json:"failed"`
	Skipped      int               `json:"skipped"`
	Placeholders int               `json:"placeholders"`
	Error        string            `json:"error,omitempty"`
	ReportPath   string            `json:"report_path,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Notifier sends run summaries.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
}
