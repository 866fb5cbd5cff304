package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/application"
	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

// Run statuses of the results document.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RecordView is one exported record.
type RecordView struct {
	Account      string         `json:"cup"`
	Invoice      string         `json:"numero_factura"`
	HasError     bool           `json:"error_RPA"`
	ErrorMessage string         `json:"msg_error_RPA"`
	Fields       map[string]any `json:"fields"`
}

// RunDocument is the task result written at the end of a run.
type RunDocument struct {
	RunID        string       `json:"run_id"`
	Provider     string       `json:"provider"`
	Status       string       `json:"status"`
	Error        string       `json:"error,omitempty"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Processed    int          `json:"processed"`
	Failed       int          `json:"failed"`
	Skipped      int          `json:"skipped"`
	Placeholders int          `json:"placeholders"`
	SinkErrors   int          `json:"sink_errors"`
	Records      []RecordView `json:"records"`
}

// NewRunDocument builds the results document. runErr is the fatal error of
// the run, if any.
func NewRunDocument(result application.RunResult, runErr error) RunDocument {
	doc := RunDocument{
		RunID:        result.RunID,
		Provider:     string(result.Provider),
		Status:       StatusCompleted,
		From:         result.Query.From,
		To:           result.Query.To,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		Processed:    result.Processed,
		Failed:       result.Failed,
		Skipped:      result.Skipped,
		Placeholders: result.Placeholders,
		SinkErrors:   result.SinkErrors,
		Records:      make([]RecordView, 0, len(result.Records)),
	}
	if runErr != nil {
		doc.Status = StatusFailed
		doc.Error = runErr.Error()
	}
	schema, err := billing.SchemaFor(result.Provider)
	for _, inv := range result.Records {
		view := RecordView{
			Account:      inv.AccountCode(),
			Invoice:      inv.Number(),
			HasError:     inv.HasError(),
			ErrorMessage: inv.ErrorMessage(),
			Fields:       make(map[string]any),
		}
		if err == nil {
			for _, field := range schema.Fields() {
				if value, ok := field.Value(inv); ok {
					view.Fields[field.Name] = value
				}
			}
		}
		doc.Records = append(doc.Records, view)
	}
	return doc
}

// ResultsWriter stores run documents as <dir>/<run_id>.json.
type ResultsWriter struct {
	dir string
}

// NewResultsWriter constructs a ResultsWriter.
func NewResultsWriter(dir string) (*ResultsWriter, error) {
	if dir == "" {
		return nil, errors.New("export: empty report directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ResultsWriter{dir: dir}, nil
}

// Write stores doc and returns its path.
func (w *ResultsWriter) Write(doc RunDocument) (string, error) {
	if doc.RunID == "" {
		return "", errors.New("export: run document without id")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, doc.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}
