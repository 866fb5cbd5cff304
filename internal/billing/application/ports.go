package application

import (
	"context"
	"time"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

// FieldExtractor reads invoice fields out of a downloaded document.
type FieldExtractor interface {
	Extract(ctx context.Context, doc billing.Document, schema billing.Schema) (map[string]any, error)
}

// Query selects the invoices a portal search returns.
type Query struct {
	Accounts []string
	From     string
	To       string
}

// Row is one line of the portal result table. Fields are keyed by schema
// field name plus "cup" and "download_selector".
type Row struct {
	Fields           map[string]string
	Documents        map[billing.DocumentKind]string
	DownloadFailures map[billing.DocumentKind]string
}

// Portal is the browser automation collaborator.
type Portal interface {
	Login(ctx context.Context) error
	Search(ctx context.Context, query Query) ([]Row, error)
	Close() error
}

// Ledger decides whether an invoice was already processed.
type Ledger interface {
	IsProcessed(ctx context.Context, provider billing.Provider, accountCode, invoiceNumber string) (time.Time, bool)
	MarkProcessed(ctx context.Context, provider billing.Provider, accountCode, invoiceNumber string)
}

// Sink receives finalized records.
type Sink interface {
	Write(ctx context.Context, inv *billing.Invoice) error
}

// NamedSink labels a Sink in logs and metrics.
type NamedSink struct {
	Name string
	Sink Sink
}

// Observer receives pipeline measurements.
type Observer interface {
	ObserveRecord(provider, result string)
	ObserveExtraction(extractor, result string, elapsed time.Duration)
	ObserveSinkError(sink string)
}
