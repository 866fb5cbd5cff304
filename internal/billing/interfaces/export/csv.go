package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

// CSVSink appends records to facturas_<provider>.csv.
type CSVSink struct {
	path   string
	schema billing.Schema
	mu     sync.Mutex
}

// NewCSVSink prepares the export directory.
func NewCSVSink(dir string, provider billing.Provider) (*CSVSink, error) {
	if dir == "" {
		return nil, errors.New("export: empty csv directory")
	}
	schema, err := billing.SchemaFor(provider)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSVSink{
		path:   filepath.Join(dir, fmt.Sprintf("facturas_%s.csv", provider)),
		schema: schema,
	}, nil
}

// Path returns the export file.
func (s *CSVSink) Path() string {
	return s.path
}

// Write appends inv. The header is written when the file is empty.
func (s *CSVSink) Write(_ context.Context, inv *billing.Invoice) error {
	if inv == nil {
		return errors.New("export: nil invoice")
	}
	if inv.Provider != s.schema.Provider {
		return fmt.Errorf("export: %s record in %s csv", inv.Provider, s.schema.Provider)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	if info.Size() == 0 {
		if err := writer.Write(s.schema.Header()); err != nil {
			return err
		}
	}
	if err := writer.Write(s.schema.Row(inv)); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Sync()
}
