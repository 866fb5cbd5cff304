package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	ledger "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/domain"
)

const (
	columnAccount   = "CUP"
	columnInvoice   = "numero_factura"
	columnTimestamp = "fecha_hora"
	delimiter       = ';'
)

var header = []string{columnAccount, columnInvoice, columnTimestamp}

// Store keeps one semicolon separated file per provider:
// <dir>/procesados_<provider>.csv.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore constructs a file store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("ledger csv store: empty dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger csv store: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the file backing a provider.
func (s *Store) Path(provider billing.Provider) string {
	return filepath.Join(s.dir, fmt.Sprintf("procesados_%s.csv", provider))
}

// Load reads the whole provider file. A missing file is an empty table.
func (s *Store) Load(ctx context.Context, provider billing.Provider) (map[ledger.Key]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll(provider)
	if err != nil {
		return nil, err
	}
	table := make(map[ledger.Key]time.Time, len(records))
	for _, rec := range records {
		key, err := ledger.NewKey(rec[0], rec[1])
		if err != nil {
			continue
		}
		at, _ := time.ParseInLocation(ledger.TimestampLayout, strings.TrimSpace(rec[2]), time.Local)
		table[key] = at
	}
	return table, nil
}

// Insert appends a row, writing the header when the file is new.
func (s *Store) Insert(ctx context.Context, entry ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.Path(entry.Provider), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	writer.Comma = delimiter
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writer.Write(row(entry)); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// Touch rewrites the whole file with the entry's new timestamp. The new
// content goes to a temp file in the same directory which then replaces the
// original, so readers never see a partial file.
func (s *Store) Touch(ctx context.Context, entry ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll(entry.Provider)
	if err != nil {
		return err
	}
	found := false
	for i, rec := range records {
		if strings.TrimSpace(rec[0]) == entry.Key.AccountCode && strings.TrimSpace(rec[1]) == entry.Key.InvoiceNumber {
			records[i][2] = entry.ProcessedAt.Format(ledger.TimestampLayout)
			found = true
		}
	}
	if !found {
		records = append(records, row(entry))
	}

	tmp, err := os.CreateTemp(s.dir, "procesados_*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	writer.Comma = delimiter
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := writer.WriteAll(records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.Path(entry.Provider))
}

// readAll returns the data rows as [account, invoice, timestamp], mapping
// columns by header name.
func (s *Store) readAll(provider billing.Provider) ([][]string, error) {
	file, err := os.Open(s.Path(provider))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for i, name := range head {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	accountIdx, ok1 := cols[columnAccount]
	invoiceIdx, ok2 := cols[columnInvoice]
	timeIdx, ok3 := cols[columnTimestamp]
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("ledger csv store: unexpected header %v", head)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, []string{field(rec, accountIdx), field(rec, invoiceIdx), field(rec, timeIdx)})
	}
	return records, nil
}

func field(rec []string, idx int) string {
	if idx < len(rec) {
		return rec[idx]
	}
	return ""
}

func row(entry ledger.Entry) []string {
	return []string{entry.Key.AccountCode, entry.Key.InvoiceNumber, entry.ProcessedAt.Format(ledger.TimestampLayout)}
}
