package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	ledger "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/domain"
)

const defaultTable = "processed_invoices"

// Dialect selects the SQL flavour of the backing database.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// Store is a database/sql implementation of the ledger store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// NewStore constructs a store.
func NewStore(db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, errors.New("ledger sql store: nil db")
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("ledger sql store: unsupported dialect %q", dialect)
	}
	return &Store{db: db, dialect: dialect, table: defaultTable}, nil
}

// Load returns every entry of a provider.
func (s *Store) Load(ctx context.Context, provider billing.Provider) (map[ledger.Key]time.Time, error) {
	query := s.bind(fmt.Sprintf(`
SELECT account_code, invoice_number, processed_at
FROM %s
WHERE provider = $1`, s.table))
	rows, err := s.db.QueryContext(ctx, query, string(provider))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(map[ledger.Key]time.Time)
	for rows.Next() {
		var (
			account, invoice string
			raw              any
		)
		if err := rows.Scan(&account, &invoice, &raw); err != nil {
			return nil, err
		}
		key, err := ledger.NewKey(account, invoice)
		if err != nil {
			continue
		}
		table[key] = scanTime(raw)
	}
	return table, rows.Err()
}

// Insert records an entry; existing keys are left untouched.
func (s *Store) Insert(ctx context.Context, entry ledger.Entry) error {
	query := s.bind(fmt.Sprintf(`
INSERT INTO %s (provider, account_code, invoice_number, processed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (provider, account_code, invoice_number)
DO NOTHING`, s.table))
	_, err := s.db.ExecContext(ctx, query, string(entry.Provider), entry.Key.AccountCode, entry.Key.InvoiceNumber, entry.ProcessedAt.UTC())
	return err
}

// Touch upserts an entry with its new timestamp.
func (s *Store) Touch(ctx context.Context, entry ledger.Entry) error {
	query := s.bind(fmt.Sprintf(`
INSERT INTO %s (provider, account_code, invoice_number, processed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (provider, account_code, invoice_number)
DO UPDATE SET processed_at = excluded.processed_at`, s.table))
	_, err := s.db.ExecContext(ctx, query, string(entry.Provider), entry.Key.AccountCode, entry.Key.InvoiceNumber, entry.ProcessedAt.UTC())
	return err
}

func (s *Store) bind(query string) string {
	if s.dialect == DialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?")
	}
	return query
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	ledger.TimestampLayout,
}

func scanTime(raw any) time.Time {
	var text string
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
