package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

// TimestampLayout is the persisted timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrInvalidKey is returned when an entry lacks account or invoice number.
var ErrInvalidKey = errors.New("ledger: invalid key")

// Key identifies an invoice within one provider's table.
type Key struct {
	AccountCode   string
	InvoiceNumber string
}

// NewKey trims and validates the key parts.
func NewKey(accountCode, invoiceNumber string) (Key, error) {
	key := Key{AccountCode: strings.TrimSpace(accountCode), InvoiceNumber: strings.TrimSpace(invoiceNumber)}
	if key.AccountCode == "" || key.InvoiceNumber == "" {
		return Key{}, ErrInvalidKey
	}
	return key, nil
}

// Entry is one processed invoice.
type Entry struct {
	Provider    billing.Provider
	Key         Key
	ProcessedAt time.Time
}

// Store persists the processed table of each provider.
type Store interface {
	// Load returns the whole table of a provider.
	Load(ctx context.Context, provider billing.Provider) (map[Key]time.Time, error)
	// Insert adds an entry; an existing key is left untouched.
	Insert(ctx context.Context, entry Entry) error
	// Touch replaces the timestamp of an entry, adding it when missing.
	Touch(ctx context.Context, entry Entry) error
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses the local wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }
