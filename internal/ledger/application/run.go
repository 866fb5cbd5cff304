package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	ledger "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/domain"
)

// ErrorObserver counts swallowed store failures.
type ErrorObserver interface {
	ObserveLedgerError(op string)
}

// Run owns the processed-invoice state of one run. The reprocess flag is
// fixed at construction; each provider table is loaded on first use and
// cached until a rewrite invalidates it.
type Run struct {
	store    ledger.Store
	force    bool
	clock    ledger.Clock
	logger   zerolog.Logger
	observer ErrorObserver

	mu    sync.Mutex
	cache map[billing.Provider]map[ledger.Key]time.Time
}

// Option configures a Run.
type Option func(*Run)

// WithClock overrides the clock.
func WithClock(clock ledger.Clock) Option {
	return func(r *Run) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Run) {
		r.logger = logger
	}
}

// WithErrorObserver reports swallowed store errors.
func WithErrorObserver(observer ErrorObserver) Option {
	return func(r *Run) {
		r.observer = observer
	}
}

// NewRun constructs the ledger context of a run.
func NewRun(store ledger.Store, forceReprocess bool, opts ...Option) (*Run, error) {
	if store == nil {
		return nil, errors.New("ledger run: nil store")
	}
	r := &Run{
		store:  store,
		force:  forceReprocess,
		clock:  ledger.SystemClock{},
		logger: zerolog.Nop(),
		cache:  make(map[billing.Provider]map[ledger.Key]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ForceReprocess reports the run's reprocess flag.
func (r *Run) ForceReprocess() bool {
	return r.force
}

// IsProcessed returns the stored timestamp of an invoice. It always reports
// absent when the run reprocesses everything.
func (r *Run) IsProcessed(ctx context.Context, provider billing.Provider, accountCode, invoiceNumber string) (time.Time, bool) {
	if r.force {
		return time.Time{}, false
	}
	key, err := ledger.NewKey(accountCode, invoiceNumber)
	if err != nil {
		return time.Time{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.table(ctx, provider)[key]
	return at, ok
}

// MarkProcessed records an invoice. New keys are inserted with the current
// time; existing keys are refreshed only when the run reprocesses.
func (r *Run) MarkProcessed(ctx context.Context, provider billing.Provider, accountCode, invoiceNumber string) {
	key, err := ledger.NewKey(accountCode, invoiceNumber)
	if err != nil {
		r.logger.Warn().Str("event", "ledger_mark_skipped").Str("provider", string(provider)).
			Str("cup", accountCode).Str("invoice", invoiceNumber).Msg("invalid ledger key")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.table(ctx, provider)
	now := r.clock.Now()
	entry := ledger.Entry{Provider: provider, Key: key, ProcessedAt: now}

	if _, exists := table[key]; exists {
		if !r.force {
			return
		}
		if err := r.store.Touch(ctx, entry); err != nil {
			r.storeFailed("touch", provider, err)
			return
		}
		delete(r.cache, provider)
		return
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		r.storeFailed("insert", provider, err)
	}
	table[key] = now
}

func (r *Run) table(ctx context.Context, provider billing.Provider) map[ledger.Key]time.Time {
	if table, ok := r.cache[provider]; ok {
		return table
	}
	table, err := r.store.Load(ctx, provider)
	if err != nil {
		r.storeFailed("load", provider, err)
		table = nil
	}
	if table == nil {
		table = make(map[ledger.Key]time.Time)
	}
	r.cache[provider] = table
	return table
}

func (r *Run) storeFailed(op string, provider billing.Provider, err error) {
	r.logger.Error().Err(err).Str("event", "ledger_store_error").Str("op", op).
		Str("provider", string(provider)).Msg("ledger store failure ignored")
	if r.observer != nil {
		r.observer.ObserveLedgerError(op)
	}
}
