package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/application"
	ledger "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/infrastructure/memory"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	current := c.now
	c.now = c.now.Add(time.Hour)
	return current
}

type failingStore struct{}

func (failingStore) Load(context.Context, billing.Provider) (map[ledger.Key]time.Time, error) {
	return nil, errors.New("disk gone")
}

func (failingStore) Insert(context.Context, ledger.Entry) error { return errors.New("disk gone") }

func (failingStore) Touch(context.Context, ledger.Entry) error { return errors.New("disk gone") }

type countingObserver struct {
	ops []string
}

func (o *countingObserver) ObserveLedgerError(op string) { o.ops = append(o.ops, op) }

func newClock() *stepClock {
	return &stepClock{now: time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)}
}

func TestMarkProcessedKeepsTimestampWithoutReprocess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	run, err := application.NewRun(store, false, application.WithClock(newClock()))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}

	run.MarkProcessed(ctx, billing.ProviderEndesa, "ES0031", "F-1")
	first, ok := run.IsProcessed(ctx, billing.ProviderEndesa, "ES0031", "F-1")
	if !ok {
		t.Fatalf("expected invoice to be processed")
	}
	run.MarkProcessed(ctx, billing.ProviderEndesa, "ES0031", "F-1")
	second, _ := run.IsProcessed(ctx, billing.ProviderEndesa, "ES0031", "F-1")
	if !second.Equal(first) {
		t.Fatalf("timestamp changed: %s -> %s", first, second)
	}
	stored, _ := store.Get(billing.ProviderEndesa, ledger.Key{AccountCode: "ES0031", InvoiceNumber: "F-1"})
	if !stored.Equal(first) {
		t.Fatalf("store timestamp %s, want %s", stored, first)
	}
}

func TestMarkProcessedRefreshesTimestampOnReprocess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	key := ledger.Key{AccountCode: "ES0031", InvoiceNumber: "F-1"}
	run, err := application.NewRun(store, true, application.WithClock(newClock()))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}

	run.MarkProcessed(ctx, billing.ProviderEnel, key.AccountCode, key.InvoiceNumber)
	first, ok := store.Get(billing.ProviderEnel, key)
	if !ok {
		t.Fatalf("expected stored entry")
	}
	if _, ok := run.IsProcessed(ctx, billing.ProviderEnel, key.AccountCode, key.InvoiceNumber); ok {
		t.Fatalf("reprocess run must report every invoice as unprocessed")
	}
	run.MarkProcessed(ctx, billing.ProviderEnel, key.AccountCode, key.InvoiceNumber)
	second, _ := store.Get(billing.ProviderEnel, key)
	if !second.After(first) {
		t.Fatalf("expected refreshed timestamp, got %s after %s", second, first)
	}
}

func TestTableLoadedOncePerRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_ = store.Insert(ctx, ledger.Entry{Provider: billing.ProviderEndesa, Key: ledger.Key{AccountCode: "ES1", InvoiceNumber: "A"}, ProcessedAt: time.Now()})
	run, _ := application.NewRun(store, false)

	for i := 0; i < 3; i++ {
		if _, ok := run.IsProcessed(ctx, billing.ProviderEndesa, "ES1", "A"); !ok {
			t.Fatalf("expected stored invoice to be processed")
		}
	}
	run.MarkProcessed(ctx, billing.ProviderEndesa, "ES1", "B")
	if _, ok := run.IsProcessed(ctx, billing.ProviderEndesa, "ES1", "B"); !ok {
		t.Fatalf("expected new invoice to be visible in the run cache")
	}
	if store.Loads != 1 {
		t.Fatalf("expected a single load, got %d", store.Loads)
	}
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	observer := &countingObserver{}
	run, err := application.NewRun(failingStore{}, false, application.WithErrorObserver(observer))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	if _, ok := run.IsProcessed(ctx, billing.ProviderEndesa, "ES1", "A"); ok {
		t.Fatalf("failed load must behave as an empty table")
	}
	run.MarkProcessed(ctx, billing.ProviderEndesa, "ES1", "A")
	if len(observer.ops) != 2 || observer.ops[0] != "load" || observer.ops[1] != "insert" {
		t.Fatalf("unexpected observed ops %v", observer.ops)
	}
}

func TestInvalidKeyIsIgnored(t *testing.T) {
	store := memory.NewStore()
	run, _ := application.NewRun(store, false)
	run.MarkProcessed(context.Background(), billing.ProviderEndesa, "ES1", "  ")
	if store.Loads != 0 {
		t.Fatalf("invalid key must not touch the store")
	}
}
