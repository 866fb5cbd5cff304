package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

type countingExtractor struct {
	calls  int
	fields map[string]any
	err    error
}

func (c *countingExtractor) Extract(context.Context, billing.Document, billing.Schema) (map[string]any, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return copyFields(c.fields), nil
}

func TestCachedExtractorReusesIdenticalDocuments(t *testing.T) {
	first := writeFile(t, "a.xml", "<a/>")
	second := writeFile(t, "b.xml", "<a/>")
	next := &countingExtractor{fields: map[string]any{"tarifa": "2.0TD"}}
	cached := NewCachedExtractor(next, time.Hour)
	schema := endesaSchema(t)

	got, err := cached.Extract(context.Background(), billing.Document{Kind: billing.DocumentXML, Path: first}, schema)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	got["tarifa"] = "mutated"

	again, err := cached.Extract(context.Background(), billing.Document{Kind: billing.DocumentXML, Path: second}, schema)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected one delegate call, got %d", next.calls)
	}
	if again["tarifa"] != "2.0TD" {
		t.Fatalf("cached value leaked mutation: %#v", again)
	}
}

func TestCachedExtractorSkipsFailures(t *testing.T) {
	path := writeFile(t, "a.pdf", "%PDF")
	next := &countingExtractor{err: errors.New("boom")}
	cached := NewCachedExtractor(next, 0)

	for i := 0; i < 2; i++ {
		if _, err := cached.Extract(context.Background(), billing.Document{Kind: billing.DocumentPDF, Path: path}, endesaSchema(t)); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("failures must not be cached, calls = %d", next.calls)
	}
}
