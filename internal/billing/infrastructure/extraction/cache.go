package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
)

// Extractor reads invoice fields from a document.
type Extractor interface {
	Extract(ctx context.Context, doc billing.Document, schema billing.Schema) (map[string]any, error)
}

// CachedExtractor memoizes successful extractions by document content.
type CachedExtractor struct {
	next  Extractor
	cache *gocache.Cache
}

// NewCachedExtractor wraps next with a cache whose entries expire after ttl.
func NewCachedExtractor(next Extractor, ttl time.Duration) *CachedExtractor {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &CachedExtractor{next: next, cache: gocache.New(ttl, 10*time.Minute)}
}

// Extract returns the cached fields for an identical document, or delegates.
func (c *CachedExtractor) Extract(ctx context.Context, doc billing.Document, schema billing.Schema) (map[string]any, error) {
	digest, err := fileDigest(doc.Path)
	if err != nil {
		return c.next.Extract(ctx, doc, schema)
	}
	key := string(schema.Provider) + ":" + string(doc.Kind) + ":" + digest
	if cached, ok := c.cache.Get(key); ok {
		return copyFields(cached.(map[string]any)), nil
	}
	fields, err := c.next.Extract(ctx, doc, schema)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, copyFields(fields))
	return fields, nil
}

func fileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
