package generate

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// DefaultCacheSize is the number of responses kept when no size is given.
const DefaultCacheSize = 256

// Cache remembers provider responses by model and prompt so re-exporting an
// unchanged diagram does not pay for the same generation twice.
type Cache struct {
	entries *lru.Cache[string, string]
}

// NewCache creates a cache holding at most size responses.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// CacheKey is the blake3 hash of model and prompt.
func CacheKey(model, prompt string) string {
	hasher := blake3.New()
	_, _ = hasher.Write([]byte(model))
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write([]byte(prompt))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get returns the cached response for model and prompt.
func (c *Cache) Get(model, prompt string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.entries.Get(CacheKey(model, prompt))
}

// Add stores content for model and prompt.
func (c *Cache) Add(model, prompt, content string) {
	if c == nil {
		return
	}
	c.entries.Add(CacheKey(model, prompt), content)
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
