package ordens

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Cache garda o último dataset normalizado de cada orixe (ruta do ficheiro).
// Unha entrada por orixe: se o contido ou as opcións cambian (CacheKey distinta),
// a entrada substitúese. Os uploads non pasan por aquí.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

type cacheEntry struct {
	key string
	ds  *Dataset
}

func NewCache() *Cache {
	return &Cache{entries: map[string]cacheEntry{}}
}

// CacheKey é o SHA-256 do contido máis as opcións de lectura.
func CacheKey(content []byte, opts LoadOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%t|%d|%s|", opts.Format, opts.Encoding, opts.Delimiter, opts.DecimalComma, opts.SkipRows, opts.Sheet)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Get devolve o dataset de source só se foi gardado coa mesma key.
func (c *Cache) Get(source, key string) (*Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[source]
	if ok && e.key == key {
		c.hits++
		return e.ds, true
	}
	c.misses++
	return nil, false
}

// Put garda ds para source e descarta o que houbese antes.
func (c *Cache) Put(source, key string, ds *Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[source] = cacheEntry{key: key, ds: ds}
}

// Len é o número de entradas.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats devolve acertos e fallos desde o arranque.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
