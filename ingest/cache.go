package ingest

// Cache memoizes lookups performed while resolving one batch. Records in a
// batch frequently reference the same sources and concepts, so the first
// lookup pays for the rest.
//
// Each batch task owns its own cache; nothing is shared across concurrent
// batches and no locking is needed.
type Cache struct {
	entries map[string]any
}

// NewCache creates an empty per-batch cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// Put replaces the memoized value for key. Callers use it after writing a
// record so later lookups in the same batch see the write, not the memoized
// absence.
func (c *Cache) Put(key string, value any) {
	c.entries[key] = value
}

// Lookup returns the memoized value for key, calling load on first use.
// Absent results are memoized too, so a missing reference is resolved against
// storage only once per batch.
func Lookup[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	if v, ok := c.entries[key]; ok {
		return v.(T), nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	c.entries[key] = v
	return v, nil
}
