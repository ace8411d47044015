package resolve

// coordKey is an exact coordinate pair as reported by the backend
type coordKey struct {
	lat, lon float64
}

// Cache memoizes resolved stops by their queried coordinates for one run.
// It is not safe for concurrent use.
type Cache struct {
	entries map[coordKey]Stop
	hits    int
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[coordKey]Stop)}
}

// Get returns the cached stop for (lat, lon)
func (c *Cache) Get(lat, lon float64) (Stop, bool) {
	s, ok := c.entries[coordKey{lat, lon}]
	if ok {
		c.hits++
	}
	return s, ok
}

// Put stores a resolved stop under (lat, lon)
func (c *Cache) Put(lat, lon float64, s Stop) {
	c.entries[coordKey{lat, lon}] = s
}

// Len returns the number of cached coordinate pairs
func (c *Cache) Len() int {
	return len(c.entries)
}

// Hits returns how many lookups were answered from the cache
func (c *Cache) Hits() int {
	return c.hits
}
