package remote

// fifoCache is a small bounded cache keyed by string. When a new key would
// exceed capacity, the oldest-inserted key is evicted — strict FIFO on
// insertion order, not LRU: a lookup never refreshes a key's position.
type fifoCache[V any] struct {
	capacity int
	order    []string
	items    map[string]V
}

func newFIFOCache[V any](capacity int) *fifoCache[V] {
	return &fifoCache[V]{
		capacity: capacity,
		items:    make(map[string]V, capacity),
	}
}

func (c *fifoCache[V]) get(key string) (V, bool) {
	v, ok := c.items[key]
	return v, ok
}

func (c *fifoCache[V]) put(key string, value V) {
	if _, exists := c.items[key]; exists {
		c.items[key] = value
		return
	}
	if len(c.items) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.order = append(c.order, key)
	c.items[key] = value
}

func (c *fifoCache[V]) len() int {
	return len(c.items)
}
