package backend

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"
)

// DefaultMaxHandles is the handle cache capacity used when none is given.
const DefaultMaxHandles = 32

// Cache is a scoped cache of open backend handles with LRU eviction.
// Handles are opened lazily on first use and closed when evicted or when
// the cache itself is closed. All reads through a cached handle are
// serialized per handle, since most native format readers are not
// reentrant.
type Cache struct {
	open Opener
	max  int

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	closed  bool
}

type cacheEntry struct {
	locator string
	handle  *Handle
}

// Handle wraps a Fetcher with a lock serializing access to it.
type Handle struct {
	mu sync.Mutex
	f  Fetcher
}

// ReadCoordinate reads a dimension's label array under the handle lock.
func (h *Handle) ReadCoordinate(dim string) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.f.ReadCoordinate(dim)
}

// ReadBlock reads a sample block under the handle lock.
func (h *Handle) ReadBlock(variable string, start, count []int) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.f.ReadBlock(variable, start, count)
}

// NewCache creates a handle cache around open. max <= 0 selects
// DefaultMaxHandles.
func NewCache(open Opener, max int) *Cache {
	if max <= 0 {
		max = DefaultMaxHandles
	}
	return &Cache{
		open:    open,
		max:     max,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the cached handle for locator, opening it if necessary and
// evicting the least recently used handle when the cache is full.
func (c *Cache) Get(locator string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("handle cache is closed")
	}
	if el, ok := c.entries[locator]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*cacheEntry).handle, nil
	}
	f, err := c.open(locator)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", locator)
	}
	el := c.lru.PushFront(&cacheEntry{locator: locator, handle: &Handle{f: f}})
	c.entries[locator] = el
	for c.lru.Len() > c.max {
		c.evictOldest()
	}
	return el.Value.(*cacheEntry).handle, nil
}

// evictOldest closes and drops the LRU tail. Caller holds c.mu.
func (c *Cache) evictOldest() {
	el := c.lru.Back()
	if el == nil {
		return
	}
	ent := el.Value.(*cacheEntry)
	c.lru.Remove(el)
	delete(c.entries, ent.locator)
	ent.handle.mu.Lock()
	ent.handle.f.Close()
	ent.handle.mu.Unlock()
}

// Len returns the number of open handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close closes every open handle. The cache cannot be used afterwards.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var firstErr error
	for el := c.lru.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*cacheEntry)
		if err := ent.handle.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.lru.Init()
	c.entries = make(map[string]*list.Element)
	return firstErr
}
