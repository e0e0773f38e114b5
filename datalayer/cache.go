// Package datalayer is the client side of the gallery: a keyed cache that
// de-duplicates concurrent reads and revalidates on mutation, an HTTP client
// for the gallery server, and a Gallery that ties the two together.
package datalayer

import (
	"context"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const defaultMaxEntries = 128

// Fetcher loads the payload stored at key.
type Fetcher func(ctx context.Context, key string) ([]byte, error)

// Config tunes the cache.
type Config struct {
	// MaxEntries bounds the number of cached keys (LRU).
	MaxEntries int
	// MaxAge is how long a payload counts as fresh. Zero keeps payloads fresh
	// until the key is revalidated.
	MaxAge time.Duration
}

// Entry is a snapshot of one cached key. Data must not be modified.
type Entry struct {
	// Data is the last payload fetched successfully.
	Data []byte
	// Err is the *ClientFetchError of the latest fetch, nil if it succeeded.
	Err error
	// Loading is true while the first fetch runs and no payload exists yet.
	Loading bool
	// Validating is true while any fetch for the key runs.
	Validating bool
	UpdatedAt  time.Time
}

type entry struct {
	data      []byte
	err       error
	updatedAt time.Time
	// fetched is set once any fetch of the current generation finished.
	fetched bool
	stale   bool
	pending bool
	// gen is a cache-wide unique generation, replaced by Revalidate; results
	// of older generations are dropped.
	gen uint64
}

func (e *entry) snapshot() Entry {
	return Entry{
		Data:       e.data,
		Err:        e.err,
		Loading:    e.pending && e.data == nil,
		Validating: e.pending,
		UpdatedAt:  e.updatedAt,
	}
}

// Cache maps addresses to in-flight or completed fetch results. Concurrent
// reads of one key share a single fetch.
type Cache struct {
	fetch  Fetcher
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	group   singleflight.Group
	// lastGen is never reused, so an evicted key cannot join an old flight.
	lastGen uint64
}

// NewCache creates a cache that loads missing keys with fetch.
func NewCache(fetch Fetcher, cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	entries, _ := lru.New[string, *entry](cfg.MaxEntries)
	return &Cache{
		fetch:   fetch,
		maxAge:  cfg.MaxAge,
		now:     time.Now,
		entries: entries,
	}
}

func (c *Cache) fresh(e *entry) bool {
	if !e.fetched || e.stale || e.err != nil {
		return false
	}
	return c.maxAge <= 0 || c.now().Sub(e.updatedAt) < c.maxAge
}

// nextGen returns a fresh generation. Callers hold c.mu.
func (c *Cache) nextGen() uint64 {
	c.lastGen++
	return c.lastGen
}

// lookup returns the entry for key, creating it when missing. Callers hold c.mu.
func (c *Cache) lookup(key string) *entry {
	e, ok := c.entries.Get(key)
	if !ok {
		e = &entry{gen: c.nextGen()}
		c.entries.Add(key, e)
	}
	return e
}

// Get returns the entry for key, fetching it unless a fresh payload is cached.
// A failed fetch is reported both as the returned error and in Entry.Err.
func (c *Cache) Get(ctx context.Context, key string) (Entry, error) {
	c.mu.Lock()
	e := c.lookup(key)
	if c.fresh(e) {
		snap := e.snapshot()
		c.mu.Unlock()
		return snap, nil
	}
	e.pending = true
	gen := e.gen
	c.mu.Unlock()

	return c.load(ctx, key, gen)
}

// Peek returns the current entry for key without fetching.
func (c *Cache) Peek(key string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(key)
	if !ok {
		return Entry{}
	}
	return e.snapshot()
}

// Revalidate marks the payload for key as stale and fetches it again. Reads
// that arrive while the re-fetch runs join it instead of starting their own.
// The stale payload stays visible through Peek until the re-fetch lands.
func (c *Cache) Revalidate(ctx context.Context, key string) (Entry, error) {
	c.mu.Lock()
	e := c.lookup(key)
	e.gen = c.nextGen()
	e.stale = true
	e.pending = true
	gen := e.gen
	c.mu.Unlock()

	return c.load(ctx, key, gen)
}

// load runs or joins the fetch of key for generation gen. The fetch outlives
// ctx so that other waiters still get the result; only this caller stops
// waiting when ctx ends.
func (c *Cache) load(ctx context.Context, key string, gen uint64) (Entry, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		// a flight for gen may have landed between the caller's check and now
		if snap, ok := c.landed(key, gen); ok {
			return snap, nil
		}
		data, err := c.fetch(fetchCtx, key)
		return c.store(key, gen, data, err), nil
	})

	select {
	case <-ctx.Done():
		return c.Peek(key), ctx.Err()
	case res := <-ch:
		snap := res.Val.(Entry)
		return snap, snap.Err
	}
}

func (c *Cache) landed(key string, gen uint64) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(key)
	if !ok || e.gen != gen || !c.fresh(e) {
		return Entry{}, false
	}
	e.pending = false
	return e.snapshot(), true
}

// store records a fetch result unless a newer generation has started.
func (c *Cache) store(key string, gen uint64, data []byte, err error) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fetchErr error
	if err != nil {
		fetchErr = asFetchError(key, err)
	}

	e, ok := c.entries.Peek(key)
	if !ok {
		e = &entry{gen: gen}
		c.entries.Add(key, e)
	}
	if e.gen != gen {
		// superseded: hand the result to this generation's waiters only
		return Entry{Data: data, Err: fetchErr, UpdatedAt: c.now()}
	}

	e.pending = false
	e.fetched = true
	e.err = fetchErr
	if err == nil {
		e.data = data
		e.stale = false
		e.updatedAt = c.now()
	}
	return e.snapshot()
}
