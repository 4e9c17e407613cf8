// Package cache keeps prepared statements for generated SQL. Statement text
// depends only on the row type, the predicate shape and the dialect, so a
// bounded set of statements serves an application.
package cache

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the number of statements kept when no capacity is given.
const DefaultCapacity = 1000

// Preparer is satisfied by *sql.DB and *sql.Conn.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// StmtCache stores prepared statements with LRU eviction. A statement
// evicted while in use is closed by its last release.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry struct {
	query   string
	stmt    *sql.Stmt
	refs    int
	evicted bool
}

// New creates a cache holding up to capacity statements.
func New(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Prepare returns the statement for query, preparing it with p on a miss.
// The caller must call release once it no longer uses the statement,
// including any rows read from it.
func (sc *StmtCache) Prepare(ctx context.Context, p Preparer, query string) (stmt *sql.Stmt, release func(), err error) {
	if e := sc.acquire(query); e != nil {
		sc.hits.Add(1)
		return e.stmt, sc.releaser(e), nil
	}
	sc.misses.Add(1)

	prepared, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	e := sc.add(query, prepared)
	return e.stmt, sc.releaser(e), nil
}

func (sc *StmtCache) acquire(query string) *entry {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	elem, ok := sc.items[query]
	if !ok {
		return nil
	}
	sc.lru.MoveToFront(elem)
	e := elem.Value.(*entry)
	e.refs++
	return e
}

// add stores a freshly prepared statement. When another caller prepared the
// same query first, its entry wins and stmt is closed.
func (sc *StmtCache) add(query string, stmt *sql.Stmt) *entry {
	var closing []*sql.Stmt
	defer func() {
		for _, s := range closing {
			_ = s.Close()
		}
	}()

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if elem, ok := sc.items[query]; ok {
		sc.lru.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.refs++
		closing = append(closing, stmt)
		return e
	}

	for sc.lru.Len() >= sc.capacity {
		if s := sc.evict(sc.lru.Back()); s != nil {
			closing = append(closing, s)
		}
	}
	e := &entry{query: query, stmt: stmt, refs: 1}
	sc.items[query] = sc.lru.PushFront(e)
	return e
}

// evict unlinks elem and returns its statement when nobody holds it.
// Must be called with mu held.
func (sc *StmtCache) evict(elem *list.Element) *sql.Stmt {
	e := elem.Value.(*entry)
	sc.lru.Remove(elem)
	delete(sc.items, e.query)
	sc.evictions.Add(1)

	e.evicted = true
	if e.refs == 0 {
		return e.stmt
	}
	return nil
}

func (sc *StmtCache) releaser(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			sc.mu.Lock()
			e.refs--
			closeNow := e.evicted && e.refs == 0
			sc.mu.Unlock()
			if closeNow {
				_ = e.stmt.Close()
			}
		})
	}
}

// Clear evicts every statement.
func (sc *StmtCache) Clear() {
	var closing []*sql.Stmt

	sc.mu.Lock()
	for sc.lru.Len() > 0 {
		if s := sc.evict(sc.lru.Back()); s != nil {
			closing = append(closing, s)
		}
	}
	sc.mu.Unlock()

	for _, s := range closing {
		_ = s.Close()
	}
}

// Stats holds cache performance metrics.
type Stats struct {
	Size      int     // statements currently cached
	Capacity  int     // maximum number of statements
	Hits      uint64  // lookups served from the cache
	Misses    uint64  // lookups that prepared a statement
	Evictions uint64  // statements dropped for capacity or by Clear
	HitRate   float64 // hits / (hits + misses)
}

// Stats returns cache statistics.
func (sc *StmtCache) Stats() Stats {
	sc.mu.Lock()
	size := sc.lru.Len()
	sc.mu.Unlock()

	hits, misses := sc.hits.Load(), sc.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Size:      size,
		Capacity:  sc.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: sc.evictions.Load(),
		HitRate:   rate,
	}
}
