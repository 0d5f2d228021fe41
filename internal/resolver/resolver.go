// Package resolver maps datapoint ids and display names to metadata
// objects, with a short-lived cache in front of the store.
//
// Successful lookups are cached under both the canonical id and the
// display name so a follow-up request by either alias hits the cache.
// Object change events evict both aliases together, keeping the pair
// coherent.
package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oakhurst-automation/stategate/internal/store"
)

// ErrNotFound indicates the id or name matches no known object.
var ErrNotFound = errors.New("resolver: datapoint not found")

// defaultTTL bounds how stale a cached resolution may get when no object
// event arrives (e.g. the store was edited out of band).
const defaultTTL = 10 * time.Minute

// Resolved is the outcome of a successful lookup.
type Resolved struct {
	// ID is the canonical datapoint id.
	ID string

	// Name is the display name in the resolver's language, empty if the
	// object has none.
	Name string

	// Object is the metadata object. Never nil.
	Object *store.Object
}

// entry is one cached resolution with its paired alias key.
type entry struct {
	resolved Resolved
	pair     string
	expires  time.Time
}

// Finder is the store subset the resolver needs.
type Finder interface {
	FindObject(ctx context.Context, idOrName string) (*store.Object, error)
}

// Resolver resolves datapoint ids and display names against a store.
type Resolver struct {
	finder Finder
	lang   string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]entry
}

// New creates a resolver. lang selects which display-name language is
// surfaced in results and cached as a name alias.
func New(finder Finder, lang string) *Resolver {
	return &Resolver{
		finder: finder,
		lang:   lang,
		ttl:    defaultTTL,
		now:    time.Now,
		cache:  make(map[string]entry),
	}
}

// Resolve maps an id or display name to its object.
//
// Misses are not cached: only successful resolutions enter the cache, so
// a datapoint created after a failed lookup is visible immediately.
func (r *Resolver) Resolve(ctx context.Context, idOrName string) (Resolved, error) {
	r.mu.Lock()
	if e, ok := r.cache[idOrName]; ok {
		if r.now().Before(e.expires) {
			r.mu.Unlock()
			return e.resolved, nil
		}
		r.evictLocked(idOrName)
	}
	r.mu.Unlock()

	obj, err := r.finder.FindObject(ctx, idOrName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolved{}, ErrNotFound
		}
		return Resolved{}, err
	}

	res := Resolved{
		ID:     obj.ID,
		Name:   obj.Common.Name.In(r.lang),
		Object: obj,
	}
	r.insert(idOrName, res)
	return res, nil
}

// insert caches the resolution. A lookup by display name (input differs
// from the canonical id) caches both aliases as one paired unit; a lookup
// by id caches only the id key.
func (r *Resolver) insert(input string, res Resolved) {
	expires := r.now().Add(r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	if input != res.ID {
		r.cache[res.ID] = entry{resolved: res, pair: input, expires: expires}
		r.cache[input] = entry{resolved: res, pair: res.ID, expires: expires}
		return
	}
	r.cache[res.ID] = entry{resolved: res, expires: expires}
}

// Invalidate evicts any cached resolution for the given id, including its
// name alias. Called for every object create, update, or delete.
func (r *Resolver) Invalidate(id string) {
	r.mu.Lock()
	r.evictLocked(id)
	r.mu.Unlock()
}

// evictLocked removes a key and its paired alias. Caller holds r.mu.
func (r *Resolver) evictLocked(key string) {
	e, ok := r.cache[key]
	if !ok {
		return
	}
	delete(r.cache, key)
	if e.pair != "" {
		delete(r.cache, e.pair)
	}
}

// Run consumes object events until ctx is cancelled or the channel closes,
// invalidating cache entries as metadata changes.
func (r *Resolver) Run(ctx context.Context, events <-chan store.ObjectEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Invalidate(ev.ID)
		}
	}
}
