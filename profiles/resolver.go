// Package profiles resolves sender ids to display profiles through a
// process-wide cache. The cache never evicts; it is bounded by the
// distinct senders seen over the life of the process.
package profiles

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"groupmeet/contract"
	"groupmeet/domain"
	"groupmeet/retry"
)

// Cache is the process-scoped profile store. Initialized at startup,
// shared by reference, never torn down mid-session.
type Cache struct {
	mu   sync.Mutex
	byID map[string]domain.UserProfile
}

func NewCache() *Cache {
	return &Cache{byID: make(map[string]domain.UserProfile)}
}

func (c *Cache) Get(id string) (domain.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	profile, ok := c.byID[id]
	return profile, ok
}

func (c *Cache) put(profile domain.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[profile.ID] = profile
}

// fetchCall tracks one in-flight repository fetch covering an id.
// Batches that want an id already being fetched wait on done instead of
// issuing a second fetch.
type fetchCall struct {
	done chan struct{}
	err  error
}

type Resolver struct {
	log     *slog.Logger
	repo    contract.IProfileRepository
	cache   *Cache
	retrier *retry.Retrier

	mu       sync.Mutex
	inflight map[string]*fetchCall
}

func NewResolver(log *slog.Logger, repo contract.IProfileRepository,
	cache *Cache, retrier *retry.Retrier) *Resolver {
	return &Resolver{
		log:      log,
		repo:     repo,
		cache:    cache,
		retrier:  retrier,
		inflight: make(map[string]*fetchCall),
	}
}

// Resolve returns a profile for every requested id. Cached ids are served
// from the cache, ids already being fetched are awaited, and only the
// remainder hits the repository. Ids the repository does not know get a
// derived fallback display name and stay uncached, so they are retried
// the next time they appear in a batch, never in a tight loop.
// The returned mapping covers the requested ids only, regardless of what
// other batches resolve concurrently.
func (r *Resolver) Resolve(ctx context.Context, ids []string) (map[string]domain.UserProfile, error) {
	ids = lo.Uniq(ids)
	toFetch, waits := r.claim(ids)

	var fetchErr error
	if len(toFetch) > 0 {
		fetchErr = r.fetch(ctx, toFetch)
	}
	for _, call := range waits {
		select {
		case <-call.done:
			if call.err != nil && fetchErr == nil {
				fetchErr = call.err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resolved := make(map[string]domain.UserProfile, len(ids))
	for _, id := range ids {
		if profile, ok := r.cache.Get(id); ok {
			resolved[id] = profile
			continue
		}
		resolved[id] = domain.UserProfile{ID: id, Name: domain.FallbackDisplayName(id)}
	}
	return resolved, fetchErr
}

// Resolved reports whether id has a cached profile. Ids served by a
// fallback name are not resolved; they fetch again with their next batch.
func (r *Resolver) Resolved(id string) bool {
	_, ok := r.cache.Get(id)
	return ok
}

// DisplayName reads the cache without fetching. Unknown ids fall back to
// the derived name.
func (r *Resolver) DisplayName(id string) string {
	if profile, ok := r.cache.Get(id); ok && profile.Name != "" {
		return profile.Name
	}
	return domain.FallbackDisplayName(id)
}

// claim splits ids into those this call must fetch and the in-flight
// calls it must wait for. Claimed ids are registered before the lock is
// released so overlapping batches fetch each id at most once.
func (r *Resolver) claim(ids []string) ([]string, []*fetchCall) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var toFetch []string
	var waits []*fetchCall
	for _, id := range ids {
		if _, ok := r.cache.Get(id); ok {
			continue
		}
		if call, ok := r.inflight[id]; ok {
			waits = append(waits, call)
			continue
		}
		r.inflight[id] = &fetchCall{done: make(chan struct{})}
		toFetch = append(toFetch, id)
	}
	return toFetch, waits
}

func (r *Resolver) fetch(ctx context.Context, ids []string) error {
	profiles, err := retry.Fetch(ctx, r.retrier, func(ctx context.Context) ([]domain.UserProfile, error) {
		return r.repo.GetByIDs(ctx, ids)
	})
	if err != nil {
		r.log.Error("Profile fetch failed", "ids", len(ids), "err", err)
	}
	for _, profile := range profiles {
		r.cache.put(profile)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if call, ok := r.inflight[id]; ok {
			call.err = err
			close(call.done)
			delete(r.inflight, id)
		}
	}
	return err
}
