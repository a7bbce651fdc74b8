package redisson

import "sync"

// sentinelRegistry tracks one live client handle per sentinel URI. Keys are
// the post-NAT, IP-form URIs; inserts are insert-if-absent so concurrent
// discovery of the same sentinel from two sources can't produce duplicates.
type sentinelRegistry struct {
	mu sync.Mutex
	m  map[RedisURI]sentinelConn
}

func newSentinelRegistry() *sentinelRegistry {
	return &sentinelRegistry{m: map[RedisURI]sentinelConn{}}
}

// tryRegister inserts the handle only if the URI is absent, reporting whether
// the insert happened. The caller must have PING-verified the handle first.
func (r *sentinelRegistry) tryRegister(uri RedisURI, c sentinelConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[uri]; ok {
		return false
	}
	r.m[uri] = c
	return true
}

// contains reports whether the URI is registered.
func (r *sentinelRegistry) contains(uri RedisURI) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[uri]
	return ok
}

// remove deletes and returns the handle for the URI, or nil if absent. The
// caller owns shutting the handle down.
func (r *sentinelRegistry) remove(uri RedisURI) sentinelConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.m[uri]
	delete(r.m, uri)
	return c
}

// snapshot returns a stable copy of the registered handles, for shuffled
// iteration outside the lock.
func (r *sentinelRegistry) snapshot() []sentinelConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentinelConn, 0, len(r.m))
	for _, c := range r.m {
		out = append(out, c)
	}
	return out
}

// uris returns the registered URIs.
func (r *sentinelRegistry) uris() []RedisURI {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RedisURI, 0, len(r.m))
	for uri := range r.m {
		out = append(out, uri)
	}
	return out
}

func (r *sentinelRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
