package redisson

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"k8s.io/klog/v2"
)

// FreezeReason tags why a replica is frozen. The topology manager only ever
// produces FreezeManager; collaborators may freeze with their own reasons,
// which the manager treats as opaque and never overrides.
type FreezeReason int

const (
	// FreezeNone means not frozen.
	FreezeNone FreezeReason = iota
	// FreezeManager marks freezes driven by topology reconciliation.
	FreezeManager
	// FreezeSystem marks freezes driven by connection-health collaborators.
	FreezeSystem
)

func (r FreezeReason) String() string {
	switch r {
	case FreezeNone:
		return "NONE"
	case FreezeManager:
		return "MANAGER"
	case FreezeSystem:
		return "SYSTEM"
	}
	return "UNKNOWN"
}

// MasterReplicaEntry is the pool adapter: the surface through which the
// topology manager mutates the per-node connection pools. All methods are
// safe for concurrent use; the entry serializes its own mutations.
type MasterReplicaEntry interface {
	// MasterAddr returns the address the pool currently routes master
	// commands to.
	MasterAddr() RedisURI

	// ChangeMaster atomically redirects master routing to addr. On error the
	// previous master stays in place and the caller rolls back its own view.
	ChangeMaster(ctx context.Context, addr RedisURI) error

	// AddReplica connects a pool to a new replica. The replica starts frozen;
	// the caller unfreezes it via ReplicaUp.
	AddReplica(ctx context.Context, addr RedisURI) error

	// HasReplica reports whether a pool exists for the replica.
	HasReplica(addr RedisURI) bool

	// ReplicaDown freezes the replica. Reports whether state actually
	// changed.
	ReplicaDown(addr RedisURI, reason FreezeReason) bool

	// ReplicaUp unfreezes the replica if it was frozen with the same reason.
	// Reports whether state actually changed.
	ReplicaUp(addr RedisURI, reason FreezeReason) bool

	// IsReplicaUnfrozen reports whether the replica is present and serving.
	IsReplicaUnfrozen(addr RedisURI) bool

	// AllReplicaEndpoints returns the addresses of every replica pool,
	// frozen or not.
	AllReplicaEndpoints() []RedisURI

	// ShutdownGate is the barrier topology mutations are bracketed by.
	ShutdownGate() *ShutdownGate

	// Shutdown closes the gate, waits out in-flight mutations, and closes
	// every pool.
	Shutdown(ctx context.Context) error
}

// nodeClient is a single node's connection pool as the entry sees it.
type nodeClient interface {
	ping(ctx context.Context) error
	close() error
}

// nodeDialFunc builds a nodeClient for a data-plane node.
type nodeDialFunc func(uri RedisURI) nodeClient

type redisNodeClient struct {
	c *redis.Client
}

func (c *redisNodeClient) ping(ctx context.Context) error { return c.c.Ping(ctx).Err() }
func (c *redisNodeClient) close() error                   { return c.c.Close() }

// dialNodeFunc returns the production nodeDialFunc for the config.
func dialNodeFunc(cfg *SentinelConfig) nodeDialFunc {
	return func(uri RedisURI) nodeClient {
		return &redisNodeClient{c: redis.NewClient(&redis.Options{
			Addr:         uri.HostPort(),
			Password:     cfg.Password,
			DB:           cfg.Database,
			DialTimeout:  cfg.ConnectTimeout,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			TLSConfig:    cfg.TLSConfig,
		})}
	}
}

type replicaState struct {
	client nodeClient
	frozen bool
	reason FreezeReason
}

// poolEntry is the production MasterReplicaEntry, holding one go-redis client
// per node.
type poolEntry struct {
	dial nodeDialFunc
	gate ShutdownGate

	mu         sync.Mutex
	master     nodeClient
	masterAddr RedisURI
	replicas   map[RedisURI]*replicaState
}

// newPoolEntry connects the initial master and replicas. Replicas in the
// disconnected set get a pool handle but no initial connection attempt, and
// stay frozen until reconciliation brings them up.
func newPoolEntry(ctx context.Context, dial nodeDialFunc, masterAddr RedisURI, replicaAddrs []RedisURI, disconnected map[RedisURI]struct{}) (*poolEntry, error) {
	master := dial(masterAddr)
	if err := master.ping(ctx); err != nil {
		master.close()
		return nil, fmt.Errorf("unable to connect to master %s: %w", masterAddr, err)
	}

	e := &poolEntry{
		dial:       dial,
		master:     master,
		masterAddr: masterAddr,
		replicas:   map[RedisURI]*replicaState{},
	}
	for _, addr := range replicaAddrs {
		if addr == masterAddr {
			continue
		}
		if _, ok := disconnected[addr]; ok {
			e.replicas[addr] = &replicaState{client: e.dial(addr), frozen: true, reason: FreezeManager}
			continue
		}
		c := e.dial(addr)
		if err := c.ping(ctx); err != nil {
			klog.ErrorS(err, "unable to connect to replica", "addr", addr)
			e.replicas[addr] = &replicaState{client: c, frozen: true, reason: FreezeManager}
			continue
		}
		e.replicas[addr] = &replicaState{client: c}
	}
	return e, nil
}

func (e *poolEntry) MasterAddr() RedisURI {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterAddr
}

func (e *poolEntry) ChangeMaster(ctx context.Context, addr RedisURI) error {
	c := e.dial(addr)
	if err := c.ping(ctx); err != nil {
		c.close()
		return fmt.Errorf("unable to connect to new master %s: %w", addr, err)
	}

	e.mu.Lock()
	old := e.master
	oldAddr := e.masterAddr
	e.master = c
	e.masterAddr = addr
	// the new master must not linger in the replica set
	if st, ok := e.replicas[addr]; ok {
		delete(e.replicas, addr)
		go st.client.close()
	}
	e.mu.Unlock()

	if old != nil {
		go old.close()
	}
	klog.InfoS("master changed", "from", oldAddr, "to", addr)
	return nil
}

func (e *poolEntry) AddReplica(ctx context.Context, addr RedisURI) error {
	e.mu.Lock()
	if _, ok := e.replicas[addr]; ok {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	c := e.dial(addr)
	if err := c.ping(ctx); err != nil {
		c.close()
		return fmt.Errorf("unable to connect to replica %s: %w", addr, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.replicas[addr]; ok {
		// lost the race to a concurrent add
		go c.close()
		return nil
	}
	e.replicas[addr] = &replicaState{client: c, frozen: true, reason: FreezeManager}
	return nil
}

func (e *poolEntry) HasReplica(addr RedisURI) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.replicas[addr]
	return ok
}

func (e *poolEntry) ReplicaDown(addr RedisURI, reason FreezeReason) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.replicas[addr]
	if !ok || st.frozen {
		return false
	}
	st.frozen = true
	st.reason = reason
	return true
}

func (e *poolEntry) ReplicaUp(addr RedisURI, reason FreezeReason) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.replicas[addr]
	if !ok || !st.frozen || st.reason != reason {
		return false
	}
	st.frozen = false
	st.reason = FreezeNone
	return true
}

func (e *poolEntry) IsReplicaUnfrozen(addr RedisURI) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.replicas[addr]
	return ok && !st.frozen
}

func (e *poolEntry) AllReplicaEndpoints() []RedisURI {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RedisURI, 0, len(e.replicas))
	for addr := range e.replicas {
		out = append(out, addr)
	}
	return out
}

func (e *poolEntry) ShutdownGate() *ShutdownGate {
	return &e.gate
}

func (e *poolEntry) Shutdown(ctx context.Context) error {
	e.gate.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	if e.master != nil {
		firstErr = e.master.close()
		e.master = nil
	}
	for addr, st := range e.replicas {
		if err := st.client.close(); firstErr == nil && err != nil {
			firstErr = err
		}
		delete(e.replicas, addr)
	}
	return firstErr
}
