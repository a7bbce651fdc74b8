package redisson

import (
	"context"
	"errors"
	"sync"
	. "testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNodeNet hands out fakeNode clients and lets tests fail specific
// addresses.
type fakeNodeNet struct {
	mu      sync.Mutex
	pingErr map[RedisURI]error
	nodes   []*fakeNode
}

type fakeNode struct {
	net    *fakeNodeNet
	addr   RedisURI
	mu     sync.Mutex
	closed bool
}

func newFakeNodeNet() *fakeNodeNet {
	return &fakeNodeNet{pingErr: map[RedisURI]error{}}
}

func (n *fakeNodeNet) dial(uri RedisURI) nodeClient {
	n.mu.Lock()
	defer n.mu.Unlock()
	node := &fakeNode{net: n, addr: uri}
	n.nodes = append(n.nodes, node)
	return node
}

func (n *fakeNodeNet) failPing(uri RedisURI, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pingErr[uri] = err
}

func (c *fakeNode) ping(ctx context.Context) error {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()
	return c.net.pingErr[c.addr]
}

func (c *fakeNode) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeNode) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testAddr(host string) RedisURI { return MakeURI("redis", host, 6379) }

func TestPoolEntryInit(t *T) {
	fnet := newFakeNodeNet()
	master := testAddr("10.0.0.1")
	r1, r2 := testAddr("10.0.0.3"), testAddr("10.0.0.4")

	e, err := newPoolEntry(context.Background(), fnet.dial, master,
		[]RedisURI{r1, r2, master}, map[RedisURI]struct{}{r2: {}})
	require.NoError(t, err)

	assert.Equal(t, master, e.MasterAddr())
	assert.True(t, e.HasReplica(r1))
	assert.True(t, e.IsReplicaUnfrozen(r1))
	// reported down at bootstrap: present but frozen, no connection attempt
	assert.True(t, e.HasReplica(r2))
	assert.False(t, e.IsReplicaUnfrozen(r2))
	// the master never doubles as a replica
	assert.False(t, e.HasReplica(master))
	assert.ElementsMatch(t, []RedisURI{r1, r2}, e.AllReplicaEndpoints())
}

func TestPoolEntryInitMasterUnreachable(t *T) {
	fnet := newFakeNodeNet()
	master := testAddr("10.0.0.1")
	fnet.failPing(master, errors.New("connection refused"))

	_, err := newPoolEntry(context.Background(), fnet.dial, master, nil, nil)
	assert.Error(t, err)
}

func TestPoolEntryReplicaStateMachine(t *T) {
	fnet := newFakeNodeNet()
	master := testAddr("10.0.0.1")
	e, err := newPoolEntry(context.Background(), fnet.dial, master, nil, nil)
	require.NoError(t, err)

	r := testAddr("10.0.0.3")
	assert.False(t, e.HasReplica(r))
	assert.False(t, e.ReplicaDown(r, FreezeManager))
	assert.False(t, e.ReplicaUp(r, FreezeManager))

	// new replicas come up frozen until the manager unfreezes them
	require.NoError(t, e.AddReplica(context.Background(), r))
	assert.True(t, e.HasReplica(r))
	assert.False(t, e.IsReplicaUnfrozen(r))
	assert.True(t, e.ReplicaUp(r, FreezeManager))
	assert.True(t, e.IsReplicaUnfrozen(r))
	assert.False(t, e.ReplicaUp(r, FreezeManager))

	assert.True(t, e.ReplicaDown(r, FreezeManager))
	assert.False(t, e.ReplicaDown(r, FreezeManager))

	// a freeze owned by another reason is not the manager's to lift
	assert.True(t, e.ReplicaUp(r, FreezeManager))
	assert.True(t, e.ReplicaDown(r, FreezeSystem))
	assert.False(t, e.ReplicaUp(r, FreezeManager))
	assert.True(t, e.ReplicaUp(r, FreezeSystem))

	// adding twice is a no-op
	require.NoError(t, e.AddReplica(context.Background(), r))
	assert.True(t, e.IsReplicaUnfrozen(r))
}

func TestPoolEntryAddReplicaUnreachable(t *T) {
	fnet := newFakeNodeNet()
	master := testAddr("10.0.0.1")
	e, err := newPoolEntry(context.Background(), fnet.dial, master, nil, nil)
	require.NoError(t, err)

	r := testAddr("10.0.0.3")
	fnet.failPing(r, errors.New("connection refused"))
	assert.Error(t, e.AddReplica(context.Background(), r))
	assert.False(t, e.HasReplica(r))
}

func TestPoolEntryChangeMaster(t *T) {
	fnet := newFakeNodeNet()
	oldMaster, newMaster := testAddr("10.0.0.1"), testAddr("10.0.0.2")
	e, err := newPoolEntry(context.Background(), fnet.dial, oldMaster, []RedisURI{newMaster}, nil)
	require.NoError(t, err)
	require.True(t, e.HasReplica(newMaster))

	require.NoError(t, e.ChangeMaster(context.Background(), newMaster))
	assert.Equal(t, newMaster, e.MasterAddr())
	// the promoted node left the replica set
	assert.False(t, e.HasReplica(newMaster))

	assert.Eventually(t, func() bool {
		return fnet.nodes[0].isClosed()
	}, time.Second, 10*time.Millisecond, "old master pool should be closed")
}

func TestPoolEntryChangeMasterFailure(t *T) {
	fnet := newFakeNodeNet()
	oldMaster, newMaster := testAddr("10.0.0.1"), testAddr("10.0.0.2")
	e, err := newPoolEntry(context.Background(), fnet.dial, oldMaster, nil, nil)
	require.NoError(t, err)

	fnet.failPing(newMaster, errors.New("connection refused"))
	assert.Error(t, e.ChangeMaster(context.Background(), newMaster))
	assert.Equal(t, oldMaster, e.MasterAddr())
}

func TestPoolEntryShutdown(t *T) {
	fnet := newFakeNodeNet()
	master := testAddr("10.0.0.1")
	e, err := newPoolEntry(context.Background(), fnet.dial, master, []RedisURI{testAddr("10.0.0.3")}, nil)
	require.NoError(t, err)

	require.True(t, e.ShutdownGate().Acquire())
	e.ShutdownGate().Release()

	require.NoError(t, e.Shutdown(context.Background()))
	assert.False(t, e.ShutdownGate().Acquire())
	for _, node := range fnet.nodes {
		assert.True(t, node.isClosed())
	}
}
