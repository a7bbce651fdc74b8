package redisson

import (
	"context"
	"errors"
	"net"
	"sync"
	. "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup is an ipLookuper backed by a mutable host table.
type fakeLookup struct {
	mu    sync.Mutex
	hosts map[string][]net.IPAddr
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{hosts: map[string][]net.IPAddr{}}
}

func (f *fakeLookup) set(host string, ips ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addrs := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
	}
	f.hosts[host] = addrs
}

func (f *fakeLookup) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addrs, ok := f.hosts[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return addrs, nil
}

func TestResolveOne(t *T) {
	lookup := newFakeLookup()
	lookup.set("replica.example.com", "10.0.0.3")
	r := &resolver{lookup: lookup}
	ctx := context.Background()

	ip, err := r.resolveOne(ctx, "replica.example.com")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", ip.String())

	// IP literals never touch DNS
	ip, err = r.resolveOne(ctx, "10.9.9.9")
	require.NoError(t, err)
	assert.Equal(t, "10.9.9.9", ip.String())

	_, err = r.resolveOne(ctx, "missing.example.com")
	assert.Error(t, err)
}

func TestResolveOnePrefersIPv4(t *T) {
	lookup := newFakeLookup()
	lookup.set("dual.example.com", "2001:db8::1", "10.0.0.7")
	r := &resolver{lookup: lookup}

	ip, err := r.resolveOne(context.Background(), "dual.example.com")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", ip.String())
}

func TestResolveAll(t *T) {
	lookup := newFakeLookup()
	lookup.set("sentinels.example.com", "10.0.1.1", "10.0.1.2", "10.0.1.3")
	r := &resolver{lookup: lookup}

	ips, err := r.resolveAll(context.Background(), "sentinels.example.com")
	require.NoError(t, err)
	require.Len(t, ips, 3)

	ips, err = r.resolveAll(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "10.0.0.1", ips[0].String())

	_, err = r.resolveAll(context.Background(), "missing.example.com")
	assert.Error(t, err)
}
