package redisson

import (
	"context"
	"net"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// dnsMonitor watches master and replica addresses that were declared by
// hostname and pushes swap/rebind mutations through the pool adapter when a
// name starts resolving somewhere else. The declared hostname URI stays the
// map key forever; only the resolved address behind it moves.
type dnsMonitor struct {
	ctx      context.Context
	resolver *resolver
	entry    MasterReplicaEntry
	interval time.Duration

	// declared hostname URI -> last resolved IP. Touched only by the tick
	// goroutine after construction.
	masters  map[RedisURI]net.IP
	replicas map[RedisURI]net.IP

	mu      sync.Mutex
	stopped bool
	timer   *time.Timer
}

func newDNSMonitor(ctx context.Context, r *resolver, entry MasterReplicaEntry, masters, replicas map[RedisURI]struct{}, interval time.Duration) *dnsMonitor {
	d := &dnsMonitor{
		ctx:      ctx,
		resolver: r,
		entry:    entry,
		interval: interval,
		masters:  map[RedisURI]net.IP{},
		replicas: map[RedisURI]net.IP{},
	}
	for uri := range masters {
		d.masters[uri] = d.initialResolve(uri)
	}
	for uri := range replicas {
		d.replicas[uri] = d.initialResolve(uri)
	}
	return d
}

// initialResolve seeds the last-known address for a declared host. A nil
// result means the first successful tick resolution just records the address
// instead of treating it as a change.
func (d *dnsMonitor) initialResolve(uri RedisURI) net.IP {
	ctx, cancel := context.WithTimeout(d.ctx, d.interval)
	defer cancel()
	ip, err := d.resolver.resolveOne(ctx, uri.Host)
	if err != nil {
		klog.ErrorS(err, "unable to resolve hostname", "host", uri.Host)
		return nil
	}
	return ip
}

func (d *dnsMonitor) start() {
	klog.V(2).InfoS("DNS monitoring enabled", "masters", len(d.masters), "replicas", len(d.replicas))
	d.rearm()
}

func (d *dnsMonitor) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *dnsMonitor) rearm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.timer = time.AfterFunc(d.interval, d.tick)
}

// tick re-resolves every monitored hostname, applies the detected changes,
// and re-arms once everything has completed.
func (d *dnsMonitor) tick() {
	d.monitorMasters()
	d.monitorReplicas()
	d.rearm()
}

func (d *dnsMonitor) monitorMasters() {
	for declared, last := range d.masters {
		ctx, cancel := context.WithTimeout(d.ctx, d.interval)
		ip, err := d.resolver.resolveOne(ctx, declared.Host)
		cancel()
		if err != nil {
			klog.ErrorS(err, "unable to resolve hostname", "host", declared.Host)
			continue
		}
		if last == nil {
			d.masters[declared] = ip
			continue
		}
		if ip.Equal(last) {
			continue
		}

		oldAddr := MakeURI(declared.Scheme, last.String(), declared.Port)
		newAddr := MakeURI(declared.Scheme, ip.String(), declared.Port)
		klog.InfoS("Detected DNS change for master", "host", declared.Host, "from", last, "to", ip)

		if d.entry.MasterAddr() != oldAddr {
			klog.ErrorS(nil, "Unable to find entry for current master", "addr", oldAddr)
			continue
		}
		ctx, cancel = context.WithTimeout(d.ctx, d.interval)
		err = d.entry.ChangeMaster(ctx, newAddr)
		cancel()
		if err != nil {
			klog.ErrorS(err, "Can't change master", "addr", newAddr)
			continue
		}
		d.masters[declared] = ip
	}
}

func (d *dnsMonitor) monitorReplicas() {
	for declared, last := range d.replicas {
		ctx, cancel := context.WithTimeout(d.ctx, d.interval)
		ip, err := d.resolver.resolveOne(ctx, declared.Host)
		cancel()
		if err != nil {
			klog.ErrorS(err, "unable to resolve hostname", "host", declared.Host)
			continue
		}
		if last == nil {
			d.replicas[declared] = ip
			continue
		}
		if ip.Equal(last) {
			continue
		}

		oldAddr := MakeURI(declared.Scheme, last.String(), declared.Port)
		newAddr := MakeURI(declared.Scheme, ip.String(), declared.Port)
		klog.InfoS("Detected DNS change for replica", "host", declared.Host, "from", last, "to", ip)

		if !d.entry.HasReplica(oldAddr) {
			continue
		}
		if d.entry.HasReplica(newAddr) {
			d.entry.ReplicaUp(newAddr, FreezeManager)
			d.entry.ReplicaDown(oldAddr, FreezeManager)
			d.replicas[declared] = ip
			continue
		}

		ctx, cancel = context.WithTimeout(d.ctx, d.interval)
		err = d.entry.AddReplica(ctx, newAddr)
		cancel()
		if err != nil {
			klog.ErrorS(err, "Can't add replica", "addr", newAddr)
			continue
		}
		d.entry.ReplicaUp(newAddr, FreezeManager)
		d.entry.ReplicaDown(oldAddr, FreezeManager)
		d.replicas[declared] = ip
	}
}
