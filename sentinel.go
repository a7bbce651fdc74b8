package redisson

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"
)

// Bootstrap failures around the sentinel fleet size check.
var (
	// ErrNoSentinelsDiscovered is returned when the strict fleet check is on
	// and bootstrap registered no sentinels at all.
	ErrNoSentinelsDiscovered = errors.New("SENTINEL SENTINELS command returns empty result, set checkSentinelsList = false to avoid this check")
	// ErrTooFewSentinels is returned when the strict fleet check is on and
	// bootstrap registered a single sentinel.
	ErrTooFewSentinels = errors.New("SENTINEL SENTINELS command returns less than 2 nodes, at least two sentinels should be defined in Redis configuration, set checkSentinelsList = false to avoid this check")
)

// SentinelManager discovers a master/replica deployment through a fleet of
// sentinels and keeps the pool adapter aligned with it. It polls one live
// sentinel per scan interval, diffs the reported master, replicas and fleet
// membership against its own view, and commits changes through the
// MasterReplicaEntry. DNS monitoring runs alongside for addresses that were
// declared by hostname.
//
// Lifecycle is NewSentinelManager -> background monitors -> Shutdown. All
// methods are safe for concurrent use.
type SentinelManager struct {
	cfg    *SentinelConfig
	scheme string

	resolver     *resolver
	dialSentinel sentinelDialFunc
	newEntry     entryFactory

	sentinels *sentinelRegistry

	// hostname-form seed URIs, kept so DNS re-resolution can find sentinels
	// that moved. Read-only after construction.
	sentinelHosts map[RedisURI]struct{}

	// replicas reported down at bootstrap. Read-only after construction.
	disconnectedReplicas map[RedisURI]struct{}

	masterMu sync.Mutex
	master   RedisURI

	entry MasterReplicaEntry

	usePassword bool

	rootCtx context.Context
	cancel  context.CancelFunc

	timerMu      sync.Mutex
	stopped      bool
	scanTimer    *time.Timer
	dnsScanTimer *time.Timer

	dns *dnsMonitor

	closeOnce sync.Once
}

// entryFactory builds the pool adapter from the bootstrap snapshot. Swapped
// out in tests.
type entryFactory func(ctx context.Context, master RedisURI, replicas []RedisURI, disconnected map[RedisURI]struct{}) (MasterReplicaEntry, error)

// NewSentinelManager connects to the first responsive seed sentinel, takes an
// initial topology snapshot, seeds the connection pools and starts the
// reconciliation and DNS monitors. It returns an error if no seed produced a
// usable topology, if authentication is required but unconfigured, or if the
// strict sentinel fleet checks fail.
func NewSentinelManager(cfg *SentinelConfig) (*SentinelManager, error) {
	return newSentinelManager(cfg, nil, nil)
}

func newSentinelManager(cfg *SentinelConfig, dialSentinel sentinelDialFunc, newEntry entryFactory) (*SentinelManager, error) {
	c, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	m := &SentinelManager{
		cfg:                  c,
		resolver:             newResolver(),
		sentinels:            newSentinelRegistry(),
		sentinelHosts:        map[RedisURI]struct{}{},
		disconnectedReplicas: map[RedisURI]struct{}{},
		rootCtx:              rootCtx,
		cancel:               cancel,
	}
	if newEntry == nil {
		dial := dialNodeFunc(c)
		newEntry = func(ctx context.Context, master RedisURI, replicas []RedisURI, disconnected map[RedisURI]struct{}) (MasterReplicaEntry, error) {
			return newPoolEntry(ctx, dial, master, replicas, disconnected)
		}
	}
	m.newEntry = newEntry

	seeds := make([]RedisURI, 0, len(c.SentinelAddresses))
	for _, s := range c.SentinelAddresses {
		u, err := ParseURI(s)
		if err != nil {
			cancel()
			return nil, err
		}
		m.scheme = u.Scheme
		u = m.applyNATMap(u)
		if !u.IsIP() && u.Host != "localhost" {
			m.sentinelHosts[u] = struct{}{}
		}
		seeds = append(seeds, u)
	}

	if dialSentinel == nil {
		probeDial := dialSentinelFunc(c, "")
		if err := m.checkAuth(seeds, probeDial); err != nil {
			cancel()
			return nil, err
		}
		if m.usePassword {
			dialSentinel = dialSentinelFunc(c, c.SentinelPassword)
		} else {
			dialSentinel = probeDial
		}
	} else if err := m.checkAuth(seeds, dialSentinel); err != nil {
		cancel()
		return nil, err
	}
	m.dialSentinel = dialSentinel

	if err := m.bootstrap(seeds); err != nil {
		m.stopMonitors()
		for _, uri := range m.sentinels.uris() {
			if c := m.sentinels.remove(uri); c != nil {
				c.close()
			}
		}
		cancel()
		return nil, err
	}

	m.scheduleChangeCheck(nil)
	m.startDNSMonitoring()
	return m, nil
}

// checkAuth decides whether the deployment requires authentication by probing
// seeds without credentials. The first definitive outcome wins: a clean PING
// means no auth, an auth-required reply latches usePassword. Exhausting the
// seeds without reaching any of them is fatal.
func (m *SentinelManager) checkAuth(seeds []RedisURI, dial sentinelDialFunc) error {
	if m.cfg.Password == "" {
		return nil
	}

	for _, seed := range seeds {
		c := dial(seed)
		ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.ConnectTimeout)
		err := c.ping(ctx)
		cancel()
		c.close()

		switch {
		case err == nil:
			return nil
		case isAuthRequiredError(err):
			m.usePassword = true
			return nil
		case isConnectionError(err):
			klog.Warningf("Can't connect to sentinel server %s: %v", seed, err)
		}
	}
	return fmt.Errorf("unable to connect to Redis sentinel servers: %s", strings.Join(m.cfg.SentinelAddresses, ", "))
}

// bootstrap walks the seeds until one yields a full topology snapshot, then
// runs the membership sanity checks and initializes the pool entry.
func (m *SentinelManager) bootstrap(seeds []RedisURI) error {
	var lastErr error
	var replicas []RedisURI
	for _, seed := range seeds {
		rs, err := m.seedTopology(seed)
		if err == nil {
			replicas = rs
			break
		}
		if errors.Is(err, ErrMasterUndefined) {
			return err
		}
		if isConnectionError(err) {
			continue
		}
		lastErr = err
		klog.Warning(err.Error())
	}

	if m.cfg.CheckSentinelsList && m.cfg.SentinelsDiscovery {
		if m.sentinels.size() == 0 {
			return withCause(ErrNoSentinelsDiscovered, lastErr)
		}
		if m.sentinels.size() < 2 {
			return withCause(ErrTooFewSentinels, lastErr)
		}
	}

	master := m.currentMaster()
	if master.IsZero() {
		return withCause(ErrCantConnect, lastErr)
	}
	if m.cfg.ReadMode != ReadModeMaster && len(replicas) == 0 {
		klog.Warningf("ReadMode = %s, but replica nodes are not found", m.cfg.ReadMode)
	}

	if m.cfg.SkipReplicasInit {
		replicas = nil
	}
	ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.ConnectTimeout)
	defer cancel()
	entry, err := m.newEntry(ctx, master, replicas, m.disconnectedReplicas)
	if err != nil {
		return err
	}
	m.entry = entry
	return nil
}

// seedTopology takes the initial snapshot from a single seed sentinel:
// master address, replica list with down detection, and the sentinel fleet.
// Sentinel registrations run concurrently and are awaited up to the connect
// timeout.
func (m *SentinelManager) seedTopology(seed RedisURI) ([]RedisURI, error) {
	c := m.dialSentinel(seed)
	defer c.close()

	ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.ConnectTimeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return nil, err
	}

	host, port, err := c.masterAddrByName(ctx, m.cfg.MasterName)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, ErrMasterUndefined
	}
	master, err := m.resolveIP(ctx, host, port)
	if err != nil {
		return nil, err
	}
	m.setMaster(master)
	klog.InfoS("master added", "addr", master)

	replicaRows, err := c.replicas(ctx, m.cfg.MasterName)
	if err != nil {
		return nil, err
	}
	var replicas []RedisURI
	for _, row := range replicaRows {
		if len(row) == 0 {
			continue
		}
		uri, err := m.resolveIP(ctx, row["ip"], row["port"])
		if err != nil {
			return nil, err
		}
		replicas = append(replicas, uri)
		klog.V(2).InfoS("replica state", "addr", uri, "state", row)
		klog.InfoS("replica added", "addr", uri)

		if isReplicaDown(row["flags"], row["master-link-status"], m.cfg.CheckReplicaStatusWithSyncing) {
			m.disconnectedReplicas[uri] = struct{}{}
			klog.Warningf("replica: %s is down", uri)
		}
	}

	sentinelRows, err := c.sentinels(ctx, m.cfg.MasterName)
	if err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	register := func(uri RedisURI) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.registerSentinel(uri); err != nil {
				klog.Warningf("Can't register sentinel %s: %v", uri, err)
			}
		}()
	}
	for _, row := range sentinelRows {
		if len(row) == 0 {
			continue
		}
		uri, err := m.resolveIP(ctx, row["ip"], row["port"])
		if err != nil {
			return nil, err
		}
		register(uri)
	}

	// the seed we're talking to isn't in its own SENTINEL SENTINELS output
	if selfIP, err := m.resolver.resolveOne(ctx, seed.Host); err == nil {
		register(m.toURI(selfIP.String(), seed.Port))
	}

	waitTimeout(&wg, m.cfg.ConnectTimeout)
	return replicas, nil
}

// registerSentinel PING-verifies and registers a sentinel under its IP-form
// URI. Safe to call concurrently with the same address from multiple
// discoveries; exactly one registration wins and the rest succeed as no-ops.
func (m *SentinelManager) registerSentinel(uri RedisURI) error {
	isHostname := !uri.IsIP()
	if !isHostname && m.sentinels.contains(uri) {
		return nil
	}

	ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.ConnectTimeout)
	defer cancel()

	c := m.dialSentinel(uri)
	ip, err := m.resolver.resolveOne(ctx, uri.Host)
	if err != nil {
		c.close()
		return err
	}
	ipURI := m.toURI(ip.String(), uri.Port)
	if isHostname && m.sentinels.contains(ipURI) {
		c.close()
		return nil
	}

	if err := c.ping(ctx); err != nil {
		c.close()
		return err
	}
	if m.sentinels.tryRegister(ipURI, c) {
		klog.InfoS("sentinel added", "addr", ipURI)
	} else {
		c.close()
	}
	return nil
}

// scheduleChangeCheck arms the reconciliation timer. A nil remaining slice
// means the next tick starts over with a fresh shuffled snapshot; non-nil
// resumes iteration where the failed tick left off.
func (m *SentinelManager) scheduleChangeCheck(remaining []sentinelConn) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.stopped {
		return
	}
	m.scanTimer = time.AfterFunc(m.cfg.ScanInterval, func() {
		m.checkState(remaining)
	})
}

// checkState is one reconciliation tick: walk the candidate sentinels until
// one answers, run the state diff against it, and re-arm. Exhausting the
// candidates logs the last error and also triggers the sentinel DNS sweep, so
// a fully-moved fleet can be re-found.
func (m *SentinelManager) checkState(remaining []sentinelConn) {
	clients := remaining
	if clients == nil {
		clients = m.sentinels.snapshot()
		rand.Shuffle(len(clients), func(i, j int) {
			clients[i], clients[j] = clients[j], clients[i]
		})
	}

	var lastErr error
	for i, sc := range clients {
		if !m.entry.ShutdownGate().Acquire() {
			return
		}
		ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.ConnectTimeout)
		err := sc.ping(ctx)
		cancel()
		if err != nil {
			lastErr = err
			m.entry.ShutdownGate().Release()
			continue
		}

		if m.updateState(sc) {
			m.scheduleChangeCheck(nil)
		} else {
			m.scheduleChangeCheck(clients[i+1:])
		}
		return
	}

	if lastErr != nil {
		klog.ErrorS(lastErr, "Can't update cluster state")
	}
	m.performSentinelDNSCheck()
	m.scheduleChangeCheck(nil)
}

// updateState issues the master, replica and fleet queries against one
// sentinel in parallel and waits them all out before releasing the gate.
// Reports whether every sub-query succeeded.
func (m *SentinelManager) updateState(sc sentinelConn) bool {
	var wg sync.WaitGroup
	var failed atomic.Bool
	var logOnce sync.Once
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				failed.Store(true)
				logOnce.Do(func() {
					klog.ErrorS(err, "Can't execute SENTINEL commands", "addr", sc.addr())
				})
			}
		}()
	}

	run(func() error { return m.checkMasterChange(sc) })
	if !m.cfg.SkipReplicasInit {
		run(func() error { return m.checkReplicasChange(sc) })
	}
	run(func() error { return m.checkSentinelsChange(sc) })

	wg.Wait()
	m.entry.ShutdownGate().Release()
	return !failed.Load()
}

// checkMasterChange applies a reported master address change through a
// compare-and-swap on the master cell, rolling the cell back if the pool
// rejects the swap.
func (m *SentinelManager) checkMasterChange(sc sentinelConn) error {
	ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.Timeout)
	defer cancel()

	host, port, err := sc.masterAddrByName(ctx, m.cfg.MasterName)
	if err != nil {
		return err
	}
	if host == "" {
		return ErrMasterUndefined
	}
	newMaster, err := m.resolveIP(ctx, host, port)
	if err != nil {
		klog.ErrorS(err, "unable to resolve hostname", "host", host)
		return nil
	}

	current := m.currentMaster()
	if newMaster != current && m.compareAndSetMaster(current, newMaster) {
		cctx, ccancel := context.WithTimeout(m.rootCtx, m.cfg.ConnectTimeout)
		defer ccancel()
		if err := m.entry.ChangeMaster(cctx, newMaster); err != nil {
			m.compareAndSetMaster(newMaster, current)
			klog.ErrorS(err, "Can't change master", "addr", newMaster)
		}
	}
	return nil
}

// checkReplicasChange applies the reported replica list: down-flagged
// replicas freeze, replicas following a different master are skipped, new
// ones are added and unfrozen, and anything the sentinel no longer reports is
// frozen by the closing diff.
func (m *SentinelManager) checkReplicasChange(sc sentinelConn) error {
	ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.Timeout)
	defer cancel()

	rows, err := sc.replicas(ctx, m.cfg.MasterName)
	if err != nil {
		return err
	}

	seen := map[RedisURI]struct{}{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		addr, err := m.resolveIP(ctx, row["ip"], row["port"])
		if err != nil {
			klog.ErrorS(err, "unable to resolve addresses", "host", row["ip"])
			continue
		}
		masterHost := row["master-host"]
		var reportedMaster RedisURI
		if masterHost != "?" {
			reportedMaster, err = m.resolveIP(ctx, masterHost, row["master-port"])
			if err != nil {
				klog.ErrorS(err, "unable to resolve addresses", "host", masterHost)
				continue
			}
		}

		if isReplicaDown(row["flags"], row["master-link-status"], m.cfg.CheckReplicaStatusWithSyncing) {
			m.replicaDown(addr)
			continue
		}
		if masterHost == "?" || !m.isSameMaster(addr, reportedMaster) {
			continue
		}

		seen[addr] = struct{}{}
		m.addReplica(ctx, addr)
	}

	master := m.currentMaster()
	for _, addr := range m.entry.AllReplicaEndpoints() {
		if _, ok := seen[addr]; !ok && addr != master {
			m.replicaDown(addr)
		}
	}
	return nil
}

// checkSentinelsChange reconciles the sentinel fleet against SENTINEL
// SENTINELS output. The responding sentinel is always part of the new fleet.
func (m *SentinelManager) checkSentinelsChange(sc sentinelConn) error {
	if !m.cfg.SentinelsDiscovery {
		return nil
	}

	ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.Timeout)
	defer cancel()

	rows, err := sc.sentinels(ctx, m.cfg.MasterName)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	fleet := map[RedisURI]struct{}{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if isReplicaDown(row["flags"], row["master-link-status"], m.cfg.CheckReplicaStatusWithSyncing) {
			continue
		}
		uri, err := m.resolveIP(ctx, row["ip"], row["port"])
		if err != nil {
			klog.ErrorS(err, "unable to resolve hostname", "host", row["ip"])
			continue
		}
		fleet[uri] = struct{}{}
	}

	self := sc.addr()
	if selfIP, err := m.resolver.resolveOne(ctx, self.Host); err == nil {
		fleet[m.toURI(selfIP.String(), self.Port)] = struct{}{}
	} else {
		fleet[self] = struct{}{}
	}

	m.updateSentinels(fleet)
	return nil
}

// updateSentinels commits a new fleet: registers unknown members, removes and
// shuts down dropped ones.
func (m *SentinelManager) updateSentinels(fleet map[RedisURI]struct{}) {
	for uri := range fleet {
		if m.sentinels.contains(uri) {
			continue
		}
		if err := m.registerSentinel(uri); err != nil {
			klog.Warningf("Can't register sentinel %s: %v", uri, err)
		}
	}

	for _, uri := range m.sentinels.uris() {
		if _, ok := fleet[uri]; ok {
			continue
		}
		if c := m.sentinels.remove(uri); c != nil {
			go c.close()
			klog.Warningf("sentinel: %s is down", uri)
		}
	}
}

// performSentinelDNSCheck re-resolves every hostname-declared seed sentinel
// and registers any address not yet in the registry. This is how a sentinel
// fleet that moved behind its DNS names gets re-found.
func (m *SentinelManager) performSentinelDNSCheck() {
	for host := range m.sentinelHosts {
		ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.Timeout)
		ips, err := m.resolver.resolveAll(ctx, host.Host)
		cancel()
		if err != nil {
			klog.ErrorS(err, "unable to resolve hostname", "host", host.Host)
			continue
		}
		for _, ip := range ips {
			uri := m.toURI(ip.String(), host.Port)
			if m.sentinels.contains(uri) {
				continue
			}
			if err := m.registerSentinel(uri); err != nil {
				klog.Warningf("Can't register sentinel %s: %v", uri, err)
			}
		}
	}
}

func (m *SentinelManager) scheduleSentinelDNSCheck() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.stopped {
		return
	}
	m.dnsScanTimer = time.AfterFunc(m.cfg.DNSMonitoringInterval, func() {
		m.performSentinelDNSCheck()
		m.scheduleSentinelDNSCheck()
	})
}

// startDNSMonitoring arms the DNS monitors: one for hostname-declared master
// and replica addresses, one for the hostname-declared seed sentinels.
// Literal IPs are immutable under DNS and need no monitor.
func (m *SentinelManager) startDNSMonitoring() {
	if m.cfg.DNSMonitoringInterval < 0 {
		return
	}

	masters := map[RedisURI]struct{}{}
	if master := m.currentMaster(); !master.IsIP() {
		masters[master] = struct{}{}
	}
	replicas := map[RedisURI]struct{}{}
	for _, addr := range m.entry.AllReplicaEndpoints() {
		if !addr.IsIP() {
			replicas[addr] = struct{}{}
		}
	}
	if len(masters)+len(replicas) > 0 {
		m.dns = newDNSMonitor(m.rootCtx, m.resolver, m.entry, masters, replicas, m.cfg.DNSMonitoringInterval)
		m.dns.start()
	}

	if len(m.sentinelHosts) > 0 {
		m.scheduleSentinelDNSCheck()
	}
}

// addReplica brings a sentinel-reported replica into the pool. A replica that
// already has a pool is only unfrozen; a new one is added and then unfrozen.
func (m *SentinelManager) addReplica(ctx context.Context, addr RedisURI) {
	if !m.entry.HasReplica(addr) && !m.cfg.SkipReplicasInit {
		if err := m.entry.AddReplica(ctx, addr); err != nil {
			klog.ErrorS(err, "Can't add replica", "addr", addr)
			return
		}
		if m.entry.IsReplicaUnfrozen(addr) || m.entry.ReplicaUp(addr, FreezeManager) {
			klog.InfoS("replica added", "addr", addr)
		}
	} else if m.entry.HasReplica(addr) {
		m.replicaUp(addr)
	}
}

func (m *SentinelManager) replicaDown(addr RedisURI) {
	if m.cfg.SkipReplicasInit {
		klog.Warningf("replica: %s is down", addr)
		return
	}
	if m.entry.ReplicaDown(addr, FreezeManager) {
		klog.Warningf("replica: %s is down", addr)
	}
}

func (m *SentinelManager) replicaUp(addr RedisURI) {
	if m.cfg.SkipReplicasInit {
		klog.InfoS("replica is up", "addr", addr)
		return
	}
	if m.entry.ReplicaUp(addr, FreezeManager) {
		klog.InfoS("replica is up", "addr", addr)
	}
}

// isSameMaster filters out replicas that follow a master other than ours, as
// happens during failover transients or split views between sentinels.
func (m *SentinelManager) isSameMaster(replicaAddr, reportedMaster RedisURI) bool {
	master := m.currentMaster()
	if master != reportedMaster {
		klog.Warningf("Skipped replica up %s for master %s differs from current %s", replicaAddr, reportedMaster, master)
		return false
	}
	return true
}

// CurrentMaster returns the master cell's current value, zero if unset.
func (m *SentinelManager) CurrentMaster() RedisURI {
	return m.currentMaster()
}

// Sentinels returns the registered sentinel URIs.
func (m *SentinelManager) Sentinels() []RedisURI {
	return m.sentinels.uris()
}

// DisconnectedReplicas returns the replicas that were reported down at
// bootstrap, so collaborators skip their initial connection.
func (m *SentinelManager) DisconnectedReplicas() []RedisURI {
	out := make([]RedisURI, 0, len(m.disconnectedReplicas))
	for uri := range m.disconnectedReplicas {
		out = append(out, uri)
	}
	return out
}

// Entry returns the pool adapter the manager drives.
func (m *SentinelManager) Entry() MasterReplicaEntry {
	return m.entry
}

// Shutdown cancels the monitors, shuts down every registered sentinel client,
// and delegates to the pool entry shutdown. In-flight ticks abort through the
// shutdown gate without mutating anything.
func (m *SentinelManager) Shutdown(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.stopMonitors()
		m.cancel()

		for _, uri := range m.sentinels.uris() {
			if c := m.sentinels.remove(uri); c != nil {
				c.close()
			}
		}
		if m.entry != nil {
			err = m.entry.Shutdown(ctx)
		}
	})
	return err
}

func (m *SentinelManager) stopMonitors() {
	m.timerMu.Lock()
	m.stopped = true
	if m.scanTimer != nil {
		m.scanTimer.Stop()
	}
	if m.dnsScanTimer != nil {
		m.dnsScanTimer.Stop()
	}
	m.timerMu.Unlock()

	if m.dns != nil {
		m.dns.stop()
	}
}

func (m *SentinelManager) currentMaster() RedisURI {
	m.masterMu.Lock()
	defer m.masterMu.Unlock()
	return m.master
}

func (m *SentinelManager) setMaster(uri RedisURI) {
	m.masterMu.Lock()
	m.master = uri
	m.masterMu.Unlock()
}

// compareAndSetMaster swaps the master cell only if it still holds prev. A
// failed swap means a concurrent update won and the caller's change is
// abandoned.
func (m *SentinelManager) compareAndSetMaster(prev, next RedisURI) bool {
	m.masterMu.Lock()
	defer m.masterMu.Unlock()
	if m.master != prev {
		return false
	}
	m.master = next
	return true
}

// resolveIP resolves a sentinel-reported host/port pair to a post-NAT,
// IP-form URI.
func (m *SentinelManager) resolveIP(ctx context.Context, host, port string) (RedisURI, error) {
	ip, err := m.resolver.resolveOne(ctx, host)
	if err != nil {
		return RedisURI{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return RedisURI{}, fmt.Errorf("invalid port %q for host %s: %w", port, host, err)
	}
	return m.toURI(ip.String(), p), nil
}

// toURI builds a scheme-tagged, NAT-mapped URI from raw host/port parts.
func (m *SentinelManager) toURI(host string, port int) RedisURI {
	return m.applyNATMap(MakeURI(m.scheme, host, port))
}

func (m *SentinelManager) applyNATMap(u RedisURI) RedisURI {
	mapped := m.cfg.NATMapper(u)
	if mapped != u {
		klog.V(2).InfoS("nat mapped uri", "from", u, "to", mapped)
	}
	return mapped
}

// withCause wraps err with the last underlying failure seen, when there is
// one.
func withCause(err, cause error) error {
	if cause == nil {
		return err
	}
	return fmt.Errorf("%w: %v", err, cause)
}

// waitTimeout waits for the group up to d. Used only during bootstrap, before
// any monitor is armed.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
	}
}
