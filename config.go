package redisson

import (
	"crypto/tls"
	"errors"
	"time"
)

// ReadMode controls which nodes serve read commands. The topology manager only
// consults it for the empty-replica warning at bootstrap; routing itself is
// the dispatch layer's business.
type ReadMode int

const (
	// ReadModeMaster routes all reads to the master.
	ReadModeMaster ReadMode = iota
	// ReadModeMasterReplica routes reads to both master and replicas.
	ReadModeMasterReplica
	// ReadModeReplica routes reads to replicas only.
	ReadModeReplica
)

func (m ReadMode) String() string {
	switch m {
	case ReadModeMaster:
		return "MASTER"
	case ReadModeMasterReplica:
		return "MASTER_SLAVE"
	case ReadModeReplica:
		return "SLAVE"
	}
	return "UNKNOWN"
}

// Construction-time failures. Everything past construction is logged and
// retried rather than surfaced.
var (
	// ErrMasterNameRequired is returned when the config has no master name.
	ErrMasterNameRequired = errors.New("masterName parameter is not defined")
	// ErrNoSentinelAddresses is returned when the config has no seed sentinels.
	ErrNoSentinelAddresses = errors.New("at least one sentinel node should be defined")
	// ErrMasterUndefined is returned when SENTINEL GET-MASTER-ADDR-BY-NAME
	// comes back empty during bootstrap.
	ErrMasterUndefined = errors.New("master node is undefined, SENTINEL GET-MASTER-ADDR-BY-NAME command returns empty result")
	// ErrCantConnect is returned when no seed sentinel produced a topology.
	ErrCantConnect = errors.New("can't connect to servers")
)

// SentinelConfig configures a SentinelManager. MasterName and
// SentinelAddresses are required; everything else has a usable default.
type SentinelConfig struct {
	// MasterName is the sentinel logical master name to monitor.
	MasterName string

	// SentinelAddresses are the seed sentinel URIs, e.g.
	// "redis://sentinel1:26379".
	SentinelAddresses []string

	// SentinelPassword authenticates sentinel connections, and only applies
	// once the auth probe has established that the deployment requires auth.
	SentinelPassword string

	// Password authenticates data-plane connections. A non-empty value
	// triggers the auth probe at bootstrap.
	Password string

	// Database selects the redis database on data-plane connections.
	Database int

	// CheckSentinelsList enforces that at least two sentinels are discovered
	// at bootstrap. Only meaningful together with SentinelsDiscovery.
	CheckSentinelsList bool

	// SentinelsDiscovery enables reconciliation of the sentinel fleet itself
	// from SENTINEL SENTINELS output.
	SentinelsDiscovery bool

	// CheckReplicaStatusWithSyncing extends the replica down-predicate with
	// the master-link-status field.
	CheckReplicaStatusWithSyncing bool

	// SkipReplicasInit suppresses the initial replica connections and all
	// replica pool mutations during reconciliation.
	SkipReplicasInit bool

	// ScanInterval is the period of sentinel reconciliation.
	ScanInterval time.Duration

	// DNSMonitoringInterval is the period of DNS re-resolution. A negative
	// value disables DNS monitoring entirely.
	DNSMonitoringInterval time.Duration

	// ConnectTimeout bounds connection establishment, and also the bootstrap
	// wait for initial sentinel registrations.
	ConnectTimeout time.Duration

	// Timeout bounds individual commands.
	Timeout time.Duration

	// NATMapper rewrites every address crossing the client boundary.
	// Identity when nil.
	NATMapper NATMapper

	// ReadMode only affects the empty-replica warning at bootstrap.
	ReadMode ReadMode

	// TLSConfig, when set, is handed as-is to the underlying client.
	TLSConfig *tls.Config
}

func (cfg *SentinelConfig) withDefaults() (*SentinelConfig, error) {
	if cfg.MasterName == "" {
		return nil, ErrMasterNameRequired
	}
	if len(cfg.SentinelAddresses) == 0 {
		return nil, ErrNoSentinelAddresses
	}

	out := *cfg
	if out.ScanInterval <= 0 {
		out.ScanInterval = time.Second
	}
	if out.DNSMonitoringInterval == 0 {
		out.DNSMonitoringInterval = 5 * time.Second
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 10 * time.Second
	}
	if out.Timeout <= 0 {
		out.Timeout = 3 * time.Second
	}
	if out.NATMapper == nil {
		out.NATMapper = IdentityNATMapper
	}
	return &out, nil
}
