package redisson

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/go-redis/redis/v8"
)

// sentinelConn is the typed command surface of a single sentinel node: the
// four commands the topology manager issues, plus the handle's own address.
type sentinelConn interface {
	// addr is the URI this handle was created for.
	addr() RedisURI

	// ping probes the connection. Used by the auth probe and before
	// registration.
	ping(ctx context.Context) error

	// masterAddrByName runs SENTINEL GET-MASTER-ADDR-BY-NAME. Both returns
	// are empty when the sentinel doesn't know the master.
	masterAddrByName(ctx context.Context, name string) (host, port string, err error)

	// replicas runs SENTINEL SLAVES and returns one field map per replica.
	replicas(ctx context.Context, name string) ([]map[string]string, error)

	// sentinels runs SENTINEL SENTINELS and returns one field map per peer
	// sentinel. The responding sentinel itself is never in the list.
	sentinels(ctx context.Context, name string) ([]map[string]string, error)

	close() error
}

// sentinelDialFunc builds a sentinelConn for a URI. The manager swaps this
// out in tests.
type sentinelDialFunc func(uri RedisURI) sentinelConn

// redisSentinelConn implements sentinelConn on a go-redis SentinelClient.
type redisSentinelConn struct {
	uri RedisURI
	sc  *redis.SentinelClient
}

// dialSentinelFunc returns the production sentinelDialFunc for the config.
// password is empty until the auth probe latches usePassword.
func dialSentinelFunc(cfg *SentinelConfig, password string) sentinelDialFunc {
	return func(uri RedisURI) sentinelConn {
		sc := redis.NewSentinelClient(&redis.Options{
			Addr:         uri.HostPort(),
			Password:     password,
			DialTimeout:  cfg.ConnectTimeout,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			TLSConfig:    cfg.TLSConfig,
		})
		return &redisSentinelConn{uri: uri, sc: sc}
	}
}

func (c *redisSentinelConn) addr() RedisURI { return c.uri }

func (c *redisSentinelConn) ping(ctx context.Context) error {
	cmd := redis.NewStatusCmd(ctx, "ping")
	_ = c.sc.Process(ctx, cmd)
	return cmd.Err()
}

func (c *redisSentinelConn) masterAddrByName(ctx context.Context, name string) (string, string, error) {
	addr, err := c.sc.GetMasterAddrByName(ctx, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	if len(addr) < 2 || addr[0] == "" {
		return "", "", nil
	}
	return addr[0], addr[1], nil
}

func (c *redisSentinelConn) replicas(ctx context.Context, name string) ([]map[string]string, error) {
	rows, err := c.sc.Slaves(ctx, name).Result()
	if err != nil {
		return nil, err
	}
	return fieldMaps(rows), nil
}

func (c *redisSentinelConn) sentinels(ctx context.Context, name string) ([]map[string]string, error) {
	rows, err := c.sc.Sentinels(ctx, name).Result()
	if err != nil {
		return nil, err
	}
	return fieldMaps(rows), nil
}

func (c *redisSentinelConn) close() error {
	return c.sc.Close()
}

// fieldMaps converts the raw reply of SENTINEL SLAVES / SENTINEL SENTINELS,
// a list of flat key/value arrays, into one map per node. Rows that aren't
// key/value arrays of strings are dropped rather than failing the batch.
func fieldMaps(rows []interface{}) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		fields, ok := row.([]interface{})
		if !ok {
			continue
		}
		m := make(map[string]string, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			k, kok := fields[i].(string)
			v, vok := fields[i+1].(string)
			if kok && vok {
				m[k] = v
			}
		}
		out = append(out, m)
	}
	return out
}

// isReplicaDown is the down-predicate over a sentinel-reported node. The
// flags field decides on its own unless checkSyncing is set and the node
// reported a master-link-status, in which case a link error also counts.
func isReplicaDown(flags, masterLinkStatus string, checkSyncing bool) bool {
	down := strings.Contains(flags, "s_down") || strings.Contains(flags, "disconnected")
	if checkSyncing && masterLinkStatus != "" {
		return down || strings.Contains(masterLinkStatus, "err")
	}
	return down
}

// isAuthRequiredError reports whether err is the server telling us it wants
// authentication we didn't send.
func isAuthRequiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "NOAUTH")
}

// isConnectionError reports whether err looks like a transport-level failure
// rather than a command rejection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
