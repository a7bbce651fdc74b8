package redisson

import (
	"context"
	"fmt"
	"net"
)

// ipLookuper is the subset of net.Resolver the resolver needs. It exists so
// tests can substitute canned lookups.
type ipLookuper interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// resolver turns hostnames into IP addresses. IP literals short-circuit
// without touching DNS, so callers can feed it whatever a sentinel reported.
type resolver struct {
	lookup ipLookuper
}

func newResolver() *resolver {
	return &resolver{lookup: net.DefaultResolver}
}

// resolveOne resolves host to a single address. IPv4 records win over IPv6
// when both exist, which keeps repeated lookups of a dual-stack name stable.
func (r *resolver) resolveOne(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	addrs, err := r.lookup.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("unable to resolve %s: no addresses returned", host)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return addrs[0].IP, nil
}

// resolveAll resolves host to every address behind it. Used by sentinel DNS
// discovery, where a single name may front several sentinel nodes.
func (r *resolver) resolveAll(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	addrs, err := r.lookup.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %s: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}
