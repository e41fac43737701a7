// Package resolve provides reverse-DNS lookups for hop addresses. It is
// the one enrichment collaborator this module keeps (see DESIGN.md for
// why ASN/GeoIP lookups were not ported): the TUI and batch report
// formatters call into a Resolver to turn a hop's IP into a hostname.
package resolve

import (
	"context"
	"net"
	"sync"
	"time"
)

// Method selects which DNS path a Resolver takes, lifted from
// original_source's DnsResolveMethod (SPEC_FULL.md §11).
type Method int

const (
	// MethodSystem uses the OS resolver (/etc/resolv.conf, hosts file,
	// NSS).
	MethodSystem Method = iota
	// MethodResolv forces the Go resolver to read /etc/resolv.conf
	// directly, bypassing cgo/NSS.
	MethodResolv
	// MethodGoogle queries Google's public resolver (8.8.8.8).
	MethodGoogle
	// MethodCloudflare queries Cloudflare's public resolver (1.1.1.1).
	MethodCloudflare
)

func (m Method) String() string {
	switch m {
	case MethodSystem:
		return "system"
	case MethodResolv:
		return "resolv"
	case MethodGoogle:
		return "google"
	case MethodCloudflare:
		return "cloudflare"
	default:
		return "unknown"
	}
}

// ParseMethod parses a config string into a Method, defaulting to
// MethodSystem for an unrecognized value.
func ParseMethod(s string) Method {
	switch s {
	case "resolv":
		return MethodResolv
	case "google":
		return MethodGoogle
	case "cloudflare":
		return MethodCloudflare
	default:
		return MethodSystem
	}
}

// Resolver looks up a hostname for an address. Implementations must be
// safe for concurrent use: the TUI and report formatters may both
// resolve hops from independent goroutines.
type Resolver interface {
	// Lookup returns the first PTR hostname for addr, with the trailing
	// dot stripped, or "" if none was found within the resolver's
	// configured timeout.
	Lookup(ctx context.Context, addr net.IP) string
}

// systemResolver is the net.Resolver-backed implementation. It is the
// only implementation this module ships: the original's four-way
// AddressMode/DnsResolveMethod split is exposed through cfg, not four
// concrete types, since net.Resolver's Dial hook covers every case.
type systemResolver struct {
	resolver *net.Resolver
	timeout  time.Duration

	mu    sync.Mutex
	cache map[string]string
}

// New builds a Resolver using method and timeout. MethodSystem and
// MethodResolv differ only in the PreferGo flag of the net.Resolver built
// here, which selects between the platform resolver and Go's own
// /etc/resolv.conf reader; MethodGoogle and
// MethodCloudflare dial a fixed public resolver address directly.
func New(method Method, timeout time.Duration) Resolver {
	r := &net.Resolver{}

	switch method {
	case MethodResolv:
		r.PreferGo = true
	case MethodGoogle:
		r.PreferGo = true
		r.Dial = dialFixed("8.8.8.8:53")
	case MethodCloudflare:
		r.PreferGo = true
		r.Dial = dialFixed("1.1.1.1:53")
	}

	return &systemResolver{
		resolver: r,
		timeout:  timeout,
		cache:    make(map[string]string),
	}
}

func dialFixed(addr string) func(ctx context.Context, network, _ string) (net.Conn, error) {
	return func(ctx context.Context, network, _ string) (net.Conn, error) {
		d := net.Dialer{}
		return d.DialContext(ctx, network, addr)
	}
}

// Lookup implements Resolver.
func (r *systemResolver) Lookup(ctx context.Context, addr net.IP) string {
	key := addr.String()

	r.mu.Lock()
	if hostname, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return hostname
	}
	r.mu.Unlock()

	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	names, err := r.resolver.LookupAddr(lctx, key)
	hostname := ""
	if err == nil && len(names) > 0 {
		hostname = trimTrailingDot(names[0])
	}

	r.mu.Lock()
	r.cache[key] = hostname
	r.mu.Unlock()

	return hostname
}

func trimTrailingDot(s string) string {
	if n := len(s); n > 0 && s[n-1] == '.' {
		return s[:n-1]
	}
	return s
}

// Noop is a Resolver that never resolves anything, used when reverse
// DNS is disabled in config.
type Noop struct{}

// Lookup implements Resolver.
func (Noop) Lookup(context.Context, net.IP) string { return "" }
