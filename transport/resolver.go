package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sipware/sipcore/sip"
)

// ResolveOutcome classifies what a cache lookup found, per spec §6's
// resolver capability: a concrete endpoint, a negative entry (don't retry
// soon), or nothing cached yet (go async).
type ResolveOutcome int

const (
	// ResolveMiss means nothing is cached; the caller should kick off
	// resolve_async.
	ResolveMiss ResolveOutcome = iota
	// ResolveHit means a usable endpoint was found in cache.
	ResolveHit
	// ResolveNegative means a prior resolution failed recently; do not
	// retry immediately.
	ResolveNegative
)

// Resolver is the DNS capability the transport consumes, split into a
// non-blocking cache read and a blocking async resolution, per spec §6 and
// §4.4's "DNS strategy".
type Resolver interface {
	ResolveFromCache(ctx context.Context, host string, port int, network string, preferV6 bool) (sip.Addr, ResolveOutcome)
	ResolveAsync(ctx context.Context, host string, port int, network string, preferV6 bool) (sip.Addr, error)
}

// cacheEntry holds either a resolved address or a negative result, with an
// expiry so stale entries don't wedge a host forever.
type cacheEntry struct {
	addr     sip.Addr
	negative bool
	expires  time.Time
}

// DNSResolver is the default Resolver, grounded on the teacher's
// TransportLayer.resolveAddr/resolveAddrIP/resolveAddrSRV (sip/transport_layer.go):
// it tries SRV first when dnsPreferSRV is set, falls back to plain A/AAAA,
// and remembers both outcomes so ResolveFromCache can answer synchronously
// on retransmits instead of blocking every send.
type DNSResolver struct {
	dns          *net.Resolver
	dnsPreferSRV bool

	mu        sync.RWMutex
	cache     map[string]cacheEntry
	positiveTTL time.Duration
	negativeTTL time.Duration
}

// NewDNSResolver builds a Resolver around the standard library's
// *net.Resolver, with positive entries cached for 30s and negative entries
// for 10s (short enough that a host coming back up is noticed quickly,
// long enough that retransmit storms don't reattempt DNS wasted work).
func NewDNSResolver(dns *net.Resolver, preferSRV bool) *DNSResolver {
	return &DNSResolver{
		dns:          dns,
		dnsPreferSRV: preferSRV,
		cache:        make(map[string]cacheEntry),
		positiveTTL:  30 * time.Second,
		negativeTTL:  10 * time.Second,
	}
}

func cacheKey(host string, port int, network string, preferV6 bool) string {
	return fmt.Sprintf("%s/%s/%d/%v", network, host, port, preferV6)
}

func (r *DNSResolver) ResolveFromCache(ctx context.Context, host string, port int, network string, preferV6 bool) (sip.Addr, ResolveOutcome) {
	if ip := net.ParseIP(host); ip != nil {
		return sip.Addr{IP: ip, Port: port, Hostname: host}, ResolveHit
	}

	key := cacheKey(host, port, network, preferV6)
	r.mu.RLock()
	e, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return sip.Addr{}, ResolveMiss
	}
	if e.negative {
		return sip.Addr{}, ResolveNegative
	}
	return e.addr, ResolveHit
}

func (r *DNSResolver) ResolveAsync(ctx context.Context, host string, port int, network string, preferV6 bool) (sip.Addr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return sip.Addr{IP: ip, Port: port, Hostname: host}, nil
	}

	key := cacheKey(host, port, network, preferV6)
	addr, err := r.resolve(ctx, host, port, network, preferV6)
	r.mu.Lock()
	if err != nil {
		r.cache[key] = cacheEntry{negative: true, expires: time.Now().Add(r.negativeTTL)}
	} else {
		r.cache[key] = cacheEntry{addr: addr, expires: time.Now().Add(r.positiveTTL)}
	}
	r.mu.Unlock()
	return addr, err
}

func (r *DNSResolver) resolve(ctx context.Context, host string, port int, network string, preferV6 bool) (sip.Addr, error) {
	if r.dnsPreferSRV {
		if addr, err := r.resolveSRV(ctx, host, network); err == nil {
			return addr, nil
		}
	}

	ipNet := "ip4"
	if preferV6 {
		ipNet = "ip6"
	}
	ips, err := r.dns.LookupIP(ctx, ipNet, host)
	if err != nil || len(ips) == 0 {
		ips, err = r.dns.LookupIP(ctx, "ip", host)
	}
	if err != nil {
		if r.dnsPreferSRV {
			return sip.Addr{}, err
		}
		if addr, srvErr := r.resolveSRV(ctx, host, network); srvErr == nil {
			return addr, nil
		}
		return sip.Addr{}, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(ips) == 0 {
		return sip.Addr{}, fmt.Errorf("resolve %s: no addresses", host)
	}

	p := port
	if p == 0 {
		p = sip.DefaultPort(network)
	}
	return sip.Addr{IP: ips[0], Port: p, Hostname: host}, nil
}

func (r *DNSResolver) resolveSRV(ctx context.Context, host string, network string) (sip.Addr, error) {
	proto := NetworkToLower(network)
	_, srvs, err := r.dns.LookupSRV(ctx, "sip", proto, host)
	if err != nil || len(srvs) == 0 {
		return sip.Addr{}, fmt.Errorf("SRV lookup for %s: %w", host, err)
	}
	target := srvs[0]
	targetHost := target.Target
	if len(targetHost) > 0 && targetHost[len(targetHost)-1] == '.' {
		targetHost = targetHost[:len(targetHost)-1]
	}

	ips, err := r.dns.LookupIP(ctx, "ip", targetHost)
	if err != nil || len(ips) == 0 {
		return sip.Addr{}, fmt.Errorf("resolve SRV target %s: %w", targetHost, err)
	}
	return sip.Addr{IP: ips[0], Port: int(target.Port), Hostname: targetHost}, nil
}
