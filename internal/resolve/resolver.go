package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultQueryTimeout = 5 * time.Second

	// systemTTL is how long answers from the system resolver are cached,
	// since it does not expose record TTLs.
	systemTTL = 30 * time.Second
	minTTL    = time.Second
	maxTTL    = 5 * time.Minute
)

// Config configures a Resolver.
type Config struct {
	Mode     Mode
	Protocol Protocol

	// Servers lists DNS servers as ip or ip:port (port 53 implied). When
	// empty, the system resolver is used and Protocol is ignored.
	Servers []string

	// Timeout bounds each query to a single server. Zero means 5s.
	Timeout time.Duration

	Logger *zap.Logger
}

// Resolver looks up host names according to its Config. It is safe for
// concurrent use and is meant to be shared by every connection.
type Resolver struct {
	mode     Mode
	protocol Protocol
	servers  []string
	timeout  time.Duration
	log      *zap.Logger

	system *net.Resolver
	cache  *cache.Cache
	group  singleflight.Group
}

// New constructs a Resolver, validating the configured servers.
func New(cfg Config) (*Resolver, error) {
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		hp, err := normalizeServer(s)
		if err != nil {
			return nil, err
		}
		servers = append(servers, hp)
	}

	if _, ok := modeNames[cfg.Mode]; !ok {
		return nil, fmt.Errorf("invalid dns mode: %v", cfg.Mode)
	}
	if _, ok := protocolNames[cfg.Protocol]; !ok {
		return nil, fmt.Errorf("invalid dns protocol: %v", cfg.Protocol)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Resolver{
		mode:     cfg.Mode,
		protocol: cfg.Protocol,
		servers:  servers,
		timeout:  timeout,
		log:      log,
		system:   net.DefaultResolver,
		cache:    cache.New(systemTTL, time.Minute),
	}, nil
}

var defaultResolver = sync.OnceValue(func() *Resolver {
	r, _ := New(Config{})
	return r
})

// Default returns a process-wide Resolver using the system resolver in
// ModeIPv4ThenIPv6.
func Default() *Resolver {
	return defaultResolver()
}

func normalizeServer(s string) (string, error) {
	s = strings.TrimSpace(s)
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.String(), nil
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return "", fmt.Errorf("invalid dns server %q: expected ip or ip:port", s)
	}
	return netip.AddrPortFrom(addr, 53).String(), nil
}

// Lookup returns the first address for host under the configured mode.
// Failures are reported as *ResolutionError.
func (r *Resolver) Lookup(ctx context.Context, host string) (netip.Addr, error) {
	if addr, ok := r.cache.Get(host); ok {
		return addr.(netip.Addr), nil
	}
	if err := ctx.Err(); err != nil {
		return netip.Addr{}, &ResolutionError{Host: host, Err: err}
	}

	ch := r.group.DoChan(host, func() (any, error) {
		// Detach from the first caller so that its cancellation does not
		// fail every waiter; each waiter still honors its own ctx below.
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.queryBudget())
		defer cancel()
		return r.lookup(qctx, host)
	})

	select {
	case <-ctx.Done():
		return netip.Addr{}, &ResolutionError{Host: host, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return netip.Addr{}, &ResolutionError{Host: host, Err: res.Err}
		}
		return res.Val.(netip.Addr), nil
	}
}

// queryBudget bounds one full lookup: every phase, family and server.
func (r *Resolver) queryBudget() time.Duration {
	n := len(r.servers)
	if n == 0 {
		n = 1
	}
	if r.protocol == ProtocolTCPAndUDP {
		n *= 2
	}
	return time.Duration(n*2) * r.timeout
}

func (r *Resolver) lookup(ctx context.Context, host string) (netip.Addr, error) {
	var lastErr error
	for _, phase := range r.mode.phases() {
		var (
			addrs []netip.Addr
			ttl   = maxTTL
		)
		for _, fam := range phase {
			got, t, err := r.lookupFamily(ctx, host, fam)
			if err != nil {
				lastErr = err
				continue
			}
			addrs = append(addrs, got...)
			ttl = min(ttl, t)
		}
		if len(addrs) > 0 {
			r.cache.Set(host, addrs[0], max(minTTL, ttl))
			return addrs[0], nil
		}
	}
	if lastErr != nil {
		return netip.Addr{}, lastErr
	}
	return netip.Addr{}, ErrNoAddress
}

func (r *Resolver) lookupFamily(ctx context.Context, host string, fam family) ([]netip.Addr, time.Duration, error) {
	if len(r.servers) == 0 {
		return r.lookupSystem(ctx, host, fam)
	}

	qtype := dns.TypeA
	if fam == family6 {
		qtype = dns.TypeAAAA
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, err := r.exchange(ctx, m, server)
		if err != nil {
			r.log.Debug("dns query failed", zap.String("server", server), zap.String("host", host), zap.Error(err))
			lastErr = err
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, 0, nil
		default:
			lastErr = fmt.Errorf("dns %s: %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}
		addrs, ttl := parseAnswer(resp, qtype)
		return addrs, ttl, nil
	}
	return nil, 0, lastErr
}

func (r *Resolver) exchange(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
	switch r.protocol {
	case ProtocolUDP:
		return r.exchangeNet(ctx, m, server, "udp")
	case ProtocolTCP:
		return r.exchangeNet(ctx, m, server, "tcp")
	default:
		resp, err := r.exchangeNet(ctx, m, server, "udp")
		if err == nil && !resp.Truncated {
			return resp, nil
		}
		return r.exchangeNet(ctx, m, server, "tcp")
	}
}

func (r *Resolver) exchangeNet(ctx context.Context, m *dns.Msg, server, network string) (*dns.Msg, error) {
	c := &dns.Client{Net: network, Timeout: r.timeout}
	resp, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("dns %s %s: %w", network, server, err)
	}
	return resp, nil
}

func parseAnswer(resp *dns.Msg, qtype uint16) ([]netip.Addr, time.Duration) {
	var (
		addrs []netip.Addr
		ttl   = maxTTL
	)
	for _, rr := range resp.Answer {
		var ip net.IP
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				ip = v.A
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				ip = v.AAAA
			}
		}
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addrs = append(addrs, addr.Unmap())
		ttl = min(ttl, time.Duration(rr.Header().Ttl)*time.Second)
	}
	return addrs, ttl
}

func (r *Resolver) lookupSystem(ctx context.Context, host string, fam family) ([]netip.Addr, time.Duration, error) {
	network := "ip4"
	if fam == family6 {
		network = "ip6"
	}
	addrs, err := r.system.LookupNetIP(ctx, network, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	for i := range addrs {
		addrs[i] = addrs[i].Unmap()
	}
	return addrs, systemTTL, nil
}
