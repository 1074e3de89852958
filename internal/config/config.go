package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/die-net/realm/internal/proxy"
	"github.com/die-net/realm/internal/resolve"
)

const (
	// DefaultTCPTimeout and DefaultUDPTimeout are in seconds.
	DefaultTCPTimeout = 300
	DefaultUDPTimeout = 30
)

type Config struct {
	Log       LogConf        `yaml:"log"`
	DNS       DNSConf        `yaml:"dns"`
	Endpoints []EndpointConf `yaml:"endpoints"`
}

type DNSConf struct {
	Mode     string   `yaml:"mode"`
	Protocol string   `yaml:"protocol"`
	Servers  []string `yaml:"nameservers"`
}

type EndpointConf struct {
	Listen  string `yaml:"listen"`
	Remote  string `yaml:"remote"`
	Through string `yaml:"through"`

	UDP      bool `yaml:"udp"`
	FastOpen bool `yaml:"fast_open"`
	ZeroCopy bool `yaml:"zero_copy"`

	// Timeouts are in seconds; nil means the default and 0 disables.
	TCPTimeout *uint64 `yaml:"tcp_timeout"`
	UDPTimeout *uint64 `yaml:"udp_timeout"`
}

// GlobalOpts are command-line overrides for the file's log and dns
// sections. Empty fields leave the file's value alone.
type GlobalOpts struct {
	LogLevel    string
	LogOutput   string
	DNSMode     string
	DNSProtocol string
	DNSServers  []string
}

// Load reads and validates a config file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Apply overrides cfg's global sections with the non-empty fields of o.
func (o GlobalOpts) Apply(cfg *Config) {
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogOutput != "" {
		cfg.Log.Output = o.LogOutput
	}
	if o.DNSMode != "" {
		cfg.DNS.Mode = o.DNSMode
	}
	if o.DNSProtocol != "" {
		cfg.DNS.Protocol = o.DNSProtocol
	}
	if len(o.DNSServers) > 0 {
		cfg.DNS.Servers = o.DNSServers
	}
}

// Validate checks everything that can be checked without touching the
// network.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("no endpoints configured")
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if _, err := c.DNS.ResolverConfig(nil); err != nil {
		return err
	}
	for i, ep := range c.Endpoints {
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("endpoint %d: %w", i, err)
		}
	}
	return nil
}

// ResolverConfig converts the dns section for resolve.New.
func (d DNSConf) ResolverConfig(log *zap.Logger) (resolve.Config, error) {
	mode, err := resolve.ParseMode(d.Mode)
	if err != nil {
		return resolve.Config{}, err
	}
	protocol, err := resolve.ParseProtocol(d.Protocol)
	if err != nil {
		return resolve.Config{}, err
	}
	var servers []string
	for _, s := range d.Servers {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return resolve.Config{Mode: mode, Protocol: protocol, Servers: servers, Logger: log}, nil
}

func (e EndpointConf) Validate() error {
	if e.Listen == "" {
		return errors.New("missing listen address")
	}
	if _, _, err := net.SplitHostPort(e.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", e.Listen, err)
	}
	if e.Remote == "" {
		return errors.New("missing remote address")
	}
	if _, err := resolve.ParseRemoteAddr(e.Remote, nil); err != nil {
		return err
	}
	if _, err := ParseThrough(e.Through); err != nil {
		return err
	}
	return nil
}

// ConnectOpts derives the endpoint's read-only connection options.
func (e EndpointConf) ConnectOpts(ka net.KeepAliveConfig) (proxy.ConnectOpts, error) {
	through, err := ParseThrough(e.Through)
	if err != nil {
		return proxy.ConnectOpts{}, err
	}
	return proxy.ConnectOpts{
		TCPTimeout:  seconds(e.TCPTimeout, DefaultTCPTimeout),
		UDPTimeout:  seconds(e.UDPTimeout, DefaultUDPTimeout),
		FastOpen:    e.FastOpen,
		ZeroCopy:    e.ZeroCopy,
		SendThrough: through,
		KeepAlive:   ka,
	}, nil
}

func seconds(v *uint64, def uint64) time.Duration {
	if v == nil {
		return time.Duration(def) * time.Second
	}
	return time.Duration(*v) * time.Second
}

// ParseThrough parses a send-through address: empty, an IP (port 0), or
// ip:port.
func ParseThrough(s string) (netip.AddrPort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.AddrPort{}, nil
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap, nil
	}
	if ip, err := netip.ParseAddr(strings.Trim(s, "[]")); err == nil {
		return netip.AddrPortFrom(ip, 0), nil
	}
	return netip.AddrPort{}, fmt.Errorf("invalid through address %q: expected ip or ip:port", s)
}
