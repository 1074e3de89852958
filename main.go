package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/realm/internal/config"
	"github.com/die-net/realm/internal/conn"
	"github.com/die-net/realm/internal/dialer"
	"github.com/die-net/realm/internal/proxy"
	"github.com/die-net/realm/internal/relay"
	"github.com/die-net/realm/internal/resolve"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// endpointFlags holds the single-endpoint command line form.
type endpointFlags struct {
	listen, remote, through string
	udp, fastOpen, zeroCopy bool
	tcpTimeout, udpTimeout  uint64
}

func run() error {
	var (
		ep   endpointFlags
		opts config.GlobalOpts
	)

	pflag.StringVarP(&ep.listen, "listen", "l", "", "Listen address (e.g. 0.0.0.0:5000)")
	pflag.StringVarP(&ep.remote, "remote", "r", "", "Remote address as host:port")
	pflag.StringVarP(&ep.through, "through", "x", "", "Local address to send through: ip or ip:port")
	pflag.BoolVarP(&ep.udp, "udp", "u", false, "Enable UDP relay (not supported, logged and ignored)")
	pflag.BoolVarP(&ep.fastOpen, "tfo", "f", false, "Connect to the remote with TCP Fast Open")
	pflag.BoolVarP(&ep.zeroCopy, "splice", "z", false, "Relay with zero-copy splice where supported")
	configPath := pflag.StringP("config", "c", "", "Config file (YAML or JSON). Overrides -l/-r/-x/-u/-f/-z.")
	pflag.Uint64Var(&ep.tcpTimeout, "tcp-timeout", config.DefaultTCPTimeout, "Seconds allowed for resolving and connecting to the remote, 0 disables")
	pflag.Uint64Var(&ep.udpTimeout, "udp-timeout", config.DefaultUDPTimeout, "UDP association timeout in seconds")

	pflag.StringVar(&opts.LogLevel, "log-level", "", "Log level: off|error|warn|info|debug|trace")
	pflag.StringVar(&opts.LogOutput, "log-output", "", "Log output: stdout|stderr|<path>")
	pflag.StringVar(&opts.DNSMode, "dns-mode", "", "DNS mode: ipv4_only|ipv6_only|ipv4_then_ipv6|ipv6_then_ipv4|ipv4_and_ipv6")
	pflag.StringVar(&opts.DNSProtocol, "dns-protocol", "", "DNS protocol: tcp_and_udp|tcp|udp")
	pflag.StringSliceVar(&opts.DNSServers, "dns-servers", nil, "Comma-separated DNS servers as ip[:port]. Empty uses the system resolver.")

	debugListen := pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
	tcpKeepAlive := pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
	showVersion := pflag.BoolP("version", "v", false, "Print version and supported features, then exit")

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *showVersion {
		fmt.Printf("realm %s [%s]\n", version, features())
		return nil
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	cfg, err := loadConfig(*configPath, ep, opts)
	if err != nil {
		return err
	}

	log, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rc, err := cfg.DNS.ResolverConfig(log.Named("dns"))
	if err != nil {
		return err
	}
	resolver, err := resolve.New(rc)
	if err != nil {
		return fmt.Errorf("dns: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Info("debug listening", zap.String("listen", *debugListen))
	}

	var servers []*proxy.Server
	for _, ep := range cfg.Endpoints {
		srv, err := startEndpoint(ctx, g, ep, ka, resolver, log)
		if err != nil {
			return err
		}
		servers = append(servers, srv)
	}

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Info("shutting down")
	for _, srv := range servers {
		srv.Wait()
	}
	return err
}

func startEndpoint(ctx context.Context, g *errgroup.Group, ep config.EndpointConf, ka net.KeepAliveConfig, resolver *resolve.Resolver, log *zap.Logger) (*proxy.Server, error) {
	opts, err := ep.ConnectOpts(ka)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", ep.Listen, err)
	}
	remote, err := resolve.ParseRemoteAddr(ep.Remote, resolver)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", ep.Listen, err)
	}

	log = log.With(zap.String("listen", ep.Listen), zap.Stringer("remote", remote))
	if ep.UDP {
		log.Warn("udp relay is not supported, relaying tcp only")
	}
	if opts.FastOpen && !dialer.FastOpenSupported {
		log.Warn("tcp fast open is not supported on this platform")
	}
	if opts.ZeroCopy && !relay.SpliceSupported {
		log.Warn("zero-copy splice is not supported on this platform")
	}

	ln, err := conn.ListenTCP(ctx, "tcp", ep.Listen, ka)
	if err != nil {
		return nil, err
	}
	srv := proxy.NewServer(ctx, proxy.NewHandler(remote, opts, log), log)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("tcp serve %s: %w", ep.Listen, err)
		}
		return nil
	})
	log.Info("tcp relay listening", zap.Bool("fast_open", opts.FastOpen), zap.Bool("zero_copy", opts.ZeroCopy))
	return srv, nil
}

// loadConfig reads the config file if one was given, otherwise it builds a
// single endpoint from the command line. Global options override either.
func loadConfig(path string, ep endpointFlags, opts config.GlobalOpts) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	} else {
		if ep.listen == "" || ep.remote == "" {
			return nil, errors.New("no endpoint configured (set -l and -r, or -c)")
		}
		tcpTimeout, udpTimeout := ep.tcpTimeout, ep.udpTimeout
		cfg = &config.Config{Endpoints: []config.EndpointConf{{
			Listen:     ep.listen,
			Remote:     ep.remote,
			Through:    ep.through,
			UDP:        ep.udp,
			FastOpen:   ep.fastOpen,
			ZeroCopy:   ep.zeroCopy,
			TCPTimeout: &tcpTimeout,
			UDPTimeout: &udpTimeout,
		}}}
	}

	opts.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func features() string {
	var f []string
	if dialer.FastOpenSupported {
		f = append(f, "tfo")
	}
	if relay.SpliceSupported {
		f = append(f, "zero-copy")
	}
	if len(f) == 0 {
		return "none"
	}
	return strings.Join(f, " ")
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositive(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositive(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositive(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(keepIdle) * time.Second,
		Interval: time.Duration(keepIntvl) * time.Second,
		Count:    keepCnt,
	}, nil
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}
