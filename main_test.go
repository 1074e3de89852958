package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/die-net/realm/internal/config"
)

func TestParseTCPKeepAlive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    net.KeepAliveConfig
		wantErr bool
	}{
		{in: "on", want: net.KeepAliveConfig{Enable: true}},
		{in: " OFF ", want: net.KeepAliveConfig{}},
		{in: "45:45:3", want: net.KeepAliveConfig{Enable: true, Idle: 45 * time.Second, Interval: 45 * time.Second, Count: 3}},
		{in: "", wantErr: true},
		{in: "45:45", wantErr: true},
		{in: "0:45:3", wantErr: true},
		{in: "45:x:3", wantErr: true},
		{in: "45:45:-1", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseTCPKeepAlive(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoadConfigFromFlags(t *testing.T) {
	t.Parallel()

	ep := endpointFlags{
		listen:     "127.0.0.1:5000",
		remote:     "example.com:443",
		through:    "127.0.0.1",
		zeroCopy:   true,
		tcpTimeout: 7,
		udpTimeout: config.DefaultUDPTimeout,
	}
	cfg, err := loadConfig("", ep, config.GlobalOpts{LogLevel: "debug", DNSMode: "ipv6_only"})
	require.NoError(t, err)

	require.Len(t, cfg.Endpoints, 1)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "ipv6_only", cfg.DNS.Mode)

	opts, err := cfg.Endpoints[0].ConnectOpts(net.KeepAliveConfig{})
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, opts.TCPTimeout)
	assert.True(t, opts.ZeroCopy)
	assert.False(t, opts.FastOpen)
	assert.Equal(t, "127.0.0.1:0", opts.SendThrough.String())
}

func TestLoadConfigFileWithOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "realm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log: {level: info}
dns: {protocol: udp}
endpoints:
  - {listen: "127.0.0.1:5000", remote: "127.0.0.1:8080"}
`), 0o600))

	// Endpoint flags are ignored once a file is given.
	cfg, err := loadConfig(path, endpointFlags{listen: "127.0.0.1:1", remote: "127.0.0.1:2"}, config.GlobalOpts{DNSProtocol: "tcp"})
	require.NoError(t, err)
	require.Len(t, cfg.Endpoints, 1)
	assert.Equal(t, "127.0.0.1:8080", cfg.Endpoints[0].Remote)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "tcp", cfg.DNS.Protocol)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	_, err := loadConfig("", endpointFlags{listen: "127.0.0.1:5000"}, config.GlobalOpts{})
	assert.Error(t, err)

	_, err = loadConfig("", endpointFlags{listen: "127.0.0.1:5000", remote: "127.0.0.1:80"}, config.GlobalOpts{DNSMode: "bogus"})
	assert.Error(t, err)
}

func TestFeatures(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, features())
}
