// Package netcheck answers "can we reach the collector right now".
package netcheck

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"pav-go/internal/config"
	"pav-go/internal/pav"
)

// DialChecker reports the device online when a TCP connection to the
// probe address succeeds within the timeout. One dial, no payload: this
// is a connectivity check, not a health check of the collector.
type DialChecker struct {
	Addr    string // host:port
	Timeout time.Duration
}

// NewDialChecker builds a checker from config, deriving the probe address
// from the sink when none is configured explicitly.
func NewDialChecker(netCfg config.NetworkConfig, sinkCfg config.SinkConfig) *DialChecker {
	timeout := time.Duration(netCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	addr := netCfg.ProbeAddr
	if addr == "" {
		addr = probeAddrFromSink(sinkCfg)
	}
	return &DialChecker{Addr: addr, Timeout: timeout}
}

func (c *DialChecker) Online(ctx context.Context) bool {
	if c.Addr == "" {
		return false
	}
	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// probeAddrFromSink derives a host:port to dial from the sink config.
func probeAddrFromSink(cfg config.SinkConfig) string {
	switch cfg.Type {
	case "http":
		u, err := url.Parse(cfg.URL)
		if err != nil || u.Host == "" {
			return ""
		}
		if u.Port() != "" {
			return u.Host
		}
		if u.Scheme == "http" {
			return u.Host + ":80"
		}
		return u.Host + ":443"
	case "mqtt":
		addr := cfg.MQTTBroker
		for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://", "mqtt://"} {
			addr = strings.TrimPrefix(addr, scheme)
		}
		if addr != "" && !strings.Contains(addr, ":") {
			addr += ":1883"
		}
		return addr
	case "s3":
		if cfg.S3Region == "" {
			return "s3.amazonaws.com:443"
		}
		return "s3." + cfg.S3Region + ".amazonaws.com:443"
	default:
		return ""
	}
}

// Static is a Reachability that always answers the same. Use in tests and
// for the memory sink, which needs no network.
type Static bool

func (s Static) Online(context.Context) bool { return bool(s) }

// Compile-time checks that both checkers implement the Reachability interface
var (
	_ pav.Reachability = (*DialChecker)(nil)
	_ pav.Reachability = Static(true)
)
