package discord

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultHealthInterval = 30 * time.Second
	dnsQueryTimeout       = 5 * time.Second
	dnsTotalTimeout       = 10 * time.Second
	tcpConnectTimeout     = 5 * time.Second

	// Successful TCP probes are logged once per this many passes.
	tcpLogEvery = 60
)

var fallbackResolvers = []string{"8.8.8.8", "1.1.1.1", "208.67.222.222", "9.9.9.9"}

func defaultEndpoints() []string {
	return []string{
		"discord.com:443",
		"gateway.discord.gg:443",
		"cdn.discordapp.com:443",
		"discordapp.com:443",
	}
}

// HealthChecker probes DNS and TCP reachability of the provider. Full checks
// are rate limited; callers between intervals get the cached verdict.
type HealthChecker struct {
	hostname  string
	endpoints []string
	interval  time.Duration
	state     *ConnState

	osLookup  func(ctx context.Context, host string) ([]string, error)
	altLookup func(ctx context.Context, server, host string) ([]string, error)
	dial      func(addr string) (net.Conn, error)
	now       func() time.Time

	mu           sync.Mutex
	lastCheck    time.Time
	lastResult   bool
	tcpSuccesses int
}

// NewHealthChecker builds a checker over the provider's public endpoints.
// state may be nil; diagnostics are then dropped.
func NewHealthChecker(state *ConnState) *HealthChecker {
	return &HealthChecker{
		hostname:  "discord.com",
		endpoints: defaultEndpoints(),
		interval:  defaultHealthInterval,
		state:     state,
		osLookup:  systemLookup,
		altLookup: serverLookup,
		dial: func(addr string) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, tcpConnectTimeout)
		},
		now: time.Now,
	}
}

// Check returns the cached verdict inside the rate-limit window, otherwise
// runs a full probe.
func (h *HealthChecker) Check() bool {
	ok, _ := h.Tick()
	return ok
}

// Tick is Check for periodic callers: fresh reports whether a full probe
// actually ran rather than the cached verdict being served.
func (h *HealthChecker) Tick() (ok, fresh bool) {
	h.mu.Lock()
	if !h.lastCheck.IsZero() && h.now().Sub(h.lastCheck) < h.interval {
		cached := h.lastResult
		h.mu.Unlock()
		return cached, false
	}
	h.mu.Unlock()
	return h.CheckNow(), true
}

// CheckNow runs a full probe regardless of the cache and refreshes it.
// Healthy means both DNS and TCP succeed.
func (h *HealthChecker) CheckNow() bool {
	ok := h.CheckDNS(h.hostname) && h.CheckTCP()
	h.mu.Lock()
	h.lastCheck = h.now()
	h.lastResult = ok
	h.mu.Unlock()
	if h.state != nil {
		h.state.StampHealthCheck()
	}
	return ok
}

// CheckDNS resolves host via the OS resolver first, then walks the fixed
// fallback resolver list. The first failure and the resolver that finally
// answered are recorded in the diagnostics.
func (h *HealthChecker) CheckDNS(host string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), dnsTotalTimeout)
	defer cancel()

	osCtx, osCancel := context.WithTimeout(ctx, dnsQueryTimeout)
	addrs, err := h.osLookup(osCtx, host)
	osCancel()
	if err == nil && len(addrs) > 0 {
		h.record("resolved_with", "os")
		return true
	}

	h.record("dns_primary_error", errText(err))
	logrus.WithError(err).WithField("host", host).Warn("primary DNS resolution failed, trying fallback resolvers")

	for _, server := range fallbackResolvers {
		qCtx, qCancel := context.WithTimeout(ctx, dnsQueryTimeout)
		addrs, ferr := h.altLookup(qCtx, server, host)
		qCancel()
		if ferr == nil && len(addrs) > 0 {
			h.record("resolved_with", server)
			logrus.WithFields(logrus.Fields{
				"host":     host,
				"resolver": server,
			}).Info("DNS resolved via fallback server")
			return true
		}
		if ctx.Err() != nil {
			break
		}
	}

	logrus.WithField("host", host).Error("DNS resolution failed on every resolver")
	return false
}

// CheckTCP probes the endpoint list with a short connect timeout each; the
// first reachable endpoint wins.
func (h *HealthChecker) CheckTCP() bool {
	for _, endpoint := range h.endpoints {
		conn, err := h.dial(endpoint)
		if err != nil {
			logrus.WithError(err).WithField("endpoint", endpoint).Debug("TCP probe failed")
			continue
		}
		conn.Close()

		h.mu.Lock()
		h.tcpSuccesses++
		logIt := h.tcpSuccesses%tcpLogEvery == 1
		h.mu.Unlock()
		if logIt {
			logrus.WithField("endpoint", endpoint).Info("TCP connectivity confirmed")
		}
		return true
	}

	logrus.Warn("every TCP endpoint probe failed")
	return false
}

func (h *HealthChecker) record(key string, value any) {
	if h.state != nil {
		h.state.SetDiagnostic(key, value)
	}
}

func errText(err error) string {
	if err == nil {
		return "no addresses returned"
	}
	return err.Error()
}

func systemLookup(ctx context.Context, host string) ([]string, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	return ipStrings(ips), nil
}

// serverLookup asks one specific DNS server for A records.
func serverLookup(ctx context.Context, server, host string) ([]string, error) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: dnsQueryTimeout}
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
	ips, err := r.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	return ipStrings(ips), nil
}

func ipStrings(ips []net.IP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}
