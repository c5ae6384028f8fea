package clientip

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ErrInvalidProxy is returned for a malformed TrustedProxies entry.
var ErrInvalidProxy = errors.New("clientip: invalid trusted proxy")

const forwardedFor = "X-Forwarded-For"

// Resolver derives the client address of a request. Forwarding headers are
// honored only when the TCP peer is a trusted proxy, so a direct client
// cannot pick its own rate-limit key.
type Resolver struct {
	trusted []netip.Prefix
	headers []string
}

// New builds a Resolver from cfg.
func New(cfg Config) (*Resolver, error) {
	r := &Resolver{headers: make([]string, 0, len(cfg.Headers))}
	for _, h := range cfg.Headers {
		if h = strings.TrimSpace(h); h != "" {
			r.headers = append(r.headers, http.CanonicalHeaderKey(h))
		}
	}
	for _, raw := range cfg.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, raw)
			}
			r.trusted = append(r.trusted, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, raw)
		}
		r.trusted = append(r.trusted, p.Masked())
	}
	return r, nil
}

var defaultResolver = func() *Resolver {
	r, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return r
}()

// GetIP returns the address stored by Middleware, or resolves it with the
// default configuration. An empty string means no valid address was found.
func GetIP(r *http.Request) string {
	if ip := GetIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return defaultResolver.Resolve(r)
}

// Resolve returns the normalized client address for r.
func (res *Resolver) Resolve(r *http.Request) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return ""
	}
	if !res.isTrusted(peer) {
		return peer.String()
	}

	for _, h := range res.headers {
		if h == forwardedFor {
			if ip, ok := res.fromForwardedFor(r.Header.Values(forwardedFor)); ok {
				return ip.String()
			}
			continue
		}
		if ip, ok := parseAddr(r.Header.Get(h)); ok {
			return ip.String()
		}
	}
	return peer.String()
}

// fromForwardedFor walks the hop list from the nearest proxy outwards and
// returns the first address not owned by a trusted proxy.
func (res *Resolver) fromForwardedFor(values []string) (netip.Addr, bool) {
	var hops []string
	for _, v := range values {
		hops = append(hops, strings.Split(v, ",")...)
	}
	var last netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		ip, ok := parseAddr(hops[i])
		if !ok {
			// A garbage hop ends the trustworthy part of the chain.
			break
		}
		last = ip
		if !res.isTrusted(ip) {
			return ip, true
		}
	}
	return last, last.IsValid()
}

func (res *Resolver) isTrusted(ip netip.Addr) bool {
	for _, p := range res.trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func peerAddr(remote string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	return parseAddr(host)
}

func parseAddr(s string) (netip.Addr, bool) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return netip.Addr{}, false
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap().WithZone(""), true
}
