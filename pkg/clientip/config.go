package clientip

// Config selects which peers may vouch for the client address.
type Config struct {
	// TrustedProxies lists CIDRs or single addresses whose forwarding headers are honored.
	TrustedProxies []string `env:"CLIENTIP_TRUSTED_PROXIES" envSeparator:"," envDefault:"127.0.0.0/8,::1/128"`
	// Headers are consulted in order. X-Forwarded-For is walked right to left.
	Headers []string `env:"CLIENTIP_HEADERS" envSeparator:"," envDefault:"X-Forwarded-For,X-Real-IP"`
}

// PrivateNetworks are the RFC 1918 and unique local ranges. Append them to
// TrustedProxies when the proxy in front of the service sits on a private
// network and nothing else on that network can reach the service directly.
var PrivateNetworks = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"}

// DefaultConfig trusts loopback only: a proxy on the same host.
func DefaultConfig() Config {
	return Config{
		TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		Headers:        []string{"X-Forwarded-For", "X-Real-IP"},
	}
}
