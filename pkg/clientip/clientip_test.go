package clientip_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/clientip"
	"github.com/dmitrymomot/authkit/pkg/config"
)

func request(remote string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remote
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cfg := clientip.DefaultConfig()
	cfg.TrustedProxies = append(cfg.TrustedProxies, "10.0.0.0/8")
	res, err := clientip.New(cfg)
	require.NoError(t, err)

	tests := []struct {
		name     string
		remote   string
		headers  map[string]string
		expected string
	}{
		{
			name:     "direct client",
			remote:   "203.0.113.7:5123",
			expected: "203.0.113.7",
		},
		{
			name:     "untrusted peer cannot spoof",
			remote:   "203.0.113.7:5123",
			headers:  map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "1.2.3.4"},
			expected: "203.0.113.7",
		},
		{
			name:     "trusted proxy forwards client",
			remote:   "10.0.0.2:4000",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.9"},
			expected: "198.51.100.9",
		},
		{
			name:     "rightmost untrusted hop wins",
			remote:   "10.0.0.2:4000",
			headers:  map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.9, 10.0.0.5"},
			expected: "198.51.100.9",
		},
		{
			name:     "all hops trusted returns the outermost",
			remote:   "127.0.0.1:4000",
			headers:  map[string]string{"X-Forwarded-For": "192.168.1.4, 10.0.0.5"},
			expected: "192.168.1.4",
		},
		{
			name:     "garbage hop stops the walk",
			remote:   "10.0.0.2:4000",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.9, nonsense"},
			expected: "10.0.0.2",
		},
		{
			name:     "falls back to X-Real-IP",
			remote:   "10.0.0.2:4000",
			headers:  map[string]string{"X-Real-IP": "198.51.100.10"},
			expected: "198.51.100.10",
		},
		{
			name:     "ipv6 peer",
			remote:   "[2001:db8::1]:443",
			expected: "2001:db8::1",
		},
		{
			name:     "ipv4-mapped ipv6 is unmapped",
			remote:   "[::ffff:203.0.113.7]:443",
			expected: "203.0.113.7",
		},
		{
			name:     "remote without port",
			remote:   "203.0.113.7",
			expected: "203.0.113.7",
		},
		{
			name:     "invalid remote",
			remote:   "not-an-ip",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, res.Resolve(request(tt.remote, tt.headers)))
		})
	}
}

func TestDefaultTrustsLoopbackOnly(t *testing.T) {
	t.Parallel()

	var fromEnv clientip.Config
	require.NoError(t, config.Load(&fromEnv, config.WithEnvironment(map[string]string{})))
	assert.Equal(t, clientip.DefaultConfig(), fromEnv)

	res, err := clientip.New(clientip.DefaultConfig())
	require.NoError(t, err)

	xff := map[string]string{"X-Forwarded-For": "198.51.100.9"}
	for _, peer := range []string{"127.0.0.1", "::1"} {
		r := request(net.JoinHostPort(peer, "4000"), xff)
		assert.Equal(t, "198.51.100.9", res.Resolve(r), peer)
	}
	for _, peer := range []string{"10.0.0.2", "172.16.0.3", "192.168.1.4", "fd00::1"} {
		r := request(net.JoinHostPort(peer, "4000"), xff)
		assert.Equal(t, peer, res.Resolve(r), "private peer %s is not a trusted proxy by default", peer)
	}

	cfg := clientip.DefaultConfig()
	cfg.TrustedProxies = append(cfg.TrustedProxies, clientip.PrivateNetworks...)
	res, err = clientip.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.9", res.Resolve(request("192.168.1.4:4000", xff)))
}

func TestCustomHeadersAndProxies(t *testing.T) {
	t.Parallel()

	res, err := clientip.New(clientip.Config{
		TrustedProxies: []string{"198.51.100.1"},
		Headers:        []string{"cf-connecting-ip"},
	})
	require.NoError(t, err)

	r := request("198.51.100.1:80", map[string]string{
		"CF-Connecting-IP": "203.0.113.50",
		"X-Forwarded-For":  "1.2.3.4",
	})
	assert.Equal(t, "203.0.113.50", res.Resolve(r))

	r = request("198.51.100.2:80", map[string]string{"CF-Connecting-IP": "203.0.113.50"})
	assert.Equal(t, "198.51.100.2", res.Resolve(r))
}

func TestNewRejectsInvalidProxy(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"10.0.0.0/33", "example.com"} {
		_, err := clientip.New(clientip.Config{TrustedProxies: []string{bad}})
		assert.ErrorIs(t, err, clientip.ErrInvalidProxy, bad)
	}
}

func TestMiddlewareStoresIP(t *testing.T) {
	t.Parallel()

	res, err := clientip.New(clientip.DefaultConfig())
	require.NoError(t, err)

	var fromCtx, fromGetIP string
	h := res.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = clientip.GetIPFromContext(r.Context())
		fromGetIP = clientip.GetIP(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), request("127.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.9"}))

	assert.Equal(t, "198.51.100.9", fromCtx)
	assert.Equal(t, fromCtx, fromGetIP)
}

func TestGetIPWithoutMiddleware(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "203.0.113.7", clientip.GetIP(request("203.0.113.7:9", nil)))
}
