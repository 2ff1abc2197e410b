package network

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"quote-relay/src/logger"
	"quote-relay/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientSetsUserAgent(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := &models.MConfig{Network: models.MNetworkConfig{RequestTimeout: 5, UserAgent: "quote-relay-test"}}
	nm := NewNetworkManager(cfg, logger.NewNop())

	resp, err := nm.HTTPClient().Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "quote-relay-test", got)
	assert.False(t, nm.ProxyManager.HasProxies())
}

func TestProxiesIgnoredWhenDisabled(t *testing.T) {
	cfg := &models.MConfig{Network: models.MNetworkConfig{
		Enabled:        false,
		Proxies:        []string{"10.0.0.1:8080"},
		RequestTimeout: 5,
	}}
	nm := NewNetworkManager(cfg, logger.NewNop())
	assert.False(t, nm.ProxyManager.HasProxies())

	cfg.Network.Enabled = true
	nm = NewNetworkManager(cfg, logger.NewNop())
	assert.True(t, nm.ProxyManager.HasProxies())

	u, err := nm.proxyFor(nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", u.Host)
}

func TestRotatesOnThrottle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	cfg := &models.MConfig{Network: models.MNetworkConfig{RequestTimeout: 5}}
	nm := NewNetworkManager(cfg, logger.NewNop())

	resp, err := nm.HTTPClient().Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
