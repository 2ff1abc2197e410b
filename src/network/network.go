package network

import (
	"net/http"
	"net/url"
	"time"

	"quote-relay/src/helpers"
	"quote-relay/src/interfaces"
	"quote-relay/src/logger"
	"quote-relay/src/models"
)

// NetworkManager builds the HTTP client handed to provider REST clients.
type NetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger
	client       *http.Client
}

// -----------------------------------------------------------------------------

func NewNetworkManager(cfg *models.MConfig, log *logger.Logger) *NetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &NetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent),
		Logger:       log,
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = nm.proxyFor
	nm.client = &http.Client{
		Transport: &rotatingTransport{nm: nm, base: base},
		Timeout:   time.Duration(cfg.Network.RequestTimeout) * time.Second,
	}
	if nm.ProxyManager.HasProxies() {
		log.Info("Outbound HTTP through proxies enabled")
	}
	return nm
}

// -----------------------------------------------------------------------------

func (nm *NetworkManager) HTTPClient() *http.Client {
	return nm.client
}

// -----------------------------------------------------------------------------

// proxyFor resolves the proxy for each request from the current rotation slot.
func (nm *NetworkManager) proxyFor(*http.Request) (*url.URL, error) {
	proxyStr, err := nm.ProxyManager.GetCurrentProxy()
	if err != nil || proxyStr == "" {
		return nil, err
	}
	return url.Parse(proxyStr)
}

// -----------------------------------------------------------------------------

// rotatingTransport sets the User-Agent, routes through the current proxy and
// rotates proxies when the provider throttles or blocks.
type rotatingTransport struct {
	nm   *NetworkManager
	base *http.Transport
}

func (t *rotatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.nm.ProxyManager.GetUserAgent())
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.nm.ProxyManager.RotateProxy()
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		t.nm.Logger.Warning("Request to %s blocked (%d), rotating proxy", req.URL.Host, resp.StatusCode)
		t.nm.ProxyManager.RotateProxy()
	}
	return resp, nil
}
