package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"golang.org/x/net/proxy"
)

var (
	directClient     *http.Client
	proxiedClient    *http.Client
	proxiedClientURL string
	clientLock       sync.RWMutex
)

// Get returns a cached http.Client honoring the proxy_url setting. The proxy
// client is rebuilt when the setting changes.
func Get() (*http.Client, error) {
	proxyURL, err := op.SettingGetString(model.SettingKeyProxyURL)
	if err != nil {
		return nil, err
	}

	if proxyURL == "" {
		clientLock.RLock()
		if directClient != nil {
			clientLock.RUnlock()
			return directClient, nil
		}
		clientLock.RUnlock()

		clientLock.Lock()
		defer clientLock.Unlock()
		if directClient != nil {
			return directClient, nil
		}
		c, err := newDirectClient()
		if err != nil {
			return nil, err
		}
		directClient = c
		return directClient, nil
	}

	clientLock.RLock()
	if proxiedClient != nil && proxiedClientURL == proxyURL {
		clientLock.RUnlock()
		return proxiedClient, nil
	}
	clientLock.RUnlock()

	clientLock.Lock()
	defer clientLock.Unlock()
	if proxiedClient != nil && proxiedClientURL == proxyURL {
		return proxiedClient, nil
	}
	c, err := newProxiedClient(proxyURL)
	if err != nil {
		return nil, err
	}
	proxiedClient = c
	proxiedClientURL = proxyURL
	return proxiedClient, nil
}

func clonedDefaultTransport() (*http.Transport, error) {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("default transport is not *http.Transport")
	}
	return transport.Clone(), nil
}

func newDirectClient() (*http.Client, error) {
	cloned, err := clonedDefaultTransport()
	if err != nil {
		return nil, err
	}
	cloned.Proxy = nil
	return &http.Client{Transport: cloned}, nil
}

// newProxiedClient supports http, https, socks and socks5 proxy URLs.
func newProxiedClient(proxyURLStr string) (*http.Client, error) {
	cloned, err := clonedDefaultTransport()
	if err != nil {
		return nil, err
	}

	proxyURL, err := url.Parse(proxyURLStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	switch proxyURL.Scheme {
	case "http", "https":
		cloned.Proxy = http.ProxyURL(proxyURL)
	case "socks", "socks5":
		socksDialer, err := proxy.FromURL(proxyURL, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("invalid socks proxy: %w", err)
		}
		cloned.Proxy = nil
		cloned.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return socksDialer.Dial(network, addr)
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	return &http.Client{Transport: cloned}, nil
}
