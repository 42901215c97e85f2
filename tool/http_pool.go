package tool

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// httpClientPool lazily builds the single client every adapter shares, so
// all adapters reuse one connection pool. Invocation deadlines come from the
// request context, not from the client.
type httpClientPool struct {
	mu        sync.Mutex
	transport *http.Transport
	client    *http.Client
}

var sharedHTTPClientPool = &httpClientPool{}

func (p *httpClientPool) get() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client
	}

	p.transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	p.client = &http.Client{Transport: p.transport}
	return p.client
}

// CloseIdleConnections releases pooled keep-alive connections. It is called
// on shutdown by long-running surfaces.
func CloseIdleConnections() {
	sharedHTTPClientPool.mu.Lock()
	defer sharedHTTPClientPool.mu.Unlock()
	if sharedHTTPClientPool.transport != nil {
		sharedHTTPClientPool.transport.CloseIdleConnections()
	}
}
