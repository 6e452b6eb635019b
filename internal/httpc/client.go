// Package httpc builds HTTP clients with connection timeouts set.
// Use it instead of http.DefaultClient, which has none.
package httpc

import (
	"net"
	"net/http"
	"time"
)

const (
	connectTimeout  = 10 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 90 * time.Second
)

// NewClient creates an HTTP client with the given overall request
// timeout. A zero timeout means no request deadline; dial and TLS
// timeouts still apply.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       idleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
