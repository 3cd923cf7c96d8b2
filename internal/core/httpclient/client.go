// Package httpclient configures the HTTP client used to call the BMLT root
// server and the geocoder.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound returns a pooled client. A zero timeout leaves the deadline to
// the request context.
func NewOutbound(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if timeout > 0 && timeout > transport.ResponseHeaderTimeout {
		transport.ResponseHeaderTimeout = timeout
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
