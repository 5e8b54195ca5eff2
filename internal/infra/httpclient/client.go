package httpclient

import (
	"net/http"
	"time"
)

const maxIdleConnsPerHost = 16

// New returns a client for calls to one upstream API. timeout bounds the whole
// exchange including reading the body.
func New(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = maxIdleConnsPerHost
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
