package dispatch

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts of one attempt on one node.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 10 * time.Second
)

// Config holds the timeouts applied to every attempt.
type Config struct {
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	ReadTimeout    time.Duration `mapstructure:"read-timeout"`
}

// DefaultConfig ...
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
	}
}

// AttemptTimeout bounds a whole attempt, body included.
func (c *Config) AttemptTimeout() time.Duration {
	return c.ConnectTimeout + c.ReadTimeout
}

// NewHTTPClient creates the client shared by all attempts. The dialer enforces
// the connect timeout and the transport enforces the read timeout on the
// response headers; the remainder of the body is bounded by the per-attempt
// context.
func NewHTTPClient(conf *Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   conf.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: conf.ReadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{Transport: transport}
}
