// Package backend owns the long-lived authenticated HTTP client used for
// every outbound call to the assistant backend. One client is built per
// process at startup and shared read-only across requests.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"chatgate/internal/apperr"
	"chatgate/internal/config"
)

// Response is the raw outcome of one backend call. Interpretation of the
// status and body is left to the active provider.
type Response struct {
	Status int
	Body   []byte
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient loads the mutual-TLS identity and builds the shared client.
// Identity material that cannot be read or parsed is a startup failure.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("backend")

	checkIdentityPermissions(cfg.Auth.CertFile, logger)
	checkIdentityPermissions(cfg.Auth.KeyFile, logger)

	cert, err := tls.LoadX509KeyPair(cfg.Auth.CertFile, cfg.Auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client identity: %w", err)
	}

	proxyFunc, err := buildProxyFunc(cfg.Proxies)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: proxyFunc,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout(),
		logger:     logger,
	}, nil
}

// checkIdentityPermissions warns when key material is readable beyond its
// owner. Defense in depth only; loading proceeds either way.
func checkIdentityPermissions(path string, logger *zap.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		// Missing files fail properly in LoadX509KeyPair.
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("identity file is group/world accessible",
			zap.String("path", path),
			zap.String("mode", perm.String()),
		)
	}
}

// buildProxyFunc returns a per-scheme proxy selector, or nil when no proxy
// is configured.
func buildProxyFunc(cfg config.ProxyConfig) (func(*http.Request) (*url.URL, error), error) {
	if cfg.HTTP == "" && cfg.HTTPS == "" {
		return nil, nil
	}

	var httpProxy, httpsProxy *url.URL
	var err error
	if cfg.HTTP != "" {
		if httpProxy, err = url.Parse(cfg.HTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if cfg.HTTPS != "" {
		if httpsProxy, err = url.Parse(cfg.HTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}

	return func(req *http.Request) (*url.URL, error) {
		switch req.URL.Scheme {
		case "https":
			return httpsProxy, nil
		case "http":
			return httpProxy, nil
		default:
			return nil, nil
		}
	}, nil
}

// Post issues a single JSON POST to the configured endpoint, bounded by the
// per-call timeout. There are no retries: one inbound request means at most
// one backend attempt. Transport failures come back as BackendError, budget
// overruns as TimeoutError.
func (c *Client) Post(ctx context.Context, payload []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Backend("build backend request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			c.logger.Warn("backend call timed out",
				zap.Duration("timeout", c.timeout),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil, apperr.Timeout(err)
		}
		c.logger.Error("backend call failed", zap.Error(err))
		return nil, apperr.Backend("send backend request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperr.Timeout(err)
		}
		return nil, apperr.Backend("read backend response", err)
	}

	c.logger.Debug("backend call completed",
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Endpoint reports the configured backend URL; used for logging at startup.
func (c *Client) Endpoint() string { return c.endpoint }

// Close releases pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
