package backend

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"chatgate/internal/apperr"
	"chatgate/internal/config"
)

// writeIdentity generates a throwaway self-signed keypair and writes it as
// PEM cert/key files under dir.
func writeIdentity(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "chatgate-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "client.crt")
	keyFile = filepath.Join(dir, "client.key")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	return certFile, keyFile
}

func newTestClient(t *testing.T, endpoint string, timeoutSeconds int) *Client {
	t.Helper()

	certFile, keyFile := writeIdentity(t, t.TempDir())
	client, err := NewClient(config.BackendConfig{
		Endpoint:       endpoint,
		TimeoutSeconds: timeoutSeconds,
		Auth:           config.AuthConfig{CertFile: certFile, KeyFile: keyFile},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClientMissingIdentity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewClient(config.BackendConfig{
		Endpoint:       "https://backend.example.com",
		TimeoutSeconds: 5,
		Auth: config.AuthConfig{
			CertFile: filepath.Join(dir, "absent.crt"),
			KeyFile:  filepath.Join(dir, "absent.key"),
		},
	}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load client identity")
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	t.Parallel()

	certFile, keyFile := writeIdentity(t, t.TempDir())
	_, err := NewClient(config.BackendConfig{
		Endpoint:       "https://backend.example.com",
		TimeoutSeconds: 5,
		Auth:           config.AuthConfig{CertFile: certFile, KeyFile: keyFile},
		Proxies:        config.ProxyConfig{HTTPS: "http://[::1"},
	}, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestPostSuccess(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"text":"hi"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)

	resp, err := client.Post(context.Background(), []byte(`{"question":"q"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"data":{"text":"hi"}}`, string(resp.Body))
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, `{"question":"q"}`, string(gotBody))
}

// Non-success statuses are not an error at this layer; classification is the
// provider's job.
func TestPostReturnsNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)

	resp, err := client.Post(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Contains(t, string(resp.Body), "upstream unavailable")
}

func TestPostTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(t, srv.URL, 1)

	_, err := client.Post(context.Background(), []byte(`{}`))
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindTimeout, appErr.Kind)
}

func TestPostConnectionRefused(t *testing.T) {
	t.Parallel()

	// Bind and immediately close to get a port with nothing listening.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(t, url, 2)

	_, err := client.Post(context.Background(), []byte(`{}`))
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindBackend, appErr.Kind)
}

func TestPostHonorsCallerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(t, srv.URL, 30)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.Post(ctx, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
