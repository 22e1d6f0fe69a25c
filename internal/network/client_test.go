// File: internal/network/client_test.go
package network

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(ClientConfig{})
	assert.Equal(t, DefaultRequestTimeout, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultTLSHandshakeTimeout, tr.TLSHandshakeTimeout)
	assert.Equal(t, DefaultResponseHeaderTimeout, tr.ResponseHeaderTimeout)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.False(t, tr.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, []string{"http/1.1"}, tr.TLSClientConfig.NextProtos)
}

func TestNewTransportHTTP2(t *testing.T) {
	tr := NewTransport(ClientConfig{ForceHTTP2: true})
	assert.Contains(t, tr.TLSClientConfig.NextProtos, "h2")
}

func TestNewTransportProxy(t *testing.T) {
	proxy, err := url.Parse("http://127.0.0.1:3128")
	require.NoError(t, err)

	tr := NewTransport(ClientConfig{ProxyURL: proxy})
	req := httptest.NewRequest(http.MethodGet, "https://api.example.test/", nil)
	got, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, proxy, got)
}

func TestClientAgainstTLSServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	t.Run("self-signed certificate rejected", func(t *testing.T) {
		c := NewClient(ClientConfig{RequestTimeout: time.Second})
		_, err := c.Get(srv.URL)
		assert.Error(t, err)
	})

	t.Run("accepted when verification disabled", func(t *testing.T) {
		c := NewClient(ClientConfig{RequestTimeout: time.Second, IgnoreTLSErrors: true, ForceHTTP2: true})
		resp, err := c.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(body))
	})
}
