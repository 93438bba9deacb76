package tlsutil

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig(t *testing.T) {
	cfg := ClientConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.ElementsMatch(t, aeadSuites, cfg.CipherSuites)

	// 每次返回独立副本
	cfg.CipherSuites[0] = 0
	assert.NotEqual(t, uint16(0), ClientConfig().CipherSuites[0])
}

func TestTransport(t *testing.T) {
	tr := Transport()
	require.NotNil(t, tr.TLSClientConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.NotNil(t, tr.Proxy)
	assert.True(t, tr.ForceAttemptHTTP2)
}

func TestHTTPClient(t *testing.T) {
	client := HTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, client.Timeout)
	_, ok := client.Transport.(*http.Transport)
	assert.True(t, ok)
}
