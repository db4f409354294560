package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS_AllowedOrigin(t *testing.T) {
	_, ts, _ := newTestServer(t, nil, nil)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://shop.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://shop.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_DeniedOrigin(t *testing.T) {
	_, ts, _ := newTestServer(t, nil, nil)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	_, ts, _ := newTestServer(t, nil, nil)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/upload", nil)
	req.Header.Set("Origin", "https://shop.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestRequestID(t *testing.T) {
	_, ts, _ := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"), "generated when absent")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, "trace-123", resp2.Header.Get("X-Request-ID"), "caller id is echoed")
}

func TestIsOriginAllowed(t *testing.T) {
	assert.False(t, isOriginAllowed("https://a", nil))
	assert.True(t, isOriginAllowed("https://a", []string{"*"}))
	assert.True(t, isOriginAllowed("https://a", []string{"https://a"}))
	assert.False(t, isOriginAllowed("https://a", []string{"https://b"}))
}
