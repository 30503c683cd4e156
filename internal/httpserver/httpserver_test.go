package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-central/station/internal/allowlist"
	"github.com/ocpp-central/station/internal/dispatch"
	"github.com/ocpp-central/station/internal/events"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	d := dispatch.New(allowlist.NewMemoryStore(""), events.NopPublisher{}, zerolog.Nop())
	s := New(d, events.NopPublisher{}, zerolog.Nop())
	return s, httptest.NewServer(s.Handler())
}

func TestHealthUnavailableBeforeStart(t *testing.T) {
	s, srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var body healthUnavailable
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unavailable", body.Status)

	_ = s
}

func TestHealthOKAfterStart(t *testing.T) {
	s, srv := newTestServer(t)
	defer srv.Close()
	s.MarkStarted()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=60", resp.Header.Get("Cache-Control"))

	var body healthOK
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestUpgradeEchoesSubprotocol(t *testing.T) {
	_, srv := newTestServer(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/CP-42"
	dialer := websocket.Dialer{Subprotocols: []string{"ocpp1.6"}}
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "ocpp1.6", resp.Header.Get("Sec-Websocket-Protocol"))
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	_, srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
