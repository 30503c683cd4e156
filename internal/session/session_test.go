package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-central/station/internal/allowlist"
	"github.com/ocpp-central/station/internal/dispatch"
	"github.com/ocpp-central/station/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newTestServer(t *testing.T, allowed string) (*httptest.Server, string) {
	t.Helper()
	d := dispatch.New(allowlist.NewMemoryStore(allowed), events.NopPublisher{}, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sess := New(conn, "CP-1", r.RemoteAddr, d, events.NopPublisher{}, zerolog.Nop())
		sess.Serve()
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHeartbeatRoundTrip(t *testing.T) {
	srv, url := newTestServer(t, "")
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[2,"1","Heartbeat",{}]`)))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame []interface{}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, float64(3), frame[0])
	assert.Equal(t, "1", frame[1])
}

func TestBootNotificationRejectionClosesConnection(t *testing.T) {
	srv, url := newTestServer(t, "SN-allowed-only")
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	req := `[2,"1","BootNotification",{"chargePointModel":"ModelX","chargePointVendor":"AcmeCorp","chargePointSerialNumber":"SN-denied"}]`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(req)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	if ok {
		assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	}
}

func TestPingIsEchoedAsPong(t *testing.T) {
	srv, url := newTestServer(t, "")
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	pongReceived := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		pongReceived <- struct{}{}
		return nil
	})

	require.NoError(t, conn.WriteMessage(websocket.PingMessage, []byte("ping-data")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pongReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("expected pong in response to ping")
	}
}

func TestUnknownActionReturnsNotSupportedWithoutClosing(t *testing.T) {
	srv, url := newTestServer(t, "")
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[2,"1","NotReal",{}]`)))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame []interface{}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, float64(4), frame[0])
	assert.Equal(t, "NotSupported", frame[2])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[2,"2","Heartbeat",{}]`)))
	_, data2, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame2 []interface{}
	require.NoError(t, json.Unmarshal(data2, &frame2))
	assert.Equal(t, "2", frame2[1])
}
