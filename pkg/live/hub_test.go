package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/obsdemo/pkg/httpx"
	"github.com/nicktill/obsdemo/pkg/tracing"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	hub.Publish(httpx.Record{
		Level:   "info",
		Message: httpx.MessageRequestCompleted,
		TraceID: "3f2c3c8e-7a9b-4d47-9b0e-0d7f6a1c2b3d",
		Method:  http.MethodGet,
		Path:    "/",
		Route:   "/",
		Status:  http.StatusOK,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "3f2c3c8e-7a9b-4d47-9b0e-0d7f6a1c2b3d", got["trace_id"])
	require.Equal(t, float64(200), got["status"])
	require.Equal(t, "request completed", got["message"])
}

func TestHub_PublishWithoutClientsIsDropped(t *testing.T) {
	hub := NewHub(nil)

	hub.Publish(httpx.Record{Status: http.StatusOK})

	require.Len(t, hub.broadcast, 0)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			_ = hub.Broadcast(map[string]int{"i": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with a full buffer")
	}
	require.Len(t, hub.broadcast, cap(hub.broadcast))
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	require.Eventually(t, func() bool { return !hub.HasClients() }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RunStopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()
	conn := dial(t, server)

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped

	require.False(t, hub.HasClients())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "server side should have closed the connection")
}

func TestHandleWebSocket_HandshakeKeepsTraceID(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	observed := httpx.NewObserver(nil, nil).Middleware(http.HandlerFunc(hub.HandleWebSocket))
	server := httptest.NewServer(observed)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ids := resp.Header.Values(tracing.HeaderTraceID)
	require.Len(t, ids, 1, "handshake response should carry exactly one trace ID")
	_, err = tracing.ParseTraceID(ids[0])
	require.NoError(t, err)
}

func TestHandleWebSocket_UpgradeFailureIsJSON(t *testing.T) {
	hub := NewHub(nil)

	rec := httptest.NewRecorder()
	hub.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Bad Request", body.Error)
	require.Contains(t, body.Message, "websocket")
}
