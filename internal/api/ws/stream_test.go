package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/events"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T) (*events.Hub, *monitoring.Metrics, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := events.NewHub(nil)
	metrics := monitoring.NewMetrics()
	router := gin.New()
	router.GET("/api/stream", NewHandler(hub, metrics, nil).HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, metrics, "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "system", hello.Type)
	return conn
}

func TestStreamForwardsEvents(t *testing.T) {
	hub, metrics, url := newStreamServer(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(events.Event{Type: events.Completed, ID: "abc", Tool: "ping", DurationMS: 12})

	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.Completed, ev.Type)
	assert.Equal(t, "abc", ev.ID)
	assert.Equal(t, int64(12), ev.DurationMS)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StreamEvents) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StreamClients))
}

func TestStreamPing(t *testing.T) {
	_, _, url := newStreamServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "pong", reply.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "subscribe"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "unknown message type", reply.Message)
}

func TestStreamDisconnectUnsubscribes(t *testing.T) {
	hub, metrics, url := newStreamServer(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StreamClients) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHubClose(t *testing.T) {
	hub, _, url := newStreamServer(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	hub.Close()

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
