package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHub(t *testing.T, origins ...string) (*Hub, string, context.CancelFunc) {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	hub := NewHub(nil, origins)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubBroadcast(t *testing.T) {
	hub, url, _ := setupHub(t)

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(ItemAdded(7, "Potion"))
	hub.Publish(PriceAdded(7, 3, 150))

	for _, conn := range []*websocket.Conn{a, b} {
		first := readEvent(t, conn)
		assert.Equal(t, TypeItemAdded, first.Type)
		assert.Equal(t, int64(7), first.ItemID)
		assert.Equal(t, "Potion", first.Name)

		second := readEvent(t, conn)
		assert.Equal(t, TypePriceAdded, second.Type)
		assert.Equal(t, int64(3), second.PriceID)
		assert.Equal(t, int64(150), second.Price)
		assert.False(t, second.At.IsZero())
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, url, _ := setupHub(t)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdown(t *testing.T) {
	hub, url, cancel := setupHub(t)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, hub.Len())

	// Publishing after shutdown is a no-op.
	hub.Publish(ItemAdded(1, "late"))

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHubOriginCheck(t *testing.T) {
	_, url, _ := setupHub(t, "http://market.example")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://market.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
