package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom-agent/internal/player"
)

func TestHub_BroadcastsPosition(t *testing.T) {
	hub := NewHub(discardLogger())

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastPosition(12.0, player.Status{State: "playing", Playing: true, Duration: 23})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg PositionMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "position", msg.Type)
	assert.Equal(t, 12.0, msg.Time)
	assert.Equal(t, "00:12.00", msg.Display)
	assert.Equal(t, "playing", msg.State)
	assert.True(t, msg.Playing)
	assert.Equal(t, "00:23.00", msg.DurationDisplay)
}

func TestHub_DropsClosedClients(t *testing.T) {
	hub := NewHub(discardLogger())

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond, "closed client never dropped")
}
