package presence_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lanyardPresence = `{
	"discord_user": {"id": "94490510688792576", "username": "user", "discriminator": "0", "avatar": "a_hash"},
	"discord_status": "dnd",
	"active_on_discord_desktop": true,
	"listening_to_spotify": false,
	"spotify": null,
	"activities": [{"type": 4, "name": "Custom Status", "state": "hello", "emoji": {"name": "x"}}]
}`

type lanyardServer struct {
	*httptest.Server

	initialize chan presence.LanyardInitialize
	heartbeats chan struct{}
	closed     chan struct{}
}

// newLanyardServer serves a socket that says hello with interval, records
// the Initialize payload and then writes events in order.
func newLanyardServer(t *testing.T, interval int64, events ...map[string]any) *lanyardServer {
	t.Helper()

	server := &lanyardServer{
		initialize: make(chan presence.LanyardInitialize, 1),
		heartbeats: make(chan struct{}, 8),
		closed:     make(chan struct{}),
	}

	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		defer close(server.closed)

		ctx := r.Context()

		err = wsjson.Write(ctx, conn, map[string]any{"op": 1, "d": map[string]any{"heartbeat_interval": interval}})
		if err != nil {
			return
		}

		var initialize struct {
			Data presence.LanyardInitialize `json:"d"`
			Op   int                        `json:"op"`
		}

		err = wsjson.Read(ctx, conn, &initialize)
		if err != nil || initialize.Op != int(presence.LanyardOpInitialize) {
			return
		}

		server.initialize <- initialize.Data

		for _, event := range events {
			if err := wsjson.Write(ctx, conn, event); err != nil {
				return
			}
		}

		// Record heartbeats until the client goes away.
		for {
			var payload struct {
				Op int `json:"op"`
			}

			if err := wsjson.Read(ctx, conn, &payload); err != nil {
				return
			}

			if payload.Op == int(presence.LanyardOpHeartbeat) {
				select {
				case server.heartbeats <- struct{}{}:
				default:
				}
			}
		}
	}))

	t.Cleanup(server.Close)

	return server
}

func (server *lanyardServer) socketURL() string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func presenceEvent(eventType string) map[string]any {
	return map[string]any{
		"op": 0,
		"t":  eventType,
		"d":  json.RawMessage(lanyardPresence),
	}
}

func TestLanyardSocketSubscribe(t *testing.T) {
	t.Parallel()

	server := newLanyardServer(t, 30_000,
		presenceEvent(presence.LanyardEventInitState),
		presenceEvent(presence.LanyardEventPresenceUpdate),
	)

	socket := presence.NewLanyardSocket(slog.Default(), server.socketURL())

	snapshots := make(chan *presence.Snapshot, 4)

	subscription, err := socket.Subscribe(context.Background(), "94490510688792576", func(snapshot *presence.Snapshot) {
		snapshots <- snapshot
	})
	require.NoError(t, err)

	select {
	case initialize := <-server.initialize:
		assert.Equal(t, "94490510688792576", initialize.SubscribeToID)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no initialize payload")
	}

	for i := 0; i < 2; i++ {
		select {
		case snapshot := <-snapshots:
			require.NotNil(t, snapshot)
			assert.Equal(t, "user", snapshot.DiscordUser.Username)
			assert.Equal(t, "dnd", string(snapshot.DiscordStatus))
			assert.True(t, snapshot.ActiveOnDiscordDesktop)
			require.Len(t, snapshot.Activities, 1)
			assert.Equal(t, "hello", snapshot.Activities[0].State)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "no snapshot received")
		}
	}

	subscription.Unsubscribe()

	select {
	case <-server.closed:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "connection not closed after unsubscribe")
	}
}

func TestLanyardSocketDropsOtherUsers(t *testing.T) {
	t.Parallel()

	other := map[string]any{
		"op": 0,
		"t":  presence.LanyardEventPresenceUpdate,
		"d":  json.RawMessage(`{"discord_user": {"id": "2", "username": "other"}, "discord_status": "online"}`),
	}

	server := newLanyardServer(t, 30_000, other, presenceEvent(presence.LanyardEventPresenceUpdate))

	socket := presence.NewLanyardSocket(slog.Default(), server.socketURL())

	snapshots := make(chan *presence.Snapshot, 4)

	subscription, err := socket.Subscribe(context.Background(), "94490510688792576", func(snapshot *presence.Snapshot) {
		snapshots <- snapshot
	})
	require.NoError(t, err)
	t.Cleanup(subscription.Unsubscribe)

	select {
	case snapshot := <-snapshots:
		require.NotNil(t, snapshot)
		assert.Equal(t, "94490510688792576", snapshot.DiscordUser.ID)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no snapshot received")
	}
}

func TestLanyardSocketHelloChangesHeartbeatInterval(t *testing.T) {
	t.Parallel()

	hello := map[string]any{"op": 1, "d": map[string]any{"heartbeat_interval": 20}}

	server := newLanyardServer(t, 30_000, hello)

	socket := presence.NewLanyardSocket(slog.Default(), server.socketURL())

	subscription, err := socket.Subscribe(context.Background(), "1", func(*presence.Snapshot) {})
	require.NoError(t, err)
	t.Cleanup(subscription.Unsubscribe)

	// With the original interval the first heartbeat would be 30s away.
	select {
	case <-server.heartbeats:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no heartbeat after the interval changed")
	}
}

func TestLanyardSocketInvalidHeartbeatInterval(t *testing.T) {
	t.Parallel()

	server := newLanyardServer(t, 0)

	socket := presence.NewLanyardSocket(slog.Default(), server.socketURL())

	_, err := socket.Subscribe(context.Background(), "1", func(*presence.Snapshot) {})
	assert.ErrorIs(t, err, presence.ErrSocketInvalidHeartbeatInterval)
}

func TestLanyardSocketDialFailure(t *testing.T) {
	t.Parallel()

	socket := presence.NewLanyardSocket(slog.Default(), "ws://127.0.0.1:1/socket")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := socket.Subscribe(ctx, "1", func(*presence.Snapshot) {})
	assert.Error(t, err)
}

func TestNewLanyardSocketFromArgs(t *testing.T) {
	t.Parallel()

	_, err := presence.NewLanyardSocketFromArgs(slog.Default(), map[string]any{"address": "https://api.lanyard.rest/socket"})
	assert.ErrorIs(t, err, presence.ErrUnknownFeed)

	socket, err := presence.NewLanyardSocketFromArgs(slog.Default(), map[string]any{})
	require.NoError(t, err)
	assert.NotNil(t, socket)
}
