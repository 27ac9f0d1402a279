package presence_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newLanyardREST(t *testing.T, handler http.HandlerFunc) *presence.LanyardREST {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	baseURL, err := url.Parse(server.URL + "/v1/users/")
	require.NoError(t, err)

	return presence.NewLanyardREST(slog.Default(),
		presence.WithLanyardBaseURL(*baseURL),
		presence.WithRequestLimit(rate.Inf, 1),
		presence.WithPollInterval(10*time.Millisecond),
	)
}

func TestLanyardRESTFetchPresence(t *testing.T) {
	t.Parallel()

	var userAgent atomic.Value

	rest := newLanyardREST(t, func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())

		assert.Equal(t, "/v1/users/94490510688792576", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success": true, "data": %s}`, lanyardPresence)
	})

	snapshot, err := rest.FetchPresence(context.Background(), "94490510688792576")
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "user", snapshot.DiscordUser.Username)
	assert.Equal(t, presence.UserAgent, userAgent.Load())
}

func TestLanyardRESTUserNotMonitored(t *testing.T) {
	t.Parallel()

	rest := newLanyardREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"success": false, "error": {"code": "user_not_monitored", "message": "User is not being monitored by Lanyard"}}`)
	})

	_, err := rest.FetchPresence(context.Background(), "1")
	require.ErrorIs(t, err, presence.ErrUserNotMonitored)

	_, err = rest.Subscribe(context.Background(), "1", func(*presence.Snapshot) {})
	assert.ErrorIs(t, err, presence.ErrUserNotMonitored)
}

func TestLanyardRESTOtherError(t *testing.T) {
	t.Parallel()

	rest := newLanyardREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `<html>bad gateway</html>`)
	})

	_, err := rest.FetchPresence(context.Background(), "1")
	assert.ErrorIs(t, err, presence.ErrRequestFailed)
	assert.NotErrorIs(t, err, presence.ErrUserNotMonitored)
}

func TestLanyardRESTSubscribePolls(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	rest := newLanyardREST(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		fmt.Fprintf(w, `{"success": true, "data": %s}`, lanyardPresence)
	})

	var delivered atomic.Int32

	subscription, err := rest.Subscribe(context.Background(), "1", func(snapshot *presence.Snapshot) {
		if snapshot != nil {
			delivered.Add(1)
		}
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, delivered.Load(), int32(1), "the first fetch is delivered before Subscribe returns")

	require.Eventually(t, func() bool { return delivered.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	subscription.Unsubscribe()

	after := delivered.Load()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, delivered.Load(), "no deliveries after unsubscribe")
	assert.GreaterOrEqual(t, requests.Load(), after)
}

func TestLanyardRESTProxy(t *testing.T) {
	t.Parallel()

	var host atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host.Store(r.Host)

		assert.Equal(t, "/v1/users/1", r.URL.Path)
		assert.Equal(t, presence.UserAgent, r.UserAgent())

		fmt.Fprintf(w, `{"success": true, "data": %s}`, lanyardPresence)
	}))
	t.Cleanup(server.Close)

	rest, err := presence.NewLanyardRESTFromArgs(slog.Default(), map[string]any{
		"address": "https://lanyard.invalid/v1/users/",
		"proxy":   server.URL,
	})
	require.NoError(t, err)

	snapshot, err := rest.FetchPresence(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, server.Listener.Addr().String(), host.Load())
}
