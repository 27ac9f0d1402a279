package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/WelcomerTeam/Presence-Kit/presencejson"
	"golang.org/x/time/rate"
)

var LanyardAPIURL = url.URL{
	Scheme: "https",
	Host:   "api.lanyard.rest",
	Path:   "/v1/users/",
}

const (
	lanyardRESTFeed = "lanyard_rest"

	DefaultLanyardPollInterval = 5 * time.Second

	LanyardErrorUserNotMonitored = "user_not_monitored"
)

// LanyardResponse is the envelope of every REST response.
type LanyardResponse struct {
	Error   *LanyardError           `json:"error,omitempty"`
	Data    presencejson.RawMessage `json:"data,omitempty"`
	Success bool                    `json:"success"`
}

type LanyardError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *LanyardError) Error() string {
	return e.Code + ": " + e.Message
}

// LanyardREST polls the REST API for a user's presence. Requests are paced
// by a limiter shared across every subscription. Failed polls are logged and
// the next poll happens on schedule.
type LanyardREST struct {
	logger *slog.Logger

	client       *http.Client
	baseURL      url.URL
	pollInterval time.Duration
	limiter      *rate.Limiter
}

type LanyardRESTOption func(*LanyardREST)

func WithLanyardClient(client *http.Client) LanyardRESTOption {
	return func(rest *LanyardREST) {
		rest.client = client
	}
}

func WithLanyardBaseURL(baseURL url.URL) LanyardRESTOption {
	return func(rest *LanyardREST) {
		rest.baseURL = baseURL
	}
}

func WithPollInterval(interval time.Duration) LanyardRESTOption {
	return func(rest *LanyardREST) {
		if interval > 0 {
			rest.pollInterval = interval
		}
	}
}

func WithRequestLimit(limit rate.Limit, burst int) LanyardRESTOption {
	return func(rest *LanyardREST) {
		rest.limiter = rate.NewLimiter(limit, burst)
	}
}

func NewLanyardREST(logger *slog.Logger, opts ...LanyardRESTOption) *LanyardREST {
	rest := &LanyardREST{
		logger: logger,

		client:       http.DefaultClient,
		baseURL:      LanyardAPIURL,
		pollInterval: DefaultLanyardPollInterval,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
	}

	for _, opt := range opts {
		opt(rest)
	}

	return rest
}

// NewLanyardRESTFromArgs reads "Address", "Interval" and "Proxy" entries.
func NewLanyardRESTFromArgs(logger *slog.Logger, args map[string]any) (*LanyardREST, error) {
	opts := []LanyardRESTOption{}

	if address := GetStringEntry(args, "Address", ""); address != "" {
		baseURL, err := url.Parse(address)
		if err != nil {
			return nil, fmt.Errorf("failed to parse address: %w", err)
		}

		opts = append(opts, WithLanyardBaseURL(*baseURL))
	}

	if interval := GetStringEntry(args, "Interval", ""); interval != "" {
		duration, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("failed to parse interval: %w", err)
		}

		opts = append(opts, WithPollInterval(duration))
	}

	if proxy := GetStringEntry(args, "Proxy", ""); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy: %w", err)
		}

		opts = append(opts, WithLanyardClient(NewProxyClient(http.Client{Timeout: 10 * time.Second}, *proxyURL)))
	}

	return NewLanyardREST(logger, opts...), nil
}

// FetchPresence requests the current presence of a user.
func (rest *LanyardREST) FetchPresence(ctx context.Context, userID string) (*Snapshot, error) {
	err := rest.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for limiter: %w", err)
	}

	endpoint := rest.baseURL.JoinPath(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := rest.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to do request: %w", err)
	}

	defer resp.Body.Close()

	UpdateFeedLatency(lanyardRESTFeed, time.Since(start).Seconds())

	var response LanyardResponse

	err = presencejson.UnmarshalReader(resp.Body, &response)
	if err != nil {
		return nil, fmt.Errorf("%w: status %d: %w", ErrRequestFailed, resp.StatusCode, err)
	}

	if !response.Success {
		if response.Error != nil && response.Error.Code == LanyardErrorUserNotMonitored {
			return nil, fmt.Errorf("%w: %w", ErrUserNotMonitored, response.Error)
		}

		if response.Error != nil {
			return nil, fmt.Errorf("%w: %w", ErrRequestFailed, response.Error)
		}

		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	return DecodeSnapshot(response.Data)
}

// Subscribe fetches the presence once before returning, so a user that is
// not monitored fails the subscription, then keeps polling in the background.
func (rest *LanyardREST) Subscribe(ctx context.Context, userID string, handler SnapshotHandler) (Subscription, error) {
	logger := rest.logger.With("user_id", userID)

	snapshot, err := rest.FetchPresence(ctx, userID)
	if err != nil {
		RecordFeedError(lanyardRESTFeed)

		return nil, err
	}

	handler(snapshot)

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		rest.poll(pollCtx, logger, userID, handler)
	}()

	return SubscriptionFunc(func() {
		cancel()
		wg.Wait()
	}), nil
}

func (rest *LanyardREST) poll(ctx context.Context, logger *slog.Logger, userID string, handler SnapshotHandler) {
	ticker := time.NewTicker(rest.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot, err := rest.FetchPresence(ctx, userID)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}

				RecordFeedError(lanyardRESTFeed)
				logger.Warn("Failed to poll presence", "error", err)

				continue
			}

			if ctx.Err() != nil {
				return
			}

			handler(snapshot)
		}
	}
}
