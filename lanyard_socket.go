package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WelcomerTeam/Presence-Kit/presencejson"
	"github.com/coder/websocket"
)

var LanyardSocketURL = url.URL{
	Scheme: "wss",
	Host:   "api.lanyard.rest",
	Path:   "/socket",
}

const lanyardSocketFeed = "lanyard_socket"

type LanyardOp int

const (
	LanyardOpEvent LanyardOp = iota
	LanyardOpHello
	LanyardOpInitialize
	LanyardOpHeartbeat
)

// LanyardPayload is a received socket message.
type LanyardPayload struct {
	Type     string                  `json:"t,omitempty"`
	Data     presencejson.RawMessage `json:"d,omitempty"`
	Sequence int64                   `json:"seq,omitempty"`
	Op       LanyardOp               `json:"op"`
}

type LanyardSentPayload struct {
	Data any       `json:"d,omitempty"`
	Op   LanyardOp `json:"op"`
}

type LanyardHello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type LanyardInitialize struct {
	SubscribeToID string `json:"subscribe_to_id"`
}

// LanyardSocket subscribes to presences over the Lanyard websocket. Each
// subscription holds its own connection. A dropped connection is logged and
// not retried.
type LanyardSocket struct {
	logger *slog.Logger

	socketURL   string
	dialOptions *websocket.DialOptions
}

func NewLanyardSocket(logger *slog.Logger, socketURL string) *LanyardSocket {
	if socketURL == "" {
		socketURL = LanyardSocketURL.String()
	}

	return &LanyardSocket{
		logger:    logger,
		socketURL: socketURL,
		dialOptions: &websocket.DialOptions{
			HTTPHeader: map[string][]string{
				"User-Agent": {UserAgent},
			},
		},
	}
}

// NewLanyardSocketFromArgs reads the socket address from the "Address" entry.
func NewLanyardSocketFromArgs(logger *slog.Logger, args map[string]any) (*LanyardSocket, error) {
	address := GetStringEntry(args, "Address", LanyardSocketURL.String())

	parsed, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse socket address: %w", err)
	}

	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported socket scheme %q", ErrUnknownFeed, parsed.Scheme)
	}

	return NewLanyardSocket(logger, address), nil
}

func (socket *LanyardSocket) Subscribe(ctx context.Context, userID string, handler SnapshotHandler) (Subscription, error) {
	session := newLanyardSession(socket, userID, handler)

	err := session.Connect(WithUserID(ctx, userID))
	if err != nil {
		RecordFeedError(lanyardSocketFeed)

		return nil, err
	}

	go session.Listen()

	return SubscriptionFunc(session.Stop), nil
}

// LanyardSession is one socket connection subscribed to a single user.
type LanyardSession struct {
	Logger *slog.Logger

	socket  *LanyardSocket
	userID  string
	handler SnapshotHandler

	ctx    context.Context
	cancel context.CancelFunc

	websocketConn *websocket.Conn

	heartbeatInterval *atomic.Pointer[time.Duration]
	heartbeatReset    chan struct{}
	LastHeartbeatSent *atomic.Pointer[time.Time]
	sequence          *atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
}

func newLanyardSession(socket *LanyardSocket, userID string, handler SnapshotHandler) *LanyardSession {
	return &LanyardSession{
		Logger: socket.logger.With("user_id", userID),

		socket:  socket,
		userID:  userID,
		handler: handler,

		heartbeatInterval: &atomic.Pointer[time.Duration]{},
		heartbeatReset:    make(chan struct{}, 1),
		LastHeartbeatSent: &atomic.Pointer[time.Time]{},
		sequence:          &atomic.Int64{},

		done: make(chan struct{}),
	}
}

// Connect dials the socket, waits for Hello, starts heartbeating and sends
// the Initialize payload.
func (session *LanyardSession) Connect(ctx context.Context) error {
	session.Logger.Debug("Session is connecting", "url", session.socket.socketURL)

	// The session outlives the dial context but keeps its values.
	session.ctx, session.cancel = context.WithCancel(context.WithoutCancel(ctx))

	var err error

	defer func() {
		if err != nil {
			session.cancel()
			session.closeWS(websocket.StatusNormalClosure)
			close(session.done)
		}
	}()

	conn, _, err := websocket.Dial(ctx, session.socket.socketURL, session.socket.dialOptions)
	if err != nil {
		err = fmt.Errorf("failed to dial websocket: %w", err)

		return err
	}

	conn.SetReadLimit(-1)

	session.websocketConn = conn

	payload, err := session.read(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read initial payload: %w", err)

		return err
	}

	if payload.Op != LanyardOpHello {
		err = fmt.Errorf("%w: expected hello, got op %d", ErrSocketUnexpectedPayload, payload.Op)

		return err
	}

	var hello LanyardHello

	err = unmarshalPayload(payload, &hello)
	if err != nil {
		return err
	}

	if hello.HeartbeatInterval <= 0 {
		err = ErrSocketInvalidHeartbeatInterval

		return err
	}

	heartbeatInterval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	session.heartbeatInterval.Store(&heartbeatInterval)

	session.Logger.Debug("Session received hello", "heartbeat_interval", heartbeatInterval.Milliseconds())

	err = session.SendEvent(ctx, LanyardOpInitialize, LanyardInitialize{
		SubscribeToID: session.userID,
	})
	if err != nil {
		err = fmt.Errorf("failed to initialize: %w", err)

		return err
	}

	go session.heartbeat()

	return nil
}

// Listen reads payloads until the session is stopped or the connection drops.
func (session *LanyardSession) Listen() {
	defer close(session.done)

	session.Logger.Debug("Session is listening")

	for {
		payload, err := session.read(session.ctx)
		if err != nil {
			if session.ctx.Err() != nil {
				return
			}

			var closeError websocket.CloseError
			if errors.As(err, &closeError) {
				session.Logger.Warn("Session received close event", "code", closeError.Code, "reason", closeError.Reason)
			} else {
				session.Logger.Error("Session received error", "error", err)
			}

			RecordFeedError(lanyardSocketFeed)

			session.cancel()

			return
		}

		err = session.OnEvent(session.ctx, payload)
		if err != nil {
			session.Logger.Error("Failed to handle event", "error", err, "op", payload.Op, "type", payload.Type)
		}
	}
}

// Stop closes the connection and waits for the listener to exit.
func (session *LanyardSession) Stop() {
	session.stopOnce.Do(func() {
		session.Logger.Debug("Session is stopping")

		session.cancel()
		session.closeWS(websocket.StatusNormalClosure)

		<-session.done
	})
}

func (session *LanyardSession) OnEvent(ctx context.Context, payload *LanyardPayload) error {
	if f, ok := lanyardOps[payload.Op]; ok {
		return f(ctx, session, payload)
	}

	return fmt.Errorf("%w: %d", ErrNoOpHandler, payload.Op)
}

func (session *LanyardSession) OnDispatch(ctx context.Context, payload *LanyardPayload) error {
	if f, ok := lanyardDispatchHandlers[payload.Type]; ok {
		return f(ctx, session, payload)
	}

	return fmt.Errorf("%w: %s", ErrNoDispatchHandler, payload.Type)
}

// HeartbeatInterval returns the interval of the last hello received.
func (session *LanyardSession) HeartbeatInterval() time.Duration {
	if interval := session.heartbeatInterval.Load(); interval != nil {
		return *interval
	}

	return 0
}

// SetHeartbeatInterval changes the interval of the running heartbeat.
func (session *LanyardSession) SetHeartbeatInterval(interval time.Duration) {
	session.heartbeatInterval.Store(&interval)

	select {
	case session.heartbeatReset <- struct{}{}:
	default:
	}
}

func (session *LanyardSession) heartbeat() {
	ticker := time.NewTicker(session.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-session.ctx.Done():
			return
		case <-session.heartbeatReset:
			ticker.Reset(session.HeartbeatInterval())
		case <-ticker.C:
			session.Logger.Debug("Sending heartbeat")

			err := session.SendEvent(session.ctx, LanyardOpHeartbeat, nil)

			now := time.Now()
			session.LastHeartbeatSent.Store(&now)

			if err != nil {
				if session.ctx.Err() == nil {
					session.Logger.Error("Heartbeat failed", "error", err)
					RecordFeedError(lanyardSocketFeed)
				}

				return
			}
		}
	}
}

func (session *LanyardSession) SendEvent(ctx context.Context, op LanyardOp, data any) error {
	payload, err := presencejson.Marshal(LanyardSentPayload{
		Op:   op,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	session.Logger.Debug("Sending payload", "payload", string(payload))

	err = session.websocketConn.Write(ctx, websocket.MessageText, payload)
	if err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	return nil
}

func (session *LanyardSession) read(ctx context.Context) (*LanyardPayload, error) {
	_, data, err := session.websocketConn.Read(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}

		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	var payload LanyardPayload

	err = presencejson.Unmarshal(data, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w (payload: %s)", err, string(data))
	}

	return &payload, nil
}

func (session *LanyardSession) closeWS(code websocket.StatusCode) {
	if session.websocketConn == nil {
		return
	}

	err := session.websocketConn.Close(code, "")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		session.Logger.Debug("Failed to close websocket", "error", err)
	}
}
