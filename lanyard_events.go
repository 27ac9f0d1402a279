package presence

import (
	"context"
	"fmt"
	"time"
)

const (
	LanyardEventInitState      = "INIT_STATE"
	LanyardEventPresenceUpdate = "PRESENCE_UPDATE"
)

type LanyardOpHandler func(ctx context.Context, session *LanyardSession, payload *LanyardPayload) error

type LanyardDispatchHandler func(ctx context.Context, session *LanyardSession, payload *LanyardPayload) error

var (
	lanyardOps              = make(map[LanyardOp]LanyardOpHandler)
	lanyardDispatchHandlers = make(map[string]LanyardDispatchHandler)
)

func RegisterLanyardOp(op LanyardOp, handler LanyardOpHandler) {
	lanyardOps[op] = handler
}

func RegisterLanyardDispatch(eventType string, handler LanyardDispatchHandler) {
	lanyardDispatchHandlers[eventType] = handler
}

func lanyardOpEvent(ctx context.Context, session *LanyardSession, payload *LanyardPayload) error {
	if payload.Sequence != 0 {
		session.sequence.Store(payload.Sequence)
	}

	return session.OnDispatch(ctx, payload)
}

func lanyardOpHello(_ context.Context, session *LanyardSession, payload *LanyardPayload) error {
	var hello LanyardHello

	err := unmarshalPayload(payload, &hello)
	if err != nil {
		return err
	}

	if hello.HeartbeatInterval <= 0 {
		return ErrSocketInvalidHeartbeatInterval
	}

	session.Logger.Debug("Session received hello after connect", "heartbeat_interval", hello.HeartbeatInterval)

	session.SetHeartbeatInterval(time.Duration(hello.HeartbeatInterval) * time.Millisecond)

	return nil
}

// lanyardDispatchPresence handles both the initial state and later updates.
// With a single subscribe_to_id, the payload is the presence itself.
func lanyardDispatchPresence(ctx context.Context, session *LanyardSession, payload *LanyardPayload) error {
	snapshot, err := DecodeSnapshot(payload.Data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", payload.Type, err)
	}

	session.Logger.Debug("Received presence", "type", payload.Type, "absent", snapshot == nil)

	if !MatchesContextUser(ctx, snapshot) {
		session.Logger.Warn("Dropping presence of another user", "snapshot_user_id", snapshot.DiscordUser.ID)

		return nil
	}

	session.handler(snapshot)

	return nil
}

func init() {
	RegisterLanyardOp(LanyardOpEvent, lanyardOpEvent)
	RegisterLanyardOp(LanyardOpHello, lanyardOpHello)

	RegisterLanyardDispatch(LanyardEventInitState, lanyardDispatchPresence)
	RegisterLanyardDispatch(LanyardEventPresenceUpdate, lanyardDispatchPresence)
}
