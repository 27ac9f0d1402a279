package presence

import "errors"

var (
	ErrMissingUserID   = errors.New("missing user id")
	ErrMissingFeedType = errors.New("missing feed type")
	ErrUnknownFeed     = errors.New("unknown feed type")

	ErrCardStopped    = errors.New("card stopped")
	ErrCardNotMounted = errors.New("card not mounted")

	ErrSocketInvalidHeartbeatInterval = errors.New("socket invalid heartbeat interval")
	ErrSocketUnexpectedPayload        = errors.New("socket unexpected payload")

	ErrUserNotMonitored = errors.New("user not monitored by lanyard")
	ErrRequestFailed    = errors.New("lanyard request failed")

	ErrNoOpHandler       = errors.New("no op handler found")
	ErrNoDispatchHandler = errors.New("no dispatch handler found")
)
