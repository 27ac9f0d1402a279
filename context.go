package presence

import (
	"context"
)

type contextKey string

var userIDKey contextKey = "userID"

// WithUserID adds the subscribed user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the subscribed user ID from the context if present
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)

	return userID, ok && userID != ""
}

// MatchesContextUser reports whether a snapshot belongs to the user
// subscribed in ctx. Snapshots without a user id, and contexts without a
// subscribed user, always match.
func MatchesContextUser(ctx context.Context, snapshot *Snapshot) bool {
	userID, ok := UserIDFromContext(ctx)
	if !ok || snapshot == nil || snapshot.DiscordUser.ID == "" {
		return true
	}

	return snapshot.DiscordUser.ID == userID
}
