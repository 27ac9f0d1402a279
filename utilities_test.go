package presence_test

import (
	"testing"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	t.Parallel()

	snapshot, err := presence.DecodeSnapshot([]byte(lanyardPresence))
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "94490510688792576", snapshot.DiscordUser.ID)
	assert.Nil(t, snapshot.Spotify)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/94490510688792576/a_hash.gif", presence.AvatarURL(snapshot.DiscordUser))

	for _, absent := range []string{"", "null", " {} "} {
		snapshot, err = presence.DecodeSnapshot([]byte(absent))
		require.NoError(t, err)
		assert.Nil(t, snapshot, "%q", absent)
	}

	_, err = presence.DecodeSnapshot([]byte("{"))
	assert.Error(t, err)
}

func TestGetEntry(t *testing.T) {
	t.Parallel()

	args := map[string]any{"Address": "redis:6379", "db": 2}

	assert.Equal(t, "redis:6379", presence.GetEntry(args, "address"))
	assert.Equal(t, 2, presence.GetEntry(args, "DB"))
	assert.Nil(t, presence.GetEntry(args, "missing"))
	assert.Equal(t, "fallback", presence.GetStringEntry(args, "missing", "fallback"))
}
