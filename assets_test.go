package presence_test

import (
	"testing"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/stretchr/testify/assert"
)

func stringPtr(s string) *string {
	return &s
}

func TestAvatarURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user presence.User
		want string
	}{
		{
			name: "static",
			user: presence.User{ID: "94490510688792576", Avatar: stringPtr("abcdef")},
			want: "https://cdn.discordapp.com/avatars/94490510688792576/abcdef.png",
		},
		{
			name: "animated",
			user: presence.User{ID: "94490510688792576", Avatar: stringPtr("a_abcdef")},
			want: "https://cdn.discordapp.com/avatars/94490510688792576/a_abcdef.gif",
		},
		{
			name: "legacy discriminator default",
			user: presence.User{ID: "94490510688792576", Discriminator: "1337"},
			want: "https://cdn.discordapp.com/embed/avatars/2.png",
		},
		{
			name: "migrated username default",
			user: presence.User{ID: "94490510688792576", Discriminator: "0"},
			want: "https://cdn.discordapp.com/embed/avatars/3.png",
		},
		{
			name: "empty avatar hash",
			user: presence.User{ID: "1", Discriminator: "0001", Avatar: stringPtr("")},
			want: "https://cdn.discordapp.com/embed/avatars/1.png",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, presence.AvatarURL(tt.user))
		})
	}
}

func TestActivityAssetURL(t *testing.T) {
	t.Parallel()

	url, ok := presence.ActivityAssetURL("1", "asset")
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.discordapp.com/app-assets/1/asset.png", url)

	url, ok = presence.ActivityAssetURL("", "mp:external/x.png")
	assert.True(t, ok)
	assert.Equal(t, "https://media.discordapp.net/external/x.png", url)

	_, ok = presence.ActivityAssetURL("", "asset")
	assert.False(t, ok, "template asset without an application id")

	_, ok = presence.ActivityAssetURL("1", "")
	assert.False(t, ok)
}

func TestEmojiURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cdn.discordapp.com/emojis/42.png", presence.EmojiURL("42", false))
	assert.Equal(t, "https://cdn.discordapp.com/emojis/42.gif", presence.EmojiURL("42", true))
}
