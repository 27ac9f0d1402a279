package presence

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	// TransparentImage is a 1x1 transparent PNG used whenever an image cannot be resolved.
	TransparentImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

	EndpointMediaProxy = "https://media.discordapp.net/"

	TwemojiBaseURL = "https://cdn.jsdelivr.net/gh/twitter/twemoji@14.0.2/assets/72x72/"

	animatedHashPrefix = "a_"
	mediaProxyPrefix   = "mp:"
)

var (
	EndpointAppAssets      = discordgo.EndpointCDN + "app-assets/"
	EndpointDefaultAvatars = discordgo.EndpointCDN + "embed/avatars/"
)

// DefaultLargeAssetOverrides are merged under any caller supplied overrides.
var DefaultLargeAssetOverrides = map[string]string{
	"VALORANT": "https://cdn.discordapp.com/app-icons/700136079562375258/e55fc8259df1548328f977d302779ab7",
}

// IsAnimatedHash reports whether an asset hash refers to an animated image.
func IsAnimatedHash(hash string) bool {
	return strings.HasPrefix(hash, animatedHashPrefix)
}

// AvatarURL returns the CDN url of a user's avatar. Users without an avatar
// get the default avatar Discord assigns them.
func AvatarURL(user User) string {
	if user.Avatar == nil || *user.Avatar == "" {
		return DefaultAvatarURL(user)
	}

	if IsAnimatedHash(*user.Avatar) {
		return discordgo.EndpointUserAvatarAnimated(user.ID, *user.Avatar)
	}

	return discordgo.EndpointUserAvatar(user.ID, *user.Avatar)
}

// DefaultAvatarURL returns the embed avatar for a user. Migrated usernames
// (discriminator "0") are indexed by id, legacy ones by discriminator.
func DefaultAvatarURL(user User) string {
	var index uint64

	if user.Discriminator == "" || user.Discriminator == "0" {
		id, err := strconv.ParseUint(user.ID, 10, 64)
		if err == nil {
			index = (id >> 22) % 6
		}
	} else {
		discriminator, err := strconv.ParseUint(user.Discriminator, 10, 64)
		if err == nil {
			index = discriminator % 5
		}
	}

	return EndpointDefaultAvatars + strconv.FormatUint(index, 10) + ".png"
}

// ActivityAssetURL resolves an activity asset reference. The second return
// value is false when the reference cannot be turned into a url.
func ActivityAssetURL(applicationID, asset string) (string, bool) {
	if asset == "" {
		return "", false
	}

	if strings.HasPrefix(asset, mediaProxyPrefix) {
		return EndpointMediaProxy + strings.TrimPrefix(asset, mediaProxyPrefix), true
	}

	if applicationID == "" {
		return "", false
	}

	return EndpointAppAssets + applicationID + "/" + asset + ".png", true
}

// EmojiURL returns the hosted url of a custom emoji.
func EmojiURL(id string, animated bool) string {
	if animated {
		return discordgo.EndpointEmojiAnimated(id)
	}

	return discordgo.EndpointEmoji(id)
}
