package presence

import (
	"github.com/bwmarrin/discordgo"
)

// Snapshot is the latest known presence of a single user, in the shape
// Lanyard delivers it. A snapshot is never mutated once received; a newer
// one replaces it entirely.
type Snapshot struct {
	Spotify            *MusicSession    `json:"spotify"`
	DiscordUser        User             `json:"discord_user"`
	DiscordStatus      discordgo.Status `json:"discord_status"`
	Activities         []ActivityRecord `json:"activities"`
	ListeningToSpotify bool             `json:"listening_to_spotify"`

	ActiveOnDiscordDesktop bool `json:"active_on_discord_desktop"`
	ActiveOnDiscordMobile  bool `json:"active_on_discord_mobile"`
	ActiveOnDiscordWeb     bool `json:"active_on_discord_web"`
}

// ActiveSurfaces are the clients a user is connected from. They are not
// mutually exclusive.
type ActiveSurfaces struct {
	Desktop bool `json:"desktop"`
	Mobile  bool `json:"mobile"`
	Web     bool `json:"web"`
}

func (snapshot *Snapshot) Surfaces() ActiveSurfaces {
	if snapshot == nil {
		return ActiveSurfaces{}
	}

	return ActiveSurfaces{
		Desktop: snapshot.ActiveOnDiscordDesktop,
		Mobile:  snapshot.ActiveOnDiscordMobile,
		Web:     snapshot.ActiveOnDiscordWeb,
	}
}

// ActiveMusicSession returns the music session if one is present.
func (snapshot *Snapshot) ActiveMusicSession() (*MusicSession, bool) {
	if snapshot == nil || snapshot.Spotify == nil {
		return nil, false
	}

	return snapshot.Spotify, true
}

// Audible reports whether the music session should currently show art and progress.
func (snapshot *Snapshot) Audible() bool {
	return snapshot != nil && snapshot.Spotify != nil && snapshot.ListeningToSpotify
}

// User is the identity block of a snapshot.
type User struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	GlobalName    *string `json:"global_name"`
	Discriminator string  `json:"discriminator"`
	Avatar        *string `json:"avatar"`
	PublicFlags   int     `json:"public_flags"`
}

// ActivityRecord represents one ongoing activity.
type ActivityRecord struct {
	Timestamps    *Timestamps            `json:"timestamps,omitempty"`
	Assets        *Assets                `json:"assets,omitempty"`
	Emoji         *Emoji                 `json:"emoji,omitempty"`
	ID            string                 `json:"id,omitempty"`
	Name          string                 `json:"name"`
	Details       string                 `json:"details,omitempty"`
	State         string                 `json:"state,omitempty"`
	ApplicationID string                 `json:"application_id,omitempty"`
	CreatedAt     int64                  `json:"created_at,omitempty"`
	Kind          discordgo.ActivityType `json:"type"`
}

// StartedAt returns the start timestamp in epoch milliseconds, or 0 when absent.
func (record ActivityRecord) StartedAt() int64 {
	if record.Timestamps == nil {
		return 0
	}

	return record.Timestamps.Start
}

// Timestamps represents the starting and ending timestamp of an activity in epoch milliseconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets represents an activity's images and their hover texts.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Emoji is the emoji attached to a custom status.
type Emoji struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

// MusicSession is the currently playing track. Artist names are joined by
// semicolons on the wire.
type MusicSession struct {
	Timestamps  Timestamps `json:"timestamps"`
	TrackID     string     `json:"track_id"`
	Song        string     `json:"song"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album"`
	AlbumArtURL string     `json:"album_art_url"`
}

// PlaybackWindow returns the start and end of the track in epoch milliseconds.
func (session *MusicSession) PlaybackWindow() (start, end int64) {
	if session == nil {
		return 0, 0
	}

	return session.Timestamps.Start, session.Timestamps.End
}
