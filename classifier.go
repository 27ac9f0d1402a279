package presence

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ClassifiedActivity is the closed set of ways an activity can render:
// GameActivity, MusicActivity, CustomStatus or Unrenderable.
type ClassifiedActivity interface {
	activityVariant()
}

type GameActivity struct {
	Title              string `json:"title"`
	Details            string `json:"details,omitempty"`
	State              string `json:"state,omitempty"`
	ElapsedLabel       string `json:"elapsed_label"`
	PrimaryImageURL    string `json:"primary_image_url"`
	PrimaryImageText   string `json:"primary_image_text"`
	SecondaryImageURL  string `json:"secondary_image_url"`
	SecondaryImageText string `json:"secondary_image_text"`
}

type MusicActivity struct {
	TrackTitle    string  `json:"track_title"`
	ArtistLine    string  `json:"artist_line,omitempty"`
	AlbumLine     string  `json:"album_line,omitempty"`
	ElapsedLabel  string  `json:"elapsed_label"`
	TotalLabel    string  `json:"total_label"`
	AlbumArtURL   string  `json:"album_art_url"`
	AlbumArtText  string  `json:"album_art_text"`
	ProgressRatio float64 `json:"progress_ratio"`
}

// CustomStatus is a user's status line. Segments is Text after the Unicode
// emoji replacement pass.
type CustomStatus struct {
	Glyph    EmojiGlyph    `json:"glyph"`
	Text     string        `json:"text"`
	Segments []TextSegment `json:"segments,omitempty"`
}

type Unrenderable struct {
	Reason UnrenderableReason `json:"reason"`
}

func (GameActivity) activityVariant()  {}
func (MusicActivity) activityVariant() {}
func (CustomStatus) activityVariant()  {}
func (Unrenderable) activityVariant()  {}

type UnrenderableReason string

const (
	UnrenderableUnsupportedKind UnrenderableReason = "unsupported_kind"
	UnrenderableBlacklisted     UnrenderableReason = "blacklisted"
	UnrenderableNoMusicSession  UnrenderableReason = "no_music_session"
)

type GlyphKind int

const (
	GlyphKindNone GlyphKind = iota
	GlyphKindHosted
	GlyphKindUnicode
)

// EmojiGlyph is the emoji in front of a custom status. Hosted emoji carry
// the CDN url; Unicode emoji carry the segments of the replacement pass.
type EmojiGlyph struct {
	Name     string        `json:"name,omitempty"`
	URL      string        `json:"url,omitempty"`
	Segments []TextSegment `json:"segments,omitempty"`
	Kind     GlyphKind     `json:"kind"`
}

// PlaybackProgress is the last computed position within a music session.
type PlaybackProgress struct {
	Elapsed string  `json:"elapsed"`
	Total   string  `json:"total"`
	Ratio   float64 `json:"ratio"`
}

// InitialPlaybackProgress is shown before the first computation of a window.
func InitialPlaybackProgress() PlaybackProgress {
	return PlaybackProgress{
		Elapsed: "0:00",
		Total:   "0:00",
		Ratio:   0,
	}
}

// ClassifyInput is everything outside the activity record that
// classification depends on.
type ClassifyInput struct {
	Music    *MusicSession
	Display  *DisplayConfig
	Now      time.Time
	Playback PlaybackProgress
	Audible  bool
}

// Classify maps an activity record to the variant it renders as. Optional
// fields that are absent degrade to empty strings or the transparent image.
func Classify(record ActivityRecord, input ClassifyInput) ClassifiedActivity {
	display := input.Display
	if display == nil {
		display = NewDisplayConfig()
	}

	if display.IsBlacklisted(record.Name) {
		return Unrenderable{Reason: UnrenderableBlacklisted}
	}

	switch record.Kind {
	case discordgo.ActivityTypeGame:
		return classifyGame(record, display, input.Now)
	case discordgo.ActivityTypeListening:
		// A listening record only renders alongside an active session.
		if input.Music == nil {
			return Unrenderable{Reason: UnrenderableNoMusicSession}
		}

		return classifyMusic(input.Music, input.Audible, input.Playback)
	case discordgo.ActivityTypeCustom:
		return classifyCustomStatus(record)
	default:
		return Unrenderable{Reason: UnrenderableUnsupportedKind}
	}
}

func classifyGame(record ActivityRecord, display *DisplayConfig, now time.Time) GameActivity {
	game := GameActivity{
		Title:             record.Name,
		Details:           record.Details,
		State:             record.State,
		ElapsedLabel:      FormatElapsed(record.StartedAt(), now),
		PrimaryImageURL:   TransparentImage,
		SecondaryImageURL: TransparentImage,
	}

	assets := record.Assets
	if assets == nil {
		assets = &Assets{}
	}

	game.PrimaryImageText = assets.LargeText
	game.SecondaryImageText = assets.SmallText

	if url, ok := ActivityAssetURL(record.ApplicationID, assets.LargeImage); ok {
		game.PrimaryImageURL = url
	} else if url, ok := display.LargeAssetOverride(record.Name); ok {
		game.PrimaryImageURL = url
	}

	if url, ok := ActivityAssetURL(record.ApplicationID, assets.SmallImage); ok {
		game.SecondaryImageURL = url
	}

	return game
}

func classifyMusic(session *MusicSession, audible bool, playback PlaybackProgress) MusicActivity {
	music := MusicActivity{
		TrackTitle:    session.Song,
		ElapsedLabel:  playback.Elapsed,
		TotalLabel:    playback.Total,
		ProgressRatio: playback.Ratio,
		AlbumArtText:  session.Song,
	}

	if session.Artist != "" {
		music.ArtistLine = "by " + strings.ReplaceAll(session.Artist, ";", ",")
	}

	if session.Album != "" {
		music.AlbumLine = "on " + session.Album
	}

	if audible {
		music.AlbumArtURL = session.AlbumArtURL
	}

	return music
}

func classifyCustomStatus(record ActivityRecord) CustomStatus {
	status := CustomStatus{
		Text:     record.State,
		Segments: ReplaceEmoji(record.State),
	}

	emoji := record.Emoji

	switch {
	case emoji == nil:
	case emoji.ID != "":
		status.Glyph = EmojiGlyph{
			Kind: GlyphKindHosted,
			Name: emoji.Name,
			URL:  EmojiURL(emoji.ID, emoji.Animated),
		}
	case emoji.Name != "":
		segments := ReplaceEmoji(emoji.Name)

		glyph := EmojiGlyph{
			Kind:     GlyphKindUnicode,
			Name:     emoji.Name,
			Segments: segments,
		}

		if len(segments) > 0 && segments[0].IsEmoji() {
			glyph.URL = segments[0].EmojiURL
		}

		status.Glyph = glyph
	}

	return status
}
