package presence

import (
	"fmt"
	"slices"
)

type SectionKind int

const (
	SectionKindPlaceholder SectionKind = iota
	SectionKindUserHeader
	SectionKindStatusBadge
	SectionKindGame
	SectionKindMusic
	SectionKindCustomStatus
)

var sectionKindNames = []string{
	"placeholder",
	"user_header",
	"status_badge",
	"game",
	"music",
	"custom_status",
}

func (kind SectionKind) String() string {
	return sectionKindNames[kind]
}

func (kind SectionKind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

func (kind *SectionKind) UnmarshalText(text []byte) error {
	index := slices.Index(sectionKindNames, string(text))
	if index < 0 {
		return fmt.Errorf("unknown SectionKind %q", text)
	}

	*kind = SectionKind(index)

	return nil
}

const (
	HeadingGame  = "PLAYING A GAME"
	HeadingMusic = "LISTENING TO SPOTIFY"
)

// Section is one renderable block of a card. Exactly one of the payload
// pointers is set, matching Kind.
type Section struct {
	Placeholder  *PlaceholderSection `json:"placeholder,omitempty"`
	UserHeader   *UserHeaderSection  `json:"user_header,omitempty"`
	StatusBadge  *StatusBadge        `json:"status_badge,omitempty"`
	Game         *GameActivity       `json:"game,omitempty"`
	Music        *MusicActivity      `json:"music,omitempty"`
	CustomStatus *CustomStatus       `json:"custom_status,omitempty"`

	Heading        string      `json:"heading,omitempty"`
	Kind           SectionKind `json:"kind"`
	TrailingMargin bool        `json:"trailing_margin"`
}

// PlaceholderSection is shown while no snapshot has arrived.
type PlaceholderSection struct {
	BackgroundColor string `json:"background_color"`
	ForegroundColor string `json:"foreground_color"`
}

type UserHeaderSection struct {
	UserID             string `json:"user_id"`
	Username           string `json:"username"`
	DisplayName        string `json:"display_name,omitempty"`
	Discriminator      string `json:"discriminator"`
	DiscriminatorColor string `json:"discriminator_color"`
	AvatarURL          string `json:"avatar_url"`
	AvatarText         string `json:"avatar_text"`
}

// Frame is a projected card: container styling plus its ordered sections.
type Frame struct {
	Container ContainerStyle  `json:"container"`
	Sections  []Section       `json:"sections"`
	State     ReconcilerState `json:"state"`
	Revision  uint64          `json:"revision"`
}

type ContainerStyle struct {
	ExtraStyle      map[string]string `json:"extra_style,omitempty"`
	BackgroundStyle BackgroundStyle   `json:"background_style"`
	TextStyle       TextStyle         `json:"text_style"`
	ShowBorder      bool              `json:"show_border"`
}

// Render projects a view into a frame.
func Render(view View, config *DisplayConfig) Frame {
	if config == nil {
		config = NewDisplayConfig()
	}

	return Frame{
		Container: ContainerStyle{
			ExtraStyle:      config.ExtraStyle(),
			BackgroundStyle: config.BackgroundStyle(),
			TextStyle:       config.TextStyle(),
			ShowBorder:      config.ShowBorder(),
		},
		Sections: Project(view, config),
		State:    view.State,
		Revision: view.Revision,
	}
}

// Project turns a view into its ordered sections: a placeholder while
// loading, otherwise the user header, the status badge and every renderable
// activity in snapshot order.
func Project(view View, config *DisplayConfig) []Section {
	if config == nil {
		config = NewDisplayConfig()
	}

	if view.State != ReconcilerStateReady || view.Snapshot == nil {
		return []Section{placeholderSection(config.TextStyle())}
	}

	snapshot := view.Snapshot

	input := ClassifyInput{
		Music:    snapshot.Spotify,
		Display:  config,
		Now:      view.Now,
		Playback: view.Playback,
		Audible:  snapshot.Audible(),
	}

	activities := make([]Section, 0, len(snapshot.Activities))

	for _, record := range snapshot.Activities {
		if section, ok := activitySection(Classify(record, input)); ok {
			activities = append(activities, section)
		}
	}

	for index := range activities {
		activities[index].TrailingMargin = index < len(activities)-1
	}

	badge := DeriveStatusBadge(snapshot)

	sections := make([]Section, 0, len(activities)+2)
	sections = append(sections,
		Section{
			Kind:           SectionKindUserHeader,
			UserHeader:     userHeaderSection(snapshot.DiscordUser, config.TextStyle()),
			TrailingMargin: len(activities) > 0,
		},
		Section{
			Kind:        SectionKindStatusBadge,
			StatusBadge: &badge,
		},
	)

	return append(sections, activities...)
}

func activitySection(activity ClassifiedActivity) (Section, bool) {
	switch activity := activity.(type) {
	case GameActivity:
		return Section{Kind: SectionKindGame, Heading: HeadingGame, Game: &activity}, true
	case MusicActivity:
		return Section{Kind: SectionKindMusic, Heading: HeadingMusic, Music: &activity}, true
	case CustomStatus:
		return Section{Kind: SectionKindCustomStatus, CustomStatus: &activity}, true
	case Unrenderable:
		return Section{}, false
	default:
		return Section{}, false
	}
}

func placeholderSection(textStyle TextStyle) Section {
	placeholder := &PlaceholderSection{
		BackgroundColor: "#2b2b2b",
		ForegroundColor: "#424242",
	}

	if textStyle == TextStyleDark {
		placeholder.BackgroundColor = "#c9c9c9"
		placeholder.ForegroundColor = "#ffffff"
	}

	return Section{
		Kind:        SectionKindPlaceholder,
		Placeholder: placeholder,
	}
}

func userHeaderSection(user User, textStyle TextStyle) *UserHeaderSection {
	header := &UserHeaderSection{
		UserID:             user.ID,
		Username:           user.Username,
		Discriminator:      user.Discriminator,
		DiscriminatorColor: "#b9bbbe",
		AvatarURL:          AvatarURL(user),
		AvatarText:         user.ID + "#" + user.Discriminator,
	}

	if user.GlobalName != nil {
		header.DisplayName = *user.GlobalName
	}

	if textStyle == TextStyleDark {
		header.DiscriminatorColor = "#4f5660"
	}

	return header
}

