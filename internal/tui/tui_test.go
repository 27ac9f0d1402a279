package tui

import (
	"testing"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

type staticSource struct {
	frame presence.Frame
}

func (s staticSource) Frame() presence.Frame {
	return s.frame
}

func readyFrame() presence.Frame {
	return presence.Frame{
		State: presence.ReconcilerStateReady,
		Container: presence.ContainerStyle{
			BackgroundStyle: presence.BackgroundStyle("rgb(24, 25, 28)"),
			TextStyle:       presence.TextStyleLight,
			ShowBorder:      true,
		},
		Sections: []presence.Section{
			{
				Kind: presence.SectionKindUserHeader,
				UserHeader: &presence.UserHeaderSection{
					Username:      "user",
					DisplayName:   "Display",
					Discriminator: "0",
				},
				TrailingMargin: true,
			},
			{
				Kind: presence.SectionKindStatusBadge,
				StatusBadge: &presence.StatusBadge{
					Status: "dnd",
					Shape:  presence.BadgeShapeMobile,
					Color:  "#ed4245",
				},
			},
			{
				Kind:    presence.SectionKindMusic,
				Heading: presence.HeadingMusic,
				Music: &presence.MusicActivity{
					TrackTitle:    "Song",
					ArtistLine:    "by Artist",
					ElapsedLabel:  "1:30",
					TotalLabel:    "3:00",
					ProgressRatio: 50,
				},
			},
			{
				Kind: presence.SectionKindCustomStatus,
				CustomStatus: &presence.CustomStatus{
					Glyph: presence.EmojiGlyph{Kind: presence.GlyphKindHosted, Name: "wave"},
					Text:  "hello",
				},
			},
		},
	}
}

func TestRenderFrame(t *testing.T) {
	t.Parallel()

	rendered := RenderFrame(readyFrame(), progress.New(progress.WithoutPercentage()))

	assert.Contains(t, rendered, "Display")
	assert.Contains(t, rendered, "user")
	assert.NotContains(t, rendered, "#0")
	assert.Contains(t, rendered, "dnd")
	assert.Contains(t, rendered, presence.HeadingMusic)
	assert.Contains(t, rendered, "by Artist")
	assert.Contains(t, rendered, "1:30 / 3:00")
	assert.Contains(t, rendered, ":wave: hello")
}

func TestRenderFramePlaceholder(t *testing.T) {
	t.Parallel()

	frame := presence.Render(presence.View{State: presence.ReconcilerStateLoading}, nil)

	assert.Contains(t, RenderFrame(frame, progress.New()), "Loading presence...")
}

func TestTerminalColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, lipgloss.Color("#18191c"), TerminalColor("rgb(24, 25, 28)"))
	assert.Equal(t, lipgloss.Color("#ffffff"), TerminalColor("#ffffff"))
	assert.Equal(t, lipgloss.NoColor{}, TerminalColor(""))
}

func TestModelUpdate(t *testing.T) {
	t.Parallel()

	source := staticSource{frame: readyFrame()}
	model := New(source)

	updated, cmd := model.Update(frameMsg(presence.Frame{State: presence.ReconcilerStateLoading}))
	assert.Nil(t, cmd)
	assert.Equal(t, presence.ReconcilerStateLoading, updated.(Model).frame.State)

	updated, cmd = updated.Update(refreshMsg{})
	assert.NotNil(t, cmd)
	assert.Equal(t, presence.ReconcilerStateReady, updated.(Model).frame.State)

	_, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
