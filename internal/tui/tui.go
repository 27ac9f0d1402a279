// Package tui renders a presence card in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RefreshInterval re-renders the card so game elapsed labels keep moving
// between snapshots.
var RefreshInterval = time.Second

const cardWidth = 44

type frameMsg presence.Frame

type refreshMsg time.Time

// FrameSource is where the model reads frames from.
type FrameSource interface {
	Frame() presence.Frame
}

type Model struct {
	source   FrameSource
	frame    presence.Frame
	progress progress.Model
}

func New(source FrameSource) Model {
	return Model{
		source: source,
		frame:  source.Frame(),
		progress: progress.New(
			progress.WithSolidFill("#1db954"),
			progress.WithWidth(cardWidth-4),
			progress.WithoutPercentage(),
		),
	}
}

func (m Model) Init() tea.Cmd {
	return refresh()
}

func refresh() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case frameMsg:
		m.frame = presence.Frame(msg)
	case refreshMsg:
		m.frame = m.source.Frame()

		return m, refresh()
	}

	return m, nil
}

func (m Model) View() string {
	return RenderFrame(m.frame, m.progress)
}

// RenderFrame draws a frame as a bordered box.
func RenderFrame(frame presence.Frame, bar progress.Model) string {
	container := frame.Container

	foreground := lipgloss.Color("#ffffff")
	if container.TextStyle == presence.TextStyleDark {
		foreground = lipgloss.Color("#060607")
	}

	box := lipgloss.NewStyle().
		Width(cardWidth).
		Padding(0, 1).
		Foreground(foreground).
		Background(TerminalColor(string(container.BackgroundStyle)))

	if container.ShowBorder {
		box = box.Border(lipgloss.RoundedBorder())
	}

	lines := make([]string, 0, len(frame.Sections)*3)

	for _, section := range frame.Sections {
		lines = append(lines, renderSection(section, bar))

		if section.TrailingMargin {
			lines = append(lines, "")
		}
	}

	return box.Render(strings.Join(lines, "\n")) + "\n"
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Faint(true)
	titleStyle   = lipgloss.NewStyle().Bold(true)
)

func renderSection(section presence.Section, bar progress.Model) string {
	switch section.Kind {
	case presence.SectionKindPlaceholder:
		return lipgloss.NewStyle().
			Foreground(TerminalColor(section.Placeholder.ForegroundColor)).
			Background(TerminalColor(section.Placeholder.BackgroundColor)).
			Render("Loading presence...")
	case presence.SectionKindUserHeader:
		return renderUserHeader(section.UserHeader)
	case presence.SectionKindStatusBadge:
		return renderStatusBadge(section.StatusBadge)
	case presence.SectionKindGame:
		return renderGame(section.Heading, section.Game)
	case presence.SectionKindMusic:
		return renderMusic(section.Heading, section.Music, bar)
	case presence.SectionKindCustomStatus:
		return renderCustomStatus(section.CustomStatus)
	default:
		return ""
	}
}

func renderUserHeader(header *presence.UserHeaderSection) string {
	name := titleStyle.Render(header.Username)

	if header.Discriminator != "" && header.Discriminator != "0" {
		name += lipgloss.NewStyle().
			Foreground(TerminalColor(header.DiscriminatorColor)).
			Render("#" + header.Discriminator)
	}

	if header.DisplayName != "" && header.DisplayName != header.Username {
		return header.DisplayName + "\n" + name
	}

	return name
}

func renderStatusBadge(badge *presence.StatusBadge) string {
	glyph := "●"
	if badge.Shape == presence.BadgeShapeMobile {
		glyph = "▮"
	}

	return lipgloss.NewStyle().
		Foreground(TerminalColor(badge.Color)).
		Render(glyph) + " " + string(badge.Status)
}

func renderGame(heading string, game *presence.GameActivity) string {
	lines := []string{headingStyle.Render(heading), titleStyle.Render(game.Title)}

	for _, line := range []string{game.Details, game.State, game.ElapsedLabel} {
		if line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

func renderMusic(heading string, music *presence.MusicActivity, bar progress.Model) string {
	lines := []string{headingStyle.Render(heading), titleStyle.Render(music.TrackTitle)}

	for _, line := range []string{music.ArtistLine, music.AlbumLine} {
		if line != "" {
			lines = append(lines, line)
		}
	}

	ratio := music.ProgressRatio / 100
	ratio = max(0, min(1, ratio))

	lines = append(lines,
		bar.ViewAs(ratio),
		fmt.Sprintf("%s / %s", music.ElapsedLabel, music.TotalLabel),
	)

	return strings.Join(lines, "\n")
}

func renderCustomStatus(status *presence.CustomStatus) string {
	var glyph string

	switch status.Glyph.Kind {
	case presence.GlyphKindHosted:
		glyph = ":" + status.Glyph.Name + ":"
	case presence.GlyphKindUnicode:
		glyph = status.Glyph.Name
	}

	return strings.TrimSpace(glyph + " " + status.Text)
}

// TerminalColor converts a css colour into a lipgloss colour. "rgb(r, g, b)"
// becomes its hex form; anything else is passed through.
func TerminalColor(css string) lipgloss.TerminalColor {
	var r, g, b int

	if _, err := fmt.Sscanf(css, "rgb(%d, %d, %d)", &r, &g, &b); err == nil {
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, b))
	}

	if css == "" {
		return lipgloss.NoColor{}
	}

	return lipgloss.Color(css)
}

// Run shows the card until the user quits or ctx is done.
func Run(ctx context.Context, card *presence.Card, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)

	program := tea.NewProgram(New(card), opts...)

	remove := card.AddListener(func(frame presence.Frame) {
		program.Send(frameMsg(frame))
	})
	defer remove()

	_, err := program.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run terminal card: %w", err)
	}

	return nil
}
