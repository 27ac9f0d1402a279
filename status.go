package presence

import (
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
)

type ReconcilerState int

const (
	// ReconcilerStateLoading means no snapshot has been delivered yet.
	ReconcilerStateLoading ReconcilerState = iota
	// ReconcilerStateReady means a snapshot is present. There is no way back
	// to Loading: without updates the last known view stays frozen.
	ReconcilerStateReady
)

var reconcilerStateNames = []string{
	"Loading",
	"Ready",
}

func (state ReconcilerState) String() string {
	return reconcilerStateNames[state]
}

func (state ReconcilerState) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}

func (state *ReconcilerState) UnmarshalText(text []byte) error {
	index := slices.Index(reconcilerStateNames, string(text))
	if index < 0 {
		return fmt.Errorf("unknown ReconcilerState %q", text)
	}

	*state = ReconcilerState(index)

	return nil
}

type CardStatus int

const (
	CardStatusIdle CardStatus = iota
	CardStatusFailed
	CardStatusSubscribing
	CardStatusSubscribed
	CardStatusStopping
	CardStatusStopped
)

var cardStatusNames = []string{
	"Idle",
	"Failed",
	"Subscribing",
	"Subscribed",
	"Stopping",
	"Stopped",
}

func (status CardStatus) String() string {
	return cardStatusNames[status]
}

func (status CardStatus) MarshalText() ([]byte, error) {
	return []byte(status.String()), nil
}

func (status *CardStatus) UnmarshalText(text []byte) error {
	index := slices.Index(cardStatusNames, string(text))
	if index < 0 {
		return fmt.Errorf("unknown CardStatus %q", text)
	}

	*status = CardStatus(index)

	return nil
}

type BadgeShape int

const (
	BadgeShapeCircle BadgeShape = iota
	BadgeShapeMobile
)

var badgeShapeNames = []string{
	"circle",
	"mobile",
}

func (shape BadgeShape) String() string {
	return badgeShapeNames[shape]
}

func (shape BadgeShape) MarshalText() ([]byte, error) {
	return []byte(shape.String()), nil
}

func (shape *BadgeShape) UnmarshalText(text []byte) error {
	index := slices.Index(badgeShapeNames, string(text))
	if index < 0 {
		return fmt.Errorf("unknown BadgeShape %q", text)
	}

	*shape = BadgeShape(index)

	return nil
}

// StatusColor returns the indicator colour of a status.
func StatusColor(status discordgo.Status) string {
	switch status {
	case discordgo.StatusOnline:
		return "rgb(28, 176, 80)"
	case discordgo.StatusDoNotDisturb:
		return "#f04747"
	case discordgo.StatusIdle:
		return "#faa81a"
	default:
		return "#747f8d"
	}
}
