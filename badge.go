package presence

import "github.com/bwmarrin/discordgo"

// StatusBadge is the online indicator drawn over the avatar.
type StatusBadge struct {
	Status discordgo.Status `json:"status"`
	Shape  BadgeShape       `json:"shape"`
	Color  string           `json:"color"`
}

// DeriveStatusBadge picks the badge for a snapshot. Desktop takes precedence
// over mobile, and a user on neither is shown offline. Idle and do not
// disturb pass through; every other status shows as online.
func DeriveStatusBadge(snapshot *Snapshot) StatusBadge {
	surfaces := snapshot.Surfaces()

	switch {
	case surfaces.Desktop:
		return newStatusBadge(surfaceStatus(snapshot.DiscordStatus), BadgeShapeCircle)
	case surfaces.Mobile:
		return newStatusBadge(surfaceStatus(snapshot.DiscordStatus), BadgeShapeMobile)
	default:
		return newStatusBadge(discordgo.StatusOffline, BadgeShapeCircle)
	}
}

func surfaceStatus(status discordgo.Status) discordgo.Status {
	if status == discordgo.StatusIdle || status == discordgo.StatusDoNotDisturb {
		return status
	}

	return discordgo.StatusOnline
}

func newStatusBadge(status discordgo.Status, shape BadgeShape) StatusBadge {
	return StatusBadge{
		Status: status,
		Shape:  shape,
		Color:  StatusColor(status),
	}
}

// IsOnline reports whether the badge shows the user as reachable.
func (badge StatusBadge) IsOnline() bool {
	return badge.Status != discordgo.StatusOffline
}
