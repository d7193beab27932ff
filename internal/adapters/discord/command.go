package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"lerngruppe/internal/infrastructure/i18n"
	pkgdiscord "lerngruppe/pkg/discord"
)

// CommandName is the slash command showing the current roster.
const CommandName = "lerngruppe"

var rosterCommand = &discordgo.ApplicationCommand{
	Name:        CommandName,
	Description: "Zeigt die aktuelle Teilnehmerliste der Lerngruppe",
}

// HandleRosterCommand answers the slash command privately with the roster.
func (h *Handler) HandleRosterCommand(s interactionResponder, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	participants, err := h.participantUseCase.GetParticipants(ctx)
	if err != nil {
		h.logger.Warn("roster command failed", "error", err)
		if err := respondEphemeral(s, i.Interaction, "❌ "+i18n.ErrorMessage(h.translator, h.locale, err)); err != nil {
			h.logger.Error("discord respond failed", "error", err)
		}
		return
	}
	embed := pkgdiscord.BuildRosterEmbed(h.rosterText(len(participants), nil), sortForRoster(participants))
	if err := respondEphemeralEmbed(s, i.Interaction, embed); err != nil {
		h.logger.Error("discord respond failed", "error", err)
	}
}

func (h *Handler) rosterText(count int, changes []string) pkgdiscord.RosterText {
	return rosterText(h.translator, h.locale, count, changes)
}
