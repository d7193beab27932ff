package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"lerngruppe/internal/domain/entities"
)

const (
	embedColor = 0x5865F2
	// Discord rejects descriptions above 4096 characters.
	maxDescription = 4000
)

// RosterText holds the localized strings of a roster embed.
type RosterText struct {
	Title  string
	Empty  string
	Footer string
	// Changes are announcement lines shown above the roster.
	Changes []string
}

// BuildRosterEmbed lists participants with their sign-up time. Only names
// and times are shown, never tokens or other form fields.
func BuildRosterEmbed(text RosterText, participants []entities.Participant) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, line := range text.Changes {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(text.Changes) > 0 {
		b.WriteString("\n")
	}
	if len(participants) == 0 {
		b.WriteString(text.Empty)
	}
	for i, p := range participants {
		line := fmt.Sprintf("%d. **%s** · %s\n", i+1, p.Name, FormatJoinedAt(p.Timestamp))
		if b.Len()+len(line) > maxDescription {
			b.WriteString("…")
			break
		}
		b.WriteString(line)
	}
	return &discordgo.MessageEmbed{
		Title:       "📚 " + text.Title,
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       embedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: text.Footer},
	}
}
