package discord

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/ports/output"
	pkgdiscord "lerngruppe/pkg/discord"
)

// DefaultRetryDelay is the wait before re-subscribing after a lost feed.
const DefaultRetryDelay = 5 * time.Second

type messageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type snapshotSource interface {
	WatchParticipants(ctx context.Context) (<-chan entities.Snapshot, error)
}

// Announcer posts the roster to a channel whenever participants join or
// leave. The first snapshot only sets the baseline.
type Announcer struct {
	source     snapshotSource
	sender     messageSender
	channelID  string
	translator output.T
	locale     string
	logger     *slog.Logger
	retryDelay time.Duration

	known map[string]entities.Participant
}

// NewAnnouncer creates an Announcer.
func NewAnnouncer(source snapshotSource, sender messageSender, channelID string, translator output.T, locale string, logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{
		source:     source,
		sender:     sender,
		channelID:  channelID,
		translator: translator,
		locale:     locale,
		logger:     logger,
		retryDelay: DefaultRetryDelay,
	}
}

// Run observes snapshots until ctx is done. A lost feed is re-subscribed
// after the retry delay; changes made meanwhile are announced against the
// last known roster.
func (a *Announcer) Run(ctx context.Context) error {
	for {
		snapshots, err := a.source.WatchParticipants(ctx)
		if err != nil {
			a.logger.Warn("announcer subscribe failed", "error", err, "retry_in", a.retryDelay)
		} else {
			a.logger.Info("📣 Annonces de la Lerngruppe actives.", "channel", a.channelID)
			for snap := range snapshots {
				if snap.Err != nil {
					a.logger.Warn("announcer feed lost", "error", snap.Err, "retry_in", a.retryDelay)
					break
				}
				a.apply(snap.Participants)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.retryDelay):
		}
	}
}

func (a *Announcer) apply(participants []entities.Participant) {
	current := make(map[string]entities.Participant, len(participants))
	for _, p := range participants {
		current[p.ID] = p
	}
	if a.known == nil {
		a.known = current
		return
	}

	var changes []string
	for _, p := range sortForRoster(participants) {
		if _, ok := a.known[p.ID]; !ok {
			changes = append(changes, "✅ "+a.translator.T(a.locale, "announce.joined", map[string]any{"Name": p.Name}))
		}
	}
	var left []entities.Participant
	for id, p := range a.known {
		if _, ok := current[id]; !ok {
			left = append(left, p)
		}
	}
	for _, p := range sortForRoster(left) {
		changes = append(changes, "👋 "+a.translator.T(a.locale, "announce.left", map[string]any{"Name": p.Name}))
	}
	a.known = current
	if len(changes) == 0 {
		return
	}

	embed := pkgdiscord.BuildRosterEmbed(rosterText(a.translator, a.locale, len(participants), changes), sortForRoster(participants))
	if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
		a.logger.Error("announcement not sent", "channel", a.channelID, "error", err)
	}
}

func rosterText(t output.T, locale string, count int, changes []string) pkgdiscord.RosterText {
	return pkgdiscord.RosterText{
		Title:   t.T(locale, "announce.roster_title", nil),
		Empty:   t.T(locale, "announce.roster_empty", nil),
		Footer:  t.T(locale, "announce.roster_footer", map[string]any{"Count": count}),
		Changes: changes,
	}
}

// sortForRoster orders by sign-up time, then id, on a copy.
func sortForRoster(ps []entities.Participant) []entities.Participant {
	out := slices.Clone(ps)
	slices.SortStableFunc(out, func(a, b entities.Participant) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
