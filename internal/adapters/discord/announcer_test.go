package discord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"lerngruppe/internal/application"
	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/infrastructure/i18n"
	"lerngruppe/internal/infrastructure/legacycache"
	"lerngruppe/internal/infrastructure/memstore"
	"lerngruppe/internal/infrastructure/registry"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	feeds chan chan entities.Snapshot
}

func newFakeSource() *fakeSource {
	return &fakeSource{feeds: make(chan chan entities.Snapshot, 4)}
}

func (f *fakeSource) WatchParticipants(context.Context) (<-chan entities.Snapshot, error) {
	ch := make(chan entities.Snapshot, 8)
	f.feeds <- ch
	return ch, nil
}

func (f *fakeSource) next(t *testing.T) chan entities.Snapshot {
	t.Helper()
	select {
	case ch := <-f.feeds:
		return ch
	case <-time.After(time.Second):
		require.Fail(t, "announcer did not subscribe")
		return nil
	}
}

type fakeSender struct {
	mu     sync.Mutex
	embeds []*discordgo.MessageEmbed
}

func (f *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeSender) sent() []*discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageEmbed(nil), f.embeds...)
}

func p(id, name string, minute int) entities.Participant {
	return entities.Participant{ID: id, Name: name, DeleteToken: "tok-" + id, Timestamp: jan1.Add(time.Duration(minute) * time.Minute)}
}

func startAnnouncer(t *testing.T) (*fakeSource, *fakeSender, context.CancelFunc, <-chan error) {
	t.Helper()
	source, sender := newFakeSource(), &fakeSender{}
	a := NewAnnouncer(source, sender, "chan-1", i18n.NewTranslator("de", nil), "de", nil)
	a.retryDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return source, sender, cancel, done
}

func TestAnnouncer_JoinsAndLeaves(t *testing.T) {
	source, sender, cancel, done := startAnnouncer(t)
	feed := source.next(t)

	feed <- entities.Snapshot{Participants: []entities.Participant{p("1", "Anna", 0)}}
	feed <- entities.Snapshot{Participants: []entities.Participant{p("1", "Anna", 0), p("2", "Ben", 5)}}
	require.Eventually(t, func() bool { return len(sender.sent()) == 1 }, time.Second, 5*time.Millisecond)

	e := sender.sent()[0]
	require.True(t, strings.HasPrefix(e.Description, "✅ Ben ist der Lerngruppe beigetreten."), e.Description)
	require.Contains(t, e.Description, "1. **Anna** · 01.01.2024, 01:00")
	require.Contains(t, e.Description, "2. **Ben** · 01.01.2024, 01:05")
	require.Equal(t, "2 Teilnehmende", e.Footer.Text)

	feed <- entities.Snapshot{Participants: []entities.Participant{p("2", "Ben", 5)}}
	require.Eventually(t, func() bool { return len(sender.sent()) == 2 }, time.Second, 5*time.Millisecond)
	require.Contains(t, sender.sent()[1].Description, "👋 Anna hat die Lerngruppe verlassen.")
	require.Equal(t, "1 Teilnehmer", sender.sent()[1].Footer.Text)

	// Same roster again: nothing to announce.
	feed <- entities.Snapshot{Participants: []entities.Participant{p("2", "Ben", 5)}}
	time.Sleep(20 * time.Millisecond)
	require.Len(t, sender.sent(), 2)

	cancel()
	close(feed)
	require.NoError(t, <-done)
}

func TestAnnouncer_ResubscribesAfterFeedError(t *testing.T) {
	source, sender, cancel, done := startAnnouncer(t)
	feed := source.next(t)
	defer func() {
		cancel()
		close(feed)
		<-done
	}()

	feed <- entities.Snapshot{Participants: []entities.Participant{p("1", "Anna", 0)}}
	feed <- entities.Snapshot{Err: errors.New("feed lost")}
	close(feed)

	feed = source.next(t)
	feed <- entities.Snapshot{Participants: []entities.Participant{p("1", "Anna", 0), p("3", "Cem", 9)}}
	require.Eventually(t, func() bool { return len(sender.sent()) == 1 }, time.Second, 5*time.Millisecond)
	require.Contains(t, sender.sent()[0].Description, "Cem ist der Lerngruppe beigetreten.")
	require.NotContains(t, sender.sent()[0].Description, "Anna ist")
}

type fakeResponder struct {
	resp *discordgo.InteractionResponse
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.resp = resp
	return nil
}

func TestHandler_RosterCommand(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := registry.NewParticipantRepository(store)
	notifier := application.NewChangeNotifier(repo, nil, nil)
	defer notifier.Close()
	svc := application.NewParticipantService(repo, notifier,
		application.NewMigrationEngine(legacycache.NewMemoryCache(), repo, nil, nil), nil, nil)
	_, err := svc.AddParticipant(ctx, p("", "Anna", 0))
	require.NoError(t, err)

	h := NewHandler(svc, i18n.NewTranslator("de", nil), "en", nil)
	interaction := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}

	var r fakeResponder
	h.HandleRosterCommand(&r, interaction)
	require.NotNil(t, r.resp)
	require.Equal(t, discordgo.MessageFlagsEphemeral, r.resp.Data.Flags)
	require.Len(t, r.resp.Data.Embeds, 1)
	require.Equal(t, "📚 Study group", r.resp.Data.Embeds[0].Title)
	require.Contains(t, r.resp.Data.Embeds[0].Description, "**Anna**")

	store.Close()
	h.HandleRosterCommand(&r, interaction)
	require.Equal(t, "❌ The participant list is unreachable right now. Please try again later.", r.resp.Data.Content)
}
