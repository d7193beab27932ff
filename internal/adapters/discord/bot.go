package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Bot is the Discord adapter.
type Bot struct {
	session *discordgo.Session
	handler *Handler
	logger  *slog.Logger
}

// NewBot creates a Bot for the given token. The session is opened by Start.
func NewBot(token string, handler *Handler, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("erreur lors de la création de la session Discord: %w", err)
	}
	bot := &Bot{
		session: s,
		handler: handler,
		logger:  logger,
	}
	bot.setupHandlers()
	return bot, nil
}

// Session is the sender announcements go through.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

func (b *Bot) setupHandlers() {
	b.session.AddHandler(b.handleInteraction)
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name == CommandName {
		b.handler.HandleRosterCommand(s, i)
	}
}

// Start opens the session, registers the slash command and runs until ctx
// is done.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("erreur lors de l'ouverture de la session: %w", err)
	}
	defer b.session.Close()

	if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", rosterCommand); err != nil {
		b.logger.Warn("⚠️ Erreur lors de l'enregistrement de la commande", "command", rosterCommand.Name, "error", err)
	}

	b.logger.Info("🤖 Bot en ligne !")
	<-ctx.Done()
	return nil
}
