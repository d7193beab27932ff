package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lerngruppe/internal/adapters/discord"
	"lerngruppe/internal/adapters/httpapi"
	"lerngruppe/internal/domain/entities"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the live participants as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(a *app) error {
				ps, err := a.service.GetParticipants(cmd.Context())
				if err != nil {
					return a.message(err)
				}
				public := make([]entities.Participant, len(ps))
				for i, p := range ps {
					public[i] = p.Public()
				}
				return printJSON(cmd.OutOrStdout(), public)
			})
		},
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		name   string
		token  string
		fields map[string]string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a participant and print its id and delete token",
		Long: `Register a participant. The delete token is printed once and is the only
way for the participant to withdraw later.

Examples:
  registry add --name Anna --field course=Mathe --field semester=3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(a *app) error {
				p := entities.Participant{
					Name:        name,
					DeleteToken: token,
					Fields:      fields,
					Timestamp:   time.Now().UTC(),
				}
				if p.DeleteToken == "" {
					p.DeleteToken = entities.NewDeleteToken()
				}
				id, err := a.service.AddParticipant(cmd.Context(), p)
				if err != nil {
					return a.message(err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": id, "deleteToken": p.DeleteToken})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "participant name")
	cmd.Flags().StringVar(&token, "token", "", "delete token (default: a fresh random one)")
	cmd.Flags().StringToStringVar(&fields, "field", nil, "other form fields as key=value (repeatable)")
	return cmd
}

func newWithdrawCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <delete-token>",
		Short: "Remove the participant holding a delete token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(a *app) error {
				deleted, err := a.service.DeleteParticipantByToken(cmd.Context(), args[0])
				if err != nil {
					return a.message(err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]bool{"deleted": deleted})
			})
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a participant by id (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(a *app) error {
				if err := a.service.DeleteParticipantByID(cmd.Context(), args[0]); err != nil {
					return a.message(err)
				}
				return nil
			})
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy cache records missing from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(a *app) error {
				n, err := a.service.MigrateLegacyCache(cmd.Context())
				if err != nil {
					if n > 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "%d record(s) migrated before the failure\n", n)
					}
					return a.message(err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"migrated": n})
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print one JSON line per snapshot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(a *app) error {
				snapshots, err := a.service.WatchParticipants(cmd.Context())
				if err != nil {
					return a.message(err)
				}
				for snap := range snapshots {
					if snap.Err != nil {
						return a.message(snap.Err)
					}
					names := make([]string, len(snap.Participants))
					for i, p := range snap.Participants {
						names[i] = p.Name
					}
					fmt.Fprintln(cmd.OutOrStdout(), compactJSON(map[string]any{
						"count": len(names),
						"names": names,
					}))
				}
				return nil
			})
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the Discord announcer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := map[string]any{}
			if cmd.Flags().Changed("addr") {
				extra["http_addr"] = addr
			}
			if cmd.Flags().Changed("migrate-legacy") {
				extra["migrate_on_start"] = migrate
			}
			return opts.run(cmd, extra, func(a *app) error {
				return serve(cmd.Context(), a)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&migrate, "migrate-legacy", false, "migrate the legacy cache before serving")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	if a.cfg.MigrateOnStart {
		n, err := a.service.MigrateLegacyCache(ctx)
		if err != nil {
			return fmt.Errorf("migration au démarrage: %w", err)
		}
		a.logger.Info("legacy cache migrated", "migrated", n)
	}

	var bot *discord.Bot
	if a.cfg.DiscordEnabled() {
		handler := discord.NewHandler(a.service, a.translator, a.cfg.Locale, a.logger)
		var err error
		if bot, err = discord.NewBot(a.cfg.DiscordToken, handler, a.logger); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           httpapi.NewServer(a.service, a.translator, a.prom, a.logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked websocket streams end with ctx, Shutdown does not track them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		a.logger.Info("🌐 HTTP en écoute", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if bot != nil {
		announcer := discord.NewAnnouncer(a.service, bot.Session(), a.cfg.DiscordChannelID, a.translator, a.cfg.Locale, a.logger)
		g.Go(func() error { return bot.Start(ctx) })
		g.Go(func() error { return announcer.Run(ctx) })
	}

	return g.Wait()
}
