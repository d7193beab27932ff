package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"lerngruppe/internal/config"
	"lerngruppe/internal/infrastructure/i18n"
)

var version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
	store      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "registry",
		Short:         "Participant registry of the study group",
		Long:          `Stores study-group sign-ups in a shared document store, streams live changes and migrates the legacy browser cache.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.store, "store", "", "postgres, nats or memory")

	root.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newWithdrawCmd(opts),
		newRemoveCmd(opts),
		newMigrateCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration with flag overrides applied.
func (o *rootOptions) load(cmd *cobra.Command, extra map[string]any) (*config.Config, *slog.Logger, error) {
	overrides := map[string]any{}
	if cmd.Flags().Changed("log-level") {
		overrides["log_level"] = o.logLevel
	}
	if cmd.Flags().Changed("store") {
		overrides["store"] = o.store
	}
	for k, v := range extra {
		overrides[k] = v
	}
	cfg, err := config.Load(o.configFile, overrides)
	if err != nil {
		return nil, nil, err
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// run wires the app for one command and releases it afterwards.
func (o *rootOptions) run(cmd *cobra.Command, extra map[string]any, fn func(a *app) error) error {
	cfg, logger, err := o.load(cmd, extra)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// message localizes err for the terminal.
func (a *app) message(err error) error {
	return errors.New(i18n.ErrorMessage(a.translator, a.cfg.Locale, err))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
