package main

import (
	"context"
	"fmt"

	"github.com/preetsinghmakkar/workshops/internal/app"
	"github.com/preetsinghmakkar/workshops/internal/config"
	"github.com/preetsinghmakkar/workshops/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "workshopd",
		Short: "Live workshop session coordinator",
		Long: `workshopd runs the workshop API, the realtime session coordinator
and the background scheduler (reminders, no-show cancellation and
recurring series materialization).

Configuration is read from WORKSHOP_* environment variables and an
optional .env file in the working directory.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newJobsCmd(),
		newSeriesCmd(),
	)
	return root
}

// bootstrap loads configuration and builds the application for a command.
func bootstrap(ctx context.Context) (*app.App, zerolog.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load configuration: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return nil, log, err
	}
	return a, log, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("schema applied")
			return nil
		},
	}
}
