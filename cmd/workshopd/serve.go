package main

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and websocket endpoint and run the scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipMigrate {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
			}
			if err := a.Run(ctx); err != nil {
				log.Error().Err(err).Msg("server stopped")
				return err
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply the schema on startup")
	return cmd
}
