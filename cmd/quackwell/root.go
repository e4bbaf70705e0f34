package main

import (
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/quackwell/internal/auth/app"
)

// NewRootCmd creates the root command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quackwell",
		Short: "Quackwell - users, todos and JWT sessions over HTTP",
		Long: `Quackwell serves the user, todo and authentication API. Configuration
comes from an optional YAML file, then environment variables, then flags.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	app.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())

	return cmd
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	return application.Run()
}
