package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/quackwell/internal/auth/app"
	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
)

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create an account directly in the database. This is the only way to
create an admin; the HTTP API only registers clients.`,
		RunE: runUserCreate,
	}
	create.Flags().String("email", "", "account email")
	create.Flags().String("username", "", "account username")
	create.Flags().String("password", "", "account password")
	create.Flags().String("role", "admin", "account role (client, admin)")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	email, _ := flags.GetString("email")
	username, _ := flags.GetString("username")
	password, _ := flags.GetString("password")
	roleName, _ := flags.GetString("role")

	role, err := domain.ParseRole(roleName)
	if err != nil || !role.Assignable() {
		return oops.Code("ROLE_INVALID").With("role", roleName).Errorf("role must be client or admin")
	}

	cfg, err := app.LoadConfig(flags)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "load config").Wrap(err)
	}

	logger := app.NewLogger(cfg)
	if err := app.EnsureSecrets(&cfg, logger); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "check secrets").Wrap(err)
	}

	db, err := app.OpenStore(cmd.Context(), cfg.DB, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open store").Wrap(err)
	}
	defer func() { _ = db.Close() }()

	// Creating an account never sends mail or issues tokens.
	auth, err := app.NewAuthService(cfg, db, nil, nil)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "build auth service").Wrap(err)
	}

	u, err := auth.Register(cmd.Context(), service.RegisterInput{
		Email:    email,
		Username: username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").With("email", email).Wrap(err)
	}

	cmd.Printf("Created %s %s (%s)\n", u.Role, u.Username, u.ID)
	return nil
}
