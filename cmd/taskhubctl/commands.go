package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskhub/taskhub-api/internal/app"
	"github.com/taskhub/taskhub-api/internal/domain/user"
	"github.com/taskhub/taskhub-api/internal/pkg/database"
	"github.com/taskhub/taskhub-api/internal/pkg/jwt"
)

func (c *cli) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewPostgres(cmd.Context(), c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.ClosePostgres(db)

			n, err := database.MigrateUp(db)
			if err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n)
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewPostgres(cmd.Context(), c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.ClosePostgres(db)

			n, err := database.MigrateDown(db, steps)
			if err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migrations\n", n)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back, 0 for all")

	cmd.AddCommand(up, down)
	return cmd
}

func (c *cli) escrowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "Escrow maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "release-due",
		Short: "Release every hold whose cooling period ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Escrow.ReleaseDue(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	})
	return cmd
}

func (c *cli) depositsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposits",
		Short: "Deposit maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Expire unpaid bank deposits and abandoned PayPal orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Deposits.ExpireStale(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	})
	return cmd
}

func (c *cli) tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access tokens for local development",
	}

	var (
		userID string
		role   string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.IsProduction() {
				return fmt.Errorf("token issue is disabled in production")
			}
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			if !user.IsValidRole(role) {
				return fmt.Errorf("invalid --role %q", role)
			}
			token, err := jwt.NewService(c.cfg.JWTSecret, ttl).GenerateAccessToken(id, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user id")
	issue.Flags().StringVar(&role, "role", string(user.RoleClient), "client, worker or admin")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

func (c *cli) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Mirrored user profiles",
	}

	var (
		email    string
		fullName string
		role     string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Mirror a profile from the auth provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !user.IsValidRole(role) {
				return fmt.Errorf("invalid --role %q", role)
			}
			db, err := database.NewPostgres(cmd.Context(), c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.ClosePostgres(db)

			p := &user.Profile{Email: email, FullName: fullName, Role: user.Role(role)}
			if err := user.NewRepository(db).Create(cmd.Context(), p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&fullName, "name", "", "full name")
	create.Flags().StringVar(&role, "role", string(user.RoleClient), "client, worker or admin")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}
