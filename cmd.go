package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/config"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const shutdownTimeout = 10 * time.Second

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "stockly",
		Short:        "Multi-tenant inventory management",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a stockly.yaml config file")

	load := func() (config.Config, *zap.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return cfg, nil, err
		}
		logger, err := newLogger(cfg.Log)
		if err != nil {
			return cfg, nil, err
		}
		zap.ReplaceGlobals(logger)
		return cfg, logger, nil
	}

	root.AddCommand(
		newServeCommand(load),
		newMigrateCommand(load),
		newUserCommand(load),
	)
	return root
}

type loader func() (config.Config, *zap.Logger, error)

// newLogger builds the process logger: JSON for production, colored console
// output when log.format is "console".
func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", c.Level, err)
	}
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func newServeCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info("database ready", zap.String("path", cfg.Database.Path))

			app, err := newApp(cfg, db, clock.New())
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      app.Handler(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
}

func newMigrateCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status|reset",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "reset"},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.Connect(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(db, args[0])
		},
	}
}

func newUserCommand(load loader) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage platform users",
	}

	var email, name, password string
	create := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a platform administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := createSuperadmin(cmd.Context(), db, email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created superadmin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&name, "name", "", "display name (defaults to the email)")
	create.Flags().StringVar(&password, "password", "", "initial password, at least 8 characters")
	create.MarkFlagRequired("email")
	create.MarkFlagRequired("password")

	user.AddCommand(create)
	return user
}

func createSuperadmin(ctx context.Context, db *sqlx.DB, email, name, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = email
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{Email: email, Name: name, PasswordHash: hash, SystemRole: model.RoleSuperadmin}
	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := database.CreateUser(ctx, tx, u); err != nil {
			return err
		}
		return database.InsertActivity(ctx, tx, &model.ActivityLog{
			Action:      "user.create",
			EntityType:  "user",
			EntityID:    u.ID,
			Description: fmt.Sprintf("Created superadmin %s from the command line", u.Email),
			Metadata:    model.Metadata{"email": u.Email, "systemRole": u.SystemRole},
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
