// Command seed creates a sign-in account and its directory entry in a
// self-hosted (postgres driver) deployment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bissquit/leavedesk/internal/auth"
	"github.com/bissquit/leavedesk/internal/config"
	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/pkg/postgres"
	platformpostgres "github.com/bissquit/leavedesk/internal/platform/postgres"
	"github.com/bissquit/leavedesk/internal/users"
	usersstore "github.com/bissquit/leavedesk/internal/users/store"
	"github.com/bissquit/leavedesk/migrations"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("LEAVEDESK_CONFIG"), "path to YAML config file")
		email      = flag.String("email", "", "account email")
		password   = flag.String("password", "", "account password")
		firstName  = flag.String("first-name", "", "first name")
		lastName   = flag.String("last-name", "", "last name")
		role       = flag.String("role", string(domain.RoleMember), "MEMBER, MANAGER or ADMIN")
	)
	flag.Parse()

	if err := run(*configPath, seedInput{
		Email:     *email,
		Password:  *password,
		FirstName: *firstName,
		LastName:  *lastName,
		Role:      *role,
	}); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

type seedInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

func run(configPath string, in seedInput) error {
	if in.Email == "" || in.Password == "" {
		return errors.New("-email and -password are required")
	}
	if !domain.Role(in.Role).IsValid() {
		return fmt.Errorf("%w: %q", users.ErrInvalidRole, in.Role)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Platform.Driver != config.DriverPostgres {
		return fmt.Errorf("seed requires the %s driver, got %s", config.DriverPostgres, cfg.Platform.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    2,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
		return err
	}

	p := platformpostgres.New(db, nil)
	email := users.NormalizeEmail(in.Email)

	id, err := p.CreateIdentity(ctx, email, in.Password, map[string]any{
		auth.MetaFirstName: in.FirstName,
		auth.MetaLastName:  in.LastName,
		auth.MetaRole:      in.Role,
	})
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	slog.Info("identity created", "id", id, "email", email)

	directory := users.NewService(usersstore.NewRepository(p))
	user, err := directory.CreateUser(ctx, users.CreateUserInput{
		Email:     email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      &in.Role,
	})
	switch {
	case errors.Is(err, users.ErrEmailExists):
		slog.Info("directory user already exists", "email", email)
	case err != nil:
		return fmt.Errorf("create directory user: %w", err)
	default:
		slog.Info("directory user created", "id", user.ID, "role", user.Role)
	}
	return nil
}
