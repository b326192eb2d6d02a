// Command boardctl is the operator CLI: schema migrations, seeding and
// moderation actions run against the configured database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/blondeglamazon/message-board-sub000/internal/cache"
	"github.com/blondeglamazon/message-board-sub000/internal/config"
	"github.com/blondeglamazon/message-board-sub000/internal/database"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
	"github.com/blondeglamazon/message-board-sub000/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// operatorEmail is recorded in the audit log for actions run without --as.
const operatorEmail = "boardctl@localhost"

// cli carries the connections shared by every subcommand. Tests fill db in
// before executing so nothing is loaded from the environment.
type cli struct {
	db  *gorm.DB
	rdb *redis.Client
	as  string
}

func main() {
	if err := newRootCmd(&cli{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Operate the message board database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.connect()
		},
	}
	root.PersistentFlags().StringVar(&c.as, "as", "", "username of the admin performing moderation actions")

	root.AddCommand(
		newMigrateCmd(c),
		newSeedCmd(c),
		newSetRoleCmd(c),
		newDeleteUserCmd(c),
		newReportsCmd(c),
		newResolveCmd(c),
		newAuditLogCmd(c),
	)
	return root
}

func (c *cli) connect() error {
	if c.db != nil {
		return nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	c.db = db
	// Redis is optional; with it, role changes and deletions also drop the
	// running servers' cached profiles.
	c.rdb = cache.InitRedis(cfg.RedisURL)
	return nil
}

func (c *cli) moderation() *service.ModerationService {
	return service.NewModerationService(
		repository.NewReportRepository(c.db),
		repository.NewModerationRepository(c.db),
		repository.NewPostRepository(c.db),
		repository.NewAccountRepository(c.db),
		cache.New(c.rdb),
	)
}

// actor is the admin the command acts as. Without --as a synthetic
// operator account is used; it has no id, so it can never target itself.
func (c *cli) actor(ctx context.Context) (*models.Account, error) {
	if c.as == "" {
		return &models.Account{Email: operatorEmail, Username: "boardctl", Role: models.RoleAdmin}, nil
	}
	acc, err := repository.NewAccountRepository(c.db).GetByUsername(ctx, c.as)
	if err != nil {
		return nil, err
	}
	if !acc.IsAdmin() {
		return nil, fmt.Errorf("%s is not an admin", acc.Username)
	}
	return acc, nil
}

func (c *cli) account(ctx context.Context, username string) (*models.Account, error) {
	return repository.NewAccountRepository(c.db).GetByUsername(ctx, username)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
