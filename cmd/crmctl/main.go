// Command crmctl runs administrative tasks against the CRM database.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/phbpx/crm"
	"github.com/phbpx/crm/pkg/database"
	"github.com/phbpx/crm/postgres"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(newCLI()).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the settings shared by every subcommand. Each flag can also be
// set through the environment as CRM_<FLAG>, e.g. CRM_DB_HOST.
type cli struct {
	v       *viper.Viper
	db      database.Config
	timeout time.Duration
}

func newCLI() *cli {
	v := viper.New()
	v.SetEnvPrefix("CRM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return &cli{v: v}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "crmctl",
		Short:        "Administrative tasks for the CRM API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.load()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("db-user", "crm", "database user")
	flags.String("db-password", "crm", "database password")
	flags.String("db-host", "localhost", "database host[:port]")
	flags.String("db-name", "crm", "database name")
	flags.Bool("db-disable-tls", true, "disable TLS to the database")
	flags.Duration("timeout", 30*time.Second, "overall timeout for the command")

	for _, name := range []string{"db-user", "db-password", "db-host", "db-name", "db-disable-tls", "timeout"} {
		if err := c.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newMigrateCmd(c), newCreateUserCmd(c))
	return root
}

// load resolves flags, environment and defaults, in that order of precedence.
func (c *cli) load() {
	c.db = database.Config{
		User:       c.v.GetString("db-user"),
		Password:   c.v.GetString("db-password"),
		Host:       c.v.GetString("db-host"),
		Name:       c.v.GetString("db-name"),
		DisableTLS: c.v.GetBool("db-disable-tls"),
	}
	c.timeout = c.v.GetDuration("timeout")
}

func (c *cli) withDB(fn func(ctx context.Context, db *sqlx.DB) error) error {
	db, err := database.Open(c.db)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return fn(ctx, db)
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLog()
			return c.withDB(func(ctx context.Context, db *sqlx.DB) error {
				if err := postgres.Migrate(ctx, db); err != nil {
					return fmt.Errorf("updating database schema: %w", err)
				}
				log.Infow("migrate", "status", "schema up to date")
				return nil
			})
		},
	}
}

func newCreateUserCmd(c *cli) *cobra.Command {
	var nu crm.NewUser

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register a user, e.g. to seed a local environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLog()
			return c.withDB(func(ctx context.Context, db *sqlx.DB) error {
				user, err := postgres.NewUserService(db).Register(ctx, nu)
				if err != nil {
					return fmt.Errorf("creating user: %w", err)
				}
				log.Infow("create-user", "id", user.ID, "email", user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&nu.Name, "name", "", "display name")
	cmd.Flags().StringVar(&nu.Email, "email", "", "login email")
	cmd.Flags().StringVar(&nu.Password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLog() *zap.SugaredLogger {
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return log.Sugar()
}
