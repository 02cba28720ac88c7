package ridectl

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/ridehail/internal/buildinfo"
	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/config"
	"github.com/dmitrijs2005/ridehail/internal/server/repositories/repomanager"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	dsn        string
	logLevel   string
	bcryptCost int
}

// Test seams.
var (
	openDB     = repomanager.Open
	newManager = func() repomanager.RepositoryManager { return repomanager.NewPostgresRepositoryManager() }
	stdinFd    = func() int { return int(os.Stdin.Fd()) }
)

// NewRootCommand builds the ridectl command tree. Defaults for the database
// DSN, log level and bcrypt cost come from the server configuration
// (environment and .env); flags override them.
func NewRootCommand() *cobra.Command {
	defaults := &config.Config{}
	defaults.LoadDefaults()
	if cfg, err := config.Load(nil); err == nil {
		defaults = cfg
	}

	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "ridectl",
		Short:         "Operator tool for the ridehail backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", defaults.DatabaseDSN, "Postgres connection string")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().IntVar(&opts.bcryptCost, "bcrypt-cost", defaults.BcryptCost, "bcrypt work factor for new digests")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newCreateAdminCommand(opts),
		newSeedCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// withOps opens the database, hands an Ops to fn and closes the pool.
func withOps(ctx context.Context, opts *globalOptions, stderr io.Writer, fn func(*Ops) error) error {
	db, err := openDB(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	logger := logging.NewJSONLogger(stderr, opts.logLevel)
	return fn(NewOps(db, newManager(), auth.NewHasher(opts.bcryptCost), logger))
}

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOps(cmd.Context(), opts, cmd.ErrOrStderr(), func(o *Ops) error {
				if err := o.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	}
}

func newCreateAdminCommand(opts *globalOptions) *cobra.Command {
	var in AdminInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account. Admins cannot self-register through
the API. The password is prompted for without echo when --password is not
given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Email == "" {
				email, err := promptLine(bufio.NewReader(cmd.InOrStdin()), "Email", cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				in.Email = email
			}
			if in.Password == "" {
				pw, err := promptPassword(cmd.ErrOrStderr(), stdinFd())
				if err != nil {
					return err
				}
				in.Password = pw
			}

			return withOps(cmd.Context(), opts, cmd.ErrOrStderr(), func(o *Ops) error {
				user, err := o.CreateAdmin(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Email, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Admin email")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "Admin", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "User", "Last name")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (prompted when empty)")
	return cmd
}

func newSeedCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo accounts and rides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOps(cmd.Context(), opts, cmd.ErrOrStderr(), func(o *Ops) error {
				report, err := o.Seed(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Created %d demo users (%d already present), %d demo rides\n",
					report.Created, report.Skipped, report.Rides)
				fmt.Fprintln(w, "Demo accounts:")
				for _, u := range demoUsers {
					fmt.Fprintf(w, "  %-8s %s / %s\n", u.Role, u.Email, DemoPassword)
				}
				return nil
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
