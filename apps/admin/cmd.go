package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
	"github.com/paridhisingla/unisync/storage/database"
	"github.com/paridhisingla/unisync/storage/database/sqlxrepos"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	db      *sqlx.DB
	usrRepo user.Repository
}

// connect opens the database on first use.
func (cli *commandLine) connect(ctx context.Context) error {
	if cli.db != nil {
		return nil
	}
	db, err := database.Open(cli.conf)
	if err != nil {
		return err
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	cli.db = db
	cli.usrRepo = sqlxrepos.NewUserRepository(db)
	return nil
}

func (cli *commandLine) close() {
	if cli.db != nil {
		_ = cli.db.Close()
	}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "UniSync administration commands",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.connect(cmd.Context())
		},
	}
	root.AddCommand(cli.addUserCmd(), cli.resetPasswordCmd(), cli.migrateCmd())
	return root
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, uname, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user or update an existing one. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles, ok := roleSets[role]
			if !ok {
				return fmt.Errorf("unknown role %q (admin, teacher or student)", role)
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd, roles)
			if err != nil {
				return err
			}
			cmd.Printf("user %s (%s) saved\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "the user's username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "the user's email")
	cmd.Flags().StringVarP(&name, "name", "n", "", "the user's full name")
	cmd.Flags().StringVarP(&role, "role", "r", "admin", "admin, teacher or student")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), uname, pwd)
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "the user's username or email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.migrate(args[0], args[1:]...)
		},
	}
}

func promptPassword(cmd *cobra.Command) (string, error) {
	cmd.Print("Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}
