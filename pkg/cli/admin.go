package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/scope"
	"github.com/researchportal/pubportal/pkg/users"
	"github.com/researchportal/pubportal/pkg/validation"
)

// errNotEmpty stops bootstrap-admin from running against a populated database
var errNotEmpty = errors.New("database already has users; pass --force to add another super admin")

type bootstrapOptions struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=128"`
	Name     string `validate:"required"`
	Force    bool
}

func newBootstrapAdminCommand(opts *options) *cobra.Command {
	var b bootstrapOptions
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first super admin account",
		Long: `Create a super admin placed at N/A. Every other account is created
through the API by an existing administrator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := openDatabase(ctx, cfg, logger(cfg), true)
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := bootstrapAdmin(ctx, users.NewStore(db), b)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created super admin %s (id %d)\n", u.Email, u.ID)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&b.Email, "email", "", "login email of the new account")
	fs.StringVar(&b.Password, "password", "", "initial password")
	fs.StringVar(&b.Name, "name", "Administrator", "display name")
	fs.BoolVar(&b.Force, "force", false, "create the account even if users exist")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

// bootstrapAdmin writes a super admin straight to the store
func bootstrapAdmin(ctx context.Context, store *users.Store, b bootstrapOptions) (*users.User, error) {
	b.Email = strings.ToLower(strings.TrimSpace(b.Email))
	b.Name = strings.TrimSpace(b.Name)
	if err := validation.Struct(&b); err != nil {
		return nil, err
	}

	if !b.Force {
		n, err := store.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, errNotEmpty
		}
	}

	hash, err := auth.HashPassword(b.Password)
	if err != nil {
		return nil, err
	}
	u := &users.User{
		Email:        b.Email,
		Name:         b.Name,
		Role:         policy.RoleSuperAdmin,
		College:      scope.NA,
		Institute:    scope.NA,
		Department:   scope.NA,
		PasswordHash: hash,
	}
	if err := store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the argon2id hash of a password",
		Long:  `Print the stored form of a password. Without an argument the password is read from stdin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// passwordArg returns the first argument, or the first line of in
func passwordArg(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
