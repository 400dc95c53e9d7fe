package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/collabtext/collabtext/internal/app"
	"github.com/collabtext/collabtext/internal/config"
	"github.com/collabtext/collabtext/internal/users"
)

func NewUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var password string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account with the USER role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd.Context(), func(cfg *config.Config, s *app.Stores) error {
				u, err := users.NewService(s.Users).Register(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), fmt.Sprintf("created user %s (id %d)", u.Username, u.ID), u)
			})
		},
	}
	add.Flags().StringVarP(&password, "password", "p", "", "password for the new account")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}
