package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/collabtext/collabtext/internal/app"
	"github.com/collabtext/collabtext/internal/config"
	"github.com/collabtext/collabtext/internal/tokens"
	"github.com/collabtext/collabtext/internal/users"
)

func NewTokenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue access tokens",
	}

	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue <username>",
		Short: "Sign an access token for an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStores(cmd.Context(), func(cfg *config.Config, s *app.Stores) error {
				u, err := users.NewService(s.Users).GetByUsername(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ttl <= 0 {
					ttl = cfg.JWT.AccessTokenTTL
				}
				tok, err := tokens.GenerateAccessToken(cfg, u, ttl)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), tok, map[string]interface{}{
					"token":     tok,
					"username":  u.Username,
					"expiresAt": time.Now().Add(ttl).UTC().Format(time.RFC3339),
				})
			})
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_ACCESS_TOKEN_TTL)")

	cmd.AddCommand(issue)
	return cmd
}
