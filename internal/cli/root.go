// Package cli implements collabctl, the administrative command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/collabtext/collabtext/internal/app"
	"github.com/collabtext/collabtext/internal/config"
)

// RootOptions holds global flags and the hooks commands use to reach the
// configured backends.
type RootOptions struct {
	Format string // "json" | "text"

	LoadConfig func() (*config.Config, error)
	OpenStores func(ctx context.Context, cfg *config.Config) (*app.Stores, error)
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the collabctl root command wired to the real config
// loader and stores.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{LoadConfig: config.LoadConfig, OpenStores: app.OpenStores})
}

func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "collabctl",
		Short:         "collabtext administration",
		Long:          "Administrative tasks for a collabtext deployment: schema migrations, accounts and tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	return cmd
}

// withStores loads the config, opens the stores and runs fn against them.
func (o *RootOptions) withStores(ctx context.Context, fn func(cfg *config.Config, s *app.Stores) error) error {
	cfg, err := o.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stores, err := o.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close(ctx)
	return fn(cfg, stores)
}

// print writes v as JSON or, in text mode, the preformatted line.
func (o *RootOptions) print(w io.Writer, text string, v interface{}) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
