package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	tokenhttp "github.com/mytoken-labs/mytoken/go/http"
	"github.com/mytoken-labs/mytoken/go/mechanisms/evm"
	"github.com/mytoken-labs/mytoken/go/pkg/config"
)

// NewTokenJWTCommand creates the token-jwt command.
func NewTokenJWTCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		address string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token-jwt",
		Short: "Issue a caller token for the HTTP API",
		Long: `Issue an HS256 bearer token whose subject is --address, signed with
http.jwt_secret from the config or MYTOKEN_JWT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadUnvalidated(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if cfg.HTTP.JWTSecret == "" {
				return errors.New("http.jwt_secret is not configured")
			}
			addr, err := evm.ParseAddress(address)
			if err != nil {
				return err
			}

			auth, err := tokenhttp.NewAuthenticator([]byte(cfg.HTTP.JWTSecret), cfg.HTTP.JWTIssuer)
			if err != nil {
				return err
			}
			token, err := auth.WithTTL(ttl).Issue(addr)
			if err != nil {
				return err
			}

			return Output(cmd.OutOrStdout(), rootOpts.Format, map[string]string{
				"address":   addr.Hex(),
				"token":     token,
				"expiresIn": ttl.String(),
			})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "caller address (token subject)")
	cmd.Flags().DurationVar(&ttl, "ttl", tokenhttp.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}
