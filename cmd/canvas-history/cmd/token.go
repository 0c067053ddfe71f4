package cmd

import (
	"fmt"
	"time"

	"canvashistory/pkg/auth"

	"github.com/spf13/cobra"
)

var (
	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT signed with JWT_SECRET",
	Long: `Mint an HS256 token accepted by the server in jwt auth mode.

Examples:
  JWT_SECRET=dev canvas-history token --user alice
  JWT_SECRET=dev canvas-history token --user alice --ttl 24h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IsProduction() {
			return fmt.Errorf("token minting is disabled in production")
		}

		generator, err := auth.NewJWTGenerator(auth.JWTGeneratorConfig{
			SecretKey:  cfg.Auth.JWTSecret,
			Issuer:     cfg.Auth.JWTIssuer,
			Audience:   cfg.Auth.JWTAudience,
			ExpiryTime: tokenTTL,
		})
		if err != nil {
			return err
		}

		token, err := generator.GenerateToken(tokenUser, tokenEmail, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "user ID placed in the sub claim")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
