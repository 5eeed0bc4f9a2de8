package cmd

import (
	"fmt"
	"time"

	"Tunora/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenUserID int64
	tokenEmail  string
	tokenRole   string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发开发用JWT",
	Long:  `使用 JWT_SECRET 为指定用户签发令牌, 仅用于本地开发与调试。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if tokenUserID <= 0 {
			return fmt.Errorf("--user must be a positive account id")
		}
		if tokenTTL <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}
		tokens, err := auth.NewTokenManager(cfg.JWTSecret, tokenTTL)
		if err != nil {
			return err
		}
		signed, err := tokens.GenerateToken(tokenUserID, tokenEmail, tokenRole)
		if err != nil {
			return err
		}
		fmt.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user", 0, "account id")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "account email")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "account role (user, artist)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
