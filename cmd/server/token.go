package main

import (
    "fmt"

    "github.com/spf13/cobra"

    "github.com/iliyamo/trunk-player/internal/config"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

// tokenCommand mints an access token.  Users live in an external identity
// system; this exists for operators and for wiring up kiosks.
func tokenCommand() *cobra.Command {
    var (
        userID uint64
        role   string
        ttl    int
    )
    cmd := &cobra.Command{
        Use:   "token",
        Short: "Issue an access token for a user id",
        RunE: func(cmd *cobra.Command, args []string) error {
            if userID == 0 {
                return fmt.Errorf("--user is required")
            }
            cfg, err := config.Load()
            if err != nil {
                return err
            }
            if ttl <= 0 {
                ttl = cfg.AccessTTLMin
            }
            tok, err := utils.NewAccessToken(cfg.JWTSecret, userID, role, ttl)
            if err != nil {
                return err
            }
            fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
            fmt.Fprintln(cmd.ErrOrStderr(), "expires", tok.Exp.Format("2006-01-02T15:04:05Z"))
            return nil
        },
    }
    cmd.Flags().Uint64Var(&userID, "user", 0, "user id carried in the token subject")
    cmd.Flags().StringVar(&role, "role", model.RoleUser, "role claim (USER or ADMIN)")
    cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
    return cmd
}
