package main

import (
    "github.com/spf13/cobra"

    "github.com/iliyamo/trunk-player/internal/config"
    "github.com/iliyamo/trunk-player/internal/database"
    "github.com/iliyamo/trunk-player/internal/logger"
)

func migrateCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "migrate",
        Short: "Create any missing tables",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := config.Load()
            if err != nil {
                return err
            }
            log := logger.New(cfg.LogLevel)
            db, err := database.Open(cmd.Context(), cfg)
            if err != nil {
                return err
            }
            defer db.Close()
            if err := database.Migrate(cmd.Context(), db, database.MySQL); err != nil {
                return err
            }
            log.Info().Str("db", cfg.DBName).Msg("schema up to date")
            return nil
        },
    }
}
