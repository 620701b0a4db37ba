package main

import (
	"errors"
	"filecoder-backend/dao"
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the conversation archive tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MySQL.DSN == "" {
			return errors.New("mysql.dsn is not configured")
		}

		if err := dao.Init(cfg.MySQL.DSN); err != nil {
			return err
		}
		defer dao.Close()

		if err := dao.AutoMigrate(); err != nil {
			return err
		}

		slog.Info("archive tables migrated")
		return nil
	},
}
