package main

import (
	"context"
	"filecoder-backend/config"
	"filecoder-backend/dao"
	"filecoder-backend/service/archive"
	"filecoder-backend/service/audit"
	"filecoder-backend/service/chat"
	"filecoder-backend/service/workspace"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	// Version 构建时注入
	Version = "0.1.0"

	configPath string

	cfg      *config.Config
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:   "filecoder",
	Short: "Chat assistant that creates folders and files in a working directory",
	Long: `FileCoder relays chat messages to a hosted LLM and lets the model create
folders, write files and list directories inside a sandboxed working directory.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logger, closeFn := config.SetupLogger(cfg.Log.File, config.ParseLogLevel(cfg.Log.Level))
		slog.SetDefault(logger)
		closeLog = closeFn

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// buildOrchestrator 组装工作区、对话归档和审计事件；返回的函数用于释放这些资源
func buildOrchestrator(cfg *config.Config) (*chat.Orchestrator, func(), error) {
	ws, err := workspace.New(cfg.Workspace.Root)
	if err != nil {
		return nil, nil, err
	}

	var (
		sinks   []chat.Sink
		closers []func()
	)
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MySQL.DSN != "" {
		if err := dao.Init(cfg.MySQL.DSN); err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := dao.Close(); err != nil {
				slog.Error("failed to close mysql", "err", err)
			}
		})

		archiver := archive.NewMySQLArchiver(ws.Root(), cfg.MySQL.Workers)
		// 不跟随信号取消，Shutdown 时写完队列中的记录
		archiver.Run(context.Background())
		closers = append(closers, archiver.Shutdown)
		sinks = append(sinks, archiver)
	}

	if len(cfg.MQ.NameServer) > 0 {
		publisher, err := audit.NewRocketMQPublisher(cfg.MQ)
		if err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("failed to create audit publisher: %v", err)
		}
		closers = append(closers, publisher.Shutdown)
		sinks = append(sinks, publisher)
	}

	orchestrator := chat.NewOrchestrator(ws,
		chat.WithMCPServers(cfg.MCP.Servers),
		chat.WithSinks(sinks...),
	)

	slog.Info("workspace ready",
		"root", ws.Root(),
		"archive", cfg.MySQL.DSN != "",
		"audit", len(cfg.MQ.NameServer) > 0,
		"mcp_servers", len(cfg.MCP.Servers),
	)

	return orchestrator, shutdown, nil
}
