package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grabbot/internal/bus"
	"grabbot/internal/channel"
	"grabbot/internal/config"
	"grabbot/internal/domain"
	"grabbot/internal/downloader"
	"grabbot/internal/metrics"
	"grabbot/internal/policy"
	"grabbot/internal/router"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "grabbot",
		Short: "grabbot: chat-platform media download bot",
		Long:  "grabbot watches chat messages for URLs and fetches the referenced media with yt-dlp, reporting results back into the conversation.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.grabbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and download directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			outputDir := config.ExpandPath(cfg.Downloads.OutputDir)
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "downloads", outputDir)
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Connect to the enabled chat platforms and process messages",
		Long:  "Starts all enabled gateways (Discord, Telegram, Slack) and the message router. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = newLogger(cfg.General)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	events := bus.NewEventBus(logger)

	pol := policy.Policy{
		AllowedGuilds:  cfg.Authorization.GuildIDs,
		AllowedChannel: cfg.Authorization.ChannelID,
	}

	dispatcher := downloader.NewDispatcher(downloader.DispatcherConfig{
		Runner:        downloader.NewYTDLP(cfg.Downloads.Binary, logger),
		Bus:           messageBus,
		OutputDir:     cfg.Downloads.OutputDir,
		CookiesPath:   cfg.Downloads.CookiesPath,
		MaxConcurrent: cfg.Downloads.MaxConcurrent,
		Logger:        logger,
	})

	rt := router.New(router.Config{
		Policy:     pol,
		Dispatcher: dispatcher,
		Bus:        messageBus,
		Events:     events,
		Logger:     logger,
	})

	go rt.Run(ctx)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics)
	}

	var gateways []domain.Gateway
	if cfg.Channels.Discord.Enabled {
		gateways = append(gateways, channel.NewDiscord(channel.DiscordConfig{
			Token:  cfg.Channels.Discord.Token,
			Events: events,
			Logger: logger,
		}))
	}
	if cfg.Channels.Telegram.Enabled {
		gateways = append(gateways, channel.NewTelegram(channel.TelegramConfig{
			Token:  cfg.Channels.Telegram.Token,
			Logger: logger,
		}))
	}
	if cfg.Channels.Slack.Enabled {
		gateways = append(gateways, channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Channels.Slack.BotToken,
			AppToken: cfg.Channels.Slack.AppToken,
			Logger:   logger,
		}))
	}
	if len(gateways) == 0 {
		return fmt.Errorf("no channels enabled; enable at least one under channels in %s", cfgPath)
	}

	for _, gw := range gateways {
		rt.RegisterGateway(gw)
		go func(gw domain.Gateway) {
			if err := gw.Start(ctx, messageBus); err != nil {
				logger.Error("gateway error", "channel", gw.Name(), "err", err)
			}
		}(gw)
		logger.Info("gateway enabled", "channel", gw.Name())
	}

	logger.Info("grabbot started. Press Ctrl+C to stop.", "version", version)

	<-ctx.Done()
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, gw := range gateways {
			if err := gw.Stop(); err != nil {
				logger.Warn("gateway stop failed", "channel", gw.Name(), "err", err)
			}
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// newLogger builds the process logger from config: level, and an
// optional log file instead of stderr.
func newLogger(cfg config.GeneralConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.LogFile, "err", err)
		} else {
			out = f
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func serveMetrics(cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Endpoint, metrics.Collector.Handler())
	logger.Info("metrics endpoint listening", "addr", cfg.Addr, "endpoint", cfg.Endpoint)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "err", err)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and downloader status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			logger.Info("channels",
				"discord", cfg.Channels.Discord.Enabled,
				"telegram", cfg.Channels.Telegram.Enabled,
				"slack", cfg.Channels.Slack.Enabled,
			)
			if path, err := lookupBinary(cfg.Downloads.Binary); err != nil {
				logger.Warn("downloader", "binary", cfg.Downloads.Binary, "found", false)
			} else {
				logger.Info("downloader", "binary", cfg.Downloads.Binary, "path", path)
			}
			if cfg.Downloads.CookiesPath != "" {
				_, err := os.Stat(cfg.Downloads.CookiesPath)
				logger.Info("cookies", "path", cfg.Downloads.CookiesPath, "exists", err == nil)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. downloads.outputDir)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. downloads.maxConcurrent 8)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
