package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Enabled: true,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
			Slack: SlackConfig{
				Enabled: false,
			},
		},
		Downloads: DownloadsConfig{
			Binary:        "yt-dlp",
			OutputDir:     "~/.grabbot/downloads",
			MaxConcurrent: 4,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:9091",
			Endpoint: "/metrics",
		},
	}
}
