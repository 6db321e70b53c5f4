package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for grabbot.
type Config struct {
	General       GeneralConfig       `json:"general" yaml:"general"`
	Authorization AuthorizationConfig `json:"authorization" yaml:"authorization"`
	Channels      ChannelsConfig      `json:"channels" yaml:"channels"`
	Downloads     DownloadsConfig     `json:"downloads" yaml:"downloads"`
	Metrics       MetricsConfig       `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	LogFile  string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

// AuthorizationConfig restricts which origins may trigger downloads.
type AuthorizationConfig struct {
	// GuildIDs is an allow-list of guild/server IDs. Empty = all allowed.
	GuildIDs FlexStringList `json:"guildIds,omitempty" yaml:"guildIds,omitempty"`
	// ChannelID restricts handling to one channel. Empty = all channels.
	ChannelID string `json:"channelId,omitempty" yaml:"channelId,omitempty"`
}

type ChannelsConfig struct {
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Slack    SlackConfig    `json:"slack" yaml:"slack"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"token" yaml:"token"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"token" yaml:"token"`
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"botToken" yaml:"botToken"`
	AppToken string `json:"appToken" yaml:"appToken"` // required for Socket Mode
}

type DownloadsConfig struct {
	Binary      string `json:"binary" yaml:"binary"`
	OutputDir   string `json:"outputDir" yaml:"outputDir"`
	CookiesPath string `json:"cookiesPath,omitempty" yaml:"cookiesPath,omitempty"`
	// MaxConcurrent caps simultaneous downloads. 0 = default, -1 = unbounded.
	MaxConcurrent int `json:"maxConcurrent" yaml:"maxConcurrent"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// FlexStringList is a []string that can unmarshal from arrays containing
// both strings and numbers (chat-platform IDs are numeric in user hands:
// [123, "456"] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

func (f *FlexStringList) UnmarshalYAML(value *yaml.Node) error {
	var ss []string
	if err := value.Decode(&ss); err == nil {
		*f = ss
		return nil
	}
	var raw []any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			result = append(result, v)
		case int:
			result = append(result, strconv.Itoa(v))
		case int64:
			result = append(result, strconv.FormatInt(v, 10))
		case float64:
			result = append(result, strconv.FormatInt(int64(v), 10))
		default:
			result = append(result, fmt.Sprint(v))
		}
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.grabbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".grabbot"
	}
	return filepath.Join(home, ".grabbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// defaultCookiesPath is used when no cookies file is configured and this
// file exists next to the process.
const defaultCookiesPath = "config/cookies.txt"

// Load reads the config file (JSON or YAML by extension), expands
// ${VAR}/${VAR:-default} references, applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Downloads.OutputDir = ExpandPath(cfg.Downloads.OutputDir)
	cfg.Downloads.CookiesPath = ExpandPath(cfg.Downloads.CookiesPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides applies the environment variables that take priority
// over the config file: DISCORD_TOKEN, GUILD_IDS, CHANNEL_ID, and
// YTDLP_COOKIES_PATH. When no cookies path is set anywhere, the
// conventional config/cookies.txt is used if it exists.
func ApplyEnvOverrides(cfg *Config) error {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Channels.Discord.Token = token
	}

	if guilds := strings.TrimSpace(os.Getenv("GUILD_IDS")); guilds != "" {
		var list FlexStringList
		if err := json.Unmarshal([]byte(guilds), &list); err == nil {
			cfg.Authorization.GuildIDs = list
		} else if _, err := strconv.ParseUint(guilds, 10, 64); err == nil {
			cfg.Authorization.GuildIDs = FlexStringList{guilds}
		} else {
			return fmt.Errorf("GUILD_IDS must be either a single numeric ID or a JSON array, e.g. [123456789,987654321]")
		}
	}

	if channel := strings.TrimSpace(os.Getenv("CHANNEL_ID")); channel != "" {
		if _, err := strconv.ParseUint(channel, 10, 64); err == nil {
			cfg.Authorization.ChannelID = channel
		}
	}

	if cookies := os.Getenv("YTDLP_COOKIES_PATH"); cookies != "" {
		cfg.Downloads.CookiesPath = cookies
	} else if cfg.Downloads.CookiesPath == "" {
		if _, err := os.Stat(defaultCookiesPath); err == nil {
			cfg.Downloads.CookiesPath = defaultCookiesPath
		}
	}

	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} in config text.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has usable values. Failures here are
// fatal at startup, before the event loop runs.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Downloads.OutputDir == "" {
		errs = append(errs, "downloads.outputDir is required")
	}
	if cfg.Downloads.MaxConcurrent < -1 || cfg.Downloads.MaxConcurrent > 100 {
		errs = append(errs, "downloads.maxConcurrent must be between -1 and 100")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Endpoint == "" {
		errs = append(errs, "metrics.endpoint is required when metrics are enabled")
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Channels.Slack.Enabled && (cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.AppToken == "") {
		errs = append(errs, "channels.slack.botToken and appToken are required when slack is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
