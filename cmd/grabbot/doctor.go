package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"grabbot/internal/config"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your grabbot installation",
		Long: `Verifies that grabbot's configuration, download directory, and the
external downloader tool are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("grabbot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(config.ExpandPath(cfgPath)); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'grabbot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Download directory writable
			if err := checkWritableDir(cfg.Downloads.OutputDir); err != nil {
				printFail("Download directory", err.Error())
				failed++
			} else {
				printPass("Download directory", cfg.Downloads.OutputDir)
				passed++
			}

			// 4. Downloader binary on PATH
			if path, err := lookupBinary(cfg.Downloads.Binary); err != nil {
				printFail("Downloader binary", fmt.Sprintf("%s not found on PATH", cfg.Downloads.Binary))
				failed++
			} else {
				printPass("Downloader binary", path)
				passed++
			}

			// 5. Cookies file (optional)
			if cfg.Downloads.CookiesPath == "" {
				printWarn("Cookies file", "not configured (restricted content may fail)")
				warned++
			} else if _, err := os.Stat(cfg.Downloads.CookiesPath); err != nil {
				printFail("Cookies file", fmt.Sprintf("configured but missing: %s", cfg.Downloads.CookiesPath))
				failed++
			} else {
				printPass("Cookies file", cfg.Downloads.CookiesPath)
				passed++
			}

			// 6. At least one gateway enabled with credentials
			enabled := 0
			if cfg.Channels.Discord.Enabled {
				enabled++
			}
			if cfg.Channels.Telegram.Enabled {
				enabled++
			}
			if cfg.Channels.Slack.Enabled {
				enabled++
			}
			if enabled == 0 {
				printFail("Channels", "none enabled")
				failed++
			} else {
				printPass("Channels", fmt.Sprintf("%d enabled", enabled))
				passed++
			}

			// 7. Guild allow-list sanity
			if len(cfg.Authorization.GuildIDs) == 0 {
				printWarn("Guild allow-list", "empty (bot responds in every guild it is invited to)")
				warned++
			} else {
				printPass("Guild allow-list", fmt.Sprintf("%d guild(s)", len(cfg.Authorization.GuildIDs)))
				passed++
			}

			fmt.Printf("\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
			return nil
		},
	}
}

// checkWritableDir creates the directory if needed and verifies a file
// can be written in it.
func checkWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create: %v", err)
	}
	probe := filepath.Join(dir, ".grabbot-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("not writable: %v", err)
	}
	os.Remove(probe)
	return nil
}

func lookupBinary(binary string) (string, error) {
	if binary == "" {
		binary = "yt-dlp"
	}
	return exec.LookPath(binary)
}

func printPass(check, detail string) {
	fmt.Printf("  ✓ %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  ✗ %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  ! %-20s %s\n", check, detail)
}
