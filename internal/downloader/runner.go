// Package downloader runs the external media downloader and reports
// outcomes back into the originating conversation.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"grabbot/internal/domain"
)

const defaultBinary = "yt-dlp"

// Runner executes one download request to completion.
type Runner interface {
	Run(ctx context.Context, req domain.DownloadRequest) domain.DownloadOutcome
}

// YTDLP invokes the yt-dlp command line tool as
// <binary> <url> -P <outputDir> [--cookies <path>].
// Stdout is discarded; stderr is captured for diagnostics.
type YTDLP struct {
	binary string
	logger *slog.Logger
}

// NewYTDLP creates a runner for the given binary ("" = yt-dlp on PATH).
func NewYTDLP(binary string, logger *slog.Logger) *YTDLP {
	if binary == "" {
		binary = defaultBinary
	}
	return &YTDLP{binary: binary, logger: logger}
}

// Run launches the tool and waits for it to exit. Every failure mode,
// including being unable to spawn the process at all, is returned as an
// outcome rather than propagated: one broken download must not take the
// event loop down with it.
func (y *YTDLP) Run(ctx context.Context, req domain.DownloadRequest) domain.DownloadOutcome {
	args := []string{req.URL, "-P", req.OutputDir}
	if req.CookiesPath != "" {
		y.logger.Info("using cookies file", "id", req.ID, "path", req.CookiesPath)
		args = append(args, "--cookies", req.CookiesPath)
	}

	cmd := exec.CommandContext(ctx, y.binary, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return domain.Failure(domain.FailureLaunch,
			fmt.Sprintf("failed to spawn %s: %v", y.binary, err))
	}

	err := cmd.Wait()
	if err == nil {
		return domain.Success()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		diag := err.Error() // "exit status N"
		if out := strings.TrimSpace(stderr.String()); out != "" {
			diag = diag + ": " + out
		}
		return domain.Failure(domain.FailureTool, diag)
	}

	// Wait failed for a reason other than a non-zero exit (I/O on the
	// stderr pipe, signal delivery). Adapter-internal, not tool-reported.
	return domain.Failure(domain.FailureLaunch,
		fmt.Sprintf("failed to wait for %s: %v", y.binary, err))
}
