package downloader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grabbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// writeScript creates a fake downloader executable for exercising the
// process adapter without a real yt-dlp install.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-dl")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func testRequest(outputDir string) domain.DownloadRequest {
	return domain.DownloadRequest{
		ID:        "test-req",
		URL:       "https://example.com/video",
		OutputDir: outputDir,
	}
}

func TestRun_Success(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	r := NewYTDLP(script, testLogger())

	outcome := r.Run(context.Background(), testRequest(t.TempDir()))
	if !outcome.OK() {
		t.Fatalf("expected success, got %v: %s", outcome.Kind, outcome.Diagnostic)
	}
}

func TestRun_ToolFailureCapturesStderr(t *testing.T) {
	script := writeScript(t, "echo 'ERROR: no video formats' >&2\nexit 3\n")
	r := NewYTDLP(script, testLogger())

	outcome := r.Run(context.Background(), testRequest(t.TempDir()))
	if outcome.OK() {
		t.Fatal("expected failure")
	}
	if outcome.Kind != domain.FailureTool {
		t.Errorf("kind = %v, want FailureTool", outcome.Kind)
	}
	if !strings.Contains(outcome.Diagnostic, "exit status 3") {
		t.Errorf("diagnostic %q should contain the exit status", outcome.Diagnostic)
	}
	if !strings.Contains(outcome.Diagnostic, "ERROR: no video formats") {
		t.Errorf("diagnostic %q should contain the captured stderr", outcome.Diagnostic)
	}
}

func TestRun_LaunchFailure(t *testing.T) {
	r := NewYTDLP(filepath.Join(t.TempDir(), "does-not-exist"), testLogger())

	outcome := r.Run(context.Background(), testRequest(t.TempDir()))
	if outcome.OK() {
		t.Fatal("expected failure")
	}
	if outcome.Kind != domain.FailureLaunch {
		t.Errorf("kind = %v, want FailureLaunch", outcome.Kind)
	}
	if outcome.Diagnostic == "" {
		t.Error("diagnostic should carry the launch error")
	}
}

func TestRun_ArgumentContract(t *testing.T) {
	// The script records its argv so the adapter's exact argument order
	// can be asserted: <url> -P <dir> [--cookies <path>].
	argsFile := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, `echo "$@" > `+argsFile+"\nexit 0\n")
	r := NewYTDLP(script, testLogger())

	outDir := t.TempDir()
	req := testRequest(outDir)
	if outcome := r.Run(context.Background(), req); !outcome.OK() {
		t.Fatalf("unexpected failure: %s", outcome.Diagnostic)
	}

	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	got := strings.TrimSpace(string(recorded))
	want := req.URL + " -P " + outDir
	if got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestRun_CookiesFlag(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, `echo "$@" > `+argsFile+"\nexit 0\n")
	r := NewYTDLP(script, testLogger())

	req := testRequest(t.TempDir())
	req.CookiesPath = "/etc/grabbot/cookies.txt"
	if outcome := r.Run(context.Background(), req); !outcome.OK() {
		t.Fatalf("unexpected failure: %s", outcome.Diagnostic)
	}

	recorded, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(recorded), "--cookies /etc/grabbot/cookies.txt") {
		t.Errorf("argv %q should contain the cookies flag", strings.TrimSpace(string(recorded)))
	}
}

func TestNewYTDLP_DefaultBinary(t *testing.T) {
	r := NewYTDLP("", testLogger())
	if r.binary != defaultBinary {
		t.Errorf("binary = %q, want %q", r.binary, defaultBinary)
	}
}
