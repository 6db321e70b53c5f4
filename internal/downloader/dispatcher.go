package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"grabbot/internal/domain"
	"grabbot/internal/metrics"

	"github.com/google/uuid"
)

const (
	// AckMessage is sent to the originating chat before any download work.
	AckMessage = "OK! I will process that."

	defaultMaxConcurrent = 4
)

// Dispatcher turns a validated URL into a fire-and-forget download task.
// The acknowledgment reply is sent synchronously; everything slow
// (directory creation, the subprocess, the follow-up reply) runs in its
// own goroutine so the event loop is never stalled by a download.
type Dispatcher struct {
	runner      Runner
	bus         domain.MessageBus
	outputDir   string
	cookiesPath string
	sem         chan struct{} // nil = unbounded
	logger      *slog.Logger
}

// DispatcherConfig configures the Dispatcher.
type DispatcherConfig struct {
	Runner      Runner
	Bus         domain.MessageBus
	OutputDir   string
	CookiesPath string
	// MaxConcurrent caps simultaneously running downloads. 0 uses the
	// default; negative disables the cap.
	MaxConcurrent int
	Logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	var sem chan struct{}
	if cfg.MaxConcurrent > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return &Dispatcher{
		runner:      cfg.Runner,
		bus:         cfg.Bus,
		outputDir:   cfg.OutputDir,
		cookiesPath: cfg.CookiesPath,
		sem:         sem,
		logger:      cfg.Logger,
	}
}

// Dispatch acknowledges msg and schedules the download of url. Returns
// as soon as the task is spawned; no join or cancellation handle is
// retained.
func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.InboundMessage, url string) {
	d.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: AckMessage,
	})

	req := domain.DownloadRequest{
		ID:          uuid.NewString(),
		URL:         url,
		OutputDir:   d.outputDir,
		CookiesPath: d.cookiesPath,
	}
	d.logger.Info("download dispatched", "id", req.ID, "url", req.URL, "channel", msg.Channel, "chat", msg.ChatID)
	metrics.DownloadsStarted.Inc()

	go d.run(ctx, req, msg)
}

func (d *Dispatcher) run(ctx context.Context, req domain.DownloadRequest, msg domain.InboundMessage) {
	// The slot is taken inside the goroutine: a full semaphore queues
	// this download without stalling the event loop.
	if d.sem != nil {
		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			d.logger.Warn("queued download abandoned", "id", req.ID, "url", req.URL, "reason", ctx.Err())
			return
		}
		defer func() { <-d.sem }()
	}

	metrics.DownloadsInflight.Inc()
	defer metrics.DownloadsInflight.Dec()

	start := time.Now()
	outcome := d.execute(ctx, req)
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())

	var reply string
	if outcome.OK() {
		metrics.DownloadsSucceeded.Inc()
		d.logger.Info("download complete", "id", req.ID, "url", req.URL, "took", time.Since(start))
		reply = fmt.Sprintf("Downloaded: <%s>", req.URL)
	} else {
		metrics.FailureCounter(outcome.Kind.String()).Inc()
		d.logger.Error("download failed",
			"id", req.ID, "url", req.URL, "kind", outcome.Kind.String(), "diag", outcome.Diagnostic)
		reply = fmt.Sprintf("Failed to download %s: %s", req.URL, outcome.Diagnostic)
	}

	d.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	})
}

func (d *Dispatcher) execute(ctx context.Context, req domain.DownloadRequest) domain.DownloadOutcome {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return domain.Failure(domain.FailureSetup,
			fmt.Sprintf("failed to create output directory %s: %v", req.OutputDir, err))
	}
	return d.runner.Run(ctx, req)
}
