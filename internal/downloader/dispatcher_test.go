package downloader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"grabbot/internal/domain"
)

// fakeBus records outbound messages and signals each send on a channel.
type fakeBus struct {
	mu       sync.Mutex
	outbound []domain.OutboundMessage
	sent     chan domain.OutboundMessage
}

func newFakeBus() *fakeBus {
	return &fakeBus{sent: make(chan domain.OutboundMessage, 16)}
}

func (b *fakeBus) Publish(domain.InboundMessage)                   {}
func (b *fakeBus) Subscribe() <-chan domain.InboundMessage         { return nil }
func (b *fakeBus) OnOutbound(string, func(domain.OutboundMessage)) {}
func (b *fakeBus) Close()                                          {}

func (b *fakeBus) SendOutbound(msg domain.OutboundMessage) {
	b.mu.Lock()
	b.outbound = append(b.outbound, msg)
	b.mu.Unlock()
	b.sent <- msg
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.outbound)
}

// fakeRunner returns a canned outcome and counts invocations.
type fakeRunner struct {
	outcome domain.DownloadOutcome
	calls   atomic.Int32
}

func (r *fakeRunner) Run(ctx context.Context, req domain.DownloadRequest) domain.DownloadOutcome {
	r.calls.Add(1)
	return r.outcome
}

func testMsg() domain.InboundMessage {
	return domain.InboundMessage{
		Channel:  "discord",
		GuildID:  "10",
		ChatID:   "5",
		SenderID: "user-1",
	}
}

func waitFor(t *testing.T, b *fakeBus) domain.OutboundMessage {
	t.Helper()
	select {
	case msg := <-b.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return domain.OutboundMessage{}
	}
}

func TestDispatch_AckThenSuccess(t *testing.T) {
	fb := newFakeBus()
	d := NewDispatcher(DispatcherConfig{
		Runner:    &fakeRunner{outcome: domain.Success()},
		Bus:       fb,
		OutputDir: t.TempDir(),
		Logger:    testLogger(),
	})

	d.Dispatch(context.Background(), testMsg(), "https://example.com/video")

	ack := waitFor(t, fb)
	if ack.Content != AckMessage {
		t.Fatalf("first reply = %q, want acknowledgment", ack.Content)
	}
	if ack.ChatID != "5" || ack.Channel != "discord" {
		t.Errorf("ack addressed to %s/%s, want discord/5", ack.Channel, ack.ChatID)
	}

	terminal := waitFor(t, fb)
	if terminal.Content != "Downloaded: <https://example.com/video>" {
		t.Errorf("terminal reply = %q", terminal.Content)
	}

	// No further replies for this message.
	time.Sleep(50 * time.Millisecond)
	if got := fb.count(); got != 2 {
		t.Errorf("outbound count = %d, want exactly 2", got)
	}
}

func TestDispatch_AckIsSynchronous(t *testing.T) {
	fb := newFakeBus()
	d := NewDispatcher(DispatcherConfig{
		Runner:    &fakeRunner{outcome: domain.Success()},
		Bus:       fb,
		OutputDir: t.TempDir(),
		Logger:    testLogger(),
	})

	d.Dispatch(context.Background(), testMsg(), "https://example.com/video")

	// The acknowledgment is sent before Dispatch returns.
	if fb.count() < 1 {
		t.Fatal("expected acknowledgment recorded before Dispatch returned")
	}

	// Drain the ack and terminal reply so the download goroutine is
	// done with the temp dir before cleanup.
	waitFor(t, fb)
	waitFor(t, fb)
}

func TestDispatch_FailureReplyCarriesDiagnostic(t *testing.T) {
	fb := newFakeBus()
	d := NewDispatcher(DispatcherConfig{
		Runner:    &fakeRunner{outcome: domain.Failure(domain.FailureTool, "exit status 1: ERROR: blocked")},
		Bus:       fb,
		OutputDir: t.TempDir(),
		Logger:    testLogger(),
	})

	d.Dispatch(context.Background(), testMsg(), "https://example.com/video")

	waitFor(t, fb) // ack
	terminal := waitFor(t, fb)
	want := "Failed to download https://example.com/video: exit status 1: ERROR: blocked"
	if terminal.Content != want {
		t.Errorf("terminal reply = %q, want %q", terminal.Content, want)
	}
}

func TestDispatch_SetupFailureSkipsRunner(t *testing.T) {
	// Point the output directory at an existing file so MkdirAll fails.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	fr := &fakeRunner{outcome: domain.Success()}
	fb := newFakeBus()
	d := NewDispatcher(DispatcherConfig{
		Runner:    fr,
		Bus:       fb,
		OutputDir: filepath.Join(blocker, "sub"),
		Logger:    testLogger(),
	})

	d.Dispatch(context.Background(), testMsg(), "https://example.com/video")

	waitFor(t, fb) // ack
	terminal := waitFor(t, fb)
	if !strings.HasPrefix(terminal.Content, "Failed to download https://example.com/video: failed to create output directory") {
		t.Errorf("terminal reply = %q, want a directory-creation failure", terminal.Content)
	}
	if fr.calls.Load() != 0 {
		t.Error("runner must not run when the output directory cannot be created")
	}
}

func TestDispatch_DoesNotBlockOnSlowDownloads(t *testing.T) {
	slow := make(chan struct{})
	fr := &blockingRunner{release: slow}
	fb := newFakeBus()
	d := NewDispatcher(DispatcherConfig{
		Runner:        fr,
		Bus:           fb,
		OutputDir:     t.TempDir(),
		MaxConcurrent: 1,
		Logger:        testLogger(),
	})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Dispatch(ctx, testMsg(), "https://example.com/video")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Dispatch blocked for %v with downloads in flight", elapsed)
	}

	// All five acks were sent synchronously even though only one
	// download slot exists.
	if got := fb.count(); got != 5 {
		t.Errorf("ack count = %d, want 5", got)
	}

	close(slow)
	// Drain the five buffered acks and the five terminal replies so no
	// download goroutine is still touching the temp dir during cleanup.
	for i := 0; i < 10; i++ {
		waitFor(t, fb)
	}
}

func TestDispatch_QueuedDownloadAbandonedOnShutdown(t *testing.T) {
	slow := make(chan struct{})
	fr := &blockingRunner{release: slow, started: make(chan struct{}, 1)}
	fb := newFakeBus()
	d := NewDispatcher(DispatcherConfig{
		Runner:        fr,
		Bus:           fb,
		OutputDir:     t.TempDir(),
		MaxConcurrent: 1,
		Logger:        testLogger(),
	})

	d.Dispatch(context.Background(), testMsg(), "https://example.com/a")
	waitFor(t, fb) // ack for the running download
	<-fr.started   // the first download holds the only slot

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, testMsg(), "https://example.com/b")
	waitFor(t, fb) // ack for the queued download
	cancel()

	// Let the queued goroutine observe cancellation while the slot is
	// still held, then let the first download finish.
	time.Sleep(50 * time.Millisecond)
	close(slow)

	terminal := waitFor(t, fb)
	if !strings.Contains(terminal.Content, "example.com/a") {
		t.Errorf("terminal reply = %q, want the running download's", terminal.Content)
	}

	// The abandoned download never sends its terminal reply.
	time.Sleep(50 * time.Millisecond)
	if got := fb.count(); got != 3 {
		t.Errorf("outbound count = %d, want 3 (two acks, one terminal)", got)
	}
}

type blockingRunner struct {
	release chan struct{}
	started chan struct{} // optional: signals each Run entry
}

func (r *blockingRunner) Run(ctx context.Context, req domain.DownloadRequest) domain.DownloadOutcome {
	if r.started != nil {
		r.started <- struct{}{}
	}
	<-r.release
	return domain.Success()
}
