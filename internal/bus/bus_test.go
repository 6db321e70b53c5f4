package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"grabbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(4, testLogger())

	b.Publish(domain.InboundMessage{Channel: "discord", ChatID: "5", Content: "hi"})

	select {
	case msg := <-b.Subscribe():
		if msg.ChatID != "5" || msg.Content != "hi" {
			t.Errorf("got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemoryBus_OutboundRouting(t *testing.T) {
	b := New(4, testLogger())

	var got domain.OutboundMessage
	b.OnOutbound("discord", func(msg domain.OutboundMessage) {
		got = msg
	})

	b.SendOutbound(domain.OutboundMessage{Channel: "discord", ChatID: "5", Content: "Downloaded: <x>"})

	if got.ChatID != "5" || got.Content != "Downloaded: <x>" {
		t.Errorf("handler got %+v", got)
	}
}

func TestInMemoryBus_OutboundWithoutHandlerIsDropped(t *testing.T) {
	b := New(4, testLogger())
	// Must not panic or block.
	b.SendOutbound(domain.OutboundMessage{Channel: "nobody", ChatID: "1", Content: "x"})
}

func TestInMemoryBus_PublishAfterClose(t *testing.T) {
	b := New(4, testLogger())
	b.Close()
	// Must not panic on the closed channel.
	b.Publish(domain.InboundMessage{Channel: "discord"})
}

func TestInMemoryBus_CloseIsIdempotent(t *testing.T) {
	b := New(4, testLogger())
	b.Close()
	b.Close()
}

func TestInMemoryBus_SubscribeDrainsAfterClose(t *testing.T) {
	b := New(4, testLogger())
	b.Publish(domain.InboundMessage{Channel: "discord", Content: "queued"})
	b.Close()

	msg, ok := <-b.Subscribe()
	if !ok || msg.Content != "queued" {
		t.Errorf("got (%+v, %v), want the queued message", msg, ok)
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("channel should be closed after draining")
	}
}
