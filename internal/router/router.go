// Package router is the per-message decision pipeline: authorization,
// URL extraction, and download dispatch, plus the ready-time guild
// reconciliation.
package router

import (
	"context"
	"log/slog"
	"sync"

	"grabbot/internal/bus"
	"grabbot/internal/domain"
	"grabbot/internal/downloader"
	"grabbot/internal/metrics"
	"grabbot/internal/policy"
	"grabbot/internal/urlmatch"
)

// InvalidURLMessage is the reply for messages with no valid URL.
const InvalidURLMessage = "Invalid URL."

// Router consumes inbound messages and routes qualifying ones to the
// download dispatcher. The authorization and URL checks are pure and run
// inline; only the dispatcher spawns work.
type Router struct {
	policy     policy.Policy
	dispatcher *downloader.Dispatcher
	bus        domain.MessageBus
	gateways   map[string]domain.Gateway // guarded by mu
	mu         sync.RWMutex
	logger     *slog.Logger
}

// Config holds the router's dependencies.
type Config struct {
	Policy     policy.Policy
	Dispatcher *downloader.Dispatcher
	Bus        domain.MessageBus
	Events     *bus.EventBus // optional; source of gateway.ready
	Logger     *slog.Logger
}

// New creates a Router and subscribes it to lifecycle events.
func New(cfg Config) *Router {
	r := &Router{
		policy:     cfg.Policy,
		dispatcher: cfg.Dispatcher,
		bus:        cfg.Bus,
		gateways:   make(map[string]domain.Gateway),
		logger:     cfg.Logger,
	}
	if cfg.Events != nil {
		cfg.Events.On(bus.EventGatewayReady, r.HandleReady)
	}
	return r
}

// RegisterGateway makes a gateway addressable for reconciliation.
// Safe to call while gateways are already connecting: READY events
// arrive on gateway goroutines.
func (r *Router) RegisterGateway(gw domain.Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gw.Name()] = gw
}

// Run consumes inbound messages until ctx is cancelled or the bus closes.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("router started")
	inbound := r.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound bus closed, router stopping")
				return
			}
			r.handleMessage(ctx, msg)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, msg domain.InboundMessage) {
	metrics.MessagesTotal.Inc()

	if !r.policy.Allow(msg) {
		metrics.MessagesDenied.Inc()
		return
	}

	url, verdict := urlmatch.Find(msg.Content)
	if verdict != urlmatch.Valid {
		metrics.InvalidURLReplies.Inc()
		r.bus.SendOutbound(domain.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: InvalidURLMessage,
		})
		return
	}

	r.dispatcher.Dispatch(ctx, msg, url)
}

// HandleReady runs once a gateway session is established (and again
// whenever the gateway re-delivers READY after a resume). When a guild
// allow-list is configured, every joined guild not on the list is left;
// a failed departure is logged and the remaining guilds are still
// processed.
func (r *Router) HandleReady(e bus.Event) {
	identity, _ := e.Payload["identity"].(string)
	guilds, _ := e.Payload["guilds"].([]string)
	r.logger.Info("connected", "channel", e.Source, "identity", identity, "guilds", len(guilds))

	if !r.policy.Restricted() {
		return
	}
	r.mu.RLock()
	gw := r.gateways[e.Source]
	r.mu.RUnlock()
	leaver, ok := gw.(domain.GuildLeaver)
	if !ok {
		return
	}

	for _, id := range guilds {
		if r.policy.GuildAllowed(id) {
			continue
		}
		r.logger.Info("leaving unauthorized guild", "guild", id)
		if err := leaver.LeaveGuild(id); err != nil {
			r.logger.Error("failed to leave guild", "guild", id, "err", err)
		}
	}
}
