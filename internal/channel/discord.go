package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"grabbot/internal/bus"
	"grabbot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

const discordMaxMsgLen = 2000

// Discord implements domain.Gateway for Discord. It publishes every
// message event (including ones from bots; the authorization filter
// decides what to drop) and emits gateway.ready with the joined guild
// list for startup reconciliation.
type Discord struct {
	token   string
	session *discordgo.Session
	events  *bus.EventBus
	logger  *slog.Logger
}

// DiscordConfig configures the Discord gateway.
type DiscordConfig struct {
	Token  string
	Events *bus.EventBus
	Logger *slog.Logger
}

// NewDiscord creates a new Discord gateway.
func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:  cfg.Token,
		events: cfg.Events,
		logger: cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord using a bot token and begins listening.
func (d *Discord) Start(ctx context.Context, mbus domain.MessageBus) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	d.session = session

	mbus.OnOutbound("discord", func(msg domain.OutboundMessage) {
		if msg.Content == "" {
			return
		}
		d.sendMessage(msg.ChatID, msg.Content)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.logger.Info("discord message received",
			"author", m.Author.Username,
			"guild_id", m.GuildID,
			"channel_id", m.ChannelID,
			"content_len", len(m.Content),
		)

		mbus.Publish(domain.InboundMessage{
			Channel:   "discord",
			GuildID:   m.GuildID, // empty for DMs
			ChatID:    m.ChannelID,
			SenderID:  m.Author.ID,
			Content:   m.Content,
			FromBot:   m.Author.Bot,
			Timestamp: time.Now(),
		})
	})

	// READY fires on connect and again after a resumed session replays
	// state, so a stale guild membership list is reconciled too.
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		guilds := make([]string, 0, len(r.Guilds))
		for _, g := range r.Guilds {
			guilds = append(guilds, g.ID)
		}
		d.events.Emit(bus.Event{
			Type:   bus.EventGatewayReady,
			Source: "discord",
			Payload: map[string]any{
				"identity": r.User.Username,
				"guilds":   guilds,
			},
		})
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}

	d.logger.Info("discord bot connected", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

// Stop is a no-op: the session closes when Start's context is cancelled.
func (d *Discord) Stop() error { return nil }

func (d *Discord) Send(ctx context.Context, chatID string, content string) error {
	if _, err := d.session.ChannelMessageSend(chatID, content); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// LeaveGuild departs the given guild. Used during reconciliation when a
// guild allow-list is configured.
func (d *Discord) LeaveGuild(guildID string) error {
	return d.session.GuildLeave(guildID)
}

func (d *Discord) sendMessage(channelID, content string) {
	for _, chunk := range splitMessage(content, discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(channelID, chunk); err != nil {
			d.logger.Error("discord send failed", "channel", channelID, "err", err)
		}
	}
}

// splitMessage splits a message into chunks that fit within the max
// length, trying to split on newlines when possible.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
