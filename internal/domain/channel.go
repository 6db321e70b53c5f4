package domain

import "context"

// Gateway is the interface for a chat-platform connection (Discord,
// Telegram, Slack). Start blocks until ctx is cancelled or the
// connection fails fatally.
type Gateway interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, chatID string, content string) error
}

// GuildLeaver is implemented by gateways whose platform groups channels
// into guilds and that can leave one. Used during startup reconciliation.
type GuildLeaver interface {
	LeaveGuild(guildID string) error
}
