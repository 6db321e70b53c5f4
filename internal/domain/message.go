package domain

import "time"

// InboundMessage is one message event delivered by a gateway. GuildID is
// empty for direct messages and for platforms that have no guild concept.
type InboundMessage struct {
	Channel   string // gateway name: "discord", "telegram", "slack"
	GuildID   string
	ChatID    string
	SenderID  string
	Content   string
	FromBot   bool // author is an automated agent
	Timestamp time.Time
}

// OutboundMessage is a reply addressed to a chat on a specific gateway.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
