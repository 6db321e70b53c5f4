// Package policy decides whether a message's origin may trigger
// downloads.
package policy

import "grabbot/internal/domain"

// Policy is the origin allow-list. Immutable after startup and shared
// read-only across all message-handling goroutines.
type Policy struct {
	// AllowedGuilds restricts guild messages to these guild IDs.
	// Nil or empty = all guilds allowed. Messages without a guild ID
	// (DMs, guild-less platforms) are not subject to this check.
	AllowedGuilds []string

	// AllowedChannel restricts handling to a single chat/channel ID.
	// Empty = all channels allowed.
	AllowedChannel string
}

// Allow reports whether msg may trigger a download. Pure decision
// function, no side effects.
func (p Policy) Allow(msg domain.InboundMessage) bool {
	if msg.FromBot {
		return false
	}
	if msg.GuildID != "" && !p.GuildAllowed(msg.GuildID) {
		return false
	}
	if p.AllowedChannel != "" && msg.ChatID != p.AllowedChannel {
		return false
	}
	return true
}

// GuildAllowed reports whether the given guild is on the allow-list.
func (p Policy) GuildAllowed(guildID string) bool {
	if len(p.AllowedGuilds) == 0 {
		return true
	}
	for _, id := range p.AllowedGuilds {
		if id == guildID {
			return true
		}
	}
	return false
}

// Restricted reports whether a guild allow-list is configured, i.e.
// whether ready-time reconciliation has anything to do.
func (p Policy) Restricted() bool {
	return len(p.AllowedGuilds) > 0
}
