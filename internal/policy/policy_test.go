package policy

import (
	"testing"

	"grabbot/internal/domain"
)

func msg(guildID, chatID string, fromBot bool) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:  "discord",
		GuildID:  guildID,
		ChatID:   chatID,
		SenderID: "user-1",
		Content:  "https://example.com/video",
		FromBot:  fromBot,
	}
}

func TestAllow_DeniesBots(t *testing.T) {
	// Bot authors are denied regardless of every other field.
	p := Policy{}
	if p.Allow(msg("10", "5", true)) {
		t.Error("bot message should be denied under an open policy")
	}
	p = Policy{AllowedGuilds: []string{"10"}, AllowedChannel: "5"}
	if p.Allow(msg("10", "5", true)) {
		t.Error("bot message should be denied even from an allowed origin")
	}
}

func TestAllow_GuildAllowList(t *testing.T) {
	p := Policy{AllowedGuilds: []string{"10", "20"}}

	if p.Allow(msg("30", "5", false)) {
		t.Error("guild 30 is not on the allow-list")
	}
	if !p.Allow(msg("20", "5", false)) {
		t.Error("guild 20 is on the allow-list")
	}
}

func TestAllow_DirectMessagesSkipGuildCheck(t *testing.T) {
	p := Policy{AllowedGuilds: []string{"10"}}
	// DMs have no guild ID and are not subject to the guild check.
	if !p.Allow(msg("", "5", false)) {
		t.Error("DM should bypass the guild allow-list")
	}
}

func TestAllow_ChannelRestriction(t *testing.T) {
	p := Policy{AllowedGuilds: []string{"10"}, AllowedChannel: "5"}

	if p.Allow(msg("10", "7", false)) {
		t.Error("channel 7 should be denied even though the guild is allowed")
	}
	if !p.Allow(msg("10", "5", false)) {
		t.Error("channel 5 should be allowed")
	}
}

func TestAllow_OpenPolicy(t *testing.T) {
	p := Policy{}
	if !p.Allow(msg("any-guild", "any-chat", false)) {
		t.Error("empty policy should allow everything non-bot")
	}
}

func TestGuildAllowed(t *testing.T) {
	p := Policy{AllowedGuilds: []string{"1"}}
	if !p.GuildAllowed("1") {
		t.Error("guild 1 should be allowed")
	}
	if p.GuildAllowed("2") {
		t.Error("guild 2 should not be allowed")
	}

	open := Policy{}
	if !open.GuildAllowed("anything") {
		t.Error("no allow-list means every guild is allowed")
	}
}

func TestRestricted(t *testing.T) {
	if (Policy{}).Restricted() {
		t.Error("empty policy is not restricted")
	}
	if !(Policy{AllowedGuilds: []string{"1"}}).Restricted() {
		t.Error("policy with allow-list is restricted")
	}
}
