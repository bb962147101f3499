package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testParseContext() ParseContext {
	return ParseContext{
		UsersByName: map[string]string{
			"alice": "u-alice",
			"bob":   "u-bob",
		},
		RolesByName: map[string]string{
			"mods":      "r-mods",
			"mods plus": "r-modsplus",
		},
		ChannelsByName: map[string]string{
			"general": "c-general",
		},
	}
}

func TestParseUserMentions(t *testing.T) {
	result := ParseMessage("hey @alice and @bob, @alice again", testParseContext())

	assert.Equal(t, []string{"u-alice", "u-bob"}, result.UserMentions, "tekrar eden mention tekilleştirilir")
	assert.False(t, result.MentionsEveryone)
}

func TestParseEveryone(t *testing.T) {
	result := ParseMessage("@everyone meeting now", testParseContext())
	assert.True(t, result.MentionsEveryone)

	// Kelime sınırı: @everyonex everyone sayılmaz
	result = ParseMessage("@everyonex", testParseContext())
	assert.False(t, result.MentionsEveryone)
}

func TestParseRoleLongestMatch(t *testing.T) {
	// "mods plus" tablodayken "@mods plus" en uzun eşleşmeyi almalı
	result := ParseMessage("ping @mods plus team", testParseContext())
	assert.Equal(t, []string{"r-modsplus"}, result.RoleMentions)

	result = ParseMessage("ping @mods team", testParseContext())
	assert.Equal(t, []string{"r-mods"}, result.RoleMentions)
}

func TestParseWordBoundary(t *testing.T) {
	// "alicex" tabloda yok — "alice" yarım eşleşmemeli
	result := ParseMessage("hey @alicex", testParseContext())
	assert.Empty(t, result.UserMentions)

	// Noktalama sınır sayılır
	result = ParseMessage("thanks @alice!", testParseContext())
	assert.Equal(t, []string{"u-alice"}, result.UserMentions)
}

func TestParseChannelLinks(t *testing.T) {
	result := ParseMessage("see #general for rules, #unknown ignored", testParseContext())
	assert.Equal(t, []string{"c-general"}, result.ChannelLinks)
}

func TestParseInviteCodes(t *testing.T) {
	result := ParseMessage("join https://nexus.chat/invite/aBc123 or /invite/xYz789!", testParseContext())
	assert.Equal(t, []string{"aBc123", "xYz789"}, result.InviteCodes)
}

func TestParseEmojiTokens(t *testing.T) {
	result := ParseMessage("nice :partyblob:srv1:em42: work", testParseContext())
	assert.Equal(t, []string{"partyblob:srv1:em42"}, result.EmojiTokens)

	// Yarım kalıp token değildir
	result = ParseMessage("time is 12:30:45 today", testParseContext())
	assert.Empty(t, result.EmojiTokens)
}

func TestParseDeterministic(t *testing.T) {
	content := "@alice check #general :blob:s:e: /invite/Kk12 @everyone"
	first := ParseMessage(content, testParseContext())
	second := ParseMessage(content, testParseContext())
	assert.Equal(t, first, second)
}

func TestParsePlainTextUntouched(t *testing.T) {
	result := ParseMessage("email me at a@b.com / see you", testParseContext())
	assert.Empty(t, result.UserMentions)
	assert.Empty(t, result.RoleMentions)
	assert.Empty(t, result.ChannelLinks)
	assert.Empty(t, result.InviteCodes)
}
