package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageDraftValidate(t *testing.T) {
	t.Run("normal mesaj", func(t *testing.T) {
		draft := &MessageDraft{ChannelID: "c1", Content: "hello"}
		assert.NoError(t, draft.Validate())
	})

	t.Run("channel_id zorunlu", func(t *testing.T) {
		draft := &MessageDraft{Content: "hello"}
		assert.Error(t, draft.Validate())
	})

	t.Run("boş içerik reddedilir", func(t *testing.T) {
		draft := &MessageDraft{ChannelID: "c1", Content: "   "}
		assert.Error(t, draft.Validate())
	})

	t.Run("sadece attachment ile içerik boş olabilir", func(t *testing.T) {
		draft := &MessageDraft{ChannelID: "c1", Attachments: []string{"https://x.test/a.png"}}
		assert.NoError(t, draft.Validate())
	})

	t.Run("2000 karakter sınırı", func(t *testing.T) {
		draft := &MessageDraft{ChannelID: "c1", Content: strings.Repeat("a", 2001)}
		assert.Error(t, draft.Validate())

		draft.Content = strings.Repeat("a", 2000)
		assert.NoError(t, draft.Validate())
	})

	t.Run("en fazla 4 attachment", func(t *testing.T) {
		draft := &MessageDraft{ChannelID: "c1", Content: "x", Attachments: []string{
			"https://a.test/1", "https://a.test/2", "https://a.test/3",
			"https://a.test/4", "https://a.test/5",
		}}
		assert.Error(t, draft.Validate())
	})

	t.Run("attachment şema allow-list", func(t *testing.T) {
		for _, url := range []string{"https://a.test/x", "http://a.test/x", "data:image/png;base64,AA=="} {
			draft := &MessageDraft{ChannelID: "c1", Content: "x", Attachments: []string{url}}
			assert.NoError(t, draft.Validate(), url)
		}
		for _, url := range []string{"ftp://a.test/x", "javascript:alert(1)", "file:///etc/passwd"} {
			draft := &MessageDraft{ChannelID: "c1", Content: "x", Attachments: []string{url}}
			assert.Error(t, draft.Validate(), url)
		}
	})

	t.Run("en fazla 10 embed", func(t *testing.T) {
		draft := &MessageDraft{ChannelID: "c1", Content: "x", Embeds: make([]Embed, 11)}
		assert.Error(t, draft.Validate())

		draft.Embeds = make([]Embed, 10)
		assert.NoError(t, draft.Validate())
	})

	t.Run("poll en az iki seçenek ister", func(t *testing.T) {
		draft := &MessageDraft{ChannelID: "c1", CommandData: &CommandData{
			Kind: "poll", Question: "soup?", Options: []PollOption{{Label: "yes"}},
		}}
		assert.Error(t, draft.Validate())

		draft.CommandData.Options = append(draft.CommandData.Options, PollOption{Label: "no"})
		assert.NoError(t, draft.Validate())
	})
}

func TestReactionRequestValidate(t *testing.T) {
	req := &ReactionRequest{MessageID: "m1", Emoji: "👍", Op: "add"}
	assert.NoError(t, req.Validate())

	req.Op = "toggle"
	assert.Error(t, req.Validate())

	req = &ReactionRequest{MessageID: "m1", Emoji: "  ", Op: "remove"}
	assert.Error(t, req.Validate())
}
