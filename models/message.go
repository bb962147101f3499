// Package models — Message domain modeli.
//
// Yazar tek bir tagged variant olarak modellenir: Author{Kind: user|webhook}.
// Webhook mesajları da kullanıcı mesajlarıyla aynı struct'tan geçer —
// downstream kod (fan-out, parse, fetch) ikisini ayırt etmek zorunda kalmaz.
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// AuthorKind, mesaj yazarının türü.
type AuthorKind string

const (
	AuthorKindUser    AuthorKind = "user"
	AuthorKindWebhook AuthorKind = "webhook"
)

// Author, mesajın yazar kimliği — kullanıcı VEYA webhook.
// Webhook yazarlarında DisplayName/AvatarURL payload'dan gelir;
// kullanıcı yazarlarında bu alanlar fetch sırasında user tablosundan doldurulur.
type Author struct {
	Kind        AuthorKind `json:"kind"`
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
}

// Mentions, mesaj içeriğinden parse edilen bahsetmeler.
type Mentions struct {
	Everyone bool     `json:"everyone"`
	Users    []string `json:"users"`
	Roles    []string `json:"roles"`
}

// Embed, bir mesaj gömüsü (webhook payload'ından veya link önizlemesinden).
type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Color       string `json:"color,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// PollOption, bir anket seçeneği ve oy veren kullanıcılar.
type PollOption struct {
	Label  string   `json:"label"`
	Voters []string `json:"voters"`
}

// CommandData, slash-command kaynaklı yapısal veri (anket, hatırlatıcı).
type CommandData struct {
	Kind     string       `json:"kind"` // "poll" | "reminder"
	Question string       `json:"question,omitempty"`
	Options  []PollOption `json:"options,omitempty"`
	RemindAt *time.Time   `json:"remind_at,omitempty"`
}

// ReactionGroup, bir emoji ve o emojiyi ekleyen kullanıcı ID'leri.
// reactions map'inin API görünümü — deterministik sıralama için slice.
type ReactionGroup struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"user_ids"`
}

// Message, bir chat mesajını temsil eder.
type Message struct {
	ID           string          `json:"id"` // ULID — zaman sıralı, kanal içi monoton
	ChannelID    string          `json:"channel_id"`
	Author       Author          `json:"author"`
	Content      string          `json:"content"`
	ReplyToID    *string         `json:"reply_to_id"`
	Mentions     Mentions        `json:"mentions"`
	ChannelLinks []string        `json:"channel_links"`
	InviteCodes  []string        `json:"invite_codes,omitempty"`
	Embeds       []Embed         `json:"embeds"`
	Attachments  []string        `json:"attachments"` // URL listesi
	Reactions    []ReactionGroup `json:"reactions"`
	CommandData  *CommandData    `json:"command_data,omitempty"`
	Pinned       bool            `json:"pinned"`
	CreatedAt    time.Time       `json:"created_at"`
	EditedAt     *time.Time      `json:"edited_at"`
	Deleted      bool            `json:"deleted"`

	// ReferencedMessage, reply_to_id dolu mesajlarda fetch sırasında
	// doldurulan önizleme (yazar + kısaltılmış içerik).
	ReferencedMessage *MessageReference `json:"referenced_message,omitempty"`
}

// MessageReference, yanıtlanan mesajın kısa önizlemesi.
type MessageReference struct {
	ID      string `json:"id"`
	Author  Author `json:"author"`
	Content string `json:"content"`
}

// MessagePage, cursor-based pagination sonucu.
//
// Offset-based ("LIMIT 50 OFFSET 100") yerine "bu ID'den önceki N mesajı getir"
// kullanılır. Yeni mesaj eklendiğinde sayfa kayması olmaz.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// allowedAttachmentSchemes — attachment URL'lerinde kabul edilen şemalar.
var allowedAttachmentSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"data":  true,
}

// MessageDraft, yeni mesaj gönderme isteği (WS message:send veya webhook ingest).
type MessageDraft struct {
	ChannelID   string       `json:"channel_id"`
	Content     string       `json:"content"`
	ReplyToID   *string      `json:"reply_to_id,omitempty"`
	Attachments []string     `json:"attachments,omitempty"`
	Embeds      []Embed      `json:"embeds,omitempty"`
	CommandData *CommandData `json:"command_data,omitempty"`
}

// Validate, MessageDraft kontrolü.
// Kurallar: içerik ≤ 2000 karakter; attachment ≤ 4 ve şema allow-list'te;
// embed ≤ 10. Sadece attachment/embed veya command data içeren mesajlarda
// content boş olabilir.
func (r *MessageDraft) Validate() error {
	if r.ChannelID == "" {
		return fmt.Errorf("channel_id is required")
	}

	r.Content = strings.TrimSpace(r.Content)
	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen == 0 && len(r.Attachments) == 0 && len(r.Embeds) == 0 && r.CommandData == nil {
		return fmt.Errorf("message content is required")
	}
	if contentLen > 2000 {
		return fmt.Errorf("message content must be at most 2000 characters")
	}

	if len(r.Attachments) > 4 {
		return fmt.Errorf("at most 4 attachments allowed")
	}
	for _, raw := range r.Attachments {
		u, err := url.Parse(raw)
		if err != nil || !allowedAttachmentSchemes[u.Scheme] {
			return fmt.Errorf("attachment url scheme not allowed: %s", raw)
		}
	}

	if len(r.Embeds) > 10 {
		return fmt.Errorf("at most 10 embeds allowed")
	}

	if r.CommandData != nil {
		if err := r.CommandData.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Validate, CommandData kontrolü.
func (c *CommandData) Validate() error {
	switch c.Kind {
	case "poll":
		if strings.TrimSpace(c.Question) == "" {
			return fmt.Errorf("poll question is required")
		}
		if len(c.Options) < 2 || len(c.Options) > 10 {
			return fmt.Errorf("poll must have between 2 and 10 options")
		}
	case "reminder":
		if c.RemindAt == nil {
			return fmt.Errorf("reminder time is required")
		}
	default:
		return fmt.Errorf("unknown command kind: %s", c.Kind)
	}
	return nil
}

// EditMessageRequest, mesaj düzenleme isteği.
type EditMessageRequest struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// Validate, EditMessageRequest kontrolü.
func (r *EditMessageRequest) Validate() error {
	if r.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	r.Content = strings.TrimSpace(r.Content)
	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen < 1 {
		return fmt.Errorf("message content is required")
	}
	if contentLen > 2000 {
		return fmt.Errorf("message content must be at most 2000 characters")
	}
	return nil
}

// ReactionRequest, emoji tepkisi ekleme/kaldırma isteği.
type ReactionRequest struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	Op        string `json:"op"` // "add" | "remove"
}

// Validate, ReactionRequest kontrolü.
func (r *ReactionRequest) Validate() error {
	if r.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	r.Emoji = strings.TrimSpace(r.Emoji)
	if r.Emoji == "" || utf8.RuneCountInString(r.Emoji) > 64 {
		return fmt.Errorf("emoji is required")
	}
	if r.Op != "add" && r.Op != "remove" {
		return fmt.Errorf("op must be 'add' or 'remove'")
	}
	return nil
}
