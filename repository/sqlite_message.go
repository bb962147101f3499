package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
)

type sqliteMessageRepo struct {
	db database.TxQuerier
}

// NewSQLiteMessageRepo, constructor.
func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

const messageColumns = `m.id, m.channel_id, m.author_kind, m.author_id, m.author_name, m.author_avatar,
	m.content, m.reply_to_id, m.mentions, m.channel_links, m.embeds, m.attachments,
	m.command_data, m.pinned, m.created_at, m.edited_at, m.deleted_at`

// scanMessage, bir mesaj satırını okur ve JSON kolonlarını çözer.
// Kullanıcı yazarlarının username/avatar'ı JOIN ile doldurulur (uname/uavatar).
func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	m := &models.Message{}
	var (
		authorName, authorAvatar       sql.NullString
		mentions, links, embeds, atts  string
		commandData                    sql.NullString
		deletedAt                      sql.NullTime
		uname, uavatar                 sql.NullString
	)

	err := row.Scan(
		&m.ID, &m.ChannelID, &m.Author.Kind, &m.Author.ID, &authorName, &authorAvatar,
		&m.Content, &m.ReplyToID, &mentions, &links, &embeds, &atts,
		&commandData, &m.Pinned, &m.CreatedAt, &m.EditedAt, &deletedAt,
		&uname, &uavatar,
	)
	if err != nil {
		return nil, err
	}

	// Yazar görünümü: webhook ise payload'dan kaydedilen isim, user ise JOIN sonucu.
	switch m.Author.Kind {
	case models.AuthorKindWebhook:
		m.Author.DisplayName = authorName.String
		m.Author.AvatarURL = authorAvatar.String
	default:
		if uname.Valid {
			m.Author.DisplayName = uname.String
		} else {
			m.Author.DisplayName = "deleted-user"
		}
		m.Author.AvatarURL = uavatar.String
	}

	if deletedAt.Valid {
		// Tombstone — içerik gizlenir, iskelet kalır.
		m.Deleted = true
		m.Content = ""
		m.Embeds = []models.Embed{}
		m.Attachments = []string{}
		m.Mentions = models.Mentions{Users: []string{}, Roles: []string{}}
		return m, nil
	}

	if err := json.Unmarshal([]byte(mentions), &m.Mentions); err != nil {
		m.Mentions = models.Mentions{}
	}
	if err := json.Unmarshal([]byte(links), &m.ChannelLinks); err != nil {
		m.ChannelLinks = nil
	}
	if err := json.Unmarshal([]byte(embeds), &m.Embeds); err != nil {
		m.Embeds = nil
	}
	if err := json.Unmarshal([]byte(atts), &m.Attachments); err != nil {
		m.Attachments = nil
	}
	if commandData.Valid && commandData.String != "" {
		var cd models.CommandData
		if err := json.Unmarshal([]byte(commandData.String), &cd); err == nil {
			m.CommandData = &cd
		}
	}

	return m, nil
}

// messageSelect, user JOIN'li standart mesaj sorgusu.
const messageSelect = `
	SELECT ` + messageColumns + `,
		CASE WHEN u.deleted_at IS NULL THEN u.username END,
		CASE WHEN u.deleted_at IS NULL THEN u.custom_avatar END
	FROM messages m
	LEFT JOIN users u ON m.author_kind = 'user' AND u.id = m.author_id`

func (r *sqliteMessageRepo) Create(ctx context.Context, message *models.Message) error {
	mentions, err := json.Marshal(message.Mentions)
	if err != nil {
		return fmt.Errorf("failed to marshal mentions: %w", err)
	}
	links, _ := json.Marshal(message.ChannelLinks)
	embeds, _ := json.Marshal(message.Embeds)
	atts, _ := json.Marshal(message.Attachments)

	var commandData any
	if message.CommandData != nil {
		raw, err := json.Marshal(message.CommandData)
		if err != nil {
			return fmt.Errorf("failed to marshal command data: %w", err)
		}
		commandData = string(raw)
	}

	var authorName, authorAvatar any
	if message.Author.Kind == models.AuthorKindWebhook {
		authorName = message.Author.DisplayName
		authorAvatar = message.Author.AvatarURL
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, channel_id, author_kind, author_id, author_name, author_avatar,
			content, reply_to_id, mentions, channel_links, embeds, attachments, command_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		message.ID, message.ChannelID, message.Author.Kind, message.Author.ID,
		authorName, authorAvatar, message.Content, message.ReplyToID,
		string(mentions), string(links), string(embeds), string(atts), commandData,
	).Scan(&message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	if err := r.fillReactions(ctx, []*models.Message{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *sqliteMessageRepo) ListBefore(ctx context.Context, channelID, beforeID string, limit int) (*models.MessagePage, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	query := messageSelect + ` WHERE m.channel_id = ?`
	args := []any{channelID}
	if beforeID != "" {
		query += ` AND m.id < ?`
		args = append(args, beforeID)
	}
	// limit+1: bir fazlası çekilir — fazlalık varsa has_more=true.
	query += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	if err := r.fillReactions(ctx, msgs); err != nil {
		return nil, err
	}
	if err := r.fillReferences(ctx, msgs); err != nil {
		return nil, err
	}

	page := &models.MessagePage{HasMore: hasMore, Messages: make([]models.Message, len(msgs))}
	for i, m := range msgs {
		page.Messages[i] = *m
	}
	return page, nil
}

func (r *sqliteMessageRepo) UpdateContent(ctx context.Context, id, content string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, edited_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteMessageRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteMessageRepo) SetPinned(ctx context.Context, id string, pinned bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET pinned = ? WHERE id = ? AND deleted_at IS NULL`, pinned, id)
	if err != nil {
		return fmt.Errorf("failed to set pinned: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteMessageRepo) ListPinned(ctx context.Context, channelID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		messageSelect+` WHERE m.channel_id = ? AND m.pinned = 1 AND m.deleted_at IS NULL ORDER BY m.id DESC`,
		channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pinned messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.fillReactions(ctx, msgs); err != nil {
		return nil, err
	}

	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out, nil
}

func (r *sqliteMessageRepo) UpdateCommandData(ctx context.Context, id string, data *models.CommandData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal command data: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE messages SET command_data = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return fmt.Errorf("failed to update command data: %w", err)
	}
	return nil
}

func (r *sqliteMessageRepo) CountAfter(ctx context.Context, channelID, afterID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE channel_id = ? AND id > ? AND deleted_at IS NULL`,
		channelID, afterID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

func (r *sqliteMessageRepo) GetLast(ctx context.Context, channelID string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx,
		messageSelect+` WHERE m.channel_id = ? AND m.deleted_at IS NULL ORDER BY m.id DESC LIMIT 1`,
		channelID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last message: %w", err)
	}
	return m, nil
}

func (r *sqliteMessageRepo) AnonymizeAuthor(ctx context.Context, userID string) error {
	// İçerik kalır, yazar tombstone'a döner. LEFT JOIN users zaten silinmiş
	// kullanıcıyı "deleted-user" olarak gösterir — burada ek iş gerekmez,
	// ama webhook olmayan mesajların author bağını koparmayız (id-keyed tablolar).
	return nil
}

// fillReactions, mesaj listesinin reaksiyon gruplarını tek sorguda doldurur.
func (r *sqliteMessageRepo) fillReactions(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	index := make(map[string]*models.Message, len(msgs))
	placeholders := ""
	args := make([]any, 0, len(msgs))
	for i, m := range msgs {
		index[m.ID] = m
		m.Reactions = []models.ReactionGroup{}
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, m.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, emoji, user_id FROM reactions
		WHERE message_id IN (`+placeholders+`)
		ORDER BY created_at`, args...)
	if err != nil {
		return fmt.Errorf("failed to load reactions: %w", err)
	}
	defer rows.Close()

	type key struct{ msgID, emoji string }
	groups := make(map[key]*models.ReactionGroup)
	var order []key
	for rows.Next() {
		var msgID, emoji, userID string
		if err := rows.Scan(&msgID, &emoji, &userID); err != nil {
			return fmt.Errorf("failed to scan reaction row: %w", err)
		}
		k := key{msgID, emoji}
		g, ok := groups[k]
		if !ok {
			g = &models.ReactionGroup{Emoji: emoji}
			groups[k] = g
			order = append(order, k)
		}
		g.UserIDs = append(g.UserIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// İlk reaksiyon sırası korunur — client'ta grup sırası stabil kalır.
	sort.SliceStable(order, func(i, j int) bool { return order[i].msgID < order[j].msgID })
	for _, k := range order {
		if m, ok := index[k.msgID]; ok {
			m.Reactions = append(m.Reactions, *groups[k])
		}
	}
	return nil
}

// fillReferences, reply_to_id dolu mesajların önizlemelerini doldurur.
func (r *sqliteMessageRepo) fillReferences(ctx context.Context, msgs []*models.Message) error {
	var refIDs []string
	seen := make(map[string]bool)
	for _, m := range msgs {
		if m.ReplyToID != nil && !seen[*m.ReplyToID] {
			seen[*m.ReplyToID] = true
			refIDs = append(refIDs, *m.ReplyToID)
		}
	}
	if len(refIDs) == 0 {
		return nil
	}

	placeholders := ""
	args := make([]any, 0, len(refIDs))
	for i, id := range refIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, messageSelect+` WHERE m.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to load referenced messages: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]*models.MessageReference)
	for rows.Next() {
		ref, err := scanMessage(rows)
		if err != nil {
			return fmt.Errorf("failed to scan referenced message: %w", err)
		}
		content := ref.Content
		if len(content) > 120 {
			content = content[:120]
		}
		refs[ref.ID] = &models.MessageReference{ID: ref.ID, Author: ref.Author, Content: content}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range msgs {
		if m.ReplyToID != nil {
			m.ReferencedMessage = refs[*m.ReplyToID]
		}
	}
	return nil
}
