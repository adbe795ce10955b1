package store

import (
	"context"
	"fmt"
)

func (p *Postgres) SaveDirectMessage(ctx context.Context, params SaveDirectMessageParams) (DirectMessage, error) {
	msg := DirectMessage{
		Id:         p.ids.Generate().Int64(),
		SenderId:   params.SenderId,
		ReceiverId: params.ReceiverId,
		Content:    params.Content,
		Type:       params.Type,
		CreatedAt:  now(),
	}
	if msg.Type == "" {
		msg.Type = "text"
	}

	_, err := p.conn.ExecContext(ctx,
		"INSERT INTO messages (id, sender_id, receiver_id, content, type, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		msg.Id,
		msg.SenderId,
		msg.ReceiverId,
		msg.Content,
		msg.Type,
		msg.CreatedAt,
	)
	if err != nil {
		return DirectMessage{}, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

func (p *Postgres) GetConversation(ctx context.Context, userId, peerId int64, limit, offset int) ([]DirectMessage, error) {
	rows, err := p.conn.QueryContext(ctx,
		"SELECT id, sender_id, receiver_id, content, type, is_read, created_at FROM messages "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) "+
			"ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4",
		userId,
		peerId,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []DirectMessage
	for rows.Next() {
		var m DirectMessage
		if err := rows.Scan(
			&m.Id,
			&m.SenderId,
			&m.ReceiverId,
			&m.Content,
			&m.Type,
			&m.IsRead,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (p *Postgres) GetConversations(ctx context.Context, userId int64) ([]Conversation, error) {
	query := `
		SELECT DISTINCT ON (peer_id)
			CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS peer_id,
			u.username,
			u.online,
			m.id,
			m.sender_id,
			m.receiver_id,
			m.content,
			m.type,
			m.is_read,
			m.created_at,
			(SELECT COUNT(*) FROM messages
				WHERE sender_id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
				AND receiver_id = $1 AND NOT is_read) AS unread_count
		FROM messages m
		JOIN users u ON u.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
		WHERE m.sender_id = $1 OR m.receiver_id = $1
		ORDER BY peer_id, m.created_at DESC, m.id DESC
`

	rows, err := p.conn.QueryContext(ctx, query, userId)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(
			&c.PeerId,
			&c.Username,
			&c.Online,
			&c.LastMessage.Id,
			&c.LastMessage.SenderId,
			&c.LastMessage.ReceiverId,
			&c.LastMessage.Content,
			&c.LastMessage.Type,
			&c.LastMessage.IsRead,
			&c.LastMessage.CreatedAt,
			&c.UnreadCount,
		); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}

	return convs, rows.Err()
}

func (p *Postgres) MarkMessageRead(ctx context.Context, messageId, readerId int64) (int64, error) {
	res, err := p.conn.ExecContext(ctx,
		"UPDATE messages SET is_read = TRUE WHERE id = $1 AND receiver_id = $2",
		messageId,
		readerId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (p *Postgres) MarkAllFromSenderRead(ctx context.Context, senderId, readerId int64) (int64, error) {
	res, err := p.conn.ExecContext(ctx,
		"UPDATE messages SET is_read = TRUE "+
			"WHERE sender_id = $1 AND receiver_id = $2 AND NOT is_read",
		senderId,
		readerId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
