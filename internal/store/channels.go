package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (p *Postgres) CreateChannel(ctx context.Context, params CreateChannelParams) (Channel, error) {
	publicId, err := p.sid.Generate()
	if err != nil {
		return Channel{}, fmt.Errorf("generate public id: %w", err)
	}

	// The creator's admin membership is written in the same transaction
	// as the channel row so a failed membership insert never leaves a
	// half-created channel.
	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return Channel{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"INSERT INTO channels (public_id, name, description, image, creator_id, is_private, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"RETURNING id, public_id, name, description, image, creator_id, is_private, created_at",
		publicId,
		params.Name,
		params.Description,
		params.Image,
		params.CreatorId,
		params.IsPrivate,
		now(),
	)

	var ch Channel
	if err := row.Scan(
		&ch.Id,
		&ch.PublicId,
		&ch.Name,
		&ch.Description,
		&ch.Image,
		&ch.CreatorId,
		&ch.IsPrivate,
		&ch.CreatedAt,
	); err != nil {
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO channel_members (channel_id, user_id, role) VALUES ($1, $2, $3)",
		ch.Id,
		params.CreatorId,
		RoleAdmin,
	); err != nil {
		return Channel{}, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Channel{}, fmt.Errorf("commit: %w", err)
	}

	ch.Role = RoleAdmin
	return ch, nil
}

func (p *Postgres) GetChannelById(ctx context.Context, id int64) (Channel, error) {
	row := p.conn.QueryRowContext(ctx,
		"SELECT id, public_id, name, description, image, creator_id, is_private, created_at "+
			"FROM channels WHERE id = $1 LIMIT 1",
		id,
	)

	var ch Channel
	err := row.Scan(
		&ch.Id,
		&ch.PublicId,
		&ch.Name,
		&ch.Description,
		&ch.Image,
		&ch.CreatorId,
		&ch.IsPrivate,
		&ch.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{}, ErrNotFound
	}

	return ch, err
}

func (p *Postgres) GetUserChannels(ctx context.Context, userId int64) ([]Channel, error) {
	query := `
		SELECT c.id, c.public_id, c.name, c.description, c.image, c.creator_id,
			c.is_private, c.created_at, cm.role,
			(SELECT COUNT(*) FROM channel_messages m
				LEFT JOIN channel_message_reads r
					ON m.id = r.message_id AND r.user_id = $1
				WHERE m.channel_id = c.id AND r.message_id IS NULL AND m.sender_id != $1) AS unread_count
		FROM channels c
		JOIN channel_members cm ON c.id = cm.channel_id
		WHERE cm.user_id = $1
		ORDER BY c.created_at DESC
`

	rows, err := p.conn.QueryContext(ctx, query, userId)
	if err != nil {
		return nil, fmt.Errorf("query user channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(
			&ch.Id,
			&ch.PublicId,
			&ch.Name,
			&ch.Description,
			&ch.Image,
			&ch.CreatorId,
			&ch.IsPrivate,
			&ch.CreatedAt,
			&ch.Role,
			&ch.UnreadCount,
		); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

func (p *Postgres) IsMember(ctx context.Context, channelId, userId int64) (bool, error) {
	row := p.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM channel_members WHERE channel_id = $1 AND user_id = $2)",
		channelId,
		userId,
	)

	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

func (p *Postgres) GetMemberRole(ctx context.Context, channelId, userId int64) (string, error) {
	row := p.conn.QueryRowContext(ctx,
		"SELECT role FROM channel_members WHERE channel_id = $1 AND user_id = $2 LIMIT 1",
		channelId,
		userId,
	)

	var role string
	err := row.Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}

	return role, err
}

func (p *Postgres) GetMemberIds(ctx context.Context, channelId int64) ([]int64, error) {
	rows, err := p.conn.QueryContext(ctx,
		"SELECT user_id FROM channel_members WHERE channel_id = $1",
		channelId,
	)
	if err != nil {
		return nil, fmt.Errorf("query member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (p *Postgres) AddMember(ctx context.Context, channelId, userId int64, role string) error {
	if role == "" {
		role = RoleMember
	}

	_, err := p.conn.ExecContext(ctx,
		"INSERT INTO channel_members (channel_id, user_id, role) VALUES ($1, $2, $3) "+
			"ON CONFLICT (channel_id, user_id) DO NOTHING",
		channelId,
		userId,
		role,
	)
	return err
}

func (p *Postgres) RemoveMember(ctx context.Context, channelId, userId int64) error {
	_, err := p.conn.ExecContext(ctx,
		"DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2",
		channelId,
		userId,
	)
	return err
}

func (p *Postgres) SaveChannelMessage(ctx context.Context, params SaveChannelMessageParams) (ChannelMessage, error) {
	msg := ChannelMessage{
		Id:        p.ids.Generate().Int64(),
		ChannelId: params.ChannelId,
		SenderId:  params.SenderId,
		Content:   params.Content,
		Type:      params.Type,
		CreatedAt: now(),
	}
	if msg.Type == "" {
		msg.Type = "text"
	}

	_, err := p.conn.ExecContext(ctx,
		"INSERT INTO channel_messages (id, channel_id, sender_id, content, type, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		msg.Id,
		msg.ChannelId,
		msg.SenderId,
		msg.Content,
		msg.Type,
		msg.CreatedAt,
	)
	if err != nil {
		return ChannelMessage{}, fmt.Errorf("insert channel message: %w", err)
	}

	return msg, nil
}

func (p *Postgres) GetChannelMessages(ctx context.Context, channelId int64, limit, offset int) ([]ChannelMessage, error) {
	rows, err := p.conn.QueryContext(ctx,
		"SELECT id, channel_id, sender_id, content, type, created_at FROM channel_messages "+
			"WHERE channel_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		channelId,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query channel messages: %w", err)
	}
	defer rows.Close()

	var messages []ChannelMessage
	for rows.Next() {
		var m ChannelMessage
		if err := rows.Scan(
			&m.Id,
			&m.ChannelId,
			&m.SenderId,
			&m.Content,
			&m.Type,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (p *Postgres) MarkChannelMessagesRead(ctx context.Context, channelId, readerId int64) (int64, error) {
	res, err := p.conn.ExecContext(ctx,
		"INSERT INTO channel_message_reads (message_id, user_id) "+
			"SELECT m.id, $2 FROM channel_messages m "+
			"LEFT JOIN channel_message_reads r ON m.id = r.message_id AND r.user_id = $2 "+
			"WHERE m.channel_id = $1 AND r.message_id IS NULL AND m.sender_id != $2 "+
			"ON CONFLICT (message_id, user_id) DO NOTHING",
		channelId,
		readerId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
