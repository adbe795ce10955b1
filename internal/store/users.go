package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func (p *Postgres) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := p.conn.QueryRowContext(ctx,
		"INSERT INTO users (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		now(),
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return User{}, ErrDuplicate
	}

	return u, err
}

func (p *Postgres) GetUserById(ctx context.Context, id int64) (User, error) {
	row := p.conn.QueryRowContext(ctx,
		"SELECT id, username, email, online, COALESCE(last_active, 'epoch'), created_at "+
			"FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Online,
		&u.LastActive,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}

	return u, err
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := p.conn.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at "+
			"FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}

	return u, err
}

func (p *Postgres) UpdateOnlineStatus(ctx context.Context, userId int64, online bool) error {
	res, err := p.conn.ExecContext(ctx,
		"UPDATE users SET online = $2, last_active = $3 WHERE id = $1",
		userId,
		online,
		now(),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
