package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/teris-io/shortid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres implements UserStore, MessageStore and ChannelStore over a
// single connection pool. Message ids are snowflakes so that the
// (created_at, id) ordering key survives clock ties.
type Postgres struct {
	conn *sql.DB
	ids  *snowflake.Node
	sid  *shortid.Shortid
}

func NewPostgres(dsn string, nodeId int64) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(nodeId)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}

	sid, err := shortid.New(1, shortid.DefaultABC, uint64(nodeId))
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	return &Postgres{conn: db, ids: node, sid: sid}, nil
}

// Migrate applies any pending schema migrations.
func (p *Postgres) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	driver, err := postgres.WithInstance(p.conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (p *Postgres) Ping() error {
	return p.conn.Ping()
}

func (p *Postgres) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
