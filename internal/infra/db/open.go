// Package db picks the comment-table driver from configuration.
package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/infra/db/mysql"
	"github.com/bryanwahyu/judgeproxy/internal/infra/db/postgres"
	"github.com/bryanwahyu/judgeproxy/internal/infra/db/sqlite"
)

// Store is an open connection plus the repository bound to it.
type Store struct {
	DB       *sqlx.DB
	Comments analysis.CommentRepository
}

func (s *Store) Close() error { return s.DB.Close() }

// Open connects with driver ("mysql", "postgres" or "sqlite") and, when
// migrate is set, creates the table.
func Open(ctx context.Context, driver, dsn string, migrate bool) (*Store, error) {
	var (
		conn  *sqlx.DB
		err   error
		mig   func(context.Context, *sqlx.DB) error
		build func(*sqlx.DB) analysis.CommentRepository
	)
	switch driver {
	case "mysql":
		conn, err = mysql.Connect(ctx, dsn)
		mig = mysql.Migrate
		build = func(d *sqlx.DB) analysis.CommentRepository { return mysql.NewCommentRepository(d) }
	case "postgres":
		conn, err = postgres.Connect(ctx, dsn)
		mig = postgres.Migrate
		build = func(d *sqlx.DB) analysis.CommentRepository { return postgres.NewCommentRepository(d) }
	case "sqlite":
		conn, err = sqlite.Connect(ctx, dsn)
		mig = sqlite.Migrate
		build = func(d *sqlx.DB) analysis.CommentRepository { return sqlite.NewCommentRepository(d) }
	default:
		return nil, fmt.Errorf("unsupported persistence driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if migrate {
		if err := mig(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrate %s: %w", driver, err)
		}
	}
	return &Store{DB: conn, Comments: build(conn)}, nil
}
