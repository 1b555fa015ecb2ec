package mysql

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS judge_comments (
  id                VARCHAR(64)  NOT NULL PRIMARY KEY,
  conversation_id   VARCHAR(128) NOT NULL DEFAULT '',
  judge             VARCHAR(64)  NOT NULL,
  github_repo_url   VARCHAR(512) NOT NULL,
  gmail             VARCHAR(255) NOT NULL,
  analysis_result   MEDIUMTEXT   NOT NULL,
  analysis_metadata JSON         NOT NULL,
  created_at        DATETIME(6)  NOT NULL,
  KEY idx_judge_comments_repo (github_repo_url(191), created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// Migrate creates judge_comments when missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
