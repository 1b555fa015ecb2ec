// Package sqlite backs the comment table with a local file, or ":memory:"
// for tests and single-node setups.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
)

// Connect opens path. One connection only: sqlite serializes writers and
// ":memory:" is per connection.
func Connect(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS judge_comments (
  id                TEXT PRIMARY KEY,
  conversation_id   TEXT NOT NULL DEFAULT '',
  judge             TEXT NOT NULL,
  github_repo_url   TEXT NOT NULL,
  gmail             TEXT NOT NULL,
  analysis_result   TEXT NOT NULL,
  analysis_metadata TEXT NOT NULL DEFAULT '{}',
  created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_judge_comments_repo ON judge_comments (github_repo_url, created_at);
`

func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

type CommentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Save(ctx context.Context, c *analysis.Comment) error {
	const q = `
INSERT INTO judge_comments
  (id, conversation_id, judge, github_repo_url, gmail, analysis_result, analysis_metadata, created_at)
VALUES (:id, :conversation_id, :judge, :github_repo_url, :gmail, :analysis_result, :analysis_metadata, :created_at)
ON CONFLICT (id) DO UPDATE SET
  analysis_result=excluded.analysis_result,
  analysis_metadata=excluded.analysis_metadata;
`
	row := *c
	row.Normalize(time.Now().UTC())
	_, err := r.db.NamedExecContext(ctx, q, row)
	return err
}

func (r *CommentRepository) LatestByRepo(ctx context.Context, repoURL string) (*analysis.Comment, error) {
	const q = `
SELECT id, conversation_id, judge, github_repo_url, gmail, analysis_result, analysis_metadata, created_at
FROM judge_comments
WHERE github_repo_url=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	var c analysis.Comment
	if err := r.db.GetContext(ctx, &c, q, repoURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
