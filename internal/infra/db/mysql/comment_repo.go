package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
)

type CommentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Save inserts a comment row
func (r *CommentRepository) Save(ctx context.Context, c *analysis.Comment) error {
	const q = `
INSERT INTO judge_comments
  (id, conversation_id, judge, github_repo_url, gmail, analysis_result, analysis_metadata, created_at)
VALUES (:id, :conversation_id, :judge, :github_repo_url, :gmail, :analysis_result, :analysis_metadata, :created_at)
ON DUPLICATE KEY UPDATE
  analysis_result=VALUES(analysis_result), analysis_metadata=VALUES(analysis_metadata);
`
	row := *c
	row.Normalize(time.Now().UTC())
	_, err := r.db.NamedExecContext(ctx, q, row)
	return err
}

// LatestByRepo returns the newest row for repoURL, or nil.
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
