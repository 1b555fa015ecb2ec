package analysis

import (
	"maps"
	"strings"
	"time"

	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
)

// AnonymousUser is sent upstream when the caller gave no user id.
const AnonymousUser = "anonymous"

// Upstream input names
const (
	InputRepoURL = "repo_url"
	InputRepoPDF = "repo_pdf"
)

// Request is the normalized inbound request.
type Request struct {
	JudgeID       judges.ID `json:"judge_id"`
	RepositoryURL string    `json:"repo_url,omitempty"`
	DocumentRef   string    `json:"repo_pdf,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	// Extra keeps unknown inbound attributes. Echoed in the stored record,
	// not forwarded upstream.
	Extra map[string]any `json:"extra,omitempty"`
}

// User returns the user id or the anonymous sentinel.
func (r Request) User() string {
	if u := strings.TrimSpace(r.UserID); u != "" {
		return u
	}
	return AnonymousUser
}

// Inputs builds the upstream inputs map; empty fields are left out.
func (r Request) Inputs() map[string]any {
	in := map[string]any{}
	if r.RepositoryURL != "" {
		in[InputRepoURL] = r.RepositoryURL
	}
	if r.DocumentRef != "" {
		in[InputRepoPDF] = r.DocumentRef
	}
	return in
}

// Validate checks the required-field rules for judge j.
func (r Request) Validate(j judges.Judge) error {
	repo := strings.TrimSpace(r.RepositoryURL)
	doc := strings.TrimSpace(r.DocumentRef)
	if repo == "" && doc == "" {
		return &FieldError{Field: InputRepoURL + " or " + InputRepoPDF}
	}
	if j.RequireRepository && repo == "" {
		return &FieldError{Field: InputRepoURL}
	}
	if j.RequireDocument && doc == "" {
		return &FieldError{Field: InputRepoPDF}
	}
	return nil
}

// Result is the normalized outbound response.
type Result struct {
	RequestID string         `json:"data_id"`
	JudgeID   judges.ID      `json:"source"`
	Success   bool           `json:"success"`
	Degraded  bool           `json:"degraded,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   string         `json:"details,omitempty"`
}

// Answer returns data.answer when it is a string.
func (r Result) Answer() string {
	s, _ := r.Data["answer"].(string)
	return s
}

// Record is one Result Store entry.
type Record struct {
	ID        string    `json:"id"`
	Request   Request   `json:"request"`
	State     State     `json:"state"`
	Result    Result    `json:"result"`
	CreatedAt time.Time `json:"timestamp"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Clone copies the record so callers can't mutate stored maps.
func (r Record) Clone() Record {
	out := r
	out.Result.Data = maps.Clone(r.Result.Data)
	out.Request.Extra = maps.Clone(r.Request.Extra)
	return out
}

// Summary is the redacted debug view of a Record.
type Summary struct {
	ID        string    `json:"data_id"`
	UserID    string    `json:"user_id"`
	JudgeID   judges.ID `json:"judge"`
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	HasResult bool      `json:"has_result"`
}

func (r Record) Summary() Summary {
	return Summary{
		ID:        r.ID,
		UserID:    r.Request.User(),
		JudgeID:   r.Request.JudgeID,
		State:     r.State,
		Timestamp: r.CreatedAt,
		HasResult: len(r.Result.Data) > 0,
	}
}

// Comment is one row of the external judge_comments table.
type Comment struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	JudgeID        string    `json:"judge" db:"judge"`
	RepoURL        string    `json:"github_repo_url" db:"github_repo_url"`
	Gmail          string    `json:"gmail" db:"gmail"`
	Result         string    `json:"analysis_result" db:"analysis_result"`
	Metadata       string    `json:"analysis_metadata" db:"analysis_metadata"` // raw JSON
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Normalize fills the NOT NULL columns the table expects.
func (c *Comment) Normalize(now time.Time) {
	c.RepoURL = orDash(c.RepoURL)
	c.Gmail = orDash(c.Gmail)
	if strings.TrimSpace(c.Metadata) == "" {
		c.Metadata = "{}"
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
}

// orDash returns "-" when the input is empty/whitespace
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
