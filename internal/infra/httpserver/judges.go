package httpserver

import (
	"net/http"
	"time"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/middleware"
)

var inboundFields = map[string]bool{"repo_url": true, "repo_pdf": true, "user_id": true}

type submitEnvelope struct {
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data"`
	DataID    string         `json:"data_id"`
	Source    judges.ID      `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
}

// POST /api/{judge}
// Body: {"repo_url": "...", "repo_pdf": "...", "user_id": "..."}
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	a, err := r.adapter(req)
	if err != nil {
		return err
	}
	body, err := decodeBody(w, req)
	if err != nil {
		return err
	}

	in := analysis.Request{}
	if in.RepositoryURL, err = stringField(body, "repo_url"); err != nil {
		return err
	}
	if in.DocumentRef, err = stringField(body, "repo_pdf"); err != nil {
		return err
	}
	if in.UserID, err = stringField(body, "user_id"); err != nil {
		return err
	}
	for _, ref := range []string{in.RepositoryURL, in.DocumentRef} {
		if ref == "" {
			continue
		}
		if err := middleware.ValidateURL(ref); err != nil {
			return invalid("Invalid URL", err)
		}
	}
	if err := middleware.ValidateUserID(in.UserID); err != nil {
		return invalid("Invalid user_id", err)
	}
	for k, v := range body {
		if inboundFields[k] {
			continue
		}
		if in.Extra == nil {
			in.Extra = map[string]any{}
		}
		in.Extra[k] = v
	}

	rec, err := a.Submit(req.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, submitEnvelope{
		Success:   true,
		Data:      rec.Result.Data,
		DataID:    rec.ID,
		Source:    rec.Result.JudgeID,
		Timestamp: rec.CreatedAt,
	})
	return nil
}

type queryEnvelope struct {
	Success   bool             `json:"success"`
	Data      map[string]any   `json:"data"`
	DataID    string           `json:"data_id"`
	Source    judges.ID        `json:"source"`
	State     analysis.State   `json:"state"`
	Request   analysis.Request `json:"request"`
	Error     string           `json:"error,omitempty"`
	Details   string           `json:"details,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

// queryView reports success false only for failed records; a record still
// in flight is a successful lookup.
func queryView(rec analysis.Record) queryEnvelope {
	v := queryEnvelope{
		Success:   rec.State != analysis.StateFailed,
		Data:      rec.Result.Data,
		DataID:    rec.ID,
		Source:    rec.Request.JudgeID,
		State:     rec.State,
		Request:   rec.Request,
		Error:     rec.Result.Error,
		Details:   rec.Result.Details,
		Timestamp: rec.CreatedAt,
	}
	if !rec.UpdatedAt.IsZero() {
		at := rec.UpdatedAt
		v.UpdatedAt = &at
	}
	return v
}

// GET /api/{judge}?data_id=<id>
func (r *Router) handleQuery(w http.ResponseWriter, req *http.Request) error {
	a, err := r.adapter(req)
	if err != nil {
		return err
	}
	id := req.URL.Query().Get("data_id")
	if id == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"message":           a.Judge.DisplayName + " API endpoint is ready",
			"available_methods": []string{http.MethodPost, http.MethodGet, http.MethodPut},
			"note":              "Use POST to send an analysis request, GET with data_id to query stored data, PUT with request_id to update it",
			"endpoint":          r.PublicURL + "/api/" + string(a.Judge.ID),
		})
		return nil
	}

	rec, err := a.Query(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, queryView(rec))
	return nil
}

// PUT /api/{judge}
// Body: {"request_id": "<id>", ...fields to merge}
func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request) error {
	a, err := r.adapter(req)
	if err != nil {
		return err
	}
	body, err := decodeBody(w, req)
	if err != nil {
		return err
	}
	id, err := stringField(body, "request_id")
	if err != nil {
		return err
	}
	if id == "" {
		return invalid("request_id is required for updates", nil)
	}

	rec, err := a.Update(req.Context(), id, body)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, queryView(rec))
	return nil
}

// GET /api/{judge}/debug
func (r *Router) handleDebug(w http.ResponseWriter, req *http.Request) error {
	a, err := r.adapter(req)
	if err != nil {
		return err
	}
	list, err := a.ListDebug(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(list),
		"data":    list,
	})
	return nil
}
