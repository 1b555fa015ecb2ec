package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/middleware"
)

// POST /api/dify-proxy
// Body: {"judgeType": "paul", "message": "...", "inputs": {...}, "user": "..."}
func (r *Router) handleProxy(w http.ResponseWriter, req *http.Request) error {
	body, err := decodeBody(w, req)
	if err != nil {
		return err
	}
	judgeType, err := stringField(body, "judgeType")
	if err != nil {
		return err
	}
	message, err := stringField(body, "message")
	if err != nil {
		return err
	}
	if judgeType == "" || message == "" {
		return invalid("judgeType and message are required", nil)
	}
	user, err := stringField(body, "user")
	if err != nil {
		return err
	}
	inputs := map[string]any{}
	if raw, ok := body["inputs"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return invalid("inputs must be an object", nil)
		}
		inputs = m
	}

	id := judges.ID(judgeType)
	// same as the judge routes: a dispatched call is not cut short by the client
	res, err := r.Dispatcher.Dispatch(context.WithoutCancel(req.Context()), id, message, inputs, user)
	if err != nil {
		return err
	}
	judge, _ := r.Judges.Resolve(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      res.Data,
		"judgeType": judge.ID,
		"judgeName": judge.DisplayName,
	})
	return nil
}

// GET /api/dify-proxy
func (r *Router) handleProxyInfo(w http.ResponseWriter, _ *http.Request) error {
	list := r.Judges.List()
	ids := make([]string, 0, len(list))
	for _, j := range list {
		ids = append(ids, string(j.ID))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Dify proxy endpoint is ready",
		"available_judges": ids,
		"usage":            "POST with { judgeType, message, inputs }",
	})
	return nil
}

// POST /api/webhook/dify
func (r *Router) handleWebhook(w http.ResponseWriter, req *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			return err
		}
		return invalid("Failed to read body", err)
	}
	ev, err := r.Webhooks.Receive(req.Context(), body, req.Header.Get("X-Dify-Signature"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Webhook received successfully",
		"conversation_id": ev.ConversationID,
	})
	return nil
}

// GET /api/webhook/dify?conversation_id=<id>
func (r *Router) handleWebhookGet(w http.ResponseWriter, req *http.Request) error {
	id := req.URL.Query().Get("conversation_id")
	if id == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"message":           "Webhook endpoint is ready",
			"available_methods": []string{http.MethodPost, http.MethodGet},
			"note":              "Use POST for webhook events, GET with conversation_id to query results",
			"callback_url":      r.WebhookURL,
		})
		return nil
	}
	ev, ok, err := r.Webhooks.Get(req.Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Analysis result not found"})
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": ev})
	return nil
}

// GET /api/webhook/dify/debug
func (r *Router) handleWebhookDebug(w http.ResponseWriter, req *http.Request) error {
	list, err := r.Webhooks.Summaries(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(list),
		"results": list,
	})
	return nil
}

// GET /api/comments?repo_url=<url>
func (r *Router) handleLatestComment(w http.ResponseWriter, req *http.Request) error {
	repo := strings.TrimSpace(req.URL.Query().Get("repo_url"))
	if repo == "" {
		return &analysis.FieldError{Field: "repo_url"}
	}
	if err := middleware.ValidateURL(repo); err != nil {
		return invalid("Invalid URL", err)
	}
	if r.Comments == nil {
		return analysis.ErrNotFound
	}
	c, err := r.Comments.LatestByRepo(req.Context(), repo)
	if err != nil {
		return err
	}
	if c == nil {
		return analysis.ErrNotFound
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": c})
	return nil
}
