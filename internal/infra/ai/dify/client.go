// Package dify talks to the workflow platform's chat-messages endpoint.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bryanwahyu/judgeproxy/internal/domain/ai"
)

const (
	chatPath     = "/chat-messages"
	maxBodyBytes = 8 << 20
)

type chatRequest struct {
	Inputs       map[string]any `json:"inputs"`
	Query        string         `json:"query"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
}

// Client implements ai.Backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient; a nil httpClient means http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Send posts one blocking chat message. Single attempt, no retry.
func (c *Client) Send(ctx context.Context, msg ai.Message) (*ai.Reply, error) {
	inputs := msg.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	payload, err := json.Marshal(chatRequest{
		Inputs:       inputs,
		Query:        msg.Query,
		ResponseMode: "blocking",
		User:         msg.User,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+msg.Credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ai.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ai.TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ai.UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return parseReply(body)
}

func parseReply(body []byte) (*ai.Reply, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ai.UpstreamError{Status: http.StatusBadGateway, Body: "malformed upstream reply: " + strings.TrimSpace(string(body))}
	}
	res := gjson.ParseBytes(body)
	return &ai.Reply{
		Answer:         res.Get("answer").String(),
		ConversationID: res.Get("conversation_id").String(),
		MessageID:      res.Get("message_id").String(),
		TotalTokens:    int(res.Get("metadata.usage.total_tokens").Int()),
		Raw:            raw,
		Body:           body,
	}, nil
}
