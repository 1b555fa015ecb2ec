package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/judgeproxy/internal/domain/ai"
)

const (
	maxTokens    = 2048
	defaultModel = "gpt-4o-mini"
)

// Client implements ai.Backend for judges of kind "openai". Each judge
// carries its own key, so the SDK client is built per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

func (c *Client) Send(ctx context.Context, msg ai.Message) (*ai.Reply, error) {
	cfg := openai.DefaultConfig(msg.Credential)
	if c.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	cli := openai.NewClientWithConfig(cfg)

	model := msg.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		User:  msg.User,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: msg.Persona},
			{Role: openai.ChatMessageRoleUser, Content: userContent(msg.Query, msg.Inputs)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ai.UpstreamError{Status: http.StatusBadGateway, Body: "empty completion"}
	}

	answer := resp.Choices[0].Message.Content
	raw := map[string]any{
		"answer":          answer,
		"conversation_id": resp.ID,
		"message_id":      resp.ID,
		"model":           resp.Model,
		"metadata": map[string]any{
			"usage": map[string]any{
				"total_tokens":      resp.Usage.TotalTokens,
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
			},
		},
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return &ai.Reply{
		Answer:         answer,
		ConversationID: resp.ID,
		MessageID:      resp.ID,
		TotalTokens:    resp.Usage.TotalTokens,
		Raw:            raw,
		Body:           body,
	}, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if apiErr.Code != nil {
			body = fmt.Sprintf("%v: %s", apiErr.Code, apiErr.Message)
		}
		return &ai.UpstreamError{Status: apiErr.HTTPStatusCode, Body: body}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := reqErr.HTTPStatus
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &ai.UpstreamError{Status: reqErr.HTTPStatusCode, Body: body}
	}
	return &ai.TransportError{Err: err}
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func userContent(query string, inputs map[string]any) string {
	if len(inputs) == 0 {
		return query
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\nInputs:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s: %v", k, inputs[k])
	}
	return b.String()
}
