// Package webhooks takes callbacks from the workflow platform and keeps
// completed analyses for polling.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/judgeproxy/internal/application"
	domain "github.com/bryanwahyu/judgeproxy/internal/domain/webhooks"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
)

type Service struct {
	Store domain.EventStore
	// Secret enables X-Dify-Signature checking when non-empty.
	Secret string
	Clock  application.Clock
	Log    logging.Logger
}

// Receive verifies and decodes one callback. Only analysis_completed events
// are stored; the others are logged.
func (s *Service) Receive(ctx context.Context, body []byte, signature string) (domain.Event, error) {
	if s.Secret != "" && !Verify(s.Secret, body, signature) {
		return domain.Event{}, domain.ErrInvalidSignature
	}

	var ev domain.Event
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&ev); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if ev.ConversationID == "" {
		return domain.Event{}, fmt.Errorf("%w: conversation_id is required", domain.ErrMalformedEvent)
	}
	ev.Raw = json.RawMessage(body)
	ev.ReceivedAt = s.Clock.Now()

	fields := []logging.Field{
		logging.String("event", string(ev.Event)),
		logging.String("conversation_id", ev.ConversationID),
		logging.String("message_id", ev.MessageID),
	}
	switch ev.Event {
	case domain.EventStarted, domain.EventProgress:
		s.Log.Info(ctx, "webhook received", fields...)
	case domain.EventCompleted:
		if err := s.Store.Put(ctx, ev); err != nil {
			return domain.Event{}, fmt.Errorf("store event: %w", err)
		}
		s.Log.Info(ctx, "analysis completed", fields...)
	case domain.EventError:
		if ev.Error != nil {
			fields = append(fields, logging.String("code", ev.Error.Code), logging.String("message", ev.Error.Message))
		}
		s.Log.Error(ctx, "analysis error reported", fields...)
	default:
		s.Log.Warn(ctx, "unknown webhook event", fields...)
	}
	return ev, nil
}

// Get returns the stored completed event for a conversation.
func (s *Service) Get(ctx context.Context, conversationID string) (domain.Event, bool, error) {
	return s.Store.Get(ctx, conversationID)
}

func (s *Service) Summaries(ctx context.Context) ([]domain.Summary, error) {
	events, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Summary, 0, len(events))
	for _, e := range events {
		out = append(out, e.Summary())
	}
	return out, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify accepts a bare hex digest or one prefixed with "sha256=".
func Verify(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}
