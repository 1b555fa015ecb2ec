// Package dispatch resolves a judge, forwards one blocking request to its
// upstream backend and normalizes the answer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/judgeproxy/internal/application"
	"github.com/bryanwahyu/judgeproxy/internal/domain/ai"
	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
)

// Outcome labels used for metrics and logs.
const (
	OutcomeCompleted      = "completed"
	OutcomeDegraded       = "degraded"
	OutcomeUpstreamError  = "upstream_error"
	OutcomeTransportError = "transport_error"
	OutcomeUnknownJudge   = "unknown_judge"
)

// Observer receives one call per dispatch. Optional.
type Observer interface {
	ObserveDispatch(judge, outcome string, elapsed time.Duration, tokens int)
}

// Service is the proxy dispatcher. Safe for concurrent use; it holds no
// mutable state.
type Service struct {
	Judges   judges.Resolver
	Backends map[judges.Kind]ai.Backend
	// Markers are upstream error substrings meaning "model credentials missing".
	Markers []string
	Persona func(judges.Judge) string
	Clock   application.Clock
	Log     logging.Logger
	Metrics Observer
}

// Dispatch sends query+inputs to the judge's upstream once. UnknownJudge,
// UpstreamError and TransportError come back as errors; a configuration
// error upstream comes back as a successful, degraded Result.
func (s *Service) Dispatch(ctx context.Context, judgeID judges.ID, query string, inputs map[string]any, user string) (analysis.Result, error) {
	judge, ok := s.Judges.Resolve(judgeID)
	if !ok {
		s.observe(string(judgeID), OutcomeUnknownJudge, 0, 0)
		return analysis.Result{}, fmt.Errorf("%w: %s", analysis.ErrUnknownJudge, judgeID)
	}
	backend, ok := s.Backends[judge.Kind]
	if !ok {
		return analysis.Result{}, fmt.Errorf("no backend registered for kind %q", judge.Kind)
	}
	if user == "" {
		user = analysis.AnonymousUser
	}

	msg := ai.Message{
		Credential: judge.Credential,
		Model:      judge.Model,
		Query:      query,
		Inputs:     inputs,
		User:       user,
	}
	if s.Persona != nil {
		msg.Persona = s.Persona(judge)
	}

	start := s.Clock.Now()
	reply, err := backend.Send(ctx, msg)
	elapsed := s.Clock.Now().Sub(start)

	if err != nil {
		var cfgErr *ai.ConfigurationError
		if s.asConfigurationError(judge, err, &cfgErr) {
			s.observe(string(judge.ID), OutcomeDegraded, elapsed, 0)
			s.Log.Warn(ctx, "judge misconfigured upstream, answering degraded",
				logging.String("judge", string(judge.ID)), logging.String("detail", cfgErr.Detail))
			return degraded(judge, cfgErr), nil
		}

		outcome := OutcomeUpstreamError
		var te *ai.TransportError
		if errors.As(err, &te) {
			outcome = OutcomeTransportError
		}
		s.observe(string(judge.ID), outcome, elapsed, 0)
		s.Log.Error(ctx, "dispatch failed",
			logging.String("judge", string(judge.ID)), logging.String("outcome", outcome),
			logging.Duration("elapsed", elapsed.Milliseconds()), logging.Err(err))
		return analysis.Result{}, err
	}

	s.observe(string(judge.ID), OutcomeCompleted, elapsed, reply.TotalTokens)
	s.Log.Info(ctx, "dispatch completed",
		logging.String("judge", string(judge.ID)),
		logging.String("conversation_id", reply.ConversationID),
		logging.Duration("elapsed", elapsed.Milliseconds()))

	return analysis.Result{
		JudgeID: judge.ID,
		Success: true,
		Data:    replyData(reply),
	}, nil
}

// asConfigurationError is the one place that decides whether an upstream
// failure is the missing-credentials condition.
func (s *Service) asConfigurationError(judge judges.Judge, err error, target **ai.ConfigurationError) bool {
	if errors.As(err, target) {
		return true
	}
	var ue *ai.UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	body := strings.ToLower(ue.Body)
	for _, m := range s.Markers {
		if m != "" && strings.Contains(body, strings.ToLower(m)) {
			*target = &ai.ConfigurationError{Judge: string(judge.ID), Detail: ue.Body}
			return true
		}
	}
	return false
}

func degraded(judge judges.Judge, cfgErr *ai.ConfigurationError) analysis.Result {
	answer := fmt.Sprintf(
		"%s could not review this submission yet: the analysis platform has no model provider credentials configured for this judge. "+
			"Ask an administrator to configure the model provider, then try again.",
		judge.DisplayName)
	return analysis.Result{
		JudgeID:  judge.ID,
		Success:  true,
		Degraded: true,
		Data: map[string]any{
			"answer":   answer,
			"degraded": true,
			"reason":   cfgErr.Detail,
		},
	}
}

func replyData(r *ai.Reply) map[string]any {
	if r.Raw != nil {
		return r.Raw
	}
	return map[string]any{
		"answer":          r.Answer,
		"conversation_id": r.ConversationID,
		"message_id":      r.MessageID,
	}
}

func (s *Service) observe(judge, outcome string, elapsed time.Duration, tokens int) {
	if s.Metrics != nil {
		s.Metrics.ObserveDispatch(judge, outcome, elapsed, tokens)
	}
}
