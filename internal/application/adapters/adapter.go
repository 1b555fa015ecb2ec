// Package adapters exposes one route adapter per judge: submit, query,
// debug listing and update over that judge's result store.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/judgeproxy/internal/application"
	"github.com/bryanwahyu/judgeproxy/internal/domain/ai"
	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
)

const defaultSideEffectTimeout = 10 * time.Second

// Dispatcher is the part of dispatch.Service the adapter needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, judgeID judges.ID, query string, inputs map[string]any, user string) (analysis.Result, error)
}

// Adapter serves a single judge. Comments and Archive are optional; when
// set, writes to them happen in the background and never affect the caller.
type Adapter struct {
	Judge      judges.Judge
	Dispatcher Dispatcher
	Store      analysis.ResultStore
	Comments   analysis.CommentRepository
	Archive    analysis.Archive
	// Instruction renders the upstream query for a request.
	Instruction func(judges.Judge, analysis.Request) string
	Clock       application.Clock
	Log         logging.Logger
	// SideEffectTimeout bounds each background write. Zero means 10s.
	SideEffectTimeout time.Duration

	wg sync.WaitGroup
}

// Submit validates, dispatches and stores. MissingField returns before
// anything is stored or sent. A failed dispatch is stored in state failed
// and returned together with the error.
func (a *Adapter) Submit(ctx context.Context, req analysis.Request) (analysis.Record, error) {
	req.JudgeID = a.Judge.ID
	if err := req.Validate(a.Judge); err != nil {
		return analysis.Record{}, err
	}

	now := a.Clock.Now()
	rec := analysis.Record{
		ID:        a.requestID(req, now),
		Request:   req,
		State:     analysis.StateReceived,
		CreatedAt: now,
	}
	if err := a.advance(&rec, analysis.StateDispatched); err != nil {
		return analysis.Record{}, err
	}
	if err := a.Store.Put(ctx, rec); err != nil {
		return analysis.Record{}, fmt.Errorf("store request: %w", err)
	}

	// once sent, the upstream call runs to completion even if the caller goes away
	res, err := a.Dispatcher.Dispatch(context.WithoutCancel(ctx), a.Judge.ID, a.Instruction(a.Judge, req), req.Inputs(), req.User())
	if err != nil {
		rec.Result = failure(a.Judge.ID, rec.ID, err)
		if terr := a.advance(&rec, analysis.StateFailed); terr != nil {
			return analysis.Record{}, terr
		}
		if perr := a.Store.Put(ctx, rec); perr != nil {
			a.Log.Error(ctx, "store failed result", logging.String("data_id", rec.ID), logging.Err(perr))
		}
		return rec, err
	}

	res.RequestID = rec.ID
	res.JudgeID = a.Judge.ID
	rec.Result = res
	next := analysis.StateCompleted
	if res.Degraded {
		next = analysis.StateDegraded
	}
	if err := a.advance(&rec, next); err != nil {
		return analysis.Record{}, err
	}
	if err := a.Store.Put(ctx, rec); err != nil {
		return analysis.Record{}, fmt.Errorf("store result: %w", err)
	}

	a.afterCompletion(rec)
	return rec.Clone(), nil
}

// Query is a plain lookup; ErrNotFound for unknown ids.
func (a *Adapter) Query(ctx context.Context, id string) (analysis.Record, error) {
	return a.Store.Get(ctx, id)
}

// ListDebug returns redacted summaries of every stored record.
func (a *Adapter) ListDebug(ctx context.Context) ([]analysis.Summary, error) {
	recs, err := a.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]analysis.Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Summary())
	}
	return out, nil
}

// Update shallow-merges fields into the stored result data. The
// "request_id" key, if present in fields, is the lookup key and is not merged.
func (a *Adapter) Update(ctx context.Context, id string, fields map[string]any) (analysis.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return analysis.Record{}, &analysis.FieldError{Field: "request_id"}
	}
	patch := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "request_id" {
			continue
		}
		patch[k] = v
	}
	return a.Store.Merge(ctx, id, patch, a.Clock.Now())
}

// Wait blocks until background writes started so far have finished.
func (a *Adapter) Wait() { a.wg.Wait() }

func (a *Adapter) advance(rec *analysis.Record, next analysis.State) error {
	s, err := rec.State.Transition(next)
	if err != nil {
		return err
	}
	rec.State = s
	return nil
}

// requestID prefers the caller's user id so a user's repeated requests
// overwrite their own entry.
func (a *Adapter) requestID(req analysis.Request, now time.Time) string {
	if u := strings.TrimSpace(req.UserID); u != "" {
		return u
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", a.Judge.ID, now.UnixMilli(), suffix)
}

func failure(judge judges.ID, id string, err error) analysis.Result {
	res := analysis.Result{RequestID: id, JudgeID: judge, Success: false}
	var ue *ai.UpstreamError
	var te *ai.TransportError
	switch {
	case errors.As(err, &ue):
		res.Error = fmt.Sprintf("upstream returned status %d", ue.Status)
		res.Details = ue.Body
	case errors.As(err, &te):
		res.Error = "analysis service unreachable"
		res.Details = te.Err.Error()
	default:
		res.Error = "analysis failed"
		res.Details = err.Error()
	}
	return res
}

// afterCompletion keeps real answers only; a degraded placeholder is
// neither saved as a comment nor archived.
func (a *Adapter) afterCompletion(rec analysis.Record) {
	if rec.Result.Degraded {
		return
	}
	if a.Judge.Persist && a.Comments != nil {
		a.background("persist comment", rec.ID, func(ctx context.Context) error {
			return a.Comments.Save(ctx, commentFrom(rec, a.Clock.Now()))
		})
	}
	if a.Archive != nil {
		a.background("archive answer", rec.ID, func(ctx context.Context) error {
			body, err := json.Marshal(rec.Result.Data)
			if err != nil {
				return err
			}
			_, err = a.Archive.Put(ctx, fmt.Sprintf("%s/%s.json", a.Judge.ID, rec.ID), body)
			return err
		})
	}
}

// background runs fn with its own timeout; failures are only logged.
func (a *Adapter) background(what, id string, fn func(ctx context.Context) error) {
	timeout := a.SideEffectTimeout
	if timeout <= 0 {
		timeout = defaultSideEffectTimeout
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.Log.Warn(ctx, what+" failed",
				logging.String("judge", string(a.Judge.ID)), logging.String("data_id", id), logging.Err(err))
		}
	}()
}

func commentFrom(rec analysis.Record, at time.Time) *analysis.Comment {
	c := &analysis.Comment{
		ID:        uuid.NewString(),
		JudgeID:   string(rec.Request.JudgeID),
		RepoURL:   rec.Request.RepositoryURL,
		Gmail:     rec.Request.User(),
		Result:    rec.Result.Answer(),
		Metadata:  "{}",
		CreatedAt: at,
	}
	if conv, ok := rec.Result.Data["conversation_id"].(string); ok {
		c.ConversationID = conv
	}
	if md, ok := rec.Result.Data["metadata"]; ok {
		if b, err := json.Marshal(md); err == nil {
			c.Metadata = string(b)
		}
	}
	return c
}
