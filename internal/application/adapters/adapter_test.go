package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/judgeproxy/internal/application"
	"github.com/bryanwahyu/judgeproxy/internal/application/dispatch"
	appjudges "github.com/bryanwahyu/judgeproxy/internal/application/judges"
	"github.com/bryanwahyu/judgeproxy/internal/domain/ai"
	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/infra/ai/dify"
	"github.com/bryanwahyu/judgeproxy/internal/infra/ai/prompt"
	"github.com/bryanwahyu/judgeproxy/internal/infra/store/memory"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
)

var business = judges.Judge{
	ID:                "business",
	DisplayName:       "Business Analysis",
	Kind:              judges.KindDify,
	Credential:        "app-biz",
	RequireRepository: true,
	Persist:           true,
}

type fakeComments struct {
	mu    sync.Mutex
	saved []*analysis.Comment
	err   error
}

func (f *fakeComments) Save(_ context.Context, c *analysis.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, c)
	return nil
}

func (f *fakeComments) LatestByRepo(context.Context, string) (*analysis.Comment, error) {
	return nil, nil
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeArchive) Put(_ context.Context, key string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "s3://bucket/" + key, nil
}

type fixture struct {
	adapter  *Adapter
	store    *memory.ResultStore
	comments *fakeComments
	archive  *fakeArchive
	hits     *atomic.Int32
}

func newFixture(t *testing.T, judge judges.Judge, upstream http.HandlerFunc) *fixture {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	reg, err := appjudges.NewRegistry([]judges.Judge{judge})
	require.NoError(t, err)

	f := &fixture{
		store:    memory.NewResultStore(),
		comments: &fakeComments{},
		archive:  &fakeArchive{},
		hits:     &hits,
	}
	f.adapter = &Adapter{
		Judge: judge,
		Dispatcher: &dispatch.Service{
			Judges:   reg,
			Backends: map[judges.Kind]ai.Backend{judges.KindDify: dify.NewClient(srv.URL, srv.Client())},
			Markers:  []string{"provider_not_initialize"},
			Clock:    application.SystemClock{},
			Log:      logging.Nop(),
		},
		Store:       f.store,
		Comments:    f.comments,
		Archive:     f.archive,
		Instruction: prompt.Query,
		Clock:       application.SystemClock{},
		Log:         logging.Nop(),
	}
	return f
}

func answering(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestSubmit_BusinessScenario(t *testing.T) {
	f := newFixture(t, business, answering(`{"answer":"Strong market fit","conversation_id":"c1","message_id":"m1","metadata":{"usage":{"total_tokens":12}}}`))
	ctx := context.Background()

	rec, err := f.adapter.Submit(ctx, analysis.Request{
		RepositoryURL: "https://github.com/acme/widget",
		UserID:        "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.ID)
	assert.Equal(t, "u1", rec.Result.RequestID)
	assert.Equal(t, judges.ID("business"), rec.Result.JudgeID)
	assert.True(t, rec.Result.Success)
	assert.Equal(t, "Strong market fit", rec.Result.Answer())
	assert.Equal(t, analysis.StateCompleted, rec.State)

	got, err := f.adapter.Query(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, rec.Result, got.Result)
	assert.Equal(t, judges.ID("business"), got.Result.JudgeID)

	f.adapter.Wait()
	require.Len(t, f.comments.saved, 1)
	c := f.comments.saved[0]
	assert.Equal(t, "c1", c.ConversationID)
	assert.Equal(t, "https://github.com/acme/widget", c.RepoURL)
	assert.Equal(t, "u1", c.Gmail)
	assert.Equal(t, "Strong market fit", c.Result)
	assert.JSONEq(t, `{"usage":{"total_tokens":12}}`, c.Metadata)
	assert.Equal(t, []string{"business/u1.json"}, f.archive.keys)
}

func TestSubmit_MissingFieldsNeverStoresOrDispatches(t *testing.T) {
	f := newFixture(t, business, answering(`{"answer":"x"}`))

	_, err := f.adapter.Submit(context.Background(), analysis.Request{UserID: "u1"})
	assert.ErrorIs(t, err, analysis.ErrMissingField)
	assert.Equal(t, 0, f.store.Len())
	assert.EqualValues(t, 0, f.hits.Load())

	_, err = f.adapter.Submit(context.Background(), analysis.Request{DocumentRef: "https://x/doc.pdf"})
	var fe *analysis.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "repo_url", fe.Field)
	assert.Equal(t, 0, f.store.Len())
}

func TestSubmit_AnonymousRequestsGetDistinctIDs(t *testing.T) {
	f := newFixture(t, business, answering(`{"answer":"ok","conversation_id":"c","message_id":"m"}`))
	f.adapter.Clock = application.ClockFunc(func() time.Time { return time.UnixMilli(1_700_000_000_000) })
	ctx := context.Background()
	req := analysis.Request{RepositoryURL: "https://github.com/acme/widget"}

	a, err := f.adapter.Submit(ctx, req)
	require.NoError(t, err)
	b, err := f.adapter.Submit(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Regexp(t, `^business_1700000000000_[0-9a-f]{9}$`, a.ID)

	for _, id := range []string{a.ID, b.ID} {
		got, err := f.adapter.Query(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, analysis.AnonymousUser, got.Request.User())
	}
}

func TestSubmit_DegradedIsSuccessButNotKept(t *testing.T) {
	f := newFixture(t, business, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"provider_not_initialize","message":"no provider"}`))
	})

	rec, err := f.adapter.Submit(context.Background(), analysis.Request{RepositoryURL: "https://github.com/a/b", UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, rec.Result.Success)
	assert.Equal(t, analysis.StateDegraded, rec.State)
	assert.NotEmpty(t, rec.Result.Answer())

	f.adapter.Wait()
	assert.Empty(t, f.comments.saved)
	assert.Empty(t, f.archive.keys)
}

func TestSubmit_UpstreamFailureIsStoredAsFailed(t *testing.T) {
	f := newFixture(t, business, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	})
	ctx := context.Background()

	rec, err := f.adapter.Submit(ctx, analysis.Request{RepositoryURL: "https://github.com/a/b", UserID: "u3"})
	var ue *ai.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, analysis.StateFailed, rec.State)
	assert.False(t, rec.Result.Success)
	assert.Equal(t, "maintenance", rec.Result.Details)
	assert.EqualValues(t, 1, f.hits.Load())

	got, err := f.adapter.Query(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, analysis.StateFailed, got.State)
	f.adapter.Wait()
	assert.Empty(t, f.archive.keys)
}

func TestSubmit_PersistFailureDoesNotAffectCaller(t *testing.T) {
	f := newFixture(t, business, answering(`{"answer":"ok"}`))
	f.comments.err = errors.New("table missing")

	rec, err := f.adapter.Submit(context.Background(), analysis.Request{RepositoryURL: "https://github.com/a/b"})
	require.NoError(t, err)
	assert.True(t, rec.Result.Success)
	f.adapter.Wait()
}

func TestSubmit_NonPersistingJudgeSkipsComments(t *testing.T) {
	j := business
	j.Persist = false
	f := newFixture(t, j, answering(`{"answer":"ok"}`))

	_, err := f.adapter.Submit(context.Background(), analysis.Request{RepositoryURL: "https://github.com/a/b"})
	require.NoError(t, err)
	f.adapter.Wait()
	assert.Empty(t, f.comments.saved)
}

func TestQuery_NotFound(t *testing.T) {
	f := newFixture(t, business, answering(`{}`))
	_, err := f.adapter.Query(context.Background(), "ghost")
	assert.ErrorIs(t, err, analysis.ErrNotFound)
}

func TestListDebug_IsIdempotentAndRedacted(t *testing.T) {
	f := newFixture(t, business, answering(`{"answer":"secret verdict"}`))
	ctx := context.Background()
	for _, u := range []string{"u1", "u2"} {
		_, err := f.adapter.Submit(ctx, analysis.Request{RepositoryURL: "https://github.com/a/b", UserID: u})
		require.NoError(t, err)
	}

	first, err := f.adapter.ListDebug(ctx)
	require.NoError(t, err)
	second, err := f.adapter.ListDebug(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	for _, s := range first {
		assert.True(t, s.HasResult)
		assert.Equal(t, judges.ID("business"), s.JudgeID)
	}
}

func TestUpdate_ShallowMerge(t *testing.T) {
	f := newFixture(t, business, answering(`{"a":1,"b":2}`))
	ctx := context.Background()
	_, err := f.adapter.Submit(ctx, analysis.Request{RepositoryURL: "https://github.com/a/b", UserID: "u1"})
	require.NoError(t, err)

	rec, err := f.adapter.Update(ctx, "u1", map[string]any{"request_id": "u1", "b": 3, "c": 4})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": 3, "c": 4}, rec.Result.Data)
	assert.False(t, rec.UpdatedAt.IsZero())

	_, err = f.adapter.Update(ctx, "nobody", map[string]any{"x": 1})
	assert.ErrorIs(t, err, analysis.ErrNotFound)

	_, err = f.adapter.Update(ctx, " ", nil)
	assert.ErrorIs(t, err, analysis.ErrMissingField)
}

func TestSet(t *testing.T) {
	list := []judges.Judge{{ID: "paul"}, {ID: "business"}}
	s := NewSet(list, func(j judges.Judge) *Adapter { return &Adapter{Judge: j} })

	a, ok := s.Get("paul")
	require.True(t, ok)
	assert.Equal(t, judges.ID("paul"), a.Judge.ID)
	_, ok = s.Get("nobody")
	assert.False(t, ok)
	assert.Equal(t, []judges.ID{"business", "paul"}, s.IDs())
	s.Wait()
}
