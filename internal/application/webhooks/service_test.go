package webhooks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/judgeproxy/internal/application"
	domain "github.com/bryanwahyu/judgeproxy/internal/domain/webhooks"
	"github.com/bryanwahyu/judgeproxy/internal/infra/store/memory"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
)

func newService(secret string) *Service {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Service{
		Store:  memory.NewEventStore(),
		Secret: secret,
		Clock:  application.ClockFunc(func() time.Time { return at }),
		Log:    logging.Nop(),
	}
}

const completed = `{"event":"analysis_completed","conversation_id":"c1","message_id":"m1","result":{"answer":"great","metadata":{"usage":{"total_tokens":9}}},"timestamp":"2025-01-02T03:04:05Z"}`

func TestReceive_StoresCompleted(t *testing.T) {
	svc := newService("")
	ctx := context.Background()

	ev, err := svc.Receive(ctx, []byte(completed), "")
	require.NoError(t, err)
	assert.Equal(t, domain.EventCompleted, ev.Event)
	assert.Equal(t, 9, ev.Result.Metadata.Usage.TotalTokens)

	got, ok, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "great", got.Result.Answer)
	assert.JSONEq(t, completed, string(got.Raw))

	sums, err := svc.Summaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Summary{{ConversationID: "c1", Event: domain.EventCompleted, Timestamp: "2025-01-02T03:04:05Z", HasResult: true}}, sums)
}

func TestReceive_OtherEventsAreNotStored(t *testing.T) {
	svc := newService("")
	ctx := context.Background()
	for _, body := range []string{
		`{"event":"analysis_started","conversation_id":"c2"}`,
		`{"event":"analysis_error","conversation_id":"c3","error":{"code":"x","message":"boom"}}`,
		`{"event":"something_else","conversation_id":"c4"}`,
	} {
		_, err := svc.Receive(ctx, []byte(body), "")
		require.NoError(t, err)
	}
	sums, err := svc.Summaries(ctx)
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestReceive_ErrorEventCarriesFailure(t *testing.T) {
	svc := newService("")
	ev, err := svc.Receive(context.Background(),
		[]byte(`{"event":"analysis_error","conversation_id":"c5","error":{"code":"quota","message":"limit reached"}}`), "")
	require.NoError(t, err)
	assert.Equal(t, domain.EventError, ev.Event)
	assert.True(t, ev.Event.Known())
	require.NotNil(t, ev.Error)
	assert.Equal(t, domain.EventFailure{Code: "quota", Message: "limit reached"}, *ev.Error)
	assert.Nil(t, ev.Result)
}

func TestReceive_Malformed(t *testing.T) {
	svc := newService("")
	_, err := svc.Receive(context.Background(), []byte(`{not json`), "")
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = svc.Receive(context.Background(), []byte(`{"event":"analysis_completed"}`), "")
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestReceive_Signature(t *testing.T) {
	svc := newService("s3cret")
	body := []byte(completed)

	_, err := svc.Receive(context.Background(), body, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	_, err = svc.Receive(context.Background(), body, Sign("wrong", body))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = svc.Receive(context.Background(), body, Sign("s3cret", body))
	assert.NoError(t, err)
	_, err = svc.Receive(context.Background(), body, "sha256="+Sign("s3cret", body))
	assert.NoError(t, err)
}
