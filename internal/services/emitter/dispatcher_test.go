package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tify-app/emitter/internal/domain/event"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

type fakeWebhook struct {
	err error
	got []any
}

func (f *fakeWebhook) Post(_ context.Context, payload any) error {
	f.got = append(f.got, payload)
	return f.err
}

type fakePush struct {
	failFor map[string]bool
	sent    []string
}

func (f *fakePush) Send(_ context.Context, token, _, _ string) error {
	f.sent = append(f.sent, token)
	if f.failFor[token] {
		return errors.New("bad token")
	}
	return nil
}

type fakeRecipients struct {
	tokens     []string
	err        error
	gotChannel string
	gotAt      *time.Time
}

func (f *fakeRecipients) RecipientTokens(_ context.Context, channelID string, at *time.Time) ([]string, error) {
	f.gotChannel = channelID
	f.gotAt = at
	return f.tokens, f.err
}

func (f *fakeRecipients) DeviceTokens(context.Context) ([]string, error) {
	return f.tokens, f.err
}

func testEvent() event.Event {
	return event.Event{
		ID:        "7",
		ChannelID: "c1",
		Content:   "\U0001F44B Alerta",
		CreatedAt: "2025-01-06T10:00:00Z",
	}
}

func TestDispatchBothChannelsSucceed(t *testing.T) {
	wh := &fakeWebhook{}
	push := &fakePush{}
	rec := &fakeRecipients{tokens: []string{"t1", "t2"}}
	d := NewDispatcher(zap.NewNop(), wh, push, rec)

	res := d.Dispatch(context.Background(), testEvent())
	require.True(t, res.WebhookSent)
	require.True(t, res.PushSent)
	require.Equal(t, []string{"t1", "t2"}, push.sent)

	require.Len(t, wh.got, 1)
	payload, ok := wh.got[0].(WebhookPayload)
	require.True(t, ok)
	require.Equal(t, "emergency", payload.Type)
	require.Equal(t, "7", payload.ID)
	require.Equal(t, "c1", payload.ChannelID)
	require.Equal(t, "2025-01-06T10:00:00Z", payload.CreatedAt)
}

func TestDispatchWebhookFailureDoesNotBlockPush(t *testing.T) {
	wh := &fakeWebhook{err: errors.New("timeout")}
	push := &fakePush{}
	rec := &fakeRecipients{tokens: []string{"t1"}}
	d := NewDispatcher(zap.NewNop(), wh, push, rec)

	res := d.Dispatch(context.Background(), testEvent())
	require.False(t, res.WebhookSent)
	require.True(t, res.PushSent)
}

func TestDispatchUnconfiguredChannelsAreNoOps(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, nil, nil)

	res := d.Dispatch(context.Background(), testEvent())
	require.False(t, res.WebhookSent)
	require.False(t, res.PushSent)
}

func TestPushZeroRecipientsIsNoOp(t *testing.T) {
	push := &fakePush{}
	rec := &fakeRecipients{}
	d := NewDispatcher(zap.NewNop(), nil, push, rec)

	res := d.Dispatch(context.Background(), testEvent())
	require.False(t, res.PushSent)
	require.Empty(t, push.sent)
}

func TestPushOneBadTokenDoesNotAbortOthers(t *testing.T) {
	push := &fakePush{failFor: map[string]bool{"t2": true}}
	rec := &fakeRecipients{tokens: []string{"t1", "t2", "t3"}}
	d := NewDispatcher(zap.NewNop(), nil, push, rec)

	res := d.Dispatch(context.Background(), testEvent())
	// All tokens attempted, but overall success is all-or-nothing.
	require.False(t, res.PushSent)
	require.Equal(t, []string{"t1", "t2", "t3"}, push.sent)
}

func TestPushResolvesRecipientsAtEffectiveTimestamp(t *testing.T) {
	rec := &fakeRecipients{}
	d := NewDispatcher(zap.NewNop(), nil, &fakePush{}, rec)

	ev := testEvent()
	eventAt := "2025-02-01T09:00:00Z"
	ev.EventAt = &eventAt
	d.Dispatch(context.Background(), ev)

	require.Equal(t, "c1", rec.gotChannel)
	require.NotNil(t, rec.gotAt)
	require.Equal(t, time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), *rec.gotAt)
}

func TestPushFallsBackToCreatedAt(t *testing.T) {
	rec := &fakeRecipients{}
	d := NewDispatcher(zap.NewNop(), nil, &fakePush{}, rec)

	d.Dispatch(context.Background(), testEvent())

	require.NotNil(t, rec.gotAt)
	require.Equal(t, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), *rec.gotAt)
}

func TestPushUnparsableTimestampsIncludeEveryone(t *testing.T) {
	rec := &fakeRecipients{}
	d := NewDispatcher(zap.NewNop(), nil, &fakePush{}, rec)

	ev := testEvent()
	ev.CreatedAt = "ayer"
	d.Dispatch(context.Background(), ev)

	require.Nil(t, rec.gotAt)
}

func TestWebhookClientSuccessWindow(t *testing.T) {
	var gotBody WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, jsonDecode(r, &gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL, 2*time.Second)
	err := c.Post(context.Background(), WebhookPayload{Type: "emergency", ID: "1"})
	require.NoError(t, err)
	require.Equal(t, "emergency", gotBody.Type)
}

func TestWebhookClientNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL, 2*time.Second)
	require.Error(t, c.Post(context.Background(), WebhookPayload{}))
}

func TestWebhookClientConnectErrorIsFailure(t *testing.T) {
	c := NewWebhookClient("http://127.0.0.1:1/hook", 500*time.Millisecond)
	require.Error(t, c.Post(context.Background(), WebhookPayload{}))
}
