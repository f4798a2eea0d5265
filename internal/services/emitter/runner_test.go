package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tify-app/emitter/internal/domain/event"
	"github.com/tify-app/emitter/internal/eventstore"
)

// fakeMessages replays scripted poll batches and records every lower bound
// it is queried with.
type fakeMessages struct {
	batches [][]*event.Message
	errs    []error
	calls   int
	sinces  []time.Time
}

func (f *fakeMessages) FetchSince(_ context.Context, since time.Time) ([]*event.Message, error) {
	f.sinces = append(f.sinces, since)
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return nil, nil
}

func msg(id int64, channel string, createdAt time.Time) *event.Message {
	return &event.Message{ID: id, ChannelID: channel, Content: "alerta", CreatedAt: createdAt}
}

func newTestRunner(t *testing.T, msgs *fakeMessages) (*Runner, *eventstore.Store) {
	t.Helper()
	store := eventstore.New(eventstore.DefaultCap)
	disp := NewDispatcher(zap.NewNop(), nil, nil, nil)
	return NewRunner(zap.NewNop(), msgs, store, disp, time.Second, 5*time.Minute), store
}

func TestWatermarkAdvancesToMaxCreatedAt(t *testing.T) {
	t1 := time.Now().UTC().Add(10 * time.Second).Truncate(time.Second)
	t2 := t1.Add(30 * time.Second)
	msgs := &fakeMessages{batches: [][]*event.Message{
		{msg(1, "c1", t1), msg(2, "c1", t2)},
	}}
	r, store := newTestRunner(t, msgs)

	r.tick(context.Background())

	require.Equal(t, t2, r.Watermark())
	require.Equal(t, 2, store.Len())
}

func TestWatermarkUnchangedOnEmptyBatch(t *testing.T) {
	msgs := &fakeMessages{}
	r, _ := newTestRunner(t, msgs)
	before := r.Watermark()

	r.tick(context.Background())
	require.Equal(t, before, r.Watermark())
}

func TestWatermarkUnchangedOnQueryError(t *testing.T) {
	msgs := &fakeMessages{errs: []error{errors.New("connection reset")}}
	r, store := newTestRunner(t, msgs)
	before := r.Watermark()

	r.tick(context.Background())
	require.Equal(t, before, r.Watermark())
	require.Equal(t, 0, store.Len())
}

func TestWatermarkIsMonotonicAcrossIterations(t *testing.T) {
	t1 := time.Now().UTC().Add(10 * time.Second).Truncate(time.Second)
	t2 := t1.Add(time.Minute)
	msgs := &fakeMessages{
		batches: [][]*event.Message{
			{msg(1, "c1", t1)},
			nil, // empty poll
			nil, // error poll (see errs)
			{msg(2, "c1", t2)},
		},
		errs: []error{nil, nil, errors.New("boom"), nil},
	}
	r, _ := newTestRunner(t, msgs)

	for i := 0; i < 4; i++ {
		r.tick(context.Background())
	}

	require.Equal(t, t2, r.Watermark())
	// Every query bound must be >= all earlier ones.
	for i := 1; i < len(msgs.sinces); i++ {
		require.False(t, msgs.sinces[i].Before(msgs.sinces[i-1]),
			"since[%d]=%v earlier than since[%d]=%v", i, msgs.sinces[i], i-1, msgs.sinces[i-1])
	}
}

func TestWatermarkNeverMovesBackward(t *testing.T) {
	t2 := time.Now().UTC().Add(time.Minute).Truncate(time.Second)
	t1 := t2.Add(-30 * time.Second)
	msgs := &fakeMessages{batches: [][]*event.Message{
		{msg(2, "c1", t2)},
		// Re-observed older row due to commit skew; must not regress.
		{msg(1, "c1", t1)},
	}}
	r, _ := newTestRunner(t, msgs)

	r.tick(context.Background())
	require.Equal(t, t2, r.Watermark())
	r.tick(context.Background())
	require.Equal(t, t2, r.Watermark())
}

func TestReobservedRowIsIdempotent(t *testing.T) {
	t1 := time.Now().UTC().Add(10 * time.Second).Truncate(time.Second)
	row := msg(1, "c1", t1)
	msgs := &fakeMessages{batches: [][]*event.Message{{row}, {row}}}
	r, store := newTestRunner(t, msgs)

	r.tick(context.Background())
	r.tick(context.Background())

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "1", snap[0].ID)
	require.Equal(t, "\U0001F44B alerta", snap[0].Content)
}

func TestInitialWatermarkUsesLookback(t *testing.T) {
	msgs := &fakeMessages{}
	store := eventstore.New(eventstore.DefaultCap)
	disp := NewDispatcher(zap.NewNop(), nil, nil, nil)

	before := time.Now().UTC().Add(-5 * time.Minute)
	r := NewRunner(zap.NewNop(), msgs, store, disp, time.Second, 5*time.Minute)
	after := time.Now().UTC().Add(-5 * time.Minute)

	wm := r.Watermark()
	require.False(t, wm.Before(before))
	require.False(t, wm.After(after))
}
