package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nuha.dev/locshare/internal/event"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/store/impl/memstore"
)

type fakeRegistry struct {
	mu  sync.Mutex
	got map[string][]*event.Event
}

func (f *fakeRegistry) Broadcast(channel string, e *event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.got == nil {
		f.got = make(map[string][]*event.Event)
	}
	f.got[channel] = append(f.got[channel], e)
}

func (f *fakeRegistry) events(channel string) []*event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*event.Event(nil), f.got[channel]...)
}

// flakyStore fails the first fails inserts.
type flakyStore struct {
	*memstore.Store
	mu    sync.Mutex
	fails int
	calls int
}

func (f *flakyStore) Insert(ctx context.Context, s *position.Sample) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.fails
	f.mu.Unlock()
	if fail {
		return errors.New("connection refused")
	}
	return f.Store.Insert(ctx, s)
}

type fakeTap struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTap) Publish(channel string, data []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, channel)
	f.mu.Unlock()
	return nil
}

func sample(lat, lng, acc float64, ts time.Time) *position.Sample {
	return &position.Sample{Latitude: lat, Longitude: lng, Accuracy: acc, CapturedAt: ts}
}

func TestReportPersistsThenBroadcasts(t *testing.T) {
	reg := &fakeRegistry{}
	st := memstore.NewStore()
	tap := &fakeTap{}
	r := NewRelay(reg, st, tap, RelayConfig{})
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, r.ReportPosition(context.Background(), "alice", sample(12.9, 77.6, 10, ts)))

	got := reg.events("alice")
	require.Len(t, got, 1)
	assert.Equal(t, event.LOCATION_UPDATE, got[0].Type)
	assert.False(t, got[0].IsStopped())
	var f map[string]interface{}
	require.NoError(t, json.Unmarshal(got[0].Data, &f))
	assert.Equal(t, "alice", f["userId"])
	assert.Equal(t, 12.9, f["lat"])
	assert.Equal(t, 77.6, f["lng"])
	assert.Equal(t, 10.0, f["acc"])

	hist, err := st.QueryOrdered(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, got[0].Seq, hist[0].Seq)
	assert.Empty(t, reg.events("bob"))
	assert.Equal(t, []string{"alice"}, tap.sent)
	assert.Equal(t, SHARING, r.State("alice"))
}

func TestReportInvalidSample(t *testing.T) {
	reg := &fakeRegistry{}
	st := memstore.NewStore()
	r := NewRelay(reg, st, nil, RelayConfig{})

	err := r.ReportPosition(context.Background(), "alice", sample(1000, 0, 0, time.Now()))
	assert.ErrorIs(t, err, position.ErrInvalidSample)

	err = r.ReportPosition(context.Background(), "alice", sample(0, 0, -1, time.Now()))
	assert.ErrorIs(t, err, position.ErrInvalidSample)

	hist, _ := st.QueryOrdered(context.Background(), "alice")
	assert.Empty(t, hist)
	assert.Empty(t, reg.events("alice"))
	assert.Equal(t, IDLE, r.State("alice"))
}

func TestReportPersistenceFailedNotBroadcast(t *testing.T) {
	reg := &fakeRegistry{}
	st := &flakyStore{Store: memstore.NewStore(), fails: 5}
	r := NewRelay(reg, st, nil, RelayConfig{PersistAttempts: 3, RetryDelay: time.Millisecond})

	err := r.ReportPosition(context.Background(), "alice", sample(1, 1, 1, time.Now()))
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.Equal(t, 3, st.calls)
	assert.Empty(t, reg.events("alice"))
}

func TestReportRetrySucceeds(t *testing.T) {
	reg := &fakeRegistry{}
	st := &flakyStore{Store: memstore.NewStore(), fails: 2}
	r := NewRelay(reg, st, nil, RelayConfig{PersistAttempts: 3, RetryDelay: time.Millisecond})

	require.NoError(t, r.ReportPosition(context.Background(), "alice", sample(1, 1, 1, time.Now())))
	assert.Len(t, reg.events("alice"), 1)
}

func TestReportRetryStopsOnCancel(t *testing.T) {
	reg := &fakeRegistry{}
	st := &flakyStore{Store: memstore.NewStore(), fails: 100}
	r := NewRelay(reg, st, nil, RelayConfig{PersistAttempts: 100, RetryDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.ReportPosition(ctx, "alice", sample(1, 1, 1, time.Now()))
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.Equal(t, 1, st.calls)
}

func TestZeroTimestampFilled(t *testing.T) {
	reg := &fakeRegistry{}
	st := memstore.NewStore()
	r := NewRelay(reg, st, nil, RelayConfig{})
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	require.NoError(t, r.ReportPosition(context.Background(), "alice", sample(1, 1, 1, time.Time{})))
	hist, _ := st.QueryOrdered(context.Background(), "alice")
	require.Len(t, hist, 1)
	assert.True(t, hist[0].CapturedAt.Equal(fixed))
}

func TestOutOfOrderAccepted(t *testing.T) {
	reg := &fakeRegistry{}
	st := memstore.NewStore()
	r := NewRelay(reg, st, nil, RelayConfig{})
	t2 := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	t1 := t2.Add(-time.Minute)

	require.NoError(t, r.ReportPosition(context.Background(), "alice", sample(1, 1, 1, t2)))
	require.NoError(t, r.ReportPosition(context.Background(), "alice", sample(2, 2, 1, t1)))

	hist, _ := st.QueryOrdered(context.Background(), "alice")
	require.Len(t, hist, 2)
	assert.Equal(t, 2.0, hist[0].Latitude)
	assert.Equal(t, 1.0, hist[1].Latitude)
	// live events follow processing order
	live := reg.events("alice")
	assert.Less(t, live[0].Seq, live[1].Seq)
}

func TestStopNotPersisted(t *testing.T) {
	reg := &fakeRegistry{}
	st := memstore.NewStore()
	r := NewRelay(reg, st, nil, RelayConfig{})

	r.Stop(context.Background(), "alice")

	got := reg.events("alice")
	require.Len(t, got, 1)
	assert.True(t, got[0].IsStopped())
	var f map[string]interface{}
	require.NoError(t, json.Unmarshal(got[0].Data, &f))
	assert.Nil(t, f["lat"])
	assert.Nil(t, f["lng"])
	assert.Equal(t, "stopped", f["note"])
	hist, _ := st.QueryOrdered(context.Background(), "alice")
	assert.Empty(t, hist)
	assert.Equal(t, STOPPED, r.State("alice"))
}

func TestPerChannelOrder(t *testing.T) {
	reg := &fakeRegistry{}
	st := memstore.NewStore()
	r := NewRelay(reg, st, nil, RelayConfig{})
	base := time.Now()

	var wg sync.WaitGroup
	for _, ch := range []string{"alice", "bob", "carol"} {
		wg.Add(1)
		go func(ch string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, r.ReportPosition(context.Background(), ch, sample(1, 1, 1, base.Add(time.Duration(i)*time.Second))))
			}
		}(ch)
	}
	wg.Wait()

	for _, ch := range []string{"alice", "bob", "carol"} {
		live := reg.events(ch)
		require.Len(t, live, 50)
		for i := 1; i < len(live); i++ {
			assert.Less(t, live[i-1].Seq, live[i].Seq)
		}
	}
	r.mu.Lock()
	assert.Empty(t, r.locks)
	r.mu.Unlock()
}
