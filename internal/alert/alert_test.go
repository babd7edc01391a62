package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/event"
	"nuha.dev/locshare/internal/store/impl/memstore"
)

type sent struct {
	phone string
	body  string
}

type fakeNotifier struct {
	mu    sync.Mutex
	got   []sent
	err   error
	block chan struct{}
}

func (f *fakeNotifier) Send(ctx context.Context, phone string, body string) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, sent{phone, body})
	return f.err
}

func (f *fakeNotifier) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.got...)
}

type fakeAnnouncer struct {
	mu  sync.Mutex
	got []*event.Event
}

func (f *fakeAnnouncer) BroadcastAll(e *event.Event) {
	f.mu.Lock()
	f.got = append(f.got, e)
	f.mu.Unlock()
}

type brokenDirectory struct{}

func (brokenDirectory) Lookup(ctx context.Context, channel string) (*contact.Contact, error) {
	return nil, errors.New("db down")
}

func newContacts(t *testing.T) *memstore.Store {
	st := memstore.NewStore()
	require.NoError(t, st.CreateContact(context.Background(), &contact.Contact{ChannelId: "alice-abc", Name: "Alice", Phone: "9876543210"}))
	return st
}

func TestStartSharingNoContact(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n, DispatcherConfig{Workers: 1, QueueDepth: 4})
	ann := &fakeAnnouncer{}
	tr := NewTrigger(memstore.NewStore(), d, ann, TriggerConfig{})

	tr.StartSharing(context.Background(), "nobody")
	d.Close()

	assert.Empty(t, n.messages())
	assert.Empty(t, ann.got)
}

func TestStartSharingSends(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n, DispatcherConfig{Workers: 2, QueueDepth: 4})
	ann := &fakeAnnouncer{}
	tr := NewTrigger(newContacts(t), d, ann, TriggerConfig{PublicURL: "https://loc.example/", DefaultCountryCode: "+91"})

	tr.StartSharing(context.Background(), "alice-abc")
	d.Close()

	got := n.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "+919876543210", got[0].phone)
	assert.Equal(t, "EMERGENCY ALERT: Alice has started sharing their location with you. View live location: https://loc.example/receiver.html?track=alice-abc", got[0].body)
	require.Len(t, ann.got, 1)
	assert.Equal(t, event.EMERGENCY_STARTED, ann.got[0].Type)
	assert.JSONEq(t, `{"type":"emergency_started","userId":"alice-abc","contactName":"Alice"}`, string(ann.got[0].Data))
	assert.Equal(t, uint64(1), d.Stat().Sent)
}

func TestStartSharingWithoutNotifier(t *testing.T) {
	ann := &fakeAnnouncer{}
	tr := NewTrigger(newContacts(t), nil, ann, TriggerConfig{})

	tr.StartSharing(context.Background(), "alice-abc")

	require.Len(t, ann.got, 1)
	assert.Equal(t, event.EMERGENCY_STARTED, ann.got[0].Type)
}

func TestStartSharingLookupError(t *testing.T) {
	ann := &fakeAnnouncer{}
	tr := NewTrigger(brokenDirectory{}, nil, ann, TriggerConfig{})
	tr.StartSharing(context.Background(), "alice-abc")
	assert.Empty(t, ann.got)
}

func TestSendFailureLogged(t *testing.T) {
	n := &fakeNotifier{err: errors.New("twilio 401")}
	d := NewDispatcher(n, DispatcherConfig{Workers: 1, QueueDepth: 4})
	ann := &fakeAnnouncer{}
	tr := NewTrigger(newContacts(t), d, ann, TriggerConfig{})

	tr.StartSharing(context.Background(), "alice-abc")
	d.Close()

	assert.Equal(t, uint64(1), d.Stat().Failed)
	assert.Len(t, ann.got, 1)
}

func TestStartSharingDoesNotBlock(t *testing.T) {
	n := &fakeNotifier{block: make(chan struct{})}
	d := NewDispatcher(n, DispatcherConfig{Workers: 1, QueueDepth: 1})
	tr := NewTrigger(newContacts(t), d, &fakeAnnouncer{}, TriggerConfig{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			tr.StartSharing(context.Background(), "alice-abc")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartSharing blocked on a slow notifier")
	}
	close(n.block)
	d.Close()

	st := d.Stat()
	assert.Equal(t, uint64(5), st.Sent+st.Dropped)
	assert.NotZero(t, st.Dropped)
}

func TestDispatcherTimeout(t *testing.T) {
	n := &fakeNotifier{block: make(chan struct{})}
	d := NewDispatcher(n, DispatcherConfig{Workers: 1, QueueDepth: 1, SendTimeout: 10 * time.Millisecond})
	require.NoError(t, d.Enqueue("alice", "+1", "x"))
	d.Close()
	assert.Equal(t, uint64(1), d.Stat().Failed)
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(&fakeNotifier{}, DispatcherConfig{})
	d.Close()
	assert.ErrorIs(t, d.Enqueue("alice", "+1", "x"), ErrNotificationUnavailable)
	d.Close()
}

func TestEnqueueRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		n := &fakeNotifier{}
		d := NewDispatcher(n, DispatcherConfig{Workers: 2, QueueDepth: 64})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 8; j++ {
					_ = d.Enqueue("alice", "+1", "x")
				}
			}()
		}
		d.Close()
		wg.Wait()
		st := d.Stat()
		require.Equal(t, uint64(64), st.Sent+st.Dropped, "round %d", round)
		assert.Equal(t, int(st.Sent), len(n.messages()))
		assert.Zero(t, st.Queued)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		phone, code, want string
	}{
		{"9876543210", "+91", "+919876543210"},
		{"9876543210", "44", "+449876543210"},
		{"+15551234", "+91", "+15551234"},
		{" 12345 ", "+1", "+112345"},
		{"12345", "", "12345"},
		{"", "+91", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizePhone(c.phone, c.code), c.phone)
	}
}

func TestTrackingLinkDefault(t *testing.T) {
	tr := NewTrigger(memstore.NewStore(), nil, &fakeAnnouncer{}, TriggerConfig{})
	assert.Equal(t, "http://localhost:3000/receiver.html?track=bob-x1", tr.TrackingLink("bob-x1"))
}
