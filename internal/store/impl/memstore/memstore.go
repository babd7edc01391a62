package memstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/store"
)

type channelLog struct {
	mu      sync.Mutex
	samples []position.Sample
}

// Store keeps history and contacts in process memory. It is used when no database url is
// configured and in tests.
type Store struct {
	mu       sync.Mutex
	seq      uint64
	list     map[string]*channelLog
	contacts map[string]contact.Contact
	log      log.Logger
}

func NewStore() *Store {
	o := &Store{}
	o.list = make(map[string]*channelLog)
	o.contacts = make(map[string]contact.Contact)
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "memstore").Value()
	return o
}

func (st *Store) channel(channel string, create bool) *channelLog {
	st.mu.Lock()
	defer st.mu.Unlock()
	l, ok := st.list[channel]
	if !ok && create {
		l = &channelLog{}
		st.list[channel] = l
	}
	return l
}

func (st *Store) Insert(ctx context.Context, s *position.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := st.channel(s.ChannelId, true)
	l.mu.Lock()
	s.Seq = atomic.AddUint64(&st.seq, 1)
	l.samples = append(l.samples, *s)
	l.mu.Unlock()
	st.log.Trace().EmbedObject(s).Msg("stored")
	return nil
}

func (st *Store) QueryOrdered(ctx context.Context, channel string) ([]position.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]position.Sample, 0)
	l := st.channel(channel, false)
	if l == nil {
		return out, nil
	}
	l.mu.Lock()
	out = append(out, l.samples...)
	l.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	return out, nil
}

func (st *Store) DeleteAll(ctx context.Context, channel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st.mu.Lock()
	l, ok := st.list[channel]
	st.mu.Unlock()
	if ok {
		l.mu.Lock()
		l.samples = nil
		l.mu.Unlock()
	}
	return nil
}

func (st *Store) Lookup(ctx context.Context, channel string) (*contact.Contact, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, ok := st.contacts[channel]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (st *Store) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	st.mu.Lock()
	out := make([]contact.Contact, 0, len(st.contacts))
	for _, c := range st.contacts {
		out = append(out, c)
	}
	st.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (st *Store) CreateContact(ctx context.Context, c *contact.Contact) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.contacts[c.ChannelId]; ok {
		return store.ErrContactExists
	}
	st.contacts[c.ChannelId] = *c
	return nil
}

func (st *Store) UpdateContact(ctx context.Context, c *contact.Contact) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.contacts[c.ChannelId]; !ok {
		return store.ErrContactNotFound
	}
	st.contacts[c.ChannelId] = *c
	return nil
}

func (st *Store) DeleteContact(ctx context.Context, channel string) error {
	st.mu.Lock()
	_, ok := st.contacts[channel]
	delete(st.contacts, channel)
	delete(st.list, channel)
	st.mu.Unlock()
	if !ok {
		return store.ErrContactNotFound
	}
	return nil
}
