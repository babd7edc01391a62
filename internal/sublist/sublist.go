package sublist

import (
	"fmt"
	"sort"
	"sync"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/event"
)

// SublistMap is the channel registry: channel id -> subscribers currently watching it.
// A subscriber is joined to at most one channel at a time.
type SublistMap struct {
	mu     sync.Mutex
	list   map[string]*Sublist
	joined map[Subscriber]*Sublist
	global *Sublist
	log    log.Logger
}

type Sublist struct {
	key     string
	mu      sync.Mutex
	send_mu sync.Mutex
	list    map[Subscriber]bool
}

type ChannelStat struct {
	Channel     string `json:"channel"`
	Subscribers int    `json:"subscribers"`
}

func NewSublistMap() *SublistMap {
	m := &SublistMap{}
	m.list = make(map[string]*Sublist)
	m.joined = make(map[Subscriber]*Sublist)
	m.global = newSublist("")
	m.log = log.DefaultLogger
	m.log.Context = log.NewContext(nil).Str("module", "sublist").Value()
	return m
}

func newSublist(key string) *Sublist {
	return &Sublist{key: key, list: make(map[Subscriber]bool)}
}

// Join adds sub to channel, leaving whatever channel it was joined to before.
func (m *SublistMap) Join(channel string, sub Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.joined[sub]; ok {
		if prev.key == channel {
			return
		}
		m.remove(prev, sub)
	}
	s, ok := m.list[channel]
	if !ok {
		s = newSublist(channel)
		m.list[channel] = s
	}
	s.mu.Lock()
	s.list[sub] = true
	s.mu.Unlock()
	m.joined[sub] = s
	m.log.Trace().Str("channel", channel).Msg("joined")
}

// Leave is a no-op when sub is not joined to channel.
func (m *SublistMap) Leave(channel string, sub Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.joined[sub]
	if !ok || s.key != channel {
		return
	}
	m.remove(s, sub)
}

// remove must be called with m.mu held.
func (m *SublistMap) remove(s *Sublist, sub Subscriber) {
	s.mu.Lock()
	delete(s.list, sub)
	empty := len(s.list) == 0
	s.mu.Unlock()
	delete(m.joined, sub)
	if empty && m.list[s.key] == s {
		delete(m.list, s.key)
	}
	m.log.Trace().Str("channel", s.key).Msg("left")
}

// Attach puts sub on the global list that receives BroadcastAll notices.
func (m *SublistMap) Attach(sub Subscriber) {
	m.global.mu.Lock()
	m.global.list[sub] = true
	m.global.mu.Unlock()
}

// Detach removes sub from the global list and from its channel.
func (m *SublistMap) Detach(sub Subscriber) {
	m.global.mu.Lock()
	delete(m.global.list, sub)
	m.global.mu.Unlock()
	m.mu.Lock()
	if s, ok := m.joined[sub]; ok {
		m.remove(s, sub)
	}
	m.mu.Unlock()
}

// Channel returns the channel sub is joined to.
func (m *SublistMap) Channel(sub Subscriber) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.joined[sub]
	if !ok {
		return "", false
	}
	return s.key, true
}

// Broadcast delivers e to every subscriber currently joined to channel. Broadcasts on one
// channel are serialized so every subscriber sees them in call order.
func (m *SublistMap) Broadcast(channel string, e *event.Event) {
	m.mu.Lock()
	s, ok := m.list[channel]
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, sub := range m.send(s, e) {
		m.Leave(channel, sub)
	}
}

func (m *SublistMap) BroadcastAll(e *event.Event) {
	for _, sub := range m.send(m.global, e) {
		m.Detach(sub)
	}
}

func (m *SublistMap) send(s *Sublist, e *event.Event) []Subscriber {
	s.send_mu.Lock()
	defer s.send_mu.Unlock()
	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.list))
	for sub := range s.list {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var closed []Subscriber
	for _, sub := range subs {
		if m.push(sub, e) {
			closed = append(closed, sub)
		}
	}
	return closed
}

// push keeps a misbehaving subscriber from affecting its siblings.
func (m *SublistMap) push(sub Subscriber, e *event.Event) (closed bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("channel", e.Channel).Str("event", e.Type).Err(fmt.Errorf("%v", r)).Msg("subscriber panicked, dropping")
			closed = true
		}
	}()
	return sub.Push(e)
}

func (m *SublistMap) Stats() []ChannelStat {
	m.mu.Lock()
	stats := make([]ChannelStat, 0, len(m.list))
	for k, s := range m.list {
		s.mu.Lock()
		stats = append(stats, ChannelStat{Channel: k, Subscribers: len(s.list)})
		s.mu.Unlock()
	}
	m.mu.Unlock()
	sort.Slice(stats, func(i, j int) bool { return stats[i].Channel < stats[j].Channel })
	return stats
}
