package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/event"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/store"
)

var ErrPersistenceFailed = errors.New("persistence failed")

type Broadcaster interface {
	Broadcast(channel string, e *event.Event)
}

// Publisher receives a copy of every accepted live frame.
type Publisher interface {
	Publish(channel string, data []byte) error
}

type RelayConfig struct {
	PersistAttempts int
	RetryDelay      time.Duration
}

type Relay struct {
	registry Broadcaster
	store    store.PositionStore
	tap      Publisher
	config   RelayConfig
	log      log.Logger
	now      func() time.Time

	mu     sync.Mutex
	locks  map[string]*chanlock
	states map[string]State
}

type chanlock struct {
	sync.Mutex
	ref int
}

// NewRelay creates a relay, tap may be nil.
func NewRelay(registry Broadcaster, s store.PositionStore, tap Publisher, config RelayConfig) *Relay {
	if config.PersistAttempts < 1 {
		config.PersistAttempts = 1
	}
	r := &Relay{registry: registry, store: s, tap: tap, config: config, now: time.Now}
	r.locks = make(map[string]*chanlock)
	r.states = make(map[string]State)
	r.log = log.DefaultLogger
	r.log.Context = log.NewContext(nil).Str("module", "relay").Value()
	return r
}

func (r *Relay) lock(channel string) *chanlock {
	r.mu.Lock()
	l, ok := r.locks[channel]
	if !ok {
		l = &chanlock{}
		r.locks[channel] = l
	}
	l.ref++
	r.mu.Unlock()
	l.Lock()
	return l
}

func (r *Relay) unlock(channel string, l *chanlock) {
	l.Unlock()
	r.mu.Lock()
	l.ref--
	if l.ref == 0 {
		delete(r.locks, channel)
	}
	r.mu.Unlock()
}

// ReportPosition persists s and then broadcasts it to the channel's viewers. A sample that
// fails validation or persistence is never broadcast.
func (r *Relay) ReportPosition(ctx context.Context, channel string, s *position.Sample) error {
	s.ChannelId = channel
	if err := s.Validate(); err != nil {
		return err
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = r.now().UTC()
	}

	l := r.lock(channel)
	defer r.unlock(channel, l)

	if err := r.persist(ctx, s); err != nil {
		r.log.Error().Err(err).Str("channel", channel).Msg("persist failed")
		return fmt.Errorf("%w: %s", ErrPersistenceFailed, err.Error())
	}
	r.setState(channel, SHARING)

	e := event.Location(s)
	r.registry.Broadcast(channel, e)
	if r.tap != nil {
		if err := r.tap.Publish(channel, e.Data); err != nil {
			r.log.Warn().Err(err).Str("channel", channel).Msg("tap publish failed")
		}
	}
	return nil
}

func (r *Relay) persist(ctx context.Context, s *position.Sample) error {
	var err error
	for i := 0; i < r.config.PersistAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.RetryDelay):
			}
			r.log.Debug().Int("attempt", i+1).Str("channel", s.ChannelId).Msg("retrying insert")
		}
		if err = r.store.Insert(ctx, s); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// Stop broadcasts the stopped sentinel. Nothing is persisted.
func (r *Relay) Stop(ctx context.Context, channel string) {
	l := r.lock(channel)
	defer r.unlock(channel, l)
	r.setState(channel, STOPPED)
	r.registry.Broadcast(channel, event.Stopped(channel))
}

// Start marks the channel as sharing before any position arrives.
func (r *Relay) Start(channel string) {
	r.setState(channel, SHARING)
}
