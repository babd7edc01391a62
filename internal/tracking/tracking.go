package tracking

import (
	"context"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/alert"
	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/history"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/relay"
	"nuha.dev/locshare/internal/store"
	"nuha.dev/locshare/internal/sublist"
)

// Service is the entry point transports call into. Every operation is addressed to one channel.
type Service struct {
	registry *sublist.SublistMap
	relay    *relay.Relay
	history  *history.History
	trigger  *alert.Trigger
	contacts store.ContactStore
	ids      *contact.IdGenerator
	log      log.Logger
}

type ServiceConfig struct {
	Registry *sublist.SublistMap
	Relay    *relay.Relay
	History  *history.History
	Trigger  *alert.Trigger
	Contacts store.ContactStore
	Ids      *contact.IdGenerator
}

func NewService(config ServiceConfig) *Service {
	s := &Service{
		registry: config.Registry,
		relay:    config.Relay,
		history:  config.History,
		trigger:  config.Trigger,
		contacts: config.Contacts,
		ids:      config.Ids,
	}
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "tracking").Value()
	return s
}

func (s *Service) Registry() *sublist.SublistMap {
	return s.registry
}

func (s *Service) Join(channel string, sub sublist.Subscriber) {
	s.registry.Join(channel, sub)
}

func (s *Service) Leave(channel string, sub sublist.Subscriber) {
	s.registry.Leave(channel, sub)
}

// Attach subscribes a connection to global notices. Detach drops it everywhere.
func (s *Service) Attach(sub sublist.Subscriber) {
	s.registry.Attach(sub)
}

func (s *Service) Detach(sub sublist.Subscriber) {
	s.registry.Detach(sub)
}

func (s *Service) ReportPosition(ctx context.Context, channel string, sample *position.Sample) error {
	return s.relay.ReportPosition(ctx, channel, sample)
}

func (s *Service) Stop(ctx context.Context, channel string) {
	s.relay.Stop(ctx, channel)
}

func (s *Service) ReplayHistory(ctx context.Context, channel string) ([]position.Sample, error) {
	return s.history.Replay(ctx, channel)
}

func (s *Service) ClearHistory(ctx context.Context, channel string) error {
	return s.history.Clear(ctx, channel)
}

// StartSharing never fails; alert problems are logged by the trigger.
func (s *Service) StartSharing(ctx context.Context, channel string) {
	s.relay.Start(channel)
	s.trigger.StartSharing(ctx, channel)
}

func (s *Service) SenderState(channel string) relay.State {
	return s.relay.State(channel)
}
