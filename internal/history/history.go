package history

import (
	"context"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/event"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/store"
)

type Broadcaster interface {
	Broadcast(channel string, e *event.Event)
}

type History struct {
	store    store.PositionStore
	registry Broadcaster
	log      log.Logger
}

func NewHistory(s store.PositionStore, registry Broadcaster) *History {
	h := &History{store: s, registry: registry}
	h.log = log.DefaultLogger
	h.log.Context = log.NewContext(nil).Str("module", "history").Value()
	return h
}

// Replay returns every persisted sample of channel, oldest capturedAt first. A channel with no
// history yields an empty slice.
func (h *History) Replay(ctx context.Context, channel string) ([]position.Sample, error) {
	samples, err := h.store.QueryOrdered(ctx, channel)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("history query failed")
		return nil, err
	}
	if samples == nil {
		samples = []position.Sample{}
	}
	return samples, nil
}

// Clear removes the channel's history and tells its viewers to drop their trail.
func (h *History) Clear(ctx context.Context, channel string) error {
	if err := h.store.DeleteAll(ctx, channel); err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("history delete failed")
		return err
	}
	h.log.Info().Str("channel", channel).Msg("history cleared")
	h.registry.Broadcast(channel, event.HistoryCleared(channel))
	return nil
}
