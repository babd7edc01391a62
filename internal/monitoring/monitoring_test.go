package monitoring

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nuha.dev/locshare/internal/event"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/relay"
	"nuha.dev/locshare/internal/store/impl/memstore"
	"nuha.dev/locshare/internal/sublist"
)

type mockSub struct{}

func (mockSub) Push(e *event.Event) bool { return false }

type sessions int64

func (s sessions) Active() int64 { return int64(s) }

func TestStatus(t *testing.T) {
	reg := sublist.NewSublistMap()
	reg.Join("alice", &mockSub{})
	r := relay.NewRelay(reg, memstore.NewStore(), nil, relay.RelayConfig{})
	require.NoError(t, r.ReportPosition(context.Background(), "alice", &position.Sample{Latitude: 1, CapturedAt: time.Now()}))
	r.Stop(context.Background(), "bob")

	m := NewMonApi(Sources{Registry: reg, Relay: r, Sessions: sessions(3)}, &MonitoringConfig{})
	rec := httptest.NewRecorder()
	m.GetHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(3), st.Sessions)
	assert.Equal(t, []sublist.ChannelStat{{Channel: "alice", Subscribers: 1}}, st.Channels)
	assert.Equal(t, relay.SHARING, st.Senders["alice"])
	assert.Equal(t, relay.STOPPED, st.Senders["bob"])
	assert.Nil(t, st.Alerts)
}
