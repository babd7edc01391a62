package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/alert"
	"nuha.dev/locshare/internal/relay"
	"nuha.dev/locshare/internal/sublist"
	"nuha.dev/locshare/internal/util"
)

type Sources struct {
	Registry   *sublist.SublistMap
	Relay      *relay.Relay
	Dispatcher *alert.Dispatcher
	Sessions   interface{ Active() int64 }
}

type MonitoringServer struct {
	src    Sources
	server *http.Server
	log    log.Logger
}

type MonitoringConfig struct {
	ListenAddr string
}

type Status struct {
	Time     time.Time              `json:"time"`
	Sessions int64                  `json:"sessions"`
	Channels []sublist.ChannelStat  `json:"channels"`
	Senders  map[string]relay.State `json:"senders"`
	Alerts   *alert.DispatcherStat  `json:"alerts,omitempty"`
}

func NewMonApi(src Sources, config *MonitoringConfig) *MonitoringServer {
	m := &MonitoringServer{src: src}
	m.server = &http.Server{
		Addr:           config.ListenAddr,
		Handler:        http.HandlerFunc(m.serve_http),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	m.log = log.DefaultLogger
	m.log.Context = log.NewContext(nil).Str("module", "monitoring").Value()
	return m
}

func (m *MonitoringServer) Run() error {
	m.log.Info().Msgf("starting monitoring on : %s", m.server.Addr)
	err := m.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (m *MonitoringServer) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}

func (m *MonitoringServer) GetStatus() Status {
	st := Status{Time: time.Now().UTC()}
	if m.src.Sessions != nil {
		st.Sessions = m.src.Sessions.Active()
	}
	if m.src.Registry != nil {
		st.Channels = m.src.Registry.Stats()
	}
	if m.src.Relay != nil {
		st.Senders = m.src.Relay.States()
	}
	if m.src.Dispatcher != nil {
		ds := m.src.Dispatcher.Stat()
		st.Alerts = &ds
	}
	return st
}

func (m *MonitoringServer) serve_http(w http.ResponseWriter, r *http.Request) {
	util.JsonWrite(w, m.GetStatus())
}

func (m *MonitoringServer) GetHandler() http.Handler {
	return http.HandlerFunc(m.serve_http)
}
