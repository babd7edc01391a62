package webapp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"
	proxyproto "github.com/pires/go-proxyproto"
	"nuha.dev/locshare/internal/tracking"
	"nuha.dev/locshare/internal/util"
	"nuha.dev/locshare/internal/webapp/common"
	"nuha.dev/locshare/internal/webapp/sharing"
	"nuha.dev/locshare/internal/webapp/webstream"
)

type ApiConfig struct {
	ListenAddr    string
	ProxyProtocol bool
	StaticDir     string
}

type Api struct {
	r      chi.Router
	s      *http.Server
	config *ApiConfig
	log    log.Logger
	cancel context.CancelFunc
}

func NewApi(svc *tracking.Service, ws *webstream.WebstreamServer, config *ApiConfig) *Api {
	api := &Api{config: config}
	api.log = log.DefaultLogger
	api.log.Context = log.NewContext(nil).Str("module", "api-server").Value()
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Recoverer)

	disp := NewDispatcher()
	sharing_api := sharing.NewSharingApi(svc)
	disp.Add("ReportPosition", sharing_api.ReportPosition)
	disp.Add("StartSharing", sharing_api.StartSharing)
	disp.Add("StopSharing", sharing_api.StopSharing)
	disp.Add("ReplayHistory", sharing_api.ReplayHistory)
	disp.Add("ClearHistory", sharing_api.ClearHistory)
	disp.Add("GetContacts", sharing_api.GetContacts)
	disp.Add("CreateContact", sharing_api.CreateContact)
	disp.Add("UpdateContact", sharing_api.UpdateContact)
	disp.Add("DeleteContact", sharing_api.DeleteContact)

	r.Post("/func/{name}", func(w http.ResponseWriter, r *http.Request) {
		disp.Call(chi.URLParam(r, "name"), w, r)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		util.JsonWrite(w, common.BasicResponse{Status: http.StatusOK, Message: "ok"})
	})
	r.Handle("/ws", ws)

	// paths used by the bundled web client
	r.Post("/location", func(w http.ResponseWriter, r *http.Request) {
		disp.Call("ReportPosition", w, r)
	})
	r.Get("/history/{userId}", func(w http.ResponseWriter, r *http.Request) {
		res := &sharing.HistoryResponseModel{}
		req := &sharing.ChannelRequestModel{UserId: chi.URLParam(r, "userId")}
		if err := sharing_api.ReplayHistory(r.Context(), req, res); err != nil {
			write_error(w, status_of(err), err.Error())
			return
		}
		util.JsonWrite(w, res.Points)
	})
	r.Delete("/history/{userId}", func(w http.ResponseWriter, r *http.Request) {
		res := &common.BasicResponse{}
		req := &sharing.ChannelRequestModel{UserId: chi.URLParam(r, "userId")}
		if err := sharing_api.ClearHistory(r.Context(), req, res); err != nil {
			write_error(w, status_of(err), err.Error())
			return
		}
		util.JsonWrite(w, res)
	})

	if config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(config.StaticDir)))
	}

	api.r = r
	// websocket sessions outlive Shutdown, they end when the base context is cancelled
	base, cancel := context.WithCancel(context.Background())
	api.cancel = cancel
	api.s = &http.Server{
		Addr:              api.config.ListenAddr,
		Handler:           api.r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	return api
}

func (api *Api) Handler() http.Handler {
	return api.r
}

// Run blocks until the server is shut down.
func (api *Api) Run() error {
	ln, err := net.Listen("tcp", api.s.Addr)
	if err != nil {
		api.log.Error().Err(err).Msg("unable to listen")
		return err
	}
	if api.config.ProxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
	}
	api.log.Info().Bool("proxy_protocol", api.config.ProxyProtocol).Msgf("starting api-server on : %s", ln.Addr())
	err = api.s.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	api.log.Error().Err(err).Msg("")
	return err
}

func (api *Api) Shutdown(ctx context.Context) error {
	defer api.cancel()
	return api.s.Shutdown(ctx)
}
