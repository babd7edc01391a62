package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/alert"
	"nuha.dev/locshare/internal/config"
	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/history"
	"nuha.dev/locshare/internal/monitoring"
	"nuha.dev/locshare/internal/natstap"
	"nuha.dev/locshare/internal/notify"
	"nuha.dev/locshare/internal/notify/discord"
	"nuha.dev/locshare/internal/notify/twilio"
	"nuha.dev/locshare/internal/relay"
	"nuha.dev/locshare/internal/store"
	"nuha.dev/locshare/internal/store/impl/memstore"
	"nuha.dev/locshare/internal/store/impl/pgstore"
	"nuha.dev/locshare/internal/sublist"
	"nuha.dev/locshare/internal/tracking"
	"nuha.dev/locshare/internal/webapp"
	"nuha.dev/locshare/internal/webapp/webstream"
)

func main() {
	config_path := flag.String("config", "", "yaml config file")
	flag.Parse()

	conf, err := config.Load(*config_path)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	closer := setupLog(conf.Log)
	defer closer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, pool := openStore(ctx, conf.DB)
	if pool != nil {
		defer pool.Close()
	}

	var tap relay.Publisher
	if conf.Nats.Url != "" {
		t, err := natstap.Connect(conf.Nats.Url)
		if err != nil {
			log.Fatal().Err(err).Msg("")
		}
		defer t.Close()
		tap = t
	}

	ids, err := contact.NewIdGenerator(conf.Contact.IdSalt)
	if err != nil {
		log.Fatal().Err(err).Msg("bad contact id salt")
	}

	sublistmap := sublist.NewSublistMap()
	dispatcher := newDispatcher(conf)
	rl := relay.NewRelay(sublistmap, st, tap, relay.RelayConfig{PersistAttempts: conf.Relay.PersistAttempts, RetryDelay: conf.Relay.RetryDelay})
	svc := tracking.NewService(tracking.ServiceConfig{
		Registry: sublistmap,
		Relay:    rl,
		History:  history.NewHistory(st, sublistmap),
		Trigger:  alert.NewTrigger(st, dispatcher, sublistmap, alert.TriggerConfig{PublicURL: conf.Alert.PublicUrl, DefaultCountryCode: conf.Alert.DefaultCountryCode}),
		Contacts: st,
		Ids:      ids,
	})

	ws := webstream.NewWebstream(svc, webstream.WebStreamConfig{MaxBuffer: conf.WS.MaxBuffer})
	api := webapp.NewApi(svc, ws, &webapp.ApiConfig{ListenAddr: conf.Api.ListenAddr, ProxyProtocol: conf.Api.ProxyProtocol, StaticDir: conf.Api.StaticDir})

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := api.Run(); err != nil {
			log.Error().Err(err).Msg("api-server stopped")
			stop()
		}
	}()

	var mon *monitoring.MonitoringServer
	if conf.Mon.ListenAddr != "" {
		mon = monitoring.NewMonApi(monitoring.Sources{Registry: sublistmap, Relay: rl, Dispatcher: dispatcher, Sessions: ws}, &monitoring.MonitoringConfig{ListenAddr: conf.Mon.ListenAddr})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mon.Run(); err != nil {
				log.Error().Err(err).Msg("monitoring stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdown_ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdown_ctx); err != nil {
		log.Warn().Err(err).Msg("api-server shutdown")
	}
	if mon != nil {
		_ = mon.Shutdown(shutdown_ctx)
	}
	wg.Wait()
	if dispatcher != nil {
		dispatcher.Close()
	}
}

func openStore(ctx context.Context, c config.DB) (store.Store, *pgxpool.Pool) {
	if c.Url == "" {
		log.Warn().Msg("no database configured, history is kept in memory")
		return memstore.NewStore(), nil
	}
	pool, err := pgxpool.Connect(ctx, c.Url)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	st := pgstore.NewStore(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to create schema")
	}
	return st, pool
}

// newDispatcher returns nil when no sms credentials are configured.
func newDispatcher(conf *config.Config) *alert.Dispatcher {
	sms, err := twilio.NewSender(twilio.TwilioConfig{
		AccountSid:  conf.Twilio.AccountSid,
		AuthToken:   conf.Twilio.AuthToken,
		PhoneNumber: conf.Twilio.PhoneNumber,
	})
	if err != nil {
		log.Warn().Err(err).Msg("sms alerts disabled")
		return nil
	}
	var n notify.Notifier = sms
	if conf.Discord.WebhookUrl != "" {
		mirror, err := discord.NewMirror(conf.Discord.WebhookUrl)
		if err != nil {
			log.Fatal().Err(err).Msg("")
		}
		n = notify.Multi{sms, mirror}
	}
	return alert.NewDispatcher(n, alert.DispatcherConfig{
		Workers:     conf.Alert.Workers,
		QueueDepth:  conf.Alert.QueueDepth,
		SendTimeout: conf.Alert.SendTimeout,
	})
}
