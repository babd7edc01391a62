package webstream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"nhooyr.io/websocket"
	"nuha.dev/locshare/internal/event"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/tracking"
	"nuha.dev/locshare/internal/util"
	"nuha.dev/locshare/internal/webapp/common"
)

const (
	CJoin     string = "join_room"
	CLeave    string = "leave_room"
	CLocation string = "location_update"
	CStop     string = "stop_sharing"
	CAlert    string = "send_emergency_alert"
	CClear    string = "clear_history"
)

type WebStreamConfig struct {
	MaxBuffer    int
	ReadLimit    int64
	WriteTimeout time.Duration
}

type WebstreamServer struct {
	svc    *tracking.Service
	config WebStreamConfig
	log    log.Logger

	active int64
}

// clientMessage is every frame a browser may send; which fields matter depends on Type.
type clientMessage struct {
	Type   string           `json:"type"`
	UserId string           `json:"userId"`
	Lat    *float64         `json:"lat"`
	Lng    *float64         `json:"lng"`
	Acc    float64          `json:"acc"`
	Ts     common.Timestamp `json:"ts"`
	Note   string           `json:"note"`
}

func NewWebstream(svc *tracking.Service, config WebStreamConfig) *WebstreamServer {
	if config.MaxBuffer < 1 {
		config.MaxBuffer = 64
	}
	if config.ReadLimit < 1 {
		config.ReadLimit = 1 << 16
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	o := &WebstreamServer{svc: svc, config: config}
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "websocket").Value()
	return o
}

func (ws *WebstreamServer) Active() int64 {
	return atomic.LoadInt64(&ws.active)
}

func (ws *WebstreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		ws.log.Error().Err(err).Msg("Error while upgrading websocket")
		return
	}
	c.SetReadLimit(ws.config.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	wc := &WebstreamClient{sid: util.GenUUID(), srv: ws, c: c, cancel: cancel}
	wc.out = make(chan []byte, ws.config.MaxBuffer)
	wc.log = ws.log
	wc.log.Context = log.NewContext(nil).Str("module", "websocket").Str("sid", wc.sid).Value()

	atomic.AddInt64(&ws.active, 1)
	wc.log.Debug().Str("remote_address", r.RemoteAddr).Msg("connection opened")
	ws.svc.Attach(wc)

	wc.wg.Add(2)
	go wc.writeLoop(ctx)
	go wc.readloop(ctx)
	wc.wg.Wait()

	ws.svc.Detach(wc)
	atomic.AddInt64(&ws.active, -1)
	c.Close(websocket.StatusNormalClosure, "")
	wc.log.Debug().Uint64("pushed", atomic.LoadUint64(&wc.pushed)).Uint64("skipped", atomic.LoadUint64(&wc.skipped)).Msg("connection closed")
}

// WebstreamClient is one browser connection. It can watch one channel and report for any
// channel it names.
type WebstreamClient struct {
	lock   sync.Mutex
	wg     sync.WaitGroup
	srv    *WebstreamServer
	c      *websocket.Conn
	sid    string
	log    log.Logger
	cancel context.CancelFunc
	out    chan []byte

	closed    bool
	joined    string
	replaying bool
	held      []*event.Event

	pushed  uint64
	skipped uint64
}

func (wc *WebstreamClient) close() {
	wc.lock.Lock()
	wc.closed = true
	wc.lock.Unlock()
	wc.cancel()
}

func (wc *WebstreamClient) readloop(ctx context.Context) {
	defer wc.wg.Done()
	defer wc.close()
	for {
		_, d, err := wc.c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				wc.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(d, &msg); err != nil {
			wc.reply(event.Error("", "malformed message"))
			continue
		}
		wc.handle(ctx, &msg)
	}
}

func (wc *WebstreamClient) handle(ctx context.Context, msg *clientMessage) {
	if msg.UserId == "" && msg.Type != CLeave {
		wc.reply(event.Error("", "userId required"))
		return
	}
	switch msg.Type {
	case CJoin:
		wc.join(ctx, msg.UserId)
	case CLeave:
		wc.leave()
	case CLocation:
		if msg.Note == event.NOTE_STOPPED || msg.Lat == nil || msg.Lng == nil {
			wc.srv.svc.Stop(ctx, msg.UserId)
			return
		}
		s := &position.Sample{Latitude: *msg.Lat, Longitude: *msg.Lng, Accuracy: msg.Acc, CapturedAt: msg.Ts.Time()}
		if err := wc.srv.svc.ReportPosition(ctx, msg.UserId, s); err != nil {
			wc.reply(event.Error(msg.UserId, err.Error()))
		}
	case CStop:
		wc.srv.svc.Stop(ctx, msg.UserId)
	case CAlert:
		wc.srv.svc.StartSharing(ctx, msg.UserId)
	case CClear:
		if err := wc.srv.svc.ClearHistory(ctx, msg.UserId); err != nil {
			wc.reply(event.Error(msg.UserId, err.Error()))
		}
	default:
		wc.log.Warn().Str("type", msg.Type).Msg("unknown message type")
		wc.reply(event.Error(msg.UserId, "unknown message type"))
	}
}

// join registers with the channel before querying history. Live events that arrive while the
// snapshot is fetched are held, then released after it minus those the snapshot already has.
func (wc *WebstreamClient) join(ctx context.Context, channel string) {
	wc.lock.Lock()
	wc.joined = channel
	wc.replaying = true
	wc.held = wc.held[:0]
	wc.lock.Unlock()

	wc.srv.svc.Join(channel, wc)
	samples, err := wc.srv.svc.ReplayHistory(ctx, channel)

	wc.lock.Lock()
	defer wc.lock.Unlock()
	wc.replaying = false
	if h := event.History(channel, samples); err != nil || !h.Encoded() {
		wc.enqueue(event.Error(channel, "history unavailable"))
	} else {
		wc.enqueue(h)
	}
	seen := make(map[uint64]bool, len(samples))
	for i := range samples {
		seen[samples[i].Seq] = true
	}
	for _, e := range wc.held {
		if e.Type == event.LOCATION_UPDATE && e.Seq != 0 && seen[e.Seq] {
			continue
		}
		wc.enqueue(e)
	}
	wc.held = nil
	wc.log.Debug().Str("channel", channel).Int("points", len(samples)).Msg("joined")
}

func (wc *WebstreamClient) leave() {
	wc.lock.Lock()
	channel := wc.joined
	wc.joined = ""
	wc.lock.Unlock()
	if channel != "" {
		wc.srv.svc.Leave(channel, wc)
	}
}

// Push never blocks. Frames beyond the buffer are dropped; live updates are best-effort.
func (wc *WebstreamClient) Push(e *event.Event) bool {
	wc.lock.Lock()
	defer wc.lock.Unlock()
	if wc.closed {
		return true
	}
	if wc.replaying && !global(e) {
		if e.Channel != wc.joined {
			return false
		}
		if len(wc.held) >= cap(wc.out) {
			atomic.AddUint64(&wc.skipped, 1)
			return false
		}
		wc.held = append(wc.held, e)
		return false
	}
	wc.enqueue(e)
	return false
}

func global(e *event.Event) bool {
	return e.Type == event.EMERGENCY_STARTED || e.Type == event.CONTACTS_UPDATED
}

// enqueue must be called with wc.lock held.
func (wc *WebstreamClient) enqueue(e *event.Event) {
	if !e.Encoded() {
		atomic.AddUint64(&wc.skipped, 1)
		return
	}
	select {
	case wc.out <- e.Data:
		atomic.AddUint64(&wc.pushed, 1)
	default:
		atomic.AddUint64(&wc.skipped, 1)
	}
}

func (wc *WebstreamClient) reply(e *event.Event) {
	wc.lock.Lock()
	wc.enqueue(e)
	wc.lock.Unlock()
}

func (wc *WebstreamClient) writeLoop(ctx context.Context) {
	defer wc.wg.Done()
	defer wc.close()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-wc.out:
			wctx, cancel := context.WithTimeout(ctx, wc.srv.config.WriteTimeout)
			err := wc.c.Write(wctx, websocket.MessageText, d)
			cancel()
			if err != nil {
				wc.log.Debug().Err(err).Msg("Error while writing to connection")
				return
			}
		}
	}
}
