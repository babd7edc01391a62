package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/notify"
)

var ErrNotificationUnavailable = errors.New("notification unavailable")

type DispatcherConfig struct {
	Workers     int
	QueueDepth  int
	SendTimeout time.Duration
}

type task struct {
	channel string
	phone   string
	body    string
}

// Dispatcher sends notifications from a bounded queue on a fixed set of workers.
type Dispatcher struct {
	notifier notify.Notifier
	config   DispatcherConfig
	queue    chan task
	wg       sync.WaitGroup
	log      log.Logger

	// mu orders Enqueue against Close so no task lands after the workers drain
	mu         sync.RWMutex
	close_once sync.Once
	closed     chan struct{}

	sent    uint64
	failed  uint64
	dropped uint64
}

type DispatcherStat struct {
	Queued  int    `json:"queued"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

func NewDispatcher(n notify.Notifier, config DispatcherConfig) *Dispatcher {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueDepth < 1 {
		config.QueueDepth = 1
	}
	d := &Dispatcher{notifier: n, config: config}
	d.queue = make(chan task, config.QueueDepth)
	d.closed = make(chan struct{})
	d.log = log.DefaultLogger
	d.log.Context = log.NewContext(nil).Str("module", "alert_dispatcher").Value()
	for i := 0; i < config.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue never blocks. A full or closed queue drops the task.
func (d *Dispatcher) Enqueue(channel, phone, body string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.closed:
		atomic.AddUint64(&d.dropped, 1)
		return fmt.Errorf("%w: dispatcher closed", ErrNotificationUnavailable)
	default:
	}
	select {
	case d.queue <- task{channel: channel, phone: phone, body: body}:
		return nil
	default:
		atomic.AddUint64(&d.dropped, 1)
		return fmt.Errorf("%w: queue full", ErrNotificationUnavailable)
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case t := <-d.queue:
			d.send(t)
		case <-d.closed:
			// drain what was accepted before close
			for {
				select {
				case t := <-d.queue:
					d.send(t)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) send(t task) {
	ctx := context.Background()
	if d.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.SendTimeout)
		defer cancel()
	}
	if err := d.notifier.Send(ctx, t.phone, t.body); err != nil {
		atomic.AddUint64(&d.failed, 1)
		d.log.Error().Err(fmt.Errorf("%w: %s", ErrNotificationUnavailable, err.Error())).Str("channel", t.channel).Msg("alert dispatch failed")
		return
	}
	atomic.AddUint64(&d.sent, 1)
	d.log.Info().Str("channel", t.channel).Msg("alert dispatched")
}

// Close stops accepting tasks and waits for the workers to finish the queue.
func (d *Dispatcher) Close() {
	d.close_once.Do(func() {
		d.mu.Lock()
		close(d.closed)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) Stat() DispatcherStat {
	return DispatcherStat{
		Queued:  len(d.queue),
		Sent:    atomic.LoadUint64(&d.sent),
		Failed:  atomic.LoadUint64(&d.failed),
		Dropped: atomic.LoadUint64(&d.dropped),
	}
}
