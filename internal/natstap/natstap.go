package natstap

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/phuslu/log"
)

const SUBJECT_PREFIX = "locshare.location."

type publisher interface {
	Publish(subject string, data []byte) error
}

// Tap exports accepted live frames to nats, one subject per channel.
type Tap struct {
	conn *nats.Conn
	pub  publisher
	log  log.Logger
}

func Connect(url string) (*Tap, error) {
	conn, err := nats.Connect(url,
		nats.Name("locshare"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	t := newTap(conn)
	t.conn = conn
	return t, nil
}

func newTap(pub publisher) *Tap {
	t := &Tap{pub: pub}
	t.log = log.DefaultLogger
	t.log.Context = log.NewContext(nil).Str("module", "natstap").Value()
	return t
}

var subject_replacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func Subject(channel string) string {
	return SUBJECT_PREFIX + subject_replacer.Replace(channel)
}

func (t *Tap) Publish(channel string, data []byte) error {
	return t.pub.Publish(Subject(channel), data)
}

func (t *Tap) Close() {
	if t == nil || t.conn == nil {
		return
	}
	if err := t.conn.Drain(); err != nil {
		t.log.Warn().Err(err).Msg("nats drain failed")
	}
	t.conn.Close()
}
