package event

import (
	"encoding/json"
	"time"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/position"
)

const (
	LOCATION_UPDATE   string = "location_update"
	HISTORY           string = "history"
	HISTORY_CLEARED   string = "history_cleared"
	EMERGENCY_STARTED string = "emergency_started"
	CONTACTS_UPDATED  string = "contacts_updated"
	ERROR             string = "error"

	NOTE_STOPPED string = "stopped"
)

// Event is an encoded frame together with the fields receivers need for bookkeeping.
// Seq is the store sequence of the carried sample, zero for events that carry none.
type Event struct {
	Type    string
	Channel string
	Seq     uint64
	Data    []byte
}

type locationFrame struct {
	Type    string     `json:"type"`
	Channel string     `json:"userId"`
	Lat     *float64   `json:"lat"`
	Lng     *float64   `json:"lng"`
	Acc     *float64   `json:"acc,omitempty"`
	Ts      *time.Time `json:"ts,omitempty"`
	Seq     uint64     `json:"seq,omitempty"`
	Note    string     `json:"note,omitempty"`
}

type point struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	Acc float64   `json:"acc"`
	Ts  time.Time `json:"ts"`
	Seq uint64    `json:"seq"`
}

type historyFrame struct {
	Type    string  `json:"type"`
	Channel string  `json:"userId"`
	Points  []point `json:"points"`
}

type noticeFrame struct {
	Type        string `json:"type"`
	Channel     string `json:"userId,omitempty"`
	ContactName string `json:"contactName,omitempty"`
	Message     string `json:"message,omitempty"`
}

// encode returns nil when v cannot be marshalled. Such events are never written to a connection.
func encode(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "event").Msg("frame encode failed")
		return nil
	}
	return b
}

// Encoded reports whether the event carries a frame that can be sent.
func (e *Event) Encoded() bool {
	return len(e.Data) > 0
}

func Location(s *position.Sample) *Event {
	lat, lng, acc, ts := s.Latitude, s.Longitude, s.Accuracy, s.CapturedAt
	f := locationFrame{Type: LOCATION_UPDATE, Channel: s.ChannelId, Lat: &lat, Lng: &lng, Acc: &acc, Ts: &ts, Seq: s.Seq}
	return &Event{Type: LOCATION_UPDATE, Channel: s.ChannelId, Seq: s.Seq, Data: encode(f)}
}

// Stopped is the sentinel sent when the sender stops sharing. Receivers recognise it by
// note="stopped" and null coordinates; it is never a position.
func Stopped(channel string) *Event {
	f := locationFrame{Type: LOCATION_UPDATE, Channel: channel, Note: NOTE_STOPPED}
	return &Event{Type: LOCATION_UPDATE, Channel: channel, Data: encode(f)}
}

func History(channel string, samples []position.Sample) *Event {
	f := historyFrame{Type: HISTORY, Channel: channel, Points: make([]point, 0, len(samples))}
	var last uint64
	for i := range samples {
		s := &samples[i]
		f.Points = append(f.Points, point{Lat: s.Latitude, Lng: s.Longitude, Acc: s.Accuracy, Ts: s.CapturedAt, Seq: s.Seq})
		if s.Seq > last {
			last = s.Seq
		}
	}
	return &Event{Type: HISTORY, Channel: channel, Seq: last, Data: encode(f)}
}

func HistoryCleared(channel string) *Event {
	return &Event{Type: HISTORY_CLEARED, Channel: channel, Data: encode(noticeFrame{Type: HISTORY_CLEARED, Channel: channel})}
}

func EmergencyStarted(channel string, contact_name string) *Event {
	f := noticeFrame{Type: EMERGENCY_STARTED, Channel: channel, ContactName: contact_name}
	return &Event{Type: EMERGENCY_STARTED, Channel: channel, Data: encode(f)}
}

func ContactsUpdated() *Event {
	return &Event{Type: CONTACTS_UPDATED, Data: encode(noticeFrame{Type: CONTACTS_UPDATED})}
}

// Error is addressed to a single connection only, e.g. a sender whose sample was rejected.
func Error(channel string, message string) *Event {
	f := noticeFrame{Type: ERROR, Channel: channel, Message: message}
	return &Event{Type: ERROR, Channel: channel, Data: encode(f)}
}

// Stopped events share the location_update type; IsStopped tells them apart.
func (e *Event) IsStopped() bool {
	return e.Type == LOCATION_UPDATE && e.Seq == 0
}
