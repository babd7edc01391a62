package alert

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/event"
	"nuha.dev/locshare/internal/store"
)

const MESSAGE_FORMAT = "EMERGENCY ALERT: %s has started sharing their location with you. View live location: %s"

type Announcer interface {
	BroadcastAll(e *event.Event)
}

type TriggerConfig struct {
	PublicURL          string
	DefaultCountryCode string
}

type Trigger struct {
	contacts   store.ContactDirectory
	dispatcher *Dispatcher
	registry   Announcer
	config     TriggerConfig
	log        log.Logger
}

// NewTrigger creates the alert trigger. A nil dispatcher means no notification channel is
// configured; sharing is still announced locally.
func NewTrigger(contacts store.ContactDirectory, dispatcher *Dispatcher, registry Announcer, config TriggerConfig) *Trigger {
	if config.PublicURL == "" {
		config.PublicURL = "http://localhost:3000"
	}
	t := &Trigger{contacts: contacts, dispatcher: dispatcher, registry: registry, config: config}
	t.log = log.DefaultLogger
	t.log.Context = log.NewContext(nil).Str("module", "alert").Value()
	return t
}

// StartSharing notifies the channel's contact that sharing began. It never fails the caller;
// every problem on the way is only logged.
func (t *Trigger) StartSharing(ctx context.Context, channel string) {
	c, err := t.contacts.Lookup(ctx, channel)
	if err != nil {
		t.log.Error().Err(err).Str("channel", channel).Msg("contact lookup failed")
		return
	}
	if c == nil {
		t.log.Debug().Str("channel", channel).Msg("no contact registered, skipping alert")
		return
	}

	if t.dispatcher == nil {
		t.log.Warn().Err(ErrNotificationUnavailable).EmbedObject(c).Msg("sms not configured, alert not sent")
	} else {
		body := fmt.Sprintf(MESSAGE_FORMAT, c.Name, t.TrackingLink(channel))
		if err := t.dispatcher.Enqueue(channel, NormalizePhone(c.Phone, t.config.DefaultCountryCode), body); err != nil {
			t.log.Error().Err(err).EmbedObject(c).Msg("alert not queued")
		}
	}
	t.registry.BroadcastAll(event.EmergencyStarted(channel, c.Name))
}

func (t *Trigger) TrackingLink(channel string) string {
	return strings.TrimSuffix(t.config.PublicURL, "/") + "/receiver.html?track=" + url.QueryEscape(channel)
}

// NormalizePhone prefixes numbers that lack an international prefix with the default country code.
func NormalizePhone(phone string, country_code string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") || country_code == "" {
		return phone
	}
	if !strings.HasPrefix(country_code, "+") {
		country_code = "+" + country_code
	}
	return country_code + phone
}
