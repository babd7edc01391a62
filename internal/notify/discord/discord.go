package discord

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"
)

const (
	COLOR_ALERT = 16711712
	PACING      = 2 * time.Second
	USERNAME    = "locshare"
)

var ErrBadWebhookUrl = errors.New("bad discord webhook url")

type messageCreator interface {
	CreateMessage(messageCreate discord.WebhookMessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
}

// Mirror copies every alert into a discord channel for operators. The phone number is masked.
type Mirror struct {
	wh messageCreator
}

func NewMirror(webhook_url string) (*Mirror, error) {
	wh, err := parseWebhookUrl(webhook_url)
	if err != nil {
		return nil, err
	}
	return &Mirror{wh: wh}, nil
}

func parseWebhookUrl(webhook_url string) (webhook.Client, error) {
	u, err := url.Parse(webhook_url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadWebhookUrl, err.Error())
	}
	parts := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	if len(parts) < 2 {
		return nil, ErrBadWebhookUrl
	}
	id, err := snowflake.Parse(parts[len(parts)-2])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadWebhookUrl, err.Error())
	}
	return webhook.New(id, parts[len(parts)-1]), nil
}

func (m *Mirror) Send(ctx context.Context, phone string, body string) error {
	embed := discord.Embed{
		Title:       "Alert sent to " + mask(phone),
		Description: body,
		Type:        discord.EmbedTypeRich,
		Color:       COLOR_ALERT,
	}
	_, err := m.wh.CreateMessage(discord.NewWebhookMessageCreateBuilder().
		SetEmbeds(embed).
		SetUsername(USERNAME).
		Build(),
		rest.WithCtx(ctx),
		rest.WithDelay(PACING),
	)
	return err
}

func mask(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
