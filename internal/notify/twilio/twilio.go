package twilio

import (
	"context"
	"errors"

	"github.com/phuslu/log"
	twilio "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrMissingCredentials = errors.New("twilio credentials not configured")

type TwilioConfig struct {
	AccountSid  string
	AuthToken   string
	PhoneNumber string
}

func (c TwilioConfig) Complete() bool {
	return c.AccountSid != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

type messageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Sender struct {
	api  messageAPI
	from string
	log  log.Logger
}

func NewSender(config TwilioConfig) (*Sender, error) {
	if !config.Complete() {
		return nil, ErrMissingCredentials
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})
	return newSender(client.Api, config.PhoneNumber), nil
}

func newSender(api messageAPI, from string) *Sender {
	s := &Sender{api: api, from: from}
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "twilio").Value()
	return s
}

// Send does not honour ctx cancellation once the request is in flight.
func (s *Sender) Send(ctx context.Context, phone string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(s.from)
	params.SetBody(body)
	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return err
	}
	e := s.log.Info().Str("to", phone)
	if resp != nil && resp.Sid != nil {
		e = e.Str("sid", *resp.Sid)
	}
	e.Msg("sms sent")
	return nil
}
