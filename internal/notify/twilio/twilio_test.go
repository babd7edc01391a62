package twilio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestNewSenderMissingCredentials(t *testing.T) {
	_, err := NewSender(TwilioConfig{AccountSid: "AC1", AuthToken: "tok"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestSend(t *testing.T) {
	api := &fakeAPI{}
	s := newSender(api, "+15550000")

	require.NoError(t, s.Send(context.Background(), "+919876543210", "hello"))
	require.NotNil(t, api.params)
	assert.Equal(t, "+919876543210", *api.params.To)
	assert.Equal(t, "+15550000", *api.params.From)
	assert.Equal(t, "hello", *api.params.Body)
}

func TestSendError(t *testing.T) {
	api := &fakeAPI{err: errors.New("unauthorized")}
	s := newSender(api, "+15550000")
	assert.Error(t, s.Send(context.Background(), "+1", "x"))
}

func TestSendCancelled(t *testing.T) {
	api := &fakeAPI{}
	s := newSender(api, "+15550000")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "+1", "x"), context.Canceled)
	assert.Nil(t, api.params)
}
