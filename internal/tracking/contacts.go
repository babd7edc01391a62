package tracking

import (
	"context"

	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/event"
)

func (s *Service) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	return s.contacts.ListContacts(ctx)
}

// CreateContact assigns the new contact's channel id from its name.
func (s *Service) CreateContact(ctx context.Context, name, phone string) (*contact.Contact, error) {
	c := &contact.Contact{Name: name, Phone: phone}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	id, err := s.ids.ChannelId(c.Name)
	if err != nil {
		return nil, err
	}
	c.ChannelId = id
	if err := s.contacts.CreateContact(ctx, c); err != nil {
		s.log.Error().Err(err).EmbedObject(c).Msg("create contact failed")
		return nil, err
	}
	s.log.Info().EmbedObject(c).Msg("contact created")
	s.registry.BroadcastAll(event.ContactsUpdated())
	return c, nil
}

func (s *Service) UpdateContact(ctx context.Context, c *contact.Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.contacts.UpdateContact(ctx, c); err != nil {
		return err
	}
	s.registry.BroadcastAll(event.ContactsUpdated())
	return nil
}

// DeleteContact also removes the channel's history, so its viewers are told to drop their trail.
func (s *Service) DeleteContact(ctx context.Context, channel string) error {
	if err := s.contacts.DeleteContact(ctx, channel); err != nil {
		return err
	}
	s.log.Info().Str("channel", channel).Msg("contact deleted")
	s.registry.Broadcast(channel, event.HistoryCleared(channel))
	s.registry.BroadcastAll(event.ContactsUpdated())
	return nil
}
