package store

import (
	"context"
	"errors"

	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/position"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrContactExists   = errors.New("contact already exists")
)

// PositionStore is the durable ordered log of samples per channel.
// Insert assigns s.Seq; QueryOrdered returns samples by CapturedAt then Seq.
type PositionStore interface {
	Insert(ctx context.Context, s *position.Sample) error
	QueryOrdered(ctx context.Context, channel string) ([]position.Sample, error)
	DeleteAll(ctx context.Context, channel string) error
}

// ContactDirectory returns (nil, nil) when the channel has no contact.
type ContactDirectory interface {
	Lookup(ctx context.Context, channel string) (*contact.Contact, error)
}

type ContactStore interface {
	ContactDirectory
	ListContacts(ctx context.Context) ([]contact.Contact, error)
	// CreateContact fails with ErrContactExists when the channel id is taken.
	CreateContact(ctx context.Context, c *contact.Contact) error
	UpdateContact(ctx context.Context, c *contact.Contact) error
	DeleteContact(ctx context.Context, channel string) error
}

type Store interface {
	PositionStore
	ContactStore
}
