package notify

import (
	"context"
	"errors"
)

// Notifier sends a text message to a phone number.
type Notifier interface {
	Send(ctx context.Context, phone string, body string) error
}

// Multi sends through every notifier and joins their errors. The first notifier is the primary
// channel, the rest are mirrors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, phone string, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, phone, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
