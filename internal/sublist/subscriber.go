package sublist

import "nuha.dev/locshare/internal/event"

// Subscriber is a viewer connection. Push must not block; it reports closed=true once the
// connection can no longer take events, which removes it from every list it is on.
type Subscriber interface {
	Push(e *event.Event) (closed bool)
}
