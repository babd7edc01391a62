package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type BasicResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// Timestamp accepts either an RFC 3339 string or epoch milliseconds, as browsers send both.
// null or an empty string leaves it zero.
type Timestamp time.Time

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		v, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("bad timestamp %q: %w", s, err)
		}
		*t = Timestamp(v)
		return nil
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("bad timestamp %s: %w", string(b), err)
	}
	*t = Timestamp(time.UnixMilli(int64(ms)).UTC())
	return nil
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
