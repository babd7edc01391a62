package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
)

var ErrInvalidSample = errors.New("invalid sample")

// Sample is one reported position of a channel. Seq is assigned by the store on insert
// and is the tiebreak when CapturedAt values collide.
type Sample struct {
	Seq        uint64    `json:"seq"`
	ChannelId  string    `json:"userId" validate:"required"`
	Latitude   float64   `json:"lat" validate:"gte=-90,lte=90"`
	Longitude  float64   `json:"lng" validate:"gte=-180,lte=180"`
	Accuracy   float64   `json:"acc" validate:"gte=0"`
	CapturedAt time.Time `json:"ts"`
}

var validate = validator.New()

// Validate returns an error wrapping ErrInvalidSample when coordinates, accuracy or the capture
// year are out of range. NaN and infinities fail the range checks. A zero CapturedAt is accepted.
func (s *Sample) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		// years outside 0..9999 have no RFC 3339 form and cannot be encoded
		if y := s.CapturedAt.Year(); y < 0 || y > 9999 {
			return fmt.Errorf("%w: CapturedAt year %d out of range", ErrInvalidSample, y)
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed on '%s'", ErrInvalidSample, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidSample, err.Error())
}

func (s *Sample) MarshalObject(e *log.Entry) {
	e.Str("channel", s.ChannelId).Uint64("seq", s.Seq).Float64("lat", s.Latitude).Float64("lng", s.Longitude).Float64("acc", s.Accuracy).Time("ts", s.CapturedAt)
}
