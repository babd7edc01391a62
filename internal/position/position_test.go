package position

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	base := Sample{ChannelId: "alice", Latitude: 12.9, Longitude: 77.6, Accuracy: 10, CapturedAt: time.Now()}
	tests := []struct {
		name  string
		edit  func(s *Sample)
		valid bool
	}{
		{"ok", func(s *Sample) {}, true},
		{"edge", func(s *Sample) { s.Latitude = -90; s.Longitude = 180; s.Accuracy = 0 }, true},
		{"lat too large", func(s *Sample) { s.Latitude = 1000 }, false},
		{"lat too small", func(s *Sample) { s.Latitude = -90.0001 }, false},
		{"lng too large", func(s *Sample) { s.Longitude = 180.5 }, false},
		{"negative accuracy", func(s *Sample) { s.Accuracy = -1 }, false},
		{"nan", func(s *Sample) { s.Latitude = math.NaN() }, false},
		{"inf", func(s *Sample) { s.Longitude = math.Inf(1) }, false},
		{"no channel", func(s *Sample) { s.ChannelId = "" }, false},
		{"zero time", func(s *Sample) { s.CapturedAt = time.Time{} }, true},
		{"year 9999", func(s *Sample) { s.CapturedAt = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC) }, true},
		{"year 10000", func(s *Sample) { s.CapturedAt = time.UnixMilli(253402300800000).UTC() }, false},
		{"negative year", func(s *Sample) { s.CapturedAt = time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.edit(&s)
			err := s.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidSample) {
				t.Errorf("expected ErrInvalidSample, got %v", err)
			}
		})
	}
}
