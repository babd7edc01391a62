package contact

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
	hashids "github.com/speps/go-hashids/v2"
)

type Contact struct {
	ChannelId string `json:"userId"`
	Name      string `json:"name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

var ErrInvalidContact = errors.New("invalid contact")

var validate = validator.New()

func (c *Contact) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidContact, err.Error())
	}
	return nil
}

func (c *Contact) MarshalObject(e *log.Entry) {
	e.Str("channel", c.ChannelId).Str("contact_name", c.Name)
}

// IdGenerator derives channel ids for new contacts: the lowercased name with whitespace runs
// collapsed to '-', followed by a hashid of the creation time.
type IdGenerator struct {
	h   *hashids.HashID
	now func() time.Time
}

func NewIdGenerator(salt string) (*IdGenerator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 6
	hd.Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, err
	}
	return &IdGenerator{h: h, now: time.Now}, nil
}

func (g *IdGenerator) ChannelId(name string) (string, error) {
	suffix, err := g.h.EncodeInt64([]int64{g.now().UnixNano() / int64(time.Millisecond)})
	if err != nil {
		return "", err
	}
	return Slug(name) + "-" + suffix, nil
}

func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
