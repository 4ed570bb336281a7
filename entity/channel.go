package entity

import (
	"net/http"
	"tgaccess/lib/validate"
	"time"
)

// Channel is a Telegram channel or group the user must be a member of before
// an access code is issued. Deactivated channels are excluded from membership
// checks but kept so historical codes stay attributable.
type Channel struct {
	Id        string    `json:"id" bson:"id"`
	ChannelId int64     `json:"channel_id" bson:"channel_id" validate:"required"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Url       string    `json:"url" bson:"url" validate:"omitempty,url"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (c *Channel) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

// ChannelLink is the public projection handed to users who still have
// channels left to join.
type ChannelLink struct {
	Name string `json:"name"`
	Url  string `json:"url"`
}

func (c *Channel) Link() ChannelLink {
	return ChannelLink{Name: c.Name, Url: c.Url}
}
