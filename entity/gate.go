package entity

import (
	"net/http"
	"tgaccess/lib/validate"
)

// Decline reasons carried by GenerateOutcome. Declines are business outcomes,
// not faults: the caller renders actionable guidance from the attached detail.
const (
	DeclineMaxUsers  = "max_users_reached"
	DeclineNotMember = "not_member"
)

// GenerateRequest is the body of the generate action.
type GenerateRequest struct {
	TelegramUserId int64 `json:"telegram_user_id" validate:"required"`
}

func (g *GenerateRequest) Bind(_ *http.Request) error {
	return validate.Struct(g)
}

// CodeRequest is the body of the verify and claim actions.
type CodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

func (c *CodeRequest) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

// GenerateOutcome is the tagged result of generate: either an issued code or
// exactly one structured decline.
type GenerateOutcome struct {
	Code        string
	Declined    string        // empty when a code was issued
	ActiveCount int           // set with DeclineMaxUsers
	NotJoined   []string      // set with DeclineNotMember, channel order
	Channels    []ChannelLink // join links, set with DeclineNotMember
}

func (o *GenerateOutcome) Issued() bool {
	return o.Declined == ""
}

// GateStatus is the side-effect-free snapshot returned by the status action.
type GateStatus struct {
	ActiveCodes   int     `json:"active_codes"`
	MaxConcurrent int     `json:"max_concurrent"`
	CanGenerate   bool    `json:"can_generate"`
	TotalUsed     int64   `json:"total_used"`
	ActiveUsers   []int64 `json:"active_users"`
}

// MembershipReport collects the verdicts of one generate call's checks.
// NotJoined follows channel iteration order.
type MembershipReport struct {
	AllJoined bool
	NotJoined []string
}
