package entity

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// 6-digit code space; values are reused over time, only uniqueness among
// currently active codes matters.
const (
	codeMin = 100000
	codeMax = 999999
)

var (
	// ErrDuplicateCode reports a drawn code value colliding with another
	// active code. The caller redraws.
	ErrDuplicateCode = errors.New("code value already active")
	// ErrMaxActive reports that the concurrency budget is taken by other
	// requesters at insert time.
	ErrMaxActive = errors.New("max active codes reached")
	// ErrCodeNotAvailable reports a claim on a code that is missing, expired
	// or already used.
	ErrCodeNotAvailable = errors.New("code not found, expired or already used")
	// ErrChannelNotFound reports an operator action on an unknown channel id.
	ErrChannelNotFound = errors.New("channel not found")
)

// AccessCode is a single-use code bound to the Telegram user it was issued
// for. Rows are never deleted by the service: used and expired codes remain
// for audit and for the total_used counter.
type AccessCode struct {
	Code           string    `json:"code" bson:"code"`
	TelegramUserId int64     `json:"telegram_user_id" bson:"telegram_user_id"`
	IssuedAt       time.Time `json:"issued_at" bson:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at" bson:"expires_at"`
	Used           bool      `json:"used" bson:"used"`
	UsedBy         string    `json:"used_by,omitempty" bson:"used_by,omitempty"`
}

// IsActive reports whether the code still occupies a concurrency slot:
// not used and not expired at the given instant.
func (c *AccessCode) IsActive(now time.Time) bool {
	return !c.Used && c.ExpiresAt.After(now)
}

// NewCodeValue draws a uniform value from the 6-digit space. Collisions with
// active codes are possible and handled by the store, not assumed away.
func NewCodeValue() string {
	return fmt.Sprintf("%d", codeMin+rand.IntN(codeMax-codeMin+1))
}
