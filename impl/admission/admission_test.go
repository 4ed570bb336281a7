package admission

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgaccess/entity"
)

type fakeDB struct {
	codes []*entity.AccessCode
	err   error
}

func (f *fakeDB) ActiveCodes() ([]*entity.AccessCode, error) {
	return f.codes, f.err
}

func activeCode(userId int64) *entity.AccessCode {
	return &entity.AccessCode{
		Code:           entity.NewCodeValue(),
		TelegramUserId: userId,
		ExpiresAt:      time.Now().Add(30 * time.Minute),
	}
}

func TestCanIssueUnderCap(t *testing.T) {
	c := New(&fakeDB{codes: []*entity.AccessCode{activeCode(100)}}, 2)

	allowed, count, err := c.CanIssue(200)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestCanIssueAtCapDeniesNewRequester(t *testing.T) {
	db := &fakeDB{codes: []*entity.AccessCode{activeCode(100), activeCode(200)}}
	c := New(db, 2)

	allowed, count, err := c.CanIssue(300)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, count)
}

func TestCanIssueAtCapAllowsHolder(t *testing.T) {
	db := &fakeDB{codes: []*entity.AccessCode{activeCode(100), activeCode(200)}}
	c := New(db, 2)

	// a requester holding one of the active codes is never locked out by
	// their own slot
	allowed, count, err := c.CanIssue(200)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, count)
}

func TestCanIssueIgnoresInactiveCodes(t *testing.T) {
	expired := activeCode(100)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	used := activeCode(200)
	used.Used = true
	db := &fakeDB{codes: []*entity.AccessCode{expired, used, activeCode(300)}}
	c := New(db, 2)

	allowed, count, err := c.CanIssue(400)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count, "expired and used codes hold no slot")
}

func TestCanIssueStoreError(t *testing.T) {
	c := New(&fakeDB{err: fmt.Errorf("connection refused")}, 2)

	allowed, _, err := c.CanIssue(100)
	assert.Error(t, err)
	assert.False(t, allowed)
}
