package membership

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"tgaccess/entity"
)

type fakeChecker struct {
	mu      sync.Mutex
	member  map[int64]bool
	failing map[int64]bool
	calls   int
}

func (f *fakeChecker) IsMember(chatId, userId int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing[chatId] {
		return false, fmt.Errorf("telegram: timeout")
	}
	return f.member[chatId], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func channelList() []*entity.Channel {
	return []*entity.Channel{
		{Id: "a", ChannelId: -1001, Name: "Main Channel", Url: "https://t.me/main"},
		{Id: "b", ChannelId: -1002, Name: "Chat Group", Url: "https://t.me/chat"},
	}
}

func TestCheckAllJoined(t *testing.T) {
	checker := &fakeChecker{member: map[int64]bool{-1001: true, -1002: true}}
	v := New(checker, testLogger())

	report := v.Check(42, channelList())
	assert.True(t, report.AllJoined)
	assert.Empty(t, report.NotJoined)
	assert.Equal(t, 2, checker.calls, "every channel is checked")
}

func TestCheckNamesOnlyMissingChannels(t *testing.T) {
	checker := &fakeChecker{member: map[int64]bool{-1001: true, -1002: false}}
	v := New(checker, testLogger())

	report := v.Check(42, channelList())
	assert.False(t, report.AllJoined)
	assert.Equal(t, []string{"Chat Group"}, report.NotJoined)
}

func TestCheckFailClosedOnLookupError(t *testing.T) {
	// a failing lookup counts as not joined, and must not stop the check
	// of the other channel
	checker := &fakeChecker{
		member:  map[int64]bool{-1002: true},
		failing: map[int64]bool{-1001: true},
	}
	v := New(checker, testLogger())

	report := v.Check(42, channelList())
	assert.False(t, report.AllJoined)
	assert.Equal(t, []string{"Main Channel"}, report.NotJoined)
	assert.Equal(t, 2, checker.calls)
}

func TestCheckNoChannels(t *testing.T) {
	checker := &fakeChecker{}
	v := New(checker, testLogger())

	report := v.Check(42, nil)
	assert.True(t, report.AllJoined)
	assert.Zero(t, checker.calls)
}

func TestCheckPreservesChannelOrder(t *testing.T) {
	checker := &fakeChecker{}
	v := New(checker, testLogger())

	report := v.Check(42, channelList())
	assert.Equal(t, []string{"Main Channel", "Chat Group"}, report.NotJoined)
}
