package gate

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgaccess/entity"
)

type fakeCore struct {
	status     *entity.GateStatus
	channels   []*entity.Channel
	outcome    *entity.GenerateOutcome
	verifyCode *entity.AccessCode
	claimErr   error
	identity   *entity.Identity
	authErr    error

	generatedFor int64
	claimedCode  string
	claimedBy    *entity.Identity
}

func (f *fakeCore) Status() (*entity.GateStatus, error) {
	return f.status, nil
}

func (f *fakeCore) Channels() ([]*entity.Channel, error) {
	return f.channels, nil
}

func (f *fakeCore) Generate(userId int64) (*entity.GenerateOutcome, error) {
	f.generatedFor = userId
	return f.outcome, nil
}

func (f *fakeCore) Verify(_ string) (*entity.AccessCode, error) {
	return f.verifyCode, nil
}

func (f *fakeCore) Claim(identity *entity.Identity, code string) error {
	f.claimedBy = identity
	f.claimedCode = code
	return f.claimErr
}

func (f *fakeCore) AuthenticateByToken(_ string) (*entity.Identity, error) {
	return f.identity, f.authErr
}

func doRequest(t *testing.T, handler Core, method, action, body string, header http.Header) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/gate?action="+action, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	Action(log, handler)(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec.Code, decoded
}

func TestStatusAction(t *testing.T) {
	handler := &fakeCore{status: &entity.GateStatus{
		ActiveCodes:   1,
		MaxConcurrent: 2,
		CanGenerate:   true,
		TotalUsed:     7,
		ActiveUsers:   []int64{42},
	}}

	code, body := doRequest(t, handler, http.MethodGet, "status", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["active_codes"])
	assert.Equal(t, float64(2), body["max_concurrent"])
	assert.Equal(t, true, body["can_generate"])
	assert.Equal(t, float64(7), body["total_used"])
}

func TestChannelsAction(t *testing.T) {
	handler := &fakeCore{channels: []*entity.Channel{
		{Id: "a", ChannelId: -1001, Name: "Main", Url: "https://t.me/main", Active: true},
	}}

	code, body := doRequest(t, handler, http.MethodGet, "channels", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["channels"], 1)
}

func TestGenerateActionIssued(t *testing.T) {
	handler := &fakeCore{outcome: &entity.GenerateOutcome{Code: "123456"}}

	code, body := doRequest(t, handler, http.MethodPost, "generate", `{"telegram_user_id": 42}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "123456", body["code"])
	assert.Equal(t, int64(42), handler.generatedFor)
}

func TestGenerateActionMissingUserId(t *testing.T) {
	handler := &fakeCore{outcome: &entity.GenerateOutcome{Code: "123456"}}

	code, body := doRequest(t, handler, http.MethodPost, "generate", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Zero(t, handler.generatedFor, "the core is never reached")
}

func TestGenerateActionCapacityDeclined(t *testing.T) {
	handler := &fakeCore{outcome: &entity.GenerateOutcome{
		Declined:    entity.DeclineMaxUsers,
		ActiveCount: 2,
	}}

	code, body := doRequest(t, handler, http.MethodPost, "generate", `{"telegram_user_id": 42}`, nil)
	assert.Equal(t, http.StatusOK, code, "a decline is an outcome, not a fault")
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "max_users_reached", body["error"])
	assert.Equal(t, float64(2), body["active_count"])
}

func TestGenerateActionNotMember(t *testing.T) {
	handler := &fakeCore{outcome: &entity.GenerateOutcome{
		Declined:  entity.DeclineNotMember,
		NotJoined: []string{"Chat Group"},
		Channels: []entity.ChannelLink{
			{Name: "Main", Url: "https://t.me/main"},
			{Name: "Chat Group", Url: "https://t.me/chat"},
		},
	}}

	code, body := doRequest(t, handler, http.MethodPost, "generate", `{"telegram_user_id": 42}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "not_member", body["error"])
	assert.Equal(t, []any{"Chat Group"}, body["not_joined"])
	assert.Len(t, body["channels"], 2)
}

func TestVerifyActionValid(t *testing.T) {
	handler := &fakeCore{verifyCode: &entity.AccessCode{Code: "123456", TelegramUserId: 42}}

	code, body := doRequest(t, handler, http.MethodPost, "verify", `{"code": "123456"}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(42), body["telegram_user_id"])
}

func TestVerifyActionInvalid(t *testing.T) {
	handler := &fakeCore{}

	code, body := doRequest(t, handler, http.MethodPost, "verify", `{"code": "123456"}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "invalid_code", body["error"])
}

func TestVerifyActionBadCodeFormat(t *testing.T) {
	handler := &fakeCore{}

	code, body := doRequest(t, handler, http.MethodPost, "verify", `{"code": "abc"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestClaimActionRequiresToken(t *testing.T) {
	handler := &fakeCore{identity: &entity.Identity{Id: "acc-1"}}

	code, body := doRequest(t, handler, http.MethodPost, "claim", `{"code": "123456"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])
	assert.Nil(t, handler.claimedBy)
}

func TestClaimActionRejectsBadToken(t *testing.T) {
	handler := &fakeCore{authErr: fmt.Errorf("token is not valid")}
	header := http.Header{"Authorization": []string{"Bearer bad-token"}}

	code, body := doRequest(t, handler, http.MethodPost, "claim", `{"code": "123456"}`, header)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])
}

func TestClaimActionSuccess(t *testing.T) {
	handler := &fakeCore{identity: &entity.Identity{Id: "acc-1"}}
	header := http.Header{"Authorization": []string{"Bearer good-token"}}

	code, body := doRequest(t, handler, http.MethodPost, "claim", `{"code": "123456"}`, header)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "123456", handler.claimedCode)
	require.NotNil(t, handler.claimedBy)
	assert.Equal(t, "acc-1", handler.claimedBy.Id)
}

func TestClaimActionConsumedCode(t *testing.T) {
	handler := &fakeCore{
		identity: &entity.Identity{Id: "acc-1"},
		claimErr: entity.ErrCodeNotAvailable,
	}
	header := http.Header{"Authorization": []string{"Bearer good-token"}}

	code, body := doRequest(t, handler, http.MethodPost, "claim", `{"code": "123456"}`, header)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "invalid_code", body["error"])
}

func TestUnknownAction(t *testing.T) {
	handler := &fakeCore{}

	code, body := doRequest(t, handler, http.MethodGet, "reset", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_action", body["error"])
}
