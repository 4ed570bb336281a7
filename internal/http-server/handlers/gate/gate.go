package gate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tgaccess/entity"
	"tgaccess/lib/sl"
)

// Core is the access gate service behind the action endpoint.
type Core interface {
	Status() (*entity.GateStatus, error)
	Channels() ([]*entity.Channel, error)
	Generate(userId int64) (*entity.GenerateOutcome, error)
	Verify(code string) (*entity.AccessCode, error)
	Claim(identity *entity.Identity, code string) error
	AuthenticateByToken(token string) (*entity.Identity, error)
}

// One response shape per action outcome; the tag is the error field.

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type statusResponse struct {
	Success       bool    `json:"success"`
	ActiveCodes   int     `json:"active_codes"`
	MaxConcurrent int     `json:"max_concurrent"`
	CanGenerate   bool    `json:"can_generate"`
	TotalUsed     int64   `json:"total_used"`
	ActiveUsers   []int64 `json:"active_users"`
}

type channelsResponse struct {
	Success  bool              `json:"success"`
	Channels []*entity.Channel `json:"channels"`
}

type codeResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
}

type capacityResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Message     string `json:"message"`
	ActiveCount int    `json:"active_count"`
}

type notMemberResponse struct {
	Success   bool                 `json:"success"`
	Error     string               `json:"error"`
	NotJoined []string             `json:"not_joined"`
	Channels  []entity.ChannelLink `json:"channels"`
}

type verifyResponse struct {
	Success        bool  `json:"success"`
	TelegramUserId int64 `json:"telegram_user_id"`
}

type claimResponse struct {
	Success bool `json:"success"`
}

// Action dispatches the gate operations on the action query parameter:
// status, channels, generate, verify, claim.
func Action(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")
		log := logger.With(
			sl.Module("http.handlers.gate"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("action", action),
		)

		if handler == nil {
			log.Error("gate service not available")
			render.Status(r, 500)
			render.JSON(w, r, errorResponse{Error: "unavailable", Message: "Gate service not available"})
			return
		}

		switch action {
		case "status":
			status(w, r, log, handler)
		case "channels":
			channels(w, r, log, handler)
		case "generate":
			generate(w, r, log, handler)
		case "verify":
			verify(w, r, log, handler)
		case "claim":
			claim(w, r, log, handler)
		default:
			log.Warn("unknown action")
			render.Status(r, 400)
			render.JSON(w, r, errorResponse{Error: "invalid_action", Message: "Invalid action"})
		}
	}
}

func status(w http.ResponseWriter, r *http.Request, log *slog.Logger, handler Core) {
	st, err := handler.Status()
	if err != nil {
		fail(w, r, log, "gate status", err)
		return
	}
	render.JSON(w, r, statusResponse{
		Success:       true,
		ActiveCodes:   st.ActiveCodes,
		MaxConcurrent: st.MaxConcurrent,
		CanGenerate:   st.CanGenerate,
		TotalUsed:     st.TotalUsed,
		ActiveUsers:   st.ActiveUsers,
	})
}

func channels(w http.ResponseWriter, r *http.Request, log *slog.Logger, handler Core) {
	list, err := handler.Channels()
	if err != nil {
		fail(w, r, log, "list channels", err)
		return
	}
	if list == nil {
		list = []*entity.Channel{}
	}
	render.JSON(w, r, channelsResponse{Success: true, Channels: list})
}

func generate(w http.ResponseWriter, r *http.Request, log *slog.Logger, handler Core) {
	var req entity.GenerateRequest
	if err := render.Bind(r, &req); err != nil {
		log.Warn("bind request", sl.Err(err))
		render.Status(r, 400)
		render.JSON(w, r, errorResponse{Error: "invalid_request", Message: fmt.Sprintf("Invalid request: %v", err)})
		return
	}
	log = log.With(slog.Int64("user_id", req.TelegramUserId))

	outcome, err := handler.Generate(req.TelegramUserId)
	if err != nil {
		fail(w, r, log, "generate code", err)
		return
	}

	switch {
	case outcome.Issued():
		render.JSON(w, r, codeResponse{Success: true, Code: outcome.Code})
	case outcome.Declined == entity.DeclineMaxUsers:
		render.JSON(w, r, capacityResponse{
			Error:       entity.DeclineMaxUsers,
			Message:     "Maximum concurrent users reached. Please try again later.",
			ActiveCount: outcome.ActiveCount,
		})
	case outcome.Declined == entity.DeclineNotMember:
		render.JSON(w, r, notMemberResponse{
			Error:     entity.DeclineNotMember,
			NotJoined: outcome.NotJoined,
			Channels:  outcome.Channels,
		})
	default:
		fail(w, r, log, "generate code", fmt.Errorf("unknown outcome %q", outcome.Declined))
	}
}

func verify(w http.ResponseWriter, r *http.Request, log *slog.Logger, handler Core) {
	var req entity.CodeRequest
	if err := render.Bind(r, &req); err != nil {
		log.Warn("bind request", sl.Err(err))
		render.Status(r, 400)
		render.JSON(w, r, errorResponse{Error: "invalid_request", Message: fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	code, err := handler.Verify(req.Code)
	if err != nil {
		fail(w, r, log, "verify code", err)
		return
	}
	if code == nil {
		render.JSON(w, r, errorResponse{Error: "invalid_code"})
		return
	}
	render.JSON(w, r, verifyResponse{Success: true, TelegramUserId: code.TelegramUserId})
}

func claim(w http.ResponseWriter, r *http.Request, log *slog.Logger, handler Core) {
	token := bearerToken(r)
	if token == "" {
		log.Warn("missing bearer token")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, errorResponse{Error: "unauthorized", Message: "Authorization required"})
		return
	}
	identity, err := handler.AuthenticateByToken(token)
	if err != nil {
		log.Warn("authenticate", sl.Err(err), sl.Secret("token", token))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, errorResponse{Error: "unauthorized", Message: "Invalid token"})
		return
	}
	log = log.With(slog.String("user", identity.Id))

	var req entity.CodeRequest
	if err = render.Bind(r, &req); err != nil {
		log.Warn("bind request", sl.Err(err))
		render.Status(r, 400)
		render.JSON(w, r, errorResponse{Error: "invalid_request", Message: fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	if err = handler.Claim(identity, req.Code); err != nil {
		if errors.Is(err, entity.ErrCodeNotAvailable) {
			log.Info("claim declined", sl.Err(err))
			render.JSON(w, r, errorResponse{Error: "invalid_code"})
			return
		}
		fail(w, r, log, "claim code", err)
		return
	}
	render.JSON(w, r, claimResponse{Success: true})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.Contains(header, "Bearer") {
		return ""
	}
	parts := strings.Split(header, " ")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error) {
	log.Error(op, sl.Err(err))
	render.Status(r, 500)
	render.JSON(w, r, errorResponse{Error: "internal_error", Message: fmt.Sprintf("Request failed: %v", err)})
}
