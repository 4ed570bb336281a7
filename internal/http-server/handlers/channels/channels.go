package channels

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tgaccess/entity"
	"tgaccess/lib/api/cont"
	"tgaccess/lib/api/response"
	"tgaccess/lib/sl"
	"tgaccess/lib/validate"
)

// Core is the channel registry surface exposed to operators.
type Core interface {
	AllChannels() ([]*entity.Channel, error)
	AddChannel(channel *entity.Channel) (*entity.Channel, error)
	RemoveChannel(id string) error
	EnableChannel(id string, active bool) error
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (a *activeRequest) Bind(_ *http.Request) error {
	return validate.Struct(a)
}

func List(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(logger, r)
		if !requireAdmin(w, r, log) {
			return
		}

		list, err := handler.AllChannels()
		if err != nil {
			log.Error("list channels", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		if list == nil {
			list = []*entity.Channel{}
		}
		render.JSON(w, r, response.Ok(list))
	}
}

func Create(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(logger, r)
		if !requireAdmin(w, r, log) {
			return
		}

		var channel entity.Channel
		if err := render.Bind(r, &channel); err != nil {
			log.Warn("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		created, err := handler.AddChannel(&channel)
		if err != nil {
			log.Error("add channel", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.Debug("channel created", slog.String("id", created.Id))
		render.JSON(w, r, response.Ok(created))
	}
}

func Delete(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := requestLogger(logger, r).With(slog.String("id", id))
		if !requireAdmin(w, r, log) {
			return
		}

		if err := handler.RemoveChannel(id); err != nil {
			if errors.Is(err, entity.ErrChannelNotFound) {
				render.Status(r, 404)
				render.JSON(w, r, response.Error("Channel not found"))
				return
			}
			log.Error("remove channel", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.Debug("channel removed")
		render.JSON(w, r, response.Ok(nil))
	}
}

func SetActive(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := requestLogger(logger, r).With(slog.String("id", id))
		if !requireAdmin(w, r, log) {
			return
		}

		var req activeRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		if err := handler.EnableChannel(id, *req.Active); err != nil {
			if errors.Is(err, entity.ErrChannelNotFound) {
				render.Status(r, 404)
				render.JSON(w, r, response.Error("Channel not found"))
				return
			}
			log.Error("set channel active", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.Debug("channel toggled", slog.Bool("active", *req.Active))
		render.JSON(w, r, response.Ok(nil))
	}
}

func requestLogger(logger *slog.Logger, r *http.Request) *slog.Logger {
	return logger.With(
		sl.Module("http.handlers.channels"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func requireAdmin(w http.ResponseWriter, r *http.Request, log *slog.Logger) bool {
	identity := cont.GetIdentity(r.Context())
	if !identity.IsAdmin() {
		log.Warn("forbidden", slog.String("user", identity.Id))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("Admin role required"))
		return false
	}
	return true
}
