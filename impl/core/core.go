package core

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tgaccess/entity"
	"tgaccess/lib/sl"
)

// Database is the durable store every operation coordinates through. It is
// the single source of truth shared by all instances of the service.
type Database interface {
	ActiveChannels() ([]*entity.Channel, error)
	Channels() ([]*entity.Channel, error)
	CreateChannel(channel *entity.Channel) error
	DeleteChannel(id string) error
	SetChannelActive(id string, active bool) error

	ActiveCodes() ([]*entity.AccessCode, error)
	CountUsedCodes() (int64, error)
	ActiveCodeByOwner(userId int64) (*entity.AccessCode, error)
	ActiveCodeByValue(code string) (*entity.AccessCode, error)
	InsertActiveCode(code *entity.AccessCode, maxActive int) error
	MarkCodeUsed(code string, usedBy string) error
	SetProfileVerified(userId string) error
}

type AuthService interface {
	IdentityByToken(token string) (*entity.Identity, error)
}

type AdmissionService interface {
	CanIssue(userId int64) (bool, int, error)
}

type MembershipService interface {
	Check(userId int64, channels []*entity.Channel) *entity.MembershipReport
}

// Retries for redrawing a code value on a collision with an active code.
const insertRetries = 3

type Core struct {
	db         Database
	auth       AuthService
	admission  AdmissionService
	membership MembershipService
	maxActive  int
	codeTtl    time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func New(db Database, admission AdmissionService, maxActive int, codeTtl time.Duration, log *slog.Logger) *Core {
	if db == nil {
		panic("database is nil")
	}
	return &Core{
		db:        db,
		admission: admission,
		maxActive: maxActive,
		codeTtl:   codeTtl,
		now:       time.Now,
		log:       log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetMembershipService(membership MembershipService) {
	c.membership = membership
}

func (c *Core) AuthenticateByToken(token string) (*entity.Identity, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.IdentityByToken(token)
}

// Status reports the concurrency snapshot. Side-effect free.
func (c *Core) Status() (*entity.GateStatus, error) {
	codes, err := c.db.ActiveCodes()
	if err != nil {
		return nil, err
	}
	used, err := c.db.CountUsedCodes()
	if err != nil {
		return nil, err
	}

	now := c.now()
	status := &entity.GateStatus{
		MaxConcurrent: c.maxActive,
		TotalUsed:     used,
		ActiveUsers:   []int64{},
	}
	for _, code := range codes {
		if !code.IsActive(now) {
			continue
		}
		status.ActiveCodes++
		status.ActiveUsers = append(status.ActiveUsers, code.TelegramUserId)
	}
	status.CanGenerate = status.ActiveCodes < c.maxActive
	return status, nil
}

// Channels lists the channels a user has to join. Side-effect free.
func (c *Core) Channels() ([]*entity.Channel, error) {
	return c.db.ActiveChannels()
}

// Generate runs the admission flow for a requester: re-issue an existing
// active code unchanged, decline on capacity, decline on unmet memberships,
// or issue a fresh code with the configured ttl.
func (c *Core) Generate(userId int64) (*entity.GenerateOutcome, error) {
	log := c.log.With(slog.Int64("user_id", userId))

	// A requester already holding an active code gets the same code back;
	// it never counts against the budget a second time.
	existing, err := c.db.ActiveCodeByOwner(userId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Debug("re-issuing active code")
		return &entity.GenerateOutcome{Code: existing.Code}, nil
	}

	allowed, activeCount, err := c.admission.CanIssue(userId)
	if err != nil {
		return nil, err
	}
	if !allowed {
		log.Info("generate declined", slog.Int("active_count", activeCount))
		return &entity.GenerateOutcome{
			Declined:    entity.DeclineMaxUsers,
			ActiveCount: activeCount,
		}, nil
	}

	channels, err := c.db.ActiveChannels()
	if err != nil {
		return nil, err
	}
	// No channels configured means nothing to verify: auto-approve.
	if len(channels) > 0 {
		if c.membership == nil {
			return nil, fmt.Errorf("membership service not connected")
		}
		report := c.membership.Check(userId, channels)
		if !report.AllJoined {
			links := make([]entity.ChannelLink, 0, len(channels))
			for _, channel := range channels {
				links = append(links, channel.Link())
			}
			log.Info("generate declined", slog.Any("not_joined", report.NotJoined))
			return &entity.GenerateOutcome{
				Declined:  entity.DeclineNotMember,
				NotJoined: report.NotJoined,
				Channels:  links,
			}, nil
		}
	}

	return c.issue(userId, log)
}

func (c *Core) issue(userId int64, log *slog.Logger) (*entity.GenerateOutcome, error) {
	now := c.now()
	for i := 0; i < insertRetries; i++ {
		code := &entity.AccessCode{
			Code:           entity.NewCodeValue(),
			TelegramUserId: userId,
			IssuedAt:       now,
			ExpiresAt:      now.Add(c.codeTtl),
		}
		err := c.db.InsertActiveCode(code, c.maxActive)
		if err == nil {
			log.Info("code issued", slog.Time("expires_at", code.ExpiresAt))
			return &entity.GenerateOutcome{Code: code.Code}, nil
		}
		if errors.Is(err, entity.ErrDuplicateCode) {
			continue
		}
		if errors.Is(err, entity.ErrMaxActive) {
			// Lost the admission race to a concurrent generate.
			_, activeCount, countErr := c.admission.CanIssue(userId)
			if countErr != nil {
				activeCount = c.maxActive
			}
			log.Info("generate declined at insert", slog.Int("active_count", activeCount))
			return &entity.GenerateOutcome{
				Declined:    entity.DeclineMaxUsers,
				ActiveCount: activeCount,
			}, nil
		}
		return nil, err
	}
	return nil, fmt.Errorf("no free code value after %d draws", insertRetries)
}

// Verify is a read-only preview: it reports the owner of an active code and
// never consumes it. A nil result means unknown, expired or already used.
func (c *Core) Verify(code string) (*entity.AccessCode, error) {
	return c.db.ActiveCodeByValue(code)
}

// Claim consumes the code and binds it to the authenticated identity. The
// profile flag is written before success is reported.
func (c *Core) Claim(identity *entity.Identity, code string) error {
	if identity == nil || identity.Id == "" {
		return fmt.Errorf("claim requires an authenticated identity")
	}

	if err := c.db.MarkCodeUsed(code, identity.Id); err != nil {
		return err
	}

	log := c.log.With(
		slog.String("user", identity.Id),
		slog.String("code", code),
	)
	if err := c.db.SetProfileVerified(identity.Id); err != nil {
		// The code is already consumed; surface the failure loudly.
		log.Error("marking profile verified", sl.Err(err))
		return fmt.Errorf("profile update: %w", err)
	}
	log.Info("code claimed")
	return nil
}

// Operator operations, driven by the channel management API.

func (c *Core) AllChannels() ([]*entity.Channel, error) {
	return c.db.Channels()
}

func (c *Core) AddChannel(channel *entity.Channel) (*entity.Channel, error) {
	channel.Id = uuid.New().String()
	channel.Active = true
	channel.CreatedAt = c.now()
	if err := c.db.CreateChannel(channel); err != nil {
		return nil, err
	}
	c.log.Info("channel added",
		slog.String("name", channel.Name),
		slog.Int64("channel_id", channel.ChannelId))
	return channel, nil
}

func (c *Core) RemoveChannel(id string) error {
	return c.db.DeleteChannel(id)
}

func (c *Core) EnableChannel(id string, active bool) error {
	return c.db.SetChannelActive(id, active)
}
