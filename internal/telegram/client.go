package telegram

import (
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"tgaccess/lib/sl"
)

type Config struct {
	BotToken       string
	RequestTimeout time.Duration
	AdminChatId    int64
}

// Client wraps the Bot API for the two things the gate needs from Telegram:
// membership verdicts and operator alerts.
type Client struct {
	api     *tgbotapi.Bot
	timeout time.Duration
	adminId int64
	log     *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	api, err := tgbotapi.NewBot(cfg.BotToken, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		api:     api,
		timeout: timeout,
		adminId: cfg.AdminChatId,
		log:     log.With(sl.Module("telegram")),
	}, nil
}

// IsMember asks the Bot API whether the user is currently in the chat.
// Statuses left and kicked mean gone; restricted members are still in the
// chat. A failed lookup is returned as an error for the caller to treat as
// non-membership.
func (c *Client) IsMember(chatId, userId int64) (bool, error) {
	log := c.log.With(
		slog.Int64("chat_id", chatId),
		slog.Int64("user_id", userId),
	)

	t1 := time.Now()
	member, err := c.api.GetChatMember(chatId, userId, &tgbotapi.GetChatMemberOpts{
		RequestOpts: &tgbotapi.RequestOpts{Timeout: c.timeout},
	})
	if err != nil {
		return false, fmt.Errorf("getChatMember: %w", err)
	}

	status := member.GetStatus()
	log.Debug("membership lookup",
		slog.String("status", status),
		slog.Float64("duration", time.Since(t1).Seconds()))

	switch status {
	case "creator", "administrator", "member", "restricted":
		return true, nil
	}
	return false, nil
}

// SendAlert delivers a MarkdownV2 message to the operator chat. Falls back
// to plain text when Telegram rejects the markup.
func (c *Client) SendAlert(msg string, level slog.Level) {
	if c.adminId == 0 {
		return
	}
	_, err := c.api.SendMessage(c.adminId, msg, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		c.log.With(slog.Int64("id", c.adminId)).Warn("sending alert", sl.Err(err))
		_, err = c.api.SendMessage(c.adminId, msg, &tgbotapi.SendMessageOpts{})
		if err != nil {
			c.log.With(slog.Int64("id", c.adminId)).Error("sending plain alert", sl.Err(err))
		}
	}
}
