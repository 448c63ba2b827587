// Package bot implements the poll bot's conversation and button handling on top of
// the poll store, the session store and the outbound delivery queue.
package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/internal/telegram"
)

// PollStore persists polls. Transact must run fn on a fresh copy of the poll and
// write it back atomically, serializing concurrent calls for the same poll.
type PollStore interface {
	Create(ctx context.Context, p *models.Poll) error
	GetByID(ctx context.Context, id int64) (*models.Poll, error)
	ListByAdmin(ctx context.Context, adminID string, limit int) ([]*models.Poll, error)
	SearchByTitlePrefix(ctx context.Context, adminID, prefix string, limit int) ([]*models.Poll, error)
	Transact(ctx context.Context, id int64, fn func(*models.Poll) error) (*models.Poll, error)
	Delete(ctx context.Context, id int64) error
}

// UserStore upserts profiles of message senders and poll respondents.
type UserStore interface {
	UpsertUser(ctx context.Context, id int64, p models.Profile) error
	UpsertRespondent(ctx context.Context, id int64, p models.Profile) error
}

// SessionStore keeps a conversation state token per chat.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Clear(ctx context.Context, key string) error
}

// Delivery queues outbound Bot API calls. It does not report the call's outcome.
type Delivery interface {
	Enqueue(ctx context.Context, method string, payload any, delay time.Duration) error
}

// Config holds the bot's limits and presentation settings.
type Config struct {
	TitleMaxLength int
	MaxOptions     int
	SessionTTL     time.Duration
	ListLimit      int
	InlineLimit    int
	DeliverDelay   time.Duration
	BotUsername    string
	ThumbURL       string
}

// Bot handles incoming messages, button presses and inline queries.
type Bot struct {
	polls    PollStore
	users    UserStore
	sessions SessionStore
	delivery Delivery
	cfg      Config
	logger   *zap.Logger
}

// New creates a bot.
func New(polls PollStore, users UserStore, sessions SessionStore, delivery Delivery, cfg Config, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxOptions <= 0 {
		cfg.MaxOptions = 10
	}
	if cfg.TitleMaxLength <= 0 {
		cfg.TitleMaxLength = 3072
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 30
	}
	if cfg.InlineLimit <= 0 {
		cfg.InlineLimit = 50
	}
	return &Bot{polls: polls, users: users, sessions: sessions, delivery: delivery, cfg: cfg, logger: logger}
}

// enqueue hands a call to the delivery queue. A failed enqueue is logged only:
// delivery problems never change the outcome of the handler that caused them.
func (b *Bot) enqueue(ctx context.Context, method string, payload any, delay time.Duration) {
	if err := b.delivery.Enqueue(ctx, method, payload, delay); err != nil {
		b.logger.Error("enqueue request", zap.String("method", method), zap.Error(err))
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	b.enqueue(ctx, telegram.MethodSendMessage, telegram.SendMessage{ChatID: chatID, Text: text}, 0)
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup, delay time.Duration) {
	b.enqueue(ctx, telegram.MethodSendMessage, telegram.SendMessage{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   telegram.ParseModeHTML,
		ReplyMarkup: markup,
	}, delay)
}
