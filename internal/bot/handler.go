package bot

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/countmein/backend/internal/telegram"
)

// Handler receives Telegram webhook updates.
type Handler struct {
	bot    *Bot
	logger *zap.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(bot *Bot, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{bot: bot, logger: logger}
}

// Webhook handles POST /telegram/webhook. Callback and inline query answers are
// written into the response body; everything else is queued. Failures are answered
// with the overloaded message and a 200 so Telegram does not redeliver the update.
// A body that is not an update is logged and dropped, also with a 200.
func (h *Handler) Webhook(c *gin.Context) {
	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn("invalid update", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	ctx := c.Request.Context()

	switch {
	case update.Message != nil:
		h.logger.Info("processing incoming message", zap.Int64("update_id", update.UpdateID))
		h.message(ctx, update.Message)
		c.Status(http.StatusOK)
	case update.CallbackQuery != nil:
		h.logger.Info("processing incoming callback query", zap.Int64("update_id", update.UpdateID))
		h.reply(c, telegram.MethodAnswerCallbackQuery, h.callback(ctx, update.CallbackQuery))
	case update.InlineQuery != nil:
		h.logger.Info("processing incoming inline query", zap.Int64("update_id", update.UpdateID))
		h.reply(c, telegram.MethodAnswerInlineQuery, h.inline(ctx, update.InlineQuery))
	default:
		c.Status(http.StatusOK)
	}
}

func (h *Handler) message(ctx context.Context, m *telegram.Message) {
	if m.From == nil {
		return
	}
	msg := Message{ChatID: m.Chat.ID, SenderID: m.From.ID, Sender: m.From.Profile(), Text: m.Text}
	if err := h.bot.HandleMessage(ctx, msg); err != nil {
		h.logger.Error("handle message", zap.Int64("chat_id", m.Chat.ID), zap.Error(err))
		h.bot.sendText(ctx, m.Chat.ID, msgOverloaded)
	}
}

func (h *Handler) callback(ctx context.Context, q *telegram.CallbackQuery) telegram.AnswerCallbackQuery {
	cb := Callback{SenderID: q.From.ID, Sender: q.From.Profile(), Data: q.Data}
	if q.InlineMessageID != "" {
		cb.Ref = telegram.MessageRef{InlineMessageID: q.InlineMessageID}
	} else if q.Message != nil {
		cb.Ref = telegram.MessageRef{ChatID: q.Message.Chat.ID, MessageID: q.Message.MessageID}
	}

	status, err := h.bot.HandleCallback(ctx, cb)
	if err != nil {
		h.logger.Error("handle callback", zap.String("data", q.Data), zap.Error(err))
		status = msgOverloaded
	}
	return telegram.AnswerCallbackQuery{CallbackQueryID: q.ID, Text: status}
}

func (h *Handler) inline(ctx context.Context, q *telegram.InlineQuery) telegram.AnswerInlineQuery {
	answer, err := h.bot.HandleInlineQuery(ctx, InlineQuery{ID: q.ID, SenderID: q.From.ID, Query: q.Query})
	if err != nil {
		h.logger.Error("handle inline query", zap.Error(err))
		return h.bot.overloadedInlineAnswer(q.ID)
	}
	return answer
}

func (h *Handler) reply(c *gin.Context, method string, payload any) {
	body, err := telegram.WebhookReply(method, payload)
	if err != nil {
		h.logger.Error("encode webhook reply", zap.String("method", method), zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	h.logger.Info("request sent in response", zap.String("method", method))
	c.Data(http.StatusOK, "application/json", body)
}
