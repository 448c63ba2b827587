package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/internal/polls"
)

// Commands understood in the private chat with the bot.
const (
	cmdStart = "/start"
	cmdDone  = "/done"
	cmdPolls = "/polls"
	cmdView  = "/view_"
)

// Message is an incoming chat message reduced to what the dialog needs.
type Message struct {
	ChatID   int64
	SenderID int64
	Sender   models.Profile
	Text     string
}

func (m Message) sessionKey() string {
	return strconv.FormatInt(m.ChatID, 10)
}

// HandleMessage upserts the sender and advances the chat's poll creation dialog.
// Replies are queued for delivery; a returned error means nothing was answered.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) error {
	if err := b.users.UpsertUser(ctx, msg.SenderID, msg.Sender); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	if msg.Text == "" {
		return nil
	}

	key := msg.sessionKey()
	token, err := b.sessions.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	conv := restoreConversation(token)
	text := msg.Text

	switch {
	case strings.HasPrefix(text, cmdStart):
		return b.startPoll(ctx, msg, conv)
	case text == cmdDone:
		if conv.can(eventFinish) {
			return b.finishPoll(ctx, msg, conv)
		}
		b.sendText(ctx, msg.ChatID, msgHelp)
	case text == cmdPolls:
		if err := b.listPolls(ctx, msg); err != nil {
			return err
		}
	case strings.HasPrefix(text, cmdView):
		if err := b.viewPoll(ctx, msg, strings.TrimPrefix(text, cmdView)); err != nil {
			return err
		}
	case conv.state() == stateAwaitingTitle:
		return b.createPoll(ctx, msg, conv)
	case conv.state() == stateAwaitingOption:
		return b.appendOption(ctx, msg, conv)
	default:
		b.sendText(ctx, msg.ChatID, msgHelp)
	}
	return b.reset(ctx, key, conv)
}

func (b *Bot) startPoll(ctx context.Context, msg Message, conv *conversation) error {
	if err := conv.fire(ctx, eventStart); err != nil {
		return err
	}
	b.sendText(ctx, msg.ChatID, msgNewPoll)
	return b.save(ctx, msg.sessionKey(), conv)
}

func (b *Bot) createPoll(ctx context.Context, msg Message, conv *conversation) error {
	if err := models.ValidateTitle(msg.Text, b.cfg.TitleMaxLength); errors.Is(err, models.ErrTitleTooLong) {
		b.sendText(ctx, msg.ChatID, b.titleTooLongMessage())
		return nil
	}

	p := models.NewPoll(msg.sessionKey(), msg.Text)
	if err := b.polls.Create(ctx, p); err != nil {
		return fmt.Errorf("create poll: %w", err)
	}
	if err := conv.fire(ctx, eventTitle); err != nil {
		return err
	}
	conv.pollID = p.ID

	b.sendHTML(ctx, msg.ChatID, firstOptionMessage(p.Title), nil, 0)
	return b.save(ctx, msg.sessionKey(), conv)
}

func (b *Bot) appendOption(ctx context.Context, msg Message, conv *conversation) error {
	full := false
	p, err := b.polls.Transact(ctx, conv.pollID, func(p *models.Poll) error {
		err := p.AppendOption(msg.Text, b.cfg.MaxOptions)
		if errors.Is(err, models.ErrTooManyOptions) {
			full = true
			return nil
		}
		return err
	})
	switch {
	case errors.Is(err, models.ErrPollNotFound):
		b.sendText(ctx, msg.ChatID, msgHelp)
		return b.reset(ctx, msg.sessionKey(), conv)
	case err != nil:
		return fmt.Errorf("append option: %w", err)
	}

	if !full && len(p.Options) < b.cfg.MaxOptions {
		if err := conv.fire(ctx, eventOption); err != nil {
			return err
		}
		b.sendText(ctx, msg.ChatID, msgNextOption)
		return b.save(ctx, msg.sessionKey(), conv)
	}
	return b.complete(ctx, msg, conv, p)
}

func (b *Bot) finishPoll(ctx context.Context, msg Message, conv *conversation) error {
	p, err := b.polls.GetByID(ctx, conv.pollID)
	switch {
	case errors.Is(err, models.ErrPollNotFound):
		b.sendText(ctx, msg.ChatID, msgHelp)
		return b.reset(ctx, msg.sessionKey(), conv)
	case err != nil:
		return fmt.Errorf("load poll: %w", err)
	}

	if err := p.CanFinish(); errors.Is(err, models.ErrPrematureCompletion) {
		b.sendText(ctx, msg.ChatID, msgPrematureDone)
		return nil
	}
	return b.complete(ctx, msg, conv, p)
}

// complete confirms creation and then shows the admin view of p.
func (b *Bot) complete(ctx context.Context, msg Message, conv *conversation, p *models.Poll) error {
	if err := conv.fire(ctx, eventFinish); err != nil {
		return err
	}
	b.sendText(ctx, msg.ChatID, b.doneMessage())
	b.deliverPoll(ctx, msg.ChatID, p)
	b.logger.Info("poll created", zap.Int64("poll_id", p.ID), zap.Int("options", len(p.Options)))
	return b.save(ctx, msg.sessionKey(), conv)
}

// deliverPoll sends the admin view, delayed so it lands after any confirmation sent just before.
func (b *Bot) deliverPoll(ctx context.Context, chatID int64, p *models.Poll) {
	b.sendHTML(ctx, chatID, polls.RenderText(p), polls.BuildAdminButtons(p), b.cfg.DeliverDelay)
}

func (b *Bot) listPolls(ctx context.Context, msg Message) error {
	recent, err := b.polls.ListByAdmin(ctx, msg.sessionKey(), b.cfg.ListLimit)
	if err != nil {
		return fmt.Errorf("list polls: %w", err)
	}
	summaries := make([]string, len(recent))
	for i, p := range recent {
		summaries[i] = polls.RenderSummaryWithLink(p)
	}
	b.sendHTML(ctx, msg.ChatID, pollList(summaries), nil, 0)
	return nil
}

func (b *Bot) viewPoll(ctx context.Context, msg Message, rawID string) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		b.sendText(ctx, msg.ChatID, msgHelp)
		return nil
	}
	p, err := b.polls.GetByID(ctx, id)
	switch {
	case errors.Is(err, models.ErrPollNotFound):
		b.sendText(ctx, msg.ChatID, msgHelp)
		return nil
	case err != nil:
		return fmt.Errorf("load poll: %w", err)
	}
	if p.AdminID != msg.sessionKey() {
		b.sendText(ctx, msg.ChatID, msgHelp)
		return nil
	}
	b.deliverPoll(ctx, msg.ChatID, p)
	return nil
}

func (b *Bot) reset(ctx context.Context, key string, conv *conversation) error {
	if err := conv.fire(ctx, eventReset); err != nil {
		return err
	}
	return b.save(ctx, key, conv)
}

// save writes the dialog state back, refreshing its TTL, or clears it once the dialog ended.
func (b *Bot) save(ctx context.Context, key string, conv *conversation) error {
	token := conv.token()
	if token == "" {
		if err := b.sessions.Clear(ctx, key); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	}
	if err := b.sessions.Set(ctx, key, token, b.cfg.SessionTTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
