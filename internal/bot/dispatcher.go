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
	"github.com/countmein/backend/internal/telegram"
)

// ErrInvalidCallback means button data could not be parsed into a poll id and an action.
var ErrInvalidCallback = errors.New("invalid callback data")

// Callback is a button press. Ref addresses the message carrying the button; a message
// posted through inline mode is a foreign surface, anything else is the admin's own chat.
type Callback struct {
	SenderID int64
	Sender   models.Profile
	Data     string
	Ref      telegram.MessageRef
}

func (cb Callback) adminSurface() bool {
	return !cb.Ref.IsInline()
}

// Outcome is the result of a button press: the acknowledgement text and, when the
// message should change, the edit call to queue.
type Outcome struct {
	Status  string
	Method  string
	Payload any
}

// HandleCallback dispatches a button press, queues the resulting edit and records the
// presser as a respondent. It returns the acknowledgement text.
func (b *Bot) HandleCallback(ctx context.Context, cb Callback) (string, error) {
	out, err := b.Dispatch(ctx, cb)
	if uerr := b.users.UpsertRespondent(ctx, cb.SenderID, cb.Sender); uerr != nil {
		b.logger.Warn("upsert respondent", zap.Int64("user_id", cb.SenderID), zap.Error(uerr))
	}
	if err != nil {
		return "", err
	}
	if out.Method != "" {
		b.enqueue(ctx, out.Method, out.Payload, 0)
	}
	return out.Status, nil
}

// Dispatch applies the action encoded in cb.Data to its poll. Unknown polls strip the
// message's buttons; admin-only actions pressed on a foreign surface are rejected.
func (b *Bot) Dispatch(ctx context.Context, cb Callback) (Outcome, error) {
	pollID, action, err := ParseCallbackData(cb.Data)
	if err != nil {
		b.logger.Warn("invalid callback query data", zap.String("data", cb.Data), zap.Int64("user_id", cb.SenderID))
		return Outcome{Status: statusInvalidData}, nil
	}

	p, err := b.polls.GetByID(ctx, pollID)
	if errors.Is(err, models.ErrPollNotFound) {
		return b.deleted(cb), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load poll: %w", err)
	}

	admin := cb.adminSurface()
	if idx, ok := optionIndex(action); ok {
		return b.toggle(ctx, cb, pollID, idx)
	}

	switch {
	case action == polls.ActionRefresh && admin:
		return Outcome{
			Status: statusRefreshed,
			Method: telegram.MethodEditMessageText,
			Payload: telegram.EditMessageText{
				MessageRef:  cb.Ref,
				Text:        polls.RenderText(p),
				ParseMode:   telegram.ParseModeHTML,
				ReplyMarkup: polls.BuildAdminButtons(p),
			},
		}, nil
	case action == polls.ActionVote && admin:
		return b.swapButtons(cb, statusVote, polls.BuildVoteButtons(p, true)), nil
	case action == polls.ActionDelete && admin:
		if err := b.polls.Delete(ctx, pollID); err != nil {
			return Outcome{}, fmt.Errorf("delete poll: %w", err)
		}
		b.logger.Info("poll deleted", zap.Int64("poll_id", pollID))
		return b.swapButtons(cb, statusPollDeleted, nil), nil
	case action == polls.ActionBack && admin:
		return b.swapButtons(cb, statusBack, polls.BuildAdminButtons(p)), nil
	default:
		b.logger.Warn("invalid callback query data",
			zap.String("data", cb.Data), zap.Int64("user_id", cb.SenderID), zap.Bool("admin_surface", admin))
		return Outcome{Status: statusInvalidData}, nil
	}
}

// toggle flips the presser's name on option idx inside a poll transaction.
func (b *Bot) toggle(ctx context.Context, cb Callback, pollID int64, idx int) (Outcome, error) {
	var (
		added       bool
		optionTitle string
	)
	userKey := strconv.FormatInt(cb.SenderID, 10)
	p, err := b.polls.Transact(ctx, pollID, func(p *models.Poll) error {
		var err error
		added, err = p.Toggle(idx, userKey, cb.Sender)
		if err == nil {
			optionTitle = p.Options[idx].Title
		}
		return err
	})
	switch {
	case errors.Is(err, models.ErrPollNotFound):
		return b.deleted(cb), nil
	case errors.Is(err, models.ErrInvalidOption):
		return Outcome{Status: statusInvalidOption}, nil
	case err != nil:
		return Outcome{}, fmt.Errorf("toggle: %w", err)
	}

	return Outcome{
		Status: toggleStatus(added, optionTitle),
		Method: telegram.MethodEditMessageText,
		Payload: telegram.EditMessageText{
			MessageRef:  cb.Ref,
			Text:        polls.RenderText(p),
			ParseMode:   telegram.ParseModeHTML,
			ReplyMarkup: polls.BuildVoteButtons(p, cb.adminSurface()),
		},
	}, nil
}

func (b *Bot) swapButtons(cb Callback, status string, markup *telegram.InlineKeyboardMarkup) Outcome {
	return Outcome{
		Status:  status,
		Method:  telegram.MethodEditMessageReplyMarkup,
		Payload: telegram.EditMessageReplyMarkup{MessageRef: cb.Ref, ReplyMarkup: markup},
	}
}

// deleted strips the buttons of a message whose poll no longer exists.
func (b *Bot) deleted(cb Callback) Outcome {
	return b.swapButtons(cb, statusDeleted, nil)
}

// ParseCallbackData splits "<pollId> <action>" button data.
func ParseCallbackData(data string) (int64, string, error) {
	fields := strings.Fields(data)
	if len(fields) < 2 {
		return 0, "", ErrInvalidCallback
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	return id, fields[1], nil
}

// optionIndex reports whether action is an option index. All-digit actions too large
// to be an index map to -1 so that they are answered as an invalid option.
func optionIndex(action string) (int, bool) {
	for _, r := range action {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(action)
	if err != nil {
		return -1, true
	}
	return idx, true
}
