package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/countmein/backend/internal/polls"
	"github.com/countmein/backend/internal/telegram"
)

// InlineQuery is text typed after the bot's username in any chat.
type InlineQuery struct {
	ID       string
	SenderID int64
	Query    string
}

// HandleInlineQuery answers with the sender's polls whose title starts with the query,
// newest first. Each result posts the poll with voter buttons.
func (b *Bot) HandleInlineQuery(ctx context.Context, q InlineQuery) (telegram.AnswerInlineQuery, error) {
	adminID := strconv.FormatInt(q.SenderID, 10)
	found, err := b.polls.SearchByTitlePrefix(ctx, adminID, strings.ToLower(q.Query), b.cfg.InlineLimit)
	if err != nil {
		return telegram.AnswerInlineQuery{}, fmt.Errorf("search polls: %w", err)
	}

	results := make([]telegram.InlineQueryResult, 0, len(found))
	for _, p := range found {
		results = append(results, telegram.InlineQueryResult{
			Type:        "article",
			ID:          strconv.FormatInt(p.ID, 10),
			Title:       p.Title,
			Description: p.OptionsSummary(),
			InputMessageContent: telegram.InputMessageContent{
				MessageText: polls.RenderText(p),
				ParseMode:   telegram.ParseModeHTML,
			},
			ReplyMarkup: polls.BuildVoteButtons(p, false),
			ThumbURL:    b.cfg.ThumbURL,
		})
	}
	return telegram.AnswerInlineQuery{
		InlineQueryID:     q.ID,
		Results:           results,
		CacheTime:         0,
		SwitchPMText:      inlineSwitchPMText,
		SwitchPMParameter: inlineSwitchPMParam,
	}, nil
}
