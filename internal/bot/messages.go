package bot

import (
	"fmt"
	"strings"

	"github.com/countmein/backend/internal/telegram"
	"github.com/countmein/backend/pkg/textutil"
)

const (
	msgNewPoll       = "Let's create a new poll. First, send me the title."
	msgFirstOption   = "New poll: '%s'\n\nPlease send me the first answer option."
	msgNextOption    = "Good. Now send me another answer option, or /done to finish."
	msgPrematureDone = "Sorry, a poll needs to have at least one option to work."
	msgOverloaded    = "Sorry, CountMeIn Bot is overloaded right now. Please try again later!"
	msgTitleTooLong  = "Sorry, please enter a shorter title (maximum %d characters)."
	msgPollsHeader   = "Your polls"
	msgPollsFooter   = "Use /start to create a new poll."
	msgHelp          = "This bot will help you create polls where people can leave their names. " +
		"Use /start to create a poll here, then publish it to groups or send it to " +
		"individual friends.\n\nSend /polls to manage your existing polls."
	msgDoneFormat = "\U0001F44D Poll created. You can now publish it to a group or send it to " +
		"your friends in a private message. To do this, tap the button below or start " +
		"your message in any other chat with @%s and select one of your polls to send."

	statusDeleted       = "Sorry, this poll has been deleted"
	statusInvalidOption = "Sorry, that's an invalid option"
	statusInvalidData   = "Invalid data. This attempt will be logged!"
	statusRefreshed     = "Results updated!"
	statusVote          = "You may now vote!"
	statusPollDeleted   = "Poll deleted!"
	statusBack          = ""

	inlineSwitchPMText  = "Create new poll"
	inlineSwitchPMParam = "new"

	// callbackAnswerMaxLength is the longest text answerCallbackQuery accepts.
	callbackAnswerMaxLength = 200
)

func (b *Bot) doneMessage() string {
	return fmt.Sprintf(msgDoneFormat, b.cfg.BotUsername)
}

func (b *Bot) titleTooLongMessage() string {
	return fmt.Sprintf(msgTitleTooLong, b.cfg.TitleMaxLength)
}

func firstOptionMessage(title string) string {
	return fmt.Sprintf(msgFirstOption, textutil.BoldFirstLine(title))
}

func toggleStatus(added bool, optionTitle string) string {
	action := "removed from"
	if added {
		action = "added to"
	}
	prefix := fmt.Sprintf("Your name was %s ", action)
	if room := callbackAnswerMaxLength - textutil.Len(prefix) - 1; textutil.Len(optionTitle) > room {
		optionTitle = textutil.Truncate(optionTitle, room-1) + "\u2026"
	}
	return prefix + optionTitle + "!"
}

// pollList renders the /polls reply: header, enumerated summaries, footer.
func pollList(list []string) string {
	blocks := make([]string, 0, len(list)+2)
	blocks = append(blocks, textutil.Bold(msgPollsHeader))
	for i, s := range list {
		blocks = append(blocks, fmt.Sprintf("%d. %s", i+1, s))
	}
	blocks = append(blocks, msgPollsFooter)
	return strings.Join(blocks, "\n\n")
}

// overloadedInlineAnswer is the single-result answer shown when the store is unavailable.
func (b *Bot) overloadedInlineAnswer(queryID string) telegram.AnswerInlineQuery {
	return telegram.AnswerInlineQuery{
		InlineQueryID: queryID,
		Results: []telegram.InlineQueryResult{{
			Type:                "article",
			ID:                  "OVER_QUOTA",
			Title:               "Sorry!",
			Description:         msgOverloaded,
			InputMessageContent: telegram.InputMessageContent{MessageText: msgOverloaded},
			ThumbURL:            b.cfg.ThumbURL,
		}},
		SwitchPMText:      inlineSwitchPMText,
		SwitchPMParameter: inlineSwitchPMParam,
	}
}
