package polls

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/internal/telegram"
	"github.com/countmein/backend/pkg/textutil"
)

const (
	// SummaryTitleLength is how many characters of the title appear in poll listings.
	SummaryTitleLength = 65
	// PeopleGlyph prefixes the respondents summary line.
	PeopleGlyph = "\U0001F465"
)

// Callback actions carried in button payloads after the poll id.
const (
	ActionRefresh = "refresh"
	ActionVote    = "vote"
	ActionDelete  = "delete"
	ActionBack    = "back"
)

// RespondentsSummary phrases the number of distinct respondents.
func RespondentsSummary(p *models.Poll) string {
	switch n := p.RespondentCount(); n {
	case 0:
		return "Nobody responded"
	case 1:
		return "1 person responded"
	default:
		return fmt.Sprintf("%d people responded", n)
	}
}

// RenderText renders the poll as Telegram HTML: bold title, one block per option
// with its respondents' first names, and a respondents summary footer.
func RenderText(p *models.Poll) string {
	blocks := make([]string, 0, len(p.Options)+2)
	blocks = append(blocks, textutil.BoldFirstLine(p.Title))
	for _, o := range p.Options {
		blocks = append(blocks, renderOption(o))
	}
	blocks = append(blocks, PeopleGlyph+" "+RespondentsSummary(p))
	return strings.Join(blocks, "\n\n")
}

func renderOption(o models.Option) string {
	names := make([]string, len(o.Respondents))
	for i, r := range o.Respondents {
		names[i] = r.FirstName
	}
	return textutil.Bold(o.Title) + "\n" + textutil.EscapeHTML(strings.Join(names, "\n"))
}

// RenderSummaryWithLink renders one line of the /polls listing.
func RenderSummaryWithLink(p *models.Poll) string {
	title := textutil.Bold(textutil.Truncate(p.Title, SummaryTitleLength))
	return fmt.Sprintf("%s %s.\n%s", title, RespondentsSummary(p), ViewCommand(p.ID))
}

// ViewCommand is the deep link command that shows a poll to its admin.
func ViewCommand(id int64) string {
	return "/view_" + strconv.FormatInt(id, 10)
}

// CallbackData encodes a button payload.
func CallbackData(id int64, action string) string {
	return strconv.FormatInt(id, 10) + " " + action
}

// BuildVoteButtons returns one button per option; admin views get a trailing Back button.
func BuildVoteButtons(p *models.Poll, admin bool) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(p.Options)+1)
	for i, o := range p.Options {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         o.Title,
			CallbackData: CallbackData(p.ID, strconv.Itoa(i)),
		}})
	}
	if admin {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         "Back",
			CallbackData: CallbackData(p.ID, ActionBack),
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// BuildAdminButtons returns the publish / refresh / vote+delete layout.
func BuildAdminButtons(p *models.Poll) *telegram.InlineKeyboardMarkup {
	shareKey := textutil.Truncate(p.Title, models.TitleLowerLength)
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "Publish poll", SwitchInlineQuery: &shareKey}},
		{{Text: "Update results", CallbackData: CallbackData(p.ID, ActionRefresh)}},
		{
			{Text: "Vote", CallbackData: CallbackData(p.ID, ActionVote)},
			{Text: "Delete", CallbackData: CallbackData(p.ID, ActionDelete)},
		},
	}}
}
