package telegram

import (
	"encoding/json"

	"github.com/countmein/backend/internal/models"
)

// Bot API method names used by the bot.
const (
	MethodSendMessage            = "sendMessage"
	MethodEditMessageText        = "editMessageText"
	MethodEditMessageReplyMarkup = "editMessageReplyMarkup"
	MethodAnswerCallbackQuery    = "answerCallbackQuery"
	MethodAnswerInlineQuery      = "answerInlineQuery"
)

// ParseModeHTML selects Telegram's HTML formatting.
const ParseModeHTML = "HTML"

// Update is the subset of an incoming webhook update the bot reads.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
	InlineQuery   *InlineQuery   `json:"inline_query,omitempty"`
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Profile converts the account to the profile stored on users and respondents.
func (u *User) Profile() models.Profile {
	return models.Profile{FirstName: u.FirstName, LastName: u.LastName, Username: u.Username}
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// CallbackQuery is a press on an inline keyboard button.
type CallbackQuery struct {
	ID              string   `json:"id"`
	From            User     `json:"from"`
	Message         *Message `json:"message,omitempty"`
	InlineMessageID string   `json:"inline_message_id,omitempty"`
	Data            string   `json:"data,omitempty"`
}

// InlineQuery is typed by a user after @botname in any chat.
type InlineQuery struct {
	ID    string `json:"id"`
	From  User   `json:"from"`
	Query string `json:"query"`
}

// InlineKeyboardMarkup is a grid of buttons attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button. Exactly one of the optional fields must be set.
type InlineKeyboardButton struct {
	Text              string  `json:"text"`
	CallbackData      string  `json:"callback_data,omitempty"`
	SwitchInlineQuery *string `json:"switch_inline_query,omitempty"`
}

// MessageRef addresses a message either in a chat or by inline message id.
type MessageRef struct {
	ChatID          int64  `json:"chat_id,omitempty"`
	MessageID       int64  `json:"message_id,omitempty"`
	InlineMessageID string `json:"inline_message_id,omitempty"`
}

// IsInline reports whether the message was posted through inline mode.
func (r MessageRef) IsInline() bool {
	return r.InlineMessageID != ""
}

// SendMessage is the payload of sendMessage.
type SendMessage struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageText is the payload of editMessageText.
type EditMessageText struct {
	MessageRef
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageReplyMarkup is the payload of editMessageReplyMarkup. A nil markup removes the buttons.
type EditMessageReplyMarkup struct {
	MessageRef
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// AnswerCallbackQuery is the payload of answerCallbackQuery.
type AnswerCallbackQuery struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// AnswerInlineQuery is the payload of answerInlineQuery.
type AnswerInlineQuery struct {
	InlineQueryID     string              `json:"inline_query_id"`
	Results           []InlineQueryResult `json:"results"`
	CacheTime         int                 `json:"cache_time"`
	SwitchPMText      string              `json:"switch_pm_text,omitempty"`
	SwitchPMParameter string              `json:"switch_pm_parameter,omitempty"`
}

// InlineQueryResult is an article result of an inline query.
type InlineQueryResult struct {
	Type                string                `json:"type"`
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	Description         string                `json:"description,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	ThumbURL            string                `json:"thumb_url,omitempty"`
}

// InputMessageContent is the message sent when an inline result is chosen.
type InputMessageContent struct {
	MessageText string `json:"message_text"`
	ParseMode   string `json:"parse_mode,omitempty"`
}

// WebhookReply encodes a method call as a webhook response body, which Telegram
// executes without a separate request.
func WebhookReply(method string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["method"] = method
	return json.Marshal(fields)
}
