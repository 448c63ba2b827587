package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countmein/backend/internal/models"
	"github.com/countmein/backend/internal/polls"
	"github.com/countmein/backend/internal/telegram"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func postUpdate(t *testing.T, f *fixture, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/telegram/webhook", NewHandler(f.bot, nil).Webhook)

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeReply(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	var reply map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	return reply
}

func TestInlineQueryResults(t *testing.T) {
	f := newFixture(t, testConfig())
	older := seedPoll(t, f, "Lunch on Friday", "Pizza", "Sushi")
	newer := seedPoll(t, f, "lunch & learn", "Yes")
	seedPoll(t, f, "Dinner", "Yes")

	answer, err := f.bot.HandleInlineQuery(context.Background(), InlineQuery{ID: "q1", SenderID: chatID, Query: "LUNCH"})
	require.NoError(t, err)
	assert.Equal(t, "q1", answer.InlineQueryID)
	assert.Equal(t, "Create new poll", answer.SwitchPMText)
	assert.Zero(t, answer.CacheTime)
	require.Len(t, answer.Results, 2)

	first := answer.Results[0]
	assert.Equal(t, "article", first.Type)
	assert.Equal(t, "2", first.ID)
	assert.Equal(t, newer.Title, first.Title)
	assert.Equal(t, "<b>lunch &amp; learn</b>\n\n<b>Yes</b>\n\n\n\U0001F465 Nobody responded", first.InputMessageContent.MessageText)
	assert.Equal(t, "https://example.com/thumb.jpg", first.ThumbURL)
	assert.Equal(t, polls.BuildVoteButtons(newer, false), first.ReplyMarkup)

	assert.Equal(t, "Pizza / Sushi", answer.Results[1].Description)
	assert.Equal(t, older.Title, answer.Results[1].Title)

	answer, err = f.bot.HandleInlineQuery(context.Background(), InlineQuery{ID: "q2", SenderID: 1, Query: ""})
	require.NoError(t, err)
	assert.Empty(t, answer.Results)
}

func TestWebhookMessageQueuesReply(t *testing.T) {
	f := newFixture(t, testConfig())

	w := postUpdate(t, f, `{"update_id":1,"message":{"message_id":3,"from":{"id":4242,"first_name":"Alice"},"chat":{"id":4242},"text":"/start"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	out := f.delivery.take()
	require.Len(t, out, 1)
	assert.Equal(t, msgNewPoll, sentText(t, out[0]))
	assert.Equal(t, models.Profile{FirstName: "Alice"}, f.users.users[4242])
}

func TestWebhookCallbackAnswersInBody(t *testing.T) {
	f := newFixture(t, testConfig())
	p := seedPoll(t, f, "Lunch?", "Pizza")

	w := postUpdate(t, f, `{"update_id":2,"callback_query":{"id":"cb1","from":{"id":5,"first_name":"Bob"},"inline_message_id":"inl","data":"`+polls.CallbackData(p.ID, "0")+`"}}`)
	reply := decodeReply(t, w)
	assert.Equal(t, "answerCallbackQuery", reply["method"])
	assert.Equal(t, "cb1", reply["callback_query_id"])
	assert.Equal(t, "Your name was added to Pizza!", reply["text"])

	out := f.delivery.take()
	require.Len(t, out, 1)
	assert.Equal(t, telegram.MessageRef{InlineMessageID: "inl"}, out[0].payload.(telegram.EditMessageText).MessageRef)
}

func TestWebhookCallbackOnChatMessage(t *testing.T) {
	f := newFixture(t, testConfig())
	p := seedPoll(t, f, "Lunch?", "Pizza")

	w := postUpdate(t, f, `{"update_id":3,"callback_query":{"id":"cb2","from":{"id":4242,"first_name":"Alice"},"message":{"message_id":77,"chat":{"id":4242}},"data":"`+polls.CallbackData(p.ID, polls.ActionVote)+`"}}`)
	reply := decodeReply(t, w)
	assert.Equal(t, "You may now vote!", reply["text"])

	out := f.delivery.take()
	require.Len(t, out, 1)
	assert.Equal(t, adminRef, out[0].payload.(telegram.EditMessageReplyMarkup).MessageRef)
}

func TestWebhookInlineQueryAnswersInBody(t *testing.T) {
	f := newFixture(t, testConfig())
	seedPoll(t, f, "Lunch?", "Pizza")

	w := postUpdate(t, f, `{"update_id":4,"inline_query":{"id":"iq","from":{"id":4242,"first_name":"Alice"},"query":"lun"}}`)
	reply := decodeReply(t, w)
	assert.Equal(t, "answerInlineQuery", reply["method"])
	assert.Equal(t, "new", reply["switch_pm_parameter"])
	results, ok := reply["results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 1)
}

func TestWebhookOverloaded(t *testing.T) {
	f := newFixture(t, testConfig())
	p := seedPoll(t, f, "Lunch?", "Pizza")
	f.polls.err = models.ErrTransient

	w := postUpdate(t, f, `{"update_id":5,"callback_query":{"id":"cb3","from":{"id":5,"first_name":"Bob"},"inline_message_id":"inl","data":"`+polls.CallbackData(p.ID, "0")+`"}}`)
	assert.Equal(t, msgOverloaded, decodeReply(t, w)["text"])

	w = postUpdate(t, f, `{"update_id":6,"inline_query":{"id":"iq","from":{"id":4242,"first_name":"Alice"},"query":""}}`)
	reply := decodeReply(t, w)
	results := reply["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "OVER_QUOTA", results[0].(map[string]any)["id"])

	say(t, f, "/start")
	w = postUpdate(t, f, `{"update_id":7,"message":{"message_id":9,"from":{"id":4242,"first_name":"Alice"},"chat":{"id":4242},"text":"Lunch?"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	out := f.delivery.take()
	require.Len(t, out, 1)
	assert.Equal(t, msgOverloaded, sentText(t, out[0]))
}

func TestWebhookDropsMalformedBody(t *testing.T) {
	f := newFixture(t, testConfig())

	w := postUpdate(t, f, `not json`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, f.delivery.take())
}
