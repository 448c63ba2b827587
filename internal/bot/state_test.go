package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreConversation(t *testing.T) {
	tests := []struct {
		token  string
		state  string
		pollID int64
	}{
		{"", stateNone, 0},
		{"awaiting_title", stateAwaitingTitle, 0},
		{"awaiting_option:17", stateAwaitingOption, 17},
		{"awaiting_option:", stateNone, 0},
		{"awaiting_option:x", stateNone, 0},
		{"START", stateNone, 0},
	}
	for _, tt := range tests {
		conv := restoreConversation(tt.token)
		assert.Equal(t, tt.state, conv.state(), tt.token)
		assert.Equal(t, tt.pollID, conv.pollID, tt.token)
	}
}

func TestConversationTransitions(t *testing.T) {
	ctx := context.Background()
	conv := restoreConversation("")
	assert.False(t, conv.can(eventFinish))
	assert.False(t, conv.can(eventTitle))

	require.NoError(t, conv.fire(ctx, eventStart))
	assert.Equal(t, "awaiting_title", conv.token())

	require.NoError(t, conv.fire(ctx, eventTitle))
	conv.pollID = 3
	assert.Equal(t, "awaiting_option:3", conv.token())
	assert.True(t, conv.can(eventFinish))

	require.NoError(t, conv.fire(ctx, eventOption))
	assert.Equal(t, "awaiting_option:3", conv.token())

	require.NoError(t, conv.fire(ctx, eventFinish))
	assert.Equal(t, "", conv.token())
	assert.Zero(t, conv.pollID)

	require.NoError(t, conv.fire(ctx, eventReset))
	assert.Error(t, conv.fire(ctx, eventOption))
}
