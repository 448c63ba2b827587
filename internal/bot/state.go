package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/looplab/fsm"
)

// Conversation states. The awaiting-option state carries the id of the poll being built,
// stored in the session token as "awaiting_option:<id>".
const (
	stateNone           = "none"
	stateAwaitingTitle  = "awaiting_title"
	stateAwaitingOption = "awaiting_option"
)

const (
	eventStart  = "start"
	eventTitle  = "title"
	eventOption = "option"
	eventFinish = "finish"
	eventReset  = "reset"
)

var allStates = []string{stateNone, stateAwaitingTitle, stateAwaitingOption}

var transitions = fsm.Events{
	{Name: eventStart, Src: allStates, Dst: stateAwaitingTitle},
	{Name: eventTitle, Src: []string{stateAwaitingTitle}, Dst: stateAwaitingOption},
	{Name: eventOption, Src: []string{stateAwaitingOption}, Dst: stateAwaitingOption},
	{Name: eventFinish, Src: []string{stateAwaitingOption}, Dst: stateNone},
	{Name: eventReset, Src: allStates, Dst: stateNone},
}

// conversation is one chat's position in the poll creation dialog.
type conversation struct {
	machine *fsm.FSM
	pollID  int64
}

// restoreConversation rebuilds the dialog from a session token. Unknown or
// malformed tokens, including the empty token of an expired session, start at none.
func restoreConversation(token string) *conversation {
	state, pollID := stateNone, int64(0)
	switch {
	case token == stateAwaitingTitle:
		state = stateAwaitingTitle
	case strings.HasPrefix(token, stateAwaitingOption+":"):
		id, err := strconv.ParseInt(strings.TrimPrefix(token, stateAwaitingOption+":"), 10, 64)
		if err == nil && id > 0 {
			state, pollID = stateAwaitingOption, id
		}
	}
	return &conversation{machine: fsm.NewFSM(state, transitions, nil), pollID: pollID}
}

func (c *conversation) state() string {
	return c.machine.Current()
}

func (c *conversation) can(event string) bool {
	return c.machine.Can(event)
}

// fire applies event. Self-transitions such as option after option are not errors.
func (c *conversation) fire(ctx context.Context, event string) error {
	err := c.machine.Event(ctx, event)
	var same fsm.NoTransitionError
	if err != nil && !errors.As(err, &same) {
		return err
	}
	if c.state() != stateAwaitingOption {
		c.pollID = 0
	}
	return nil
}

// token encodes the current state for the session store; "" means nothing to keep.
func (c *conversation) token() string {
	switch c.state() {
	case stateAwaitingTitle:
		return stateAwaitingTitle
	case stateAwaitingOption:
		return stateAwaitingOption + ":" + strconv.FormatInt(c.pollID, 10)
	default:
		return ""
	}
}
