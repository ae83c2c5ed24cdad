// Package memory decides what earlier context of a tweet thread the agent
// sees, and folds old turns into a running summary.
package memory

import (
	"context"

	"walletai/internal/history"

	"github.com/openai/openai-go/v3/responses"
)

// Memory recalls prior context for a session to feed into the LLM.
type Memory interface {
	Recall(ctx context.Context, sessionID string) ([]responses.ResponseInputItemUnionParam, error)
}

// ConversationMemory replays the stored turns of a session, keeping the
// summary (if any) and at most the last turns of the thread.
type ConversationMemory struct {
	store *history.Store
	turns int
}

// NewConversationMemory returns a memory that replays the last turns turns;
// turns <= 0 means no limit.
func NewConversationMemory(store *history.Store, turns int) *ConversationMemory {
	return &ConversationMemory{store: store, turns: turns}
}

func (m *ConversationMemory) Recall(ctx context.Context, sessionID string) ([]responses.ResponseInputItemUnionParam, error) {
	items, err := m.store.LoadInputHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return window(items, m.turns), nil
}

// window keeps a leading developer summary plus the items of the last n user
// turns.
func window(items []responses.ResponseInputItemUnionParam, n int) []responses.ResponseInputItemUnionParam {
	if n <= 0 || len(items) == 0 {
		return items
	}

	var head []responses.ResponseInputItemUnionParam
	if role(items[0]) == responses.EasyInputMessageRoleDeveloper {
		head, items = items[:1], items[1:]
	}

	seen := 0
	start := len(items)
	for i := len(items) - 1; i >= 0 && seen < n; i-- {
		if role(items[i]) == responses.EasyInputMessageRoleUser {
			seen++
			start = i
		}
	}
	if seen < n {
		start = 0
	}
	return append(head, items[start:]...)
}

func role(item responses.ResponseInputItemUnionParam) responses.EasyInputMessageRole {
	if item.OfMessage == nil {
		return ""
	}
	return item.OfMessage.Role
}
