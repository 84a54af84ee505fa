package responder

import (
	"strings"

	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/llm"
)

// historyMessages turns stored messages into chat turns: customer messages
// become user turns, agent and bot messages assistant turns. A trailing
// customer message equal to query is dropped because the query is sent as
// the final user turn.
func historyMessages(history []conversations.Message, query string) []llm.Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.SenderType == conversations.SenderCustomer && strings.TrimSpace(last.Content) == strings.TrimSpace(query) {
			history = history[:n-1]
		}
	}
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleAssistant
		if m.SenderType == conversations.SenderCustomer {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// buildMessages assembles system prompt, history and the current query.
func buildMessages(systemPrompt string, history []conversations.Message, query string) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	msgs = append(msgs, historyMessages(history, query)...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: query})
}
