package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/llm"
	"github.com/ziadkadry99/auto-reply/internal/logging"
)

const combinePrompt = `Combine all response messages into one well-written, unified reply.

Role:
%s

Task:
- Read the list of response messages.
- Merge them into one clear, natural, and coherent response.
- Output only the final combined response.`

// Combiner merges the replies produced for one inbound message.
type Combiner struct {
	provider llm.Provider
	opts     Options
}

// NewCombiner creates a combiner.
func NewCombiner(provider llm.Provider, opts Options) *Combiner {
	return &Combiner{provider: provider, opts: opts}
}

// CombineRequest carries the replies to merge and the prompt context.
type CombineRequest struct {
	CompanyID      string
	ConversationID string
	SystemPrompt   string
	History        []conversations.Message
	Replies        []Reply
}

// Combine returns nil for no replies and the reply itself for one. Several
// replies are merged by the model with their attachments unioned; when the
// model fails the texts are joined.
func (c *Combiner) Combine(ctx context.Context, req CombineRequest) *Reply {
	switch len(req.Replies) {
	case 0:
		return nil
	case 1:
		r := req.Replies[0]
		return &r
	}

	sets := make([]attachments.Set, len(req.Replies))
	texts := make([]string, len(req.Replies))
	var numbered strings.Builder
	for i, r := range req.Replies {
		sets[i] = r.Attachments
		texts[i] = r.Text
		fmt.Fprintf(&numbered, "Response %d:\n%s\n\n", i+1, r.Text)
	}
	merged := &Reply{Attachments: attachments.Union(sets...)}

	query := fmt.Sprintf("Merge these %d responses into one coherent reply.\n\n%s", len(req.Replies), strings.TrimSpace(numbered.String()))
	messages := []llm.Message{{Role: llm.RoleSystem, Content: fmt.Sprintf(combinePrompt, req.SystemPrompt)}}
	messages = append(messages, historyMessages(req.History, "")...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		entry := logging.WithConversation(req.CompanyID, req.ConversationID).WithField("component", "combiner")
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn("combining replies failed, joining texts")
		merged.Text = strings.Join(texts, "\n\n")
		return merged
	}
	merged.Text = resp.Content
	return merged
}
