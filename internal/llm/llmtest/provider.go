// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/ziadkadry99/auto-reply/internal/llm"
)

// Provider records requests and answers them from a script. Handler, when
// set, decides every reply. Otherwise queued errors are returned first, then
// queued responses, then a reply with content Default.
type Provider struct {
	mu        sync.Mutex
	Calls     []llm.CompletionRequest
	Responses []*llm.CompletionResponse
	Errs      []error
	Default   string
	Handler   func(req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Reply queues a plain text response.
func (p *Provider) Reply(content string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses = append(p.Responses, &llm.CompletionResponse{Content: content, FinishReason: "stop"})
	return p
}

// CallTool queues a response requesting one tool call.
func (p *Provider) CallTool(id, name, args string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses = append(p.Responses, &llm.CompletionResponse{
		ToolCalls:    []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
		FinishReason: "tool_calls",
	})
	return p
}

func (p *Provider) Name() string { return "llmtest" }

func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Handler != nil {
		return p.Handler(req)
	}
	if len(p.Errs) > 0 {
		err := p.Errs[0]
		p.Errs = p.Errs[1:]
		return nil, err
	}
	if len(p.Responses) > 0 {
		resp := p.Responses[0]
		p.Responses = p.Responses[1:]
		return resp, nil
	}
	return &llm.CompletionResponse{Content: p.Default, FinishReason: "stop"}, nil
}

// CallCount returns the number of Complete calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastRequest returns the most recent request, or the zero value.
func (p *Provider) LastRequest() llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return llm.CompletionRequest{}
	}
	return p.Calls[len(p.Calls)-1]
}
