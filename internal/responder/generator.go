// Package responder generates replies with a language model, offering it
// catalog search and customer capture tools, and merges replies when
// several were produced for one message.
package responder

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/customers"
	"github.com/ziadkadry99/auto-reply/internal/llm"
	"github.com/ziadkadry99/auto-reply/internal/logging"
	"github.com/ziadkadry99/auto-reply/internal/metrics"
	"github.com/ziadkadry99/auto-reply/internal/retrieval"
)

// Retriever runs catalog retrieval for the search tool.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// ItemLookup finds catalog items by an exact metadata value.
type ItemLookup interface {
	Lookup(ctx context.Context, companyID, field, value string) ([]retrieval.Candidate, error)
}

// Customers reads and writes customer records.
type Customers interface {
	Get(ctx context.Context, id string) (*customers.Customer, error)
	Create(ctx context.Context, c *customers.Customer) error
	Update(ctx context.Context, id string, p customers.Patch) (*customers.Customer, error)
}

// CustomerLinker attaches a newly created customer to a conversation.
type CustomerLinker interface {
	LinkCustomer(ctx context.Context, conversationID, customerID string) error
}

// Request is one generation.
type Request struct {
	CompanyID      string
	ConversationID string
	// CustomerID is the customer linked to the conversation, if any.
	CustomerID   string
	History      []conversations.Message
	Query        string
	SystemPrompt string
	Capabilities []string
	// ImageMatches selects the image variant when non-empty.
	ImageMatches []ImageMatch
}

// Reply is a generated reply and the files to send with it.
type Reply struct {
	Text        string
	Attachments attachments.Set
}

// Options tune generation.
type Options struct {
	Model         string
	Temperature   float64
	MaxToolRounds int
}

// Generator produces replies.
type Generator struct {
	provider  llm.Provider
	opts      Options
	retriever Retriever
	lookup    ItemLookup
	files     retrieval.LinkedFiles
	customers Customers
	linker    CustomerLinker
	metrics   metrics.Metrics
}

// Deps are the collaborators of a Generator. Any may be nil when the
// matching capability is never enabled.
type Deps struct {
	Retriever Retriever
	Lookup    ItemLookup
	Files     retrieval.LinkedFiles
	Customers Customers
	Linker    CustomerLinker
	Metrics   metrics.Metrics
}

// NewGenerator creates a generator.
func NewGenerator(provider llm.Provider, opts Options, deps Deps) *Generator {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 4
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	return &Generator{
		provider:  provider,
		opts:      opts,
		retriever: deps.Retriever,
		lookup:    deps.Lookup,
		files:     deps.Files,
		customers: deps.Customers,
		linker:    deps.Linker,
		metrics:   m,
	}
}

// Generate produces a reply to req.Query. Tool failures are reported back
// to the model; only a failed model call is an error.
func (g *Generator) Generate(ctx context.Context, req Request) (*Reply, error) {
	start := time.Now()
	defer func() { g.metrics.ObserveGeneration(time.Since(start).Seconds()) }()

	log := logging.WithConversation(req.CompanyID, req.ConversationID).WithField("component", "generator")
	if len(req.ImageMatches) > 0 {
		return g.generateWithImages(ctx, req, log)
	}
	return g.generateWithTools(ctx, req, log)
}

func (g *Generator) generateWithTools(ctx context.Context, req Request, log *logrus.Entry) (*Reply, error) {
	state := &toolState{}
	systemPrompt := req.SystemPrompt
	var tools []tool

	if slices.Contains(req.Capabilities, CapabilitySearchProducts) && g.retriever != nil {
		tools = append(tools, g.searchTool(req, state, log))
	}
	if slices.Contains(req.Capabilities, CapabilityCaptureCustomer) && g.customers != nil && g.linker != nil {
		addendum, t, err := g.customerTool(ctx, req)
		if err != nil {
			log.WithError(err).Warn("customer capture unavailable")
		} else {
			if addendum != "" {
				systemPrompt += "\n" + addendum
			}
			if t != nil {
				tools = append(tools, *t)
			}
		}
	}

	defs := make([]llm.Tool, len(tools))
	byName := make(map[string]tool, len(tools))
	for i, t := range tools {
		defs[i] = t.def
		byName[t.def.Name] = t
	}

	messages := buildMessages(systemPrompt, req.History, req.Query)
	for round := 0; ; round++ {
		creq := llm.CompletionRequest{
			Model:       g.opts.Model,
			Messages:    messages,
			Temperature: g.opts.Temperature,
		}
		// The last round withholds tools so the model has to answer.
		if round < g.opts.MaxToolRounds {
			creq.Tools = defs
		}
		resp, err := g.provider.Complete(ctx, creq)
		if err != nil {
			return nil, fmt.Errorf("generating reply: %w", err)
		}
		if len(resp.ToolCalls) == 0 || creq.Tools == nil {
			return &Reply{Text: resp.Content, Attachments: state.attachments}, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    g.runTool(ctx, byName, call, log),
			})
		}
	}
}

func (g *Generator) runTool(ctx context.Context, tools map[string]tool, call llm.ToolCall, log *logrus.Entry) string {
	t, ok := tools[call.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q.", call.Name)
	}
	out, err := t.run(ctx, call.Arguments)
	if err != nil {
		log.WithError(err).WithField("tool", call.Name).Warn("tool call failed")
		return "Error: " + err.Error()
	}
	return out
}
