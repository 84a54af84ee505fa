package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/customers"
	"github.com/ziadkadry99/auto-reply/internal/llm"
	"github.com/ziadkadry99/auto-reply/internal/retrieval"
)

// Capability names accepted in personality and config capability lists.
const (
	CapabilitySearchProducts  = "search_products"
	CapabilityCaptureCustomer = "capture_customer"
)

const (
	searchToolName   = "search_products"
	customerToolName = "update_customer_info"

	askMissingPrompt = "If information (name, email, or phone) is not provided, Ask for the missing information."
	askFirstPrompt   = "First of all, ask name, email, and phone number."
)

// tool is a callable offered to the model.
type tool struct {
	def llm.Tool
	run func(ctx context.Context, args string) (string, error)
}

// toolState carries what tools observed during one generation.
type toolState struct {
	attachments attachments.Set
}

type searchArgs struct {
	Query     string            `json:"query"`
	NewSearch bool              `json:"new_search"`
	Filters   map[string]string `json:"filters"`
}

func (g *Generator) searchTool(req Request, state *toolState, log *logrus.Entry) tool {
	return tool{
		def: llm.Tool{
			Name: searchToolName,
			Description: "Search the product catalog for the items most relevant to the customer's need. " +
				"Include as many specific product details as possible in the query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The product need as feature and value pairs, e.g. \"Size: 1.5 | Conductor: Copper | Insulation: PVC\".",
					},
					"new_search": map[string]any{
						"type":        "boolean",
						"description": "True when the customer asks about something different from the previous search.",
					},
					"filters": map[string]any{
						"type":                 "object",
						"description":          "Exact catalog field values the results must have.",
						"additionalProperties": map[string]any{"type": "string"},
					},
				},
				"required": []string{"query"},
			},
		},
		run: func(ctx context.Context, raw string) (string, error) {
			var args searchArgs
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return "", fmt.Errorf("decoding search arguments: %w", err)
			}
			if strings.TrimSpace(args.Query) == "" {
				args.Query = req.Query
			}
			res, err := g.retriever.Retrieve(ctx, retrieval.Request{
				Query:          args.Query,
				CompanyID:      req.CompanyID,
				ConversationID: req.ConversationID,
				NewSearch:      args.NewSearch,
				Filter:         args.Filters,
			})
			if err != nil {
				log.WithError(err).Warn("product search failed")
				state.attachments = attachments.Set{}
				return "No matching products were found.", nil
			}
			if res.ClarifyingFeatures != nil {
				state.attachments = attachments.Set{}
				return "Need more details. Please clarify: " + formatFeatures(res.ClarifyingFeatures), nil
			}
			state.attachments = res.Attachments
			return formatCandidates(res.Candidates), nil
		},
	}
}

// formatFeatures renders clarifying features as "key (a, b); key (c, d)".
func formatFeatures(features map[string][]string) string {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		if len(features[k]) == 0 {
			parts[i] = k
			continue
		}
		parts[i] = fmt.Sprintf("%s (%s)", k, strings.Join(features[k], ", "))
	}
	return strings.Join(parts, "; ")
}

// formatCandidates lists the distinct candidate texts as a JSON array.
func formatCandidates(cands []retrieval.Candidate) string {
	if len(cands) == 0 {
		return "No matching products were found."
	}
	seen := make(map[string]bool)
	var texts []string
	for _, c := range cands {
		if seen[c.Content] {
			continue
		}
		seen[c.Content] = true
		texts = append(texts, c.Content)
	}
	out, _ := json.Marshal(texts)
	return string(out)
}

type customerArgs struct {
	Name  string `json:"customer_name"`
	Email string `json:"customer_email"`
	Phone string `json:"customer_phone"`
}

// customerTool decides how contact details are captured. A customer with
// every field known gets no tool; a partial customer is patched; otherwise
// the first call creates a customer and links it to the conversation.
func (g *Generator) customerTool(ctx context.Context, req Request) (string, *tool, error) {
	var existing *customers.Customer
	if req.CustomerID != "" {
		c, err := g.customers.Get(ctx, req.CustomerID)
		switch {
		case err == nil:
			existing = c
		case customers.IsNotFound(err):
		default:
			return "", nil, fmt.Errorf("loading customer: %w", err)
		}
	}
	if existing != nil && existing.Complete() {
		return "", nil, nil
	}

	customerID := ""
	prompt := askFirstPrompt
	description := "Store customer information such as name, email, and phone number from the conversation. Any field not found must be an empty string."
	if existing != nil {
		customerID = existing.ID
		prompt = askMissingPrompt
		description = "Extract customer information such as name, email, and phone number from the conversation. Any field not found must be an empty string."
	}

	t := &tool{
		def: llm.Tool{
			Name:        customerToolName,
			Description: description,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"customer_name":  map[string]any{"type": "string", "description": "Customer's full name, or empty string if not provided."},
					"customer_email": map[string]any{"type": "string", "description": "Customer's email address, or empty string if not provided."},
					"customer_phone": map[string]any{"type": "string", "description": "Customer's phone number, or empty string if not provided."},
				},
				"required": []string{"customer_name", "customer_email", "customer_phone"},
			},
		},
		run: func(ctx context.Context, raw string) (string, error) {
			var args customerArgs
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return "", fmt.Errorf("decoding customer arguments: %w", err)
			}
			args.Name = strings.TrimSpace(args.Name)
			args.Email = strings.TrimSpace(args.Email)
			args.Phone = strings.TrimSpace(args.Phone)

			if customerID == "" {
				c := &customers.Customer{CompanyID: req.CompanyID, Name: args.Name, Email: args.Email, Phone: args.Phone}
				if err := g.customers.Create(ctx, c); err != nil {
					return "", err
				}
				if err := g.linker.LinkCustomer(ctx, req.ConversationID, c.ID); err != nil {
					return "", err
				}
				customerID = c.ID
				return "Customer information saved.", nil
			}

			var patch customers.Patch
			if args.Name != "" {
				patch.Name = &args.Name
			}
			if args.Email != "" {
				patch.Email = &args.Email
			}
			if args.Phone != "" {
				patch.Phone = &args.Phone
			}
			if _, err := g.customers.Update(ctx, customerID, patch); err != nil {
				return "", err
			}
			return "Customer information saved.", nil
		},
	}
	return prompt, t, nil
}
