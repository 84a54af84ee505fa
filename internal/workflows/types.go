// Package workflows stores company automation rules and evaluates them
// against inbound messages.
package workflows

import (
	"encoding/json"
	"time"
)

// NodeType is the kind of a workflow node.
type NodeType string

const (
	NodeTrigger   NodeType = "trigger"
	NodeCondition NodeType = "condition"
	NodeAction    NodeType = "action"
	NodeDelay     NodeType = "delay"
)

// Status records whether a workflow passed validation.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
)

// ExceptCase is the policy applied when a workflow does not run to
// completion for a message.
type ExceptCase string

const (
	ExceptSample ExceptCase = "sample"
	ExceptMove   ExceptCase = "move"
	ExceptIgnore ExceptCase = "ignore"
)

// Valid reports whether e is a known policy.
func (e ExceptCase) Valid() bool {
	switch e {
	case ExceptSample, ExceptMove, ExceptIgnore:
		return true
	}
	return false
}

// Block is one rule inside a node.
type Block struct {
	Key      string         `json:"key"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Node groups blocks of one type. Nodes run in list order.
type Node struct {
	ID     string   `json:"id,omitempty"`
	Type   NodeType `json:"type"`
	Blocks []Block  `json:"blocks"`
}

// Workflow is a company-defined automation rule. Edges are kept for the
// editor and never consulted when the workflow runs.
type Workflow struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	Name       string          `json:"name"`
	Nodes      []Node          `json:"nodes"`
	Edges      json.RawMessage `json:"edges,omitempty"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Enabled    bool            `json:"enabled"`
	ExceptCase ExceptCase      `json:"except_case"`
	Position   int             `json:"position"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Runnable reports whether the engine should evaluate the workflow.
func (w *Workflow) Runnable() bool {
	return w.Enabled && w.Status == StatusSuccess
}
