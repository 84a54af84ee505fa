package workflows

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidWorkflow marks workflows whose blocks do not compile.
var ErrInvalidWorkflow = errors.New("invalid workflow")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidWorkflow, fmt.Sprintf(format, args...))
}

// Operator compares a message fact with a configured value.
type Operator string

const (
	OpIs       Operator = "is"
	OpIsNot    Operator = "is not"
	OpContains Operator = "contains"
	OpGTE      Operator = "is gte"
	OpLTE      Operator = "is lte"
)

// Block keys.
const (
	KeyFirstMessage          = "first_message"
	KeyIncomingMessage       = "incoming_message"
	// KeyIncomingMessageAlt is the spelling saved by the dashboard editor.
	KeyIncomingMessageAlt    = "incoming_Message"
	KeyMessageText           = "message_filter.text"
	KeyMessageType           = "message_filter.type"
	KeyMessageCount          = "message_count"
	KeyConversationStarted   = "conversation_started"
	KeyPlatform              = "platform"
	KeyIntegratedPhoneNumber = "integrated_phone_number"
	KeyCustomerPhoneNumber   = "customer_phone_number"
	KeyAIReply               = "ai_reply"
	KeySendMessage           = "send_message"
	KeyBookMeeting           = "book_meeting"
	KeySendEmail             = "send_email"
	KeyDelay                 = "delay"
)

const dateLayout = "2006-01-02"

var labels = map[string]string{
	KeyMessageText:           "Message Filter Text",
	KeyMessageType:           "Message Filter Type",
	KeyMessageCount:          "Message Count",
	KeyConversationStarted:   "Conversation Started",
	KeyPlatform:              "Platform",
	KeyIntegratedPhoneNumber: "Integrated Phone Number",
	KeyCustomerPhoneNumber:   "Customer Phone Number",
	KeySendMessage:           "Send Message",
	KeyBookMeeting:           "Book Meeting",
	KeySendEmail:             "Send Email",
	KeyDelay:                 "Delay",
}

// Facts are the message and conversation properties conditions inspect.
type Facts struct {
	Text            string
	Type            string
	MessageCount    int
	StartedOn       time.Time
	Platform        string
	IntegratedPhone string
	CustomerPhone   string
}

// condition is one compiled filter or condition block.
type condition interface {
	key() string
	eval(f *Facts) bool
}

type stringCondition struct {
	k     string
	field func(*Facts) string
	op    Operator
	value string
	// fold compares case-insensitively.
	fold bool
}

func (c stringCondition) key() string { return c.k }

func (c stringCondition) eval(f *Facts) bool {
	actual := c.field(f)
	equal := actual == c.value
	if c.fold {
		equal = strings.EqualFold(actual, c.value)
	}
	switch c.op {
	case OpContains:
		return strings.Contains(actual, c.value)
	case OpIs:
		return equal
	case OpIsNot:
		return !equal
	}
	return false
}

type countCondition struct {
	op    Operator
	value int
}

func (c countCondition) key() string { return KeyMessageCount }

func (c countCondition) eval(f *Facts) bool {
	return compareOrdered(f.MessageCount, c.value, c.op)
}

type dateCondition struct {
	op    Operator
	value time.Time
}

func (c dateCondition) key() string { return KeyConversationStarted }

func (c dateCondition) eval(f *Facts) bool {
	if f.StartedOn.IsZero() {
		return false
	}
	y, m, d := f.StartedOn.UTC().Date()
	started := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return compareOrdered(started.Unix(), c.value.Unix(), c.op)
}

// compareOrdered applies op with the configured value on the left:
// "is gte 5" holds while at most five messages were exchanged.
func compareOrdered[T int | int64](actual, configured T, op Operator) bool {
	switch op {
	case OpIs:
		return configured == actual
	case OpGTE:
		return configured >= actual
	case OpLTE:
		return configured <= actual
	}
	return false
}

// ActionKind names an action block.
type ActionKind string

const (
	ActionAIReply     ActionKind = KeyAIReply
	ActionSendMessage ActionKind = KeySendMessage
	ActionBookMeeting ActionKind = KeyBookMeeting
	ActionSendEmail   ActionKind = KeySendEmail
)

type action interface {
	kind() ActionKind
}

type aiReplyAction struct{}

type sendMessageAction struct {
	text  string
	files string
}

type bookMeetingAction struct {
	url string
}

type sendEmailAction struct {
	to    string
	body  string
	files string
}

func (aiReplyAction) kind() ActionKind     { return ActionAIReply }
func (sendMessageAction) kind() ActionKind { return ActionSendMessage }
func (bookMeetingAction) kind() ActionKind { return ActionBookMeeting }
func (sendEmailAction) kind() ActionKind   { return ActionSendEmail }

// trigger holds the compiled trigger node. Events are OR-ed, filters AND-ed.
type trigger struct {
	firstMessage bool
	incoming     bool
	filters      []condition
}

func (t *trigger) matches(f *Facts) bool {
	// A trigger made only of filters fires on every incoming message.
	event := t.incoming || (!t.firstMessage && !t.incoming)
	if t.firstMessage && f.MessageCount == 1 {
		event = true
	}
	if !event {
		return false
	}
	for _, c := range t.filters {
		if !c.eval(f) {
			return false
		}
	}
	return true
}

// step is one compiled node.
type step struct {
	typ        NodeType
	trigger    *trigger
	conditions []condition
	actions    []action
	delays     []time.Duration
}

// program is a compiled workflow.
type program struct {
	workflow *Workflow
	steps    []step
}

// compile turns a workflow into typed rules. Every unknown key, missing
// setting or operator not allowed for its key is an ErrInvalidWorkflow.
func compile(w *Workflow) (*program, error) {
	triggers := 0
	for _, n := range w.Nodes {
		if n.Type == NodeTrigger {
			triggers++
		}
	}
	if triggers != 1 {
		return nil, invalidf("Workflow must have one trigger node")
	}
	if w.ExceptCase != "" && !w.ExceptCase.Valid() {
		return nil, invalidf("Except case %q must be one of sample, move, ignore", w.ExceptCase)
	}

	p := &program{workflow: w}
	for _, n := range w.Nodes {
		s := step{typ: n.Type}
		switch n.Type {
		case NodeTrigger:
			if len(n.Blocks) == 0 {
				return nil, invalidf("Trigger node must have at least one block")
			}
			t, err := compileTrigger(n.Blocks)
			if err != nil {
				return nil, err
			}
			s.trigger = t
		case NodeCondition:
			for _, b := range n.Blocks {
				c, err := compileCondition(b)
				if err != nil {
					return nil, err
				}
				s.conditions = append(s.conditions, c)
			}
		case NodeAction:
			for _, b := range n.Blocks {
				a, err := compileAction(b)
				if err != nil {
					return nil, err
				}
				s.actions = append(s.actions, a)
			}
		case NodeDelay:
			for _, b := range n.Blocks {
				d, err := compileDelay(b)
				if err != nil {
					return nil, err
				}
				s.delays = append(s.delays, d)
			}
		default:
			return nil, invalidf("unknown node type %q", n.Type)
		}
		p.steps = append(p.steps, s)
	}
	return p, nil
}

func compileTrigger(blocks []Block) (*trigger, error) {
	t := &trigger{}
	for _, b := range blocks {
		switch b.Key {
		case KeyFirstMessage:
			t.firstMessage = true
		case KeyIncomingMessage, KeyIncomingMessageAlt:
			t.incoming = true
		case KeyMessageText, KeyMessageType:
			c, err := compileCondition(b)
			if err != nil {
				return nil, err
			}
			t.filters = append(t.filters, c)
		default:
			return nil, invalidf("unknown trigger block %q", b.Key)
		}
	}
	return t, nil
}

func compileCondition(b Block) (condition, error) {
	switch b.Key {
	case KeyMessageText:
		return compileString(b, func(f *Facts) string { return f.Text }, false, OpContains, OpIs, OpIsNot)
	case KeyMessageType:
		return compileString(b, func(f *Facts) string { return f.Type }, true, OpIs, OpIsNot)
	case KeyPlatform:
		return compileString(b, func(f *Facts) string { return f.Platform }, true, OpIs, OpIsNot)
	case KeyIntegratedPhoneNumber:
		return compileString(b, func(f *Facts) string { return f.IntegratedPhone }, false, OpIs, OpIsNot)
	case KeyCustomerPhoneNumber:
		return compileString(b, func(f *Facts) string { return f.CustomerPhone }, false, OpIs, OpIsNot)
	case KeyMessageCount:
		op, err := operator(b, OpIs, OpGTE, OpLTE)
		if err != nil {
			return nil, err
		}
		n, ok := intSetting(b.Settings, "value")
		if !ok {
			return nil, invalidf("%s cannot be empty and must be an integer", labels[b.Key])
		}
		return countCondition{op: op, value: n}, nil
	case KeyConversationStarted:
		op, err := operator(b, OpIs, OpGTE, OpLTE)
		if err != nil {
			return nil, err
		}
		raw := stringSetting(b.Settings, "value")
		day, perr := time.Parse(dateLayout, raw)
		if raw == "" || perr != nil {
			return nil, invalidf("%s must be a date formatted YYYY-MM-DD", labels[b.Key])
		}
		return dateCondition{op: op, value: day}, nil
	default:
		return nil, invalidf("unknown condition block %q", b.Key)
	}
}

func compileString(b Block, field func(*Facts) string, fold bool, allowed ...Operator) (condition, error) {
	value := stringSetting(b.Settings, "value")
	if value == "" {
		return nil, invalidf("%s cannot be empty", labels[b.Key])
	}
	op, err := operator(b, allowed...)
	if err != nil {
		return nil, err
	}
	return stringCondition{k: b.Key, field: field, op: op, value: value, fold: fold}, nil
}

func operator(b Block, allowed ...Operator) (Operator, error) {
	raw := stringSetting(b.Settings, "operator")
	if raw == "" {
		return "", invalidf("%s Operator cannot be empty", labels[b.Key])
	}
	op := Operator(strings.ToLower(strings.TrimSpace(raw)))
	for _, a := range allowed {
		if op == a {
			return op, nil
		}
	}
	return "", invalidf("%s does not support operator %q", labels[b.Key], raw)
}

func compileAction(b Block) (action, error) {
	switch b.Key {
	case KeyAIReply:
		return aiReplyAction{}, nil
	case KeySendMessage:
		text := stringSetting(b.Settings, "value_0")
		if text == "" {
			text = stringSetting(b.Settings, "value")
		}
		if text == "" {
			return nil, invalidf("%s cannot be empty", labels[b.Key])
		}
		return sendMessageAction{text: text, files: stringSetting(b.Settings, "value_1")}, nil
	case KeyBookMeeting:
		url := stringSetting(b.Settings, "value")
		if url == "" {
			return nil, invalidf("%s link cannot be empty", labels[b.Key])
		}
		return bookMeetingAction{url: url}, nil
	case KeySendEmail:
		to := stringSetting(b.Settings, "value_0")
		body := stringSetting(b.Settings, "value_1")
		if to == "" || body == "" {
			return nil, invalidf("%s needs a receiver and content", labels[b.Key])
		}
		return sendEmailAction{to: to, body: body, files: stringSetting(b.Settings, "value_2")}, nil
	default:
		return nil, invalidf("unknown action block %q", b.Key)
	}
}

func compileDelay(b Block) (time.Duration, error) {
	if b.Key != KeyDelay {
		return 0, invalidf("unknown delay block %q", b.Key)
	}
	n, ok := intSetting(b.Settings, "value")
	if !ok || n < 0 {
		return 0, invalidf("%s cannot be empty and must be a non-negative integer", labels[b.Key])
	}
	return time.Duration(n) * time.Second, nil
}

func stringSetting(settings map[string]any, key string) string {
	switch v := settings[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// intSetting accepts whole numbers only; JSON numbers decode as float64.
func intSetting(settings map[string]any, key string) (int, bool) {
	switch v := settings[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}
