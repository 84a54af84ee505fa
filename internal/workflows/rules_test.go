package workflows

import (
	"errors"
	"testing"
	"time"
)

func blk(key string, kv ...any) Block {
	b := Block{Key: key, Settings: map[string]any{}}
	for i := 0; i+1 < len(kv); i += 2 {
		b.Settings[kv[i].(string)] = kv[i+1]
	}
	return b
}

func mustCondition(t *testing.T, b Block) condition {
	t.Helper()
	c, err := compileCondition(b)
	if err != nil {
		t.Fatalf("compileCondition(%s): %v", b.Key, err)
	}
	return c
}

func TestConditionOperators(t *testing.T) {
	facts := &Facts{
		Text:            "What's your price?",
		Type:            "Text",
		MessageCount:    3,
		StartedOn:       time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC),
		Platform:        "whatsapp",
		IntegratedPhone: "+1555000",
		CustomerPhone:   "+4477001",
	}
	tests := []struct {
		name  string
		block Block
		want  bool
	}{
		{"text contains", blk(KeyMessageText, "operator", "contains", "value", "price"), true},
		{"text contains is case sensitive", blk(KeyMessageText, "operator", "contains", "value", "Price"), false},
		{"text is", blk(KeyMessageText, "operator", "is", "value", "What's your price?"), true},
		{"text is not", blk(KeyMessageText, "operator", "is not", "value", "Hello"), true},
		{"type is", blk(KeyMessageType, "operator", "is", "value", "text"), true},
		{"type is not", blk(KeyMessageType, "operator", "is not", "value", "Image"), true},
		{"count is", blk(KeyMessageCount, "operator", "is", "value", float64(3)), true},
		{"count gte met", blk(KeyMessageCount, "operator", "is gte", "value", float64(4)), true},
		{"count gte equal", blk(KeyMessageCount, "operator", "is gte", "value", float64(3)), true},
		{"count gte unmet", blk(KeyMessageCount, "operator", "is gte", "value", float64(2)), false},
		{"count lte met", blk(KeyMessageCount, "operator", "is lte", "value", 2), true},
		{"count lte equal", blk(KeyMessageCount, "operator", "is lte", "value", 3), true},
		{"count lte unmet", blk(KeyMessageCount, "operator", "is lte", "value", 4), false},
		{"started is", blk(KeyConversationStarted, "operator", "is", "value", "2024-05-10"), true},
		{"started gte met", blk(KeyConversationStarted, "operator", "is gte", "value", "2024-05-11"), true},
		{"started gte unmet", blk(KeyConversationStarted, "operator", "is gte", "value", "2024-05-01"), false},
		{"started lte met", blk(KeyConversationStarted, "operator", "is lte", "value", "2024-05-09"), true},
		{"started lte unmet", blk(KeyConversationStarted, "operator", "is lte", "value", "2024-05-11"), false},
		{"platform folds case", blk(KeyPlatform, "operator", "is", "value", "WhatsApp"), true},
		{"platform is not", blk(KeyPlatform, "operator", "is not", "value", "web"), true},
		{"integrated phone", blk(KeyIntegratedPhoneNumber, "operator", "is", "value", "+1555000"), true},
		{"customer phone is not", blk(KeyCustomerPhoneNumber, "operator", "is not", "value", "+4477001"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustCondition(t, tt.block).eval(facts); got != tt.want {
				t.Errorf("eval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConversationStartedWithoutHistory(t *testing.T) {
	c := mustCondition(t, blk(KeyConversationStarted, "operator", "is lte", "value", "2999-01-01"))
	if c.eval(&Facts{}) {
		t.Error("a conversation without messages has no start date")
	}
}

func TestTriggerMatching(t *testing.T) {
	tests := []struct {
		name   string
		blocks []Block
		count  int
		text   string
		want   bool
	}{
		{"first message on first", []Block{blk(KeyFirstMessage)}, 1, "hi", true},
		{"first message later", []Block{blk(KeyFirstMessage)}, 2, "hi", false},
		{"incoming always", []Block{blk(KeyIncomingMessage)}, 7, "hi", true},
		{"editor spelling of incoming", []Block{blk("incoming_Message")}, 7, "hi", true},
		{"events are or-ed", []Block{blk(KeyFirstMessage), blk(KeyIncomingMessage)}, 5, "hi", true},
		{"filter only", []Block{blk(KeyMessageText, "operator", "contains", "value", "price")}, 4, "price?", true},
		{"filter rejects", []Block{blk(KeyIncomingMessage), blk(KeyMessageText, "operator", "contains", "value", "price")}, 4, "hello", false},
		{"filters are and-ed", []Block{
			blk(KeyMessageText, "operator", "contains", "value", "price"),
			blk(KeyMessageType, "operator", "is", "value", "image"),
		}, 1, "price?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := compileTrigger(tt.blocks)
			if err != nil {
				t.Fatal(err)
			}
			f := &Facts{Text: tt.text, Type: "text", MessageCount: tt.count}
			if got := tr.matches(f); got != tt.want {
				t.Errorf("matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		name  string
		block Block
		node  NodeType
	}{
		{"unknown condition", blk("message_length", "operator", "is", "value", "3"), NodeCondition},
		{"empty text value", blk(KeyMessageText, "operator", "contains"), NodeCondition},
		{"missing operator", blk(KeyPlatform, "value", "web"), NodeCondition},
		{"operator not allowed", blk(KeyMessageCount, "operator", "contains", "value", 2), NodeCondition},
		{"gte on text", blk(KeyMessageText, "operator", "is gte", "value", "a"), NodeCondition},
		{"fractional count", blk(KeyMessageCount, "operator", "is", "value", 2.5), NodeCondition},
		{"count as string", blk(KeyMessageCount, "operator", "is", "value", "2"), NodeCondition},
		{"bad date", blk(KeyConversationStarted, "operator", "is", "value", "10/05/2024"), NodeCondition},
		{"unknown action", blk("call_customer"), NodeAction},
		{"empty send message", blk(KeySendMessage), NodeAction},
		{"email without receiver", blk(KeySendEmail, "value_1", "hello"), NodeAction},
		{"meeting without link", blk(KeyBookMeeting), NodeAction},
		{"delay as string", blk(KeyDelay, "value", "5"), NodeDelay},
		{"negative delay", blk(KeyDelay, "value", -1), NodeDelay},
		{"condition key in trigger", blk(KeyMessageCount, "operator", "is", "value", 1), NodeTrigger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Workflow{Nodes: []Node{{Type: NodeTrigger, Blocks: []Block{blk(KeyIncomingMessage)}}}}
			if tt.node == NodeTrigger {
				w.Nodes[0].Blocks = append(w.Nodes[0].Blocks, tt.block)
			} else {
				w.Nodes = append(w.Nodes, Node{Type: tt.node, Blocks: []Block{tt.block}})
			}
			_, err := compile(w)
			if !errors.Is(err, ErrInvalidWorkflow) {
				t.Errorf("compile error = %v, want ErrInvalidWorkflow", err)
			}
		})
	}
}

func TestCompileActions(t *testing.T) {
	w := &Workflow{Nodes: []Node{
		{Type: NodeTrigger, Blocks: []Block{blk(KeyIncomingMessage)}},
		{Type: NodeAction, Blocks: []Block{
			blk(KeyAIReply),
			blk(KeySendMessage, "value_0", "Our price list is on the way", "value_1", "prices.pdf"),
			blk(KeyBookMeeting, "value", "https://cal.example/acme"),
			blk(KeySendEmail, "value_0", "sales@example.com", "value_1", "Lead", "value_2", "*.pdf"),
		}},
		{Type: NodeDelay, Blocks: []Block{blk(KeyDelay, "value", float64(30))}},
	}}
	p, err := compile(w)
	if err != nil {
		t.Fatal(err)
	}
	acts := p.steps[1].actions
	if len(acts) != 4 {
		t.Fatalf("got %d actions", len(acts))
	}
	if sm, ok := acts[1].(sendMessageAction); !ok || sm.text != "Our price list is on the way" || sm.files != "prices.pdf" {
		t.Errorf("send_message = %+v", acts[1])
	}
	if em, ok := acts[3].(sendEmailAction); !ok || em.to != "sales@example.com" || em.files != "*.pdf" {
		t.Errorf("send_email = %+v", acts[3])
	}
	if p.steps[2].delays[0] != 30*time.Second {
		t.Errorf("delay = %v", p.steps[2].delays[0])
	}
}
