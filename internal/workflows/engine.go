package workflows

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/logging"
	"github.com/ziadkadry99/auto-reply/internal/metrics"
	"github.com/ziadkadry99/auto-reply/internal/responder"
)

// State is the progress of one workflow evaluation.
type State string

const (
	StatePending   State = "pending"
	StateTriggered State = "triggered"
	StatePassed    State = "passed"
	StateRejected  State = "rejected"
	StateActing    State = "acting"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// History reads the stored messages of a conversation, oldest first.
type History interface {
	ListMessages(ctx context.Context, conversationID string) ([]conversations.Message, error)
}

// Files resolves the attachment list of an action block.
type Files interface {
	Resolve(companyID, workflowID, list string) (attachments.Set, error)
}

// Actor carries out actions for the engine.
type Actor interface {
	// Reply generates a reply seeded with history without delivering it.
	// A nil reply means generation produced nothing usable.
	Reply(ctx context.Context, history []conversations.Message) (*responder.Reply, error)
	// Send delivers a literal message and persists it once delivered.
	Send(ctx context.Context, text string, files attachments.Set) (*conversations.Message, error)
	// Email dispatches an email.
	Email(ctx context.Context, to, body string, files attachments.Set) error
}

// ActionStatus is the result of one action block.
type ActionStatus string

const (
	ActionGenerated ActionStatus = "generated"
	ActionSent      ActionStatus = "sent"
	ActionEmpty     ActionStatus = "empty"
	ActionFailed    ActionStatus = "failed"
)

// ActionResult records what one action block did.
type ActionResult struct {
	Kind    ActionKind
	Status  ActionStatus
	Message *conversations.Message
	Reply   *responder.Reply
	Err     error
}

// Outcome is the evaluation of one workflow.
type Outcome struct {
	WorkflowID string
	Name       string
	State      State
	Actions    []ActionResult
}

// Input describes the inbound message being evaluated.
type Input struct {
	CompanyID       string
	ConversationID  string
	Text            string
	Type            string
	Platform        string
	IntegratedPhone string
	CustomerPhone   string
}

// Result collects the outcome of every evaluated workflow.
type Result struct {
	Outcomes []Outcome
	// ExceptCases are the de-duplicated fallback policies, in the order
	// they were first contributed.
	ExceptCases []ExceptCase
	// Replies are generated by ai_reply actions and still undelivered.
	Replies []responder.Reply
	// Sent are the literal messages delivered and persisted inline.
	Sent []conversations.Message
}

// HasExcept reports whether policy was contributed.
func (r *Result) HasExcept(policy ExceptCase) bool {
	return slices.Contains(r.ExceptCases, policy)
}

func (r *Result) addExcept(policy ExceptCase) {
	if policy == "" {
		policy = ExceptSample
	}
	if !r.HasExcept(policy) {
		r.ExceptCases = append(r.ExceptCases, policy)
	}
}

// Options tune the engine.
type Options struct {
	// MaxDelay caps every delay block; zero leaves delays uncapped.
	MaxDelay time.Duration
	Metrics  metrics.Metrics
}

// Engine evaluates workflows against inbound messages.
type Engine struct {
	history  History
	files    Files
	maxDelay time.Duration
	metrics  metrics.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an engine.
func NewEngine(history History, files Files, opts Options) *Engine {
	m := opts.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	return &Engine{
		history:  history,
		files:    files,
		maxDelay: opts.MaxDelay,
		metrics:  m,
		sleep:    sleepContext,
	}
}

// Run evaluates the runnable workflows in list order. Every runnable
// workflow is compiled before anything runs, so a malformed one fails the
// run without side effects. When no workflow passed its trigger and
// conditions the sample policy is contributed. The returned error is
// either ErrInvalidWorkflow or the context error that interrupted a
// delay; the partial result is returned with the latter.
func (e *Engine) Run(ctx context.Context, workflows []Workflow, in Input, actor Actor) (*Result, error) {
	var programs []*program
	for i := range workflows {
		w := &workflows[i]
		if !w.Runnable() {
			continue
		}
		p, err := compile(w)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", w.ID, err)
		}
		programs = append(programs, p)
	}

	res := &Result{}
	passed := false
	for _, p := range programs {
		out, err := e.evaluate(ctx, p, in, actor, res)
		res.Outcomes = append(res.Outcomes, out)
		e.metrics.IncWorkflow(string(out.State))
		if out.State == StateRejected {
			res.addExcept(p.workflow.ExceptCase)
		} else {
			passed = true
		}
		if err != nil {
			return res, err
		}
	}
	if !passed {
		res.addExcept(ExceptSample)
	}
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, p *program, in Input, actor Actor, res *Result) (Outcome, error) {
	w := p.workflow
	log := logging.WithWorkflow(logging.WithConversation(in.CompanyID, in.ConversationID), w.ID, w.Name)
	out := Outcome{WorkflowID: w.ID, Name: w.Name, State: StatePending}

	history, err := e.history.ListMessages(ctx, in.ConversationID)
	if err != nil {
		log.WithError(err).Warn("loading conversation history")
		out.State = StateRejected
		return out, nil
	}
	facts := Facts{
		Text:            in.Text,
		Type:            in.Type,
		MessageCount:    len(history),
		Platform:        in.Platform,
		IntegratedPhone: in.IntegratedPhone,
		CustomerPhone:   in.CustomerPhone,
	}
	if len(history) > 0 {
		facts.StartedOn = history[0].CreatedAt
	}

	for _, s := range p.steps {
		switch s.typ {
		case NodeTrigger:
			if !s.trigger.matches(&facts) {
				log.Debug("trigger did not match")
				out.State = StateRejected
				return out, nil
			}
			out.State = StateTriggered
		case NodeCondition:
			for _, c := range s.conditions {
				if !c.eval(&facts) {
					log.WithField("block", c.key()).Debug("condition not met")
					out.State = StateRejected
					return out, nil
				}
			}
			out.State = StatePassed
		case NodeAction:
			out.State = StateActing
			for _, a := range s.actions {
				r := e.act(ctx, a, w, in, history, actor, log)
				out.Actions = append(out.Actions, r)
				e.metrics.IncAction(string(r.Kind), string(r.Status))
				switch r.Status {
				case ActionGenerated:
					res.Replies = append(res.Replies, *r.Reply)
				case ActionSent:
					if r.Message != nil {
						res.Sent = append(res.Sent, *r.Message)
					}
				case ActionFailed:
					// Earlier sends stay delivered and persisted.
					if r.Kind != ActionAIReply {
						out.State = StateAborted
						return out, nil
					}
				}
			}
		case NodeDelay:
			for _, d := range s.delays {
				if d <= 0 {
					continue
				}
				if e.maxDelay > 0 && d > e.maxDelay {
					d = e.maxDelay
				}
				if err := e.sleep(ctx, d); err != nil {
					out.State = StateAborted
					return out, err
				}
			}
		}
	}
	out.State = StateCompleted
	return out, nil
}

func (e *Engine) act(ctx context.Context, a action, w *Workflow, in Input, history []conversations.Message, actor Actor, log *logrus.Entry) ActionResult {
	r := ActionResult{Kind: a.kind()}
	fail := func(err error) ActionResult {
		log.WithError(err).WithField("action", r.Kind).Warn("workflow action failed")
		r.Status = ActionFailed
		r.Err = err
		return r
	}

	switch a := a.(type) {
	case aiReplyAction:
		reply, err := actor.Reply(ctx, history)
		if err != nil {
			return fail(err)
		}
		if reply == nil {
			r.Status = ActionEmpty
			return r
		}
		r.Status = ActionGenerated
		r.Reply = reply
	case sendMessageAction:
		files, err := e.resolve(in.CompanyID, w.ID, a.files)
		if err != nil {
			return fail(err)
		}
		msg, err := actor.Send(ctx, a.text, files)
		if err != nil {
			return fail(err)
		}
		r.Status = ActionSent
		r.Message = msg
	case bookMeetingAction:
		msg, err := actor.Send(ctx, "Please book a meeting on this: "+a.url, attachments.Set{})
		if err != nil {
			return fail(err)
		}
		r.Status = ActionSent
		r.Message = msg
	case sendEmailAction:
		files, err := e.resolve(in.CompanyID, w.ID, a.files)
		if err != nil {
			return fail(err)
		}
		if err := actor.Email(ctx, a.to, a.body, files); err != nil {
			return fail(err)
		}
		r.Status = ActionSent
	default:
		return fail(fmt.Errorf("unhandled action %q", a.kind()))
	}
	return r
}

func (e *Engine) resolve(companyID, workflowID, list string) (attachments.Set, error) {
	if list == "" || e.files == nil {
		return attachments.Set{}, nil
	}
	return e.files.Resolve(companyID, workflowID, list)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
