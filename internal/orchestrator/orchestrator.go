// Package orchestrator answers inbound customer messages: it runs the
// company's workflows, falls back to a generated reply, merges replies,
// delivers and persists the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/channels"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/energy"
	"github.com/ziadkadry99/auto-reply/internal/logging"
	"github.com/ziadkadry99/auto-reply/internal/mailer"
	"github.com/ziadkadry99/auto-reply/internal/metrics"
	"github.com/ziadkadry99/auto-reply/internal/personality"
	"github.com/ziadkadry99/auto-reply/internal/responder"
	"github.com/ziadkadry99/auto-reply/internal/workflows"
)

// ErrCompanyNotFound is returned for messages addressed to an unknown company.
var ErrCompanyNotFound = errors.New("company not found")

// Companies reads tenants and their integrations.
type Companies interface {
	GetCompany(ctx context.Context, id string) (*companies.Company, error)
	FindByInstance(ctx context.Context, instance string) (*companies.Integration, error)
	FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*companies.Integration, error)
}

// Conversations reads and appends conversation history.
type Conversations interface {
	Get(ctx context.Context, id string) (*conversations.Conversation, error)
	FindOrCreate(ctx context.Context, tmpl conversations.Conversation) (*conversations.Conversation, bool, error)
	AddMessage(ctx context.Context, m *conversations.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]conversations.Message, error)
	RecordEnergy(ctx context.Context, messageID string, kwh, kgCO2 float64) error
}

// Workflows lists the workflows eligible to run.
type Workflows interface {
	ListRunnable(ctx context.Context, companyID string) ([]workflows.Workflow, error)
}

// Profiles resolves a company's personality.
type Profiles interface {
	Profile(ctx context.Context, companyID string) personality.Profile
}

// Generator produces replies.
type Generator interface {
	Generate(ctx context.Context, req responder.Request) (*responder.Reply, error)
}

// Combiner merges replies.
type Combiner interface {
	Combine(ctx context.Context, req responder.CombineRequest) *responder.Reply
}

// ImageSearch finds catalog images similar to a customer image.
type ImageSearch interface {
	Search(ctx context.Context, companyID string, image []byte) ([]responder.ImageMatch, error)
}

// Delivery sends messages out on a channel.
type Delivery interface {
	Deliver(ctx context.Context, t channels.Target, text string, files attachments.Set) error
}

// Inbound is a customer message already stored in its conversation.
type Inbound struct {
	CompanyID      string
	ConversationID string
	From           string
	Instance       string
	Content        string
	Type           string
	Platform       companies.Platform
	Image          []byte
}

// Report is everything one inbound message caused.
type Report struct {
	// Messages are the persisted outbound messages, in delivery order.
	Messages []conversations.Message
	// Workflows is the engine result; nil when the engine did not run.
	Workflows *workflows.Result
	// Fallback reports whether the default reply path ran.
	Fallback bool
	Energy   energy.Reading
	// Skipped is set when the conversation has automatic replies off.
	Skipped bool
}

// Deps are the collaborators of an Orchestrator. ImageSearch and Mailer
// may be nil.
type Deps struct {
	Companies     Companies
	Conversations Conversations
	Workflows     Workflows
	Engine        *workflows.Engine
	Profiles      Profiles
	Generator     Generator
	Combiner      Combiner
	ImageSearch   ImageSearch
	Delivery      Delivery
	Mailer        mailer.Mailer
	Energy        energy.Tracker
	Metrics       metrics.Metrics
}

// Orchestrator handles inbound messages.
type Orchestrator struct {
	Deps
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Energy == nil {
		deps.Energy = energy.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	return &Orchestrator{Deps: deps}
}

// HandleInboundMessage answers one customer message and returns the bot
// messages it persisted.
func (o *Orchestrator) HandleInboundMessage(ctx context.Context, in Inbound) ([]conversations.Message, error) {
	rep, err := o.Process(ctx, in)
	if rep == nil {
		return nil, err
	}
	return rep.Messages, err
}

// Process answers one customer message. An unknown company and a malformed
// workflow fail before anything is sent. Delivery and generation failures
// are logged and leave the end user without that reply. When the context
// ends mid-run the partial report is returned with the context error.
func (o *Orchestrator) Process(ctx context.Context, in Inbound) (*Report, error) {
	log := logging.WithConversation(in.CompanyID, in.ConversationID).WithField("platform", in.Platform)

	if _, err := o.Companies.GetCompany(ctx, in.CompanyID); err != nil {
		if errors.Is(err, companies.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrCompanyNotFound, err)
		}
		return nil, err
	}
	conv, err := o.Conversations.Get(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.AIReply {
		log.Debug("automatic replies disabled for conversation")
		return &Report{Skipped: true}, nil
	}
	o.Metrics.IncInbound(string(in.Platform))

	list, err := o.Workflows.ListRunnable(ctx, in.CompanyID)
	if err != nil {
		log.WithError(err).Warn("listing workflows; answering with the default reply")
		list = nil
	}

	target, integration, err := o.target(ctx, in, conv, log)
	if err != nil {
		return nil, err
	}
	var integratedPhone string
	if integration != nil {
		integratedPhone = integration.PhoneNumber
	}

	run := o.Energy.Start()
	a := &actor{
		o:       o,
		in:      in,
		conv:    conv,
		profile: o.Profiles.Profile(ctx, in.CompanyID),
		target:  target,
		log:     log,
	}
	rep := &Report{}
	defer func() {
		rep.Energy = run.Stop()
		o.recordEnergy(rep, log)
	}()

	res, err := o.Engine.Run(ctx, list, workflows.Input{
		CompanyID:       in.CompanyID,
		ConversationID:  in.ConversationID,
		Text:            in.Content,
		Type:            in.Type,
		Platform:        string(in.Platform),
		IntegratedPhone: integratedPhone,
		CustomerPhone:   in.From,
	}, a)
	if errors.Is(err, workflows.ErrInvalidWorkflow) {
		return nil, err
	}
	rep.Workflows = res
	if res != nil {
		rep.Messages = append(rep.Messages, res.Sent...)
	}
	if err != nil {
		return rep, err
	}

	replies := res.Replies
	for _, policy := range res.ExceptCases {
		switch policy {
		case workflows.ExceptSample:
			rep.Fallback = true
			history, err := o.Conversations.ListMessages(ctx, in.ConversationID)
			if err != nil {
				log.WithError(err).Warn("loading history for default reply")
				continue
			}
			reply, err := a.Reply(ctx, history)
			if err != nil {
				log.WithError(err).Warn("default reply generation failed")
				continue
			}
			if reply != nil {
				replies = append(replies, *reply)
			}
		case workflows.ExceptMove, workflows.ExceptIgnore:
			log.WithField("except_case", policy).Info("except case has no action")
		}
	}

	if len(replies) == 0 {
		return rep, ctx.Err()
	}
	history, err := o.Conversations.ListMessages(ctx, in.ConversationID)
	if err != nil {
		log.WithError(err).Warn("loading history for combiner")
	}
	combined := o.Combiner.Combine(ctx, responder.CombineRequest{
		CompanyID:      in.CompanyID,
		ConversationID: in.ConversationID,
		SystemPrompt:   a.profile.SystemPrompt,
		History:        history,
		Replies:        replies,
	})
	if combined == nil || strings.TrimSpace(combined.Text) == "" {
		return rep, ctx.Err()
	}
	msg, err := a.Send(ctx, combined.Text, combined.Attachments)
	if err != nil {
		log.WithError(err).Warn("reply not delivered")
		return rep, ctx.Err()
	}
	rep.Messages = append(rep.Messages, *msg)
	return rep, nil
}

// target resolves where replies go and the integration the message arrived
// on. Web chat has no integration; a bot-service instance without a
// registered integration still gets replies.
func (o *Orchestrator) target(ctx context.Context, in Inbound, conv *conversations.Conversation, log *logrus.Entry) (channels.Target, *companies.Integration, error) {
	t := channels.Target{
		Platform:       in.Platform,
		CompanyID:      in.CompanyID,
		ConversationID: conv.ID,
		Instance:       in.Instance,
		To:             in.From,
	}
	if t.Instance == "" {
		t.Instance = conv.InstanceName
	}
	if t.To == "" {
		t.To = conv.PhoneNumber
	}
	switch {
	case t.Platform == companies.PlatformWACA:
		integration, err := o.Companies.FindByPhoneNumberID(ctx, t.Instance)
		if err != nil {
			return t, nil, fmt.Errorf("business api integration %s: %w", t.Instance, err)
		}
		t.AccessToken = integration.AccessToken
		return t, integration, nil
	case t.Platform == companies.PlatformWeb || t.Instance == "":
		return t, nil, nil
	}
	integration, err := o.Companies.FindByInstance(ctx, t.Instance)
	if errors.Is(err, companies.ErrNotFound) {
		log.WithField("instance", t.Instance).Debug("no integration registered for instance")
		return t, nil, nil
	}
	if err != nil {
		return t, nil, err
	}
	return t, integration, nil
}

// recordEnergy attaches the run's reading to the last message it sent.
func (o *Orchestrator) recordEnergy(rep *Report, log *logrus.Entry) {
	if len(rep.Messages) == 0 {
		return
	}
	o.Metrics.AddEnergy(rep.Energy.KWh, rep.Energy.KgCO2)
	last := &rep.Messages[len(rep.Messages)-1]
	// Recorded even after ctx has ended.
	if err := o.Conversations.RecordEnergy(context.Background(), last.ID, rep.Energy.KWh, rep.Energy.KgCO2); err != nil {
		log.WithError(err).Warn("recording energy")
		return
	}
	last.EnergyKWh = rep.Energy.KWh
	last.CarbonKg = rep.Energy.KgCO2
}
