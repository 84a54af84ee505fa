package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/channels"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/logging"
)

// Intake is the acceptance path of inbound messages. It stores the
// customer message and hands the reply to the dispatcher, returning before
// any reply work starts.
type Intake struct {
	o          *Orchestrator
	dispatcher *Dispatcher
	log        *logrus.Entry
}

// NewIntake creates an intake feeding o through d.
func NewIntake(o *Orchestrator, d *Dispatcher) *Intake {
	return &Intake{o: o, dispatcher: d, log: logging.WithComponent("intake")}
}

func sourceOf(p companies.Platform) string {
	switch p {
	case companies.PlatformWeb:
		return "Web"
	default:
		return "WhatsApp"
	}
}

// Accept implements channels.Receiver.
func (i *Intake) Accept(ctx context.Context, in channels.Incoming) (string, error) {
	if _, err := i.o.Companies.GetCompany(ctx, in.CompanyID); err != nil {
		if errors.Is(err, companies.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrCompanyNotFound, err)
		}
		return "", err
	}
	conv, created, err := i.o.Conversations.FindOrCreate(ctx, conversations.Conversation{
		CompanyID:    in.CompanyID,
		Name:         in.Name,
		Source:       sourceOf(in.Platform),
		PhoneNumber:  in.From,
		InstanceName: in.Instance,
	})
	if err != nil {
		return "", err
	}
	log := logging.WithConversation(in.CompanyID, conv.ID)
	if created {
		log.WithField("platform", in.Platform).Info("conversation started")
	}

	msg := &conversations.Message{
		ConversationID: conv.ID,
		SenderType:     conversations.SenderCustomer,
		Content:        in.Content,
	}
	if err := i.o.Conversations.AddMessage(ctx, msg); err != nil {
		return conv.ID, err
	}
	if !conv.AIReply {
		return conv.ID, nil
	}

	job := Inbound{
		CompanyID:      in.CompanyID,
		ConversationID: conv.ID,
		From:           in.From,
		Instance:       in.Instance,
		Content:        in.Content,
		Type:           in.Type,
		Platform:       in.Platform,
		Image:          in.Image,
	}
	err = i.dispatcher.Submit(conv.ID, func(ctx context.Context) {
		rep, err := i.o.Process(ctx, job)
		if err != nil {
			log.WithError(err).Error("answering message")
			return
		}
		log.WithField("sent", len(rep.Messages)).Debug("message answered")
	})
	if err != nil {
		return conv.ID, fmt.Errorf("queueing reply: %w", err)
	}
	return conv.ID, nil
}
