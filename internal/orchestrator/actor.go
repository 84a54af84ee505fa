package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/channels"
	"github.com/ziadkadry99/auto-reply/internal/conversations"
	"github.com/ziadkadry99/auto-reply/internal/mailer"
	"github.com/ziadkadry99/auto-reply/internal/personality"
	"github.com/ziadkadry99/auto-reply/internal/responder"
)

// actor carries out workflow actions for one inbound message.
type actor struct {
	o       *Orchestrator
	in      Inbound
	conv    *conversations.Conversation
	profile personality.Profile
	target  channels.Target
	log     *logrus.Entry

	imageOnce sync.Once
	images    []responder.ImageMatch
}

func (a *actor) imageMatches(ctx context.Context) []responder.ImageMatch {
	a.imageOnce.Do(func() {
		if len(a.in.Image) == 0 || a.o.ImageSearch == nil {
			return
		}
		matches, err := a.o.ImageSearch.Search(ctx, a.in.CompanyID, a.in.Image)
		if err != nil {
			a.log.WithError(err).Warn("image search failed; answering from text")
			return
		}
		a.images = matches
	})
	return a.images
}

// Reply generates without delivering. Empty text counts as no reply.
func (a *actor) Reply(ctx context.Context, history []conversations.Message) (*responder.Reply, error) {
	reply, err := a.o.Generator.Generate(ctx, responder.Request{
		CompanyID:      a.in.CompanyID,
		ConversationID: a.in.ConversationID,
		CustomerID:     a.conv.CustomerID,
		History:        history,
		Query:          a.in.Content,
		SystemPrompt:   a.profile.SystemPrompt,
		Capabilities:   a.profile.Capabilities,
		ImageMatches:   a.imageMatches(ctx),
	})
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.Text == "" {
		return nil, nil
	}
	return reply, nil
}

// Send delivers text and persists it only once delivered.
func (a *actor) Send(ctx context.Context, text string, files attachments.Set) (*conversations.Message, error) {
	if err := a.o.Delivery.Deliver(ctx, a.target, text, files); err != nil {
		return nil, err
	}
	msg := &conversations.Message{
		ConversationID: a.in.ConversationID,
		SenderType:     conversations.SenderBot,
		Content:        text,
		Extra:          files,
	}
	if err := a.o.Conversations.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persisting delivered message: %w", err)
	}
	return msg, nil
}

func (a *actor) Email(ctx context.Context, to, body string, files attachments.Set) error {
	if a.o.Mailer == nil {
		return errors.New("email is not configured")
	}
	paths := append(append([]string{}, files.Images...), files.Documents...)
	return a.o.Mailer.Send(ctx, mailer.Message{
		To:          to,
		Subject:     mailer.DefaultSubject,
		Body:        body,
		Attachments: paths,
	})
}
