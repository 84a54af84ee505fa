package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/logging"
)

// WhatsAppBot delivers messages through the WhatsApp bot service, which
// drives paired WhatsApp devices identified by instance name.
type WhatsAppBot struct {
	serviceURL string
	baseURL    string
	client     *http.Client
}

// NewWhatsAppBot creates a bot-service adapter. baseURL prefixes
// attachment links so the service can download them.
func NewWhatsAppBot(serviceURL, baseURL string) *WhatsAppBot {
	return &WhatsAppBot{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type botSendRequest struct {
	ProjectID string   `json:"project_id"`
	To        string   `json:"to"`
	Message   string   `json:"message"`
	ImageURLs []string `json:"image_urls"`
	ExtraURLs []string `json:"extra_urls"`
}

// Deliver implements Adapter.
func (b *WhatsAppBot) Deliver(ctx context.Context, t Target, text string, files attachments.Set) error {
	if b.serviceURL == "" {
		return errors.New("whatsapp bot service URL is not configured")
	}
	req := botSendRequest{
		ProjectID: t.Instance,
		To:        t.To,
		Message:   text,
		ImageURLs: []string{},
		ExtraURLs: []string{},
	}
	for _, f := range files.Images {
		req.ImageURLs = append(req.ImageURLs, FileURL(b.baseURL, f))
	}
	for _, f := range files.Documents {
		req.ExtraURLs = append(req.ExtraURLs, FileURL(b.baseURL, f))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.serviceURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending to bot service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bot service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// WhatsAppWebhook receives customer messages forwarded by the bot service.
type WhatsAppWebhook struct {
	receiver Receiver
	log      *logrus.Entry
}

// NewWhatsAppWebhook creates the bot-service webhook handler.
func NewWhatsAppWebhook(receiver Receiver) *WhatsAppWebhook {
	return &WhatsAppWebhook{receiver: receiver, log: logging.WithComponent("whatsapp-channel")}
}

// botReply is the payload posted by the bot service.
type botReply struct {
	InstanceName string `json:"instanceName"`
	CompanyID    string `json:"company_id"`
	Message      *struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation string `json:"conversation"`
		} `json:"message"`
	} `json:"message"`
}

// HandleReply handles POST /api/channels/whatsapp/reply.
func (h *WhatsAppWebhook) HandleReply(w http.ResponseWriter, r *http.Request) {
	var payload botReply
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if payload.InstanceName == "" || payload.CompanyID == "" || payload.Message == nil {
		http.Error(w, "missing instanceName, company_id or message parameter", http.StatusBadRequest)
		return
	}
	// Echoes of our own sends.
	if payload.Message.Key.FromMe {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	phone, _, _ := strings.Cut(payload.Message.Key.RemoteJID, "@")
	if phone == "" {
		http.Error(w, "missing remoteJid", http.StatusBadRequest)
		return
	}
	name := payload.Message.PushName
	if name == "" {
		name = phone
	}

	in := Incoming{
		Platform:  companies.PlatformWhatsApp,
		CompanyID: payload.CompanyID,
		Instance:  payload.InstanceName,
		From:      phone,
		Name:      name,
		Content:   payload.Message.Message.Conversation,
		Type:      "text",
	}
	conversationID, err := h.receiver.Accept(r.Context(), in)
	if err != nil {
		if errors.Is(err, companies.ErrNotFound) {
			http.Error(w, "company not found", http.StatusBadRequest)
			return
		}
		h.log.WithError(err).WithField("instance", payload.InstanceName).Error("accepting whatsapp message")
		http.Error(w, "failed to accept message", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "conversation_id": conversationID})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
