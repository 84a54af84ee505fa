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

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/logging"
)

// maxMediaBytes bounds downloaded customer media.
const maxMediaBytes = 16 << 20

// WACA speaks the WhatsApp Business (Cloud) API.
type WACA struct {
	graphURL string
	baseURL  string
	client   *http.Client
}

// NewWACA creates a Business API adapter. graphURL includes the API
// version, e.g. https://graph.facebook.com/v19.0.
func NewWACA(graphURL, baseURL string) *WACA {
	return &WACA{
		graphURL: strings.TrimRight(graphURL, "/"),
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type graphMedia struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type graphMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             *graphText  `json:"text,omitempty"`
	Image            *graphMedia `json:"image,omitempty"`
	Document         *graphMedia `json:"document,omitempty"`
}

type graphText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Deliver implements Adapter. Text without attachments is one text
// message; otherwise every attachment is sent as its own media message and
// the text rides as the caption of the last one.
func (c *WACA) Deliver(ctx context.Context, t Target, text string, files attachments.Set) error {
	if t.AccessToken == "" || t.Instance == "" {
		return errors.New("business api integration is missing its phone number id or access token")
	}
	base := graphMessage{MessagingProduct: "whatsapp", RecipientType: "individual", To: t.To}

	if files.Empty() {
		msg := base
		msg.Type = "text"
		msg.Text = &graphText{Body: text}
		return c.post(ctx, t, msg)
	}

	type item struct {
		kind string
		url  string
	}
	var items []item
	for _, f := range files.Images {
		items = append(items, item{"image", FileURL(c.baseURL, f)})
	}
	for _, f := range files.Documents {
		items = append(items, item{"document", FileURL(c.baseURL, f)})
	}
	for i, it := range items {
		media := &graphMedia{Link: it.url}
		if i == len(items)-1 {
			media.Caption = text
		}
		msg := base
		msg.Type = it.kind
		if it.kind == "image" {
			msg.Image = media
		} else {
			msg.Document = media
		}
		if err := c.post(ctx, t, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *WACA) post(ctx context.Context, t Target, msg graphMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphURL+"/"+t.Instance+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling graph api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return graphFailure(resp)
	}
	return nil
}

func graphFailure(resp *http.Response) error {
	var ge graphError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &ge) == nil && ge.Error.Message != "" {
		return fmt.Errorf("graph api returned %d: %s", resp.StatusCode, ge.Error.Message)
	}
	return fmt.Errorf("graph api returned %d: failed authorization", resp.StatusCode)
}

// FetchMedia downloads customer media by its Graph media ID.
func (c *WACA) FetchMedia(ctx context.Context, token, mediaID string) ([]byte, error) {
	var meta struct {
		URL string `json:"url"`
	}
	if err := c.getJSON(ctx, token, c.graphURL+"/"+mediaID, &meta); err != nil {
		return nil, err
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media %s has no download url", mediaID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, graphFailure(resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
}

func (c *WACA) getJSON(ctx context.Context, token, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling graph api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return graphFailure(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Integrations finds Business API integrations.
type Integrations interface {
	FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*companies.Integration, error)
}

// WACAWebhook handles the Business API webhook of every integrated phone
// number.
type WACAWebhook struct {
	client       *WACA
	integrations Integrations
	receiver     Receiver
	verifyToken  string
	log          *logrus.Entry
}

// NewWACAWebhook creates the webhook handler. A subscription is verified
// when the token equals the integration ID or the configured verifyToken.
func NewWACAWebhook(client *WACA, integrations Integrations, receiver Receiver, verifyToken string) *WACAWebhook {
	return &WACAWebhook{
		client:       client,
		integrations: integrations,
		receiver:     receiver,
		verifyToken:  verifyToken,
		log:          logging.WithComponent("waca-channel"),
	}
}

// HandleVerify handles the GET subscription handshake.
func (h *WACAWebhook) HandleVerify(w http.ResponseWriter, r *http.Request) {
	phoneNumberID := chi.URLParam(r, "phone_number_id")
	integration, err := h.integrations.FindByPhoneNumberID(r.Context(), phoneNumberID)
	if err != nil {
		http.Error(w, "phone number ID not found", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	token := q.Get("hub.verify_token")
	ok := token != "" && (token == integration.ID || (h.verifyToken != "" && token == h.verifyToken))
	if q.Get("hub.mode") != "subscribe" || !ok {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

type wacaWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []wacaMessage    `json:"messages"`
				Statuses []json.RawMessage `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type wacaMedia struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

type wacaMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *wacaMedia `json:"image"`
	Audio    *wacaMedia `json:"audio"`
	Voice    *wacaMedia `json:"voice"`
	Document *wacaMedia `json:"document"`
}

// HandleEvent handles POST webhook events. The handler answers 200 even on
// failure so the platform does not retry.
func (h *WACAWebhook) HandleEvent(w http.ResponseWriter, r *http.Request) {
	phoneNumberID := chi.URLParam(r, "phone_number_id")
	log := h.log.WithField("phone_number_id", phoneNumberID)

	var body wacaWebhook
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "invalid JSON"})
		return
	}
	integration, err := h.integrations.FindByPhoneNumberID(r.Context(), phoneNumberID)
	if err != nil {
		log.WithError(err).Warn("no integration for webhook")
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "phone number ID not found"})
		return
	}
	if body.Object != "whatsapp_business_account" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			if id := v.Metadata.PhoneNumberID; id != "" && id != phoneNumberID {
				log.WithField("payload_phone_number_id", id).Warn("phone number id mismatch; using URL")
			}
			names := make(map[string]string)
			for _, c := range v.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range v.Messages {
				in, ok := h.incoming(r.Context(), integration, m, log)
				if !ok {
					continue
				}
				in.Name = names[m.From]
				if in.Name == "" {
					in.Name = m.From
				}
				if _, err := h.receiver.Accept(r.Context(), in); err != nil {
					log.WithError(err).WithField("message_id", m.ID).Error("accepting business api message")
				}
			}
			if len(v.Statuses) > 0 {
				log.WithField("count", len(v.Statuses)).Debug("message status updates")
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *WACAWebhook) incoming(ctx context.Context, integration *companies.Integration, m wacaMessage, log *logrus.Entry) (Incoming, bool) {
	in := Incoming{
		Platform:  companies.PlatformWACA,
		CompanyID: integration.CompanyID,
		Instance:  integration.PhoneNumberID,
		From:      m.From,
		Type:      m.Type,
	}
	switch m.Type {
	case "text":
		in.Content = m.Text.Body
	case "image":
		if m.Image == nil {
			return in, false
		}
		in.Content = m.Image.Caption
		if in.Content == "" {
			in.Content = "Image received"
		}
		img, err := h.client.FetchMedia(ctx, integration.AccessToken, m.Image.ID)
		if err != nil {
			log.WithError(err).WithField("media_id", m.Image.ID).Warn("downloading image; treating as text")
			in.Type = "text"
		} else {
			in.Image = img
		}
	case "audio", "voice":
		in.Content = "Voice message received"
	case "document":
		if m.Document == nil {
			return in, false
		}
		in.Content = m.Document.Caption
		if in.Content == "" {
			in.Content = "Document received: " + m.Document.Filename
		}
	default:
		log.WithField("type", m.Type).Warn("unsupported message type")
		return in, false
	}
	return in, true
}
