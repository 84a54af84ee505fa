package channels

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/logging"
)

// WebInstance is the instance name of web chat conversations.
const WebInstance = "web"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// webRequest is the incoming WebSocket message format.
type webRequest struct {
	Type    string `json:"type"` // "message" or "image"
	Content string `json:"content"`
	// Image is base64 encoded.
	Image string `json:"image,omitempty"`
}

// webEvent is the outgoing WebSocket message format.
type webEvent struct {
	Type           string   `json:"type"` // "session", "accepted", "reply" or "error"
	SessionID      string   `json:"session_id,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	HTML           string   `json:"html,omitempty"`
	Images         []string `json:"images,omitempty"`
	Documents      []string `json:"documents,omitempty"`
}

type webConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *webConn) send(ev webEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

// WebHub serves the web chat over WebSockets. A browser session is one
// conversation whose phone number is the session ID; replies are pushed to
// every socket open on that session.
type WebHub struct {
	receiver Receiver
	baseURL  string
	md       goldmark.Markdown
	log      *logrus.Entry

	mu   sync.RWMutex
	subs map[string]map[*webConn]bool
}

// NewWebHub creates a hub. baseURL prefixes attachment links.
func NewWebHub(receiver Receiver, baseURL string) *WebHub {
	return &WebHub{
		receiver: receiver,
		baseURL:  baseURL,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
		log:  logging.WithComponent("web-channel"),
		subs: make(map[string]map[*webConn]bool),
	}
}

// SetReceiver sets the receiver of inbound web messages.
func (h *WebHub) SetReceiver(r Receiver) {
	h.receiver = r
}

// Render converts a markdown reply to HTML.
func (h *WebHub) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Deliver pushes a reply to the sockets open on the target session. A
// session with no open socket is not an error: the reply is read from
// the conversation history on reconnect.
func (h *WebHub) Deliver(_ context.Context, t Target, text string, files attachments.Set) error {
	rendered, err := h.Render(text)
	if err != nil {
		return err
	}
	ev := webEvent{
		Type:           "reply",
		ConversationID: t.ConversationID,
		Content:        text,
		HTML:           rendered,
	}
	for _, f := range files.Images {
		ev.Images = append(ev.Images, FileURL(h.baseURL, f))
	}
	for _, f := range files.Documents {
		ev.Documents = append(ev.Documents, FileURL(h.baseURL, f))
	}

	h.mu.RLock()
	conns := make([]*webConn, 0, len(h.subs[t.To]))
	for c := range h.subs[t.To] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var firstErr error
	delivered := 0
	for _, c := range conns {
		if err := c.send(ev); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered++
	}
	if delivered == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

func (h *WebHub) subscribe(session string, c *webConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[session] == nil {
		h.subs[session] = make(map[*webConn]bool)
	}
	h.subs[session][c] = true
}

func (h *WebHub) unsubscribe(session string, c *webConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[session], c)
	if len(h.subs[session]) == 0 {
		delete(h.subs, session)
	}
}

// Connected reports the number of sockets open on a session.
func (h *WebHub) Connected(session string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[session])
}

// HandleWebSocket upgrades the request and serves one browser session.
// Query parameters: company (required) and session (optional, resumes an
// earlier session).
func (h *WebHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company")
	if companyID == "" {
		http.Error(w, "company is required", http.StatusBadRequest)
		return
	}
	session := r.URL.Query().Get("session")
	if session == "" {
		session = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()
	c := &webConn{conn: conn}
	h.subscribe(session, c)
	defer h.unsubscribe(session, c)

	if err := c.send(webEvent{Type: "session", SessionID: session}); err != nil {
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("websocket read")
			}
			return
		}

		var req webRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.send(webEvent{Type: "error", SessionID: session, Content: "invalid message format"})
			continue
		}

		in := Incoming{
			Platform:  companies.PlatformWeb,
			CompanyID: companyID,
			Instance:  WebInstance,
			From:      session,
			Name:      "Web visitor",
			Content:   strings.TrimSpace(req.Content),
			Type:      "text",
		}
		switch req.Type {
		case "message":
			if in.Content == "" {
				c.send(webEvent{Type: "error", SessionID: session, Content: "content is required"})
				continue
			}
		case "image":
			img, err := base64.StdEncoding.DecodeString(req.Image)
			if err != nil || len(img) == 0 {
				c.send(webEvent{Type: "error", SessionID: session, Content: "image must be base64 encoded"})
				continue
			}
			in.Type = "image"
			in.Image = img
		default:
			c.send(webEvent{Type: "error", SessionID: session, Content: "unknown message type: " + req.Type})
			continue
		}

		if h.receiver == nil {
			c.send(webEvent{Type: "error", SessionID: session, Content: "chat is not available"})
			continue
		}
		conversationID, err := h.receiver.Accept(r.Context(), in)
		if err != nil {
			h.log.WithError(err).WithField("company", companyID).Warn("accepting web message")
			c.send(webEvent{Type: "error", SessionID: session, Content: "message could not be processed"})
			continue
		}
		c.send(webEvent{Type: "accepted", SessionID: session, ConversationID: conversationID})
	}
}
