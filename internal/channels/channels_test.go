package channels

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/companies"
)

type fakeReceiver struct {
	mu  sync.Mutex
	got []Incoming
	err error
}

func (f *fakeReceiver) Accept(_ context.Context, in Incoming) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.got = append(f.got, in)
	return "conv-" + in.From, nil
}

func (f *fakeReceiver) received() []Incoming {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Incoming(nil), f.got...)
}

type recordingAdapter struct {
	targets []Target
	err     error
}

func (a *recordingAdapter) Deliver(_ context.Context, t Target, _ string, _ attachments.Set) error {
	a.targets = append(a.targets, t)
	return a.err
}

func TestGatewayRoutesByPlatform(t *testing.T) {
	g := NewGateway(nil)
	web := &recordingAdapter{}
	g.Register(companies.PlatformWeb, web)

	if err := g.Deliver(context.Background(), Target{Platform: companies.PlatformWeb, To: "s1"}, "hi", attachments.Set{}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(web.targets) != 1 {
		t.Fatalf("expected one delivery, got %d", len(web.targets))
	}

	err := g.Deliver(context.Background(), Target{Platform: companies.PlatformWACA}, "hi", attachments.Set{})
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}

	web.err = errors.New("socket closed")
	if err := g.Deliver(context.Background(), Target{Platform: companies.PlatformWeb}, "hi", attachments.Set{}); err == nil {
		t.Fatal("expected adapter error to propagate")
	}
}

func TestFileURL(t *testing.T) {
	tests := []struct {
		base, file, want string
	}{
		{"https://api.example.com", "files/a.png", "https://api.example.com/files/a.png"},
		{"https://api.example.com/", "./files/a.png", "https://api.example.com/files/a.png"},
		{"https://api.example.com", "/files/../files/b.pdf", "https://api.example.com/files/b.pdf"},
	}
	for _, tt := range tests {
		if got := FileURL(tt.base, tt.file); got != tt.want {
			t.Errorf("FileURL(%q, %q) = %q, want %q", tt.base, tt.file, got, tt.want)
		}
	}
}

func TestWhatsAppBotDeliver(t *testing.T) {
	var got botSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	bot := NewWhatsAppBot(srv.URL, "https://api.example.com")
	files := attachments.Set{Images: []string{"files/p.png"}, Documents: []string{"files/datasheet.pdf"}}
	err := bot.Deliver(context.Background(), Target{Instance: "inst-1", To: "15550001"}, "Here you go", files)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got.ProjectID != "inst-1" || got.To != "15550001" || got.Message != "Here you go" {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.ImageURLs) != 1 || got.ImageURLs[0] != "https://api.example.com/files/p.png" {
		t.Errorf("unexpected image urls: %v", got.ImageURLs)
	}
	if len(got.ExtraURLs) != 1 || got.ExtraURLs[0] != "https://api.example.com/files/datasheet.pdf" {
		t.Errorf("unexpected extra urls: %v", got.ExtraURLs)
	}
}

func TestWhatsAppBotDeliverFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	bot := NewWhatsAppBot(srv.URL, "")
	err := bot.Deliver(context.Background(), Target{Instance: "inst-1", To: "1"}, "hi", attachments.Set{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected 502 error, got %v", err)
	}
}

func TestWhatsAppWebhook(t *testing.T) {
	rec := &fakeReceiver{}
	r := chi.NewRouter()
	RegisterRoutes(r, nil, NewWhatsAppWebhook(rec), nil)

	body := `{"instanceName":"inst-1","company_id":"acme","message":{"key":{"remoteJid":"15550001@s.whatsapp.net"},"pushName":"Dana","message":{"conversation":"price of M6 bolts?"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/channels/whatsapp/reply", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := rec.received()
	if len(got) != 1 {
		t.Fatalf("expected one message, got %d", len(got))
	}
	in := got[0]
	if in.Platform != companies.PlatformWhatsApp || in.CompanyID != "acme" || in.Instance != "inst-1" {
		t.Errorf("unexpected routing: %+v", in)
	}
	if in.From != "15550001" || in.Name != "Dana" || in.Content != "price of M6 bolts?" || in.Type != "text" {
		t.Errorf("unexpected message: %+v", in)
	}
}

func TestWhatsAppWebhookErrors(t *testing.T) {
	rec := &fakeReceiver{err: fmt.Errorf("company acme: %w", companies.ErrNotFound)}
	r := chi.NewRouter()
	RegisterRoutes(r, nil, NewWhatsAppWebhook(rec), nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing message", `{"instanceName":"inst-1","company_id":"acme"}`, http.StatusBadRequest},
		{"unknown company", `{"instanceName":"inst-1","company_id":"acme","message":{"key":{"remoteJid":"1@s"},"message":{"conversation":"hi"}}}`, http.StatusBadRequest},
		{"own echo", `{"instanceName":"inst-1","company_id":"acme","message":{"key":{"remoteJid":"1@s","fromMe":true},"message":{"conversation":"hi"}}}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/channels/whatsapp/reply", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

type fakeIntegrations map[string]*companies.Integration

func (f fakeIntegrations) FindByPhoneNumberID(_ context.Context, id string) (*companies.Integration, error) {
	if in, ok := f[id]; ok {
		return in, nil
	}
	return nil, companies.ErrNotFound
}

func wacaIntegrations() fakeIntegrations {
	return fakeIntegrations{"pn-1": {
		ID:            "integration-1",
		CompanyID:     "acme",
		Platform:      companies.PlatformWACA,
		PhoneNumberID: "pn-1",
		AccessToken:   "secret",
		Active:        true,
	}}
}

func TestWACAVerify(t *testing.T) {
	h := NewWACAWebhook(NewWACA("http://graph.invalid", ""), wacaIntegrations(), &fakeReceiver{}, "global-token")
	r := chi.NewRouter()
	RegisterRoutes(r, nil, nil, h)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"integration id", "/api/channels/waca/pn-1/webhook?hub.mode=subscribe&hub.verify_token=integration-1&hub.challenge=42", http.StatusOK},
		{"configured token", "/api/channels/waca/pn-1/webhook?hub.mode=subscribe&hub.verify_token=global-token&hub.challenge=42", http.StatusOK},
		{"wrong token", "/api/channels/waca/pn-1/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", http.StatusForbidden},
		{"wrong mode", "/api/channels/waca/pn-1/webhook?hub.mode=unsubscribe&hub.verify_token=integration-1", http.StatusForbidden},
		{"unknown number", "/api/channels/waca/pn-9/webhook?hub.mode=subscribe&hub.verify_token=integration-1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.query, nil))
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusOK && w.Body.String() != "42" {
				t.Errorf("expected challenge echo, got %q", w.Body.String())
			}
		})
	}
}

func TestWACAEvent(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token on %s", r.URL.Path)
		}
		switch r.URL.Path {
		case "/media-1":
			fmt.Fprintf(w, `{"url":"http://%s/download/media-1"}`, r.Host)
		case "/download/media-1":
			w.Write([]byte("PNGDATA"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer graph.Close()

	rec := &fakeReceiver{}
	h := NewWACAWebhook(NewWACA(graph.URL, ""), wacaIntegrations(), rec, "")
	r := chi.NewRouter()
	RegisterRoutes(r, nil, nil, h)

	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{
		"metadata":{"phone_number_id":"pn-1"},
		"contacts":[{"wa_id":"15550001","profile":{"name":"Dana"}}],
		"messages":[
			{"from":"15550001","id":"m1","type":"text","text":{"body":"hello"}},
			{"from":"15550001","id":"m2","type":"image","image":{"id":"media-1"}},
			{"from":"15550001","id":"m3","type":"sticker"},
			{"from":"15550001","id":"m4","type":"document","document":{"id":"d1","filename":"po.pdf"}}
		]}}]}]}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/channels/waca/pn-1/webhook", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	got := rec.received()
	if len(got) != 3 {
		t.Fatalf("expected 3 accepted messages, got %d", len(got))
	}
	if got[0].Content != "hello" || got[0].Name != "Dana" || got[0].CompanyID != "acme" || got[0].Instance != "pn-1" {
		t.Errorf("unexpected text message: %+v", got[0])
	}
	if got[1].Type != "image" || string(got[1].Image) != "PNGDATA" || got[1].Content != "Image received" {
		t.Errorf("unexpected image message: %+v", got[1])
	}
	if got[2].Content != "Document received: po.pdf" {
		t.Errorf("unexpected document message: %+v", got[2])
	}
}

func TestWACAEventUnknownNumberStillOK(t *testing.T) {
	rec := &fakeReceiver{}
	h := NewWACAWebhook(NewWACA("http://graph.invalid", ""), wacaIntegrations(), rec, "")
	r := chi.NewRouter()
	RegisterRoutes(r, nil, nil, h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/channels/waca/pn-9/webhook", strings.NewReader(`{"object":"whatsapp_business_account"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Errorf("expected error status, got %s", w.Body.String())
	}
	if len(rec.received()) != 0 {
		t.Error("expected nothing accepted")
	}
}

func TestWACADeliver(t *testing.T) {
	var mu sync.Mutex
	var sent []graphMessage
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pn-1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var m graphMessage
		json.NewDecoder(r.Body).Decode(&m)
		mu.Lock()
		sent = append(sent, m)
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer graph.Close()

	c := NewWACA(graph.URL, "https://api.example.com")
	target := Target{Platform: companies.PlatformWACA, Instance: "pn-1", To: "15550001", AccessToken: "secret"}

	if err := c.Deliver(context.Background(), target, "plain", attachments.Set{}); err != nil {
		t.Fatalf("Deliver text: %v", err)
	}
	files := attachments.Set{Images: []string{"files/a.png"}, Documents: []string{"files/b.pdf"}}
	if err := c.Deliver(context.Background(), target, "with files", files); err != nil {
		t.Fatalf("Deliver media: %v", err)
	}

	if len(sent) != 3 {
		t.Fatalf("expected 3 graph messages, got %d", len(sent))
	}
	if sent[0].Type != "text" || sent[0].Text == nil || sent[0].Text.Body != "plain" {
		t.Errorf("unexpected text message: %+v", sent[0])
	}
	if sent[1].Type != "image" || sent[1].Image.Link != "https://api.example.com/files/a.png" || sent[1].Image.Caption != "" {
		t.Errorf("unexpected image message: %+v", sent[1].Image)
	}
	if sent[2].Type != "document" || sent[2].Document.Caption != "with files" {
		t.Errorf("expected caption on the last attachment: %+v", sent[2].Document)
	}
}

func TestWACADeliverGraphError(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid OAuth access token"}}`)
	}))
	defer graph.Close()

	c := NewWACA(graph.URL, "")
	err := c.Deliver(context.Background(), Target{Instance: "pn-1", To: "1", AccessToken: "bad"}, "hi", attachments.Set{})
	if err == nil || !strings.Contains(err.Error(), "Invalid OAuth access token") {
		t.Fatalf("expected graph error message, got %v", err)
	}
}

func TestWebHubRender(t *testing.T) {
	h := NewWebHub(nil, "")
	out, err := h.Render("**M6 bolt**\nin stock")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "<strong>M6 bolt</strong>") || !strings.Contains(out, "<br") {
		t.Errorf("unexpected html: %s", out)
	}
}

func dialWeb(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/channels/web/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWebSocketRequiresCompany(t *testing.T) {
	h := NewWebHub(&fakeReceiver{}, "")
	r := chi.NewRouter()
	RegisterRoutes(r, h, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/channels/web/ws", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWebSocketSession(t *testing.T) {
	rec := &fakeReceiver{}
	h := NewWebHub(rec, "https://api.example.com")
	r := chi.NewRouter()
	RegisterRoutes(r, h, nil, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialWeb(t, srv, "?company=acme&session=s-1")
	defer conn.Close()

	var ev webEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading session event: %v", err)
	}
	if ev.Type != "session" || ev.SessionID != "s-1" {
		t.Fatalf("unexpected session event: %+v", ev)
	}

	conn.WriteJSON(webRequest{Type: "message", Content: "do you sell anchors?"})
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading accepted event: %v", err)
	}
	if ev.Type != "accepted" || ev.ConversationID != "conv-s-1" {
		t.Fatalf("unexpected accepted event: %+v", ev)
	}
	got := rec.received()
	if len(got) != 1 || got[0].From != "s-1" || got[0].Instance != WebInstance || got[0].CompanyID != "acme" {
		t.Fatalf("unexpected incoming: %+v", got)
	}

	if h.Connected("s-1") != 1 {
		t.Fatalf("expected one open socket")
	}
	files := attachments.Set{Images: []string{"files/anchor.png"}}
	if err := h.Deliver(context.Background(), Target{ConversationID: "conv-s-1", To: "s-1"}, "Yes, **M8** anchors.", files); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	if ev.Type != "reply" || ev.Content != "Yes, **M8** anchors." || !strings.Contains(ev.HTML, "<strong>M8</strong>") {
		t.Errorf("unexpected reply: %+v", ev)
	}
	if len(ev.Images) != 1 || ev.Images[0] != "https://api.example.com/files/anchor.png" {
		t.Errorf("unexpected images: %v", ev.Images)
	}
}

func TestWebSocketInvalidMessages(t *testing.T) {
	h := NewWebHub(&fakeReceiver{}, "")
	r := chi.NewRouter()
	RegisterRoutes(r, h, nil, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialWeb(t, srv, "?company=acme")
	defer conn.Close()

	var ev webEvent
	conn.ReadJSON(&ev)
	if ev.SessionID == "" {
		t.Fatal("expected a generated session id")
	}

	for _, req := range []webRequest{
		{Type: "message"},
		{Type: "image", Image: "%%%"},
		{Type: "video", Content: "x"},
	} {
		conn.WriteJSON(req)
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading error event: %v", err)
		}
		if ev.Type != "error" {
			t.Errorf("expected error for %+v, got %+v", req, ev)
		}
	}

	conn.WriteJSON(webRequest{Type: "image", Image: base64.StdEncoding.EncodeToString([]byte("img"))})
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading accepted event: %v", err)
	}
	if ev.Type != "accepted" {
		t.Errorf("expected image to be accepted, got %+v", ev)
	}
}

func TestWebDeliverOffline(t *testing.T) {
	h := NewWebHub(nil, "")
	if err := h.Deliver(context.Background(), Target{To: "nobody"}, "hi", attachments.Set{}); err != nil {
		t.Fatalf("expected offline delivery to succeed, got %v", err)
	}
}
