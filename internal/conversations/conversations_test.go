package conversations

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if _, err := d.Exec(`INSERT INTO companies (id, name) VALUES ('acme', 'Acme')`); err != nil {
		t.Fatalf("seeding company: %v", err)
	}
	return NewStore(d)
}

func TestFindOrCreate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tmpl := Conversation{CompanyID: "acme", Source: "whatsapp", PhoneNumber: "+1555", InstanceName: "inst"}
	first, created, err := store.FindOrCreate(ctx, tmpl)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if !created {
		t.Error("expected conversation to be created")
	}
	if !first.AIReply {
		t.Error("new conversations should have ai_reply on")
	}

	again, created, err := store.FindOrCreate(ctx, tmpl)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if created || again.ID != first.ID {
		t.Errorf("expected existing conversation %s, got %s (created=%v)", first.ID, again.ID, created)
	}
}

func TestMessagesInOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := &Conversation{CompanyID: "acme", Source: "web", AIReply: true}
	if err := store.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	msgs := []*Message{
		{ConversationID: c.ID, SenderType: SenderCustomer, Content: "hi", CreatedAt: base},
		{ConversationID: c.ID, SenderType: SenderBot, Content: "hello", CreatedAt: base.Add(time.Second),
			Extra: attachments.Set{Images: []string{"a.png"}}},
		{ConversationID: c.ID, SenderType: SenderAgent, SenderEmail: "ops@acme.test", Content: "taking over", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		if err := store.AddMessage(ctx, m); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	got, err := store.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].Content != "hi" || got[2].SenderType != SenderAgent {
		t.Errorf("unexpected order: %+v", got)
	}
	if len(got[1].Extra.Images) != 1 || got[1].Extra.Images[0] != "a.png" {
		t.Errorf("extra = %+v", got[1].Extra)
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got[0].CreatedAt, base)
	}

	if err := store.RecordEnergy(ctx, got[1].ID, 0.01, 0.005); err != nil {
		t.Fatalf("RecordEnergy: %v", err)
	}
	got, _ = store.ListMessages(ctx, c.ID)
	if got[1].EnergyKWh != 0.01 || got[1].CarbonKg != 0.005 {
		t.Errorf("energy = %f/%f", got[1].EnergyKWh, got[1].CarbonKg)
	}
	if err := store.RecordEnergy(ctx, "missing", 1, 1); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestLinkCustomerAndKillSwitch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := &Conversation{CompanyID: "acme", Source: "web", AIReply: true}
	if err := store.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.db.Exec(`INSERT INTO customers (id, company_id, name) VALUES ('cust', 'acme', 'Dana')`); err != nil {
		t.Fatalf("seeding customer: %v", err)
	}
	if err := store.LinkCustomer(ctx, c.ID, "cust"); err != nil {
		t.Fatalf("LinkCustomer: %v", err)
	}
	if err := store.SetAIReply(ctx, c.ID, false); err != nil {
		t.Fatalf("SetAIReply: %v", err)
	}

	got, err := store.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CustomerID != "cust" {
		t.Errorf("customer_id = %q", got.CustomerID)
	}
	if got.AIReply {
		t.Error("ai_reply should be off")
	}
}

func TestAIReplyRoute(t *testing.T) {
	store := setupTestStore(t)
	c := &Conversation{CompanyID: "acme", Source: "web", AIReply: true}
	if err := store.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+c.ID+"/ai-reply", bytes.NewBufferString(`{"enabled": false}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got, _ := store.Get(context.Background(), c.ID)
	if got.AIReply {
		t.Error("ai_reply should be off after toggle")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/conversations/missing/ai-reply", bytes.NewBufferString(`{"enabled": true}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/conversations/"+c.ID+"/ai-reply", bytes.NewBufferString(`{}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/"+c.ID+"/messages", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("messages = %d %q", rec.Code, rec.Body.String())
	}
}
