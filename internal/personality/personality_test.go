package personality

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

func TestResolveDefault(t *testing.T) {
	if got := Resolve(nil); got != DefaultPrompt {
		t.Errorf("Resolve(nil) = %q, want default prompt", got)
	}
}

func TestResolveFullPersonality(t *testing.T) {
	cfg := &Config{
		BotPrompt:        "You sell cables.",
		BotName:          "Ava",
		LengthOfResponse: "short",
		Tone:             "friendly",
		PreferredLang:    "English",
		UseEmojis:        true,
		UseBulletPoints:  false,
	}
	want := "You sell cables." +
		"\n Your name is Ava" +
		"\n Your response should be short" +
		"\n Your tone should be friendly" +
		"\n Your prefered language is English" +
		"\n You can use emojis in your response" +
		"\n You should not use bullet points in your response"
	if got := Resolve(cfg); got != want {
		t.Errorf("Resolve() =\n%q\nwant\n%q", got, want)
	}
}

func TestResolveSkipsEmptyFields(t *testing.T) {
	cfg := &Config{PreferredLang: NoLanguage, UseBulletPoints: true}
	want := "\n You should not use emojis in your response" +
		"\n You can use bullet points in your response"
	if got := Resolve(cfg); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

type stubSource struct {
	cfg *Config
	err error
}

func (s stubSource) Get(context.Context, string) (*Config, error) { return s.cfg, s.err }

func TestResolverProfile(t *testing.T) {
	defaults := []string{"search_products", "capture_customer"}

	p := NewResolver(stubSource{}, defaults).Profile(context.Background(), "acme")
	if p.SystemPrompt != DefaultPrompt {
		t.Errorf("missing personality should give default prompt, got %q", p.SystemPrompt)
	}
	if len(p.Capabilities) != 2 {
		t.Errorf("capabilities = %v, want defaults", p.Capabilities)
	}

	p = NewResolver(stubSource{err: errors.New("db down")}, defaults).Profile(context.Background(), "acme")
	if p.SystemPrompt != DefaultPrompt {
		t.Errorf("failed read should give default prompt, got %q", p.SystemPrompt)
	}

	cfg := &Config{BotName: "Ava", Capabilities: []string{"search_products"}}
	p = NewResolver(stubSource{cfg: cfg}, defaults).Profile(context.Background(), "acme")
	if len(p.Capabilities) != 1 || p.Capabilities[0] != "search_products" {
		t.Errorf("capabilities = %v, want company override", p.Capabilities)
	}
}

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

func TestStorePutGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "acme")
	if err != nil || got != nil {
		t.Fatalf("expected no personality, got %+v, %v", got, err)
	}

	cfg := &Config{CompanyID: "acme", BotName: "Ava", Tone: "formal", UseEmojis: true}
	if err := store.Put(ctx, cfg); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cfg.Tone = "casual"
	if err := store.Put(ctx, cfg); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	got, err = store.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tone != "casual" || !got.UseEmojis || got.PreferredLang != NoLanguage {
		t.Errorf("stored personality = %+v", got)
	}
}

func TestRoutes(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest(http.MethodGet, "/api/companies/acme/personality", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured status = %d, want 404", rec.Code)
	}

	body, _ := json.Marshal(Config{BotName: "Ava"})
	req = httptest.NewRequest(http.MethodPut, "/api/companies/acme/personality", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/personality/preview", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var preview map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&preview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if preview["system_prompt"] != Resolve(&Config{BotName: "Ava"}) {
		t.Errorf("preview = %q", preview["system_prompt"])
	}
}
