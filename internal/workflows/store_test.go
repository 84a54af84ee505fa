package workflows

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := companies.NewStore(d).CreateCompany(context.Background(), &companies.Company{ID: "acme", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	return NewStore(d)
}

func TestStoreLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	good := priceWorkflow()
	good.ID = ""
	good.CompanyID = "acme"
	good.Edges = json.RawMessage(`[{"source":"n1","target":"n2"}]`)
	if err := store.Create(ctx, &good); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if good.ID == "" || good.Status != StatusSuccess || good.Position != 0 {
		t.Errorf("created = %+v", good)
	}

	bad := Workflow{CompanyID: "acme", Name: "broken", Enabled: true}
	if err := store.Create(ctx, &bad); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if bad.Status != StatusError || bad.Enabled || bad.Position != 1 {
		t.Errorf("invalid workflow stored as %+v", bad)
	}

	got, err := store.Get(ctx, "acme", good.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Nodes) != 3 || got.Nodes[1].Blocks[0].Settings["value"] != "price" {
		t.Errorf("nodes round trip = %+v", got.Nodes)
	}
	if string(got.Edges) != `[{"source":"n1","target":"n2"}]` {
		t.Errorf("edges = %s", got.Edges)
	}

	list, err := store.List(ctx, "acme")
	if err != nil || len(list) != 2 || list[0].ID != good.ID {
		t.Fatalf("List = %+v, %v", list, err)
	}

	if _, err := store.SetEnabled(ctx, "acme", bad.ID, true, ""); !errors.Is(err, ErrInvalidWorkflow) {
		t.Errorf("enabling an invalid workflow: %v", err)
	}
	runnable, err := store.ListRunnable(ctx, "acme")
	if err != nil || len(runnable) != 1 || runnable[0].ID != good.ID {
		t.Fatalf("ListRunnable = %+v, %v", runnable, err)
	}

	wf, err := store.SetEnabled(ctx, "acme", good.ID, false, ExceptIgnore)
	if err != nil {
		t.Fatal(err)
	}
	if wf.Enabled || wf.ExceptCase != ExceptIgnore {
		t.Errorf("SetEnabled = %+v", wf)
	}

	got.Nodes = got.Nodes[1:]
	if err := store.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	reloaded, _ := store.Get(ctx, "acme", good.ID)
	if reloaded.Status != StatusError || reloaded.Enabled {
		t.Errorf("update without trigger should invalidate: %+v", reloaded)
	}

	if err := store.Delete(ctx, "acme", good.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "acme", good.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete = %v", err)
	}
	if _, err := store.Get(ctx, "other", bad.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("workflows are scoped to their company: %v", err)
	}
}

func TestRoutes(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	body := `{"name":"price","nodes":[
		{"type":"trigger","blocks":[{"key":"incoming_message"}]},
		{"type":"condition","blocks":[{"key":"message_filter.text","settings":{"operator":"contains","value":"price"}}]},
		{"type":"action","blocks":[{"key":"send_message","settings":{"value_0":"Our price list is on the way"}}]}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/companies/acme/workflows/", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created Workflow
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Status != StatusSuccess {
		t.Errorf("created status = %s (%s)", created.Status, created.Error)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/companies/acme/workflows/"+created.ID+"/enable",
		bytes.NewBufferString(`{"enabled":true,"except_case":"move"}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("enable status = %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/companies/acme/workflows/missing", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing workflow status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/workflows/validate",
		bytes.NewBufferString(`{"nodes":[{"type":"action","blocks":[{"key":"ai_reply"}]}]}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var res map[string]string
	json.NewDecoder(w.Body).Decode(&res)
	if res["status"] != string(StatusError) || res["error"] == "" {
		t.Errorf("validate = %v", res)
	}
}
