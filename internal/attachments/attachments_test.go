package attachments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ziadkadry99/auto-reply/internal/db"
)

func TestUnionDeduplicates(t *testing.T) {
	a := Set{Images: []string{"a.png", "b.png"}, Documents: []string{"datasheet.pdf"}}
	b := Set{Images: []string{"b.png", "c.png"}, Documents: []string{"datasheet.pdf", "manual.pdf"}}

	got := Union(a, b, Set{})
	wantImages := []string{"a.png", "b.png", "c.png"}
	wantDocs := []string{"datasheet.pdf", "manual.pdf"}
	if len(got.Images) != len(wantImages) {
		t.Fatalf("images = %v, want %v", got.Images, wantImages)
	}
	for i := range wantImages {
		if got.Images[i] != wantImages[i] {
			t.Errorf("images[%d] = %q, want %q", i, got.Images[i], wantImages[i])
		}
	}
	if len(got.Documents) != len(wantDocs) {
		t.Fatalf("documents = %v, want %v", got.Documents, wantDocs)
	}
	if Union().Empty() != true {
		t.Error("union of nothing should be empty")
	}
}

func TestFromPaths(t *testing.T) {
	s := FromPaths([]string{"x/photo.JPG", "brochure.pdf", "x/photo.JPG", "chart.webp"})
	if len(s.Images) != 2 {
		t.Errorf("images = %v", s.Images)
	}
	if len(s.Documents) != 1 || s.Documents[0] != "brochure.pdf" {
		t.Errorf("documents = %v", s.Documents)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a.png, ,b.pdf ,")
	if len(got) != 2 || got[0] != "a.png" || got[1] != "b.pdf" {
		t.Errorf("SplitList = %v", got)
	}
	if SplitList("") != nil {
		t.Error("empty list should be nil")
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

func TestLookupFirstFilePerItem(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	links := []LinkedFile{
		{CompanyID: "acme", ProductID: "p1", Kind: KindImage, FullPath: "img/p1-a.png"},
		{CompanyID: "acme", ProductID: "p1", Kind: KindImage, FullPath: "img/p1-b.png"},
		{CompanyID: "acme", ProductID: "p1", Kind: KindDocument, FullPath: "doc/p1.pdf"},
		{CompanyID: "acme", ProductID: "p2", Kind: KindImage, FullPath: "img/p2.png"},
		{CompanyID: "acme", ProductID: "p3", Kind: KindImage, FullPath: "img/p1-a.png"},
	}
	for i := range links {
		if err := store.Link(ctx, &links[i]); err != nil {
			t.Fatalf("Link: %v", err)
		}
	}
	// Duplicate link is ignored.
	dup := LinkedFile{CompanyID: "acme", ProductID: "p2", Kind: KindImage, FullPath: "img/p2.png"}
	if err := store.Link(ctx, &dup); err != nil {
		t.Fatalf("Link duplicate: %v", err)
	}

	got, err := store.Lookup(ctx, "acme", []string{"p1", "p2", "p3", "unknown"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got.Images) != 2 || got.Images[0] != "img/p1-a.png" || got.Images[1] != "img/p2.png" {
		t.Errorf("images = %v", got.Images)
	}
	if len(got.Documents) != 1 || got.Documents[0] != "doc/p1.pdf" {
		t.Errorf("documents = %v", got.Documents)
	}
}

func TestWorkflowFilesResolve(t *testing.T) {
	root := t.TempDir()
	wf := WorkflowFiles{Root: root}
	dir := wf.Dir("acme", "wf1")
	if err := os.MkdirAll(filepath.Join(dir, "promo"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"catalog.pdf", "promo/banner.png", "promo/flyer.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := wf.Resolve("acme", "wf1", "catalog.pdf, promo/*")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got.Documents) != 1 || got.Documents[0] != filepath.Join(dir, "catalog.pdf") {
		t.Errorf("documents = %v", got.Documents)
	}
	if len(got.Images) != 2 {
		t.Errorf("images = %v", got.Images)
	}

	missing, err := wf.Resolve("acme", "wf1", "missing.pdf, catalog.pdf")
	if err != nil {
		t.Fatalf("unmatched file should be skipped: %v", err)
	}
	if len(missing.Documents) != 1 {
		t.Errorf("documents = %v", missing.Documents)
	}

	if _, err := wf.Resolve("acme", "wf1", "promo/[a"); err == nil {
		t.Error("expected error for invalid pattern")
	}

	empty, err := wf.Resolve("acme", "wf1", "")
	if err != nil || !empty.Empty() {
		t.Errorf("empty list should resolve to nothing, got %v, %v", empty, err)
	}
}
