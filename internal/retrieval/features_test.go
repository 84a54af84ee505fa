package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/auto-reply/internal/llm"
	"github.com/ziadkadry99/auto-reply/internal/llm/llmtest"
)

func TestParseFeatures(t *testing.T) {
	got := ParseFeatures("name: hex bolt | size: M6 |  url: http://x.test/a | junk | : empty")
	want := map[string]string{"name": "hex bolt", "size": "M6", "url": "http://x.test/a"}
	if len(got) != len(want) {
		t.Fatalf("ParseFeatures = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestDifferingFeatures(t *testing.T) {
	maps := []map[string]string{
		{"name": "bolt", "size": "M6", "material": "steel", "color": "grey"},
		{"name": "bolt", "size": "M8", "material": "brass"},
		{"name": "bolt", "size": "M6", "material": "steel"},
	}
	diff := DifferingFeatures(maps)
	if len(diff) != 2 {
		t.Fatalf("DifferingFeatures = %v, want size and material", diff)
	}
	if v := diff["size"]; len(v) != 2 || v[0] != "M6" || v[1] != "M8" {
		t.Errorf("size values = %v", v)
	}
	if _, ok := diff["color"]; ok {
		t.Error("color is not present in every candidate")
	}
	if _, ok := diff["name"]; ok {
		t.Error("name has a single value")
	}

	if DifferingFeatures(maps[:1]) != nil {
		t.Error("a single candidate cannot differ")
	}
}

func sampleDiff() map[string][]string {
	return map[string][]string{
		"size":     {"M6", "M8"},
		"material": {"brass", "steel"},
		"finish":   {"plain", "zinc"},
		"length":   {"20mm", "30mm"},
		"head":     {"hex", "pan"},
		"thread":   {"coarse", "fine"},
	}
}

func TestFeatureRankerParsesFencedJSON(t *testing.T) {
	p := (&llmtest.Provider{}).Reply("```json\n{\"size\": [\"M6\",\"M8\"], \"material\": [], \"warranty\": [\"1y\"]}\n```")
	r := NewFeatureRanker(p, "test-model")

	got, err := r.Rank(context.Background(), "I need a bolt", sampleDiff())
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Rank = %v, want size and material only", got)
	}
	if len(got["material"]) != 2 {
		t.Errorf("values should come from the candidates, got %v", got["material"])
	}
	req := p.LastRequest()
	if !req.JSONMode || req.Model != "test-model" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestFeatureRankerErrors(t *testing.T) {
	tests := []struct {
		name string
		p    *llmtest.Provider
	}{
		{"provider error", &llmtest.Provider{Errs: []error{errors.New("boom")}}},
		{"not json", (&llmtest.Provider{}).Reply("size and material")},
		{"unknown keys", (&llmtest.Provider{}).Reply(`{"warranty": ["1y"]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFeatureRanker(tt.p, "").Rank(context.Background(), "q", sampleDiff()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTruncateFeatures(t *testing.T) {
	got := truncateFeatures(sampleDiff(), maxClarifyingKeys)
	if len(got) != maxClarifyingKeys {
		t.Fatalf("len = %d", len(got))
	}
	// "thread" sorts last and is dropped.
	if _, ok := got["thread"]; ok {
		t.Errorf("expected thread to be truncated: %v", got)
	}
}

var _ llm.Provider = (*llmtest.Provider)(nil)
