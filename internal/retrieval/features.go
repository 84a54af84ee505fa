package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ziadkadry99/auto-reply/internal/llm"
)

// maxClarifyingKeys bounds the feature set returned when ranking fails.
const maxClarifyingKeys = 5

// ParseFeatures splits a catalog text of the form "key: value | key: value"
// into a feature map. Fragments without a colon are ignored; values may
// themselves contain colons.
func ParseFeatures(text string) map[string]string {
	features := make(map[string]string)
	for _, part := range strings.Split(text, "|") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		features[key] = strings.TrimSpace(value)
	}
	return features
}

// DifferingFeatures returns the keys present in every feature map whose
// values are not all equal, with their distinct values sorted.
func DifferingFeatures(maps []map[string]string) map[string][]string {
	if len(maps) < 2 {
		return nil
	}
	diff := make(map[string][]string)
	for key := range maps[0] {
		seen := make(map[string]bool)
		common := true
		for _, m := range maps {
			v, ok := m[key]
			if !ok {
				common = false
				break
			}
			seen[v] = true
		}
		if !common || len(seen) < 2 {
			continue
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		diff[key] = values
	}
	return diff
}

// truncateFeatures keeps the first n keys in sorted order.
func truncateFeatures(diff map[string][]string, n int) map[string][]string {
	keys := make([]string, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make(map[string][]string, len(keys))
	for _, k := range keys {
		out[k] = diff[k]
	}
	return out
}

const rankPrompt = `You are given a dictionary of candidate product features and their possible values.
Select the %d to %d features that would most help a customer decide between the products.

Prefer features that:
- strongly influence a buying decision (technical specs, physical properties, standards);
- clearly differentiate one product from another;
- are relevant to how the products are used or selected.

Never select internal system fields or identifiers.
Return a JSON object whose keys are feature names and whose values are the lists of possible options.

Customer query: %s

Features:
%s`

// FeatureRanker asks a language model which differing features are worth a
// clarifying question.
type FeatureRanker struct {
	provider llm.Provider
	model    string
}

// NewFeatureRanker creates a ranker backed by provider.
func NewFeatureRanker(provider llm.Provider, model string) *FeatureRanker {
	return &FeatureRanker{provider: provider, model: model}
}

// Rank returns the most decision-relevant subset of diff. Keys the model
// invents are dropped; an empty selection is an error.
func (r *FeatureRanker) Rank(ctx context.Context, query string, diff map[string][]string) (map[string][]string, error) {
	payload, err := json.MarshalIndent(diff, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding features: %w", err)
	}

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Model:    r.model,
		JSONMode: true,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(rankPrompt, 3, maxClarifyingKeys, query, payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ranking features: %w", err)
	}

	var ranked map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &ranked); err != nil {
		return nil, fmt.Errorf("parsing ranked features: %w", err)
	}

	out := make(map[string][]string)
	for key := range ranked {
		if values, ok := diff[key]; ok {
			out[key] = values
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ranking selected no known feature")
	}
	return truncateFeatures(out, maxClarifyingKeys), nil
}
