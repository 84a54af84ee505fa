package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-reply/internal/retrieval"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Run the catalog retrieval pipeline for a question",
	Long: `Embeds the question, searches the company's catalog, diversifies the
matches and reports the features a clarifying question would ask about.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("company", "", "company ID (required)")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	queryCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	company, _ := cmd.Flags().GetString("company")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	index, err := openIndex(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	if index.Count(company) == 0 {
		fmt.Printf("No catalog indexed for %s. Run `autoreply ingest --company %s --file <catalog>` first.\n", company, company)
		return nil
	}

	opts := retrieval.Options{
		FetchLimit:       cfg.Retrieval.FetchLimit,
		TopK:             cfg.Retrieval.TopK,
		Lambda:           cfg.Retrieval.Lambda,
		ClarifyThreshold: cfg.Retrieval.ClarifyThreshold,
	}
	// Ranking needs a chat model; without one the raw differing features are shown.
	var ranker *retrieval.FeatureRanker
	if provider, err := createLLMProviderFromConfig(cfg); err == nil {
		ranker = retrieval.NewFeatureRanker(provider, cfg.Model)
	}
	pipeline := retrieval.NewPipeline(embedder, index, retrieval.NewMemorySessionStore(), nil, ranker, opts, nil)

	res, err := pipeline.Retrieve(ctx, retrieval.Request{
		Query:          args[0],
		CompanyID:      company,
		ConversationID: "cli",
		NewSearch:      true,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Candidates) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d candidates:\n\n", len(res.Candidates))
	for i, c := range res.Candidates {
		label := c.PrimaryKey
		if label == "" {
			label = c.ID
		}
		fmt.Printf("  %d. %s\n", i+1, label)
		fmt.Printf("     %s\n\n", truncate(c.Content, 120))
	}
	if res.ClarifyingFeatures != nil {
		fmt.Println("A clarifying question would ask about:")
		keys := make([]string, 0, len(res.ClarifyingFeatures))
		for k := range res.ClarifyingFeatures {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, strings.Join(res.ClarifyingFeatures[k], ", "))
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
