package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/catalog"
	"github.com/ziadkadry99/auto-reply/internal/db"
	"github.com/ziadkadry99/auto-reply/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a product catalog into the vector index",
	Long: `Reads a CSV or Excel catalog and indexes every row for the company. With
--images, every image under the directory is embedded into the company's
image collection and linked to the catalog item named by its file stem.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("company", "", "company ID (required)")
	ingestCmd.Flags().String("file", "", "catalog file (.csv, .xlsx, .xlsm)")
	ingestCmd.Flags().String("sheet", "", "Excel sheet to read (default: first sheet)")
	ingestCmd.Flags().String("primary-column", "", "column identifying a catalog item")
	ingestCmd.Flags().Int("batch", 64, "rows embedded per request")
	ingestCmd.Flags().String("images", "", "directory of catalog images")
	ingestCmd.Flags().String("match-field", "", "catalog column image file names refer to (default: image_embedding.match_field)")
	ingestCmd.Flags().String("pattern", catalog.DefaultImagePattern, "glob selecting image files")
	ingestCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	company, _ := cmd.Flags().GetString("company")
	file, _ := cmd.Flags().GetString("file")
	imagesDir, _ := cmd.Flags().GetString("images")
	if file == "" && imagesDir == "" {
		return fmt.Errorf("nothing to ingest: pass --file and/or --images")
	}

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
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	ing := catalog.NewIngester(index, createImageEmbedder(cfg), attachments.NewStore(database))
	reporter := progress.NewReporter()

	if file != "" {
		sheet, _ := cmd.Flags().GetString("sheet")
		primary, _ := cmd.Flags().GetString("primary-column")
		batch, _ := cmd.Flags().GetInt("batch")

		var t *catalog.Table
		if sheet != "" {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			t, err = catalog.ReadXLSX(f, sheet)
			f.Close()
			if err != nil {
				return err
			}
		} else if t, err = catalog.Open(file); err != nil {
			return err
		}

		reporter.Start("Indexing rows", len(t.Rows))
		res, err := ing.IngestTable(ctx, company, t, catalog.Options{
			PrimaryColumn: primary,
			Source:        filepath.Base(file),
			BatchSize:     batch,
			Progress:      func(done, _ int) { reporter.Update(done) },
		})
		reporter.Finish()
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d rows from %s", res.Documents, file)
		if res.Replaced {
			fmt.Print(" (replacing the previous import)")
		}
		fmt.Println()
	}

	if imagesDir != "" {
		matchField, _ := cmd.Flags().GetString("match-field")
		if matchField == "" {
			matchField = cfg.ImageEmbedding.MatchField
		}
		pattern, _ := cmd.Flags().GetString("pattern")

		res, err := ing.IngestImages(ctx, company, imagesDir, catalog.ImageOptions{
			MatchField: matchField,
			Pattern:    pattern,
			Progress: func(done, total int) {
				if done == 1 {
					reporter.Start("Indexing images", total)
				}
				reporter.Update(done)
			},
		})
		reporter.Finish()
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d images from %s\n", res.Documents, imagesDir)
	}

	if err := index.Persist(ctx, cfg.IndexDir()); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	return nil
}
