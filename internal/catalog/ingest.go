package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/embeddings"
	"github.com/ziadkadry99/auto-reply/internal/logging"
	"github.com/ziadkadry99/auto-reply/internal/responder"
	"github.com/ziadkadry99/auto-reply/internal/vectordb"
)

// MetaRow is the metadata key holding a document's row number.
const MetaRow = "row"

// Linker records catalog item attachments.
type Linker interface {
	Link(ctx context.Context, f *attachments.LinkedFile) error
}

// Ingester writes catalogs into a vector index.
type Ingester struct {
	index  vectordb.Index
	images embeddings.ImageEmbedder
	linker Linker
}

// NewIngester creates an ingester. images and linker are only needed for
// image ingestion.
func NewIngester(index vectordb.Index, images embeddings.ImageEmbedder, linker Linker) *Ingester {
	return &Ingester{index: index, images: images, linker: linker}
}

// Options control text ingestion.
type Options struct {
	// PrimaryColumn names the column identifying a catalog item.
	PrimaryColumn string
	// Source tags every document; documents already stored under the same
	// source are replaced.
	Source    string
	BatchSize int
	// Progress, when set, is called after each batch.
	Progress func(done, total int)
}

// Result summarizes an ingestion.
type Result struct {
	Documents int
	Replaced  bool
}

// IngestTable turns every row into a "column: value | ..." document
// carrying the row's cells as metadata.
func (i *Ingester) IngestTable(ctx context.Context, companyID string, t *Table, opts Options) (*Result, error) {
	if opts.PrimaryColumn != "" && !t.HasColumn(opts.PrimaryColumn) {
		return nil, fmt.Errorf("primary column %q not found; columns are %s", opts.PrimaryColumn, strings.Join(t.Columns, ", "))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	collection := vectordb.TextCollection(companyID)
	res := &Result{}

	if opts.Source != "" && i.index.Count(collection) > 0 {
		if err := i.index.Delete(ctx, collection, map[string]string{vectordb.MetaSource: opts.Source}); err != nil {
			return nil, fmt.Errorf("removing previous %s documents: %w", opts.Source, err)
		}
		res.Replaced = true
	}

	docs := make([]vectordb.Document, 0, len(t.Rows))
	for r := range t.Rows {
		meta := make(map[string]string, len(t.Columns)+3)
		for _, col := range t.Columns {
			meta[col] = t.Value(r, col)
		}
		if opts.PrimaryColumn != "" {
			meta[vectordb.MetaPrimaryColumn] = opts.PrimaryColumn
		}
		if opts.Source != "" {
			meta[vectordb.MetaSource] = opts.Source
		}
		meta[MetaRow] = strconv.Itoa(r + 1)
		docs = append(docs, vectordb.Document{
			ID:       uuid.NewString(),
			Content:  t.RowText(r),
			Metadata: meta,
		})
	}

	for start := 0; start < len(docs); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(docs))
		if err := i.index.AddDocuments(ctx, collection, docs[start:end]); err != nil {
			return res, fmt.Errorf("indexing rows %d-%d: %w", start+1, end, err)
		}
		res.Documents = end
		if opts.Progress != nil {
			opts.Progress(end, len(docs))
		}
	}
	return res, nil
}

// ImageOptions control image ingestion.
type ImageOptions struct {
	// MatchField is the catalog column image file names refer to.
	MatchField string
	// Pattern selects files under the directory.
	Pattern  string
	Progress func(done, total int)
}

// DefaultImagePattern matches the image files ingested by default.
const DefaultImagePattern = "**/*.{png,jpg,jpeg,webp,gif,bmp}"

// IngestImages embeds every image under dir. An image named after a
// catalog item ("P-100.png") is matched to the item whose MatchField equals
// the file stem and linked to it as an attachment.
func (i *Ingester) IngestImages(ctx context.Context, companyID, dir string, opts ImageOptions) (*Result, error) {
	if i.images == nil {
		return nil, fmt.Errorf("no image embedder configured")
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultImagePattern
	}
	matches, err := doublestar.Glob(os.DirFS(dir), opts.Pattern, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("matching images: %w", err)
	}
	sort.Strings(matches)

	log := logging.WithComponent("catalog").WithField("company", companyID)
	collection := vectordb.ImageCollection(companyID)
	res := &Result{}
	for n, m := range matches {
		path := filepath.Join(dir, filepath.FromSlash(m))
		data, err := os.ReadFile(path)
		if err != nil {
			return res, fmt.Errorf("reading %s: %w", path, err)
		}
		vec, err := i.images.EmbedImage(ctx, data)
		if err != nil {
			return res, fmt.Errorf("embedding %s: %w", path, err)
		}
		name := filepath.Base(path)
		value := strings.TrimSuffix(name, filepath.Ext(name))

		// Re-ingesting a file replaces its previous vector.
		if i.index.Count(collection) > 0 {
			if err := i.index.Delete(ctx, collection, map[string]string{vectordb.MetaFullPath: path}); err != nil {
				return res, fmt.Errorf("replacing %s: %w", path, err)
			}
		}
		doc := vectordb.Document{
			ID:      uuid.NewString(),
			Content: name,
			Metadata: map[string]string{
				responder.MetaMatchField: opts.MatchField,
				responder.MetaMatchValue: value,
				vectordb.MetaFullPath:    path,
			},
			Embedding: vec,
		}
		if err := i.index.AddDocuments(ctx, collection, []vectordb.Document{doc}); err != nil {
			return res, fmt.Errorf("indexing %s: %w", path, err)
		}
		if i.linker != nil {
			if err := i.linker.Link(ctx, &attachments.LinkedFile{
				CompanyID: companyID,
				ProductID: value,
				Kind:      attachments.KindImage,
				FullPath:  path,
			}); err != nil {
				log.WithError(err).WithField("file", path).Warn("linking image")
			}
		}
		res.Documents++
		if opts.Progress != nil {
			opts.Progress(n+1, len(matches))
		}
	}
	return res, nil
}
