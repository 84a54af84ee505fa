package attachments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

// Kind distinguishes linked images from linked documents.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// LinkedFile associates a stored file with a catalog item.
type LinkedFile struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	ProductID string    `json:"product_id"`
	Kind      Kind      `json:"kind"`
	FullPath  string    `json:"full_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists catalog item attachments.
type Store struct {
	db *db.DB
}

// NewStore creates a new linked file store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Link records a file for a catalog item. Linking the same file twice is a no-op.
func (s *Store) Link(ctx context.Context, f *LinkedFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO linked_files (id, company_id, product_id, kind, full_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.CompanyID, f.ProductID, string(f.Kind), f.FullPath, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("linking file: %w", err)
	}
	return nil
}

// List returns the files linked to one catalog item, oldest first.
func (s *Store) List(ctx context.Context, companyID, productID string) ([]LinkedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, product_id, kind, full_path, created_at FROM linked_files
		 WHERE company_id = ? AND product_id = ? ORDER BY created_at, rowid`, companyID, productID)
	if err != nil {
		return nil, fmt.Errorf("listing linked files: %w", err)
	}
	defer rows.Close()

	var result []LinkedFile
	for rows.Next() {
		var f LinkedFile
		var kind string
		if err := rows.Scan(&f.ID, &f.CompanyID, &f.ProductID, &kind, &f.FullPath, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning linked file: %w", err)
		}
		f.Kind = Kind(kind)
		result = append(result, f)
	}
	return result, rows.Err()
}

// Lookup resolves the attachments of several catalog items. Each item
// contributes its first linked image and first linked document.
func (s *Store) Lookup(ctx context.Context, companyID string, productIDs []string) (Set, error) {
	var sets []Set
	for _, id := range productIDs {
		files, err := s.List(ctx, companyID, id)
		if err != nil {
			return Set{}, err
		}
		var item Set
		for _, f := range files {
			switch {
			case f.Kind == KindImage && len(item.Images) == 0:
				item.Images = []string{f.FullPath}
			case f.Kind == KindDocument && len(item.Documents) == 0:
				item.Documents = []string{f.FullPath}
			}
		}
		sets = append(sets, item)
	}
	return Union(sets...), nil
}
