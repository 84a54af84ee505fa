package workflows

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

// Store provides CRUD operations for workflows.
type Store struct {
	db *db.DB
}

// NewStore creates a new workflows store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

const workflowColumns = `id, company_id, name, nodes, edges, status, error, enabled, except_case, position, created_at, updated_at`

func scanWorkflow(row interface{ Scan(...any) error }) (*Workflow, error) {
	w := &Workflow{}
	var nodesJSON, edgesJSON string
	var status, except string
	if err := row.Scan(&w.ID, &w.CompanyID, &w.Name, &nodesJSON, &edgesJSON, &status, &w.Error,
		&w.Enabled, &except, &w.Position, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Status = Status(status)
	w.ExceptCase = ExceptCase(except)
	if err := json.Unmarshal([]byte(nodesJSON), &w.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshaling nodes: %w", err)
	}
	w.Edges = json.RawMessage(edgesJSON)
	return w, nil
}

func encode(w *Workflow) (nodes, edges string, err error) {
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	b, err := json.Marshal(w.Nodes)
	if err != nil {
		return "", "", fmt.Errorf("marshaling nodes: %w", err)
	}
	edges = "[]"
	if len(w.Edges) > 0 {
		if !json.Valid(w.Edges) {
			return "", "", fmt.Errorf("edges are not valid JSON")
		}
		edges = string(w.Edges)
	}
	return string(b), edges, nil
}

// Create validates and inserts a workflow. An invalid workflow is stored
// with status Error; it is never enabled.
func (s *Store) Create(ctx context.Context, w *Workflow) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if Validate(w) != nil {
		w.Enabled = false
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	nodes, edges, err := encode(w)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (`+workflowColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
		   (SELECT COALESCE(MAX(position), -1) + 1 FROM workflows WHERE company_id = ?), ?, ?)`,
		w.ID, w.CompanyID, w.Name, nodes, edges, string(w.Status), w.Error, w.Enabled,
		string(w.ExceptCase), w.CompanyID, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating workflow: %w", err)
	}
	return s.db.QueryRowContext(ctx, `SELECT position FROM workflows WHERE id = ?`, w.ID).Scan(&w.Position)
}

// Get retrieves a workflow of a company by ID.
func (s *Store) Get(ctx context.Context, companyID, id string) (*Workflow, error) {
	w, err := scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE company_id = ? AND id = ?`, companyID, id))
	if err != nil {
		return nil, fmt.Errorf("getting workflow: %w", err)
	}
	return w, nil
}

// List returns the workflows of a company in evaluation order.
func (s *Store) List(ctx context.Context, companyID string) ([]Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE company_id = ? ORDER BY position, created_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	defer rows.Close()

	var result []Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow: %w", err)
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

// ListRunnable returns the enabled, validated workflows of a company in
// evaluation order.
func (s *Store) ListRunnable(ctx context.Context, companyID string) ([]Workflow, error) {
	all, err := s.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var result []Workflow
	for _, w := range all {
		if w.Runnable() {
			result = append(result, w)
		}
	}
	return result, nil
}

// Update revalidates and saves the name, nodes, edges and except case of
// a workflow. A workflow that no longer validates is disabled.
func (s *Store) Update(ctx context.Context, w *Workflow) error {
	if Validate(w) != nil {
		w.Enabled = false
	}
	w.UpdatedAt = time.Now().UTC()
	nodes, edges, err := encode(w)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET name=?, nodes=?, edges=?, status=?, error=?, enabled=?, except_case=?, updated_at=?
		 WHERE company_id=? AND id=?`,
		w.Name, nodes, edges, string(w.Status), w.Error, w.Enabled, string(w.ExceptCase), w.UpdatedAt,
		w.CompanyID, w.ID,
	)
	if err != nil {
		return fmt.Errorf("updating workflow: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEnabled toggles a workflow and sets its except case. Only workflows
// with status Success can be enabled.
func (s *Store) SetEnabled(ctx context.Context, companyID, id string, enabled bool, except ExceptCase) (*Workflow, error) {
	w, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if except == "" {
		except = w.ExceptCase
	}
	if !except.Valid() {
		return nil, fmt.Errorf("%w: except case %q must be one of sample, move, ignore", ErrInvalidWorkflow, except)
	}
	if enabled && w.Status != StatusSuccess {
		return nil, fmt.Errorf("%w: cannot enable a workflow with status %s: %s", ErrInvalidWorkflow, w.Status, w.Error)
	}
	w.Enabled = enabled
	w.ExceptCase = except
	w.UpdatedAt = time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET enabled=?, except_case=?, updated_at=? WHERE company_id=? AND id=?`,
		w.Enabled, string(w.ExceptCase), w.UpdatedAt, companyID, id); err != nil {
		return nil, fmt.Errorf("updating workflow: %w", err)
	}
	return w, nil
}

// Delete removes a workflow.
func (s *Store) Delete(ctx context.Context, companyID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE company_id=? AND id=?`, companyID, id)
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
