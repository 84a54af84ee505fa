package workflows

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts workflow endpoints on the given router.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/companies/{company}/workflows", func(r chi.Router) {
		r.Get("/", listHandler(store))
		r.Post("/", createHandler(store))
		r.Get("/{id}", getHandler(store))
		r.Put("/{id}", updateHandler(store))
		r.Delete("/{id}", deleteHandler(store))
		r.Post("/{id}/enable", enableHandler(store))
	})
	r.Post("/api/workflows/validate", validateHandler())
}

type workflowRequest struct {
	Name       string          `json:"name"`
	Nodes      []Node          `json:"nodes"`
	Edges      json.RawMessage `json:"edges"`
	ExceptCase ExceptCase      `json:"except_case"`
}

func listHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context(), chi.URLParam(r, "company"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []Workflow{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func createHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req workflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		wf := &Workflow{
			CompanyID:  chi.URLParam(r, "company"),
			Name:       req.Name,
			Nodes:      req.Nodes,
			Edges:      req.Edges,
			ExceptCase: req.ExceptCase,
		}
		if err := store.Create(r.Context(), wf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, wf)
	}
}

func getHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, err := store.Get(r.Context(), chi.URLParam(r, "company"), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wf)
	}
}

func updateHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req workflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		wf, err := store.Get(r.Context(), chi.URLParam(r, "company"), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if req.Name != "" {
			wf.Name = req.Name
		}
		wf.Nodes = req.Nodes
		if req.Edges != nil {
			wf.Edges = req.Edges
		}
		if req.ExceptCase != "" {
			wf.ExceptCase = req.ExceptCase
		}
		if err := store.Update(r.Context(), wf); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wf)
	}
}

func deleteHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "company"), chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func enableHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled    bool       `json:"enabled"`
			ExceptCase ExceptCase `json:"except_case"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		wf, err := store.SetEnabled(r.Context(), chi.URLParam(r, "company"), chi.URLParam(r, "id"), req.Enabled, req.ExceptCase)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wf)
	}
}

// validateHandler checks an unsaved workflow.
func validateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req workflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		wf := &Workflow{Nodes: req.Nodes, ExceptCase: req.ExceptCase}
		Validate(wf)
		writeJSON(w, http.StatusOK, map[string]string{"status": string(wf.Status), "error": wf.Error})
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		http.Error(w, "workflow not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidWorkflow):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
