package personality

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts personality endpoints on the given router.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/companies/{company}/personality", getHandler(store))
	r.Put("/api/companies/{company}/personality", putHandler(store))
	r.Post("/api/personality/preview", previewHandler())
}

func getHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := store.Get(r.Context(), chi.URLParam(r, "company"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if cfg == nil {
			http.Error(w, "personality not configured", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func putHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		cfg.CompanyID = chi.URLParam(r, "company")
		if err := store.Put(r.Context(), &cfg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// previewHandler renders the prompt for an unsaved personality.
func previewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"system_prompt": Resolve(&cfg)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
