package conversations

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts conversation endpoints on the given router.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/companies/{company}/conversations", listConversationsHandler(store))
	r.Get("/api/conversations/{id}", getConversationHandler(store))
	r.Get("/api/conversations/{id}/messages", listMessagesHandler(store))
	r.Post("/api/conversations/{id}/ai-reply", setAIReplyHandler(store))
}

func listConversationsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := store.List(r.Context(), chi.URLParam(r, "company"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if result == nil {
			result = []Conversation{}
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func getConversationHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func listMessagesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := store.ListMessages(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if result == nil {
			result = []Message{}
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func setAIReplyHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
			http.Error(w, "enabled is required", http.StatusBadRequest)
			return
		}
		id := chi.URLParam(r, "id")
		err := store.SetAIReply(r.Context(), id, *body.Enabled)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "ai_reply": *body.Enabled})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
