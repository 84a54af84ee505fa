package companies

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts company endpoints on the given router.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/companies", listCompaniesHandler(store))
	r.Post("/api/companies", createCompanyHandler(store))
	r.Get("/api/companies/{company}", getCompanyHandler(store))
	r.Get("/api/companies/{company}/integrations", listIntegrationsHandler(store))
	r.Post("/api/companies/{company}/integrations", createIntegrationHandler(store))
}

func listCompaniesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := store.ListCompanies(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if result == nil {
			result = []Company{}
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func createCompanyHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c Company
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if c.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if err := store.CreateCompany(r.Context(), &c); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func getCompanyHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCompany(r.Context(), chi.URLParam(r, "company"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "company not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func listIntegrationsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := store.ListIntegrations(r.Context(), chi.URLParam(r, "company"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if result == nil {
			result = []Integration{}
		}
		for i := range result {
			result[i].AccessToken = ""
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func createIntegrationHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := chi.URLParam(r, "company")
		if _, err := store.GetCompany(r.Context(), companyID); err != nil {
			http.Error(w, "company not found", http.StatusNotFound)
			return
		}
		var in Integration
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		switch in.Platform {
		case PlatformWeb, PlatformWhatsApp, PlatformWACA:
		default:
			http.Error(w, "platform must be one of web, whatsapp, waca", http.StatusBadRequest)
			return
		}
		in.CompanyID = companyID
		in.Active = true
		if err := store.CreateIntegration(r.Context(), &in); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		in.AccessToken = ""
		writeJSON(w, http.StatusCreated, in)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
