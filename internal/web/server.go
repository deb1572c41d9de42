// Package web serves the presentation layer: a JSON API over the profile
// store and catalog, plus the embedded single-page UI. Handlers translate
// HTTP into store calls and nothing else; all data rules live in the store.
package web

import (
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/conorfennell/soltrack/internal/catalog"
	"github.com/conorfennell/soltrack/internal/domain"
	"github.com/conorfennell/soltrack/internal/kv"
	"github.com/conorfennell/soltrack/internal/profile"
	"github.com/conorfennell/soltrack/internal/transfer"
)

//go:embed all:static
var staticFiles embed.FS

const visibilityKey = "hideCompleted"

// Server holds the dependencies for the HTTP server.
type Server struct {
	store  *profile.Store
	medium kv.Store
	docs   []domain.SubjectStandard
	router *http.ServeMux
}

// NewServer creates and configures a new server over an already-loaded store
// and catalog.
func NewServer(store *profile.Store, medium kv.Store, docs []domain.SubjectStandard) *Server {
	s := &Server{
		store:  store,
		medium: medium,
		docs:   docs,
		router: http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("Failed to create sub-filesystem for static assets: %v", err)
	}
	s.router.Handle("/", http.FileServer(http.FS(staticFS)))

	s.router.HandleFunc("/api/standards", s.handleStandards())
	s.router.HandleFunc("/api/catalog", s.handleCatalog())
	s.router.HandleFunc("/api/profiles", s.handleProfiles())
	s.router.HandleFunc("/api/profiles/", s.handleProfile())
	s.router.HandleFunc("/api/active", s.handleActive())
	s.router.HandleFunc("/api/import/preview", s.handleImportPreview())
	s.router.HandleFunc("/api/import", s.handleImport())
	s.router.HandleFunc("/api/export", s.handleExport())
	s.router.HandleFunc("/api/settings/visibility", s.handleVisibility())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// handleStandards returns catalog documents, optionally narrowed by
// ?subject= and ?grade=.
func (s *Server) handleStandards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		docs := catalog.Filter(s.docs, r.URL.Query().Get("subject"), r.URL.Query().Get("grade"))
		if docs == nil {
			docs = []domain.SubjectStandard{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

// handleCatalog returns the subject and grade selectors for the UI dropdowns.
func (s *Server) handleCatalog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"subjects": catalog.Subjects(s.docs),
			"grades":   catalog.Grades(s.docs),
		})
	}
}

// handleProfiles lists profiles or creates one.
func (s *Server) handleProfiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.store.Profiles())
		case http.MethodPost:
			var body struct {
				Name     string         `json:"name"`
				Metadata map[string]any `json:"metadata"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
				http.Error(w, "Invalid profile payload", http.StatusBadRequest)
				return
			}
			id, err := s.store.CreateProfile(body.Name, body.Metadata)
			if err != nil {
				slog.Warn("Failed to persist new profile", "error", err)
			}
			writeJSON(w, http.StatusCreated, domain.ProfileRef{ID: id, DisplayName: body.Name})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleProfile dispatches /api/profiles/{id}[/stats|/progress|/mastery].
func (s *Server) handleProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
		id, sub, _ := strings.Cut(rest, "/")
		if id == "" {
			http.NotFound(w, r)
			return
		}

		switch sub {
		case "":
			s.profileByID(w, r, id)
		case "stats":
			writeJSON(w, http.StatusOK, s.store.MasteryCount(id))
		case "progress":
			docs := catalog.Filter(s.docs, r.URL.Query().Get("subject"), r.URL.Query().Get("grade"))
			writeJSON(w, http.StatusOK, s.store.CountForDocuments(id, docs))
		case "mastery":
			s.mastery(w, r, id)
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) profileByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		p, ok := s.store.Get(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPatch:
		var body struct {
			DisplayName string `json:"displayName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DisplayName == "" {
			http.Error(w, "Invalid rename payload", http.StatusBadRequest)
			return
		}
		if err := s.store.UpdateDisplayName(id, body.DisplayName); err != nil {
			slog.Warn("Failed to persist rename", "profile", id, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if id == s.store.Active() {
			// The UI also blocks this; the check here keeps direct API
			// callers from stranding the active pointer.
			http.Error(w, "Cannot delete the active profile", http.StatusConflict)
			return
		}
		if err := s.store.DeleteProfile(id); err != nil {
			slog.Warn("Failed to persist delete", "profile", id, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// mastery reads, upserts, or clears one (subject, standard) entry.
func (s *Server) mastery(w http.ResponseWriter, r *http.Request, id string) {
	subject := r.URL.Query().Get("subject")
	standardID := r.URL.Query().Get("standard")
	if subject == "" || standardID == "" {
		http.Error(w, "subject and standard are required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]domain.MasteryStatus{
			"status": s.store.MasteryFor(id, subject, standardID),
		})
	case http.MethodPut:
		var body struct {
			Status domain.MasteryStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Status.Valid() {
			http.Error(w, "Invalid mastery status", http.StatusBadRequest)
			return
		}
		if err := s.store.UpdateMasteryFor(id, subject, standardID, body.Status); err != nil {
			slog.Warn("Failed to persist mastery update", "profile", id, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.store.ClearMasteryFor(id, subject, standardID); err != nil {
			slog.Warn("Failed to persist mastery clear", "profile", id, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleActive reads or switches the active profile.
func (s *Server) handleActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]string{"id": s.store.Active()})
		case http.MethodPut:
			var body struct {
				ID string `json:"id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
				http.Error(w, "Invalid active profile payload", http.StatusBadRequest)
				return
			}
			if _, ok := s.store.Get(body.ID); !ok {
				http.NotFound(w, r)
				return
			}
			s.store.SetActive(body.ID)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleImportPreview validates a pasted payload and returns the comparison
// rows without committing anything.
func (s *Server) handleImportPreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incoming, ok := s.readImport(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, transfer.Preview(s.store.Snapshot(), incoming))
	}
}

// handleImport validates and commits a payload in one step.
func (s *Server) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incoming, ok := s.readImport(w, r)
		if !ok {
			return
		}
		if err := s.store.Merge(incoming); err != nil {
			slog.Warn("Failed to persist import", "error", err)
		}
		writeJSON(w, http.StatusOK, s.store.Profiles())
	}
}

func (s *Server) readImport(w http.ResponseWriter, r *http.Request) (domain.ProfileData, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	incoming, err := transfer.ParseAndValidate(string(body))
	if err != nil {
		// The validation reason is the user-facing message.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return nil, false
	}
	return incoming, true
}

// handleExport streams the full profile data, pretty-printed.
func (s *Server) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload, err := s.store.Export()
		if err != nil {
			slog.Error("Failed to export profiles", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}
}

// handleVisibility persists the hide-completed toggle under its own key; the
// store never interprets it.
func (s *Server) handleVisibility() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			raw, found, _ := s.medium.Get(visibilityKey)
			writeJSON(w, http.StatusOK, map[string]bool{"hideCompleted": found && raw == "true"})
		case http.MethodPut:
			var body struct {
				HideCompleted bool `json:"hideCompleted"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "Invalid visibility payload", http.StatusBadRequest)
				return
			}
			value := "false"
			if body.HideCompleted {
				value = "true"
			}
			if err := s.medium.Set(visibilityKey, value); err != nil {
				slog.Warn("Failed to persist visibility toggle", "error", err)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
