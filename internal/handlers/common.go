// Package handlers is the JSON HTTP surface over search, paging, the
// composition editor and image resolution.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/search"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/sessions"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

// CompositionStore saves composition documents under generated ids.
type CompositionStore interface {
	SaveComposition(ctx context.Context, name string, c models.Composition) (string, error)
	LoadComposition(ctx context.Context, id string) (models.Composition, error)
	ListCompositions(ctx context.Context) ([]storage.SavedComposition, error)
}

// Deps are the collaborators a Handler serves. Store, Blobs and Saved may
// be nil.
type Deps struct {
	Sessions  *sessions.Store
	Search    *search.Client
	Resolver  *images.Resolver
	Store     storage.CardStore
	Blobs     images.BlobStore
	Saved     CompositionStore
	StaticDir string
}

type Handler struct {
	sessionStore *sessions.Store
	search       *search.Client
	resolver     *images.Resolver
	store        storage.CardStore
	blobs        images.BlobStore
	saved        CompositionStore
	staticDir    string
}

func New(deps Deps) *Handler {
	staticDir := deps.StaticDir
	if staticDir == "" {
		staticDir = "static"
	}
	return &Handler{
		sessionStore: deps.Sessions,
		search:       deps.Search,
		resolver:     deps.Resolver,
		store:        deps.Store,
		blobs:        deps.Blobs,
		saved:        deps.Saved,
		staticDir:    staticDir,
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", h.HandleSearch)
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/api/compositions", h.HandleCompositions)
	mux.HandleFunc("/api/cards/", h.HandleCard)
	mux.HandleFunc("/api/db-status", h.HandleDBStatus)
	mux.HandleFunc("/card_images/", h.HandleCardImageFile)
	mux.HandleFunc("/", h.HandleStatic)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, data, http.StatusOK)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*sessions.Session, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

type sessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Seen      int       `json:"seen"`
	Exhausted bool      `json:"exhausted"`
	Steps     int       `json:"steps"`
	Entries   int       `json:"entries"`
}

func viewOf(s *sessions.Session) sessionView {
	c := s.Editor.Composition()
	return sessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Seen:      s.Pager.Seen(),
		Exhausted: s.Pager.Exhausted(),
		Steps:     len(c),
		Entries:   c.EntryCount(),
	}
}

func emptyCards() []models.Card {
	return []models.Card{}
}
