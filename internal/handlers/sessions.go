package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/codec"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/composition"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/pager"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/sessions"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		all := h.sessionStore.GetAll()
		list := make([]sessionView, 0, len(all))
		for _, session := range all {
			list = append(list, viewOf(session))
		}
		sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
		h.writeJSON(w, list)
	case http.MethodPost:
		session := h.sessionStore.Create()
		h.writeJSONStatus(w, viewOf(session), http.StatusCreated)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and its actions.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.writeJSON(w, session.Editor.State())
		case http.MethodDelete:
			h.sessionStore.Delete(sessionID)
			w.WriteHeader(http.StatusNoContent)
		default:
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "next-page":
		if !h.requireMethod(w, r, http.MethodPost) {
			return
		}
		page, err := session.Pager.LoadNextPage(r.Context())
		if err != nil {
			if errors.Is(err, pager.ErrReset) {
				h.writeError(w, "Session was reset while loading cards", http.StatusConflict)
				return
			}
			var fetchErr *pager.FetchError
			if errors.As(err, &fetchErr) {
				h.writeError(w, "Failed to load cards: "+err.Error(), http.StatusBadGateway)
				return
			}
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if page.Records == nil {
			page.Records = emptyCards()
		}
		h.writeJSON(w, page)
	case "reset":
		if !h.requireMethod(w, r, http.MethodPost) {
			return
		}
		session.Pager.Reset()
		h.writeJSON(w, viewOf(session))
	case "ops":
		if !h.requireMethod(w, r, http.MethodPost) {
			return
		}
		var op composition.Op
		if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := session.Editor.Apply(op); err != nil {
			h.writeError(w, err.Error(), opStatus(err))
			return
		}
		h.writeJSON(w, session.Editor.State())
	case "export":
		if !h.requireMethod(w, r, http.MethodGet) {
			return
		}
		data, err := codec.Export(session.Editor.Composition())
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="combo_steps.json"`)
		_, _ = w.Write(data)
	case "import":
		if !h.requireMethod(w, r, http.MethodPost) {
			return
		}
		h.handleImport(w, r, session)
	case "save":
		if !h.requireMethod(w, r, http.MethodPost) {
			return
		}
		h.handleSave(w, r, session)
	case "load":
		if !h.requireMethod(w, r, http.MethodPost) {
			return
		}
		h.handleLoad(w, r, session)
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func opStatus(err error) int {
	switch {
	case errors.Is(err, composition.ErrNoTargetStep):
		return http.StatusConflict
	case errors.Is(err, composition.ErrIndexOutOfRange), errors.Is(err, composition.ErrBadOp):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HandleCompositions lists saved compositions.
func (h *Handler) HandleCompositions(w http.ResponseWriter, r *http.Request) {
	if !h.requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.saved == nil {
		h.writeError(w, "Saved compositions are not available", http.StatusServiceUnavailable)
		return
	}
	list, err := h.saved.ListCompositions(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, list)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	if h.saved == nil {
		h.writeError(w, "Saved compositions are not available", http.StatusServiceUnavailable)
		return
	}
	var request struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(request.Name) == "" {
		h.writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	id, err := h.saved.SaveComposition(r.Context(), request.Name, session.Editor.Composition())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSONStatus(w, map[string]string{"id": id, "name": request.Name}, http.StatusCreated)
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	if h.saved == nil {
		h.writeError(w, "Saved compositions are not available", http.StatusServiceUnavailable)
		return
	}
	var request struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	c, err := h.saved.LoadComposition(r.Context(), request.ID)
	switch {
	case errors.Is(err, storage.ErrCompositionNotFound):
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, codec.ErrMalformedDocument):
		h.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	session.Editor.Replace(c)
	h.writeJSON(w, session.Editor.State())
}
