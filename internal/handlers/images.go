package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// HandleCard serves /api/cards/{id}, /api/cards/{id}/image and
// /api/cards/{id}/image-failed.
func (h *Handler) HandleCard(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/cards/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, "Invalid card id", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
		if !h.requireMethod(w, r, http.MethodGet) {
			return
		}
		h.handleCardDetail(w, r, id)
	case "image":
		if !h.requireMethod(w, r, http.MethodGet) {
			return
		}
		card := models.Card{ID: id, ImageURL: r.URL.Query().Get("image_url")}
		if r.URL.Query().Get("check") == "1" {
			h.writeJSON(w, h.resolver.Resolve(r.Context(), card))
			return
		}
		h.writeJSON(w, h.resolver.Candidate(card))
	case "image-failed":
		if !h.requireMethod(w, r, http.MethodPost) {
			return
		}
		var request struct {
			Tier     images.Tier `json:"tier"`
			ImageURL string      `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		switch request.Tier {
		case images.TierCached, images.TierNominal, images.TierCanonical, images.TierPlaceholder:
		default:
			h.writeError(w, "Invalid tier", http.StatusBadRequest)
			return
		}
		h.resolver.MarkFailed(id, request.Tier)
		h.writeJSON(w, h.resolver.Candidate(models.Card{ID: id, ImageURL: request.ImageURL}))
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) handleCardDetail(w http.ResponseWriter, r *http.Request, id int64) {
	if h.store == nil {
		h.writeError(w, "Card store is not configured", http.StatusServiceUnavailable)
		return
	}
	card, ok, err := h.store.GetCard(r.Context(), id)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		h.writeError(w, "Card not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, card)
}

// HandleCardImageFile serves /card_images/{id}.jpg from the blob store.
func (h *Handler) HandleCardImageFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/card_images/")
	id, err := strconv.ParseInt(strings.TrimSuffix(name, ".jpg"), 10, 64)
	if err != nil || !strings.HasSuffix(name, ".jpg") || h.blobs == nil {
		http.NotFound(w, r)
		return
	}

	data, contentType, err := h.blobs.Get(r.Context(), id)
	if errors.Is(err, images.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}
