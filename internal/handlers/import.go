package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/codec"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/sessions"
)

const (
	maxDocumentBytes = 10 * 1024 * 1024
	// multipart framing allowance on top of the document itself
	maxImportBody = maxDocumentBytes + 1<<20
)

// handleImport replaces the session's composition with an uploaded document.
// The document may be the raw request body or a multipart "file" field. A
// rejected document leaves the composition as it was.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	if r.ContentLength > maxImportBody {
		h.writeError(w, "Document too large (max 10MB)", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			if tooLarge(err) {
				h.writeError(w, "Document too large (max 10MB)", http.StatusRequestEntityTooLarge)
				return
			}
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		body = file
	}

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes+1))
	if err != nil && !tooLarge(err) {
		h.writeError(w, "Failed to read document: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil || len(data) > maxDocumentBytes {
		h.writeError(w, "Document too large (max 10MB)", http.StatusRequestEntityTooLarge)
		return
	}

	c, err := codec.Import(data)
	if err != nil {
		if errors.Is(err, codec.ErrMalformedDocument) {
			h.writeError(w, "Invalid file format: "+err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	session.Editor.Replace(c)
	slog.Info("Composition imported", "session_id", session.ID, "steps", len(c), "entries", c.EntryCount())
	h.writeJSON(w, session.Editor.State())
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
