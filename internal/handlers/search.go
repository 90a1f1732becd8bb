package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/search"
)

// HandleSearch answers GET /api/search?query=&seq=. A failed lookup still
// returns 200 with no cards and a notice. Clients debounce before calling and
// number their requests with seq, which is echoed back so that a response
// overtaken by a newer one can be dropped.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var seq uint64
	if v := r.URL.Query().Get("seq"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			h.writeError(w, "Invalid seq", http.StatusBadRequest)
			return
		}
		seq = n
	}

	query := r.URL.Query().Get("query")
	cards, err := h.search.Search(r.Context(), query)
	res := search.Result{Seq: seq, Query: query, Cards: cards}
	if err != nil {
		slog.Warn("Search failed", "query", query, "err", err)
		res.Cards = nil
		res.Notice = "Search is unavailable right now, please try again."
	}
	if res.Cards == nil {
		res.Cards = emptyCards()
	}
	h.writeJSON(w, res)
}
