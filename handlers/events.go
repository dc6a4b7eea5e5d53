package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/satheeshds/trackey/models"
)

const keepAlive = 25 * time.Second

// StreamEvents streams committed changes of the store as Server-Sent Events
// @Summary      Change stream
// @Description  Server-Sent Events, one "change" event per committed insert, update or delete.
// @Tags         events
// @Produce      text/event-stream
// @Param        X-Store-ID  header  int     true   "Store id"
// @Param        tables      query   string  false  "Comma separated tables to follow, all when empty"
// @Success      200
// @Router       /events [get]
// @Security     BasicAuth
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "store", "streaming unsupported")
		return
	}

	var tables []string
	if raw := r.URL.Query().Get("tables"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tables = append(tables, t)
			}
		}
	}
	changes := h.hub.Subscribe(r.Context(), scope.StoreID, tables...)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.log.Debug("event stream opened", "store_id", scope.StoreID, "session_id", scope.SessionID)
	defer h.log.Debug("event stream closed", "store_id", scope.StoreID, "session_id", scope.SessionID)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case c, ok := <-changes:
			if !ok {
				return
			}
			payload, err := json.Marshal(c)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
