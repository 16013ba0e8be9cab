package controller

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleRefresh triggers an asynchronous refresh of one or both metrics.
// A refresh already in flight makes the trigger a no-op.
func (c *Controller) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	metric := mux.Vars(r)["metric"]

	// Detached from the request context: the refresh outlives the response.
	ctx := context.WithoutCancel(r.Context())

	switch metric {
	case "scores":
		go c.App.Scores.Refresh(ctx)
	case "distribution":
		go c.App.Distribution.Refresh(ctx)
	case "all":
		go c.App.Scores.Refresh(ctx)
		go c.App.Distribution.Refresh(ctx)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown metric " + metric})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered", "metric": metric})
}
