package controller

import (
	"net/http"
	"strconv"

	"github.com/d10r/sup-metrics-api/pkg/metrics"
)

// HandleScores serves the filtered member list. Query params:
// minVotingPower (float, default 0) and includeAllDelegates (bool).
func (c *Controller) HandleScores(w http.ResponseWriter, r *http.Request) {
	minVP := 0.0
	if raw := r.URL.Query().Get("minVotingPower"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid minVotingPower"})
			return
		}
		minVP = v
	}
	includeAllDelegates := r.URL.Query().Get("includeAllDelegates") == "true"

	scores, lastUpdatedAt := c.App.Scores.Current()

	writeJSON(w, http.StatusOK, map[string]any{
		"lastUpdatedAt":       lastUpdatedAt,
		"memberCount":         metrics.MemberCount(scores),
		"totalDelegatedScore": metrics.TotalDelegatedScore(scores),
		"members":             metrics.FilterMembers(scores, minVP, includeAllDelegates),
	})
}

// HandleDelegates serves the per-delegate score list.
func (c *Controller) HandleDelegates(w http.ResponseWriter, _ *http.Request) {
	scores, lastUpdatedAt := c.App.Scores.Current()

	writeJSON(w, http.StatusOK, map[string]any{
		"lastUpdatedAt": lastUpdatedAt,
		"delegates":     metrics.DelegateScores(scores),
	})
}
