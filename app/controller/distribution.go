package controller

import (
	"net/http"
)

func (c *Controller) HandleDistribution(w http.ResponseWriter, _ *http.Request) {
	distribution, lastUpdatedAt := c.App.Distribution.Current()

	writeJSON(w, http.StatusOK, map[string]any{
		"lastUpdatedAt": lastUpdatedAt,
		"distribution":  distribution,
	})
}
