package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/d10r/sup-metrics-api/app/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", c.HandleHealth).Methods("GET")

	r.HandleFunc("/v1/scores", c.HandleScores).Methods("GET")
	r.HandleFunc("/v1/scores/delegates", c.HandleDelegates).Methods("GET")
	r.HandleFunc("/v1/distribution", c.HandleDistribution).Methods("GET")
	r.HandleFunc("/v1/refresh/{metric}", c.HandleRefresh).Methods("POST")

	return r
}

// WithCORS allows browser dashboards on other origins to read the API.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
