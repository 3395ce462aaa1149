package probe

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

// NewRouter returns a chi router serving /livez and /readyz.
func NewRouter(checks map[string]Check, timeout time.Duration, log *slog.Logger) chi.Router {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Report{Status: StatusOK})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		rep := Evaluate(req.Context(), checks, timeout)
		if !rep.Ready() {
			for name, res := range rep.Checks {
				if res != StatusOK {
					log.LogAttrs(req.Context(), slog.LevelWarn, "readiness check failed",
						slog.String("check", name), slog.String("result", res))
				}
			}
			writeJSON(w, http.StatusServiceUnavailable, rep)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, Report{Status: "not_found"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to write probe response", logger.Error(err))
	}
}
