package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// ReadinessCheck probes one hard dependency by name.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// DatabasePing wraps a connection pool into a readiness check.
func DatabasePing(db *sql.DB) ReadinessCheck {
	return ReadinessCheck{
		Name: "database",
		Probe: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
	}
}

// Readiness answers 200 when every check passes and 503 with the failing
// checks otherwise.
func Readiness(checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		failures := map[string]string{}
		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				failures[c.Name] = err.Error()
			}
		}

		status := http.StatusOK
		body := map[string]any{"status": "ok"}
		if len(failures) > 0 {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["failures"] = failures
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// Liveness is the simplest check.
func Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
