package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck reports whether a subsystem can serve. A nil error means ready.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthBody struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

// HealthHandler serves /healthz. It always answers 200 {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeHealth(rw, http.StatusOK, healthBody{Status: healthStatusOK})
	})
}

// ReadyHandler serves /readyz. Every check runs; if any fails the answer is
// 503 with the failing check names, sorted.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		var failed []string

		for _, c := range checks {
			if err := c.Check(req.Context()); err != nil {
				failed = append(failed, c.Name)
			}
		}

		if len(failed) > 0 {
			slices.Sort(failed)
			writeHealth(rw, http.StatusServiceUnavailable, healthBody{Status: healthStatusUnavailable, Failed: failed})

			return
		}

		writeHealth(rw, http.StatusOK, healthBody{Status: healthStatusOK})
	})
}

func writeHealth(rw http.ResponseWriter, code int, body healthBody) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	// The status code is already out; a failed body write has nowhere to go.
	_ = json.NewEncoder(rw).Encode(body)
}
