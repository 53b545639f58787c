// Package respond holds the JSON helpers shared by the API handlers.
package respond

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
)

// ErrResponse is the body of every non-2xx answer.
type ErrResponse struct {
	Message string `json:"error"`
	Status  int    `json:"status"`
}

// Render implements render.Renderer.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

// Error writes {"error": msg, "status": status}. 5xx answers are logged.
func Error(w http.ResponseWriter, r *http.Request, status int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if status >= http.StatusInternalServerError {
		logging.Component("api").WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		}).Error(msg)
	}
	_ = render.Render(w, r, &ErrResponse{Message: msg, Status: status})
}

// JSON writes v with status 200.
func JSON(w http.ResponseWriter, r *http.Request, v any) {
	render.JSON(w, r, v)
}

// CSV splits a comma separated query value, trimming blanks.
func CSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// QueryInt reads a non-negative integer query value, returning def when the
// parameter is absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// Paginate applies skip/limit to items. limit <= 0 means no limit. The result
// is never nil so it encodes as [].
func Paginate[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// CORS allows any origin, which is how the dashboard frontend is served.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
