package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/example/bank-manager/internal/security"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// AuditMiddleware records every write request in the tamper-evident journal.
func AuditMiddleware(a Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				return
			}

			cid := security.CorrelationIDFromContext(r.Context())
			detail := fmt.Sprintf("cid=%s status=%d dur_ms=%d", cid, sw.status, dur.Milliseconds())
			a.Append(r.Method+" "+r.URL.Path, detail)
		})
	}
}
