package middleware

import (
	"bytes"
	"docstack-api/internal/services"
	"net/http"
)

type ResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *ResponseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// UsageRecorder appends one usage ledger entry per completed protected call.
// It runs downstream of the usage limiter, so a blocked request never
// reaches it and never counts against the quota.
type UsageRecorder struct {
	usageLog services.UsageLogService
}

func NewUsageRecorder(usageLog services.UsageLogService) *UsageRecorder {
	return &UsageRecorder{
		usageLog: usageLog,
	}
}

func (ur *UsageRecorder) Record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := services.APIIdentityFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		rw := &ResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		success := rw.status < 400
		callErr := ""
		if !success {
			callErr = http.StatusText(rw.status)
		}

		ur.usageLog.LogAPICallAsync(identity.UserID, r.URL.Path, success, callErr)
	})
}
