package middleware

import (
	"docstack-api/internal/errors"
	"docstack-api/internal/logger"
	"docstack-api/internal/services"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UsageLimiter enforces the per-tier API call quota on protected routes.
// It resolves the caller's identity from the API key header, evaluates the
// quota and either forwards the request or ends it with 401/429. It never
// logs usage itself; the usage recorder downstream does that once the
// endpoint has completed.
type UsageLimiter struct {
	quota     services.QuotaService
	telemetry services.Telemetry
}

func NewUsageLimiter(quota services.QuotaService, telemetry services.Telemetry) *UsageLimiter {
	return &UsageLimiter{
		quota:     quota,
		telemetry: telemetry,
	}
}

func (ul *UsageLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = "req_" + uuid.NewString()
		}

		log := logger.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		})

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			log.Warn("Request rejected: missing API key")
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"error":   "API key is required",
			})
			return
		}

		log = log.WithField("key_prefix", maskKey(apiKey))

		decision, identity, err := ul.quota.EvaluateKey(r.Context(), apiKey)
		if err != nil {
			if err != errors.ErrInvalidIdentity {
				log.WithField("error", err).Error("Quota evaluation failed")
			} else {
				log.Warn("Request rejected: invalid API key")
			}
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"error":   "Invalid API key",
			})
			return
		}

		usagePct := ""
		if decision.Limit > 0 {
			usagePct = fmt.Sprintf("%.2f", float64(decision.CurrentUsage)/float64(decision.Limit)*100)
		}

		log = log.WithFields(logrus.Fields{
			"user_id":      identity.UserID,
			"tier":         decision.Tier,
			"usage":        decision.CurrentUsage,
			"limit":        decision.Limit,
			"usage_pct":    usagePct,
			"has_override": decision.HasOverride,
		})

		if !decision.CanProceed {
			log.Warn("API call limit exceeded, blocking request")
			ul.telemetry.Capture(identity.UserID.String(), "api_call_blocked", map[string]interface{}{
				"endpoint": r.URL.Path,
				"usage":    decision.CurrentUsage,
				"limit":    decision.Limit,
				"tier":     string(decision.Tier),
			})
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"success": false,
				"error":   decision.Reason,
				"limit":   decision.Limit,
				"usage":   decision.CurrentUsage,
			})
			return
		}

		if decision.HasOverride && decision.CurrentUsage >= decision.Limit {
			log.Warn("Usage exceeds limit but override is active, allowing request")
			ul.telemetry.Capture(identity.UserID.String(), "override_bypass", map[string]interface{}{
				"endpoint": r.URL.Path,
				"usage":    decision.CurrentUsage,
				"limit":    decision.Limit,
			})
		} else if decision.Limit > 0 && decision.CurrentUsage >= decision.Limit*8/10 {
			log.Warn("User approaching API call limit")
		}

		log.Debug("Request allowed to proceed")

		ctx := services.WithAPIIdentityContext(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAPIKey reads the key from the Authorization header, tolerating a
// Bearer prefix, with X-API-Key as a fallback.
func extractAPIKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.Header.Get("X-API-Key")
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

// maskKey keeps only the first 8 characters for diagnostics.
func maskKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Logger.WithField("error", err).Error("Failed to write JSON response")
	}
}
