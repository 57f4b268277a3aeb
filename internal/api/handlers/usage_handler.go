package handlers

import (
	"docstack-api/internal/services"
	"encoding/json"
	"net/http"
	"time"
)

type UsageHandler struct {
	quota services.QuotaService
}

func NewUsageHandler(quota services.QuotaService) *UsageHandler {
	return &UsageHandler{quota: quota}
}

type usageResponse struct {
	CurrentUsage int64     `json:"current_usage"`
	Limit        int64     `json:"limit"`
	Remaining    int64     `json:"remaining"`
	Tier         string    `json:"tier"`
	HasOverride  bool      `json:"has_override"`
	CanProceed   bool      `json:"can_proceed"`
	WindowStart  time.Time `json:"window_start"`
}

// GetCurrentUsage reports the session user's usage against their limit. This
// is the lenient resolver path: store failures degrade to free-tier defaults
// instead of blocking the dashboard.
func (h *UsageHandler) GetCurrentUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	decision := h.quota.EvaluateUser(r.Context(), user.ID)

	remaining := decision.Limit - decision.CurrentUsage
	if remaining < 0 {
		remaining = 0
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(usageResponse{
		CurrentUsage: decision.CurrentUsage,
		Limit:        decision.Limit,
		Remaining:    remaining,
		Tier:         string(decision.Tier),
		HasOverride:  decision.HasOverride,
		CanProceed:   decision.CanProceed,
		WindowStart:  decision.WindowStart,
	})
}
