package handlers

import (
	"docstack-api/internal/models"
	"docstack-api/internal/repository"
	"docstack-api/internal/services"
	"encoding/json"
	"net/http"
	"strconv"
)

type UserFilesHandler struct {
	files repository.FileRepository
}

func NewUserFilesHandler(files repository.FileRepository) *UserFilesHandler {
	return &UserFilesHandler{files: files}
}

type userFilesResponse struct {
	Success bool          `json:"success"`
	Files   []models.File `json:"files"`
}

// ListFiles returns the caller team's uploaded files, newest first.
func (h *UserFilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	identity, ok := services.APIIdentityFromContext(r.Context())
	if !ok || identity.TeamID == nil {
		writeError(w, http.StatusForbidden, "API key is not associated with a team")
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	files, err := h.files.ListByTeam(r.Context(), *identity.TeamID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userFilesResponse{Success: true, Files: files})
}

func queryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
