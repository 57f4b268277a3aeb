package handlers

import (
	"docstack-api/internal/models"
	"docstack-api/internal/repository"
	"docstack-api/internal/services"
	"encoding/json"
	"net/http"
)

const defaultSearchK = 5

type SearchHandler struct {
	chunks repository.ChunkRepository
}

func NewSearchHandler(chunks repository.ChunkRepository) *SearchHandler {
	return &SearchHandler{chunks: chunks}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResult struct {
	FileID   string `json:"file_id"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

type searchResponse struct {
	Success bool           `json:"success"`
	Results []searchResult `json:"results"`
}

// Search returns the caller team's chunks matching the query.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity, ok := services.APIIdentityFromContext(r.Context())
	if !ok || identity.TeamID == nil {
		writeError(w, http.StatusForbidden, "API key is not associated with a team")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 || req.K > 100 {
		req.K = defaultSearchK
	}

	chunks, err := h.chunks.Search(r.Context(), *identity.TeamID, req.Query, req.K)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	resp := searchResponse{Success: true, Results: make([]searchResult, 0, len(chunks))}
	for _, chunk := range chunks {
		resp.Results = append(resp.Results, searchResult{
			FileID:   chunk.FileID.String(),
			Content:  chunk.Content,
			Position: chunk.Position,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func chunkContents(chunks []models.Chunk) []string {
	contents := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contents = append(contents, chunk.Content)
	}
	return contents
}
