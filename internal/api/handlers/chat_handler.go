package handlers

import (
	"docstack-api/internal/llm"
	"docstack-api/internal/repository"
	"docstack-api/internal/services"
	"encoding/json"
	"net/http"
	"strings"
)

const chatSystemPrompt = "You are a helpful assistant. Answer the question using only the provided document excerpts. If the excerpts do not contain the answer, say so."

type ChatHandler struct {
	chunks    repository.ChunkRepository
	completer llm.Completer
}

func NewChatHandler(chunks repository.ChunkRepository, completer llm.Completer) *ChatHandler {
	return &ChatHandler{
		chunks:    chunks,
		completer: completer,
	}
}

type chatRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type chatResponse struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer"`
	Sources int    `json:"sources"`
}

// Chat retrieves the team's matching chunks and asks the completion API to
// answer the query grounded on them.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	identity, ok := services.APIIdentityFromContext(r.Context())
	if !ok || identity.TeamID == nil {
		writeError(w, http.StatusForbidden, "API key is not associated with a team")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 || req.K > 20 {
		req.K = defaultSearchK
	}

	chunks, err := h.chunks.Search(r.Context(), *identity.TeamID, req.Query, req.K)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Retrieval failed")
		return
	}

	prompt := req.Query
	if len(chunks) > 0 {
		prompt = "Document excerpts:\n\n" + strings.Join(chunkContents(chunks), "\n---\n") + "\n\nQuestion: " + req.Query
	}

	completion, err := h.completer.Chat(r.Context(), &llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: chatSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "Completion failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		Success: true,
		Answer:  completion.Choices[0].Message.Content,
		Sources: len(chunks),
	})
}
