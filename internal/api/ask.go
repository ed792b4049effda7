package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/warebot/warebot/internal/ask"
	"github.com/warebot/warebot/internal/auth"
)

type askRequest struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
}

type askResponse struct {
	Reply          string `json:"reply"`
	Category       string `json:"category"`
	Dataset        string `json:"dataset"`
	Timeframe      string `json:"timeframe"`
	Strategy       string `json:"strategy,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ask == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "ASK_UNAVAILABLE", "ask service is not configured", true)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "request body must be JSON", false)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "EMPTY_QUESTION", "text is required", false)
		return
	}

	principal := ""
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		principal = identity.Principal
	}

	reply := deps.Ask.Answer(r.Context(), ask.Request{
		Text:           req.Text,
		ConversationID: req.ConversationID,
		Principal:      principal,
	})

	writeJSON(w, http.StatusOK, askResponse{
		Reply:          reply.Text,
		Category:       string(reply.Category),
		Dataset:        string(reply.Dataset),
		Timeframe:      string(reply.Timeframe),
		Strategy:       reply.Strategy,
		ConversationID: reply.ConversationID,
	})
}
