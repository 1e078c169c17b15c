package api

import (
	"net/http"
	"time"

	"github.com/erazemk/zaupnik/internal/access"
)

// MessagesHandler handles the secure channel between a vault owner and a
// nominee.
type MessagesHandler struct {
	Access *access.Service
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

// List handles GET /api/vaults/{vid}/nominees/{nid}/messages. An RFC 3339
// ?since= returns only newer messages.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		since = t
	}

	claims := GetClaims(r.Context())
	messages, err := h.Access.ListMessages(r.Context(), r.PathValue("vid"), r.PathValue("nid"), claims.UserID, since)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(messages))
}

// Send handles POST /api/vaults/{vid}/nominees/{nid}/messages.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	m, err := h.Access.SendMessage(r.Context(), r.PathValue("vid"), r.PathValue("nid"), claims.UserID, req.Body)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, m)
}
