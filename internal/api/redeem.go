package api

import (
	"net/http"
	"strings"

	"github.com/erazemk/zaupnik/internal/access"
)

// RedeemHandler handles capability token redemption. The token is taken
// from the body, either bare or as a share link.
type RedeemHandler struct {
	Access *access.Service
}

type redeemRequest struct {
	Token string `json:"token"`
}

// Invite handles POST /api/redeem/invite.
func (h *RedeemHandler) Invite(w http.ResponseWriter, r *http.Request) {
	token, ok := readToken(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	res, err := h.Access.RedeemInvite(r.Context(), token, claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Transfer handles POST /api/redeem/transfer. The caller becomes the owner.
func (h *RedeemHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	token, ok := readToken(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	res, err := h.Access.RedeemTransfer(r.Context(), token, claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func readToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		jsonError(w, http.StatusBadRequest, "token required")
		return "", false
	}
	return token, true
}
