package api

import (
	"net/http"

	"github.com/erazemk/zaupnik/internal/access"
	"github.com/erazemk/zaupnik/internal/model"
)

// NomineesHandler handles nominee endpoints.
type NomineesHandler struct {
	Access *access.Service
}

type inviteRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// List handles GET /api/vaults/{id}/nominees. Revoked and inactive nominees
// are included with ?all=true.
func (h *NomineesHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	nominees, err := h.Access.ListNominees(r.Context(), r.PathValue("id"), claims.UserID, queryBool(r, "all"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(nominees))
}

// Invite handles POST /api/vaults/{id}/nominees. The response carries the
// invite token and share link.
func (h *NomineesHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	inv, err := h.Access.IssueInvite(r.Context(), r.PathValue("id"), req.Name,
		model.Contact{Email: req.Email, Phone: req.Phone}, claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, inv)
}

// Get handles GET /api/nominees/{id}.
func (h *NomineesHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	n, err := h.Access.GetNominee(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, n)
}

// Activate handles POST /api/nominees/{id}/activate.
func (h *NomineesHandler) Activate(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	n, err := h.Access.ActivateNominee(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, n)
}

// Revoke handles DELETE /api/nominees/{id}.
func (h *NomineesHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	n, err := h.Access.RevokeNominee(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, n)
}
