package api

import (
	"net/http"

	"github.com/erazemk/zaupnik/internal/access"
	"github.com/erazemk/zaupnik/internal/model"
)

// TransfersHandler handles ownership transfer endpoints.
type TransfersHandler struct {
	Access *access.Service
}

type issueTransferRequest struct {
	Candidate model.Candidate `json:"candidate"`
	Reason    string          `json:"reason"`
}

// Issue handles POST /api/vaults/{id}/transfers.
func (h *TransfersHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	tr, err := h.Access.IssueTransfer(r.Context(), r.PathValue("id"), req.Candidate, req.Reason, claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, tr)
}

// ListForVault handles GET /api/vaults/{id}/transfers.
func (h *TransfersHandler) ListForVault(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	transfers, err := h.Access.ListTransfers(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(transfers))
}

// List handles GET /api/transfers: the requests the caller issued.
func (h *TransfersHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	transfers, err := h.Access.ListTransfersByRequester(r.Context(), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(transfers))
}

// Get handles GET /api/transfers/{id}.
func (h *TransfersHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	tr, err := h.Access.GetTransfer(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tr)
}

// Cancel handles DELETE /api/transfers/{id}.
func (h *TransfersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	tr, err := h.Access.CancelTransfer(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tr)
}
