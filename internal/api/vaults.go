package api

import (
	"net/http"

	"github.com/erazemk/zaupnik/internal/access"
)

// VaultsHandler handles vault endpoints.
type VaultsHandler struct {
	Access *access.Service
}

type createVaultRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/vaults. With ?shared=true it lists the vaults shared
// with the caller instead of those they own.
func (h *VaultsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	list := h.Access.ListVaults
	if queryBool(r, "shared") {
		list = h.Access.ListSharedVaults
	}

	vaults, err := list(r.Context(), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(vaults))
}

// Create handles POST /api/vaults.
func (h *VaultsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	v, err := h.Access.CreateVault(r.Context(), claims.UserID, req.Name)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, v)
}

// Get handles GET /api/vaults/{id}.
func (h *VaultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	v, err := h.Access.GetVault(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, v)
}

func queryBool(r *http.Request, key string) bool {
	switch r.URL.Query().Get(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}
