package api

import (
	"net/http"

	"github.com/erazemk/zaupnik/internal/access"
	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/notify"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(database *db.DB, svc *access.Service, broker *notify.Broker, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: database, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: database}
	vaultsHandler := &VaultsHandler{Access: svc}
	nomineesHandler := &NomineesHandler{Access: svc}
	transfersHandler := &TransfersHandler{Access: svc}
	redeemHandler := &RedeemHandler{Access: svc}
	messagesHandler := &MessagesHandler{Access: svc}
	eventsHandler := &EventsHandler{Access: svc, Broker: broker}

	authMW := AuthMiddleware(jwtSecret, database)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Vaults: owner, or accepted/active nominee for reads.
	mux.Handle("GET /api/vaults", authMW(http.HandlerFunc(vaultsHandler.List)))
	mux.Handle("POST /api/vaults", authMW(http.HandlerFunc(vaultsHandler.Create)))
	mux.Handle("GET /api/vaults/{id}", authMW(http.HandlerFunc(vaultsHandler.Get)))
	mux.Handle("GET /api/vaults/{id}/events", authMW(http.HandlerFunc(eventsHandler.Stream)))

	// Nominees.
	mux.Handle("GET /api/vaults/{id}/nominees", authMW(http.HandlerFunc(nomineesHandler.List)))
	mux.Handle("POST /api/vaults/{id}/nominees", authMW(http.HandlerFunc(nomineesHandler.Invite)))
	mux.Handle("GET /api/nominees/{id}", authMW(http.HandlerFunc(nomineesHandler.Get)))
	mux.Handle("POST /api/nominees/{id}/activate", authMW(http.HandlerFunc(nomineesHandler.Activate)))
	mux.Handle("DELETE /api/nominees/{id}", authMW(http.HandlerFunc(nomineesHandler.Revoke)))

	// Transfers.
	mux.Handle("GET /api/vaults/{id}/transfers", authMW(http.HandlerFunc(transfersHandler.ListForVault)))
	mux.Handle("POST /api/vaults/{id}/transfers", authMW(http.HandlerFunc(transfersHandler.Issue)))
	mux.Handle("GET /api/transfers", authMW(http.HandlerFunc(transfersHandler.List)))
	mux.Handle("GET /api/transfers/{id}", authMW(http.HandlerFunc(transfersHandler.Get)))
	mux.Handle("DELETE /api/transfers/{id}", authMW(http.HandlerFunc(transfersHandler.Cancel)))

	// Redemption.
	mux.Handle("POST /api/redeem/invite", authMW(http.HandlerFunc(redeemHandler.Invite)))
	mux.Handle("POST /api/redeem/transfer", authMW(http.HandlerFunc(redeemHandler.Transfer)))

	// Secure channel.
	mux.Handle("GET /api/vaults/{vid}/nominees/{nid}/messages", authMW(http.HandlerFunc(messagesHandler.List)))
	mux.Handle("POST /api/vaults/{vid}/nominees/{nid}/messages", authMW(http.HandlerFunc(messagesHandler.Send)))

	return mux
}
