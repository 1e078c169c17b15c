package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/zaupnik/internal/access"
	"github.com/erazemk/zaupnik/internal/notify"
)

// keepAliveInterval is how often an idle event stream sends a comment line so
// proxies do not close it.
const keepAliveInterval = 25 * time.Second

// EventsHandler streams a vault's changes as Server-Sent Events.
type EventsHandler struct {
	Access *access.Service
	Broker *notify.Broker
}

// Stream handles GET /api/vaults/{id}/events. The stream ends when the
// client goes away or the caller loses access to the vault.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := GetClaims(ctx)
	vaultID := r.PathValue("id")

	if err := h.Access.CanWatch(ctx, vaultID, claims.UserID); err != nil {
		serviceError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// The server's write timeout would cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Warn("event stream: clearing write deadline", "error", err)
	}

	events, cancel := h.Broker.Subscribe(vaultID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		slog.Error("event stream: streaming unsupported", "error", err)
		return
	}

	slog.Info("event stream opened", "vault", vaultID, "user", claims.Username)
	defer slog.Info("event stream closed", "vault", vaultID, "user", claims.Username)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("event stream: encoding event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			if err := rc.Flush(); err != nil {
				return
			}

			// A transfer or revocation may have ended the caller's access.
			if err := h.Access.CanWatch(ctx, vaultID, claims.UserID); err != nil {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
		}
	}
}
