package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/eventviewer/server/internal/domain/sessions"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Authenticator verifies an access token, including the blacklist.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// ErrorWriter renders a pre-upgrade failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Handler struct {
	authn          Authenticator
	hub            *Hub
	writeError     ErrorWriter
	originPatterns []string
	logger         zerolog.Logger
}

// NewHandler builds the upgrade endpoint. originPatterns follows
// websocket.AcceptOptions; an empty list only admits same-origin requests.
func NewHandler(authn Authenticator, hub *Hub, writeError ErrorWriter, originPatterns []string, logger zerolog.Logger) *Handler {
	return &Handler{
		authn:          authn,
		hub:            hub,
		writeError:     writeError,
		originPatterns: originPatterns,
		logger:         logger.With().Str("component", "realtime").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		h.writeError(w, r, sessions.ErrAccessTokenMissing)
		return
	}
	claims, err := h.authn.Authenticate(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	rooms := []string{notifications.UserRoom(claims.UserID())}
	if auth.NormalizeRole(claims.Role) == auth.RoleSuperAdmin {
		rooms = append(rooms, notifications.SuperAdminRoom)
	}
	client := h.hub.Join(rooms...)
	defer h.hub.Leave(client)

	h.logger.Debug().Str("user_id", claims.UserID()).Strs("rooms", rooms).Msg("realtime client connected")

	// Inbound frames are discarded; ctx ends when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-client.Send:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "client too slow")
				return
			}
			if err := write(ctx, conn, data); err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// tokenFromRequest prefers the token query parameter since browsers cannot
// set headers on a WebSocket handshake.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
