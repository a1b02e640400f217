package http

import (
	stdcontext "context"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/causalchat/server/internal/auth"
	"github.com/causalchat/server/internal/core"
	"github.com/causalchat/server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to a core.Session.
type WSHandler struct {
	hub             *core.Hub
	authService     *auth.Service
	log             *zerolog.Logger
	rateLimitPerSec float64
	rateLimitBurst  int
}

// NewWSHandler builds a new WebSocket handler. rateLimitPerSec/rateLimitBurst
// of 0 disables per-session rate limiting.
func NewWSHandler(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger, rateLimitPerSec float64, rateLimitBurst int) *WSHandler {
	return &WSHandler{
		hub:             hub,
		authService:     authService,
		log:             logger,
		rateLimitPerSec: rateLimitPerSec,
		rateLimitBurst:  rateLimitBurst,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	sessionID, displayName := h.identify(r)
	session := core.NewSession(sessionID, displayName)
	h.hub.RegisterSession(session)
	defer h.hub.UnregisterSession(session)

	ctx, cancel := stdcontext.WithCancel(r.Context())
	defer cancel()

	limiter := newRateLimiter(h.rateLimitPerSec, h.rateLimitBurst)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, stdcontext.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// identify resolves the participant behind a WebSocket upgrade from an
// optional Authorization: Bearer <token> header: a valid token supplies a
// stable user id (used as the vector-clock key) and display name; an
// absent or invalid one falls back to an anonymous guest identifier.
func (h *WSHandler) identify(r *stdhttp.Request) (id, displayName string) {
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return uuid.NewString(), ""
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws upgrade: invalid bearer token, falling back to guest")
		return uuid.NewString(), ""
	}
	return strconv.FormatInt(claims.UserID, 10), claims.Username
}

func (h *WSHandler) readLoop(ctx stdcontext.Context, conn *websocket.Conn, session *core.Session, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Debug().Err(err).Str("session_id", session.ID).Msg("frame dropped: protocol error")
			continue
		}

		if cmd.Kind == core.CommandChat && !limiter.allow() {
			h.log.Warn().Str("session_id", session.ID).Str("code", core.ErrCodeRateLimited).Msg("closing session: chat rate limit exceeded")
			return websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "chat rate limit exceeded"}
		}

		h.hub.Submit(session, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx stdcontext.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case ev, ok := <-session.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
