package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tradelink-hq/tradelink/internal/auth"
	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/pkg/errors"
	"github.com/tradelink-hq/tradelink/pkg/response"
)

// RealtimeHandler upgrades websocket connections onto the hub.
type RealtimeHandler struct {
	hub *realtime.Hub
	jwt *auth.JWTService
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub, jwt *auth.JWTService) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, jwt: jwt}
}

// Stream authenticates the request and hands the connection to the hub.
// Browsers cannot set headers on websocket upgrades, so the token is accepted
// from the query string as well.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	streams := splitStreams(c.Query("streams"))
	if len(streams) == 0 {
		streams = []string{realtime.StreamChat, realtime.StreamNotifications}
	}

	allowed := map[string]struct{}{
		realtime.StreamChat:          {},
		realtime.StreamNotifications: {},
	}
	h.hub.Serve(claims.UserID, streams, allowed, c.Writer, c.Request)
}

func splitStreams(raw string) []string {
	var streams []string
	for _, stream := range strings.Split(raw, ",") {
		if stream = strings.TrimSpace(stream); stream != "" {
			streams = append(streams, stream)
		}
	}
	return streams
}
