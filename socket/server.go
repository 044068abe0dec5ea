package socket

import (
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"
)

const namespace = "/"

// GuildHub is the Socket.IO server behind the realtime guild feed. Each guild is a room;
// clients emit "join"/"leave" with a guild id and receive that guild's events.
type GuildHub struct {
	server *socketio.Server
	logger *zap.Logger
}

// NewGuildHub initializes the Socket.IO server and its event handlers
func NewGuildHub(logger *zap.Logger) *GuildHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := socketio.NewServer(nil)
	hub := &GuildHub{server: server, logger: logger}

	server.OnConnect(namespace, func(c socketio.Conn) error {
		logger.Debug("socket connected", zap.String("socketId", c.ID()))
		return nil
	})

	server.OnEvent(namespace, "join", func(c socketio.Conn, guildID string) {
		if guildID == "" {
			logger.Warn("join without guild id", zap.String("socketId", c.ID()))
			return
		}
		c.Join(guildID)
		logger.Debug("socket joined guild", zap.String("socketId", c.ID()), zap.String("guildId", guildID))
	})

	server.OnEvent(namespace, "leave", func(c socketio.Conn, guildID string) {
		c.Leave(guildID)
	})

	server.OnError(namespace, func(c socketio.Conn, err error) {
		logger.Warn("socket error", zap.Error(err))
	})

	server.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		logger.Debug("socket disconnected", zap.String("socketId", c.ID()), zap.String("reason", reason))
	})

	return hub
}

// BroadcastToGuild emits event with payload to every socket in the guild room.
func (h *GuildHub) BroadcastToGuild(guildID, event string, payload interface{}) {
	if !h.server.BroadcastToRoom(namespace, guildID, event, payload) {
		h.logger.Warn("guild event dropped, namespace not registered", zap.String("guildId", guildID), zap.String("event", event))
	}
}

// Serve runs the Socket.IO event loop until Close is called.
func (h *GuildHub) Serve() {
	if err := h.server.Serve(); err != nil {
		h.logger.Error("socket server stopped", zap.Error(err))
	}
}

func (h *GuildHub) Close() error {
	return h.server.Close()
}

// Handler mounts the hub on an HTTP mux (at /socket.io/).
func (h *GuildHub) Handler() http.Handler {
	return h.server
}
