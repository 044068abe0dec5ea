package socket

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cardvault_server/services"
)

var _ services.Broadcaster = (*GuildHub)(nil)

func TestGuildHub_HandshakeAndBroadcast(t *testing.T) {
	hub := NewGuildHub(zaptest.NewLogger(t))
	go hub.Serve()
	t.Cleanup(func() { _ = hub.Close() })

	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/socket.io/?EIO=3&transport=polling")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NotPanics(t, func() {
		hub.BroadcastToGuild("guild-1", "post:created", map[string]string{"id": "p1"})
	})
}
