package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cardvault_server/services"
	"cardvault_server/utils"
)

type testServer struct {
	router  *mux.Router
	guilds  *services.GuildService
	members *services.MemberService
	posts   *services.PostService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store, err := services.NewLocalStore("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	clock := tickingClock()
	store.Now = clock

	guilds := &services.GuildService{Store: store, Logger: logger, Now: clock}
	members := &services.MemberService{Store: store, Logger: logger, Now: clock}
	posts := &services.PostService{Store: store, Logger: logger, Now: clock}
	validator := utils.NewValidator()

	gc := NewGuildController(guilds, members, validator, logger)
	pc := &PostController{
		Guilds:    guilds,
		Members:   members,
		Posts:     posts,
		Likes:     &services.LikeService{Store: store, Posts: posts, Logger: logger, Now: clock},
		Comments:  &services.CommentService{Store: store, Posts: posts, Logger: logger, Now: clock},
		Validator: validator,
		Logger:    logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", HealthCheckHandler).Methods("GET")
	r.HandleFunc("/api/guilds", gc.HandleCreateGuild).Methods("POST")
	r.HandleFunc("/api/guilds", gc.HandleListGuilds).Methods("GET")
	r.HandleFunc("/api/guilds/{guildId}", gc.HandleGetGuild).Methods("GET")
	r.HandleFunc("/api/guilds/{guildId}", gc.HandleUpdateGuild).Methods("PATCH")
	r.HandleFunc("/api/guilds/{guildId}/recount", gc.HandleRecountGuild).Methods("POST")
	r.HandleFunc("/api/guilds/{guildId}/members", gc.HandleListMembers).Methods("GET")
	r.HandleFunc("/api/guilds/{guildId}/members/{userId}", gc.HandleAddMember).Methods("POST")
	r.HandleFunc("/api/guilds/{guildId}/members/{userId}", gc.HandleRemoveMember).Methods("DELETE")
	r.HandleFunc("/api/guilds/{guildId}/posts", pc.HandleGetPosts).Methods("GET")
	r.HandleFunc("/api/guilds/{guildId}/posts", pc.HandleCreatePost).Methods("POST")
	r.HandleFunc("/api/guilds/{guildId}/posts/{postId}", pc.HandleGetPost).Methods("GET")
	r.HandleFunc("/api/guilds/{guildId}/posts/{postId}", pc.HandleDeletePost).Methods("DELETE")
	r.HandleFunc("/api/guilds/{guildId}/posts/{postId}/pin", pc.HandleTogglePin).Methods("POST")
	r.HandleFunc("/api/guilds/{guildId}/posts/{postId}/like", pc.HandleToggleLike).Methods("POST")
	r.HandleFunc("/api/guilds/{guildId}/posts/{postId}/comments", pc.HandleGetComments).Methods("GET")
	r.HandleFunc("/api/guilds/{guildId}/posts/{postId}/comments", pc.HandleCreateComment).Methods("POST")

	return &testServer{router: r, guilds: guilds, members: members, posts: posts}
}

// tickingClock advances one millisecond per reading so creation order is unambiguous.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Millisecond)
		return current
	}
}

// do sends a request as userID (no identity headers when empty) and returns the recorder.
func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
		req.Header.Set(HeaderDisplayName, "name-"+userID)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// createGuild creates a guild owned by userID and returns its id.
func (s *testServer) createGuild(t *testing.T, userID string, private bool) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/guilds", userID, map[string]interface{}{
		"name":      "Pokemon Traders",
		"category":  "Pokemon",
		"isPrivate": private,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var guild struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &guild)
	return guild.ID
}
