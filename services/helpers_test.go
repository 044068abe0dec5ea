package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore("", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// stepClock returns a clock that advances one millisecond per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Millisecond)
		return current
	}
}

// sequentialIDs returns ids prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type recordedEvent struct {
	GuildID string
	Event   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastToGuild(guildID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{GuildID: guildID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Event)
	}
	return out
}

// fixture wires every domain service onto one in-memory store.
type fixture struct {
	store       *LocalStore
	guilds      *GuildService
	members     *MemberService
	posts       *PostService
	likes       *LikeService
	comments    *CommentService
	broadcaster *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newTestStore(t)
	logger := zaptest.NewLogger(t)
	clock := stepClock()
	store.Now = clock
	b := &recordingBroadcaster{}

	posts := &PostService{Store: store, Logger: logger, Now: clock, NewID: sequentialIDs("post"), Broadcaster: b}
	return &fixture{
		store:       store,
		guilds:      &GuildService{Store: store, Logger: logger, Now: clock, NewID: sequentialIDs("guild")},
		members:     &MemberService{Store: store, Logger: logger, Now: clock},
		posts:       posts,
		likes:       &LikeService{Store: store, Posts: posts, Logger: logger, Now: clock, Broadcaster: b},
		comments:    &CommentService{Store: store, Posts: posts, Logger: logger, Now: clock, NewID: sequentialIDs("comment"), Broadcaster: b},
		broadcaster: b,
	}
}
