package services

// Broadcaster publishes realtime events to everyone watching a guild.
type Broadcaster interface {
	BroadcastToGuild(guildID, event string, payload interface{})
}

// NoopBroadcaster drops every event. Used when realtime delivery is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastToGuild(string, string, interface{}) {}

func broadcasterOrNoop(b Broadcaster) Broadcaster {
	if b == nil {
		return NoopBroadcaster{}
	}
	return b
}
