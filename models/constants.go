package models

// ✅ Entity types (stored in the EntityType discriminator)
const (
	EntityTypeGuild   = "GUILD"
	EntityTypeMember  = "MEMBER"
	EntityTypePost    = "POST"
	EntityTypePostRef = "POST_REF"
	EntityTypeLike    = "LIKE"
	EntityTypeComment = "COMMENT"
)

// ✅ Member roles
const (
	RoleCreator = "creator"
	RoleMember  = "member"
)

// ✅ Post types
const (
	PostTypeDiscussion   = "Discussion"
	PostTypeTrade        = "Trade"
	PostTypeShowcase     = "Showcase"
	PostTypeQuestion     = "Question"
	PostTypeAnnouncement = "Announcement"
)

// PostTypes lists every accepted postType value.
var PostTypes = []string{
	PostTypeDiscussion,
	PostTypeTrade,
	PostTypeShowcase,
	PostTypeQuestion,
	PostTypeAnnouncement,
}

// IsValidPostType reports whether postType is one of PostTypes.
func IsValidPostType(postType string) bool {
	for _, t := range PostTypes {
		if t == postType {
			return true
		}
	}
	return false
}

// ✅ Card games served by the catalog providers
const (
	GamePokemon = "Pokemon"
	GameMagic   = "Magic: The Gathering"
	GameYugioh  = "Yu-Gi-Oh!"
)

// ✅ Realtime events published to guild rooms
const (
	EventPostCreated    = "post:created"
	EventPostDeleted    = "post:deleted"
	EventPostPinned     = "post:pinned"
	EventCommentCreated = "comment:created"
	EventLikeToggled    = "like:toggled"
)
