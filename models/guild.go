package models

// Guild is the metadata item of a community space. Members and Posts are derived counters.
type Guild struct {
	PK          string `dynamodbav:"PK" json:"-"`               // ✅ GUILD#<guildId>
	SK          string `dynamodbav:"SK" json:"-"`               // ✅ METADATA
	EntityType  string `dynamodbav:"EntityType" json:"-"`       // ✅ GUILD
	GSI1PK      string `dynamodbav:"GSI1PK,omitempty" json:"-"` // ✅ Entity-type index partition
	GSI1SK      string `dynamodbav:"GSI1SK,omitempty" json:"-"` // ✅ Entity-type index sort (createdAt)
	ID          string `dynamodbav:"id" json:"id"`              // ✅ Immutable once created
	Name        string `dynamodbav:"name" json:"name"`
	Description string `dynamodbav:"description,omitempty" json:"description"`
	Category    string `dynamodbav:"category,omitempty" json:"category"`             // e.g. Pokemon, Magic
	IsPrivate   bool   `dynamodbav:"isPrivate" json:"isPrivate"`                     // Private guilds are invite only
	CreatedBy   string `dynamodbav:"createdBy" json:"createdBy"`                     // Founder, acts as moderator
	BannerKey   string `dynamodbav:"bannerKey,omitempty" json:"bannerKey,omitempty"` // S3 object key
	Members     int    `dynamodbav:"members" json:"members"`                         // ✅ Derived counter
	Posts       int    `dynamodbav:"posts" json:"posts"`                             // ✅ Derived counter
	Trending    bool   `dynamodbav:"trending" json:"trending"`
	CreatedAt   string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt   string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// IsModerator reports whether userID may moderate the guild.
func (g *Guild) IsModerator(userID string) bool {
	return userID != "" && g.CreatedBy == userID
}

// GuildUpdatableFields is the whitelist accepted by guild updates.
var GuildUpdatableFields = map[string]bool{
	"name":        true,
	"description": true,
	"category":    true,
	"isPrivate":   true,
	"trending":    true,
	"bannerKey":   true,
}
