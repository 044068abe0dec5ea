package models

// CardRef is an optional card attached to a post (e.g. a trade offer or showcase).
type CardRef struct {
	ID    string `dynamodbav:"id" json:"id"`
	Name  string `dynamodbav:"name" json:"name"`
	Game  string `dynamodbav:"game,omitempty" json:"game,omitempty"`
	Image string `dynamodbav:"image,omitempty" json:"image,omitempty"`
}

// Post lives under the guild partition; its sort key embeds the creation timestamp.
type Post struct {
	PK         string   `dynamodbav:"PK" json:"-"`         // ✅ GUILD#<guildId>
	SK         string   `dynamodbav:"SK" json:"-"`         // ✅ POST#<timestamp>#<postId>
	EntityType string   `dynamodbav:"EntityType" json:"-"` // ✅ POST
	ID         string   `dynamodbav:"id" json:"id"`
	GuildID    string   `dynamodbav:"guildId" json:"guildId"`
	Content    string   `dynamodbav:"content" json:"content"`
	AuthorID   string   `dynamodbav:"authorId" json:"authorId"`
	AuthorName string   `dynamodbav:"authorName" json:"authorName"`
	PostType   string   `dynamodbav:"postType" json:"postType"`
	Card       *CardRef `dynamodbav:"card,omitempty" json:"card,omitempty"`
	ImageKey   string   `dynamodbav:"imageKey,omitempty" json:"imageKey,omitempty"`
	Likes      int      `dynamodbav:"likes" json:"likes"`       // ✅ Derived counter
	Comments   int      `dynamodbav:"comments" json:"comments"` // ✅ Derived counter
	IsPinned   bool     `dynamodbav:"isPinned" json:"isPinned"`
	CreatedAt  string   `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt  string   `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Key returns the physical key of the post.
func (p *Post) Key() Key { return Key{PK: p.PK, SK: p.SK} }

// PostRef maps a post id to the post's physical sort key so lookups by id avoid a scan.
type PostRef struct {
	PK         string `dynamodbav:"PK"`         // ✅ GUILD#<guildId>#POST#<postId>
	SK         string `dynamodbav:"SK"`         // ✅ POSTREF
	EntityType string `dynamodbav:"EntityType"` // ✅ POST_REF
	PostSK     string `dynamodbav:"postSK"`
	CreatedAt  string `dynamodbav:"createdAt"`
}
