package models

// Comment is append-only and ordered by its timestamped sort key.
type Comment struct {
	PK         string `dynamodbav:"PK" json:"-"`         // ✅ GUILD#<guildId>#POST#<postId>
	SK         string `dynamodbav:"SK" json:"-"`         // ✅ COMMENT#<timestamp>#<commentId>
	EntityType string `dynamodbav:"EntityType" json:"-"` // ✅ COMMENT
	ID         string `dynamodbav:"id" json:"id"`
	GuildID    string `dynamodbav:"guildId" json:"guildId"`
	PostID     string `dynamodbav:"postId" json:"postId"`
	Content    string `dynamodbav:"content" json:"content"`
	AuthorID   string `dynamodbav:"authorId" json:"authorId"`
	AuthorName string `dynamodbav:"authorName" json:"authorName"`
	CreatedAt  string `dynamodbav:"createdAt" json:"createdAt"`
}
