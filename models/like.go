package models

// Like exists while the user likes the post; absence means not liked.
type Like struct {
	PK         string `dynamodbav:"PK" json:"-"`         // ✅ GUILD#<guildId>#POST#<postId>
	SK         string `dynamodbav:"SK" json:"-"`         // ✅ LIKE#<userId>
	EntityType string `dynamodbav:"EntityType" json:"-"` // ✅ LIKE
	GuildID    string `dynamodbav:"guildId" json:"guildId"`
	PostID     string `dynamodbav:"postId" json:"postId"`
	UserID     string `dynamodbav:"userId" json:"userId"`
	CreatedAt  string `dynamodbav:"createdAt" json:"createdAt"`
}
