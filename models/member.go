package models

// Member is one membership row per (guild, user).
type Member struct {
	PK          string `dynamodbav:"PK" json:"-"`         // ✅ GUILD#<guildId>
	SK          string `dynamodbav:"SK" json:"-"`         // ✅ MEMBER#<userId>
	EntityType  string `dynamodbav:"EntityType" json:"-"` // ✅ MEMBER
	GuildID     string `dynamodbav:"guildId" json:"guildId"`
	UserID      string `dynamodbav:"userId" json:"userId"`
	DisplayName string `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`
	Role        string `dynamodbav:"role" json:"role"` // creator | member
	JoinedAt    string `dynamodbav:"joinedAt" json:"joinedAt"`
}
