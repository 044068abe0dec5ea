package models

import (
	"strings"
	"time"
)

// Attribute names shared by every item in the table.
const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrEntityType = "EntityType"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrUpdatedAt  = "updatedAt"
)

// Sort key prefixes.
const (
	GuildMetadataSK = "METADATA"
	PostRefSK       = "POSTREF"
	MemberPrefix    = "MEMBER#"
	PostPrefix      = "POST#"
	LikePrefix      = "LIKE#"
	CommentPrefix   = "COMMENT#"
)

// TimestampLayout is fixed width so that lexical order of sort keys is chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// GuildKey returns the partition key shared by a guild, its members and its posts.
func GuildKey(guildID string) string { return "GUILD#" + guildID }

// PostPartitionKey returns the partition holding a post's likes, comments and lookup ref.
func PostPartitionKey(guildID, postID string) string {
	return GuildKey(guildID) + "#POST#" + postID
}

func MemberSK(userID string) string { return MemberPrefix + userID }

func PostSK(timestamp, postID string) string { return PostPrefix + timestamp + "#" + postID }

func LikeSK(userID string) string { return LikePrefix + userID }

func CommentSK(timestamp, commentID string) string {
	return CommentPrefix + timestamp + "#" + commentID
}

// UserIDFromMemberSK strips the MEMBER# prefix.
func UserIDFromMemberSK(sk string) string { return strings.TrimPrefix(sk, MemberPrefix) }

// UserIDFromLikeSK strips the LIKE# prefix.
func UserIDFromLikeSK(sk string) string { return strings.TrimPrefix(sk, LikePrefix) }

// Key addresses a single item in the table.
type Key struct {
	PK string `dynamodbav:"PK" json:"PK"`
	SK string `dynamodbav:"SK" json:"SK"`
}

func GuildMetadataKey(guildID string) Key {
	return Key{PK: GuildKey(guildID), SK: GuildMetadataSK}
}

func MemberKey(guildID, userID string) Key {
	return Key{PK: GuildKey(guildID), SK: MemberSK(userID)}
}

func PostKey(guildID, timestamp, postID string) Key {
	return Key{PK: GuildKey(guildID), SK: PostSK(timestamp, postID)}
}

func PostRefKey(guildID, postID string) Key {
	return Key{PK: PostPartitionKey(guildID, postID), SK: PostRefSK}
}

func LikeKey(guildID, postID, userID string) Key {
	return Key{PK: PostPartitionKey(guildID, postID), SK: LikeSK(userID)}
}

func CommentKey(guildID, postID, timestamp, commentID string) Key {
	return Key{PK: PostPartitionKey(guildID, postID), SK: CommentSK(timestamp, commentID)}
}
