package models

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, Key{PK: "GUILD#g1", SK: "METADATA"}, GuildMetadataKey("g1"))
	assert.Equal(t, Key{PK: "GUILD#g1", SK: "MEMBER#u1"}, MemberKey("g1", "u1"))
	assert.Equal(t, Key{PK: "GUILD#g1", SK: "POST#2024-05-01T00:00:00.000000Z#p1"}, PostKey("g1", "2024-05-01T00:00:00.000000Z", "p1"))
	assert.Equal(t, Key{PK: "GUILD#g1#POST#p1", SK: "POSTREF"}, PostRefKey("g1", "p1"))
	assert.Equal(t, Key{PK: "GUILD#g1#POST#p1", SK: "LIKE#u1"}, LikeKey("g1", "p1", "u1"))
	assert.Equal(t, Key{PK: "GUILD#g1#POST#p1", SK: "COMMENT#ts#c1"}, CommentKey("g1", "p1", "ts", "c1"))

	assert.Equal(t, "u1", UserIDFromMemberSK("MEMBER#u1"))
	assert.Equal(t, "u1", UserIDFromLikeSK("LIKE#u1"))
}

func TestFormatTimestampSortsChronologically(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(time.Second),
		base,
		base.Add(1500 * time.Microsecond),
		base.Add(time.Hour),
		base.Add(10 * time.Microsecond),
	}

	formatted := make([]string, len(times))
	for i, ts := range times {
		formatted[i] = FormatTimestamp(ts)
	}
	sort.Strings(formatted)

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i, ts := range times {
		assert.Equal(t, FormatTimestamp(ts), formatted[i])
	}
	assert.Equal(t, "2024-05-01T12:00:00.000000Z", FormatTimestamp(base))
	assert.Equal(t, "2024-05-01T12:00:00.000000Z", FormatTimestamp(base.In(time.FixedZone("X", 3600))))
}

func TestIsValidPostType(t *testing.T) {
	for _, pt := range PostTypes {
		assert.True(t, IsValidPostType(pt))
	}
	assert.False(t, IsValidPostType("discussion"))
	assert.False(t, IsValidPostType(""))
}

func TestGuildIsModerator(t *testing.T) {
	g := &Guild{CreatedBy: "u1"}
	assert.True(t, g.IsModerator("u1"))
	assert.False(t, g.IsModerator("u2"))
	assert.False(t, (&Guild{}).IsModerator(""))
}
