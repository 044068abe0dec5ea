package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault_server/models"
	"cardvault_server/utils"
)

func TestCommentService_CreateAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	guild := createTestGuild(t, f, "user-1")
	post := createTestPost(t, f, guild.ID, "thoughts?")

	var ids []string
	for _, content := range []string{"one", "two", "three"} {
		comment, err := f.comments.CreateComment(ctx, guild.ID, post.ID, CreateCommentInput{Content: content, AuthorID: "user-3"})
		require.NoError(t, err)
		ids = append(ids, comment.ID)
	}

	comments, err := f.comments.GetComments(ctx, guild.ID, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{comments[0].ID, comments[1].ID, comments[2].ID})
	assert.Equal(t, "three", comments[0].Content)

	limited, err := f.comments.GetComments(ctx, guild.ID, post.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	stored, err := f.posts.GetPostByID(ctx, guild.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Comments)
	assert.Contains(t, f.broadcaster.names(), models.EventCommentCreated)
}

func TestCommentService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	guild := createTestGuild(t, f, "user-1")
	post := createTestPost(t, f, guild.ID, "post")

	_, err := f.comments.CreateComment(ctx, guild.ID, post.ID, CreateCommentInput{Content: "", AuthorID: "user-3"})
	assert.True(t, utils.IsType(err, utils.ErrorTypeValidation))

	_, err = f.comments.CreateComment(ctx, guild.ID, post.ID, CreateCommentInput{Content: "hi"})
	assert.True(t, utils.IsType(err, utils.ErrorTypeValidation))

	_, err = f.comments.CreateComment(ctx, guild.ID, "nonexistent-post", CreateCommentInput{Content: "hi", AuthorID: "user-3"})
	assert.True(t, utils.IsNotFound(err))
}
