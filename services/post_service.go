package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"cardvault_server/models"
	"cardvault_server/utils"
)

// PostService manages guild posts and the per-post counters.
type PostService struct {
	Store       Store
	Logger      *zap.Logger
	Now         func() time.Time
	NewID       func() string
	Broadcaster Broadcaster
}

// CreatePostInput carries the caller supplied fields of a new post.
type CreatePostInput struct {
	Content    string          `json:"content" validate:"required,max=5000"`
	PostType   string          `json:"postType" validate:"posttype"`
	Card       *models.CardRef `json:"card,omitempty"`
	ImageKey   string          `json:"imageKey,omitempty" validate:"max=512"`
	AuthorID   string          `json:"-"`
	AuthorName string          `json:"-"`
}

// CreatePost writes the post and its lookup ref and bumps the guild posts counter, all or nothing.
func (s *PostService) CreatePost(ctx context.Context, guildID string, input CreatePostInput) (*models.Post, error) {
	logger := loggerOrNop(s.Logger)
	if strings.TrimSpace(input.Content) == "" {
		return nil, utils.NewValidationError("content is required")
	}
	if input.AuthorID == "" {
		return nil, utils.NewValidationError("authorId is required")
	}
	postType := input.PostType
	if postType == "" {
		postType = models.PostTypeDiscussion
	}
	if !models.IsValidPostType(postType) {
		return nil, utils.NewValidationError("postType must be one of %s", strings.Join(models.PostTypes, ", "))
	}

	postID := newIDOrDefault(s.NewID)
	now := models.FormatTimestamp(nowOrDefault(s.Now))
	key := models.PostKey(guildID, now, postID)

	post := &models.Post{
		PK:         key.PK,
		SK:         key.SK,
		EntityType: models.EntityTypePost,
		ID:         postID,
		GuildID:    guildID,
		Content:    input.Content,
		AuthorID:   input.AuthorID,
		AuthorName: input.AuthorName,
		PostType:   postType,
		Card:       input.Card,
		ImageKey:   input.ImageKey,
		Likes:      0,
		Comments:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	refKey := models.PostRefKey(guildID, postID)
	ref := &models.PostRef{
		PK:         refKey.PK,
		SK:         refKey.SK,
		EntityType: models.EntityTypePostRef,
		PostSK:     key.SK,
		CreatedAt:  now,
	}

	err := s.Store.TransactWrite(ctx,
		AddOp(models.GuildMetadataKey(guildID), "posts", 1),
		PutOp(post, CondNotExists),
		PutOp(ref, CondNotExists),
	)
	if index, failed := failedOpIndex(err); failed && index == 0 {
		return nil, utils.NewNotFoundError("guild")
	}
	if err != nil {
		logger.Error("failed to create post", zap.String("guildId", guildID), zap.Error(err))
		return nil, utils.NewInternalError("failed to create post", err)
	}

	logger.Info("post created", zap.String("guildId", guildID), zap.String("postId", postID))
	broadcasterOrNoop(s.Broadcaster).BroadcastToGuild(guildID, models.EventPostCreated, post)
	return post, nil
}

// GetPostsByGuild returns the guild's posts newest first. limit <= 0 returns all of them.
func (s *PostService) GetPostsByGuild(ctx context.Context, guildID string, limit int) ([]models.Post, error) {
	posts := []models.Post{}
	opts := QueryOptions{Limit: limit, Ascending: false}
	if err := s.Store.QueryByPrefix(ctx, models.GuildKey(guildID), models.PostPrefix, opts, &posts); err != nil {
		return nil, utils.NewInternalError("failed to load posts", err)
	}
	return posts, nil
}

// GetPostByID resolves a post through its lookup ref, falling back to a scan of the guild's posts.
func (s *PostService) GetPostByID(ctx context.Context, guildID, postID string) (*models.Post, error) {
	var ref models.PostRef
	found, err := s.Store.GetItem(ctx, models.PostRefKey(guildID, postID), &ref)
	if err != nil {
		return nil, utils.NewInternalError("failed to load post", err)
	}
	if !found {
		return s.findPostByScan(ctx, guildID, postID)
	}

	var post models.Post
	found, err = s.Store.GetItem(ctx, models.Key{PK: models.GuildKey(guildID), SK: ref.PostSK}, &post)
	if err != nil {
		return nil, utils.NewInternalError("failed to load post", err)
	}
	if !found {
		return nil, utils.NewNotFoundError("post")
	}
	return &post, nil
}

// findPostByScan serves posts written before lookup refs existed.
func (s *PostService) findPostByScan(ctx context.Context, guildID, postID string) (*models.Post, error) {
	posts, err := s.GetPostsByGuild(ctx, guildID, 0)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].ID == postID {
			loggerOrNop(s.Logger).Debug("post resolved without lookup ref", zap.String("guildId", guildID), zap.String("postId", postID))
			return &posts[i], nil
		}
	}
	return nil, utils.NewNotFoundError("post")
}

// TogglePin flips isPinned. A concurrent flip of the same post yields a conflict.
func (s *PostService) TogglePin(ctx context.Context, guildID, postID string) (*models.Post, error) {
	post, err := s.GetPostByID(ctx, guildID, postID)
	if err != nil {
		return nil, err
	}

	pinned := !post.IsPinned
	err = s.Store.UpdateFields(ctx, post.Key(),
		map[string]interface{}{"isPinned": pinned},
		map[string]interface{}{"isPinned": post.IsPinned},
	)
	if errors.Is(err, ErrConditionFailed) {
		return nil, utils.NewConflictError("post was modified concurrently, retry")
	}
	if err != nil {
		return nil, utils.NewInternalError("failed to pin post", err)
	}

	post.IsPinned = pinned
	post.UpdatedAt = models.FormatTimestamp(nowOrDefault(s.Now))
	broadcasterOrNoop(s.Broadcaster).BroadcastToGuild(guildID, models.EventPostPinned, post)
	return post, nil
}

// DeletePost removes the post and decrements the guild posts counter atomically.
// Likes and comments under the post are cleaned up afterwards on a best effort basis.
func (s *PostService) DeletePost(ctx context.Context, guildID, postID string) error {
	logger := loggerOrNop(s.Logger)
	post, err := s.GetPostByID(ctx, guildID, postID)
	if err != nil {
		return err
	}

	err = s.Store.TransactWrite(ctx,
		AddOp(models.GuildMetadataKey(guildID), "posts", -1),
		DeleteOp(post.Key(), CondExists),
		DeleteOp(models.PostRefKey(guildID, postID), CondNone),
	)
	if index, failed := failedOpIndex(err); failed {
		if index == 0 {
			return utils.NewNotFoundError("guild")
		}
		return utils.NewNotFoundError("post")
	}
	if err != nil {
		logger.Error("failed to delete post", zap.String("guildId", guildID), zap.String("postId", postID), zap.Error(err))
		return utils.NewInternalError("failed to delete post", err)
	}

	if err := s.deleteChildren(ctx, guildID, postID); err != nil {
		logger.Warn("failed to clean up post children", zap.String("guildId", guildID), zap.String("postId", postID), zap.Error(err))
	}

	logger.Info("post deleted", zap.String("guildId", guildID), zap.String("postId", postID))
	broadcasterOrNoop(s.Broadcaster).BroadcastToGuild(guildID, models.EventPostDeleted, map[string]string{"id": postID, "guildId": guildID})
	return nil
}

func (s *PostService) deleteChildren(ctx context.Context, guildID, postID string) error {
	pk := models.PostPartitionKey(guildID, postID)
	var keys []models.Key
	for _, prefix := range []string{models.LikePrefix, models.CommentPrefix} {
		var children []models.Key
		if err := s.Store.QueryByPrefix(ctx, pk, prefix, QueryOptions{Ascending: true}, &children); err != nil {
			return err
		}
		keys = append(keys, children...)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.Store.DeleteItems(ctx, keys)
}

func (s *PostService) IncrementLikes(ctx context.Context, guildID, postID string) error {
	return s.adjustCounter(ctx, guildID, postID, "likes", 1)
}

func (s *PostService) DecrementLikes(ctx context.Context, guildID, postID string) error {
	return s.adjustCounter(ctx, guildID, postID, "likes", -1)
}

func (s *PostService) IncrementComments(ctx context.Context, guildID, postID string) error {
	return s.adjustCounter(ctx, guildID, postID, "comments", 1)
}

// adjustCounter tolerates a missing post: it logs and returns nil without writing.
func (s *PostService) adjustCounter(ctx context.Context, guildID, postID, field string, delta int) error {
	logger := loggerOrNop(s.Logger)
	post, err := s.GetPostByID(ctx, guildID, postID)
	if utils.IsNotFound(err) {
		logger.Warn("post not found, counter not updated", zap.String("guildId", guildID), zap.String("postId", postID), zap.String("field", field))
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.Store.UpdateCounter(ctx, post.Key(), field, delta)
	if errors.Is(err, ErrNotFound) {
		logger.Warn("post deleted before counter update", zap.String("guildId", guildID), zap.String("postId", postID), zap.String("field", field))
		return nil
	}
	if err != nil {
		return utils.NewInternalError("failed to update post "+field, err)
	}
	return nil
}

// RecountPost recomputes likes and comments from the rows under the post.
func (s *PostService) RecountPost(ctx context.Context, guildID, postID string) (*models.Post, error) {
	post, err := s.GetPostByID(ctx, guildID, postID)
	if err != nil {
		return nil, err
	}

	pk := models.PostPartitionKey(guildID, postID)
	var likes []models.Like
	if err := s.Store.QueryByPrefix(ctx, pk, models.LikePrefix, QueryOptions{Ascending: true}, &likes); err != nil {
		return nil, utils.NewInternalError("failed to count likes", err)
	}
	var comments []models.Comment
	if err := s.Store.QueryByPrefix(ctx, pk, models.CommentPrefix, QueryOptions{Ascending: true}, &comments); err != nil {
		return nil, utils.NewInternalError("failed to count comments", err)
	}
	if post.Likes == len(likes) && post.Comments == len(comments) {
		return post, nil
	}

	loggerOrNop(s.Logger).Warn("post counters drifted, repairing",
		zap.String("guildId", guildID), zap.String("postId", postID),
		zap.Int("likes", post.Likes), zap.Int("actualLikes", len(likes)),
		zap.Int("comments", post.Comments), zap.Int("actualComments", len(comments)),
	)
	set := map[string]interface{}{"likes": len(likes), "comments": len(comments)}
	if err := s.Store.UpdateFields(ctx, post.Key(), set, nil); err != nil {
		return nil, utils.NewInternalError("failed to repair post counters", err)
	}
	return s.GetPostByID(ctx, guildID, postID)
}
