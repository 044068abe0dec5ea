package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"cardvault_server/models"
	"cardvault_server/utils"
)

// CommentService appends comments to posts. Comments are never edited or deleted individually.
type CommentService struct {
	Store       Store
	Posts       *PostService
	Logger      *zap.Logger
	Now         func() time.Time
	NewID       func() string
	Broadcaster Broadcaster
}

type CreateCommentInput struct {
	Content    string `json:"content" validate:"required,max=2000"`
	AuthorID   string `json:"-"`
	AuthorName string `json:"-"`
}

// CreateComment writes the comment and bumps the post comments counter in one transaction.
func (s *CommentService) CreateComment(ctx context.Context, guildID, postID string, input CreateCommentInput) (*models.Comment, error) {
	logger := loggerOrNop(s.Logger)
	if strings.TrimSpace(input.Content) == "" {
		return nil, utils.NewValidationError("content is required")
	}
	if input.AuthorID == "" {
		return nil, utils.NewValidationError("authorId is required")
	}

	post, err := s.Posts.GetPostByID(ctx, guildID, postID)
	if err != nil {
		return nil, err
	}

	commentID := newIDOrDefault(s.NewID)
	now := models.FormatTimestamp(nowOrDefault(s.Now))
	key := models.CommentKey(guildID, postID, now, commentID)
	comment := &models.Comment{
		PK:         key.PK,
		SK:         key.SK,
		EntityType: models.EntityTypeComment,
		ID:         commentID,
		GuildID:    guildID,
		PostID:     postID,
		Content:    input.Content,
		AuthorID:   input.AuthorID,
		AuthorName: input.AuthorName,
		CreatedAt:  now,
	}

	err = s.Store.TransactWrite(ctx,
		AddOp(post.Key(), "comments", 1),
		PutOp(comment, CondNotExists),
	)
	if index, failed := failedOpIndex(err); failed && index == 0 {
		return nil, utils.NewNotFoundError("post")
	}
	if err != nil {
		logger.Error("failed to create comment", zap.String("postId", postID), zap.Error(err))
		return nil, utils.NewInternalError("failed to create comment", err)
	}

	broadcasterOrNoop(s.Broadcaster).BroadcastToGuild(guildID, models.EventCommentCreated, comment)
	return comment, nil
}

// GetComments returns the post's comments newest first.
func (s *CommentService) GetComments(ctx context.Context, guildID, postID string, limit int) ([]models.Comment, error) {
	comments := []models.Comment{}
	pk := models.PostPartitionKey(guildID, postID)
	if err := s.Store.QueryByPrefix(ctx, pk, models.CommentPrefix, QueryOptions{Limit: limit, Ascending: false}, &comments); err != nil {
		return nil, utils.NewInternalError("failed to load comments", err)
	}
	return comments, nil
}
