package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cardvault_server/models"
	"cardvault_server/utils"
)

const maxToggleAttempts = 3

// LikeService toggles likes. The Like row and the post likes counter always change together.
type LikeService struct {
	Store       Store
	Posts       *PostService
	Logger      *zap.Logger
	Now         func() time.Time
	Broadcaster Broadcaster
}

// LikeToggled is the payload of a like:toggled event.
type LikeToggled struct {
	GuildID string `json:"guildId"`
	PostID  string `json:"postId"`
	UserID  string `json:"userId"`
	Liked   bool   `json:"liked"`
}

// ToggleLike likes the post if userID has not liked it yet, otherwise unlikes it.
// It returns the state after the toggle.
func (s *LikeService) ToggleLike(ctx context.Context, guildID, postID, userID string) (bool, error) {
	logger := loggerOrNop(s.Logger)
	if userID == "" {
		return false, utils.NewValidationError("userId is required")
	}

	post, err := s.Posts.GetPostByID(ctx, guildID, postID)
	if err != nil {
		return false, err
	}

	likeKey := models.LikeKey(guildID, postID, userID)
	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		like := &models.Like{
			PK:         likeKey.PK,
			SK:         likeKey.SK,
			EntityType: models.EntityTypeLike,
			GuildID:    guildID,
			PostID:     postID,
			UserID:     userID,
			CreatedAt:  models.FormatTimestamp(nowOrDefault(s.Now)),
		}
		err := s.Store.TransactWrite(ctx,
			AddOp(post.Key(), "likes", 1),
			PutOp(like, CondNotExists),
		)
		if err == nil {
			s.publish(guildID, postID, userID, true)
			return true, nil
		}
		index, failed := failedOpIndex(err)
		if !failed {
			return false, utils.NewInternalError("failed to like post", err)
		}
		if index == 0 {
			return false, utils.NewNotFoundError("post")
		}

		// Already liked, so this toggle is an unlike.
		err = s.Store.TransactWrite(ctx,
			AddOp(post.Key(), "likes", -1),
			DeleteOp(likeKey, CondExists),
		)
		if err == nil {
			s.publish(guildID, postID, userID, false)
			return false, nil
		}
		index, failed = failedOpIndex(err)
		if !failed {
			return false, utils.NewInternalError("failed to unlike post", err)
		}
		if index == 0 {
			return false, utils.NewNotFoundError("post")
		}

		logger.Debug("like state changed during toggle, retrying",
			zap.String("postId", postID), zap.String("userId", userID), zap.Int("attempt", attempt))
	}
	return false, utils.NewConflictError("like state is changing concurrently, retry")
}

func (s *LikeService) publish(guildID, postID, userID string, liked bool) {
	broadcasterOrNoop(s.Broadcaster).BroadcastToGuild(guildID, models.EventLikeToggled, LikeToggled{
		GuildID: guildID,
		PostID:  postID,
		UserID:  userID,
		Liked:   liked,
	})
}

func (s *LikeService) HasLiked(ctx context.Context, guildID, postID, userID string) (bool, error) {
	var like models.Like
	found, err := s.Store.GetItem(ctx, models.LikeKey(guildID, postID, userID), &like)
	if err != nil {
		return false, utils.NewInternalError("failed to load like", err)
	}
	return found, nil
}

// ListLikers returns the ids of every user currently liking the post.
func (s *LikeService) ListLikers(ctx context.Context, guildID, postID string) ([]string, error) {
	var likes []models.Like
	pk := models.PostPartitionKey(guildID, postID)
	if err := s.Store.QueryByPrefix(ctx, pk, models.LikePrefix, QueryOptions{Ascending: true}, &likes); err != nil {
		return nil, utils.NewInternalError("failed to list likes", err)
	}
	users := make([]string, 0, len(likes))
	for _, like := range likes {
		users = append(users, models.UserIDFromLikeSK(like.SK))
	}
	return users, nil
}
