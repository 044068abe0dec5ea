package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cardvault_server/models"
	"cardvault_server/utils"
)

// MemberService manages guild membership rows together with the guild members counter.
type MemberService struct {
	Store  Store
	Logger *zap.Logger
	Now    func() time.Time
}

// Add makes userID a member of the guild. Adding an existing member changes nothing and returns added == false.
func (s *MemberService) Add(ctx context.Context, guildID, userID, displayName string) (*models.Member, bool, error) {
	logger := loggerOrNop(s.Logger)
	if userID == "" {
		return nil, false, utils.NewValidationError("userId is required")
	}

	member := &models.Member{
		PK:          models.GuildKey(guildID),
		SK:          models.MemberSK(userID),
		EntityType:  models.EntityTypeMember,
		GuildID:     guildID,
		UserID:      userID,
		DisplayName: displayName,
		Role:        models.RoleMember,
		JoinedAt:    models.FormatTimestamp(nowOrDefault(s.Now)),
	}

	err := s.Store.TransactWrite(ctx,
		AddOp(models.GuildMetadataKey(guildID), "members", 1),
		PutOp(member, CondNotExists),
	)
	if index, failed := failedOpIndex(err); failed {
		if index == 0 {
			return nil, false, utils.NewNotFoundError("guild")
		}
		existing, err := s.Get(ctx, guildID, userID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		logger.Error("failed to add member", zap.String("guildId", guildID), zap.String("userId", userID), zap.Error(err))
		return nil, false, utils.NewInternalError("failed to add member", err)
	}

	logger.Info("member joined guild", zap.String("guildId", guildID), zap.String("userId", userID))
	return member, true, nil
}

// Remove deletes the membership and decrements the guild members counter. Removing a non-member is a no-op.
func (s *MemberService) Remove(ctx context.Context, guildID, userID string) (bool, error) {
	logger := loggerOrNop(s.Logger)

	member, err := s.Get(ctx, guildID, userID)
	if utils.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if member.Role == models.RoleCreator {
		return false, utils.NewValidationError("the guild creator cannot leave the guild")
	}

	err = s.Store.TransactWrite(ctx,
		AddOp(models.GuildMetadataKey(guildID), "members", -1),
		DeleteOp(models.MemberKey(guildID, userID), CondExists),
	)
	if index, failed := failedOpIndex(err); failed {
		if index == 0 {
			return false, utils.NewNotFoundError("guild")
		}
		return false, nil // removed concurrently
	}
	if err != nil {
		logger.Error("failed to remove member", zap.String("guildId", guildID), zap.String("userId", userID), zap.Error(err))
		return false, utils.NewInternalError("failed to remove member", err)
	}

	logger.Info("member left guild", zap.String("guildId", guildID), zap.String("userId", userID))
	return true, nil
}

// List returns every member of the guild ordered by user id.
func (s *MemberService) List(ctx context.Context, guildID string) ([]models.Member, error) {
	members := []models.Member{}
	if err := s.Store.QueryByPrefix(ctx, models.GuildKey(guildID), models.MemberPrefix, QueryOptions{Ascending: true}, &members); err != nil {
		return nil, utils.NewInternalError("failed to list members", err)
	}
	return members, nil
}

func (s *MemberService) Get(ctx context.Context, guildID, userID string) (*models.Member, error) {
	var member models.Member
	found, err := s.Store.GetItem(ctx, models.MemberKey(guildID, userID), &member)
	if err != nil {
		return nil, utils.NewInternalError("failed to load member", err)
	}
	if !found {
		return nil, utils.NewNotFoundError("member")
	}
	return &member, nil
}

func (s *MemberService) IsMember(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := s.Get(ctx, guildID, userID)
	if utils.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
