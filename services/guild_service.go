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

const (
	DefaultGuildListLimit = 50
	MaxGuildListLimit     = 100
)

// GuildService owns guild metadata and the guild level counters.
type GuildService struct {
	Store  Store
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

// CreateGuildInput carries the caller supplied fields of a new guild.
type CreateGuildInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"max=50"`
	IsPrivate   bool   `json:"isPrivate"`
	CreatedBy   string `json:"-"`
	CreatorName string `json:"-"`
}

// CreateGuild writes the guild and its creator membership in one transaction.
func (s *GuildService) CreateGuild(ctx context.Context, input CreateGuildInput) (*models.Guild, error) {
	logger := loggerOrNop(s.Logger)
	if strings.TrimSpace(input.Name) == "" {
		return nil, utils.NewValidationError("name is required")
	}
	if input.CreatedBy == "" {
		return nil, utils.NewValidationError("createdBy is required")
	}

	guildID := newIDOrDefault(s.NewID)
	now := models.FormatTimestamp(nowOrDefault(s.Now))

	guild := &models.Guild{
		PK:          models.GuildKey(guildID),
		SK:          models.GuildMetadataSK,
		EntityType:  models.EntityTypeGuild,
		GSI1PK:      models.EntityTypeGuild,
		GSI1SK:      now,
		ID:          guildID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Category:    input.Category,
		IsPrivate:   input.IsPrivate,
		CreatedBy:   input.CreatedBy,
		Members:     1, // ✅ the creator
		Posts:       0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	creator := &models.Member{
		PK:          models.GuildKey(guildID),
		SK:          models.MemberSK(input.CreatedBy),
		EntityType:  models.EntityTypeMember,
		GuildID:     guildID,
		UserID:      input.CreatedBy,
		DisplayName: input.CreatorName,
		Role:        models.RoleCreator,
		JoinedAt:    now,
	}

	err := s.Store.TransactWrite(ctx,
		PutOp(guild, CondNotExists),
		PutOp(creator, CondNone),
	)
	if err != nil {
		logger.Error("failed to create guild", zap.String("guildId", guildID), zap.Error(err))
		return nil, utils.NewInternalError("failed to create guild", err)
	}

	logger.Info("guild created", zap.String("guildId", guildID), zap.String("createdBy", input.CreatedBy))
	return guild, nil
}

// GetGuild returns the guild metadata or a not found error.
func (s *GuildService) GetGuild(ctx context.Context, guildID string) (*models.Guild, error) {
	var guild models.Guild
	found, err := s.Store.GetItem(ctx, models.GuildMetadataKey(guildID), &guild)
	if err != nil {
		return nil, utils.NewInternalError("failed to load guild", err)
	}
	if !found {
		return nil, utils.NewNotFoundError("guild")
	}
	return &guild, nil
}

// ListGuilds returns up to limit guilds, newest first.
func (s *GuildService) ListGuilds(ctx context.Context, limit int) ([]models.Guild, error) {
	if limit <= 0 {
		limit = DefaultGuildListLimit
	}
	if limit > MaxGuildListLimit {
		limit = MaxGuildListLimit
	}

	guilds := []models.Guild{}
	if err := s.Store.ListByEntityType(ctx, models.EntityTypeGuild, limit, &guilds); err != nil {
		return nil, utils.NewInternalError("failed to list guilds", err)
	}
	return guilds, nil
}

// UpdateGuild applies a partial update restricted to models.GuildUpdatableFields.
func (s *GuildService) UpdateGuild(ctx context.Context, guildID string, changes map[string]interface{}) (*models.Guild, error) {
	if len(changes) == 0 {
		return nil, utils.NewValidationError("no fields to update")
	}

	for field, value := range changes {
		if !models.GuildUpdatableFields[field] {
			return nil, utils.NewValidationError("field %q cannot be updated", field)
		}
		switch field {
		case "isPrivate", "trending":
			if _, ok := value.(bool); !ok {
				return nil, utils.NewValidationError("%s must be a boolean", field)
			}
		default:
			str, ok := value.(string)
			if !ok {
				return nil, utils.NewValidationError("%s must be a string", field)
			}
			if field == "name" && strings.TrimSpace(str) == "" {
				return nil, utils.NewValidationError("name cannot be empty")
			}
		}
	}

	err := s.Store.UpdateFields(ctx, models.GuildMetadataKey(guildID), changes, nil)
	if errors.Is(err, ErrConditionFailed) {
		return nil, utils.NewNotFoundError("guild")
	}
	if err != nil {
		return nil, utils.NewInternalError("failed to update guild", err)
	}
	return s.GetGuild(ctx, guildID)
}

func (s *GuildService) IncrementPostCount(ctx context.Context, guildID string) error {
	return s.adjustCounter(ctx, guildID, "posts", 1)
}

func (s *GuildService) IncrementMemberCount(ctx context.Context, guildID string) error {
	return s.adjustCounter(ctx, guildID, "members", 1)
}

func (s *GuildService) DecrementMemberCount(ctx context.Context, guildID string) error {
	return s.adjustCounter(ctx, guildID, "members", -1)
}

func (s *GuildService) adjustCounter(ctx context.Context, guildID, field string, delta int) error {
	_, err := s.Store.UpdateCounter(ctx, models.GuildMetadataKey(guildID), field, delta)
	if errors.Is(err, ErrNotFound) {
		return utils.NewNotFoundError("guild")
	}
	if err != nil {
		return utils.NewInternalError("failed to update guild "+field, err)
	}
	return nil
}

// RecountGuild recomputes members and posts from the rows that actually exist.
func (s *GuildService) RecountGuild(ctx context.Context, guildID string) (*models.Guild, error) {
	logger := loggerOrNop(s.Logger)
	guild, err := s.GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var members []models.Member
	if err := s.Store.QueryByPrefix(ctx, models.GuildKey(guildID), models.MemberPrefix, QueryOptions{Ascending: true}, &members); err != nil {
		return nil, utils.NewInternalError("failed to count members", err)
	}
	var posts []models.Post
	if err := s.Store.QueryByPrefix(ctx, models.GuildKey(guildID), models.PostPrefix, QueryOptions{Ascending: true}, &posts); err != nil {
		return nil, utils.NewInternalError("failed to count posts", err)
	}

	if guild.Members == len(members) && guild.Posts == len(posts) {
		return guild, nil
	}

	logger.Warn("guild counters drifted, repairing",
		zap.String("guildId", guildID),
		zap.Int("members", guild.Members), zap.Int("actualMembers", len(members)),
		zap.Int("posts", guild.Posts), zap.Int("actualPosts", len(posts)),
	)
	set := map[string]interface{}{"members": len(members), "posts": len(posts)}
	if err := s.Store.UpdateFields(ctx, models.GuildMetadataKey(guildID), set, nil); err != nil {
		return nil, utils.NewInternalError("failed to repair guild counters", err)
	}
	return s.GetGuild(ctx, guildID)
}
