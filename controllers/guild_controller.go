package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cardvault_server/models"
	"cardvault_server/services"
	"cardvault_server/utils"
)

// GuildController serves guild metadata and membership.
type GuildController struct {
	Guilds    *services.GuildService
	Members   *services.MemberService
	Validator *utils.Validator
	Logger    *zap.Logger
}

// NewGuildController initializes the controller
func NewGuildController(guilds *services.GuildService, members *services.MemberService, validator *utils.Validator, logger *zap.Logger) *GuildController {
	return &GuildController{Guilds: guilds, Members: members, Validator: validator, Logger: logger}
}

func (c *GuildController) fail(w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteError(w, r, c.Logger, err)
}

// HandleCreateGuild - the caller becomes the guild's creator and first member
func (c *GuildController) HandleCreateGuild(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	var input services.CreateGuildInput
	if err := decodeJSON(r, &input); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := c.Validator.Struct(input); err != nil {
		c.fail(w, r, err)
		return
	}
	input.CreatedBy = caller.UserID
	input.CreatorName = caller.DisplayName

	guild, err := c.Guilds.CreateGuild(r.Context(), input)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, guild)
}

func (c *GuildController) HandleListGuilds(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, services.DefaultGuildListLimit)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	guilds, err := c.Guilds.ListGuilds(r.Context(), limit)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, guilds)
}

func (c *GuildController) HandleGetGuild(w http.ResponseWriter, r *http.Request) {
	guild, err := c.Guilds.GetGuild(r.Context(), mux.Vars(r)["guildId"])
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, guild)
}

// HandleUpdateGuild - moderator only partial update
func (c *GuildController) HandleUpdateGuild(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	if _, err := c.requireModerator(r, guildID); err != nil {
		c.fail(w, r, err)
		return
	}

	var changes map[string]interface{}
	if err := decodeJSON(r, &changes); err != nil {
		c.fail(w, r, err)
		return
	}
	guild, err := c.Guilds.UpdateGuild(r.Context(), guildID, changes)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, guild)
}

// HandleRecountGuild - moderator only counter repair
func (c *GuildController) HandleRecountGuild(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	if _, err := c.requireModerator(r, guildID); err != nil {
		c.fail(w, r, err)
		return
	}
	guild, err := c.Guilds.RecountGuild(r.Context(), guildID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, guild)
}

func (c *GuildController) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	if _, err := requireReader(r, c.Guilds, c.Members, guildID); err != nil {
		c.fail(w, r, err)
		return
	}
	members, err := c.Members.List(r.Context(), guildID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, members)
}

// HandleAddMember - users join public guilds themselves; moderators add anyone
func (c *GuildController) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	guildID, userID := vars["guildId"], vars["userId"]

	guild, err := c.Guilds.GetGuild(r.Context(), guildID)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	displayName := caller.DisplayName
	if userID != caller.UserID {
		if !guild.IsModerator(caller.UserID) {
			c.fail(w, r, utils.NewForbiddenError("only the guild moderator can add other users"))
			return
		}
		var body struct {
			DisplayName string `json:"displayName"`
		}
		if err := decodeOptionalJSON(r, &body); err != nil {
			c.fail(w, r, err)
			return
		}
		displayName = body.DisplayName
	} else if guild.IsPrivate && !guild.IsModerator(caller.UserID) {
		c.fail(w, r, utils.NewForbiddenError("this guild is private"))
		return
	}

	member, added, err := c.Members.Add(r.Context(), guildID, userID, displayName)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	utils.WriteJSONResponse(w, status, member)
}

// HandleRemoveMember - members leave themselves; moderators remove anyone but themselves
func (c *GuildController) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	guildID, userID := vars["guildId"], vars["userId"]

	guild, err := c.Guilds.GetGuild(r.Context(), guildID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if userID != caller.UserID && !guild.IsModerator(caller.UserID) {
		c.fail(w, r, utils.NewForbiddenError("only the guild moderator can remove other users"))
		return
	}

	removed, err := c.Members.Remove(r.Context(), guildID, userID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (c *GuildController) requireModerator(r *http.Request, guildID string) (*models.Guild, error) {
	caller, err := identityFromRequest(r)
	if err != nil {
		return nil, err
	}
	return requireModerator(r.Context(), c.Guilds, guildID, caller.UserID)
}

func requireModerator(ctx context.Context, guilds *services.GuildService, guildID, userID string) (*models.Guild, error) {
	guild, err := guilds.GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !guild.IsModerator(userID) {
		return nil, utils.NewForbiddenError("only the guild moderator can do this")
	}
	return guild, nil
}

// requireMember loads the guild and checks that userID belongs to it.
func requireMember(ctx context.Context, guilds *services.GuildService, members *services.MemberService, guildID, userID string) (*models.Guild, error) {
	guild, err := guilds.GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	ok, err := members.IsMember(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.NewForbiddenError("you must be a member of this guild")
	}
	return guild, nil
}

// requireReader loads the guild. Private guilds are only readable by their members.
func requireReader(r *http.Request, guilds *services.GuildService, members *services.MemberService, guildID string) (*models.Guild, error) {
	guild, err := guilds.GetGuild(r.Context(), guildID)
	if err != nil {
		return nil, err
	}
	if !guild.IsPrivate {
		return guild, nil
	}
	caller, err := identityFromRequest(r)
	if err != nil {
		return nil, err
	}
	return requireMember(r.Context(), guilds, members, guildID, caller.UserID)
}
