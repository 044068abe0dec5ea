package controllers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"cardvault_server/services"
	"cardvault_server/utils"
)

// MediaController hands out presigned S3 URLs for guild media.
type MediaController struct {
	Media   *services.MediaService
	Guilds  *services.GuildService
	Members *services.MemberService
	Logger  *zap.Logger
}

// HandleUploadURL generates a presigned URL for uploading a guild banner or post image
func (c *MediaController) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}

	var payload struct {
		GuildID  string `json:"guildId"`
		Kind     string `json:"kind"`
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}
	if payload.GuildID == "" || payload.FileName == "" || payload.FileType == "" {
		utils.WriteError(w, r, c.Logger, utils.NewValidationError("guildId, fileName and fileType are required"))
		return
	}
	if payload.Kind == "" {
		payload.Kind = services.MediaKindPost
	}

	guild, err := requireMember(r.Context(), c.Guilds, c.Members, payload.GuildID, caller.UserID)
	if err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}
	if payload.Kind == services.MediaKindBanner && !guild.IsModerator(caller.UserID) {
		utils.WriteError(w, r, c.Logger, utils.NewForbiddenError("only the guild moderator can change the banner"))
		return
	}

	url, key, err := c.Media.UploadURL(r.Context(), payload.GuildID, payload.Kind, payload.FileName, payload.FileType)
	if err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}
	c.Logger.Debug("generated upload URL", zap.String("key", key), zap.String("userId", caller.UserID))
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url, "key": key})
}

// HandleReadURL generates a presigned URL for reading a guild media object
func (c *MediaController) HandleReadURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}
	if strings.TrimSpace(payload.Key) == "" {
		utils.WriteError(w, r, c.Logger, utils.NewValidationError("key is required"))
		return
	}

	url, err := c.Media.ReadURL(r.Context(), payload.Key)
	if err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
