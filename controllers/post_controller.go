package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cardvault_server/services"
	"cardvault_server/utils"
)

const defaultFeedLimit = 50

// PostController serves posts and the interactions on them (pins, likes, comments).
type PostController struct {
	Guilds    *services.GuildService
	Members   *services.MemberService
	Posts     *services.PostService
	Likes     *services.LikeService
	Comments  *services.CommentService
	Validator *utils.Validator
	Logger    *zap.Logger
}

func (c *PostController) fail(w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteError(w, r, c.Logger, err)
}

func (c *PostController) HandleGetPosts(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	limit, err := queryLimit(r, defaultFeedLimit)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if _, err := requireReader(r, c.Guilds, c.Members, guildID); err != nil {
		c.fail(w, r, err)
		return
	}
	posts, err := c.Posts.GetPostsByGuild(r.Context(), guildID, limit)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, posts)
}

// HandleCreatePost - members only
func (c *PostController) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	guildID := mux.Vars(r)["guildId"]
	if _, err := requireMember(r.Context(), c.Guilds, c.Members, guildID, caller.UserID); err != nil {
		c.fail(w, r, err)
		return
	}

	var input services.CreatePostInput
	if err := decodeJSON(r, &input); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := c.Validator.Struct(input); err != nil {
		c.fail(w, r, err)
		return
	}
	input.AuthorID = caller.UserID
	input.AuthorName = caller.DisplayName

	post, err := c.Posts.CreatePost(r.Context(), guildID, input)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, post)
}

func (c *PostController) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := requireReader(r, c.Guilds, c.Members, vars["guildId"]); err != nil {
		c.fail(w, r, err)
		return
	}
	post, err := c.Posts.GetPostByID(r.Context(), vars["guildId"], vars["postId"])
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, post)
}

// HandleDeletePost - the author or the guild moderator
func (c *PostController) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	guildID, postID := vars["guildId"], vars["postId"]

	guild, err := c.Guilds.GetGuild(r.Context(), guildID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	post, err := c.Posts.GetPostByID(r.Context(), guildID, postID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if post.AuthorID != caller.UserID && !guild.IsModerator(caller.UserID) {
		c.fail(w, r, utils.NewForbiddenError("only the author or the guild moderator can delete this post"))
		return
	}

	if err := c.Posts.DeletePost(r.Context(), guildID, postID); err != nil {
		c.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTogglePin - moderator only
func (c *PostController) HandleTogglePin(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if _, err := requireModerator(r.Context(), c.Guilds, vars["guildId"], caller.UserID); err != nil {
		c.fail(w, r, err)
		return
	}

	post, err := c.Posts.TogglePin(r.Context(), vars["guildId"], vars["postId"])
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, post)
}

// HandleToggleLike - members only, returns the state after the toggle
func (c *PostController) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if _, err := requireMember(r.Context(), c.Guilds, c.Members, vars["guildId"], caller.UserID); err != nil {
		c.fail(w, r, err)
		return
	}

	liked, err := c.Likes.ToggleLike(r.Context(), vars["guildId"], vars["postId"], caller.UserID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (c *PostController) HandleGetComments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, err := queryLimit(r, defaultFeedLimit)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if _, err := requireReader(r, c.Guilds, c.Members, vars["guildId"]); err != nil {
		c.fail(w, r, err)
		return
	}
	if _, err := c.Posts.GetPostByID(r.Context(), vars["guildId"], vars["postId"]); err != nil {
		c.fail(w, r, err)
		return
	}
	comments, err := c.Comments.GetComments(r.Context(), vars["guildId"], vars["postId"], limit)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, comments)
}

// HandleCreateComment - members only
func (c *PostController) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if _, err := requireMember(r.Context(), c.Guilds, c.Members, vars["guildId"], caller.UserID); err != nil {
		c.fail(w, r, err)
		return
	}

	var input services.CreateCommentInput
	if err := decodeJSON(r, &input); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := c.Validator.Struct(input); err != nil {
		c.fail(w, r, err)
		return
	}
	input.AuthorID = caller.UserID
	input.AuthorName = caller.DisplayName

	comment, err := c.Comments.CreateComment(r.Context(), vars["guildId"], vars["postId"], input)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, comment)
}
