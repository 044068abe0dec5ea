package routes

import (
	"cardvault_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterGuildRoutes sets up guild, membership, post, like and comment routes
func RegisterGuildRoutes(r *mux.Router, guilds *controllers.GuildController, posts *controllers.PostController) {
	guildRouter := r.PathPrefix("/api/guilds").Subrouter()

	guildRouter.HandleFunc("", guilds.HandleCreateGuild).Methods("POST")
	guildRouter.HandleFunc("", guilds.HandleListGuilds).Methods("GET")
	guildRouter.HandleFunc("/{guildId}", guilds.HandleGetGuild).Methods("GET")
	guildRouter.HandleFunc("/{guildId}", guilds.HandleUpdateGuild).Methods("PATCH")
	guildRouter.HandleFunc("/{guildId}/recount", guilds.HandleRecountGuild).Methods("POST") // ✅ Counter repair

	// Membership
	guildRouter.HandleFunc("/{guildId}/members", guilds.HandleListMembers).Methods("GET")
	guildRouter.HandleFunc("/{guildId}/members/{userId}", guilds.HandleAddMember).Methods("POST")
	guildRouter.HandleFunc("/{guildId}/members/{userId}", guilds.HandleRemoveMember).Methods("DELETE")

	// Posts
	guildRouter.HandleFunc("/{guildId}/posts", posts.HandleGetPosts).Methods("GET")
	guildRouter.HandleFunc("/{guildId}/posts", posts.HandleCreatePost).Methods("POST")
	guildRouter.HandleFunc("/{guildId}/posts/{postId}", posts.HandleGetPost).Methods("GET")
	guildRouter.HandleFunc("/{guildId}/posts/{postId}", posts.HandleDeletePost).Methods("DELETE")
	guildRouter.HandleFunc("/{guildId}/posts/{postId}/pin", posts.HandleTogglePin).Methods("POST")
	guildRouter.HandleFunc("/{guildId}/posts/{postId}/like", posts.HandleToggleLike).Methods("POST") // ✅ Toggle, returns {"liked": bool}

	// Comments
	guildRouter.HandleFunc("/{guildId}/posts/{postId}/comments", posts.HandleGetComments).Methods("GET")
	guildRouter.HandleFunc("/{guildId}/posts/{postId}/comments", posts.HandleCreateComment).Methods("POST")
}
