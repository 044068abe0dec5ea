package controllers

import (
	"net/http"

	"go.uber.org/zap"

	"cardvault_server/services"
	"cardvault_server/utils"
)

// CardController serves the aggregated catalog search.
type CardController struct {
	Search *services.CardSearchService
	Logger *zap.Logger
}

// HandleSearch - GET /api/cards/search?q=&limit=
func (c *CardController) HandleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, services.DefaultCardSearchLimit)
	if err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}
	cards, err := c.Search.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		utils.WriteError(w, r, c.Logger, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, cards)
}
