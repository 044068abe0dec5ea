package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cardvault_server/models"
	"cardvault_server/services"
)

type cannedProvider struct {
	name  string
	cards []models.Card
	err   error
}

func (p cannedProvider) Name() string { return p.name }

func (p cannedProvider) Search(context.Context, string, int) ([]models.Card, error) {
	return p.cards, p.err
}

func TestHandleSearch(t *testing.T) {
	logger := zaptest.NewLogger(t)
	search := services.NewCardSearchService([]services.CardProvider{
		cannedProvider{name: "pokemontcg", cards: []models.Card{{ID: "base1-4", Name: "Charizard", Game: models.GamePokemon, Price: 350}}},
		cannedProvider{name: "scryfall", err: errors.New("down")},
	}, time.Second, logger, nil)
	controller := &CardController{Search: search, Logger: logger}

	t.Run("returns merged results", func(t *testing.T) {
		rec := httptest.NewRecorder()
		controller.HandleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/cards/search?q=char&limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var cards []models.Card
		decodeBody(t, rec, &cards)
		require.Len(t, cards, 1)
		assert.Equal(t, "Charizard", cards[0].Name)
	})

	t.Run("requires a query", func(t *testing.T) {
		rec := httptest.NewRecorder()
		controller.HandleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/cards/search", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		controller.HandleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/cards/search?q=char&limit=-1", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
