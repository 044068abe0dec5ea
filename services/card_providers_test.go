package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault_server/config"
	"cardvault_server/models"
)

func serveJSON(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func TestPokemonTCGProvider_Search(t *testing.T) {
	srv := serveJSON(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/cards", r.URL.Path)
		assert.Equal(t, `name:"char*"`, r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"data":[
			{"id":"base1-4","name":"Charizard","rarity":"Rare Holo",
			 "images":{"small":"https://img/small.png","large":"https://img/large.png"},
			 "set":{"name":"Base"},
			 "tcgplayer":{"prices":{"holofoil":{"market":350.5},"reverseHolofoil":{"market":0}}}},
			{"id":"sv3-1","name":"Charmander","images":{"large":"https://img/only-large.png"}}
		]}`))
	})

	p := &PokemonTCGProvider{BaseURL: srv.URL, APIKey: "secret", Client: srv.Client()}
	cards, err := p.Search(context.Background(), "char", 5)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, models.Card{
		ID:     "base1-4",
		Name:   "Charizard",
		Game:   models.GamePokemon,
		Image:  "https://img/small.png",
		Price:  350.5,
		Rarity: "Rare Holo",
		Set:    "Base",
	}, cards[0])
	assert.Equal(t, "https://img/only-large.png", cards[1].Image)
	assert.Zero(t, cards[1].Price)
}

func TestPokemonPrice(t *testing.T) {
	assert.Equal(t, 2.5, pokemonPrice(map[string]pokemonMarket{"holofoil": {Market: 9}, "normal": {Market: 2.5}}))
	assert.Equal(t, 4.0, pokemonPrice(map[string]pokemonMarket{"zeta": {Market: 7}, "alpha": {Market: 4}}))
	assert.Zero(t, pokemonPrice(nil))
}

func TestScryfallProvider_Search(t *testing.T) {
	srv := serveJSON(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cards/search", r.URL.Path)
		assert.Equal(t, "bolt", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"data":[
			{"id":"a","name":"Lightning Bolt","rarity":"common","set_name":"Alpha",
			 "image_uris":{"normal":"https://img/bolt.jpg"},"prices":{"usd":null,"usd_foil":"12.10"}},
			{"id":"b","name":"Delver of Secrets","card_faces":[{"image_uris":{"normal":"https://img/front.jpg"}},{}],
			 "prices":{"usd":"0.25"}},
			{"id":"c","name":"Over the limit"}
		]}`))
	})

	p := &ScryfallProvider{BaseURL: srv.URL, Client: srv.Client()}
	cards, err := p.Search(context.Background(), "bolt", 2)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, models.GameMagic, cards[0].Game)
	assert.Equal(t, 12.10, cards[0].Price)
	assert.Equal(t, "Alpha", cards[0].Set)
	assert.Equal(t, "https://img/front.jpg", cards[1].Image)
	assert.Equal(t, 0.25, cards[1].Price)
}

func TestScryfallProvider_NoMatches(t *testing.T) {
	srv := serveJSON(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","code":"not_found"}`))
	})

	cards, err := (&ScryfallProvider{BaseURL: srv.URL, Client: srv.Client()}).Search(context.Background(), "zzzz", 5)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestYGOProDeckProvider_Search(t *testing.T) {
	srv := serveJSON(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v7/cardinfo.php", r.URL.Path)
		assert.Equal(t, "dark magician", r.URL.Query().Get("fname"))
		assert.Equal(t, "3", r.URL.Query().Get("num"))
		_, _ = w.Write([]byte(`{"data":[{"id":46986414,"name":"Dark Magician",
			"card_images":[{"image_url":"https://img/dm.jpg"}],
			"card_sets":[{"set_name":"Legend of Blue Eyes","set_rarity":"Ultra Rare"}],
			"card_prices":[{"tcgplayer_price":"1.99"}]}]}`))
	})

	cards, err := (&YGOProDeckProvider{BaseURL: srv.URL, Client: srv.Client()}).Search(context.Background(), "dark magician", 3)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, models.Card{
		ID:     "46986414",
		Name:   "Dark Magician",
		Game:   models.GameYugioh,
		Image:  "https://img/dm.jpg",
		Price:  1.99,
		Rarity: "Ultra Rare",
		Set:    "Legend of Blue Eyes",
	}, cards[0])
}

func TestYGOProDeckProvider_NoMatches(t *testing.T) {
	srv := serveJSON(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"No card matching your query was found in the database."}`))
	})

	cards, err := (&YGOProDeckProvider{BaseURL: srv.URL, Client: srv.Client()}).Search(context.Background(), "zzzz", 3)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestProvider_UnexpectedStatus(t *testing.T) {
	srv := serveJSON(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := (&PokemonTCGProvider{BaseURL: srv.URL, Client: srv.Client()}).Search(context.Background(), "pika", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewCardProviders(t *testing.T) {
	providers, err := NewCardProviders([]config.ProviderConfig{
		{Name: config.ProviderScryfall, BaseURL: "https://api.scryfall.com/", Enabled: true},
		{Name: config.ProviderPokemonTCG, BaseURL: "https://api.pokemontcg.io", Enabled: false},
		{Name: config.ProviderYGOProDeck, BaseURL: "https://db.ygoprodeck.com", Enabled: true},
	}, nil)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, config.ProviderScryfall, providers[0].Name())
	assert.Equal(t, "https://api.scryfall.com", providers[0].(*ScryfallProvider).BaseURL)
	assert.Equal(t, config.ProviderYGOProDeck, providers[1].Name())

	_, err = NewCardProviders([]config.ProviderConfig{{Name: "tcgplayer", Enabled: true}}, nil)
	assert.Error(t, err)
}
