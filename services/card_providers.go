package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"cardvault_server/config"
	"cardvault_server/models"
)

const userAgent = "cardvault_server/1.0"

// CardProvider searches one external card catalog and normalizes its results.
type CardProvider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]models.Card, error)
}

// NewCardProviders builds the enabled providers from configuration, preserving their order.
func NewCardProviders(cfgs []config.ProviderConfig, client *http.Client) ([]CardProvider, error) {
	if client == nil {
		client = http.DefaultClient
	}
	providers := make([]CardProvider, 0, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		base := strings.TrimRight(cfg.BaseURL, "/")
		switch cfg.Name {
		case config.ProviderPokemonTCG:
			providers = append(providers, &PokemonTCGProvider{BaseURL: base, APIKey: cfg.APIKey, Client: client})
		case config.ProviderScryfall:
			providers = append(providers, &ScryfallProvider{BaseURL: base, Client: client})
		case config.ProviderYGOProDeck:
			providers = append(providers, &YGOProDeckProvider{BaseURL: base, Client: client})
		default:
			return nil, fmt.Errorf("unknown card provider %q", cfg.Name)
		}
	}
	return providers, nil
}

// getJSON decodes a 200 response into out. Any other status is returned with a nil error
// when it is listed in emptyStatuses, so callers can treat it as "no results".
func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, out interface{}, emptyStatuses ...int) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	for _, status := range emptyStatuses {
		if resp.StatusCode == status {
			_, _ = io.Copy(io.Discard, resp.Body)
			return false, nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return true, nil
}

func parsePrice(s string) float64 {
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return price
}

// PokemonTCGProvider queries the Pokémon TCG API (api.pokemontcg.io).
type PokemonTCGProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type pokemonMarket struct {
	Market float64 `json:"market"`
}

type pokemonCard struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity string `json:"rarity"`
	Images struct {
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"images"`
	Set struct {
		Name string `json:"name"`
	} `json:"set"`
	TCGPlayer struct {
		Prices map[string]pokemonMarket `json:"prices"`
	} `json:"tcgplayer"`
}

var pokemonPriceOrder = []string{"normal", "holofoil", "reverseHolofoil", "1stEditionHolofoil", "1stEditionNormal", "unlimitedHolofoil"}

func (p *PokemonTCGProvider) Name() string { return config.ProviderPokemonTCG }

func (p *PokemonTCGProvider) Search(ctx context.Context, query string, limit int) ([]models.Card, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("name:%q", query+"*"))
	params.Set("pageSize", strconv.Itoa(limit))

	headers := map[string]string{}
	if p.APIKey != "" {
		headers["X-Api-Key"] = p.APIKey
	}

	var body struct {
		Data []pokemonCard `json:"data"`
	}
	if _, err := getJSON(ctx, p.Client, p.BaseURL+"/v2/cards?"+params.Encode(), headers, &body); err != nil {
		return nil, err
	}

	cards := make([]models.Card, 0, len(body.Data))
	for _, c := range body.Data {
		image := c.Images.Small
		if image == "" {
			image = c.Images.Large
		}
		cards = append(cards, models.Card{
			ID:     c.ID,
			Name:   c.Name,
			Game:   models.GamePokemon,
			Image:  image,
			Price:  pokemonPrice(c.TCGPlayer.Prices),
			Rarity: c.Rarity,
			Set:    c.Set.Name,
		})
	}
	return cards, nil
}

// pokemonPrice picks the market price of the most common printing that has one.
func pokemonPrice(prices map[string]pokemonMarket) float64 {
	for _, variant := range pokemonPriceOrder {
		if p, ok := prices[variant]; ok && p.Market > 0 {
			return p.Market
		}
	}
	variants := make([]string, 0, len(prices))
	for variant := range prices {
		variants = append(variants, variant)
	}
	sort.Strings(variants)
	for _, variant := range variants {
		if prices[variant].Market > 0 {
			return prices[variant].Market
		}
	}
	return 0
}

// ScryfallProvider queries Scryfall for Magic: The Gathering cards.
type ScryfallProvider struct {
	BaseURL string
	Client  *http.Client
}

type scryfallImages struct {
	Normal string `json:"normal"`
	Small  string `json:"small"`
}

type scryfallCard struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Rarity    string          `json:"rarity"`
	SetName   string          `json:"set_name"`
	ImageURIs *scryfallImages `json:"image_uris"`
	CardFaces []struct {
		ImageURIs *scryfallImages `json:"image_uris"`
	} `json:"card_faces"`
	Prices struct {
		USD     string `json:"usd"`
		USDFoil string `json:"usd_foil"`
	} `json:"prices"`
}

func (p *ScryfallProvider) Name() string { return config.ProviderScryfall }

func (p *ScryfallProvider) Search(ctx context.Context, query string, limit int) ([]models.Card, error) {
	params := url.Values{}
	params.Set("q", query)

	var body struct {
		Data []scryfallCard `json:"data"`
	}
	// Scryfall answers 404 when nothing matches.
	found, err := getJSON(ctx, p.Client, p.BaseURL+"/cards/search?"+params.Encode(), nil, &body, http.StatusNotFound)
	if err != nil || !found {
		return nil, err
	}

	cards := make([]models.Card, 0, len(body.Data))
	for _, c := range body.Data {
		if len(cards) == limit {
			break
		}
		price := parsePrice(c.Prices.USD)
		if price == 0 {
			price = parsePrice(c.Prices.USDFoil)
		}
		cards = append(cards, models.Card{
			ID:     c.ID,
			Name:   c.Name,
			Game:   models.GameMagic,
			Image:  c.image(),
			Price:  price,
			Rarity: c.Rarity,
			Set:    c.SetName,
		})
	}
	return cards, nil
}

// image falls back to the front face for double faced cards.
func (c scryfallCard) image() string {
	if c.ImageURIs != nil {
		return c.ImageURIs.Normal
	}
	for _, face := range c.CardFaces {
		if face.ImageURIs != nil {
			return face.ImageURIs.Normal
		}
	}
	return ""
}

// YGOProDeckProvider queries the YGOPRODeck database for Yu-Gi-Oh! cards.
type YGOProDeckProvider struct {
	BaseURL string
	Client  *http.Client
}

type ygoCard struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	CardImages []struct {
		ImageURL      string `json:"image_url"`
		ImageURLSmall string `json:"image_url_small"`
	} `json:"card_images"`
	CardSets []struct {
		SetName   string `json:"set_name"`
		SetRarity string `json:"set_rarity"`
	} `json:"card_sets"`
	CardPrices []struct {
		TCGPlayerPrice  string `json:"tcgplayer_price"`
		CardMarketPrice string `json:"cardmarket_price"`
	} `json:"card_prices"`
}

func (p *YGOProDeckProvider) Name() string { return config.ProviderYGOProDeck }

func (p *YGOProDeckProvider) Search(ctx context.Context, query string, limit int) ([]models.Card, error) {
	params := url.Values{}
	params.Set("fname", query)
	params.Set("num", strconv.Itoa(limit))
	params.Set("offset", "0")

	var body struct {
		Data []ygoCard `json:"data"`
	}
	// YGOPRODeck answers 400 when no card matches.
	found, err := getJSON(ctx, p.Client, p.BaseURL+"/api/v7/cardinfo.php?"+params.Encode(), nil, &body, http.StatusBadRequest)
	if err != nil || !found {
		return nil, err
	}

	cards := make([]models.Card, 0, len(body.Data))
	for _, c := range body.Data {
		card := models.Card{
			ID:   strconv.Itoa(c.ID),
			Name: c.Name,
			Game: models.GameYugioh,
		}
		if len(c.CardImages) > 0 {
			card.Image = c.CardImages[0].ImageURL
		}
		if len(c.CardSets) > 0 {
			card.Set = c.CardSets[0].SetName
			card.Rarity = c.CardSets[0].SetRarity
		}
		if len(c.CardPrices) > 0 {
			card.Price = parsePrice(c.CardPrices[0].TCGPlayerPrice)
		}
		cards = append(cards, card)
	}
	return cards, nil
}
