package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/codyseavey/binder-tracker/backend/internal/metrics"
	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

const (
	pokemonTCGBaseURL       = "https://api.pokemontcg.io/v2"
	pokemonTCGTimeout       = 30 * time.Second
	defaultSearchPageSize   = 20
	autocompletePageSize    = 10
	autocompleteMinLength   = 2
	defaultSuggestionCacheN = 1024
)

// ErrCardNotFound means the catalog has no card with the requested ID.
var ErrCardNotFound = errors.New("card not found in catalog")

// CatalogError is a transport, status or decode failure talking to the catalog.
// It is considered transient; callers decide whether to retry.
type CatalogError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *CatalogError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pokemon tcg %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("pokemon tcg %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// PokemonTCGOptions configures the catalog client
type PokemonTCGOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables throttling
	CacheSize int     // autocomplete LRU capacity
}

// PokemonTCGService talks to the Pokemon TCG API. It never retries; that is
// the resolver's job.
type PokemonTCGService struct {
	client      *http.Client
	apiKey      string
	baseURL     string
	limiter     *rate.Limiter
	suggestions *lru.Cache[string, []string] // lowercased query -> names
}

func NewPokemonTCGService(opts PokemonTCGOptions) *PokemonTCGService {
	if opts.BaseURL == "" {
		opts.BaseURL = pokemonTCGBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = pokemonTCGTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultSuggestionCacheN
	}

	suggestions, err := lru.New[string, []string](opts.CacheSize)
	if err != nil {
		log.Printf("Failed to create suggestion cache: %v", err)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &PokemonTCGService{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		limiter:     limiter,
		suggestions: suggestions,
	}
}

type pokemonSearchResponse struct {
	Data       []pokemonCard `json:"data"`
	TotalCount int           `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	Count      int           `json:"count"`
}

// pokemonCard mirrors the catalog payload. Everything optional is a pointer
// or zero-value tolerant and never escapes convertToCard.
type pokemonCard struct {
	TCGPlayer  *pokemonTCGPlayer  `json:"tcgplayer"`
	CardMarket *pokemonCardMarket `json:"cardmarket"`
	Set        *pokemonSet        `json:"set"`
	Images     *pokemonImages     `json:"images"`
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Number     string             `json:"number"`
	Rarity     string             `json:"rarity"`
	Artist     string             `json:"artist"`
	Types      []string           `json:"types"`
}

type pokemonSet struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PrintedTotal int    `json:"printedTotal"`
	Total        int    `json:"total"`
	ReleaseDate  string `json:"releaseDate"`
}

type pokemonImages struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

type pokemonTCGPlayer struct {
	Prices    map[string]pokemonPriceSet `json:"prices"`
	URL       string                     `json:"url"`
	UpdatedAt string                     `json:"updatedAt"`
}

type pokemonPriceSet struct {
	Low    *float64 `json:"low"`
	Mid    *float64 `json:"mid"`
	High   *float64 `json:"high"`
	Market *float64 `json:"market"`
}

type pokemonCardMarket struct {
	Prices    *pokemonCardMarketPrices `json:"prices"`
	UpdatedAt string                   `json:"updatedAt"`
}

type pokemonCardMarketPrices struct {
	AverageSellPrice *float64 `json:"averageSellPrice"`
	TrendPrice       *float64 `json:"trendPrice"`
}

// GetCard fetches a single card. Returns ErrCardNotFound on 404.
func (s *PokemonTCGService) GetCard(ctx context.Context, id string) (*models.Card, error) {
	var response struct {
		Data pokemonCard `json:"data"`
	}
	if err := s.get(ctx, "get", "/cards/"+url.PathEscape(id), nil, &response); err != nil {
		return nil, err
	}

	card := convertToCard(response.Data, time.Now())
	return &card, nil
}

// SearchCards runs a name-prefix search ordered by name. A pageSize <= 0 uses
// the default of 20.
func (s *PokemonTCGService) SearchCards(ctx context.Context, query string, pageSize int) (*models.CardSearchResult, error) {
	if pageSize <= 0 {
		pageSize = defaultSearchPageSize
	}

	params := url.Values{}
	params.Set("q", namePrefixQuery(query))
	params.Set("orderBy", "name")
	params.Set("page", "1")
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))

	var searchResp pokemonSearchResponse
	err := s.get(ctx, "search", "/cards", params, &searchResp)
	if errors.Is(err, ErrCardNotFound) {
		return &models.CardSearchResult{Cards: []models.Card{}}, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cards := make([]models.Card, len(searchResp.Data))
	for i, pc := range searchResp.Data {
		cards[i] = convertToCard(pc, now)
	}

	page := searchResp.Page
	if page == 0 {
		page = 1
	}
	return &models.CardSearchResult{
		Cards:      cards,
		TotalCount: searchResp.TotalCount,
		HasMore:    searchResp.TotalCount > page*pageSize,
	}, nil
}

// Autocomplete returns up to 10 distinct card names starting with query.
// Results are cached per lowercased query without expiry.
func (s *PokemonTCGService) Autocomplete(ctx context.Context, query string) ([]string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < autocompleteMinLength {
		return []string{}, nil
	}

	if s.suggestions != nil {
		if names, ok := s.suggestions.Get(q); ok {
			metrics.AutocompleteCacheHits.Inc()
			return append([]string(nil), names...), nil
		}
	}
	metrics.AutocompleteCacheMisses.Inc()

	params := url.Values{}
	params.Set("q", namePrefixQuery(q))
	params.Set("orderBy", "name")
	params.Set("page", "1")
	params.Set("pageSize", fmt.Sprintf("%d", autocompletePageSize))
	params.Set("select", "name")

	var resp struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	err := s.get(ctx, "autocomplete", "/cards", params, &resp)
	if errors.Is(err, ErrCardNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(resp.Data))
	names := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.Name == "" || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		names = append(names, d.Name)
	}

	if s.suggestions != nil {
		s.suggestions.Add(q, names)
	}
	return append([]string(nil), names...), nil
}

func (s *PokemonTCGService) get(ctx context.Context, op, path string, params url.Values, out any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			metrics.CatalogRequestsTotal.WithLabelValues(op, "error").Inc()
			return &CatalogError{Op: op, Err: err}
		}
	}

	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &CatalogError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.CatalogRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(op, "error").Inc()
		return &CatalogError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		metrics.CatalogRequestsTotal.WithLabelValues(op, "not_found").Inc()
		return ErrCardNotFound
	}

	if resp.StatusCode != http.StatusOK {
		metrics.CatalogRequestsTotal.WithLabelValues(op, "error").Inc()
		return &CatalogError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("pokemon tcg API returned status %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(op, "error").Inc()
		return &CatalogError{Op: op, Err: fmt.Errorf("failed to decode pokemon tcg response: %w", err)}
	}

	metrics.CatalogRequestsTotal.WithLabelValues(op, "success").Inc()
	return nil
}

// namePrefixQuery builds the catalog's wildcard name query. Double quotes
// would terminate the phrase, so they are dropped.
func namePrefixQuery(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), `"`, "")
	return fmt.Sprintf(`name:"%s*"`, text)
}

func convertToCard(pc pokemonCard, now time.Time) models.Card {
	imageURL := ""
	if pc.Images != nil {
		imageURL = pc.Images.Large
		if imageURL == "" {
			imageURL = pc.Images.Small
		}
	}
	if imageURL == "" {
		imageURL = models.PlaceholderImageURL(pc.Name)
	}

	setName := models.UnknownSetName
	var setCode, releaseDate string
	total := 0
	if pc.Set != nil {
		if pc.Set.Name != "" {
			setName = pc.Set.Name
		}
		setCode = pc.Set.ID
		releaseDate = pc.Set.ReleaseDate
		total = pc.Set.PrintedTotal
		if total == 0 {
			total = pc.Set.Total
		}
	}

	number := pc.Number
	if number == "" {
		number = models.UnknownCardNumber
	}
	totalStr := models.UnknownCardNumber
	if total > 0 {
		totalStr = fmt.Sprintf("%d", total)
	}

	rarity := pc.Rarity
	if rarity == "" {
		rarity = models.UnknownRarity
	}

	return models.Card{
		Key:            EncodeCardKey(pc.ID),
		CardID:         pc.ID,
		Name:           pc.Name,
		ImageURL:       imageURL,
		SetName:        setName,
		SetCode:        setCode,
		CardNumber:     number + "/" + totalStr,
		Rarity:         rarity,
		Artist:         pc.Artist,
		ReleaseDate:    releaseDate,
		MarketPrice:    marketPrice(pc),
		Types:          uniqueStrings(pc.Types),
		PriceUpdatedAt: &now,
	}
}

// marketPrice probes the upstream price fields in priority order and returns
// the first one present.
func marketPrice(pc pokemonCard) *float64 {
	var candidates []*float64
	if pc.CardMarket != nil && pc.CardMarket.Prices != nil {
		candidates = append(candidates, pc.CardMarket.Prices.AverageSellPrice, pc.CardMarket.Prices.TrendPrice)
	}
	if pc.TCGPlayer != nil && pc.TCGPlayer.Prices != nil {
		if holofoil, ok := pc.TCGPlayer.Prices["holofoil"]; ok {
			candidates = append(candidates, holofoil.Market)
		}
		if normal, ok := pc.TCGPlayer.Prices["normal"]; ok {
			candidates = append(candidates, normal.Market)
		}
	}

	for _, p := range candidates {
		if p != nil {
			v := *p
			return &v
		}
	}
	return nil
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Common Pokemon names offered when the catalog cannot be reached
var commonPokemonNames = []string{
	"Pikachu", "Charizard", "Bulbasaur", "Squirtle", "Mewtwo",
	"Eevee", "Jigglypuff", "Snorlax", "Gengar", "Gyarados",
	"Alakazam", "Dragonite", "Machamp", "Articuno", "Zapdos",
	"Moltres", "Mew", "Lugia", "Ho-Oh", "Celebi",
	"Blaziken", "Gardevoir", "Lucario", "Rayquaza", "Garchomp",
}

// FallbackSuggestions filters the built-in name list by substring.
func FallbackSuggestions(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < autocompleteMinLength {
		return []string{}
	}
	names := []string{}
	for _, name := range commonPokemonNames {
		if strings.Contains(strings.ToLower(name), q) {
			names = append(names, name)
		}
	}
	return names
}
