package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cardvault_server/metrics"
	"cardvault_server/models"
	"cardvault_server/utils"
)

const (
	DefaultCardSearchLimit = 20
	MaxCardSearchLimit     = 50
	defaultProviderTimeout = 5 * time.Second
)

// errSearchAbandoned marks a provider call cut short because the caller went away.
// The breaker does not count it against the provider.
var errSearchAbandoned = errors.New("card search abandoned by caller")

// CardSearchService fans a query out to every catalog provider and merges the results.
// A failing provider contributes no results; it never fails the search.
type CardSearchService struct {
	providers []CardProvider
	breakers  []*gobreaker.CircuitBreaker
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewCardSearchService wraps each provider in its own circuit breaker. collector may be nil.
func NewCardSearchService(providers []CardProvider, timeout time.Duration, logger *zap.Logger, collector *metrics.Collector) *CardSearchService {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	logger = loggerOrNop(logger)

	breakers := make([]*gobreaker.CircuitBreaker, len(providers))
	for i, p := range providers {
		breakers[i] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errSearchAbandoned)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("card provider circuit breaker changed state",
					zap.String("provider", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}

	return &CardSearchService{
		providers: providers,
		breakers:  breakers,
		timeout:   timeout,
		logger:    logger,
		metrics:   collector,
	}
}

// Search returns the combined results in provider order.
func (s *CardSearchService) Search(ctx context.Context, query string, limit int) ([]models.Card, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, utils.NewValidationError("query is required")
	}
	if limit <= 0 {
		limit = DefaultCardSearchLimit
	}
	if limit > MaxCardSearchLimit {
		limit = MaxCardSearchLimit
	}

	results := make([][]models.Card, len(s.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i := range s.providers {
		i := i
		g.Go(func() error {
			results[i] = s.searchProvider(gctx, i, query, limit)
			return nil
		})
	}
	_ = g.Wait() // providers never return errors to the group

	cards := []models.Card{}
	for _, r := range results {
		cards = append(cards, r...)
	}
	return cards, nil
}

func (s *CardSearchService) searchProvider(parent context.Context, i int, query string, limit int) []models.Card {
	provider := s.providers[i]
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.breakers[i].Execute(func() (interface{}, error) {
		cards, err := provider.Search(ctx, query, limit)
		if err != nil && parent.Err() != nil {
			return nil, errSearchAbandoned
		}
		return cards, err
	})
	if errors.Is(err, errSearchAbandoned) {
		s.logger.Debug("card search abandoned by caller", zap.String("provider", provider.Name()))
		return nil
	}
	if s.metrics != nil {
		s.metrics.ProviderDuration.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Warn("card provider search failed",
			zap.String("provider", provider.Name()), zap.String("query", query), zap.Error(err))
		if s.metrics != nil {
			s.metrics.ProviderFailures.WithLabelValues(provider.Name()).Inc()
		}
		return nil
	}

	cards, _ := out.([]models.Card)
	if len(cards) > limit {
		cards = cards[:limit]
	}
	return cards
}
