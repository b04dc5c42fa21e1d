package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/codyseavey/binder-tracker/backend/internal/metrics"
	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

const DefaultResolveConcurrency = 5

// CardCatalog is the remote lookup the resolver falls back to on a cache miss.
type CardCatalog interface {
	GetCard(ctx context.Context, id string) (*models.Card, error)
}

// ResolutionError means a card could not be obtained from the catalog after
// all attempts. Callers treat the card as unavailable.
type ResolutionError struct {
	CardID   string
	Attempts int
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve card %s: gave up after %d attempt(s): %v", e.CardID, e.Attempts, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolution is the per-card outcome of ResolveMany. Exactly one of Card and
// Err is set.
type Resolution struct {
	Card *models.Card
	Err  error
}

// CardResolver turns remote card ids into cards, reading through the local
// store and filling it from the catalog.
type CardResolver struct {
	store       *CardStore
	catalog     CardCatalog
	policy      RetryPolicy
	concurrency int
	inflight    singleflight.Group
}

func NewCardResolver(store *CardStore, catalog CardCatalog, policy RetryPolicy, concurrency int) *CardResolver {
	if concurrency <= 0 {
		concurrency = DefaultResolveConcurrency
	}
	return &CardResolver{
		store:       store,
		catalog:     catalog,
		policy:      policy,
		concurrency: concurrency,
	}
}

// Store exposes the underlying card cache
func (r *CardResolver) Store() *CardStore {
	return r.store
}

// Resolve returns the cached card for cardID, fetching and caching it on a
// miss. A *ResolutionError means the card is unavailable; any other error
// comes from the store or the key codec.
func (r *CardResolver) Resolve(ctx context.Context, cardID string) (*models.Card, error) {
	if cardID == "" {
		return nil, &ResolutionError{CardID: cardID, Err: ErrCardNotFound}
	}

	key := EncodeCardKey(cardID)
	card, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if card != nil {
		metrics.CardResolutionsTotal.WithLabelValues("cache").Inc()
		return card, nil
	}

	return r.fetch(ctx, cardID, key)
}

// Refresh re-fetches cardID from the catalog regardless of the cache and
// stores the result.
func (r *CardResolver) Refresh(ctx context.Context, cardID string) (*models.Card, error) {
	if cardID == "" {
		return nil, &ResolutionError{CardID: cardID, Err: ErrCardNotFound}
	}
	return r.fetch(ctx, cardID, EncodeCardKey(cardID))
}

// ResolveMany resolves every distinct id. Cached cards are read with a single
// query and misses are fetched with at most the configured number in flight.
// A failure for one id is reported in its Resolution and never affects the
// others; store errors abort the whole call.
func (r *CardResolver) ResolveMany(ctx context.Context, cardIDs []string) (map[string]Resolution, error) {
	unique := make([]string, 0, len(cardIDs))
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	keys := make([]string, 0, len(unique))
	for _, id := range unique {
		if id != "" {
			keys = append(keys, EncodeCardKey(id))
		}
	}

	cached, err := r.store.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	results := make(map[string]Resolution, len(unique))
	var misses []string
	for _, id := range unique {
		if id == "" {
			results[id] = Resolution{Err: &ResolutionError{CardID: id, Err: ErrCardNotFound}}
			continue
		}
		if card, ok := cached[EncodeCardKey(id)]; ok {
			metrics.CardResolutionsTotal.WithLabelValues("cache").Inc()
			results[id] = Resolution{Card: &card}
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, id := range misses {
		g.Go(func() error {
			card, err := r.fetch(gctx, id, EncodeCardKey(id))
			var resErr *ResolutionError
			if err != nil && !errors.As(err, &resErr) {
				return err
			}

			mu.Lock()
			results[id] = Resolution{Card: card, Err: err}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fetch collapses concurrent fetches of the same key into one catalog round
// trip and one upsert. The shared fetch is detached from the cancellation of
// whichever caller started it; each caller stops waiting when its own ctx is
// done.
func (r *CardResolver) fetch(ctx context.Context, cardID, key string) (*models.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := r.inflight.DoChan(key, func() (any, error) {
		return r.fetchAndStore(context.WithoutCancel(ctx), cardID, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		card := *res.Val.(*models.Card)
		return &card, nil
	}
}

func (r *CardResolver) fetchAndStore(ctx context.Context, cardID, key string) (*models.Card, error) {
	var card *models.Card
	attempts, err := r.policy.Do(ctx, func() error {
		c, err := r.catalog.GetCard(ctx, cardID)
		if err == nil && c == nil {
			err = ErrCardNotFound
		}
		if errors.Is(err, ErrCardNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		card = c
		return nil
	}, func(err error, wait time.Duration) {
		metrics.CardFetchRetriesTotal.Inc()
		log.WithFields(log.Fields{
			"card_id": cardID,
			"wait":    wait,
		}).Warnf("Resolver: catalog fetch failed, retrying: %v", err)
	})

	if err != nil {
		metrics.CardResolutionsTotal.WithLabelValues("failed").Inc()
		log.WithFields(log.Fields{
			"card_id":  cardID,
			"attempts": attempts,
		}).Warnf("Resolver: giving up on card: %v", err)
		return nil, &ResolutionError{CardID: cardID, Attempts: attempts, Err: err}
	}

	card.CardID = cardID
	card.Key = key
	if err := r.store.Upsert(ctx, card); err != nil {
		return nil, err
	}

	metrics.CardResolutionsTotal.WithLabelValues("catalog").Inc()
	return card, nil
}

// IsUnavailable reports whether err only means the card could not be
// resolved, as opposed to a store failure.
func IsUnavailable(err error) bool {
	var resErr *ResolutionError
	return errors.As(err, &resErr)
}
