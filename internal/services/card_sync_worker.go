package services

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/codyseavey/binder-tracker/backend/internal/metrics"
)

const (
	// defaultSyncBatchSize is the number of cards refreshed per tick
	defaultSyncBatchSize  = 100
	defaultSyncInterval   = 6 * time.Hour
	defaultCardStaleness  = 24 * time.Hour
	maxTrackedFailedCards = 200
)

// FailedCard is a card the worker could not refresh on its last try
type FailedCard struct {
	CardID   string    `json:"card_id"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// SyncResult counts the outcome of a refresh run
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

type CardSyncStatus struct {
	LastUpdateTime    time.Time    `json:"last_update_time"`
	NextUpdateTime    time.Time    `json:"next_update_time"`
	CardsUpdatedToday int          `json:"cards_updated_today"`
	BatchSize         int          `json:"batch_size"`
	QueueSize         int          `json:"queue_size"`
	FailedCards       []FailedCard `json:"failed_cards,omitempty"`
}

type CardSyncOptions struct {
	Interval    time.Duration
	Staleness   time.Duration
	BatchSize   int
	Concurrency int
}

// CardSyncWorker keeps cached cards referenced by binders fresh by
// re-resolving them through the catalog.
type CardSyncWorker struct {
	resolver    *CardResolver
	binders     *BinderService
	interval    time.Duration
	staleness   time.Duration
	batchSize   int
	concurrency int
	mu          sync.RWMutex

	// Priority queue for user-requested refreshes
	urgentQueue []string
	urgentMu    sync.Mutex

	// Stats (reset at midnight)
	cardsUpdatedToday int
	lastUpdateTime    time.Time
	lastStatsDay      time.Time

	failedCards []FailedCard
}

func NewCardSyncWorker(resolver *CardResolver, binders *BinderService, opts CardSyncOptions) *CardSyncWorker {
	if opts.Interval <= 0 {
		opts.Interval = defaultSyncInterval
	}
	if opts.Staleness <= 0 {
		opts.Staleness = defaultCardStaleness
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSyncBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultResolveConcurrency
	}
	return &CardSyncWorker{
		resolver:    resolver,
		binders:     binders,
		interval:    opts.Interval,
		staleness:   opts.Staleness,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
	}
}

// QueueRefresh adds a card to the high-priority refresh queue and returns
// its 1-indexed position.
func (w *CardSyncWorker) QueueRefresh(cardID string) int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, id := range w.urgentQueue {
		if id == cardID {
			return i + 1
		}
	}
	w.urgentQueue = append(w.urgentQueue, cardID)
	metrics.CardSyncQueueSize.Set(float64(len(w.urgentQueue)))
	log.Printf("Card sync: queued refresh for card %s (queue size: %d)", cardID, len(w.urgentQueue))
	return len(w.urgentQueue)
}

func (w *CardSyncWorker) GetQueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

func (w *CardSyncWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			log.Printf("Card sync: daily stats reset (previous day: %d cards updated)", w.cardsUpdatedToday)
		}
		w.cardsUpdatedToday = 0
		w.lastStatsDay = today
	}
}

// Start runs the periodic refresh loop until ctx is done.
func (w *CardSyncWorker) Start(ctx context.Context, runImmediately bool) {
	log.Printf("Card sync started: will refresh up to %d cards every %v", w.batchSize, w.interval)

	if runImmediately {
		w.tick(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Card sync stopping...")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *CardSyncWorker) tick(ctx context.Context) {
	result, err := w.UpdateBatch(ctx)
	if err != nil {
		log.Printf("Card sync: batch update failed: %v", err)
		return
	}
	if result.Synced > 0 || result.Failed > 0 {
		log.Printf("Card sync: batch refreshed %d cards (%d failed)", result.Synced, result.Failed)
	}
}

// UpdateBatch refreshes one batch of cards with priority ordering:
// 1. User-requested refreshes
// 2. Binder cards that were never cached
// 3. Cached cards with the oldest prices
func (w *CardSyncWorker) UpdateBatch(ctx context.Context) (SyncResult, error) {
	w.resetDailyStatsIfNeeded()

	w.urgentMu.Lock()
	ids := w.urgentQueue
	if len(ids) > w.batchSize {
		ids = ids[:w.batchSize]
		w.urgentQueue = w.urgentQueue[w.batchSize:]
	} else {
		w.urgentQueue = nil
	}
	metrics.CardSyncQueueSize.Set(float64(len(w.urgentQueue)))
	w.urgentMu.Unlock()

	if len(ids) > 0 {
		log.Printf("Card sync: processing %d urgent refresh requests", len(ids))
	}

	picked := make(map[string]bool, w.batchSize)
	for _, id := range ids {
		picked[id] = true
	}

	if remaining := w.batchSize - len(ids); remaining > 0 {
		uncached, err := w.uncachedBinderCards(ctx)
		if err != nil {
			return SyncResult{}, err
		}
		for _, id := range uncached {
			if len(ids) >= w.batchSize {
				break
			}
			if !picked[id] {
				picked[id] = true
				ids = append(ids, id)
			}
		}
	}

	if remaining := w.batchSize - len(ids); remaining > 0 {
		stale, err := w.resolver.Store().StaleCardIDs(ctx, time.Now().Add(-w.staleness), w.batchSize)
		if err != nil {
			return SyncResult{}, err
		}
		for _, id := range stale {
			if len(ids) >= w.batchSize {
				break
			}
			if !picked[id] {
				picked[id] = true
				ids = append(ids, id)
			}
		}
	}

	if len(ids) == 0 {
		return SyncResult{}, nil
	}
	return w.refresh(ctx, ids)
}

// SyncBinderCards refreshes every card referenced by any binder.
func (w *CardSyncWorker) SyncBinderCards(ctx context.Context) (SyncResult, error) {
	w.resetDailyStatsIfNeeded()

	ids, err := w.binders.DistinctCardIDs(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	log.Printf("Card sync: refreshing %d binder cards", len(ids))
	return w.refresh(ctx, ids)
}

func (w *CardSyncWorker) uncachedBinderCards(ctx context.Context) ([]string, error) {
	ids, err := w.binders.DistinctCardIDs(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = EncodeCardKey(id)
	}
	cached, err := w.resolver.Store().GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	var missing []string
	for i, id := range ids {
		if _, ok := cached[keys[i]]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// refresh re-resolves ids with bounded concurrency. A card that cannot be
// resolved is counted and remembered; store errors stop the run.
func (w *CardSyncWorker) refresh(ctx context.Context, ids []string) (SyncResult, error) {
	start := time.Now()
	var (
		result SyncResult
		mu     sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			_, err := w.resolver.Refresh(gctx, id)

			var resErr *ResolutionError
			switch {
			case err == nil:
				metrics.CardSyncUpdatesTotal.WithLabelValues("success").Inc()
				mu.Lock()
				result.Synced++
				mu.Unlock()
				w.clearFailedCard(id)
			case errors.As(err, &resErr):
				metrics.CardSyncUpdatesTotal.WithLabelValues("failed").Inc()
				mu.Lock()
				result.Failed++
				mu.Unlock()
				w.recordFailedCard(FailedCard{
					CardID:   id,
					Attempts: resErr.Attempts,
					Reason:   resErr.Err.Error(),
					FailedAt: time.Now(),
				})
			default:
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	w.mu.Lock()
	w.cardsUpdatedToday += result.Synced
	w.lastUpdateTime = time.Now()
	w.mu.Unlock()

	metrics.CardSyncBatchDuration.Observe(time.Since(start).Seconds())
	metrics.UpdateStoreMetrics(w.resolver.Store().db)

	return result, err
}

func (w *CardSyncWorker) recordFailedCard(fc FailedCard) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, c := range w.failedCards {
		if c.CardID == fc.CardID {
			w.failedCards[i] = fc
			return
		}
	}
	if len(w.failedCards) >= maxTrackedFailedCards {
		w.failedCards = w.failedCards[1:]
	}
	w.failedCards = append(w.failedCards, fc)
}

func (w *CardSyncWorker) clearFailedCard(cardID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, c := range w.failedCards {
		if c.CardID == cardID {
			w.failedCards = append(w.failedCards[:i], w.failedCards[i+1:]...)
			return
		}
	}
}

func (w *CardSyncWorker) GetStatus() CardSyncStatus {
	queueSize := w.GetQueueSize()

	w.mu.RLock()
	defer w.mu.RUnlock()

	return CardSyncStatus{
		LastUpdateTime:    w.lastUpdateTime,
		NextUpdateTime:    w.lastUpdateTime.Add(w.interval),
		CardsUpdatedToday: w.cardsUpdatedToday,
		BatchSize:         w.batchSize,
		QueueSize:         queueSize,
		FailedCards:       append([]FailedCard(nil), w.failedCards...),
	}
}
