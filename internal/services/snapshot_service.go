package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/binder-tracker/backend/internal/metrics"
	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

// SnapshotService records the daily value of every binder
type SnapshotService struct {
	db        *gorm.DB
	binders   *BinderService
	valuation *ValuationService

	mu            sync.RWMutex
	lastSnapshot  time.Time
	snapshotHour  int // Hour of day to take snapshot (0-23)
	checkInterval time.Duration
}

func NewSnapshotService(db *gorm.DB, binders *BinderService, valuation *ValuationService, snapshotHour int) *SnapshotService {
	if snapshotHour < 0 || snapshotHour > 23 {
		snapshotHour = 23
	}
	return &SnapshotService{
		db:            db,
		binders:       binders,
		valuation:     valuation,
		snapshotHour:  snapshotHour,
		checkInterval: 15 * time.Minute,
	}
}

// Start begins the background snapshot worker
func (s *SnapshotService) Start(ctx context.Context) {
	log.Println("Snapshot service started: will record daily binder values")

	s.checkAndSnapshot(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot(ctx)
		}
	}
}

func (s *SnapshotService) checkAndSnapshot(ctx context.Context) {
	now := time.Now()
	today := snapshotDay(now)

	s.mu.RLock()
	done := !s.lastSnapshot.IsZero() && !snapshotDay(s.lastSnapshot).Before(today)
	s.mu.RUnlock()
	if done {
		return
	}

	// Only take automatic snapshots at or after the configured hour
	if now.Hour() >= s.snapshotHour {
		if _, err := s.TakeSnapshots(ctx); err != nil {
			log.Printf("Snapshot service: failed to take snapshots: %v", err)
		}
	}
}

// TakeSnapshots records today's value for every binder and returns how many
// were written. One binder failing does not stop the others.
func (s *SnapshotService) TakeSnapshots(ctx context.Context) (int, error) {
	binders, err := s.binders.ListAllBinders(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	var firstErr error
	for _, b := range binders {
		if _, err := s.TakeSnapshot(ctx, b.ID); err != nil {
			metrics.SnapshotsTotal.WithLabelValues("failed").Inc()
			log.Printf("Snapshot service: binder %s: %v", b.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}

	s.mu.Lock()
	s.lastSnapshot = time.Now()
	s.mu.Unlock()

	log.Printf("Snapshot service: recorded %d of %d binder snapshots", written, len(binders))
	return written, firstErr
}

// TakeSnapshot values one binder and upserts today's snapshot row.
func (s *SnapshotService) TakeSnapshot(ctx context.Context, binderID string) (*models.BinderValueSnapshot, error) {
	v, err := s.valuation.ValueBinder(ctx, binderID)
	if err != nil {
		return nil, err
	}

	snapshot := models.BinderValueSnapshot{
		BinderID:        binderID,
		SnapshotDate:    snapshotDay(time.Now()),
		TotalCards:      v.TotalCards,
		UniqueCards:     v.UniqueCards,
		TotalValue:      v.TotalValue,
		PurchaseValue:   v.PurchaseValue,
		UnresolvedCards: v.UnresolvedCards,
		CreatedAt:       time.Now(),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "binder_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_cards", "unique_cards", "total_value", "purchase_value", "unresolved_cards"}),
	}).Create(&snapshot).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	metrics.SnapshotsTotal.WithLabelValues("success").Inc()
	log.Printf("Snapshot service: binder %s on %s (total: %s, cards: %d)",
		binderID, snapshot.SnapshotDate.Format("2006-01-02"), v.TotalDisplay, v.TotalCards)
	return &snapshot, nil
}

// GetHistory retrieves a binder's value snapshots for a period:
// "week", "month" (default), "3month", "year" or "all".
func (s *SnapshotService) GetHistory(ctx context.Context, binderID, period string) ([]models.BinderValueSnapshot, error) {
	now := time.Now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
	default:
		startDate = now.AddDate(0, -1, 0)
	}

	query := s.db.WithContext(ctx).Where("binder_id = ?", binderID).Order("snapshot_date ASC")
	if !startDate.IsZero() {
		query = query.Where("snapshot_date >= ?", snapshotDay(startDate))
	}

	snapshots := []models.BinderValueSnapshot{}
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// GetLastSnapshot returns the most recent snapshot of a binder, or nil
func (s *SnapshotService) GetLastSnapshot(ctx context.Context, binderID string) *models.BinderValueSnapshot {
	var snapshot models.BinderValueSnapshot
	err := s.db.WithContext(ctx).Where("binder_id = ?", binderID).Order("snapshot_date DESC").First(&snapshot).Error
	if err != nil {
		return nil
	}
	return &snapshot
}

func snapshotDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
