package usage

import (
	"context"
	"time"

	internalsettings "github.com/keyshield/keyshield/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetentionInterval = 6 * time.Hour
	defaultDeleteBatchSize   = 5000
	maxDeleteBatchesPerRun   = 2000
)

// RetentionCleaner periodically deletes old rows from the invocations table.
type RetentionCleaner struct {
	db        *gorm.DB
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewRetentionCleaner returns nil for a nil db.
func NewRetentionCleaner(db *gorm.DB) *RetentionCleaner {
	if db == nil {
		return nil
	}
	return &RetentionCleaner{
		db:        db,
		interval:  defaultRetentionInterval,
		batchSize: defaultDeleteBatchSize,
		now:       time.Now,
	}
}

// Run executes the cleanup loop until ctx is done.
func (c *RetentionCleaner) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}
	log.Infof("invocation retention cleaner started (interval=%s)", c.interval)
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.CleanupOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return nil
		case <-timer.C:
		}
	}
}

// CleanupOnce deletes invocations older than the configured retention window.
// It returns the number of deleted rows.
func (c *RetentionCleaner) CleanupOnce(ctx context.Context) int64 {
	if c == nil || c.db == nil {
		return 0
	}
	if ctx == nil {
		ctx = context.Background()
	}

	retentionDays := internalsettings.IntValue(internalsettings.InvocationRetentionDaysKey, internalsettings.DefaultInvocationRetentionDays)
	if retentionDays <= 0 {
		return 0
	}

	cutoff := c.now().UTC().AddDate(0, 0, -retentionDays)

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("invocation retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("invocation retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), retentionDays)
	}
	return deletedTotal
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := c.batchSize
	if limit <= 0 {
		limit = defaultDeleteBatchSize
	}

	// Limited subquery keeps each transaction short.
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM invocations
		WHERE id IN (
			SELECT id FROM invocations
			WHERE requested_at < ?
			ORDER BY requested_at ASC
			LIMIT ?
		)
	`, cutoff, limit)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
