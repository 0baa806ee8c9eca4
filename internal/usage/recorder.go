// Package usage records one row per provider dispatch and prunes old rows.
package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keyshield/keyshield/internal/logging"
	"github.com/keyshield/keyshield/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	recordTimeout = 5 * time.Second
	// DefaultListLimit is the number of invocations returned when no limit is given.
	DefaultListLimit = 50
	// MaxListLimit caps the number of invocations returned in one page.
	MaxListLimit = 500
)

// Record describes one dispatch attempt.
type Record struct {
	EndpointID  string
	Provider    string
	Source      string
	Success     bool
	StatusCode  int
	Error       string
	Latency     time.Duration
	RequestedAt time.Time
}

// Recorder persists invocation rows. A nil Recorder is valid and records nothing.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by GORM. It returns nil for a nil db.
func NewRecorder(db *gorm.DB) *Recorder {
	if db == nil {
		return nil
	}
	return &Recorder{db: db}
}

// Record stores rec. Failures are logged and never returned to the caller.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || r.db == nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	requestedAt := rec.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}
	row := models.Invocation{
		EndpointID:  strings.TrimSpace(rec.EndpointID),
		Provider:    rec.Provider,
		Source:      rec.Source,
		Success:     rec.Success,
		Error:       rec.Error,
		LatencyMs:   rec.Latency.Milliseconds(),
		RequestedAt: requestedAt.UTC(),
	}
	if rec.StatusCode > 0 {
		statusCode := rec.StatusCode
		row.StatusCode = &statusCode
	}

	if errCreate := r.db.WithContext(dbCtx).Create(&row).Error; errCreate != nil {
		logging.Entry(ctx).WithError(errCreate).WithField("endpoint_id", row.EndpointID).Warn("usage: record invocation failed")
	}
}

// List returns the newest invocations for endpointID.
func (r *Recorder) List(ctx context.Context, endpointID string, limit int) ([]models.Invocation, error) {
	if r == nil || r.db == nil {
		return []models.Invocation{}, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	var rows []models.Invocation
	if errFind := r.db.WithContext(ctx).
		Where("endpoint_id = ?", endpointID).
		Order("requested_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("usage: list invocations: %w", errFind)
	}
	return rows, nil
}

// DeleteForEndpoint removes the history of a deleted endpoint.
func (r *Recorder) DeleteForEndpoint(ctx context.Context, endpointID string) {
	if r == nil || r.db == nil {
		return
	}
	if errDelete := r.db.WithContext(ctx).Where("endpoint_id = ?", endpointID).Delete(&models.Invocation{}).Error; errDelete != nil {
		log.WithError(errDelete).WithField("endpoint_id", endpointID).Warn("usage: delete invocations failed")
	}
}
