package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/keyshield/keyshield/internal/db"
	"github.com/keyshield/keyshield/internal/models"
	"gorm.io/gorm"
)

// GormStore keeps endpoints in SQLite or PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection for components sharing it.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) List(ctx context.Context, opts ListOptions) ([]models.Endpoint, error) {
	query := s.db.WithContext(ctx).Model(&models.Endpoint{})
	if keyword := strings.TrimSpace(opts.Keyword); keyword != "" {
		condition, args := dbutil.KeywordCondition(s.db, keyword, "name", "description")
		query = query.Where(condition, args...)
	}
	var rows []models.Endpoint
	if errFind := query.Order("created_at DESC").Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list endpoints: %w", errFind)
	}
	return rows, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	return s.first(s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStore) GetByProxyID(ctx context.Context, proxyID string) (*models.Endpoint, error) {
	if strings.TrimSpace(proxyID) == "" {
		return nil, ErrNotFound
	}
	return s.first(s.db.WithContext(ctx), "proxy_id = ?", proxyID)
}

func (s *GormStore) first(conn *gorm.DB, where string, arg string) (*models.Endpoint, error) {
	var row models.Endpoint
	if errFind := conn.Where(where, arg).Take(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get endpoint: %w", errFind)
	}
	return &row, nil
}

func (s *GormStore) Create(ctx context.Context, endpoint *models.Endpoint) error {
	if endpoint == nil {
		return fmt.Errorf("store: nil endpoint")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errTaken := s.ensureProxyIDFree(tx, endpoint.ProxyID, endpoint.ID); errTaken != nil {
			return errTaken
		}
		if errCreate := tx.Create(endpoint).Error; errCreate != nil {
			if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return fmt.Errorf("store: create endpoint: %w", errCreate)
		}
		return nil
	})
}

func (s *GormStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Endpoint, error) {
	var updated *models.Endpoint
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, errGet := s.first(tx, "id = ?", id)
		if errGet != nil {
			return errGet
		}
		originalProxyID := current.ProxyID
		createdAt := current.CreatedAt
		if fn != nil {
			if errFn := fn(current); errFn != nil {
				return errFn
			}
		}
		current.ID = id
		current.CreatedAt = createdAt
		if current.ProxyID != originalProxyID {
			if errTaken := s.ensureProxyIDFree(tx, current.ProxyID, id); errTaken != nil {
				return errTaken
			}
		}
		current.UpdatedAt = time.Now().UTC()
		if errSave := tx.Save(current).Error; errSave != nil {
			if errors.Is(errSave, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return fmt.Errorf("store: update endpoint: %w", errSave)
		}
		updated = current
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return updated, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Endpoint{})
	if res.Error != nil {
		return fmt.Errorf("store: delete endpoint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) RecordStatus(ctx context.Context, id, status string, at time.Time) error {
	at = at.UTC()
	res := s.db.WithContext(ctx).Model(&models.Endpoint{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         status,
			"last_tested_at": at,
			"updated_at":     at,
		})
	if res.Error != nil {
		return fmt.Errorf("store: record status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	return dbutil.Ping(ctx, s.db)
}

func (s *GormStore) ensureProxyIDFree(tx *gorm.DB, proxyID, ownerID string) error {
	if strings.TrimSpace(proxyID) == "" {
		return nil
	}
	var count int64
	if errCount := tx.Model(&models.Endpoint{}).
		Where("proxy_id = ? AND id <> ?", proxyID, ownerID).
		Count(&count).Error; errCount != nil {
		return fmt.Errorf("store: check proxy id: %w", errCount)
	}
	if count > 0 {
		return ErrConflict
	}
	return nil
}
