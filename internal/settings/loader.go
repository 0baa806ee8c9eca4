package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/keyshield/keyshield/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnknownKeyError reports a setting key that Upsert does not accept.
type UnknownKeyError struct {
	Keys []string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown setting keys: %s", strings.Join(e.Keys, ", "))
}

// Refresh reloads every stored override into the in-memory snapshot.
// Until it runs, lookups fall back to the built-in defaults.
func Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	maxUpdatedKey := ""
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		rowUpdatedAt := row.UpdatedAt.UTC()
		if rowUpdatedAt.After(maxUpdatedAt) || (rowUpdatedAt.Equal(maxUpdatedAt) && key > maxUpdatedKey) {
			maxUpdatedAt = rowUpdatedAt
			maxUpdatedKey = key
		}
	}

	Replace(maxUpdatedAt, values)
	return nil
}

// Upsert validates and persists values, then refreshes the snapshot.
// A JSON null value deletes the override. With a nil db the snapshot alone is updated.
func Upsert(ctx context.Context, db *gorm.DB, values map[string]json.RawMessage) error {
	var unknown []string
	for key := range values {
		if !IsKnownKey(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &UnknownKeyError{Keys: unknown}
	}
	for key, raw := range values {
		if len(raw) > 0 && !json.Valid(raw) {
			return fmt.Errorf("settings: invalid json for %s", key)
		}
	}

	if db == nil {
		merged := Snapshot()
		for key, raw := range values {
			if isNull(raw) {
				delete(merged, key)
				continue
			}
			merged[key] = raw
		}
		Replace(time.Now(), merged)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()
	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, raw := range values {
			if isNull(raw) {
				if errDelete := tx.Where("key = ?", key).Delete(&models.Setting{}).Error; errDelete != nil {
					return errDelete
				}
				continue
			}
			row := models.Setting{Key: key, Value: datatypes.JSON(raw), UpdatedAt: now}
			if errUpsert := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error; errUpsert != nil {
				return errUpsert
			}
		}
		return nil
	})
	if errTx != nil {
		return fmt.Errorf("settings: upsert: %w", errTx)
	}
	return Refresh(ctx, db)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytesTrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
