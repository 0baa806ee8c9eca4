// Package store persists endpoint configurations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/keyshield/keyshield/internal/models"
)

var (
	// ErrNotFound is returned when no endpoint matches the lookup.
	ErrNotFound = errors.New("store: endpoint not found")
	// ErrConflict is returned when a proxy id is already taken.
	ErrConflict = errors.New("store: proxy id already in use")
)

// ListOptions filters List results.
type ListOptions struct {
	// Keyword matches name or description, case-insensitively.
	Keyword string
}

// UpdateFunc mutates an endpoint inside Update. Returning an error aborts the update.
type UpdateFunc func(endpoint *models.Endpoint) error

// EndpointStore is the persistence contract for endpoint configurations.
type EndpointStore interface {
	// List returns endpoints newest first.
	List(ctx context.Context, opts ListOptions) ([]models.Endpoint, error)
	Get(ctx context.Context, id string) (*models.Endpoint, error)
	GetByProxyID(ctx context.Context, proxyID string) (*models.Endpoint, error)
	// Create inserts endpoint. ID, CreatedAt and ProxyID must already be set.
	Create(ctx context.Context, endpoint *models.Endpoint) error
	// Update reads, mutates and writes the endpoint atomically. ID and CreatedAt are preserved.
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Endpoint, error)
	Delete(ctx context.Context, id string) error
	// RecordStatus stores the outcome of the latest invocation.
	RecordStatus(ctx context.Context, id, status string, at time.Time) error
	Ping(ctx context.Context) error
}
