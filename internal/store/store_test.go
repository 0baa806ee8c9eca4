package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/keyshield/keyshield/internal/models"
)

func newEndpoint(id, proxyID, name string, createdAt time.Time) *models.Endpoint {
	endpoint := &models.Endpoint{
		ID:          id,
		APIType:     "openai",
		Name:        name,
		Description: "test endpoint " + name,
		Status:      models.StatusNotTested,
		ProxyID:     proxyID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	endpoint.SetOrigins([]string{"https://app.example.com"})
	return endpoint
}

// runStoreContract exercises the behaviour every EndpointStore must share.
func runStoreContract(t *testing.T, s EndpointStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := newEndpoint("ep-1", "AAAAAAAAAAA1", "Alpha chat", base)
	second := newEndpoint("ep-2", "AAAAAAAAAAA2", "Beta summarizer", base.Add(time.Minute))
	for _, endpoint := range []*models.Endpoint{first, second} {
		if err := s.Create(ctx, endpoint); err != nil {
			t.Fatalf("create %s: %v", endpoint.ID, err)
		}
	}

	dup := newEndpoint("ep-3", "AAAAAAAAAAA1", "Gamma", base.Add(2*time.Minute))
	if err := s.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate proxy id, got %v", err)
	}

	list, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "ep-2" || list[1].ID != "ep-1" {
		t.Fatalf("expected newest first, got %+v", ids(list))
	}

	filtered, err := s.List(ctx, ListOptions{Keyword: "SUMMAR"})
	if err != nil {
		t.Fatalf("list keyword: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "ep-2" {
		t.Fatalf("expected keyword match on ep-2, got %v", ids(filtered))
	}

	got, err := s.Get(ctx, "ep-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Alpha chat" || len(got.Origins()) != 1 {
		t.Fatalf("unexpected endpoint %+v", got)
	}
	byProxy, err := s.GetByProxyID(ctx, "AAAAAAAAAAA2")
	if err != nil || byProxy.ID != "ep-2" {
		t.Fatalf("expected ep-2 by proxy id, got %+v err=%v", byProxy, err)
	}
	if _, err = s.GetByProxyID(ctx, "missingproxy"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	updated, err := s.Update(ctx, "ep-1", func(endpoint *models.Endpoint) error {
		endpoint.Name = "Alpha renamed"
		endpoint.ID = "hijack"
		endpoint.CreatedAt = base.Add(time.Hour)
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "ep-1" || !updated.CreatedAt.Equal(base) || updated.Name != "Alpha renamed" {
		t.Fatalf("expected id and created_at preserved, got %+v", updated)
	}
	if _, err = s.Get(ctx, "hijack"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update must not create a new record, got %v", err)
	}

	errAbort := fmt.Errorf("abort")
	if _, err = s.Update(ctx, "ep-1", func(*models.Endpoint) error { return errAbort }); !errors.Is(err, errAbort) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err = s.Update(ctx, "ep-1", func(endpoint *models.Endpoint) error {
		endpoint.ProxyID = "AAAAAAAAAAA2"
		return nil
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when stealing a proxy id, got %v", err)
	}
	if _, err = s.Update(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	testedAt := base.Add(3 * time.Hour)
	if err = s.RecordStatus(ctx, "ep-2", models.StatusOperational, testedAt); err != nil {
		t.Fatalf("record status: %v", err)
	}
	got, err = s.Get(ctx, "ep-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusOperational || got.LastTestedAt == nil || !got.LastTestedAt.Equal(testedAt) {
		t.Fatalf("unexpected status %+v", got)
	}
	if err = s.RecordStatus(ctx, "missing", models.StatusError, testedAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err = s.Delete(ctx, "ep-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err = s.Get(ctx, "ep-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err = s.GetByProxyID(ctx, "AAAAAAAAAAA2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected proxy id released after delete, got %v", err)
	}
	if err = s.Delete(ctx, "ep-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err = s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func ids(list []models.Endpoint) []string {
	out := make([]string, 0, len(list))
	for _, endpoint := range list {
		out = append(out, endpoint.ID)
	}
	return out
}
