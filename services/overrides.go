package services

import (
	"context"
	"fmt"

	"finnsync/models"
)

// OverrideStore persists manual corrections.
type OverrideStore interface {
	SetOverride(ctx context.Context, key string, area, price *int, reason string) (*models.Override, error)
	GetOverride(ctx context.Context, key string) (*models.Override, error)
	ListOverrides(ctx context.Context) ([]models.Override, error)
	RemoveOverride(ctx context.Context, key string) (bool, error)
}

// OverrideService manages operator corrections. The store applies them on
// every upsert, so a correction survives later crawls.
type OverrideService struct {
	store OverrideStore
}

func NewOverrideService(store OverrideStore) *OverrideService {
	return &OverrideService{store: store}
}

// Set creates or merges an override. Fields left nil keep their stored value.
func (s *OverrideService) Set(ctx context.Context, key string, area, price *int, reason string) (*models.Override, error) {
	if area == nil && price == nil && reason == "" {
		return nil, fmt.Errorf("override %s: nothing to set", key)
	}
	if area != nil && *area <= 0 {
		return nil, fmt.Errorf("override %s: area must be positive", key)
	}
	if price != nil && *price < 0 {
		return nil, fmt.Errorf("override %s: price must not be negative", key)
	}
	return s.store.SetOverride(ctx, key, area, price, reason)
}

func (s *OverrideService) Get(ctx context.Context, key string) (*models.Override, error) {
	return s.store.GetOverride(ctx, key)
}

func (s *OverrideService) List(ctx context.Context) ([]models.Override, error) {
	return s.store.ListOverrides(ctx)
}

func (s *OverrideService) Remove(ctx context.Context, key string) (bool, error) {
	return s.store.RemoveOverride(ctx, key)
}
