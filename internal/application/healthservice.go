package application

import (
	"context"
	"fmt"
)

// StorePinger is satisfied by both storage backends' DB types.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthService reports connectivity to the credential/queue store.
type HealthService struct {
	store StorePinger
}

// NewHealthService creates a HealthService over the given store handle.
func NewHealthService(store StorePinger) *HealthService {
	return &HealthService{store: store}
}

// CheckStore pings the store and wraps any failure.
func (s *HealthService) CheckStore(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}
