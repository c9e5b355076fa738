package service

import "context"

// Service is the lifecycle capability shared by worker components.
// Initialize is called once at startup before the HTTP surface accepts
// traffic; Cleanup is called once during shutdown. Implementations that
// can degrade (history, cache) return nil from Initialize even when the
// backend is unreachable and just switch to their degraded mode.
type Service interface {
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
}
