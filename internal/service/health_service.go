package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pinger is any dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService interface {
	Liveness(ctx context.Context) error
	// Readiness pings every dependency and returns a per-dependency status
	// map together with the first failure.
	Readiness(ctx context.Context) (map[string]string, error)
}

type healthService struct {
	deps   map[string]Pinger
	logger *slog.Logger
}

// NewHealthService checks the named dependencies, e.g. "db" and "queue".
func NewHealthService(deps map[string]Pinger, logger *slog.Logger) HealthService {
	return &healthService{
		deps:   deps,
		logger: logger.With("layer", "service", "component", "health_service"),
	}
}

func (s *healthService) Liveness(ctx context.Context) error {
	s.logger.Debug("Liveness check passed")
	return nil
}

func (s *healthService) Readiness(ctx context.Context) (map[string]string, error) {
	// we wait up to 2 seconds
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(s.deps))
	var firstErr error
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			status[name] = fmt.Sprintf("error: %s", err.Error())
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		status[name] = "ok"
	}
	if firstErr != nil {
		s.logger.Error("Readiness check failed", slog.Any("error", firstErr))
		return status, firstErr
	}
	s.logger.Debug("Readiness check passed")
	return status, nil
}
