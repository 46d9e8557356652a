package app

import (
	"context"
	"fmt"
	"time"

	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/internal"
	"gopattern/internal/errors"
	"gopattern/ports"
)

// DiscoveryService loads datasets, runs the discovery engine and optionally stores the run.
type DiscoveryService struct {
	reader ports.DatasetReaderPort
	engine ports.EnginePort
	runs   ports.RunRepository
	logger *internal.Logger
}

// DiscoveryRequest defines the inputs for one discovery run
type DiscoveryRequest struct {
	Source  string            `json:"source"`
	Schema  discovery.Schema  `json:"schema"`
	Options discovery.Options `json:"options"`
	Persist bool              `json:"persist"`
}

// DiscoveryResult wraps the engine's run with service-level bookkeeping
type DiscoveryResult struct {
	Run       *discovery.AnalysisRun `json:"run"`
	RuntimeMs int64                  `json:"runtime_ms"`
	Persisted bool                   `json:"persisted"`
}

// NewDiscoveryService creates a discovery service. runs may be nil when persistence is
// not configured.
func NewDiscoveryService(reader ports.DatasetReaderPort, engine ports.EnginePort, runs ports.RunRepository, logger *internal.Logger) *DiscoveryService {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &DiscoveryService{reader: reader, engine: engine, runs: runs, logger: logger.Named("discovery")}
}

// Discover reads req.Source with req.Schema and analyzes it.
func (s *DiscoveryService) Discover(ctx context.Context, req DiscoveryRequest) (*DiscoveryResult, error) {
	if req.Source == "" {
		return nil, errors.InvalidInput("source is required")
	}
	if s.reader == nil {
		return nil, errors.InternalError("no dataset reader configured")
	}
	ds, err := s.reader.ReadDataset(ctx, req.Source, req.Schema)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("read %s: %w", req.Source, err))
	}
	return s.DiscoverDataset(ctx, ds, req.Options, req.Persist)
}

// DiscoverDataset analyzes an already loaded dataset.
func (s *DiscoveryService) DiscoverDataset(ctx context.Context, ds *discovery.Dataset, opts discovery.Options, persist bool) (*DiscoveryResult, error) {
	start := time.Now()
	run, err := s.engine.Run(ctx, ds, opts)
	if err != nil {
		return nil, err
	}
	result := &DiscoveryResult{Run: run, RuntimeMs: time.Since(start).Milliseconds()}

	if persist {
		if s.runs == nil {
			return nil, errors.InvalidInput("persistence requested but no run repository is configured")
		}
		if err := s.runs.SaveRun(ctx, run); err != nil {
			return nil, errors.DatabaseError("failed to save run", err)
		}
		result.Persisted = true
	}

	s.logger.Info("run %s finished in %dms: status %s, %d patterns", run.ID, result.RuntimeMs, run.Status, len(run.Patterns))
	return result, nil
}

// GetRun loads a stored run.
func (s *DiscoveryService) GetRun(ctx context.Context, id core.RunID) (*discovery.AnalysisRun, error) {
	if s.runs == nil {
		return nil, errors.NotFound("run " + id.String())
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, errors.WithCode(errors.CodeNotFound, err)
		}
		return nil, errors.DatabaseError("failed to load run", err)
	}
	return run, nil
}

// ListRuns lists stored runs, newest first.
func (s *DiscoveryService) ListRuns(ctx context.Context, filters ports.RunFilters) ([]ports.RunListItem, error) {
	if s.runs == nil {
		return []ports.RunListItem{}, nil
	}
	items, err := s.runs.ListRuns(ctx, filters)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return items, nil
}

// InferSchema proposes a schema for a source.
func (s *DiscoveryService) InferSchema(ctx context.Context, source, outcome string) (discovery.Schema, error) {
	if s.reader == nil {
		return discovery.Schema{}, errors.InternalError("no dataset reader configured")
	}
	return s.reader.InferSchema(ctx, source, outcome)
}
