package ports

import (
	"context"

	"gopattern/domain/core"
	"gopattern/domain/discovery"
)

// RunRepository persists analysis runs on behalf of callers. The engine itself is
// stateless; storing a run is always the caller's decision.
type RunRepository interface {
	SaveRun(ctx context.Context, run *discovery.AnalysisRun) error
	GetRun(ctx context.Context, id core.RunID) (*discovery.AnalysisRun, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]RunListItem, error)
	DeleteRun(ctx context.Context, id core.RunID) error
}

// RunFilters for querying runs
type RunFilters struct {
	Outcome string
	Status  discovery.RunStatus
	Limit   int
	Offset  int
}

// RunListItem is the summary row returned by ListRuns.
type RunListItem struct {
	ID          core.RunID          `json:"id"`
	Outcome     string              `json:"outcome"`
	Status      discovery.RunStatus `json:"status"`
	Patterns    int                 `json:"patterns"`
	DatasetSize int                 `json:"dataset_size"`
	Fingerprint core.Fingerprint    `json:"fingerprint"`
	CreatedAt   core.Timestamp      `json:"created_at"`
}

// EnginePort is the discovery engine as seen by application services.
type EnginePort interface {
	Run(ctx context.Context, ds *discovery.Dataset, opts discovery.Options) (*discovery.AnalysisRun, error)
}
