package ports

import (
	"context"

	"heartprev/domain/prevalence"
	"heartprev/internal/frame"
)

// DatasetPort loads the two dashboard datasets. Implementations may cache, but callers treat
// every result as read-only.
type DatasetPort interface {
	LoadSnapshot(ctx context.Context) (*prevalence.Snapshot, error)
	LoadTimeSeries(ctx context.Context) (*frame.Frame, error)
}
