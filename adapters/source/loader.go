package source

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"heartprev/domain/prevalence"
	"heartprev/internal"
	"heartprev/internal/errors"
	"heartprev/internal/frame"
)

// Loader fetches the two dashboard datasets. Identical concurrent fetches are collapsed into one;
// with a positive TTL results are also kept in memory.
type Loader struct {
	reader           Reader
	snapshotSource   string
	timeSeriesSource string
	cache            *cache.Cache
	group            singleflight.Group
	logger           *internal.Logger
}

// NewLoader creates a loader. A zero ttl disables caching so every call re-reads the source.
func NewLoader(reader Reader, snapshotSource, timeSeriesSource string, ttl time.Duration) *Loader {
	l := &Loader{
		reader:           reader,
		snapshotSource:   snapshotSource,
		timeSeriesSource: timeSeriesSource,
		logger:           internal.NewComponentLogger("Loader"),
	}
	if ttl > 0 {
		l.cache = cache.New(ttl, 2*ttl)
	}
	return l
}

// Sources returns the configured snapshot and time series locations
func (l *Loader) Sources() (string, string) {
	return l.snapshotSource, l.timeSeriesSource
}

// LoadSnapshot reads the snapshot, indexes it by region code and splits off the geometry column
func (l *Loader) LoadSnapshot(ctx context.Context) (*prevalence.Snapshot, error) {
	raw, err := l.load(ctx, l.snapshotSource)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshot dataset")
	}

	indexed, err := raw.SetIndex(prevalence.ColumnRegionCode)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot dataset")
	}

	if !indexed.HasColumn(prevalence.ColumnGeometry) {
		l.logger.Warnf("Snapshot has no %s column; map view will be unavailable", prevalence.ColumnGeometry)
		return &prevalence.Snapshot{Table: indexed}, nil
	}

	cells, _ := indexed.Column(prevalence.ColumnGeometry)
	geometry := make([]string, len(cells))
	for i, c := range cells {
		geometry[i] = c.Raw
	}
	table, err := indexed.Drop(prevalence.ColumnGeometry)
	if err != nil {
		return nil, err
	}
	return &prevalence.Snapshot{Table: table, Geometry: geometry}, nil
}

// LoadTimeSeries reads the time series and drops the unnamed index column when present
func (l *Loader) LoadTimeSeries(ctx context.Context) (*frame.Frame, error) {
	raw, err := l.load(ctx, l.timeSeriesSource)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load time series dataset")
	}
	if !raw.HasColumn(prevalence.ColumnUnnamedIndex) {
		return raw, nil
	}
	return raw.Drop(prevalence.ColumnUnnamedIndex)
}

func (l *Loader) load(ctx context.Context, location string) (*frame.Frame, error) {
	if l.cache != nil {
		if cached, ok := l.cache.Get(location); ok {
			l.logger.Debugf("Cache hit for %s", location)
			return cached.(*frame.Frame), nil
		}
	}

	// The shared fetch outlives any single caller; each caller still stops waiting on its own ctx.
	ch := l.group.DoChan(location, func() (interface{}, error) {
		return l.reader.Read(context.WithoutCancel(ctx), location)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		l.logger.Debugf("Shared in-flight fetch of %s", location)
	}

	f := res.Val.(*frame.Frame)
	if l.cache != nil {
		l.cache.SetDefault(location, f)
	}
	return f, nil
}
