// Package tracker applies attributed step batches to per-region fire
// collections and reports what each step changed.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/observability"
	"github.com/couchcryptid/wildfire-tracker/internal/pixel"
)

// ErrStaleStep is returned for a batch at or before the region's last applied step.
var ErrStaleStep = errors.New("stale step")

// Tracker owns one fire collection per region. Apply is safe for concurrent
// use but steps for the same region must arrive in time order.
type Tracker struct {
	env     domain.Env
	metrics *observability.Metrics
	logger  *slog.Logger

	mu    sync.Mutex // guards units
	units map[string]*unit
}

// unit is one region's state. mu is held for a whole step.
type unit struct {
	mu        sync.Mutex
	fires     *domain.Collection
	committed firetime.TimeStep
}

// New creates a Tracker whose collections share env. Fire-line fallbacks are
// counted in metrics unless env already carries a hook.
func New(env domain.Env, metrics *observability.Metrics, logger *slog.Logger) (*Tracker, error) {
	if err := env.Params.Validate(); err != nil {
		return nil, fmt.Errorf("tracker params: %w", err)
	}
	if env.Logger == nil {
		env.Logger = logger
	}
	if env.OnFireLineFallback == nil {
		env.OnFireLineFallback = func(int, error) { metrics.FireLineFallbacks.Inc() }
	}
	return &Tracker{
		env:     env,
		metrics: metrics,
		logger:  logger,
		units:   make(map[string]*unit),
	}, nil
}

// Collection returns the live collection of region, if any step was applied there.
func (t *Tracker) Collection(region string) (*domain.Collection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.units[region]
	if !ok {
		return nil, false
	}
	return u.fires, true
}

// Regions lists the regions seen so far, sorted.
func (t *Tracker) Regions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	regions := make([]string, 0, len(t.units))
	for r := range t.units {
		regions = append(regions, r)
	}
	slices.Sort(regions)
	return regions
}

// Snapshot is the current state of one region's collection.
type Snapshot struct {
	Region string              `json:"region"`
	T      firetime.TimeStep   `json:"t"`
	Year   int                 `json:"year"`
	Counts domain.Counts       `json:"counts"`
	Fires  []domain.FireRecord `json:"fires"`
}

// Snapshot reports the fires of region that may still grow (active and
// sleeper), or every fire when all is set.
func (t *Tracker) Snapshot(region string, all bool) (Snapshot, bool) {
	t.mu.Lock()
	u, ok := t.units[region]
	t.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	c := u.fires
	fires := c.MayActive()
	if all {
		fires = c.Fires()
	}
	snap := Snapshot{
		Region: region,
		T:      c.T(),
		Year:   c.Year(),
		Counts: c.Counts(),
		Fires:  make([]domain.FireRecord, 0, len(fires)),
	}
	for _, f := range fires {
		snap.Fires = append(snap.Fires, domain.NewFireRecord(f))
	}
	return snap, true
}

// Apply runs one step of the tracking loop for the batch's region: attribute
// pixels, ignite new fires, fold merges, regrow hulls, classify, screen for
// static anomalies and, on the last step of a year, compact fire ids.
//
// Only the batch's region is locked for the step, so a slow classifier
// delays that region's steps and snapshots but no other region.
func (t *Tracker) Apply(ctx context.Context, b domain.StepBatch) (domain.StepSummary, error) {
	start := time.Now()

	t.mu.Lock()
	u, err := t.unitFor(b)
	t.mu.Unlock()
	if err != nil {
		return domain.StepSummary{}, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.committed.IsZero() && !b.T.After(u.committed) {
		return domain.StepSummary{}, fmt.Errorf("%w: %s at %s, last applied %s", ErrStaleStep, b.Region, b.T, u.committed)
	}
	c := u.fires
	logger := t.logger.With("region", b.Region, "step", b.T.String())

	var remaps []domain.Remap
	if b.T.Year > c.Year() {
		mapping, err := c.CompactForNewYear(ctx, b.T.Year)
		if err != nil {
			return domain.StepSummary{}, err
		}
		t.metrics.YearResets.Inc()
		remaps = append(remaps, domain.Remap{Year: b.T.Year, Mapping: mapping})
	}

	if err := c.BeginStep(b.T); err != nil {
		return domain.StepSummary{}, err
	}

	pixels := make([]pixel.Pixel, len(b.Pixels))
	for i, p := range b.Pixels {
		pixels[i] = p.Pixel()
	}
	rows := c.Store().Append(b.T, pixels...)

	touched := make(map[int]*domain.Fire)
	expanded := t.applyAssignments(c, b.Assignments, rows, touched, logger)
	created := t.igniteClusters(c, b.Clusters, b.Sensor, rows, touched, logger)
	merged, absorbed := t.applyMerges(c, b.Merges, touched, logger)

	for _, id := range sortedKeys(touched) {
		f := touched[id]
		if f.Invalid() {
			continue
		}
		if !f.IsIgnition() {
			if err := f.UpdateHull(f.NewLocations()); err != nil {
				logger.Warn("hull update failed, keeping previous hull", "fire_id", id, "error", err)
			}
		}
		f.UpdateClassification(ctx)
	}

	c.RecordChanges(expanded, created, merged, absorbed)
	for _, id := range c.ScanForStaticAnomalies() {
		logger.Info("static anomaly invalidated", "fire_id", id)
		t.metrics.FiresInvalidated.WithLabelValues("static").Inc()
	}

	summary := t.summarize(c, b)
	summary.Remaps = remaps

	if b.T.IsYearEnd() {
		mapping, err := c.CompactForNewYear(ctx, b.T.Year+1)
		if err != nil {
			// The first step of the new year retries the compaction.
			logger.Error("year-end compaction failed", "error", err)
		} else {
			t.metrics.YearResets.Inc()
			summary.Remaps = append(summary.Remaps, domain.Remap{Year: b.T.Year + 1, Mapping: mapping})
		}
	}

	u.committed = b.T
	t.observe(b.Region, c)
	t.metrics.StepsProcessed.Inc()
	t.metrics.StepProcessingDuration.Observe(time.Since(start).Seconds())

	logger.Info("step applied",
		"created", len(created),
		"expanded", len(expanded),
		"merged", len(merged),
		"invalidated", len(summary.Changes.Invalidated),
		"fires", summary.Counts.Total,
	)
	return summary, nil
}

func (t *Tracker) unitFor(b domain.StepBatch) (*unit, error) {
	if u, ok := t.units[b.Region]; ok {
		return u, nil
	}
	c, err := domain.NewCollection(b.Region, b.T, pixel.NewStore(), t.env)
	if err != nil {
		return nil, err
	}
	u := &unit{fires: c}
	t.units[b.Region] = u
	return u, nil
}

func (t *Tracker) applyAssignments(c *domain.Collection, assignments []domain.Assignment, rows []int, touched map[int]*domain.Fire, logger *slog.Logger) []int {
	expanded := []int{}
	for _, a := range assignments {
		f, err := c.Resolve(a.FireID)
		if err != nil {
			logger.Warn("assignment skipped", "fire_id", a.FireID, "error", err)
			continue
		}
		if err := f.AddPixels(storeRows(rows, a.Pixels)); err != nil {
			logger.Warn("assignment skipped", "fire_id", f.ID(), "error", err)
			continue
		}
		if !slices.Contains(expanded, f.ID()) {
			expanded = append(expanded, f.ID())
		}
		touched[f.ID()] = f
	}
	return expanded
}

func (t *Tracker) igniteClusters(c *domain.Collection, clusters [][]int, sensor domain.Sensor, rows []int, touched map[int]*domain.Fire, logger *slog.Logger) []int {
	created := []int{}
	for i, cluster := range clusters {
		f, err := c.Ignite(storeRows(rows, cluster), sensor)
		if err != nil {
			logger.Warn("cluster skipped", "cluster", i, "pixels", len(cluster), "error", err)
			t.metrics.ClustersSkipped.Inc()
			continue
		}
		created = append(created, f.ID())
		touched[f.ID()] = f
		t.metrics.FiresCreated.Inc()
	}
	return created
}

func (t *Tracker) applyMerges(c *domain.Collection, merges []domain.MergeDirective, touched map[int]*domain.Fire, logger *slog.Logger) (merged, absorbed []int) {
	merged, absorbed = []int{}, []int{}
	for _, m := range merges {
		if err := c.Merge(m.Source, m.Target); err != nil {
			logger.Warn("merge skipped", "source", m.Source, "target", m.Target, "error", err)
			continue
		}
		dst, err := c.Resolve(m.Target)
		if err != nil {
			continue
		}
		if !slices.Contains(merged, dst.ID()) {
			merged = append(merged, dst.ID())
		}
		absorbed = append(absorbed, m.Source)
		touched[dst.ID()] = dst
		t.metrics.FiresInvalidated.WithLabelValues("merge").Inc()
	}
	return merged, absorbed
}

func (t *Tracker) summarize(c *domain.Collection, b domain.StepBatch) domain.StepSummary {
	s := domain.NewStepSummary(b.Region, b.T)
	s.Changes = c.Changes()
	s.Counts = c.Counts()
	for _, h := range c.Heritages() {
		if h.T == b.T {
			s.Heritages = append(s.Heritages, h)
		}
	}
	updated := c.UpdatedIDs()
	s.Fires = make([]domain.FireRecord, 0, len(updated))
	for _, id := range updated {
		if f, ok := c.Fire(id); ok {
			s.Fires = append(s.Fires, domain.NewFireRecord(f))
		}
	}
	c.AssignPositions(updated)
	return s
}

func (t *Tracker) observe(region string, c *domain.Collection) {
	counts := c.Counts()
	t.metrics.Fires.WithLabelValues(region, "active").Set(float64(counts.Active))
	t.metrics.Fires.WithLabelValues(region, "sleeper").Set(float64(counts.Sleeper))
	t.metrics.Fires.WithLabelValues(region, "dead").Set(float64(counts.Dead))
}

// storeRows translates batch pixel indices to store rows. Out-of-range
// indices map to -1, which the store rejects.
func storeRows(rows, batchIdx []int) []int {
	out := make([]int, len(batchIdx))
	for i, b := range batchIdx {
		if b < 0 || b >= len(rows) {
			out[i] = -1
			continue
		}
		out[i] = rows[b]
	}
	return out
}

func sortedKeys(m map[int]*domain.Fire) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
