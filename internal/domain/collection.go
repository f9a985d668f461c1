package domain

import (
	"context"
	"fmt"
	"slices"

	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/pixel"
)

// Heritage records that fire Source was merged into fire Target at step T.
type Heritage struct {
	Source int               `json:"source"`
	Target int               `json:"target"`
	T      firetime.TimeStep `json:"t"`
}

// IDMapping is one row of an annual id-remap table.
type IDMapping struct {
	OldID int `json:"old_id"`
	NewID int `json:"new_id"`
}

// Changes holds the step-local change sets.
type Changes struct {
	Expanded    []int `json:"expanded"`
	Created     []int `json:"created"`
	Merged      []int `json:"merged"`
	Invalidated []int `json:"invalidated"`
}

// Counts is a snapshot of the collection partitions.
type Counts struct {
	Active  int `json:"active"`
	Sleeper int `json:"sleeper"`
	Dead    int `json:"dead"`
	Valid   int `json:"valid"`
	Total   int `json:"total"`
}

// Collection is the set of fires tracked for one region within one id-space
// year. It is mutated step by step by a single goroutine.
type Collection struct {
	region string
	year   int
	t      firetime.TimeStep
	store  *pixel.Store
	env    *Env

	fires  map[int]*Fire
	order  []int
	nextID int

	changes   Changes
	heritages []Heritage
	positions map[int]int
}

// NewCollection creates an empty collection for region starting at step t.
func NewCollection(region string, t firetime.TimeStep, store *pixel.Store, env Env) (*Collection, error) {
	if err := env.Params.Validate(); err != nil {
		return nil, fmt.Errorf("collection params: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	env = env.withDefaults()
	return &Collection{
		region:    region,
		year:      t.Year,
		t:         t,
		store:     store,
		env:       &env,
		fires:     make(map[int]*Fire),
		positions: make(map[int]int),
	}, nil
}

func (c *Collection) Region() string       { return c.region }
func (c *Collection) T() firetime.TimeStep { return c.t }
func (c *Collection) Store() *pixel.Store  { return c.store }
func (c *Collection) Params() Params       { return c.env.Params }
func (c *Collection) Len() int             { return len(c.order) }

// Year returns the year of the current id space.
func (c *Collection) Year() int { return c.year }

// AdvanceTime moves the collection and every member fire to step t.
func (c *Collection) AdvanceTime(t firetime.TimeStep) error {
	if t.Before(c.t) {
		return fmt.Errorf("%w: %s to %s", ErrTimeRegression, c.t, t)
	}
	c.t = t
	for _, f := range c.fires {
		f.setTime(t)
	}
	return nil
}

// ResetStepState clears the step-local change sets.
func (c *Collection) ResetStepState() {
	c.changes = Changes{}
}

// BeginStep advances time and clears the change sets, ready for attribution.
func (c *Collection) BeginStep(t firetime.TimeStep) error {
	if err := c.AdvanceTime(t); err != nil {
		return err
	}
	c.ResetStepState()
	return nil
}

// Ignite creates a fire from unattributed pixels and adds it to the collection.
func (c *Collection) Ignite(pixels []int, sensor Sensor) (*Fire, error) {
	f, err := NewFire(c.nextID, c.t, pixels, c.store, sensor, c.env)
	if err != nil {
		return nil, err
	}
	c.fires[f.id] = f
	c.order = append(c.order, f.id)
	c.nextID++
	return f, nil
}

// Fire returns the fire with the given id, including merged and invalid ones.
func (c *Collection) Fire(id int) (*Fire, bool) {
	f, ok := c.fires[id]
	return f, ok
}

// Resolve follows merge redirections from id to the fire that now holds its pixels.
func (c *Collection) Resolve(id int) (*Fire, error) {
	f, ok := c.fires[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFire, id)
	}
	for hops := 0; f.mergeID != f.id; hops++ {
		if hops > len(c.fires) {
			return nil, fmt.Errorf("merge cycle at fire %d", id)
		}
		next, ok := c.fires[f.mergeID]
		if !ok {
			return nil, fmt.Errorf("%w: %d (merge target of %d)", ErrUnknownFire, f.mergeID, f.id)
		}
		f = next
	}
	return f, nil
}

// Merge folds fire source into fire target. The target takes over the
// source's pixels and hull and counts as grown this step; the source is
// redirected to the target and invalidated.
func (c *Collection) Merge(source, target int) error {
	src, ok := c.fires[source]
	if !ok {
		return fmt.Errorf("%w: merge source %d", ErrUnknownFire, source)
	}
	if src.invalid {
		return fmt.Errorf("%w: merge source %d", ErrFireInvalid, source)
	}
	dst, err := c.Resolve(target)
	if err != nil {
		return err
	}
	if dst.invalid {
		return fmt.Errorf("%w: merge target %d", ErrFireInvalid, dst.id)
	}
	if dst.id == src.id {
		return fmt.Errorf("%w: fire %d merged into itself", ErrInvalidInput, source)
	}
	if err := dst.absorb(src); err != nil {
		return err
	}
	c.heritages = append(c.heritages, Heritage{Source: src.id, Target: dst.id, T: c.t})
	return nil
}

// RecordChanges replaces each supplied change set for the current step.
// A nil argument leaves that set unchanged.
func (c *Collection) RecordChanges(expanded, created, merged, invalidated []int) {
	if expanded != nil {
		c.changes.Expanded = slices.Clone(expanded)
	}
	if created != nil {
		c.changes.Created = slices.Clone(created)
	}
	if merged != nil {
		c.changes.Merged = slices.Clone(merged)
	}
	if invalidated != nil {
		c.changes.Invalidated = slices.Clone(invalidated)
	}
}

// ScanForStaticAnomalies invalidates active fires that are small and dense
// enough to be persistent point sources such as gas flares. It returns the
// newly invalidated ids, which are also appended to the invalidated set.
func (c *Collection) ScanForStaticAnomalies() []int {
	p := c.env.Params
	var flagged []int
	for _, id := range c.order {
		f := c.fires[id]
		if !f.IsActive() {
			continue
		}
		if f.PixelDensity() > p.StaticDensity && f.Area() < p.StaticMaxArea {
			f.invalidate()
			flagged = append(flagged, id)
			if !slices.Contains(c.changes.Invalidated, id) {
				c.changes.Invalidated = append(c.changes.Invalidated, id)
			}
		}
	}
	return flagged
}

// CompactForNewYear starts a fresh id space for year. Active fires take
// dense ids first, then sleepers, each group in its existing order; dead and
// invalid fires are dropped. The old→new table is persisted before the
// collection changes, then returned. Merge heritage is cleared.
func (c *Collection) CompactForNewYear(ctx context.Context, year int) ([]IDMapping, error) {
	survivors := append(c.Active(), c.Sleepers()...)
	mapping := make([]IDMapping, 0, len(survivors))
	remap := make(map[int]int, len(survivors))
	fires := make(map[int]*Fire, len(survivors))
	order := make([]int, 0, len(survivors))
	for newID, f := range survivors {
		mapping = append(mapping, IDMapping{OldID: f.id, NewID: newID})
		remap[f.id] = newID
		fires[newID] = f.renumbered(newID)
		order = append(order, newID)
	}

	if c.env.Remaps != nil && len(mapping) > 0 {
		if err := c.env.Remaps.WriteRemap(ctx, year, c.region, mapping); err != nil {
			return nil, fmt.Errorf("persist id remap for %s/%d: %w", c.region, year, err)
		}
	}

	c.store.Remap(remap)
	c.fires = fires
	c.order = order
	c.nextID = len(order)
	c.year = year
	c.heritages = nil
	c.positions = make(map[int]int)

	c.env.Logger.Info("fire ids compacted for new year",
		"region", c.region,
		"year", year,
		"survivors", len(mapping),
	)
	return mapping, nil
}

// AssignPositions records the persisted position of each id, in order.
func (c *Collection) AssignPositions(ids []int) {
	c.positions = make(map[int]int, len(ids))
	for i, id := range ids {
		c.positions[id] = i
	}
}

// PositionOf returns the persisted position of id.
func (c *Collection) PositionOf(id int) (int, bool) {
	pos, ok := c.positions[id]
	return pos, ok
}

// Fires returns every fire in creation order.
func (c *Collection) Fires() []*Fire {
	return c.filter(func(*Fire) bool { return true })
}

func (c *Collection) Active() []*Fire   { return c.filter((*Fire).IsActive) }
func (c *Collection) Sleepers() []*Fire { return c.filter((*Fire).MayReactivate) }
func (c *Collection) Dead() []*Fire     { return c.filter((*Fire).IsDead) }

// Valid returns the fires that have not been invalidated.
func (c *Collection) Valid() []*Fire {
	return c.filter(func(f *Fire) bool { return !f.invalid })
}

// MayActive returns active and sleeper fires, the ones that can still grow.
func (c *Collection) MayActive() []*Fire {
	return c.filter(func(f *Fire) bool { return f.IsActive() || f.MayReactivate() })
}

func (c *Collection) ActiveIDs() []int    { return ids(c.Active()) }
func (c *Collection) SleeperIDs() []int   { return ids(c.Sleepers()) }
func (c *Collection) DeadIDs() []int      { return ids(c.Dead()) }
func (c *Collection) ValidIDs() []int     { return ids(c.Valid()) }
func (c *Collection) MayActiveIDs() []int { return ids(c.MayActive()) }

// Counts returns all partition sizes from a single pass.
func (c *Collection) Counts() Counts {
	var n Counts
	for _, id := range c.order {
		f := c.fires[id]
		switch {
		case f.IsActive():
			n.Active++
		case f.MayReactivate():
			n.Sleeper++
		default:
			n.Dead++
		}
		if !f.invalid {
			n.Valid++
		}
		n.Total++
	}
	return n
}

// Changes returns a copy of the current step's change sets.
func (c *Collection) Changes() Changes {
	return Changes{
		Expanded:    slices.Clone(c.changes.Expanded),
		Created:     slices.Clone(c.changes.Created),
		Merged:      slices.Clone(c.changes.Merged),
		Invalidated: slices.Clone(c.changes.Invalidated),
	}
}

// UpdatedIDs returns the sorted union of all four change sets.
func (c *Collection) UpdatedIDs() []int {
	return sortedUnion(c.changes.Expanded, c.changes.Created, c.changes.Merged, c.changes.Invalidated)
}

// NewOrExpandedIDs returns the sorted union of the created and expanded sets.
func (c *Collection) NewOrExpandedIDs() []int {
	return sortedUnion(c.changes.Expanded, c.changes.Created)
}

// Heritages returns the merge records of the current id-space year.
func (c *Collection) Heritages() []Heritage {
	return slices.Clone(c.heritages)
}

func (c *Collection) filter(keep func(*Fire) bool) []*Fire {
	var out []*Fire
	for _, id := range c.order {
		if f := c.fires[id]; keep(f) {
			out = append(out, f)
		}
	}
	return out
}

func ids(fires []*Fire) []int {
	out := make([]int, len(fires))
	for i, f := range fires {
		out[i] = f.id
	}
	return out
}

func sortedUnion(sets ...[]int) []int {
	var out []int
	for _, s := range sets {
		out = append(out, s...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
