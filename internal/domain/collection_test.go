package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/geom"
	"github.com/couchcryptid/wildfire-tracker/internal/pixel"
)

func offset(pts []geom.Point, dx float64) []geom.Point {
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = geom.Point{X: p.X + dx, Y: p.Y}
	}
	return out
}

func TestNewCollection_RejectsBadParams(t *testing.T) {
	env := testEnv()
	env.Params.DeathWindow = env.Params.GrowthWindow
	_, err := NewCollection("R", ts(2023, 6, 1, firetime.AM), pixel.NewStore(), env)
	require.Error(t, err)
}

func TestCollection_AdvanceTimePropagates(t *testing.T) {
	t0 := ts(2023, 6, 1, firetime.AM)
	c := newTestCollection(t0, testEnv())
	a, err := c.Ignite(appendPoints(c.Store(), t0, triangle...), SensorVIIRS)
	require.NoError(t, err)
	b, err := c.Ignite(appendPoints(c.Store(), t0, offset(triangle, 50000)...), SensorVIIRS)
	require.NoError(t, err)

	next := ts(2023, 6, 3, firetime.PM)
	require.NoError(t, c.AdvanceTime(next))
	assert.Equal(t, next, c.T())
	assert.Equal(t, next, a.T())
	assert.Equal(t, next, b.T())

	err = c.AdvanceTime(t0)
	require.ErrorIs(t, err, ErrTimeRegression)
	assert.Equal(t, next, c.T())
}

func TestCollection_IgniteSkipsEmptyCluster(t *testing.T) {
	t0 := ts(2023, 6, 1, firetime.AM)
	c := newTestCollection(t0, testEnv())

	_, err := c.Ignite(nil, SensorVIIRS)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, c.Len())

	f, err := c.Ignite(appendPoints(c.Store(), t0, triangle...), SensorVIIRS)
	require.NoError(t, err)
	assert.Equal(t, 0, f.ID())
	assert.Equal(t, 1, c.Len())
}

func TestCollection_RecordChangesReplaces(t *testing.T) {
	c := newTestCollection(ts(2023, 6, 1, firetime.AM), testEnv())

	c.RecordChanges([]int{1, 2}, []int{3}, nil, nil)
	c.RecordChanges([]int{5}, nil, []int{7}, []int{})

	want := Changes{Expanded: []int{5}, Created: []int{3}, Merged: []int{7}, Invalidated: []int{}}
	if diff := cmp.Diff(want, c.Changes()); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}

	c.RecordChanges(nil, []int{3, 1}, nil, []int{1})
	assert.Equal(t, []int{1, 3, 5, 7}, c.UpdatedIDs())
	assert.Equal(t, []int{1, 3, 5}, c.NewOrExpandedIDs())

	c.ResetStepState()
	assert.Empty(t, c.UpdatedIDs())
}

func TestCollection_ScanForStaticAnomalies(t *testing.T) {
	t0 := ts(2023, 6, 1, firetime.AM)

	t.Run("small dense fire is invalidated once", func(t *testing.T) {
		env := testEnv()
		env.Geometry = fixedArea(10)
		c := newTestCollection(t0, env)
		f, err := c.Ignite(appendN(c.Store(), t0, 250), SensorVIIRS)
		require.NoError(t, err)
		require.InDelta(t, 10, f.Area(), 1e-6)
		require.InDelta(t, 25, f.PixelDensity(), 1e-6)

		assert.Equal(t, []int{f.ID()}, c.ScanForStaticAnomalies())
		assert.True(t, f.Invalid())
		assert.Equal(t, StateInvalid, f.State())

		// Invalid fires are no longer active, so a second scan adds nothing.
		assert.Empty(t, c.ScanForStaticAnomalies())
		assert.Equal(t, []int{f.ID()}, c.Changes().Invalidated)
	})

	t.Run("large dense fire is kept", func(t *testing.T) {
		env := testEnv()
		env.Geometry = fixedArea(25)
		c := newTestCollection(t0, env)
		f, err := c.Ignite(appendN(c.Store(), t0, 625), SensorVIIRS)
		require.NoError(t, err)
		require.InDelta(t, 25, f.PixelDensity(), 1e-6)

		assert.Empty(t, c.ScanForStaticAnomalies())
		assert.False(t, f.Invalid())
		assert.Empty(t, c.Changes().Invalidated)
	})

	t.Run("already recorded id is not duplicated", func(t *testing.T) {
		env := testEnv()
		env.Geometry = fixedArea(10)
		c := newTestCollection(t0, env)
		f, err := c.Ignite(appendN(c.Store(), t0, 250), SensorVIIRS)
		require.NoError(t, err)

		c.RecordChanges(nil, nil, nil, []int{f.ID()})
		c.ScanForStaticAnomalies()
		assert.Equal(t, []int{f.ID()}, c.Changes().Invalidated)
	})

	t.Run("sleepers are not scanned", func(t *testing.T) {
		env := testEnv()
		env.Geometry = fixedArea(10)
		c := newTestCollection(t0, env)
		f, err := c.Ignite(appendN(c.Store(), t0, 250), SensorVIIRS)
		require.NoError(t, err)
		require.NoError(t, c.AdvanceTime(ts(2023, 6, 10, firetime.AM)))
		require.True(t, f.MayReactivate())

		assert.Empty(t, c.ScanForStaticAnomalies())
		assert.False(t, f.Invalid())
	})
}

func TestCollection_Merge(t *testing.T) {
	t0 := ts(2023, 6, 1, firetime.AM)
	c := newTestCollection(t0, testEnv())
	target, err := c.Ignite(appendPoints(c.Store(), t0, triangle...), SensorVIIRS)
	require.NoError(t, err)
	source, err := c.Ignite(appendPoints(c.Store(), t0, offset(triangle, 2000)...), SensorVIIRS)
	require.NoError(t, err)
	targetArea, sourceArea := target.Area(), source.Area()

	pm := t0.Next()
	require.NoError(t, c.BeginStep(pm))
	require.NoError(t, c.Merge(source.ID(), target.ID()))

	assert.True(t, source.Invalid())
	assert.Equal(t, target.ID(), source.MergeID())
	assert.Equal(t, pm, target.End())
	assert.Equal(t, 6, target.PixelCount())
	assert.Zero(t, source.PixelCount())
	assert.GreaterOrEqual(t, target.Area(), targetArea)
	assert.GreaterOrEqual(t, target.Area(), sourceArea)

	resolved, err := c.Resolve(source.ID())
	require.NoError(t, err)
	assert.Same(t, target, resolved)

	assert.Equal(t, []Heritage{{Source: source.ID(), Target: target.ID(), T: pm}}, c.Heritages())

	err = c.Merge(source.ID(), target.ID())
	require.ErrorIs(t, err, ErrFireInvalid)

	err = c.Merge(target.ID(), target.ID())
	require.ErrorIs(t, err, ErrInvalidInput)

	err = c.Merge(99, target.ID())
	require.ErrorIs(t, err, ErrUnknownFire)
}

func TestCollection_MergeFollowsRedirects(t *testing.T) {
	t0 := ts(2023, 6, 1, firetime.AM)
	c := newTestCollection(t0, testEnv())
	a, _ := c.Ignite(appendPoints(c.Store(), t0, triangle...), SensorVIIRS)
	b, _ := c.Ignite(appendPoints(c.Store(), t0, offset(triangle, 10000)...), SensorVIIRS)
	d, _ := c.Ignite(appendPoints(c.Store(), t0, offset(triangle, 20000)...), SensorVIIRS)

	require.NoError(t, c.Merge(b.ID(), a.ID()))
	// d merges into b, which now redirects to a.
	require.NoError(t, c.Merge(d.ID(), b.ID()))

	assert.Equal(t, a.ID(), d.MergeID())
	assert.Equal(t, 9, a.PixelCount())
	assert.Len(t, c.Heritages(), 2)
}

func TestCollection_Partitions(t *testing.T) {
	c, fires := buildLifecycleCollection(t, testEnv())

	assert.Equal(t, []int{fires.active}, c.ActiveIDs())
	assert.Equal(t, []int{fires.sleeper}, c.SleeperIDs())
	assert.Equal(t, []int{fires.dead, fires.merged}, c.DeadIDs())
	assert.Equal(t, []int{fires.dead, fires.active, fires.sleeper}, c.ValidIDs())
	assert.Equal(t, []int{fires.active, fires.sleeper}, c.MayActiveIDs())

	want := Counts{Active: 1, Sleeper: 1, Dead: 2, Valid: 3, Total: 4}
	assert.Equal(t, want, c.Counts())
	assert.Len(t, c.Fires(), 4)
}

func TestCollection_CompactForNewYear(t *testing.T) {
	remaps := &recordingRemaps{}
	env := testEnv()
	env.Remaps = remaps
	c, fires := buildLifecycleCollection(t, env)

	activePixels := c.fires[fires.active].PixelCount()
	sleeperEnd := c.fires[fires.sleeper].End()
	before := len(c.MayActive())

	mapping, err := c.CompactForNewYear(context.Background(), 2024)
	require.NoError(t, err)

	want := []IDMapping{{OldID: fires.active, NewID: 0}, {OldID: fires.sleeper, NewID: 1}}
	if diff := cmp.Diff(want, mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, before, c.Len())
	assert.Equal(t, []int{0, 1}, ids(c.Fires()))
	assert.Empty(t, c.Heritages())
	assert.Equal(t, 2024, c.Year())

	assert.Equal(t, 2024, remaps.year)
	assert.Equal(t, "TestRegion", remaps.region)
	assert.Equal(t, mapping, remaps.mapping)

	f0, ok := c.Fire(0)
	require.True(t, ok)
	assert.Equal(t, activePixels, f0.PixelCount())
	assert.Equal(t, 0, f0.MergeID())
	f1, _ := c.Fire(1)
	assert.Equal(t, sleeperEnd, f1.End())
	assert.True(t, f1.MayReactivate())

	_, ok = c.Fire(fires.merged)
	assert.False(t, ok)

	// New fires continue the dense range.
	nf, err := c.Ignite(appendPoints(c.Store(), c.T(), offset(triangle, 90000)...), SensorVIIRS)
	require.NoError(t, err)
	assert.Equal(t, 2, nf.ID())
}

func TestCollection_CompactNumbersActiveBeforeSleepers(t *testing.T) {
	c := newTestCollection(ts(2023, 12, 20, firetime.AM), testEnv())
	older, err := c.Ignite(appendPoints(c.Store(), c.T(), triangle...), SensorVIIRS)
	require.NoError(t, err)

	require.NoError(t, c.BeginStep(ts(2023, 12, 30, firetime.AM)))
	newer, err := c.Ignite(appendPoints(c.Store(), c.T(), offset(triangle, 20000)...), SensorVIIRS)
	require.NoError(t, err)

	require.NoError(t, c.BeginStep(ts(2023, 12, 31, firetime.PM)))
	require.True(t, older.MayReactivate())
	require.True(t, newer.IsActive())

	mapping, err := c.CompactForNewYear(context.Background(), 2024)
	require.NoError(t, err)

	want := []IDMapping{{OldID: 1, NewID: 0}, {OldID: 0, NewID: 1}}
	if diff := cmp.Diff(want, mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	f0, _ := c.Fire(0)
	assert.True(t, f0.IsActive())
	f1, _ := c.Fire(1)
	assert.True(t, f1.MayReactivate())
}

func TestCollection_CompactPersistFailureLeavesState(t *testing.T) {
	env := testEnv()
	env.Remaps = &recordingRemaps{err: errors.New("disk full")}
	c, _ := buildLifecycleCollection(t, env)

	_, err := c.CompactForNewYear(context.Background(), 2024)
	require.Error(t, err)
	assert.Equal(t, 4, c.Len())
	assert.Len(t, c.Heritages(), 1)
	assert.Equal(t, 2023, c.Year())
}

func TestCollection_CompactEmpty(t *testing.T) {
	remaps := &recordingRemaps{}
	env := testEnv()
	env.Remaps = remaps
	c := newTestCollection(ts(2023, 12, 31, firetime.PM), env)

	mapping, err := c.CompactForNewYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Empty(t, mapping)
	assert.Nil(t, remaps.mapping)
}

func TestCollection_Positions(t *testing.T) {
	c := newTestCollection(ts(2023, 6, 1, firetime.AM), testEnv())
	c.AssignPositions([]int{4, 2, 9})

	pos, ok := c.PositionOf(9)
	require.True(t, ok)
	assert.Equal(t, 2, pos)
	_, ok = c.PositionOf(3)
	assert.False(t, ok)
}

type lifecycleFires struct {
	active, sleeper, dead, merged int
}

// buildLifecycleCollection returns a collection at 2023-05-25 AM holding one
// active, one sleeper, one dead and one merged-away fire.
func buildLifecycleCollection(t *testing.T, env Env) (*Collection, lifecycleFires) {
	t.Helper()
	t0 := ts(2023, 5, 1, firetime.AM)
	c := newTestCollection(t0, env)

	var fires lifecycleFires
	// Creation order differs from survivor order so the remap is not the identity.
	for _, dst := range []*int{&fires.dead, &fires.active, &fires.merged, &fires.sleeper} {
		f, err := c.Ignite(appendPoints(c.Store(), t0, offset(triangle, float64(c.Len())*20000)...), SensorVIIRS)
		require.NoError(t, err)
		*dst = f.ID()
	}

	t1 := ts(2023, 5, 12, firetime.AM)
	require.NoError(t, c.BeginStep(t1))
	sleeper, _ := c.Fire(fires.sleeper)
	require.NoError(t, sleeper.AddPixels(appendPoints(c.Store(), t1, geom.Point{X: float64(fires.sleeper)*20000 + 100, Y: 100})))

	t2 := ts(2023, 5, 22, firetime.AM)
	require.NoError(t, c.BeginStep(t2))
	active, _ := c.Fire(fires.active)
	require.NoError(t, active.AddPixels(appendPoints(c.Store(), t2, geom.Point{X: float64(fires.active)*20000 + 100, Y: 100})))
	require.NoError(t, c.Merge(fires.merged, fires.active))

	require.NoError(t, c.BeginStep(ts(2023, 5, 25, firetime.AM)))
	return c, fires
}
