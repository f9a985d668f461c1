// Package domain models wildfire events tracked from satellite active-fire pixels.
//
// # Pixels and time
//
// Detections are binned into half-day steps (see package firetime) and stored
// in a per-region [pixel.Store]. A [Fire] never copies pixels: it filters the
// store by its id, and by step for "new" pixels. Accessors that read pixels are
// therefore linear in the store size.
//
// # Lifecycle
//
// With Δ = days since the fire last received pixels:
//
//	ACTIVE   !invalid && Δ ≤ GrowthWindow      (GROWING on its ignition step)
//	SLEEPER  !invalid && GrowthWindow < Δ ≤ DeathWindow
//	DEAD     invalid || Δ > DeathWindow
//	INVALID  invalidated by a merge or the static-source scan; terminal
//
// # Hulls
//
// A fire's hull is the union of the buffered hulls of its pixels, grown
// explicitly with [Fire.UpdateHull]. Union never shrinks area, so the tracked
// perimeter does not retreat when activity recedes.
//
// # Collections and years
//
// A [Collection] holds every fire of one region. Each step runs
// BeginStep → attribution → UpdateHull → RecordChanges → ScanForStaticAnomalies.
// At a year boundary [Collection.CompactForNewYear] rebuilds active and sleeper
// fires under dense ids 0..n-1, persists the old→new table, and forgets dead,
// invalid and merged fires.
package domain
