package domain

import (
	"errors"
	"fmt"
)

// Sensor identifies the instrument that produced a fire's pixels.
type Sensor string

const (
	SensorVIIRS Sensor = "viirs"
	SensorMODIS Sensor = "modis"
)

// Params holds the tracking thresholds shared by a collection and its fires.
// Windows are in days (half-day granularity); distances are in metres.
type Params struct {
	GrowthWindow         float64 // max inactivity for an ACTIVE fire
	DeathWindow          float64 // max inactivity for a SLEEPER fire
	NominalPixelArea     float64 // km², floor for any fire's area
	ViirsBuffer          float64
	ModisBuffer          float64
	NearBoundaryDistance float64 // new pixels this close to the hull feed the fire line
	FireLineBuffer       float64 // added to the VIIRS buffer when clipping the fire line
	StaticDensity        float64 // px/km², static-source density threshold
	StaticMaxArea        float64 // km², static sources are smaller than this
}

// DefaultParams returns the standard tracking thresholds.
func DefaultParams() Params {
	return Params{
		GrowthWindow:         5,
		DeathWindow:          20,
		NominalPixelArea:     0.141,
		ViirsBuffer:          187.5,
		ModisBuffer:          500,
		NearBoundaryDistance: 200,
		FireLineBuffer:       500,
		StaticDensity:        20,
		StaticMaxArea:        20,
	}
}

// Validate checks the thresholds are usable.
func (p Params) Validate() error {
	var errs []error
	if p.GrowthWindow <= 0 {
		errs = append(errs, fmt.Errorf("growth window must be positive, got %v", p.GrowthWindow))
	}
	if p.DeathWindow <= p.GrowthWindow {
		errs = append(errs, fmt.Errorf("death window %v must exceed growth window %v", p.DeathWindow, p.GrowthWindow))
	}
	if p.NominalPixelArea <= 0 {
		errs = append(errs, fmt.Errorf("nominal pixel area must be positive, got %v", p.NominalPixelArea))
	}
	if p.ViirsBuffer <= 0 || p.ModisBuffer <= 0 {
		errs = append(errs, fmt.Errorf("sensor buffers must be positive, got viirs=%v modis=%v", p.ViirsBuffer, p.ModisBuffer))
	}
	if p.NearBoundaryDistance < 0 || p.FireLineBuffer < 0 {
		errs = append(errs, errors.New("fire line distances must not be negative"))
	}
	if p.StaticDensity <= 0 || p.StaticMaxArea <= 0 {
		errs = append(errs, errors.New("static anomaly thresholds must be positive"))
	}
	return errors.Join(errs...)
}

// Buffer returns the hull buffer for a sensor. Unknown sensors use the VIIRS buffer.
func (p Params) Buffer(s Sensor) float64 {
	if s == SensorMODIS {
		return p.ModisBuffer
	}
	return p.ViirsBuffer
}
