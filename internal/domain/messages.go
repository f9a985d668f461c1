package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/pixel"
)

// ErrInvalidBatch is returned when a step batch fails decoding or validation.
var ErrInvalidBatch = errors.New("invalid step batch")

// RawEvent is an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// PixelInput is one detection in a step batch.
type PixelInput struct {
	Lat        float64   `json:"lat" validate:"gte=-90,lte=90"`
	Lon        float64   `json:"lon" validate:"gte=-180,lte=180"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Line       int       `json:"line" validate:"gte=0"`
	Sample     int       `json:"sample" validate:"gte=0"`
	FRP        float64   `json:"frp" validate:"gte=0"`
	DetectedAt time.Time `json:"detected_at"`
	Satellite  string    `json:"sat"`
}

// Pixel converts the input to a store row.
func (p PixelInput) Pixel() pixel.Pixel {
	return pixel.Pixel{
		Lat:        p.Lat,
		Lon:        p.Lon,
		X:          p.X,
		Y:          p.Y,
		Line:       p.Line,
		Sample:     p.Sample,
		FRP:        p.FRP,
		DetectedAt: p.DetectedAt,
		Satellite:  p.Satellite,
	}
}

// Assignment attributes batch pixels (by batch index) to an existing fire.
type Assignment struct {
	FireID int   `json:"fire_id" validate:"gte=0"`
	Pixels []int `json:"pixels" validate:"required,min=1"`
}

// MergeDirective tells the tracker to fold Source into Target.
type MergeDirective struct {
	Source int `json:"source" validate:"gte=0"`
	Target int `json:"target" validate:"gte=0,nefield=Source"`
}

// StepBatch is the attribution result for one region and time step. Pixel
// references in Assignments and Clusters are indices into Pixels.
type StepBatch struct {
	Region      string            `json:"region" validate:"required"`
	T           firetime.TimeStep `json:"t"`
	Sensor      Sensor            `json:"sensor" validate:"omitempty,oneof=viirs modis"`
	Pixels      []PixelInput      `json:"pixels" validate:"dive"`
	Assignments []Assignment      `json:"assignments" validate:"dive"`
	Clusters    [][]int           `json:"clusters"`
	Merges      []MergeDirective  `json:"merges" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateStepBatch, StepBatch{})
	return v
}

// validateStepBatch checks the time step and that every pixel reference is
// in range and used at most once across assignments and clusters.
func validateStepBatch(sl validator.StructLevel) {
	b := sl.Current().Interface().(StepBatch)
	if err := b.T.Validate(); err != nil {
		sl.ReportError(b.T, "T", "t", "timestep", "")
	}
	n := len(b.Pixels)
	seen := make(map[int]struct{}, n)
	inRange := func(idx []int) bool {
		ok := true
		for _, i := range idx {
			if i < 0 || i >= n {
				ok = false
				continue
			}
			if _, dup := seen[i]; dup {
				ok = false
			}
			seen[i] = struct{}{}
		}
		return ok
	}
	for i, a := range b.Assignments {
		if !inRange(a.Pixels) {
			sl.ReportError(a.Pixels, fmt.Sprintf("Assignments[%d].Pixels", i), "pixels", "pixelindex", strconv.Itoa(n))
		}
	}
	for i, c := range b.Clusters {
		if !inRange(c) {
			sl.ReportError(c, fmt.Sprintf("Clusters[%d]", i), "clusters", "pixelindex", strconv.Itoa(n))
		}
	}
}

// ParseStepBatch decodes and validates a step batch. A missing sensor defaults to VIIRS.
func ParseStepBatch(raw RawEvent) (StepBatch, error) {
	var b StepBatch
	if err := json.Unmarshal(raw.Value, &b); err != nil {
		return StepBatch{}, fmt.Errorf("%w: decode: %w", ErrInvalidBatch, err)
	}
	if b.Sensor == "" {
		b.Sensor = SensorVIIRS
	}
	if err := validate.Struct(b); err != nil {
		return StepBatch{}, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	return b, nil
}

// FireRecord is the externally visible state of one fire after a step.
type FireRecord struct {
	ID           int               `json:"id"`
	MergeID      int               `json:"merge_id"`
	State        State             `json:"state"`
	Sensor       Sensor            `json:"sensor"`
	Start        firetime.TimeStep `json:"t_st"`
	End          firetime.TimeStep `json:"t_ed"`
	AreaKm2      float64           `json:"area_km2"`
	PerimeterKm  float64           `json:"perimeter_km"`
	Pixels       int               `json:"pixels"`
	NewPixels    int               `json:"new_pixels"`
	MeanFRP      float64           `json:"mean_frp"`
	FireLineKm   float64           `json:"fire_line_km"`
	DurationDays float64           `json:"duration_days"`
	Ignition     *Geo              `json:"ignition,omitempty"`
	FireType     string            `json:"fire_type,omitempty"`
}

// NewFireRecord captures the derived values of f at its current step.
func NewFireRecord(f *Fire) FireRecord {
	rec := FireRecord{
		ID:           f.ID(),
		MergeID:      f.MergeID(),
		State:        f.State(),
		Sensor:       f.Sensor(),
		Start:        f.Start(),
		End:          f.End(),
		AreaKm2:      f.Area(),
		PerimeterKm:  f.Perimeter(),
		Pixels:       f.PixelCount(),
		NewPixels:    f.NewPixelCount(),
		MeanFRP:      f.MeanFRP(),
		FireLineKm:   f.FireLineLength(),
		DurationDays: f.Duration(),
		FireType:     f.FireTypeName(),
	}
	if _, geo, ok := f.IgnitionCenter(); ok {
		rec.Ignition = &geo
	}
	return rec
}

// StepSummary reports what one step batch changed in a region's collection.
type StepSummary struct {
	StepID      string            `json:"step_id"`
	Region      string            `json:"region"`
	T           firetime.TimeStep `json:"t"`
	ProcessedAt time.Time         `json:"processed_at"`
	Changes     Changes           `json:"changes"`
	Heritages   []Heritage        `json:"heritages,omitempty"`
	Counts      Counts            `json:"counts"`
	Fires       []FireRecord      `json:"fires"`
	Remaps      []Remap           `json:"remaps,omitempty"`
}

// Remap is the id table of one annual compaction; Year is the new id space.
type Remap struct {
	Year    int         `json:"year"`
	Mapping []IDMapping `json:"mapping"`
}

// NewStepSummary starts a summary with a fresh step id and processing time.
func NewStepSummary(region string, t firetime.TimeStep) StepSummary {
	return StepSummary{
		StepID:      uuid.NewString(),
		Region:      region,
		T:           t,
		ProcessedAt: clock.Now().UTC(),
	}
}

// SerializeStepSummary encodes a summary for the sink topic, keyed by region.
func SerializeStepSummary(s StepSummary) (OutputEvent, error) {
	value, err := json.Marshal(s)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize step summary: %w", err)
	}
	return OutputEvent{
		Key:   []byte(s.Region),
		Value: value,
		Headers: map[string]string{
			"region":       s.Region,
			"step":         s.T.String(),
			"step_id":      s.StepID,
			"processed_at": s.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
