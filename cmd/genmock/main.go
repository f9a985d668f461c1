// Command genmock reads a NASA FIRMS active-fire CSV export and generates
// step-batch fixtures for the tracker test suites. Detections are binned into
// half-day steps and attributed against the live state of a real tracker, so
// fire ids in the fixture match what the pipeline will assign.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/firms/fire_nrt_SV-C2_western_us.csv \
//	  -out data/mock/wildfire_steps_western_us.json \
//	  -summary-out data/mock/wildfire_summaries_western_us.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/observability"
	"github.com/couchcryptid/wildfire-tracker/internal/tracker"
)

const earthRadiusM = 6371008.8

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "FIRMS active-fire CSV export")
	out := flag.String("out", "", "output path for the step-batch fixture")
	summaryOut := flag.String("summary-out", "", "optional output path for the tracker's step summaries")
	region := flag.String("region", "WesternUS", "region name for every batch")
	radius := flag.Float64("radius", 1500, "attribution radius in metres")
	sensor := flag.String("sensor", string(domain.SensorVIIRS), "sensor of the export (viirs or modis)")
	flag.Parse()

	if *csvPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -out")
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	detections, err := readDetections(*csvPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *csvPath, err)
	}
	log.Printf("read %d detections", len(detections))

	tr, err := tracker.New(domain.Env{Params: domain.DefaultParams()}, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}

	steps := binSteps(detections, domain.Sensor(*sensor))
	batches := make([]domain.StepBatch, 0, len(steps))
	summaries := make([]domain.StepSummary, 0, len(steps))
	for _, step := range steps {
		b := attribute(tr, *region, step, *radius)
		s, err := tr.Apply(context.Background(), b)
		if err != nil {
			return fmt.Errorf("apply %s: %w", step.t, err)
		}
		batches = append(batches, b)
		summaries = append(summaries, s)
		log.Printf("%s: %d pixels, created=%v expanded=%v merged=%v",
			step.t, len(b.Pixels), s.Changes.Created, s.Changes.Expanded, s.Changes.Merged)
	}

	if err := writeJSON(*out, batches); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	if *summaryOut != "" {
		if err := writeJSON(*summaryOut, summaries); err != nil {
			return fmt.Errorf("writing summaries: %w", err)
		}
		log.Printf("wrote summaries: %s", *summaryOut)
	}

	printStats(summaries)
	return nil
}

type stepPixels struct {
	t      firetime.TimeStep
	sensor domain.Sensor
	pixels []domain.PixelInput
}

// readDetections parses a FIRMS CSV and projects every detection onto a
// local equirectangular plane centred on the mean location.
func readDetections(path string) ([]domain.PixelInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[h] = i
	}

	pixels := make([]domain.PixelInput, 0, len(rows)-1)
	for n, row := range rows[1:] {
		p, err := parseRow(row, colIdx)
		if err != nil {
			log.Printf("row %d skipped: %v", n+2, err)
			continue
		}
		pixels = append(pixels, p)
	}
	project(pixels)
	return pixels, nil
}

func parseRow(row []string, idx map[string]int) (domain.PixelInput, error) {
	lat, err := strconv.ParseFloat(get(row, idx, "latitude"), 64)
	if err != nil {
		return domain.PixelInput{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(get(row, idx, "longitude"), 64)
	if err != nil {
		return domain.PixelInput{}, fmt.Errorf("longitude: %w", err)
	}
	hhmm := get(row, idx, "acq_time")
	if n := len(hhmm); n < 4 {
		hhmm = strings.Repeat("0", 4-n) + hhmm
	}
	detected, err := time.Parse("2006-01-02 1504", get(row, idx, "acq_date")+" "+hhmm)
	if err != nil {
		return domain.PixelInput{}, fmt.Errorf("acquisition time: %w", err)
	}
	frp, _ := strconv.ParseFloat(get(row, idx, "frp"), 64)
	return domain.PixelInput{
		Lat:        lat,
		Lon:        lon,
		FRP:        max(frp, 0),
		DetectedAt: detected,
		Satellite:  get(row, idx, "satellite"),
	}, nil
}

func project(pixels []domain.PixelInput) {
	if len(pixels) == 0 {
		return
	}
	var lat0, lon0 float64
	for _, p := range pixels {
		lat0 += p.Lat
		lon0 += p.Lon
	}
	lat0 /= float64(len(pixels))
	lon0 /= float64(len(pixels))
	cos0 := math.Cos(lat0 * math.Pi / 180)
	for i := range pixels {
		pixels[i].X = math.Round(earthRadiusM * (pixels[i].Lon - lon0) * math.Pi / 180 * cos0)
		pixels[i].Y = math.Round(earthRadiusM * (pixels[i].Lat - lat0) * math.Pi / 180)
	}
}

func binSteps(pixels []domain.PixelInput, sensor domain.Sensor) []stepPixels {
	byStep := map[firetime.TimeStep][]domain.PixelInput{}
	for _, p := range pixels {
		t := firetime.FromTime(p.DetectedAt)
		byStep[t] = append(byStep[t], p)
	}
	steps := make([]stepPixels, 0, len(byStep))
	for t, ps := range byStep {
		steps = append(steps, stepPixels{t: t, sensor: sensor, pixels: ps})
	}
	slices.SortFunc(steps, func(a, b stepPixels) int { return a.t.Compare(b.t) })
	return steps
}

// attribute builds a batch by matching each pixel to the live fires within
// radius. Pixels near two fires fold the younger fire into the older one;
// unmatched pixels are single-linkage clustered into ignitions.
func attribute(tr *tracker.Tracker, region string, step stepPixels, radius float64) domain.StepBatch {
	b := domain.StepBatch{Region: region, T: step.t, Sensor: step.sensor, Pixels: step.pixels}

	var live []*domain.Fire
	if c, ok := tr.Collection(region); ok {
		live = c.MayActive()
	}

	byFire := map[int][]int{}
	merged := map[[2]int]bool{}
	var unmatched []int
	for i, p := range step.pixels {
		var hits []int
		for _, f := range live {
			if nearAny(p, f, radius) {
				hits = append(hits, f.ID())
			}
		}
		if len(hits) == 0 {
			unmatched = append(unmatched, i)
			continue
		}
		slices.Sort(hits)
		byFire[hits[0]] = append(byFire[hits[0]], i)
		for _, src := range hits[1:] {
			key := [2]int{src, hits[0]}
			if !merged[key] {
				merged[key] = true
				b.Merges = append(b.Merges, domain.MergeDirective{Source: src, Target: hits[0]})
			}
		}
	}

	ids := make([]int, 0, len(byFire))
	for id := range byFire {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		b.Assignments = append(b.Assignments, domain.Assignment{FireID: id, Pixels: byFire[id]})
	}
	b.Clusters = cluster(step.pixels, unmatched, radius)
	return b
}

func nearAny(p domain.PixelInput, f *domain.Fire, radius float64) bool {
	for _, q := range f.Pixels() {
		if math.Hypot(p.X-q.X, p.Y-q.Y) <= radius {
			return true
		}
	}
	return false
}

func cluster(pixels []domain.PixelInput, members []int, radius float64) [][]int {
	seen := make(map[int]bool, len(members))
	var clusters [][]int
	for _, start := range members {
		if seen[start] {
			continue
		}
		seen[start] = true
		group := []int{start}
		for k := 0; k < len(group); k++ {
			a := pixels[group[k]]
			for _, j := range members {
				if !seen[j] && math.Hypot(a.X-pixels[j].X, a.Y-pixels[j].Y) <= radius {
					seen[j] = true
					group = append(group, j)
				}
			}
		}
		slices.Sort(group)
		clusters = append(clusters, group)
	}
	return clusters
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(summaries []domain.StepSummary) {
	if len(summaries) == 0 {
		return
	}
	var created, merged int
	for _, s := range summaries {
		created += len(s.Changes.Created)
		merged += len(s.Changes.Merged)
	}
	last := summaries[len(summaries)-1].Counts

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Steps: %d (%s .. %s)\n", len(summaries), summaries[0].T, summaries[len(summaries)-1].T)
	fmt.Printf("Fires created: %d, merge steps: %d\n", created, merged)
	fmt.Printf("Final counts: active=%d sleeper=%d dead=%d valid=%d total=%d\n",
		last.Active, last.Sleeper, last.Dead, last.Valid, last.Total)
}
