// Command validate replays a step-batch fixture through a fresh tracker and
// checks batch integrity, tracking invariants, and (optionally) agreement
// with a previously recorded summary fixture.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -steps-json data/mock/wildfire_steps_western_us.json \
//	  -summary-json data/mock/wildfire_summaries_western_us.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/observability"
	"github.com/couchcryptid/wildfire-tracker/internal/tracker"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	stepsJSON := flag.String("steps-json", "", "path to the step-batch fixture")
	summaryJSON := flag.String("summary-json", "", "optional path to recorded step summaries")
	flag.Parse()

	if *stepsJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*stepsJSON, *summaryJSON); code != 0 {
		os.Exit(code)
	}
}

func run(stepsPath, summaryPath string) int {
	// Set a fixed clock matching genmock.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== Wildfire Fixture Validation ===")
	fmt.Println()

	rawBatches, err := loadJSON[json.RawMessage](stepsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load steps JSON: %v\n", err)
		return 1
	}

	var recorded []domain.StepSummary
	if summaryPath != "" {
		recorded, err = loadJSON[domain.StepSummary](summaryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load summary JSON: %v\n", err)
			return 1
		}
	}

	integrity, batches := validateBatchIntegrity(rawBatches)
	replay, summaries := replayBatches(batches)
	phases := []*phase{
		integrity,
		replay,
		validateFireRecords(summaries),
	}
	if summaryPath != "" {
		phases = append(phases, validateRecordedSummaries(summaries, recorded))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Steps: %d batches, %d replayed, %d recorded\n", len(rawBatches), len(summaries), len(recorded))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ── Phase 1: batch integrity ──

func validateBatchIntegrity(raw []json.RawMessage) (*phase, []domain.StepBatch) {
	p := &phase{name: "Batch integrity"}
	batches := make([]domain.StepBatch, 0, len(raw))
	last := map[string]firetime.TimeStep{}

	for i, r := range raw {
		b, err := domain.ParseStepBatch(domain.RawEvent{Value: r})
		if err != nil {
			p.errorf("batch %d: %v", i, err)
			continue
		}
		if prev, ok := last[b.Region]; ok && !b.T.After(prev) {
			p.errorf("batch %d: %s step %s does not follow %s", i, b.Region, b.T, prev)
		}
		last[b.Region] = b.T
		checkPixelReferences(p, i, b)
		batches = append(batches, b)
	}
	return p, batches
}

// checkPixelReferences requires every pixel index to be in range and used by
// at most one assignment or cluster.
func checkPixelReferences(p *phase, i int, b domain.StepBatch) {
	used := make(map[int]string, len(b.Pixels))
	claim := func(owner string, idx int) {
		if idx < 0 || idx >= len(b.Pixels) {
			p.errorf("batch %d: %s references pixel %d of %d", i, owner, idx, len(b.Pixels))
			return
		}
		if prev, ok := used[idx]; ok {
			p.errorf("batch %d: pixel %d claimed by %s and %s", i, idx, prev, owner)
			return
		}
		used[idx] = owner
	}
	for _, a := range b.Assignments {
		for _, idx := range a.Pixels {
			claim(fmt.Sprintf("fire %d", a.FireID), idx)
		}
	}
	for c, cluster := range b.Clusters {
		for _, idx := range cluster {
			claim(fmt.Sprintf("cluster %d", c), idx)
		}
	}
}

// ── Phase 2: replay ──

func replayBatches(batches []domain.StepBatch) (*phase, []domain.StepSummary) {
	p := &phase{name: "Tracker replay"}
	tr, err := tracker.New(domain.Env{Params: domain.DefaultParams()}, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		p.errorf("create tracker: %v", err)
		return p, nil
	}

	summaries := make([]domain.StepSummary, 0, len(batches))
	prevTotal := map[string]int{}
	for i, b := range batches {
		s, err := tr.Apply(context.Background(), b)
		if err != nil {
			p.errorf("batch %d (%s): %v", i, b.T, err)
			continue
		}
		summaries = append(summaries, s)

		if len(s.Changes.Created) != len(b.Clusters) {
			p.errorf("batch %d: %d clusters ignited %d fires", i, len(b.Clusters), len(s.Changes.Created))
		}
		c := s.Counts
		if c.Active+c.Sleeper+c.Dead != c.Total {
			p.errorf("batch %d: partitions %d+%d+%d do not sum to total %d", i, c.Active, c.Sleeper, c.Dead, c.Total)
		}
		if c.Valid > c.Total {
			p.errorf("batch %d: valid %d exceeds total %d", i, c.Valid, c.Total)
		}
		if len(s.Remaps) == 0 && c.Total < prevTotal[b.Region] {
			p.errorf("batch %d: fire count dropped from %d to %d without a remap", i, prevTotal[b.Region], c.Total)
		}
		prevTotal[b.Region] = c.Total
	}
	return p, summaries
}

// ── Phase 3: fire records ──

func validateFireRecords(summaries []domain.StepSummary) *phase {
	p := &phase{name: "Fire record invariants"}
	minArea := domain.DefaultParams().NominalPixelArea
	for _, s := range summaries {
		for _, f := range s.Fires {
			if f.AreaKm2 < minArea {
				p.errorf("%s fire %d: area %.4f below nominal pixel area", s.T, f.ID, f.AreaKm2)
			}
			if f.NewPixels > f.Pixels {
				p.errorf("%s fire %d: %d new pixels of %d", s.T, f.ID, f.NewPixels, f.Pixels)
			}
			if f.End.Before(f.Start) {
				p.errorf("%s fire %d: ends %s before it starts %s", s.T, f.ID, f.End, f.Start)
			}
			if f.FireLineKm < 0 || f.PerimeterKm < 0 {
				p.errorf("%s fire %d: negative length", s.T, f.ID)
			}
		}
		for _, h := range s.Heritages {
			if h.Source == h.Target {
				p.errorf("%s: heritage folds fire %d into itself", s.T, h.Source)
			}
		}
	}
	return p
}

// ── Phase 4: recorded summaries ──

func validateRecordedSummaries(replayed, recorded []domain.StepSummary) *phase {
	p := &phase{name: "Recorded summary agreement"}
	if len(replayed) != len(recorded) {
		p.errorf("replayed %d summaries, recorded %d", len(replayed), len(recorded))
	}
	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.StepSummary{}, "StepID", "ProcessedAt"),
		cmpopts.EquateEmpty(),
		cmpopts.EquateApprox(0, 1e-9),
	}
	for i := range min(len(replayed), len(recorded)) {
		if diff := cmp.Diff(recorded[i], replayed[i], opts); diff != "" {
			p.errorf("step %s mismatch (-recorded +replayed):\n%s", recorded[i].T, diff)
		}
	}
	return p
}
