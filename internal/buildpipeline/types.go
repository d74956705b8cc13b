package buildpipeline

import (
	"sync"
	"time"
)

// Stage describes one step of a page pipeline.
type Stage string

const (
	StageScan       Stage = "scan"
	StageSynthesize Stage = "synthesize"
	StageBundle     Stage = "bundle"
	StageAssemble   Stage = "assemble"
	StageWrite      Stage = "write"
)

// PageStages lists the per-page stages in execution order.
var PageStages = []Stage{StageScan, StageSynthesize, StageBundle, StageAssemble}

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	// StatusSkipped marks a page that found no actions and stopped after the scan.
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Event reports progress for a page (or for the whole build when Route is
// empty).
type Event struct {
	Route   string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
	Actions int
}

// ProgressSink consumes progress events. Build calls it from several
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

func emit(sink ProgressSink, evt Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(evt)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Add accumulates dur into stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] += dur
}

// Merge adds every stage of other into t.
func (t *Timings) Merge(other Timings) {
	for stage, dur := range other.stages {
		t.Add(stage, dur)
	}
}

func (t Timings) Has(stage Stage) bool {
	_, ok := t.stages[stage]
	return ok
}

func (t Timings) Duration(stage Stage) time.Duration {
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}

// Recorder keeps every event it sees; handy for tests and summaries.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnEvent(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ForRoute filters the recorded events of one route.
func (r *Recorder) ForRoute(route string) []Event {
	var out []Event
	for _, evt := range r.Events() {
		if evt.Route == route {
			out = append(out, evt)
		}
	}
	return out
}
