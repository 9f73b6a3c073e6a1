// Package dag runs named stages in dependency order.
//
// Stages declare their upstream stages by name. Validate orders them into
// waves with Kahn's algorithm; Run executes one wave at a time, running the
// stages of a wave concurrently. The first failing stage cancels the rest of
// its wave and every later wave is skipped.
package dag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrDuplicateStage = errors.New("dag: duplicate stage")
	ErrUnknownDep     = errors.New("dag: unknown dependency")
	ErrCycle          = errors.New("dag: cycle detected")
)

// Results holds the outputs of finished stages, keyed by stage name.
type Results map[string]any

// Output returns the output of stage name as a T.
func Output[T any](r Results, name string) (T, bool) {
	v, ok := r[name].(T)
	return v, ok
}

// StageFunc does a stage's work. in contains the outputs of every stage that
// finished before this stage's wave started.
type StageFunc func(ctx context.Context, in Results) (any, error)

type stage struct {
	name string
	deps []string
	fn   StageFunc
}

// Graph is a set of stages and their dependencies. Build it from one
// goroutine; Run may then be called concurrently.
type Graph struct {
	stages []stage
	index  map[string]int
}

func New() *Graph {
	return &Graph{index: map[string]int{}}
}

// Add registers a stage. Dependencies may be added later but must exist by
// the time the graph is validated.
func (g *Graph) Add(name string, deps []string, fn StageFunc) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("dag: stage name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("dag: stage %q has no function", name)
	}
	if _, ok := g.index[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStage, name)
	}
	g.index[name] = len(g.stages)
	g.stages = append(g.stages, stage{name: name, deps: append([]string(nil), deps...), fn: fn})
	return nil
}

// Stages returns stage names in insertion order.
func (g *Graph) Stages() []string {
	out := make([]string, len(g.stages))
	for i, s := range g.stages {
		out[i] = s.name
	}
	return out
}

// Validate checks dependencies and returns the execution waves. Within a wave
// stages keep insertion order, so the plan is deterministic.
func (g *Graph) Validate() ([][]string, error) {
	indeg := make([]int, len(g.stages))
	downstream := make([][]int, len(g.stages))
	for i, s := range g.stages {
		for _, d := range s.deps {
			j, ok := g.index[d]
			if !ok {
				return nil, fmt.Errorf("%w: stage %q depends on %q", ErrUnknownDep, s.name, d)
			}
			indeg[i]++
			downstream[j] = append(downstream[j], i)
		}
	}

	var (
		waves [][]string
		ready []int
		done  int
	)
	for i := range g.stages {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		wave := make([]string, len(ready))
		var next []int
		for k, i := range ready {
			wave[k] = g.stages[i].name
			for _, j := range downstream[i] {
				indeg[j]--
				if indeg[j] == 0 {
					next = append(next, j)
				}
			}
		}
		done += len(ready)
		waves = append(waves, wave)
		sortByIndex(next)
		ready = next
	}
	if done != len(g.stages) {
		var stuck []string
		for i, s := range g.stages {
			if indeg[i] > 0 {
				stuck = append(stuck, s.name)
			}
		}
		return nil, fmt.Errorf("%w among %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return waves, nil
}

func sortByIndex(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] < xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// Status is the outcome of one stage in a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
	StatusSkipped   Status = "skipped"
)

// StageReport describes how one stage went.
type StageReport struct {
	Name     string
	Status   Status
	Duration time.Duration
	Err      error
}

// Report is the outcome of Run: stage reports in plan order plus the
// outputs of the stages that succeeded.
type Report struct {
	Stages  []StageReport
	Outputs Results
}

// Stage returns the report for name.
func (r *Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// Observer is notified after each stage finishes. It may be called from
// several goroutines at once.
type Observer func(StageReport)

// Run validates the graph and executes it. The returned error is the first
// stage error (or the validation error); the report is always non-nil.
func (g *Graph) Run(ctx context.Context, observe Observer) (*Report, error) {
	rep := &Report{Outputs: Results{}}
	waves, err := g.Validate()
	if err != nil {
		return rep, err
	}
	if observe == nil {
		observe = func(StageReport) {}
	}

	var failure error
	for _, wave := range waves {
		if failure != nil {
			for _, name := range wave {
				sr := StageReport{Name: name, Status: StatusSkipped}
				rep.Stages = append(rep.Stages, sr)
				observe(sr)
			}
			continue
		}

		in := make(Results, len(rep.Outputs))
		for k, v := range rep.Outputs {
			in[k] = v
		}

		var mu sync.Mutex
		reports := make([]StageReport, len(wave))
		eg, egCtx := errgroup.WithContext(ctx)
		for k, name := range wave {
			s := g.stages[g.index[name]]
			eg.Go(func() error {
				start := time.Now()
				out, err := s.fn(egCtx, in)
				sr := StageReport{Name: s.name, Status: StatusSucceeded, Duration: time.Since(start), Err: err}
				if err != nil {
					sr.Status = StatusFailed
					if errors.Is(err, context.Canceled) && egCtx.Err() != nil && ctx.Err() == nil {
						sr.Status = StatusCanceled
					}
				}
				mu.Lock()
				reports[k] = sr
				if err == nil {
					rep.Outputs[s.name] = out
				}
				mu.Unlock()
				observe(sr)
				return err
			})
		}
		failure = eg.Wait()
		rep.Stages = append(rep.Stages, reports...)
	}
	return rep, failure
}
