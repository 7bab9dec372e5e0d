package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/turretctl/internal/pid"
)

// Evaluate runs one trial with the given gains and returns its metrics.
type Evaluate func(ctx context.Context, g pid.Gains) (map[string]float64, error)

type Trial struct {
	Gains   pid.Gains
	Metrics map[string]float64
	Err     error
}

// Score is the ranked metric, +Inf for a failed trial or a missing metric.
func (t Trial) Score(metric string) float64 {
	if t.Err != nil {
		return math.Inf(1)
	}
	v, ok := t.Metrics[metric]
	if !ok || math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// GridSearch tries every combination of Kp, Ki and Kd. An empty axis
// contributes a single zero.
type GridSearch struct {
	Kp, Ki, Kd []float64
	Workers    int
}

func NewGridSearch(kp, ki, kd []float64) *GridSearch {
	return &GridSearch{Kp: kp, Ki: ki, Kd: kd, Workers: runtime.GOMAXPROCS(0)}
}

func axis(v []float64) []float64 {
	if len(v) == 0 {
		return []float64{0}
	}
	return v
}

func (g *GridSearch) candidates() []pid.Gains {
	var out []pid.Gains
	for _, kp := range axis(g.Kp) {
		for _, ki := range axis(g.Ki) {
			for _, kd := range axis(g.Kd) {
				out = append(out, pid.Gains{Kp: kp, Ki: ki, Kd: kd})
			}
		}
	}
	return out
}

// Search evaluates every candidate and returns all trials sorted by metric,
// best first. Individual trial failures are recorded, not returned; only a
// cancelled context stops the search.
func (g *GridSearch) Search(ctx context.Context, eval Evaluate, metric string) ([]Trial, error) {
	cands := g.candidates()
	trials := make([]Trial, len(cands))

	grp, ctx := errgroup.WithContext(ctx)
	if g.Workers > 0 {
		grp.SetLimit(g.Workers)
	}
	for i, gains := range cands {
		i, gains := i, gains
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := eval(ctx, gains)
			trials[i] = Trial{Gains: gains, Metrics: m, Err: err}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(trials, func(i, j int) bool {
		return trials[i].Score(metric) < trials[j].Score(metric)
	})
	if len(trials) == 0 || math.IsInf(trials[0].Score(metric), 1) {
		return trials, fmt.Errorf("optim: no trial produced %s", metric)
	}
	return trials, nil
}

// Values parses a list of the form start:stop:step into its points,
// inclusive of stop.
func Values(start, stop, step float64) ([]float64, error) {
	if step <= 0 || stop < start {
		return nil, fmt.Errorf("optim: bad range %g:%g:%g", start, stop, step)
	}
	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out, nil
}
