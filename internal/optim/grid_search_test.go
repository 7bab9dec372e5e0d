package optim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/config"
	"github.com/san-kum/turretctl/internal/metrics"
	"github.com/san-kum/turretctl/internal/pid"
	"github.com/san-kum/turretctl/internal/sim"
)

func TestGridSearchRanksByMetric(t *testing.T) {
	var calls atomic.Int32
	eval := func(_ context.Context, g pid.Gains) (map[string]float64, error) {
		calls.Add(1)
		return map[string]float64{"cost": math.Abs(g.Kp-3) + g.Ki}, nil
	}

	gs := NewGridSearch([]float64{1, 2, 3, 4}, []float64{0, 0.5}, nil)
	trials, err := gs.Search(context.Background(), eval, "cost")
	require.NoError(t, err)

	assert.EqualValues(t, 8, calls.Load())
	require.Len(t, trials, 8)
	assert.Equal(t, pid.Gains{Kp: 3}, trials[0].Gains)
	for i := 1; i < len(trials); i++ {
		assert.LessOrEqual(t, trials[i-1].Score("cost"), trials[i].Score("cost"))
	}
}

func TestGridSearchFailedTrialsSortLast(t *testing.T) {
	eval := func(_ context.Context, g pid.Gains) (map[string]float64, error) {
		if g.Kp == 1 {
			return nil, errors.New("diverged")
		}
		return map[string]float64{"cost": g.Kp}, nil
	}

	trials, err := NewGridSearch([]float64{1, 2}, nil, nil).Search(context.Background(), eval, "cost")
	require.NoError(t, err)
	assert.Equal(t, 2.0, trials[0].Gains.Kp)
	assert.Error(t, trials[1].Err)

	_, err = NewGridSearch([]float64{1}, nil, nil).Search(context.Background(), eval, "cost")
	assert.Error(t, err)
}

func TestGridSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eval := func(context.Context, pid.Gains) (map[string]float64, error) {
		return map[string]float64{"cost": 1}, nil
	}
	_, err := NewGridSearch([]float64{1, 2}, nil, nil).Search(ctx, eval, "cost")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValues(t *testing.T) {
	v, err := Values(1, 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1.5, 2}, v)

	_, err = Values(2, 1, 0.5)
	assert.Error(t, err)
}

func TestGridSearchOverSimulation(t *testing.T) {
	eval := func(ctx context.Context, g pid.Gains) (map[string]float64, error) {
		cfg := config.DefaultConfig().WithSimFrames()
		cfg.Kp, cfg.Ki, cfg.Kd = g.Kp, g.Ki, g.Kd
		s, err := sim.New(cfg.ControllerConfig(), sim.Static{P: r3.Vec{X: 0.4, Y: 0.2, Z: 0.3}})
		if err != nil {
			return nil, err
		}
		for _, m := range metrics.Standard(0) {
			s.AddMetric(m)
		}
		res, err := s.Run(ctx, sim.Config{Duration: 5})
		if err != nil {
			return nil, err
		}
		return res.Metrics, nil
	}

	trials, err := NewGridSearch([]float64{1, 5}, []float64{0}, nil).Search(context.Background(), eval, "tracking_rms")
	require.NoError(t, err)
	assert.Equal(t, 5.0, trials[0].Gains.Kp)
}
