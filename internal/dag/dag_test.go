package dag

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func constant(v any) StageFunc {
	return func(context.Context, Results) (any, error) { return v, nil }
}

func TestValidate_Waves(t *testing.T) {
	g := New()
	require.NoError(t, g.Add("validate_source", nil, constant(nil)))
	require.NoError(t, g.Add("clean", []string{"validate_source"}, constant(nil)))
	require.NoError(t, g.Add("load_raw", []string{"clean"}, constant(nil)))
	require.NoError(t, g.Add("daily_orders", []string{"load_raw"}, constant(nil)))
	require.NoError(t, g.Add("monthly_revenue", []string{"load_raw"}, constant(nil)))
	require.NoError(t, g.Add("export", []string{"daily_orders", "monthly_revenue"}, constant(nil)))

	waves, err := g.Validate()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"validate_source"},
		{"clean"},
		{"load_raw"},
		{"daily_orders", "monthly_revenue"},
		{"export"},
	}, waves)
}

func TestValidate_Errors(t *testing.T) {
	g := New()
	require.NoError(t, g.Add("a", []string{"b"}, constant(nil)))
	require.NoError(t, g.Add("b", []string{"a"}, constant(nil)))
	require.NoError(t, g.Add("c", nil, constant(nil)))
	_, err := g.Validate()
	require.ErrorIs(t, err, ErrCycle)
	require.ErrorContains(t, err, "a, b")

	g = New()
	require.NoError(t, g.Add("a", []string{"missing"}, constant(nil)))
	_, err = g.Validate()
	require.ErrorIs(t, err, ErrUnknownDep)

	require.ErrorIs(t, g.Add("a", nil, constant(nil)), ErrDuplicateStage)
	require.Error(t, g.Add("", nil, constant(nil)))
	require.Error(t, g.Add("x", nil, nil))
}

func TestRun_PassesOutputsDownstream(t *testing.T) {
	g := New()
	require.NoError(t, g.Add("load", nil, constant(int64(3))))
	require.NoError(t, g.Add("double", []string{"load"}, func(_ context.Context, in Results) (any, error) {
		n, ok := Output[int64](in, "load")
		if !ok {
			return nil, errors.New("no load output")
		}
		return n * 2, nil
	}))

	rep, err := g.Run(context.Background(), nil)
	require.NoError(t, err)
	v, ok := Output[int64](rep.Outputs, "double")
	require.True(t, ok)
	require.EqualValues(t, 6, v)
	sr, ok := rep.Stage("double")
	require.True(t, ok)
	require.Equal(t, StatusSucceeded, sr.Status)
}

func TestRun_WaveRunsConcurrently(t *testing.T) {
	var (
		running int32
		peak    int32
		gate    = make(chan struct{})
		once    sync.Once
	)
	branch := func(context.Context, Results) (any, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		if n == 2 {
			once.Do(func() { close(gate) })
		}
		select {
		case <-gate:
		case <-time.After(2 * time.Second):
		}
		atomic.AddInt32(&running, -1)
		return nil, nil
	}

	g := New()
	require.NoError(t, g.Add("root", nil, constant(nil)))
	require.NoError(t, g.Add("left", []string{"root"}, branch))
	require.NoError(t, g.Add("right", []string{"root"}, branch))
	_, err := g.Run(context.Background(), nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&peak))
}

/*
TestRun_FailFast verifies that a failing stage cancels its sibling, later
stages are skipped, and the stage error is returned unchanged.
*/
func TestRun_FailFast(t *testing.T) {
	boom := errors.New("boom")
	var downstreamRan atomic.Bool

	g := New()
	require.NoError(t, g.Add("root", nil, constant(nil)))
	require.NoError(t, g.Add("bad", []string{"root"}, func(context.Context, Results) (any, error) {
		return nil, boom
	}))
	require.NoError(t, g.Add("slow", []string{"root"}, func(ctx context.Context, _ Results) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	require.NoError(t, g.Add("after", []string{"bad", "slow"}, func(context.Context, Results) (any, error) {
		downstreamRan.Store(true)
		return nil, nil
	}))

	var observed []StageReport
	var mu sync.Mutex
	rep, err := g.Run(context.Background(), func(sr StageReport) {
		mu.Lock()
		observed = append(observed, sr)
		mu.Unlock()
	})
	require.ErrorIs(t, err, boom)
	require.False(t, downstreamRan.Load())
	require.Len(t, observed, 4)

	bad, _ := rep.Stage("bad")
	slow, _ := rep.Stage("slow")
	after, _ := rep.Stage("after")
	require.Equal(t, StatusFailed, bad.Status)
	require.Equal(t, StatusCanceled, slow.Status)
	require.Equal(t, StatusSkipped, after.Status)
}

func TestRun_ParentContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := New()
	require.NoError(t, g.Add("wait", nil, func(ctx context.Context, _ Results) (any, error) {
		return nil, ctx.Err()
	}))
	rep, err := g.Run(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	sr, _ := rep.Stage("wait")
	require.Equal(t, StatusFailed, sr.Status)
}
