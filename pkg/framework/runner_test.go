package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())

	errs.Add(errors.New("a"))
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(errors.New("b"))
	require.EqualError(t, errs.Aggregate(), "multiple errors:\na\nb")
}

func TestRunnerStopsAllOnFirstExit(t *testing.T) {
	failure := errors.New("failed")
	r := NewRunner().Go(
		NamedRun("blocking", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		RunFunc(func(ctx context.Context) error {
			return failure
		}),
	)
	err := r.Wait()
	require.Error(t, err)
	require.Equal(t, []error{failure}, err.(*AggregatedError).Errors)
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner().Go(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Stop()
	require.NoError(t, r.Wait())
}

func TestRunWithContextCloser(t *testing.T) {
	t.Run("cancel closes", func(t *testing.T) {
		unblock := make(chan struct{})
		var closes int
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := RunWithContextCloser(ctx, closerFunc(func() error {
			closes++
			close(unblock)
			return nil
		}), func() error {
			<-unblock
			return errors.New("closed")
		})
		require.Equal(t, context.Canceled, err)
		require.Equal(t, 1, closes)
	})

	t.Run("return closes", func(t *testing.T) {
		var closes int
		err := RunWithContextCloser(context.Background(), closerFunc(func() error {
			closes++
			return nil
		}), func() error {
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, closes)
	})
}
