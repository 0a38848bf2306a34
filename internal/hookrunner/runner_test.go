package hookrunner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pubhook "github.com/armatrix/agent-delegation-go/hook"
	"github.com/armatrix/agent-delegation-go/internal/hookrunner"
)

func noop(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
	return nil, nil
}

func blockHook(reason string) pubhook.Func {
	return func(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
		return &pubhook.Result{Block: true, Reason: reason}, nil
	}
}

func TestNewInvalidPattern(t *testing.T) {
	_, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.TaskStarted, Pattern: "[invalid", Hooks: []pubhook.Func{noop}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestEmptyRunnerReturnsNil(t *testing.T) {
	r, err := hookrunner.New(nil)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskStarted, WorkerID: "w"})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, r.Len())
}

func TestNilRunnerIsNoop(t *testing.T) {
	var r *hookrunner.Runner
	res, err := r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskStarted})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, r.Len())
}

func TestBasicMatchByEvent(t *testing.T) {
	called := false
	r, err := hookrunner.New([]pubhook.Matcher{
		{
			Event: pubhook.TaskCompleted,
			Hooks: []pubhook.Func{
				func(_ context.Context, in *pubhook.Input) (*pubhook.Result, error) {
					called = true
					assert.Equal(t, "be-1", in.WorkerID)
					assert.Equal(t, "task-1", in.TaskID)
					return nil, nil
				},
			},
		},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskCompleted, WorkerID: "be-1", TaskID: "task-1"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestEventMismatchSkips(t *testing.T) {
	called := false
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.TaskFailed, Hooks: []pubhook.Func{
			func(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
				called = true
				return nil, nil
			},
		}},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskCompleted, WorkerID: "w"})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestWorkerPatternMatching(t *testing.T) {
	var seen []string
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.StatusChanged, Pattern: "^qa-", Hooks: []pubhook.Func{
			func(_ context.Context, in *pubhook.Input) (*pubhook.Result, error) {
				seen = append(seen, in.WorkerID)
				return nil, nil
			},
		}},
	})
	require.NoError(t, err)

	for _, id := range []string{"qa-1", "fe-1", "qa-2"} {
		_, err := r.Run(context.Background(), &pubhook.Input{Event: pubhook.StatusChanged, WorkerID: id})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"qa-1", "qa-2"}, seen)
}

func TestFirstBlockWins(t *testing.T) {
	secondCalled := false
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.TaskStarted, Hooks: []pubhook.Func{blockHook("quota")}},
		{Event: pubhook.TaskStarted, Hooks: []pubhook.Func{
			func(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
				secondCalled = true
				return &pubhook.Result{Block: true, Reason: "later"}, nil
			},
		}},
	})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskStarted, WorkerID: "w"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Block)
	assert.Equal(t, "quota", res.Reason)
	assert.False(t, secondCalled)
}

func TestTimeoutEnforcement(t *testing.T) {
	r, err := hookrunner.New([]pubhook.Matcher{
		{
			Event:   pubhook.TaskStarted,
			Timeout: 20 * time.Millisecond,
			Hooks: []pubhook.Func{
				func(ctx context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
					<-ctx.Done()
					return nil, ctx.Err()
				},
			},
		},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskStarted, WorkerID: "w"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHookErrorStopsItsMatcher(t *testing.T) {
	sentinel := errors.New("hook failed")
	after := false
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.TaskFailed, Hooks: []pubhook.Func{
			func(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
				return nil, sentinel
			},
			func(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
				after = true
				return nil, nil
			},
		}},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskFailed, WorkerID: "w"})
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "TaskFailed hook matcher 0")
	assert.False(t, after)
}

func TestFailingMatcherDoesNotHideLaterBlock(t *testing.T) {
	audit := errors.New("audit sink down")
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.TaskStarted, Hooks: []pubhook.Func{
			func(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
				return nil, audit
			},
		}},
		{Event: pubhook.TaskStarted, Hooks: []pubhook.Func{blockHook("frozen")}},
	})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), &pubhook.Input{Event: pubhook.TaskStarted, WorkerID: "w"})
	assert.ErrorIs(t, err, audit)
	require.NotNil(t, res)
	assert.True(t, res.Block)
	assert.Equal(t, "frozen", res.Reason)
}

func TestHas(t *testing.T) {
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.TaskStarted, Hooks: []pubhook.Func{noop}},
		{Event: pubhook.TaskStarted, Pattern: "^qa-", Hooks: []pubhook.Func{noop}},
		{Event: pubhook.WorkerRegistered, Hooks: []pubhook.Func{noop}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Has(pubhook.TaskStarted))
	assert.False(t, r.Has(pubhook.TaskCancelled))

	var nilRunner *hookrunner.Runner
	assert.False(t, nilRunner.Has(pubhook.TaskStarted))
}

func TestHookPanicBecomesError(t *testing.T) {
	r, err := hookrunner.New([]pubhook.Matcher{
		{Event: pubhook.WorkerRegistered, Hooks: []pubhook.Func{
			func(_ context.Context, _ *pubhook.Input) (*pubhook.Result, error) {
				panic("kaboom")
			},
		}},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), &pubhook.Input{Event: pubhook.WorkerRegistered, WorkerID: "w"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
