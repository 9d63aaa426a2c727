package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{
			name:    "zero attempt",
			policy:  Policy{InitialDelay: time.Second, BackoffStrategy: BackoffFixed},
			attempt: 0,
			want:    0,
		},
		{
			name:    "fixed backoff",
			policy:  Policy{InitialDelay: time.Second, BackoffStrategy: BackoffFixed},
			attempt: 3,
			want:    time.Second,
		},
		{
			name:    "linear backoff",
			policy:  Policy{InitialDelay: 300 * time.Millisecond, BackoffStrategy: BackoffLinear},
			attempt: 2,
			want:    600 * time.Millisecond,
		},
		{
			name:    "exponential backoff",
			policy:  Policy{InitialDelay: time.Second, BackoffStrategy: BackoffExponential},
			attempt: 3,
			want:    4 * time.Second,
		},
		{
			name:    "capped at max delay",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: 2 * time.Second, BackoffStrategy: BackoffExponential},
			attempt: 5,
			want:    2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.CalculateDelay(tt.attempt))
		})
	}
}

func TestExecuteWithResultSucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := ExecuteWithResult(context.Background(), CollaboratorPolicy(), nil, func(_ context.Context, _ int) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithResultRetriesTransientErrors(t *testing.T) {
	policy := Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffStrategy: BackoffFixed}
	transient := errors.New("transient")

	calls := 0
	result, err := ExecuteWithResult(context.Background(), policy, func(error) bool { return true }, func(_ context.Context, _ int) (int, error) {
		calls++
		if calls < 3 {
			return 0, transient
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithResultStopsOnNonRetryableError(t *testing.T) {
	policy := Policy{MaxRetries: 5, InitialDelay: time.Millisecond, BackoffStrategy: BackoffFixed}
	fatal := errors.New("definitive rejection")

	calls := 0
	_, err := ExecuteWithResult(context.Background(), policy, func(error) bool { return false }, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithResultExhaustsRetries(t *testing.T) {
	policy := Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffStrategy: BackoffFixed}
	transient := errors.New("still down")

	calls := 0
	_, err := ExecuteWithResult(context.Background(), policy, func(error) bool { return true }, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, transient
	})
	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestExecuteWithResultHonorsContextCancellation(t *testing.T) {
	policy := Policy{MaxRetries: 10, InitialDelay: time.Hour, BackoffStrategy: BackoffFixed}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := ExecuteWithResult(ctx, policy, func(error) bool { return true }, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation during backoff must stop further attempts")
}

func TestNoRetryPolicy(t *testing.T) {
	calls := 0
	_, err := ExecuteWithResult(context.Background(), NoRetryPolicy(), func(error) bool { return true }, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
