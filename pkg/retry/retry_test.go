package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errTerminal  = errors.New("terminal")
)

func testPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		Retryable:  func(err error) bool { return errors.Is(err, errTransient) },
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), testPolicy(3), nil, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	var attempts []int
	notify := func(err error, attempt int, wait time.Duration) {
		attempts = append(attempts, attempt)
	}

	got, err := Do(context.Background(), testPolicy(3), notify, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_StopsOnTerminalError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testPolicy(3), nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, errTerminal
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errTerminal)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsRetryBudget(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testPolicy(2), nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_NilRetryableIsTerminal(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, Policy{MaxRetries: 5, BaseDelay: time.Hour, Retryable: func(error) bool { return true }}, nil,
		func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, errTransient
		})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DelaysDouble(t *testing.T) {
	p := Policy{MaxRetries: 4, BaseDelay: time.Second}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, p.Delays())
}

func TestPolicy_DelaysCapped(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 3 * time.Second}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, p.Delays())
}
