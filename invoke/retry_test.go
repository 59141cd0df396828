package invoke

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(o *Options) {
	o.InitialDelay = time.Millisecond
	o.MaxDelay = 5 * time.Millisecond
}

func TestDoRetryableExhaustsAttempts(t *testing.T) {
	attempts := 0

	_, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", Retryable(errors.New("rate limited"))
	}, fastRetry)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var invErr *Error
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 3, invErr.Attempt)
	assert.Equal(t, 3, invErr.MaxAttempts)
	assert.Contains(t, invErr.Message, "failed after 3 attempts")
}

func TestDoFatalAttemptsOnce(t *testing.T) {
	attempts := 0

	_, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", Fatal(errors.New("invalid api key"))
	}, fastRetry)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var invErr *Error
	require.ErrorAs(t, err, &invErr)
	assert.Contains(t, invErr.Message, "fatal error")
}

func TestDoUnknownAttemptsOnceWithDistinctMessage(t *testing.T) {
	attempts := 0

	_, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("something odd")
	}, fastRetry)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var invErr *Error
	require.ErrorAs(t, err, &invErr)
	assert.Contains(t, invErr.Message, "non-retryable error")
	assert.NotContains(t, invErr.Message, "fatal")
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0

	result, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", Retryable(errors.New("connection reset"))
		}
		return "ok", nil
	}, fastRetry)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestDoSyncMatchesDoSemantics(t *testing.T) {
	attempts := 0

	_, err := DoSync(func() (int, error) {
		attempts++
		return 0, Retryable(errors.New("upstream 503"))
	}, fastRetry, func(o *Options) { o.MaxAttempts = 4 })

	require.Error(t, err)
	assert.Equal(t, 4, attempts)

	var invErr *Error
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 4, invErr.MaxAttempts)
}

func TestDoCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := Do(ctx, func(ctx context.Context) (string, error) {
		attempts++
		cancel()
		return "", Retryable(errors.New("rate limited"))
	}, func(o *Options) {
		o.InitialDelay = time.Minute
		o.MaxDelay = time.Minute
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var invErr *Error
	require.ErrorAs(t, err, &invErr)
	assert.Contains(t, invErr.Message, "cancelled while waiting")
}

func TestBackoffNeverExceedsMax(t *testing.T) {
	max := 50 * time.Millisecond

	for i := 0; i < 1000; i++ {
		wait := Backoff(40*time.Millisecond, max)
		assert.LessOrEqual(t, wait, max)
		assert.GreaterOrEqual(t, wait, 40*time.Millisecond)
	}

	// A delay already past the cap is clamped.
	assert.Equal(t, max, Backoff(time.Second, max))
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Message: "operation failed", Err: cause, Attempt: 2, MaxAttempts: 3}

	assert.Contains(t, err.Error(), "operation failed (attempt 2/3)")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "*errors.errorString", err.CauseType())
	assert.ErrorIs(t, err, cause)
}

func TestWrapStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		class  Class
	}{
		{400, ClassFatal},
		{401, ClassFatal},
		{403, ClassFatal},
		{404, ClassFatal},
		{413, ClassFatal},
		{422, ClassFatal},
		{408, ClassRetryable},
		{429, ClassRetryable},
		{500, ClassRetryable},
		{502, ClassRetryable},
		{503, ClassRetryable},
		{302, ClassUnknown},
		{418, ClassUnknown},
	}

	for _, tt := range tests {
		pe := WrapStatus("openai", tt.status, errors.New("upstream"))
		assert.Equal(t, tt.class, pe.Class, "status %d", tt.status)
		assert.Equal(t, tt.class, Classify(pe), "status %d", tt.status)
	}
}

func TestClassifyWrappers(t *testing.T) {
	assert.Equal(t, ClassRetryable, Classify(Retryable(errors.New("x"))))
	assert.Equal(t, ClassFatal, Classify(Fatal(errors.New("x"))))
	assert.Equal(t, ClassUnknown, Classify(errors.New("x")))
	assert.Equal(t, ClassRetryable, Classify(context.DeadlineExceeded))
}
