package circuit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/s3drive/internal/storage/memory"
	"github.com/objectfs/s3drive/pkg/errors"
	"github.com/objectfs/s3drive/pkg/types"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(config Config) (*CircuitBreaker, *clock) {
	cb := NewCircuitBreaker("test", config)
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb.now = c.now
	return cb, c
}

func failing() error { return fmt.Errorf("connection reset") }
func passing() error { return nil }

func TestState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("s3", Config{})
	assert.Equal(t, uint32(5), cb.config.FailureThreshold)
	assert.Equal(t, 30*time.Second, cb.config.Cooldown)
	assert.Equal(t, uint32(1), cb.config.HalfOpenRequests)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "s3", cb.Name())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(Config{
		FailureThreshold: 3,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	assert.Error(t, cb.Execute("GetObject", failing))
	assert.Error(t, cb.Execute("GetObject", failing))
	assert.NoError(t, cb.Execute("GetObject", passing))
	assert.Equal(t, StateClosed, cb.State(), "a success resets the streak")

	for i := 0; i < 3; i++ {
		_ = cb.Execute("GetObject", failing)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute("GetObject", func() error { called = true; return nil })
	assert.False(t, called)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConnectionFailed))
	assert.Equal(t, uint32(1), cb.Counts().Rejected)
	assert.Equal(t, []string{"CLOSED>OPEN"}, transitions)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, c := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})

	_ = cb.Execute("PutObject", failing)
	require.Equal(t, StateOpen, cb.State())

	c.advance(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	// A failed probe reopens.
	_ = cb.Execute("PutObject", failing)
	assert.Equal(t, StateOpen, cb.State())

	c.advance(time.Minute)
	assert.NoError(t, cb.Execute("PutObject", passing))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, c := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Second})
	_ = cb.Execute("ListObjects", failing)
	c.advance(time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute("ListObjects", func() error { <-release; return nil })
	}()

	// The probe holds the only half-open slot until released.
	require.Eventually(t, func() bool { return cb.Counts().Requests == 2 }, time.Second, time.Millisecond)
	err := cb.Execute("ListObjects", passing)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConnectionFailed))

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestIsStoreFailure(t *testing.T) {
	assert.False(t, IsStoreFailure(nil))
	assert.False(t, IsStoreFailure(errors.NewError(errors.ErrCodeObjectNotFound, "missing")))
	assert.False(t, IsStoreFailure(errors.NewError(errors.ErrCodeAccessDenied, "denied")))
	assert.False(t, IsStoreFailure(errors.NewError(errors.ErrCodeOperationCanceled, "canceled")))
	assert.True(t, IsStoreFailure(errors.NewError(errors.ErrCodeStorageRead, "boom")))
	assert.True(t, IsStoreFailure(errors.NewError(errors.ErrCodeNetworkError, "HeadObject timed out")))
	assert.True(t, IsStoreFailure(fmt.Errorf("boom")))
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	_ = cb.Execute("HeadObject", failing)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	require.NoError(t, backend.PutObject(ctx, "docs/a.txt", []byte("x"), "text/plain"))

	assert.Same(t, backend, Guard(backend, nil))

	cb, _ := newTestBreaker(Config{FailureThreshold: 2})
	guarded := Guard(backend, cb)

	// Missing objects do not trip the breaker.
	for i := 0; i < 3; i++ {
		_, err := guarded.GetObject(ctx, "missing")
		assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))
	}
	assert.Equal(t, StateClosed, cb.State())

	backend.FailOn("ListObjects", "", fmt.Errorf("503 slow down"))
	for i := 0; i < 2; i++ {
		_, err := guarded.ListObjects(ctx, types.ListInput{Prefix: "docs/"})
		assert.Error(t, err)
	}
	assert.Equal(t, StateOpen, cb.State())

	backend.ResetCalls()
	_, err := guarded.GetObject(ctx, "docs/a.txt")
	assert.True(t, errors.IsCode(err, errors.ErrCodeConnectionFailed))
	assert.Empty(t, backend.Calls(), "rejected calls never reach the store")

	require.NoError(t, guarded.HealthCheck(ctx))
	assert.Equal(t, StateClosed, cb.State())
	data, err := guarded.GetObject(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
