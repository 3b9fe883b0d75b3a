package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllHealthy(t *testing.T) {
	r := NewCheckerRegistry()
	r.Register(NewFuncChecker("a", func(ctx context.Context) error { return nil }))
	r.Register(NewFuncChecker("b", func(ctx context.Context) error { return nil }))

	h := r.Check(context.Background())

	assert.Equal(t, StatusHealthy, h.Status)
	require.Len(t, h.Checks, 2)
	assert.Equal(t, StatusHealthy, h.Checks["a"].Status)
	assert.Equal(t, StatusHealthy, h.Checks["b"].Status)
}

func TestRegistryOneFailureIsUnhealthy(t *testing.T) {
	r := NewCheckerRegistry()
	r.Register(NewFuncChecker("ok", func(ctx context.Context) error { return nil }))
	r.Register(NewFuncChecker("broken", func(ctx context.Context) error {
		return errors.New("sink unavailable")
	}))

	h := r.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, StatusHealthy, h.Checks["ok"].Status)
	assert.Equal(t, StatusUnhealthy, h.Checks["broken"].Status)
	assert.Equal(t, "sink unavailable", h.Checks["broken"].Message)
}

func TestRegistryEmptyIsHealthy(t *testing.T) {
	h := NewCheckerRegistry().Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Empty(t, h.Checks)
}
