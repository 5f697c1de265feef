package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func passing(ctx context.Context) error { return nil }

func failing(ctx context.Context) error { return errors.New("connection refused") }

func TestCompositeHealthChecker_AllPassing(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("database", passing)
	c.AddNonCriticalCheck("counter_store", passing)

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Len(t, status.Checks, 2)
	assert.Equal(t, "v1", status.Version)
}

func TestCompositeHealthChecker_CriticalFailureBlocksReadiness(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("database", failing)

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Contains(t, status.Message, "database")
}

func TestCompositeHealthChecker_NonCriticalFailureKeepsReadiness(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("database", passing)
	// Counter store down: unhealthy but still ready, because writes keep
	// landing in the event log and reads replay it.
	c.AddNonCriticalCheck("counter_store", failing)

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.False(t, status.Checks["counter_store"].Healthy)
	assert.True(t, status.Checks["database"].Healthy)
}

func TestCompositeHealthChecker_NoChecksRegistered(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
}

func TestCompositeHealthChecker_RemoveCheck(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("database", failing)
	c.RemoveCheck("database")

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
}
