package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateServiceRejected(t *testing.T) {
	m := NewManager()
	h, err := m.NewServiceHandle("backup")
	require.NoError(t, err)
	defer h.Close()

	_, err = m.NewServiceHandle("backup")
	assert.Error(t, err)
}

func TestShutdownWaitsForServices(t *testing.T) {
	m := NewManager()
	h, err := m.NewServiceHandle("worker")
	require.NoError(t, err)

	go func() {
		defer h.Close()
		<-h.Done()
	}()

	assert.Equal(t, []string{"worker"}, m.Running())
	m.Shutdown()
	assert.Empty(t, m.WaitWithTimeout(time.Second))
	assert.ErrorIs(t, h.Err(), context.Canceled)
}

func TestWaitReportsStuckServices(t *testing.T) {
	m := NewManager()
	_, err := m.NewServiceHandle("stuck")
	require.NoError(t, err)
	h, err := m.NewServiceHandle("ok")
	require.NoError(t, err)
	h.Close()
	h.Close()

	m.Shutdown()
	assert.Equal(t, []string{"stuck"}, m.WaitWithTimeout(20*time.Millisecond))
}

func TestSleepReturnsEarlyOnShutdown(t *testing.T) {
	m := NewManager()
	h, err := m.NewServiceHandle("sleeper")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Sleep(time.Millisecond))

	m.Shutdown()
	start := time.Now()
	assert.Error(t, h.Sleep(time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}
