package filestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthState_Disabled(t *testing.T) {
	h := newHealthState(false, false, 30*time.Second)
	snap := h.snapshot(time.Now())
	assert.Equal(t, StatusDisabled, snap.Status)
}

func TestHealthState_InlineCountsAsConnected(t *testing.T) {
	h := newHealthState(true, true, 30*time.Second)
	snap := h.snapshot(time.Now())
	assert.True(t, snap.Connected)
	assert.Equal(t, StatusOK, snap.Status)
}

func TestHealthState_ErrorWhenNotConnectedAndNotInline(t *testing.T) {
	h := newHealthState(true, false, 30*time.Second)
	snap := h.snapshot(time.Now())
	assert.False(t, snap.Connected)
	assert.Equal(t, StatusError, snap.Status)
}

func TestHealthState_StalledWhenLagExceedsThreshold(t *testing.T) {
	h := newHealthState(true, false, 5*time.Second)
	h.markConnected()
	h.recordObserved(time.Now().Add(-1 * time.Minute))
	snap := h.snapshot(time.Now())
	assert.Equal(t, StatusStalled, snap.Status)
	assert.Greater(t, snap.LagSeconds, 5.0)
}

func TestHealthState_OKWhenLagWithinThreshold(t *testing.T) {
	h := newHealthState(true, false, 30*time.Second)
	h.markConnected()
	h.recordObserved(time.Now().Add(-1 * time.Second))
	snap := h.snapshot(time.Now())
	assert.Equal(t, StatusOK, snap.Status)
}

func TestHealthState_CountersAccumulate(t *testing.T) {
	h := newHealthState(true, false, 30*time.Second)
	h.recordConnectRetry()
	h.recordConnectRetry()
	h.recordProcessingFailure()
	snap := h.snapshot(time.Now())
	assert.Equal(t, uint64(2), snap.ConnectRetries)
	assert.Equal(t, uint64(1), snap.ProcessingFailures)
}
