package riak

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pior/riak/pb"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuitBreakerConfig(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("10.0.0.1:8087")
	require.NotNil(t, cb)
	assert.Equal(t, "10.0.0.1:8087", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsOnConnectionErrors(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("node")

	for range 3 {
		_, err := cb.Execute(func() (struct{}, error) {
			return struct{}{}, fmt.Errorf("read: %w", ErrConnectionClosed)
		})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestCircuitBreaker_NeedsMinimumRequests(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("node")

	for range 2 {
		_, _ = cb.Execute(func() (struct{}, error) {
			return struct{}{}, errors.New("network down")
		})
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestIsBreakerSuccess(t *testing.T) {
	assert.True(t, isBreakerSuccess(nil))
	assert.True(t, isBreakerSuccess(&pb.ResponseError{Message: "notfound"}))
	assert.True(t, isBreakerSuccess(&InvalidOptionError{Field: "Key"}))
	assert.True(t, isBreakerSuccess(context.Canceled))

	assert.False(t, isBreakerSuccess(context.DeadlineExceeded))
	assert.False(t, isBreakerSuccess(&pb.ProtocolError{Message: "bad"}))
	assert.False(t, isBreakerSuccess(&ConnectError{Reason: ConnectTimeout}))
	assert.False(t, isBreakerSuccess(ErrConnectionClosed))
}
