package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRate(t *testing.T) {
	assert.Equal(t, 2000.0, rate(1000, 500*time.Millisecond))
	assert.Equal(t, 0.5, rate(1, 2*time.Second))
	// sub-second intervals used to truncate to zero and divide by it
	assert.InDelta(t, 100.0, rate(1, 10*time.Millisecond), 1e-9)
	assert.Zero(t, rate(10, 0))
}
