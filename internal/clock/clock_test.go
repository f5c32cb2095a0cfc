package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualAdvance(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewManual(start)

	assert.Equal(t, start, c.Now())
	got := c.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), got)
	assert.Equal(t, got, c.Now())
}

func TestSystemMovesForward(t *testing.T) {
	c := System()
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}
