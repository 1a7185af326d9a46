package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_Now(t *testing.T) {
	c := NewRealClock()
	before := time.Now()
	now := c.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestMockClock_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("waiter fired before clock advanced")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("waiter fired before deadline")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case firedAt := <-ch:
		assert.Equal(t, start.Add(10*time.Second), firedAt)
	case <-time.After(time.Second):
		t.Fatal("waiter did not fire at deadline")
	}
}

func TestMockClock_ZeroDurationFiresImmediately(t *testing.T) {
	c := NewMockClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	select {
	case <-c.After(0):
	case <-time.After(time.Second):
		t.Fatal("zero-duration waiter did not fire")
	}
}

func TestMockClock_MultipleWaiters(t *testing.T) {
	c := NewMockClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	short := c.After(time.Minute)
	long := c.After(time.Hour)
	require.Equal(t, 2, c.WaiterCount())

	c.Advance(time.Minute)
	select {
	case <-short:
	case <-time.After(time.Second):
		t.Fatal("short waiter did not fire")
	}
	select {
	case <-long:
		t.Fatal("long waiter fired early")
	default:
	}
	assert.Equal(t, 1, c.WaiterCount())

	c.Advance(time.Hour)
	select {
	case <-long:
	case <-time.After(time.Second):
		t.Fatal("long waiter did not fire")
	}
	assert.Equal(t, 0, c.WaiterCount())
}
