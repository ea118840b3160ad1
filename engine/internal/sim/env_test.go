package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunUntilFiresInTimeOrder(t *testing.T) {
	env := NewEnvironment()
	var got []int
	env.Schedule(0.3, func() { got = append(got, 3) })
	env.Schedule(0.1, func() { got = append(got, 1) })
	env.Schedule(0.2, func() { got = append(got, 2) })

	require.NoError(t, env.RunUntil(1))
	require.Equal(t, []int{1, 2, 3}, got)
	require.Equal(t, 1.0, env.Now())
}

func TestEqualTimesFireFIFO(t *testing.T) {
	env := NewEnvironment()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		env.Schedule(0.5, func() { got = append(got, i) })
	}
	require.NoError(t, env.RunUntil(1))
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestZeroDelayFiresAtCurrentTime(t *testing.T) {
	env := NewEnvironment()
	var at float64
	env.Schedule(0.25, func() {
		env.Schedule(0, func() { at = env.Now() })
	})
	require.NoError(t, env.RunUntil(1))
	require.Equal(t, 0.25, at)
}

func TestEventsPastHorizonArePreserved(t *testing.T) {
	env := NewEnvironment()
	fired := 0
	env.Schedule(0.5, func() { fired++ })
	env.Schedule(1.5, func() { fired++ })

	require.NoError(t, env.RunUntil(1))
	require.Equal(t, 1, fired)
	require.Equal(t, 1, env.Pending())

	require.NoError(t, env.RunUntil(2))
	require.Equal(t, 2, fired)
	require.Equal(t, 0, env.Pending())
}

func TestHorizonBeforeNowFails(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.RunUntil(2))
	require.ErrorIs(t, env.RunUntil(1), ErrHorizonExceeded)
}

func TestNestedSchedulingKeepsClockMonotonic(t *testing.T) {
	env := NewEnvironment()
	var stamps []float64
	env.Schedule(0.1, func() {
		stamps = append(stamps, env.Now())
		env.Schedule(0.1, func() { stamps = append(stamps, env.Now()) })
	})
	require.NoError(t, env.RunUntil(1))
	require.Equal(t, []float64{0.1, 0.2}, stamps)
}
