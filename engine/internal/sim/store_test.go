package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreDeliversBufferedItemsFIFO(t *testing.T) {
	env := NewEnvironment()
	st := NewStore[int](env)
	st.Put(1)
	st.Put(2)

	var got []int
	var drain func(int)
	drain = func(v int) {
		got = append(got, v)
		if len(got) < 2 {
			st.Get(drain)
		}
	}
	st.Get(drain)

	require.NoError(t, env.RunUntil(0))
	require.Equal(t, []int{1, 2}, got)
}

func TestStoreWakesParkedConsumerOnPut(t *testing.T) {
	env := NewEnvironment()
	st := NewStore[string](env)

	var got string
	var gotAt float64
	st.Get(func(v string) { got, gotAt = v, env.Now() })

	env.Schedule(0.7, func() { st.Put("pkt") })
	require.NoError(t, env.RunUntil(1))
	require.Equal(t, "pkt", got)
	require.Equal(t, 0.7, gotAt)
}

func TestStoreSecondWaiterPanics(t *testing.T) {
	env := NewEnvironment()
	st := NewStore[int](env)
	st.Get(func(int) {})
	require.Panics(t, func() { st.Get(func(int) {}) })
}
