package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_ForReturnsSameInstancePerKey(t *testing.T) {
	reg := NewRegistry[int](Options{Name: "counter"}, time.Hour)
	a := reg.For("session-a")
	require.Same(t, a, reg.For("session-a"))
	require.NotSame(t, a, reg.For("session-b"))
	require.Equal(t, 2, reg.Len())
	require.Equal(t, PhaseIdle, a.Phase())
}

func TestRegistry_InstancesAreIndependent(t *testing.T) {
	reg := NewRegistry[string](Options{Name: "list"}, 0)
	reg.For("a").Resolve(reg.For("a").Begin(), "alpha", nil)

	require.Equal(t, PhaseSuccess, reg.For("a").Phase())
	require.Equal(t, PhaseIdle, reg.For("b").Phase())
}

func TestRegistry_SweepEvictsIdleControllers(t *testing.T) {
	reg := NewRegistry[int](Options{Name: "list"}, time.Minute)
	idle := reg.For("idle")
	idle.Resolve(idle.Begin(), 1, nil)
	busy := reg.For("busy")
	busy.Begin()

	reg.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.Equal(t, 1, reg.Sweep())

	_, ok := reg.Peek("idle")
	require.False(t, ok)
	_, ok = reg.Peek("busy")
	require.True(t, ok, "controllers with outstanding requests are kept")
}

func TestRegistry_ZeroTTLNeverEvicts(t *testing.T) {
	reg := NewRegistry[int](Options{}, 0)
	reg.For("a")
	reg.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	require.Zero(t, reg.Sweep())
	require.Equal(t, 1, reg.Len())
}
