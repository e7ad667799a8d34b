package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestController[T any](policy Policy) *Controller[T] {
	return New[T](Options{
		Name:   "test",
		Policy: policy,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type userErr struct{ msg string }

func (e userErr) Error() string       { return "internal: " + e.msg }
func (e userErr) UserMessage() string { return e.msg }

func TestController_InitialState(t *testing.T) {
	c := newTestController[[]string](LatestIssued)
	snap := c.Snapshot()
	require.Equal(t, PhaseIdle, snap.Phase)
	require.Nil(t, snap.Data)
	require.Empty(t, snap.Message)
	require.False(t, c.Busy())
}

func TestController_BeginEntersLoading(t *testing.T) {
	c := newTestController[int](LatestIssued)
	ticket := c.Begin()
	require.Equal(t, uint64(1), ticket.Generation)
	require.Equal(t, PhaseLoading, c.Phase())
	require.True(t, c.Busy())
	require.True(t, c.Snapshot().Loading())
}

func TestController_ResolveSuccess(t *testing.T) {
	c := newTestController[[]string](LatestIssued)
	ticket := c.Begin()
	require.True(t, c.Resolve(ticket, []string{"a"}, nil))

	snap := c.Snapshot()
	require.Equal(t, PhaseSuccess, snap.Phase)
	require.Equal(t, []string{"a"}, snap.Data)
	require.Equal(t, uint64(1), snap.Generation)
	require.Zero(t, snap.InFlight)
	require.False(t, snap.ResolvedAt.IsZero())
}

func TestController_ResolveErrorPreservesLastGoodData(t *testing.T) {
	c := newTestController[string](LatestIssued)
	c.Resolve(c.Begin(), "cached", nil)

	c.Resolve(c.Begin(), "", errors.New("refresh failed"))
	snap := c.Snapshot()
	require.Equal(t, PhaseError, snap.Phase)
	require.True(t, snap.Failed())
	require.Equal(t, "cached", snap.Data)
	require.Equal(t, "refresh failed", snap.Message)
}

func TestController_BeginClearsPreviousError(t *testing.T) {
	c := newTestController[int](LatestIssued)
	c.Resolve(c.Begin(), 0, errors.New("boom"))
	require.Equal(t, "boom", c.Snapshot().Message)

	c.Begin()
	require.Empty(t, c.Snapshot().Message)
	require.Equal(t, PhaseLoading, c.Phase())
}

func TestController_LatestIssuedDiscardsStaleResponse(t *testing.T) {
	c := newTestController[string](LatestIssued)
	first := c.Begin()
	second := c.Begin()

	require.True(t, c.Resolve(second, "fresh", nil))
	require.False(t, c.Resolve(first, "stale", nil))

	snap := c.Snapshot()
	require.Equal(t, PhaseSuccess, snap.Phase)
	require.Equal(t, "fresh", snap.Data)
	require.Equal(t, second.Generation, snap.Generation)
	require.Zero(t, snap.InFlight)
}

func TestController_LatestIssuedStaysLoadingUntilNewestResolves(t *testing.T) {
	c := newTestController[string](LatestIssued)
	first := c.Begin()
	second := c.Begin()

	require.False(t, c.Resolve(first, "stale", nil))
	require.Equal(t, PhaseLoading, c.Phase())
	require.True(t, c.Busy())

	require.True(t, c.Resolve(second, "fresh", nil))
	require.Equal(t, PhaseSuccess, c.Phase())
}

func TestController_LatestArrivalLetsSlowResponseOverwrite(t *testing.T) {
	c := newTestController[string](LatestArrival)
	first := c.Begin()
	second := c.Begin()

	require.True(t, c.Resolve(second, "fresh", nil))
	require.True(t, c.Resolve(first, "stale", nil))

	snap := c.Snapshot()
	require.Equal(t, "stale", snap.Data)
	require.Equal(t, first.Generation, snap.Generation)
}

func TestController_RunSuccessAndFailure(t *testing.T) {
	c := newTestController[int](LatestIssued)

	snap, err := c.Run(context.Background(), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, PhaseSuccess, snap.Phase)
	require.Equal(t, 7, snap.Data)

	snap, err = c.Run(context.Background(), func(context.Context) (int, error) {
		return 0, userErr{msg: "Server rejected the request"}
	})
	require.Error(t, err)
	require.Equal(t, PhaseError, snap.Phase)
	require.Equal(t, 7, snap.Data)
	require.Equal(t, "Server rejected the request", snap.Message)
}

func TestController_RunIsLoadingDuringCall(t *testing.T) {
	c := newTestController[int](LatestIssued)
	var observed Phase
	_, err := c.Run(context.Background(), func(context.Context) (int, error) {
		observed = c.Phase()
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, PhaseLoading, observed)
}

func TestController_ConcurrentRunsSettle(t *testing.T) {
	c := newTestController[int](LatestIssued)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = c.Run(context.Background(), func(context.Context) (int, error) {
				time.Sleep(time.Millisecond)
				return i, nil
			})
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	require.Equal(t, PhaseSuccess, snap.Phase)
	require.Zero(t, snap.InFlight)
	require.Equal(t, uint64(32), snap.Generation)
}

func TestMessage(t *testing.T) {
	require.Empty(t, Message(nil))
	require.Equal(t, "plain", Message(errors.New("plain")))
	require.Equal(t, "nice", Message(fmt.Errorf("wrap: %w", userErr{msg: "nice"})))
	require.Equal(t, "The request timed out. Please try again.", Message(fmt.Errorf("get: %w", context.DeadlineExceeded)))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, LatestIssued, p)

	p, err = ParsePolicy("Latest-Arrival")
	require.NoError(t, err)
	require.Equal(t, LatestArrival, p)

	_, err = ParsePolicy("fifo")
	require.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "idle", PhaseIdle.String())
	require.Equal(t, "loading", PhaseLoading.String())
	require.Equal(t, "success", PhaseSuccess.String())
	require.Equal(t, "error", PhaseError.String())
}
