package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalpizar15/dreoverse-bridge/internal/capability"
	"github.com/kalpizar15/dreoverse-bridge/internal/state"
)

type fakeFetcher struct {
	mu    sync.Mutex
	raw   map[string]any
	err   error
	calls int
}

func (f *fakeFetcher) GetStatus(ctx context.Context, sn string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]any, len(f.raw))
	for k, v := range f.raw {
		out[k] = v
	}
	return out, nil
}

func (f *fakeFetcher) set(raw map[string]any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw, f.err = raw, err
}

type recordingObserver struct {
	mu        sync.Mutex
	succeeded int
	failed    int
	avail     []bool
}

func (o *recordingObserver) PollSucceeded(sn string, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeeded++
}

func (o *recordingObserver) PollFailed(sn string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *recordingObserver) AvailabilityChanged(sn string, online bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.avail = append(o.avail, online)
}

func (o *recordingObserver) snapshot() (int, int, []bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.succeeded, o.failed, append([]bool(nil), o.avail...)
}

func newTestCoordinator(t *testing.T, fetcher StatusFetcher, obs Observer) *Coordinator {
	t.Helper()
	desc := &capability.Descriptor{
		Fan: &capability.FanSection{
			SpeedRange:  &capability.SpeedRange{Low: 1, High: 4},
			PresetModes: []string{"normal", "sleep"},
		},
	}
	return New("SN-1", state.TypeFan, desc, fetcher, time.Hour, obs, zap.NewNop().Sugar())
}

func TestSetInitial_SeedsWithoutPolling(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := newTestCoordinator(t, fetcher, nil)

	var updates []*state.DeviceState
	c.OnUpdate(func(s *state.DeviceState) { updates = append(updates, s) })

	require.NoError(t, c.SetInitial(map[string]any{"poweron": true, "windlevel": float64(2)}))

	require.True(t, c.HasData())
	assert.True(t, c.Available())
	require.Len(t, updates, 1)
	assert.True(t, updates[0].Power)
	assert.Equal(t, 2, updates[0].Speed)
	assert.Equal(t, 0, fetcher.calls)
}

func TestRefresh_UpdatesState(t *testing.T) {
	fetcher := &fakeFetcher{raw: map[string]any{"poweron": true, "mode": float64(2)}}
	obs := &recordingObserver{}
	c := newTestCoordinator(t, fetcher, obs)

	require.NoError(t, c.Refresh(context.Background()))

	s := c.State()
	require.NotNil(t, s)
	assert.Equal(t, "sleep", s.PresetMode)

	succeeded, failed, avail := obs.snapshot()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []bool{true}, avail)
}

func TestAvailability_FlipsAfterThreeFailures(t *testing.T) {
	fetcher := &fakeFetcher{raw: map[string]any{"poweron": true}}
	obs := &recordingObserver{}
	c := newTestCoordinator(t, fetcher, obs)

	var transitions []bool
	c.OnAvailability(func(online bool) { transitions = append(transitions, online) })

	require.NoError(t, c.Refresh(context.Background()))
	assert.True(t, c.Available())

	fetcher.set(nil, errors.New("cloud unreachable"))
	for i := 0; i < 2; i++ {
		require.Error(t, c.Refresh(context.Background()))
		assert.True(t, c.Available(), "still online after %d failures", i+1)
	}
	require.Error(t, c.Refresh(context.Background()))
	assert.False(t, c.Available())

	// Stale typed state survives the outage.
	assert.True(t, c.HasData())

	// First success brings it straight back.
	fetcher.set(map[string]any{"poweron": false}, nil)
	require.NoError(t, c.Refresh(context.Background()))
	assert.True(t, c.Available())

	assert.Equal(t, []bool{true, false, true}, transitions)
}

func TestRefresh_UnchangedSnapshotNotRenotified(t *testing.T) {
	fetcher := &fakeFetcher{raw: map[string]any{"poweron": true, "windlevel": float64(2)}}
	c := newTestCoordinator(t, fetcher, nil)

	var updates int
	c.OnUpdate(func(*state.DeviceState) { updates++ })

	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 1, updates, "identical snapshots must not notify again")

	fetcher.set(map[string]any{"poweron": true, "windlevel": float64(3)}, nil)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, updates)
	assert.Equal(t, 3, c.State().Speed)
}

func TestHandlePush_UnchangedValueNotRenotified(t *testing.T) {
	c := newTestCoordinator(t, &fakeFetcher{}, nil)
	require.NoError(t, c.SetInitial(map[string]any{"poweron": true, "windlevel": float64(2)}))

	var updates int
	c.OnUpdate(func(*state.DeviceState) { updates++ })

	c.HandlePush(map[string]any{"windlevel": float64(2)})
	assert.Equal(t, 0, updates)

	c.HandlePush(map[string]any{"windlevel": float64(5)})
	assert.Equal(t, 1, updates)
}

func TestHandlePush_MergesPartial(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := newTestCoordinator(t, fetcher, nil)

	require.NoError(t, c.SetInitial(map[string]any{
		"poweron":   true,
		"windlevel": float64(3),
		"mode":      float64(1),
	}))

	c.HandlePush(map[string]any{"windlevel": float64(4)})

	s := c.State()
	require.NotNil(t, s)
	assert.Equal(t, 4, s.Speed)
	assert.True(t, s.Power, "untouched keys keep previous values")
	assert.Equal(t, "normal", s.PresetMode)

	raw := c.LastRaw()
	assert.Equal(t, float64(4), raw["windlevel"])
	assert.Equal(t, float64(1), raw["mode"])
}

func TestHandlePush_WithoutSnapshot(t *testing.T) {
	c := newTestCoordinator(t, &fakeFetcher{}, nil)
	c.HandlePush(map[string]any{"poweron": true})
	require.True(t, c.HasData())
	assert.True(t, c.State().Power)
}

func TestLastRaw_ReturnsCopy(t *testing.T) {
	c := newTestCoordinator(t, &fakeFetcher{}, nil)
	require.NoError(t, c.SetInitial(map[string]any{"poweron": true}))

	raw := c.LastRaw()
	raw["poweron"] = false

	again := c.LastRaw()
	assert.Equal(t, true, again["poweron"])
}

func TestStartStop_InitialPollThenTicker(t *testing.T) {
	fetcher := &fakeFetcher{raw: map[string]any{"poweron": true}}
	c := newTestCoordinator(t, fetcher, nil)

	updated := make(chan struct{}, 1)
	c.OnUpdate(func(*state.DeviceState) {
		select {
		case updated <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial poll before first tick")
	}
	c.Stop()

	fetcher.mu.Lock()
	calls := fetcher.calls
	fetcher.mu.Unlock()
	assert.Equal(t, 1, calls)
}
