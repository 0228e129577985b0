// Package coordinator keeps one device's state fresh: a fixed-interval
// poll loop over the cloud API, merged with partial WebSocket pushes, with
// listener notification on every accepted update.
package coordinator

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kalpizar15/dreoverse-bridge/internal/capability"
	"github.com/kalpizar15/dreoverse-bridge/internal/state"
)

// StatusFetcher is the slice of the cloud client the coordinator needs.
type StatusFetcher interface {
	GetStatus(ctx context.Context, sn string) (map[string]any, error)
}

// Observer receives poll outcomes for metrics. All methods must be safe
// for concurrent use.
type Observer interface {
	PollSucceeded(sn string, took time.Duration)
	PollFailed(sn string)
	AvailabilityChanged(sn string, online bool)
}

// Listener is called with the new typed state after each accepted update.
// Listeners run synchronously on the coordinator goroutine, in
// registration order.
type Listener func(*state.DeviceState)

// A device goes offline after this many consecutive poll failures and
// comes back on the first success.
const failureThreshold = 3

// Coordinator owns the raw snapshot and typed state for one device.
type Coordinator struct {
	sn         string
	deviceType string
	desc       *capability.Descriptor

	fetcher  StatusFetcher
	process  state.Processor
	interval time.Duration
	log      *zap.SugaredLogger
	observer Observer

	mu             sync.RWMutex
	lastRaw        map[string]any
	current        *state.DeviceState
	failures       int
	available      bool
	listeners      []Listener
	availListeners []func(bool)

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a coordinator for one device. It does not poll until Start
// or Refresh is called.
func New(sn, deviceType string, desc *capability.Descriptor, fetcher StatusFetcher, interval time.Duration, observer Observer, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		sn:         sn,
		deviceType: deviceType,
		desc:       desc,
		fetcher:    fetcher,
		process:    state.ProcessorFor(deviceType),
		interval:   interval,
		observer:   observer,
		log:        log.With("sn", sn),
	}
}

// SN returns the device serial.
func (c *Coordinator) SN() string { return c.sn }

// OnUpdate registers a state listener. Must be called before Start.
func (c *Coordinator) OnUpdate(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// OnAvailability registers an availability listener. Must be called
// before Start.
func (c *Coordinator) OnAvailability(l func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.availListeners = append(c.availListeners, l)
}

// SetInitial seeds the coordinator from the inline state the device list
// sometimes carries, skipping the first status call. A snapshot that fails
// processing is discarded so the next poll fetches fresh.
func (c *Coordinator) SetInitial(raw map[string]any) error {
	typed, err := c.process(raw, c.desc)
	if err != nil {
		return err
	}
	c.apply(raw, typed)
	c.setAvailable(true)
	return nil
}

// Start launches the poll loop. When no data has been seeded an immediate
// first refresh runs before the first tick.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		if !c.HasData() {
			c.poll(ctx)
		}

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.poll(ctx)
			}
		}
	}()
}

// Stop terminates the poll loop and waits for it to exit.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Refresh performs a single poll outside the loop.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.poll(ctx)
}

// HandlePush merges a partial directive update into the last snapshot and
// reprocesses. Keys absent from the partial keep their previous values; a
// push for a device with no snapshot yet is applied as-is.
func (c *Coordinator) HandlePush(reported map[string]any) {
	c.mu.RLock()
	merged := make(map[string]any, len(c.lastRaw)+len(reported))
	for k, v := range c.lastRaw {
		merged[k] = v
	}
	c.mu.RUnlock()
	for k, v := range reported {
		merged[k] = v
	}

	typed, err := c.process(merged, c.desc)
	if err != nil {
		c.log.Warnw("failed to process push update", "error", err)
		return
	}
	c.apply(merged, typed)
	c.setAvailable(true)
}

// State returns the current typed state, nil before the first successful
// update.
func (c *Coordinator) State() *state.DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// HasData reports whether at least one update has been accepted.
func (c *Coordinator) HasData() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Available reports the device's availability as derived from poll
// outcomes and pushes.
func (c *Coordinator) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// LastRaw returns a copy of the last raw snapshot for diagnostics and
// warm-start persistence.
func (c *Coordinator) LastRaw() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRaw == nil {
		return nil
	}
	out := make(map[string]any, len(c.lastRaw))
	for k, v := range c.lastRaw {
		out[k] = v
	}
	return out
}

func (c *Coordinator) poll(ctx context.Context) error {
	start := time.Now()
	raw, err := c.fetcher.GetStatus(ctx, c.sn)
	if err != nil {
		c.pollFailed(err)
		return err
	}

	typed, err := c.process(raw, c.desc)
	if err != nil {
		c.pollFailed(err)
		return err
	}

	if c.observer != nil {
		c.observer.PollSucceeded(c.sn, time.Since(start))
	}
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()

	c.apply(raw, typed)
	c.setAvailable(true)
	return nil
}

func (c *Coordinator) pollFailed(err error) {
	if c.observer != nil {
		c.observer.PollFailed(c.sn)
	}

	c.mu.Lock()
	c.failures++
	failures := c.failures
	c.mu.Unlock()

	// Retry on next tick; only repeated misses flip availability.
	c.log.Warnw("poll failed", "error", err, "consecutive", failures)
	if failures >= failureThreshold {
		c.setAvailable(false)
	}
}

// apply stores the new snapshot and notifies listeners, unless it is
// identical to the previous one. Skipping unchanged snapshots keeps the
// retained MQTT topics and the persisted state from being rewritten on
// every quiet poll tick.
func (c *Coordinator) apply(raw map[string]any, typed *state.DeviceState) {
	c.mu.Lock()
	if c.current != nil && reflect.DeepEqual(c.lastRaw, raw) {
		c.mu.Unlock()
		return
	}
	c.lastRaw = raw
	c.current = typed
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(typed)
	}
}

func (c *Coordinator) setAvailable(online bool) {
	c.mu.Lock()
	if c.available == online {
		c.mu.Unlock()
		return
	}
	c.available = online
	listeners := make([]func(bool), len(c.availListeners))
	copy(listeners, c.availListeners)
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.AvailabilityChanged(c.sn, online)
	}
	c.log.Infow("availability changed", "online", online)
	for _, l := range listeners {
		l(online)
	}
}
