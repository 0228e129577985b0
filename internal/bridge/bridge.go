package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalpizar15/dreoverse-bridge/internal/capability"
	"github.com/kalpizar15/dreoverse-bridge/internal/config"
	"github.com/kalpizar15/dreoverse-bridge/internal/coordinator"
	"github.com/kalpizar15/dreoverse-bridge/internal/diag"
	"github.com/kalpizar15/dreoverse-bridge/internal/dreo"
	"github.com/kalpizar15/dreoverse-bridge/internal/entity"
	"github.com/kalpizar15/dreoverse-bridge/internal/mqtt"
	"github.com/kalpizar15/dreoverse-bridge/internal/state"
	"github.com/kalpizar15/dreoverse-bridge/internal/storage"
)

const (
	dispatcherWorkers = 2
	dispatcherQueue   = 32
)

// deviceRuntime bundles everything the bridge holds per appliance.
type deviceRuntime struct {
	meta  dreo.Device
	coord *coordinator.Coordinator
	dev   *entity.Device
}

// Bridge owns the cloud session, the MQTT connection and one coordinator
// per appliance. The device set is fixed at startup; a restart picks up
// account changes.
type Bridge struct {
	cfg *config.Config
	log *zap.SugaredLogger

	client  *dreo.Client
	store   *storage.Store
	mqtt    *mqtt.Client
	metrics *diag.Metrics
	push    *dreo.PushClient
	disp    *dispatcher

	devices map[string]*deviceRuntime
	order   []string
}

// Run brings the bridge up and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	b := &Bridge{
		cfg:     cfg,
		log:     log,
		devices: make(map[string]*deviceRuntime),
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	b.store = store
	defer b.store.Close()

	devices, err := b.connectCloud(ctx)
	if err != nil {
		return err
	}

	overrides, err := config.LoadDevicesYAML(cfg.DevicesFile)
	if err != nil {
		return fmt.Errorf("load device overrides: %w", err)
	}

	b.metrics = diag.NewMetrics()

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "dreoverse-" + uuid.NewString()[:8]
	}
	mq, err := mqtt.NewClient(mqtt.Config{
		Broker:    cfg.MQTT.Broker,
		ClientID:  clientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		WillTopic: entity.BridgeAvailabilityTopic,
	}, log)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	b.mqtt = mq

	b.disp = newDispatcher(b.client, b.metrics, dispatcherQueue, b.echoDirectives, log)
	b.disp.start(dispatcherWorkers)

	for _, dev := range devices {
		if o, ok := overrides.Override(dev.SN); ok {
			if o.Disabled {
				log.Infow("device disabled by override", "name", dev.Name, "model", dev.Model)
				continue
			}
			if o.Name != "" {
				dev.Name = o.Name
			}
		}
		if err := b.setupDevice(ctx, dev); err != nil {
			log.Warnw("skipping device", "name", dev.Name, "model", dev.Model, "error", err)
		}
	}
	if len(b.devices) == 0 {
		return fmt.Errorf("no usable devices on account")
	}

	if pruned, err := b.store.PruneSnapshots(b.order); err != nil {
		log.Warnw("pruning stale snapshots failed", "error", err)
	} else if len(pruned) > 0 {
		log.Infow("pruned snapshots of departed devices", "count", len(pruned))
	}

	if !cfg.DisablePush {
		b.startPush(ctx)
	}

	diagSrv := diag.NewServer(cfg.ListenAddr, b.metrics, b.diagnostics, log)
	diagSrv.Start()

	for _, sn := range b.order {
		b.devices[sn].coord.Start(ctx)
	}
	log.Infow("bridge running", "devices", len(b.devices))

	<-ctx.Done()
	log.Info("shutting down")

	if b.push != nil {
		b.push.Stop()
	}
	for _, sn := range b.order {
		b.devices[sn].coord.Stop()
	}
	b.disp.stop()

	// Broker consumers see the bridge go away before the TCP session drops.
	_ = b.mqtt.Publish(entity.BridgeAvailabilityTopic, "offline", true)
	b.mqtt.Disconnect()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return diagSrv.Shutdown(shutCtx)
}

// connectCloud logs in (reusing a persisted session when one exists) and
// returns the account's device list.
func (b *Bridge) connectCloud(ctx context.Context) ([]dreo.Device, error) {
	b.client = dreo.NewClient(b.cfg.Username, b.cfg.Password, b.log)

	var session dreo.Session
	if ok, err := b.store.LoadSession(&session); err != nil {
		b.log.Warnw("stored session unreadable, logging in fresh", "error", err)
	} else if ok {
		b.client.Resume(session)
	}

	if b.client.Session().AccessToken == "" {
		if err := b.client.Login(ctx); err != nil {
			return nil, err
		}
	}

	// An expired resumed token gets one transparent re-login inside the
	// client, so a failure here is real.
	devices, err := b.client.GetDevices(ctx)
	if err != nil {
		_ = b.store.ClearSession()
		return nil, fmt.Errorf("list devices: %w", err)
	}

	session = b.client.Session()
	session.AppToken = "" // refreshed by startPush
	if err := b.store.SaveSession(session); err != nil {
		b.log.Warnw("persisting session failed", "error", err)
	}
	return devices, nil
}

// setupDevice builds the coordinator and entity layer for one appliance,
// publishes its discovery messages and subscribes its command topics.
func (b *Bridge) setupDevice(ctx context.Context, dev dreo.Device) error {
	desc, err := capability.Parse(dev.ControlsConf)
	if err != nil {
		return fmt.Errorf("capability descriptor: %w", err)
	}
	if desc.Empty() {
		return fmt.Errorf("no capability descriptor for model %s", dev.Model)
	}
	blueprints := desc.Resolve()
	if len(blueprints) == 0 {
		return fmt.Errorf("descriptor declares no entities for model %s", dev.Model)
	}

	coord := coordinator.New(dev.SN, dev.DeviceType, desc, b.client, b.cfg.PollInterval, b.metrics, b.log)
	ent := entity.Build(dev, blueprints)
	rt := &deviceRuntime{meta: dev, coord: coord, dev: ent}

	coord.OnUpdate(func(s *state.DeviceState) {
		b.publishState(rt, s)
	})
	coord.OnAvailability(func(online bool) {
		payload := "offline"
		if online {
			payload = "online"
		}
		if err := b.mqtt.Publish(entity.DeviceAvailabilityTopic(dev.SN), payload, true); err != nil {
			b.log.Warnw("availability publish failed", "sn", dev.SN, "error", err)
		}
	})

	for _, disc := range ent.Discoveries() {
		if err := b.mqtt.Publish(disc.Topic, disc.Payload, true); err != nil {
			return fmt.Errorf("publish discovery: %w", err)
		}
	}

	for _, filter := range entity.CommandTopicFilters(dev.SN) {
		if err := b.mqtt.Subscribe(filter, rt.handleCommand(b)); err != nil {
			return fmt.Errorf("subscribe commands: %w", err)
		}
	}

	// Inline state from the device list seeds the first publish without an
	// extra status round trip. Failing that, the last persisted snapshot
	// bridges the gap until the first poll lands.
	if len(dev.State) > 0 {
		if err := coord.SetInitial(dev.State); err != nil {
			b.log.Debugw("inline state unusable", "sn", dev.SN, "error", err)
		}
	} else if snap, err := b.store.LoadSnapshot(dev.SN); err == nil && len(snap) > 0 {
		if err := coord.SetInitial(snap); err == nil {
			go func() {
				_ = coord.Refresh(ctx)
			}()
		}
	}

	b.devices[dev.SN] = rt
	b.order = append(b.order, dev.SN)
	b.log.Infow("device ready", "name", dev.Name, "model", dev.Model,
		"type", dev.DeviceType, "entities", len(ent.Entities))
	return nil
}

func (rt *deviceRuntime) handleCommand(b *Bridge) mqtt.Handler {
	return func(topic string, payload []byte) {
		directives, err := rt.dev.HandleCommand(topic, payload)
		if err != nil {
			b.log.Warnw("rejected command", "topic", topic, "payload", string(payload), "error", err)
			return
		}
		b.disp.submit(rt.meta.SN, directives)
	}
}

// publishState pushes the state document and per-entity availability for
// controls gated by dependency rules, then persists the raw snapshot.
func (b *Bridge) publishState(rt *deviceRuntime, s *state.DeviceState) {
	if err := b.mqtt.Publish(entity.StateTopic(rt.meta.SN), rt.dev.StatePayload(s), true); err != nil {
		b.log.Warnw("state publish failed", "sn", rt.meta.SN, "error", err)
		return
	}
	for _, e := range rt.dev.Entities {
		if !e.HasDependency() {
			continue
		}
		payload := "offline"
		if e.Available(s) {
			payload = "online"
		}
		if err := b.mqtt.Publish(e.AvailabilityTopic(), payload, true); err != nil {
			b.log.Warnw("entity availability publish failed", "sn", rt.meta.SN, "error", err)
		}
	}
	if err := b.store.SaveSnapshot(rt.meta.SN, s.Raw); err != nil {
		b.log.Debugw("snapshot persist failed", "sn", rt.meta.SN, "error", err)
	}
}

// echoDirectives applies accepted commands to the coordinator immediately
// instead of waiting for the next poll.
func (b *Bridge) echoDirectives(sn string, directives map[string]any) {
	if rt, ok := b.devices[sn]; ok {
		rt.coord.HandlePush(directives)
	}
}

// startPush opens the WebSocket channel for server-initiated state
// reports. A refused app-api login degrades to polling only.
func (b *Bridge) startPush(ctx context.Context) {
	token, err := dreo.LoginAppAPI(ctx, b.cfg.Username, b.client.PasswordHash(), b.client.RegionSlug(), b.log)
	if err != nil {
		b.log.Warnw("push login failed, polling only", "error", err)
		return
	}
	if token == "" {
		b.log.Info("push channel unavailable for this account, polling only")
		return
	}

	session := b.client.Session()
	session.AppToken = token
	if err := b.store.SaveSession(session); err != nil {
		b.log.Debugw("persisting app token failed", "error", err)
	}

	b.push = dreo.NewPushClient(token, b.client.RegionSlug(), func(sn string, reported map[string]any) {
		if rt, ok := b.devices[sn]; ok {
			rt.coord.HandlePush(reported)
		}
	}, b.log)
	b.push.Start(ctx)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.metrics.SetWebsocketConnected(b.push.Connected())
			}
		}
	}()
}

// diagnostics builds the redacted dump served over HTTP.
func (b *Bridge) diagnostics() diag.Diagnostics {
	out := diag.Diagnostics{
		WebsocketConnected: b.push != nil && b.push.Connected(),
		MQTTConnected:      b.mqtt.Connected(),
	}
	for _, sn := range b.order {
		rt := b.devices[sn]
		out.Devices = append(out.Devices, diag.DeviceDiagnostics{
			SN:                 diag.Redacted,
			Name:               rt.meta.Name,
			Model:              rt.meta.Model,
			DeviceType:         rt.meta.DeviceType,
			Entities:           len(rt.dev.Entities),
			Available:          rt.coord.Available(),
			CoordinatorHasData: rt.coord.HasData(),
		})
	}
	return out
}

// Discover logs in, lists the account's devices and writes the overrides
// file template next to the config.
func Discover(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	client := dreo.NewClient(cfg.Username, cfg.Password, log)
	if err := client.Login(ctx); err != nil {
		return err
	}
	devices, err := client.GetDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		log.Warn("account has no devices")
	}
	for _, d := range devices {
		desc, err := capability.Parse(d.ControlsConf)
		entities := 0
		if err == nil {
			entities = len(desc.Resolve())
		}
		log.Infow("found device", "name", d.Name, "model", d.Model,
			"type", d.DeviceType, "entities", entities)
	}
	if err := config.GenerateDevicesYAML(devices, cfg.DevicesFile); err != nil {
		return fmt.Errorf("write %s: %w", cfg.DevicesFile, err)
	}
	log.Infow("wrote device overrides file", "path", cfg.DevicesFile)
	return nil
}
