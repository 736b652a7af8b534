package sensorbridge

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jpalmerr/sensorbridge/internal/metrics"
	"github.com/jpalmerr/sensorbridge/internal/mqtt"
	"github.com/jpalmerr/sensorbridge/internal/poll"
	"github.com/jpalmerr/sensorbridge/internal/server"
	"github.com/jpalmerr/sensorbridge/internal/store"
)

const (
	defaultPollInterval        = 60 * time.Second
	defaultDeviceTimeout       = 8 * time.Second
	defaultOfflineThreshold    = 3
	defaultRetries             = 2
	defaultMaxConcurrency      = 1
	defaultTopicPrefix         = "sensorbridge"
	defaultLowBatteryThreshold = 10
	defaultPort                = 8080
)

// Bridge is the main orchestrator for device polling and publishing.
//
// Bridge coordinates polling of the configured device set, folds results
// into per-device availability state, maintains a status store served over
// HTTP, and publishes telemetry, availability, and discovery messages to
// the configured [Publisher]. It is created using [New] with functional
// options and driven with [Bridge.Start] or [Bridge.PollOnce].
//
// The typical lifecycle is:
//
//	br, err := sensorbridge.New(
//	    sensorbridge.WithDevices(devices...),
//	    sensorbridge.WithReader(reader),
//	    sensorbridge.WithPublisher(publisher),
//	)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("failed to create bridge")
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	br.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown; cancellation mid-cycle stops polling between
// devices without completing the remaining ones.
type Bridge struct {
	devices             []Device
	devicesByName       map[string]Device
	reader              DeviceReader
	publisher           Publisher
	pollInterval        time.Duration
	offlineThreshold    int
	topicPrefix         string
	discoveryPrefix     string
	lowBatteryThreshold float64
	port                int
	logger              zerolog.Logger
	eventCallbacks      []func(Event)

	scheduler   *poll.Scheduler
	statusStore *store.MemoryStore
	metrics     *metrics.Metrics
}

// New creates a new [Bridge] instance with the given options.
//
// At least one device must be configured via [WithDevice] or
// [WithDevices], and a reader via [WithReader]. Other options have
// sensible defaults:
//   - Poll interval: 60 seconds
//   - Offline threshold: 3 consecutive failures
//   - Retries: 2 (3 read attempts per poll)
//   - Device timeout: 8 seconds
//   - Concurrency: 1 (sequential polling)
//   - Topic prefix: "sensorbridge"
//   - Status API port: 8080
//
// Returns an error if no devices or reader are configured, if device
// names collide, or if any option is invalid.
func New(opts ...Option) (*Bridge, error) {
	cfg := &bridgeConfig{
		pollInterval:        defaultPollInterval,
		deviceTimeout:       defaultDeviceTimeout,
		offlineThreshold:    defaultOfflineThreshold,
		retries:             defaultRetries,
		maxConcurrency:      defaultMaxConcurrency,
		topicPrefix:         defaultTopicPrefix,
		lowBatteryThreshold: defaultLowBatteryThreshold,
		port:                defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.devices) == 0 {
		return nil, errors.New("at least one device is required")
	}
	if cfg.reader == nil {
		return nil, errors.New("a device reader is required")
	}

	// device names key topics and per-device state, so they must be unique
	byName := make(map[string]Device, len(cfg.devices))
	for _, dev := range cfg.devices {
		if _, dup := byName[dev.Name()]; dup {
			return nil, errors.Errorf("duplicate device name: %q", dev.Name())
		}
		byName[dev.Name()] = dev
	}

	// default to a disabled logger if none provided
	logger := zerolog.Nop()
	if cfg.logger != nil {
		logger = *cfg.logger
	}

	b := &Bridge{
		devices:             cfg.devices,
		devicesByName:       byName,
		reader:              cfg.reader,
		publisher:           cfg.publisher,
		pollInterval:        cfg.pollInterval,
		offlineThreshold:    cfg.offlineThreshold,
		topicPrefix:         cfg.topicPrefix,
		discoveryPrefix:     cfg.discoveryPrefix,
		lowBatteryThreshold: cfg.lowBatteryThreshold,
		port:                cfg.port,
		logger:              logger,
		eventCallbacks:      cfg.eventCallbacks,
		statusStore:         store.NewMemoryStore(),
		metrics:             metrics.New(),
	}

	b.scheduler = poll.NewScheduler(poll.Config{
		Devices:          b.toPollDevices(),
		Reader:           &readerAdapter{reader: cfg.reader, devices: byName},
		OfflineThreshold: cfg.offlineThreshold,
		Retries:          cfg.retries,
		Timeout:          cfg.deviceTimeout,
		Retryable:        IsTransportError,
		MaxConcurrency:   cfg.maxConcurrency,
		Observer:         b.observePoll,
		Logger:           logger,
	})

	return b, nil
}

// PollOnce performs exactly one pass over the configured device set and
// returns a finite, non-restartable stream of events, closed when the
// pass completes.
//
// For each device the read is executed under the retry policy and the
// per-device deadline; a successful poll yields a [TelemetryRecord], and
// any actual availability transition yields an [AvailabilityEvent]
// immediately adjacent to it. A failed poll for one device never aborts
// the rest of the pass. The status store and metrics are updated as a
// side effect; nothing is published and no callbacks fire. Publishing
// and callback dispatch are [Bridge.Start]'s concern.
//
// Cycles never overlap: if a previous PollOnce stream is still being
// produced, the new pass waits for it to finish.
func (b *Bridge) PollOnce(ctx context.Context) <-chan Event {
	out := make(chan Event, 2*len(b.devices))

	go func() {
		defer close(out)
		for ev := range b.scheduler.PollOnce(ctx) {
			out <- b.toPublicEvent(ev)
		}
	}()

	return out
}

// Start begins cyclic polling, publishing, and status serving.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Discovery config messages are published once (when enabled)
//   - All devices are polled immediately, then once per poll interval
//   - Telemetry and availability messages are published to the sink
//   - The status API server runs on the configured port (unless disabled)
//
// Returns nil on graceful shutdown. Returns an error if the status server
// fails to start or discovery publishing fails.
func (b *Bridge) Start(ctx context.Context) error {
	b.logger.Info().
		Int("device_count", len(b.devices)).
		Str("poll_interval", b.pollInterval.String()).
		Str("topic_prefix", b.topicPrefix).
		Msg("sensorbridge starting")

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	if err := b.publishDiscovery(ctx); err != nil {
		return err
	}

	if b.port > 0 {
		srv := server.NewServer(b.statusStore, b.port, b.metrics.Registry(), b.logger)
		if err := srv.Start(ctx); err != nil {
			return errors.Wrap(err, "failed to start status server")
		}
		b.logger.Info().Int("port", b.port).Msg("status api available")
	}

	// poll all devices immediately, then on every tick
	b.runCycle(ctx)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("sensorbridge stopped")
			return nil
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

// runCycle drains one poll pass, publishing and dispatching every event.
func (b *Bridge) runCycle(ctx context.Context) {
	start := time.Now()

	for ev := range b.PollOnce(ctx) {
		b.handleEvent(ctx, ev)
	}

	b.metrics.ObserveCycleDuration(time.Since(start).Seconds())
}

// handleEvent publishes one event to the sink and dispatches callbacks.
func (b *Bridge) handleEvent(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case TelemetryRecord:
		b.publishTelemetry(ctx, e)
		b.logger.Debug().
			Str("device", e.Device).
			Int("parameters", len(e.Readings)).
			Msg("telemetry collected")

	case AvailabilityEvent:
		b.metrics.RecordTransition(e.Status.String())
		b.publishAvailability(ctx, e)
		b.logger.Info().
			Str("device", e.Device).
			Str("status", e.Status.String()).
			Msg("device availability changed")
	}

	for _, cb := range b.eventCallbacks {
		b.invokeCallbackSafe(cb, ev)
	}
}

// publishTelemetry sends the telemetry JSON and, when the device reports
// battery, the derived low-battery indicator.
func (b *Bridge) publishTelemetry(ctx context.Context, rec TelemetryRecord) {
	if b.publisher == nil {
		return
	}

	payload, err := mqtt.TelemetryPayload(rec.Readings)
	if err != nil {
		b.logger.Error().Err(err).Str("device", rec.Device).Msg("failed to serialize telemetry")
		return
	}

	topic := mqtt.TelemetryTopic(b.topicPrefix, rec.Device)
	if err := b.publisher.Publish(ctx, topic, payload, false); err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("failed to publish telemetry")
	}

	battery, ok := rec.Readings[ParamBattery]
	if !ok || !b.devicesByName[rec.Device].Profile().HasParameter(ParamBattery) {
		return
	}

	lowBattery := mqtt.PayloadLowBatteryOff
	if battery <= b.lowBatteryThreshold {
		lowBattery = mqtt.PayloadLowBatteryOn
	}

	topic = mqtt.LowBatteryTopic(b.topicPrefix, rec.Device)
	if err := b.publisher.Publish(ctx, topic, []byte(lowBattery), false); err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("failed to publish low battery state")
	}
}

// publishAvailability sends the retained online/offline transition.
func (b *Bridge) publishAvailability(ctx context.Context, ev AvailabilityEvent) {
	if b.publisher == nil {
		return
	}

	topic := mqtt.AvailabilityTopic(b.topicPrefix, ev.Device)
	if err := b.publisher.Publish(ctx, topic, []byte(ev.Status.String()), true); err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("failed to publish availability")
	}
}

// publishDiscovery sends the retained discovery config messages for every
// device. A no-op unless discovery is enabled and a publisher configured.
func (b *Bridge) publishDiscovery(ctx context.Context) error {
	if b.discoveryPrefix == "" || b.publisher == nil {
		return nil
	}

	for _, dev := range b.devices {
		profile := dev.Profile()

		params := make([]mqtt.Param, len(profile.Parameters))
		for i, p := range profile.Parameters {
			params[i] = mqtt.Param{
				Name:        p.Name,
				Unit:        p.Unit,
				DeviceClass: p.DeviceClass,
				Icon:        p.Icon,
			}
		}

		messages, err := mqtt.DiscoveryMessages(b.discoveryPrefix, b.topicPrefix, mqtt.DeviceMeta{
			Name:         dev.Name(),
			Address:      dev.Address(),
			Model:        profile.Model,
			Manufacturer: profile.Manufacturer,
		}, params, ParamBattery)
		if err != nil {
			return errors.Wrapf(err, "failed to build discovery config for device %q", dev.Name())
		}

		for _, msg := range messages {
			if err := b.publisher.Publish(ctx, msg.Topic, msg.Payload, true); err != nil {
				return errors.Wrapf(err, "failed to publish discovery config to %s", msg.Topic)
			}
		}

		b.logger.Debug().
			Str("device", dev.Name()).
			Int("messages", len(messages)).
			Msg("discovery config published")
	}

	return nil
}

// observePoll records one completed poll attempt into the status store
// and metrics. Runs on the polling goroutine after the tracker has been
// updated.
func (b *Bridge) observePoll(device string, outcome poll.Outcome) {
	b.metrics.RecordPoll(outcome.Kind.String())

	state := b.scheduler.DeviceState(device)

	status := store.DeviceStatus{
		Name:          device,
		Address:       b.devicesByName[device].Address(),
		Availability:  string(state.Availability),
		FailureStreak: state.FailureStreak,
		CheckedAt:     time.Now(),
	}

	if outcome.Kind == poll.OutcomeSuccess {
		status.Readings = outcome.Readings
	} else {
		// carry the last known readings forward, a failed poll does not
		// erase the device's most recent sample
		if prev, ok := b.statusStore.Get(device); ok {
			status.Readings = prev.Readings
		}
		if outcome.Err != nil {
			msg := outcome.Err.Error()
			status.Error = &msg
		}
	}

	b.statusStore.Update(status)

	online := 0
	for _, st := range b.scheduler.States() {
		if st.Availability == poll.AvailabilityOnline {
			online++
		}
	}
	b.metrics.SetDevicesOnline(online)
}

// toPollDevices converts the Device slice to poll.DeviceInfo slice.
func (b *Bridge) toPollDevices() []poll.DeviceInfo {
	infos := make([]poll.DeviceInfo, len(b.devices))
	for i, dev := range b.devices {
		infos[i] = poll.DeviceInfo{
			Name:    dev.Name(),
			Address: dev.Address(),
			Timeout: dev.Timeout(),
			Retries: dev.Retries(),
		}
	}
	return infos
}

// toPublicEvent converts an internal poll event to the public API type.
func (b *Bridge) toPublicEvent(ev poll.Event) Event {
	if ev.Kind == poll.EventTelemetry {
		return TelemetryRecord{
			Device:   ev.Device,
			Readings: Readings(ev.Readings),
			TakenAt:  ev.At,
		}
	}
	return AvailabilityEvent{
		Device: ev.Device,
		Status: Availability(ev.Status),
		At:     ev.At,
	}
}

// invokeCallbackSafe calls an event callback with panic recovery.
// Panics are logged but do not propagate.
func (b *Bridge) invokeCallbackSafe(cb func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("device", ev.DeviceName()).
				Msg("event callback panicked")
		}
	}()
	cb(ev)
}

// Devices returns a copy of the configured devices.
//
// The returned slice is a copy; modifying it does not affect the Bridge.
// Each [Device] in the slice is immutable.
func (b *Bridge) Devices() []Device {
	cp := make([]Device, len(b.devices))
	copy(cp, b.devices)
	return cp
}

// PollInterval returns the configured interval between poll cycles.
func (b *Bridge) PollInterval() time.Duration {
	return b.pollInterval
}

// Port returns the configured status API port, or 0 if disabled.
func (b *Bridge) Port() int {
	return b.port
}

// DeviceState reports the tracked availability and failure streak for one
// device by name.
func (b *Bridge) DeviceState(device string) (Availability, int) {
	st := b.scheduler.DeviceState(device)
	return Availability(st.Availability), st.FailureStreak
}

// readerAdapter bridges the public DeviceReader port to the poll-internal
// Reader interface, resolving DeviceInfo back to the full Device value.
type readerAdapter struct {
	reader  DeviceReader
	devices map[string]Device
}

func (a *readerAdapter) Read(ctx context.Context, dev poll.DeviceInfo) (poll.Readings, error) {
	readings, err := a.reader.Read(ctx, a.devices[dev.Name])
	return poll.Readings(readings), err
}

func (a *readerAdapter) ClearCache(dev poll.DeviceInfo) {
	if cc, ok := a.reader.(CacheClearer); ok {
		cc.ClearCache(a.devices[dev.Name])
	}
}
