package sensorbridge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeReader scripts per-device read behavior.
type fakeReader struct {
	mu      sync.Mutex
	results map[string]func() (Readings, error)
	cleared []string
}

func newFakeReader() *fakeReader {
	return &fakeReader{results: make(map[string]func() (Readings, error))}
}

func (r *fakeReader) on(device string, fn func() (Readings, error)) {
	r.results[device] = fn
}

func (r *fakeReader) Read(_ context.Context, dev Device) (Readings, error) {
	r.mu.Lock()
	fn := r.results[dev.Name()]
	r.mu.Unlock()
	if fn == nil {
		return Readings{"temperature": 20, "battery": 90}, nil
	}
	return fn()
}

func (r *fakeReader) ClearCache(dev Device) {
	r.mu.Lock()
	r.cleared = append(r.cleared, dev.Name())
	r.mu.Unlock()
}

// fakePublisher records every publish.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  string
	retained bool
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte, retain bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{topic: topic, payload: string(payload), retained: retain})
	return nil
}

func (p *fakePublisher) byTopic(topic string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedMessage
	for _, m := range p.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func mustDevice(t *testing.T, name, address string, opts ...DeviceOption) Device {
	t.Helper()
	dev, err := NewDevice(name, address, opts...)
	if err != nil {
		t.Fatalf("NewDevice(%s) error: %v", name, err)
	}
	return dev
}

func TestNew_Validation(t *testing.T) {
	dev := mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no devices", []Option{WithReader(newFakeReader())}, "at least one device"},
		{"no reader", []Option{WithDevice(dev)}, "reader is required"},
		{"duplicate names", []Option{
			WithDevice(dev),
			WithDevice(mustDevice(t, "balcony", "AA:BB:CC:DD:EE:FF")),
			WithReader(newFakeReader()),
		}, "duplicate device name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(newFakeReader()),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if br.PollInterval() != 60*time.Second {
		t.Errorf("PollInterval() = %v, want 60s", br.PollInterval())
	}
	if br.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", br.Port())
	}
	if len(br.Devices()) != 1 {
		t.Errorf("Devices() = %d devices, want 1", len(br.Devices()))
	}
}

func TestBridge_PollOnceEmitsTelemetryAndTransition(t *testing.T) {
	reader := newFakeReader()
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(reader),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	var events []Event
	for ev := range br.PollOnce(context.Background()) {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}

	rec, ok := events[0].(TelemetryRecord)
	if !ok {
		t.Fatalf("first event is %T, want TelemetryRecord", events[0])
	}
	if rec.Device != "balcony" || rec.Readings["temperature"] != 20 {
		t.Errorf("unexpected telemetry: %+v", rec)
	}

	trans, ok := events[1].(AvailabilityEvent)
	if !ok {
		t.Fatalf("second event is %T, want AvailabilityEvent", events[1])
	}
	if trans.Status != AvailabilityOnline {
		t.Errorf("Status = %v, want online", trans.Status)
	}

	if avail, streak := br.DeviceState("balcony"); avail != AvailabilityOnline || streak != 0 {
		t.Errorf("DeviceState() = (%v, %d), want (online, 0)", avail, streak)
	}
	if len(reader.cleared) != 1 {
		t.Errorf("expected one cache clear, got %v", reader.cleared)
	}
}

func TestBridge_OfflineAfterThresholdCycles(t *testing.T) {
	reader := newFakeReader()
	reader.on("thermo", func() (Readings, error) {
		return nil, NewTransportError("connect", errors.New("no route"))
	})

	br, err := New(
		WithDevice(mustDevice(t, "thermo", "58:2D:34:3B:44:55", WithProfile(ProfileThermometer))),
		WithReader(reader),
		WithOfflineThreshold(2),
		WithRetries(0),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	drain := func() []Event {
		var events []Event
		for ev := range br.PollOnce(context.Background()) {
			events = append(events, ev)
		}
		return events
	}

	if events := drain(); len(events) != 0 {
		t.Fatalf("cycle 1: expected no events, got %+v", events)
	}

	events := drain()
	if len(events) != 1 {
		t.Fatalf("cycle 2: expected offline transition, got %+v", events)
	}
	trans := events[0].(AvailabilityEvent)
	if trans.Status != AvailabilityOffline {
		t.Errorf("Status = %v, want offline", trans.Status)
	}

	if avail, streak := br.DeviceState("thermo"); avail != AvailabilityOffline || streak != 2 {
		t.Errorf("DeviceState() = (%v, %d), want (offline, 2)", avail, streak)
	}
}

func TestBridge_DefaultDeviceTimeoutApplies(t *testing.T) {
	// the device carries no timeout of its own, so the bridge-wide
	// default must bound the read
	slowReader := ReadFunc(func(ctx context.Context, _ Device) (Readings, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return Readings{"temperature": 20}, nil
		}
	})

	br, err := New(
		WithDevice(mustDevice(t, "cellar", "C4:7C:8D:6A:1B:2C")),
		WithReader(slowReader),
		WithDefaultDeviceTimeout(30*time.Millisecond),
		WithOfflineThreshold(1),
		WithRetries(0),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	start := time.Now()
	var events []Event
	for ev := range br.PollOnce(context.Background()) {
		events = append(events, ev)
	}
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("poll took %v, default device timeout not applied", elapsed)
	}
	if len(events) != 1 {
		t.Fatalf("expected one offline transition, got %+v", events)
	}
	trans, ok := events[0].(AvailabilityEvent)
	if !ok || trans.Status != AvailabilityOffline {
		t.Fatalf("expected offline transition, got %+v", events[0])
	}

	if avail, streak := br.DeviceState("cellar"); avail != AvailabilityOffline || streak != 1 {
		t.Errorf("DeviceState() = (%v, %d), want (offline, 1)", avail, streak)
	}
}

func TestBridge_StatusStoreCarriesReadingsThroughFailure(t *testing.T) {
	healthy := true
	reader := newFakeReader()
	reader.on("balcony", func() (Readings, error) {
		if healthy {
			return Readings{"temperature": 21.5, "battery": 80}, nil
		}
		return nil, NewTransportError("connect", errors.New("no route"))
	})

	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(reader),
		WithRetries(0),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for range br.PollOnce(context.Background()) {
	}

	healthy = false
	for range br.PollOnce(context.Background()) {
	}

	status, ok := br.statusStore.Get("balcony")
	if !ok {
		t.Fatal("device missing from status store")
	}
	if status.Readings["temperature"] != 21.5 {
		t.Errorf("last known readings lost on failure: %+v", status.Readings)
	}
	if status.Error == nil || !strings.Contains(*status.Error, "no route") {
		t.Errorf("expected the failure recorded, got %+v", status.Error)
	}
	if status.FailureStreak != 1 {
		t.Errorf("FailureStreak = %d, want 1", status.FailureStreak)
	}
}

func TestBridge_PublishesTelemetryAvailabilityAndLowBattery(t *testing.T) {
	reader := newFakeReader()
	reader.on("balcony", func() (Readings, error) {
		return Readings{"temperature": 20, "battery": 5}, nil
	})

	pub := &fakePublisher{}
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(reader),
		WithPublisher(pub),
		WithLowBatteryThreshold(10),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	for ev := range br.PollOnce(ctx) {
		br.handleEvent(ctx, ev)
	}

	telemetry := pub.byTopic("sensorbridge/balcony")
	if len(telemetry) != 1 || !strings.Contains(telemetry[0].payload, `"battery":5`) {
		t.Errorf("unexpected telemetry publishes: %+v", telemetry)
	}
	if telemetry[0].retained {
		t.Error("telemetry must not be retained")
	}

	avail := pub.byTopic("sensorbridge/balcony/availability")
	if len(avail) != 1 || avail[0].payload != "online" {
		t.Errorf("unexpected availability publishes: %+v", avail)
	}
	if !avail[0].retained {
		t.Error("availability must be retained")
	}

	low := pub.byTopic("sensorbridge/balcony/low_battery")
	if len(low) != 1 || low[0].payload != "ON" {
		t.Errorf("unexpected low battery publishes: %+v", low)
	}
}

func TestBridge_LowBatteryOffAboveThreshold(t *testing.T) {
	pub := &fakePublisher{}
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(newFakeReader()), // default battery 90
		WithPublisher(pub),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	for ev := range br.PollOnce(ctx) {
		br.handleEvent(ctx, ev)
	}

	low := pub.byTopic("sensorbridge/balcony/low_battery")
	if len(low) != 1 || low[0].payload != "OFF" {
		t.Errorf("unexpected low battery publishes: %+v", low)
	}
}

func TestBridge_PublishDiscovery(t *testing.T) {
	pub := &fakePublisher{}
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithDevice(mustDevice(t, "thermo", "58:2D:34:3B:44:55", WithProfile(ProfileThermometer))),
		WithReader(newFakeReader()),
		WithPublisher(pub),
		WithDiscovery("homeassistant"),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := br.publishDiscovery(context.Background()); err != nil {
		t.Fatalf("publishDiscovery() error: %v", err)
	}

	// miflora: 5 sensors + low_battery; thermometer: 3 sensors + low_battery
	if len(pub.messages) != 10 {
		t.Fatalf("expected 10 discovery messages, got %d", len(pub.messages))
	}
	for _, m := range pub.messages {
		if !m.retained {
			t.Errorf("discovery message on %s not retained", m.topic)
		}
		if !strings.HasPrefix(m.topic, "homeassistant/") {
			t.Errorf("unexpected discovery topic %s", m.topic)
		}
	}
}

func TestBridge_DiscoveryDisabledByDefault(t *testing.T) {
	pub := &fakePublisher{}
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(newFakeReader()),
		WithPublisher(pub),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := br.publishDiscovery(context.Background()); err != nil {
		t.Fatalf("publishDiscovery() error: %v", err)
	}
	if len(pub.messages) != 0 {
		t.Errorf("expected no discovery messages, got %d", len(pub.messages))
	}
}

func TestBridge_CallbackPanicRecovered(t *testing.T) {
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(newFakeReader()),
		WithEventCallback(func(Event) { panic("callback bug") }),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	for ev := range br.PollOnce(ctx) {
		// must not panic
		br.handleEvent(ctx, ev)
	}
}

func TestBridge_CallbacksInvokedInOrder(t *testing.T) {
	var order []string
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(newFakeReader()),
		WithEventCallback(func(Event) { order = append(order, "first") }),
		WithEventCallback(func(Event) { order = append(order, "second") }),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	for ev := range br.PollOnce(ctx) {
		br.handleEvent(ctx, ev)
	}

	// two events, each fanned out to both callbacks in order
	if len(order) != 4 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected callback order: %v", order)
	}
}

func TestBridge_StartRunsImmediateCycleAndShutsDown(t *testing.T) {
	pub := &fakePublisher{}
	br, err := New(
		WithDevice(mustDevice(t, "balcony", "C4:7C:8D:6A:1B:2C")),
		WithReader(newFakeReader()),
		WithPublisher(pub),
		WithPollInterval(time.Hour), // only the immediate cycle runs
		WithPort(0),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- br.Start(ctx) }()

	// wait for the immediate cycle's telemetry to land
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(pub.byTopic("sensorbridge/balcony")) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(pub.byTopic("sensorbridge/balcony")) == 0 {
		t.Fatal("immediate cycle never published telemetry")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}
