package httpjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jpalmerr/sensorbridge"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when polling
// large device fleets
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Reader fetches device readings from an HTTP JSON service.
//
// Reader implements [sensorbridge.DeviceReader] and the optional cache
// clearing hook. It relies on the per-poll deadline applied by the
// polling layer; no global client timeout is set.
type Reader struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]sensorbridge.Readings
}

// New creates a Reader targeting the given base URL.
//
// The client is configured with connection pooling limits so large
// fleets do not exhaust sockets. Timeouts come from the polling layer's
// context, not from the client.
func New(baseURL string) *Reader {
	return &Reader{
		baseURL: baseURL,
		httpClient: &http.Client{
			// no default timeout - the poll deadline cancels the context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false,
			},
		},
		cache: make(map[string]sensorbridge.Readings),
	}
}

// Read fetches the device's current readings.
//
// A cached result from earlier in the same cycle is returned if present.
// Network and server-side faults are reported as transport errors so the
// polling layer retries them; malformed or unusable responses are not.
func (r *Reader) Read(ctx context.Context, dev sensorbridge.Device) (sensorbridge.Readings, error) {
	r.mu.Lock()
	cached, ok := r.cache[dev.Name()]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	url := fmt.Sprintf("%s/devices/%s", r.baseURL, dev.Address())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for device %q: %w", dev.Name(), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, sensorbridge.NewTransportError("request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, sensorbridge.NewTransportError("read body", err)
	}

	// server faults are transient, client errors are not
	if resp.StatusCode >= 500 {
		return nil, sensorbridge.NewTransportError("request",
			fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device %q: unexpected status %d", dev.Name(), resp.StatusCode)
	}

	readings, err := parseReadings(body, dev)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[dev.Name()] = readings
	r.mu.Unlock()

	return readings, nil
}

// ClearCache drops the cached readings for one device. The polling layer
// calls this at the start of each cycle so the next read hits the wire.
func (r *Reader) ClearCache(dev sensorbridge.Device) {
	r.mu.Lock()
	delete(r.cache, dev.Name())
	r.mu.Unlock()
}

// parseReadings decodes the JSON body and keeps the parameters the
// device's profile knows about.
func parseReadings(body []byte, dev sensorbridge.Device) (sensorbridge.Readings, error) {
	var raw map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("device %q: failed to decode readings: %w", dev.Name(), err)
	}

	readings := make(sensorbridge.Readings)
	for name, value := range raw {
		if dev.Profile().HasParameter(name) {
			readings[name] = value
		}
	}

	if len(readings) == 0 {
		return nil, fmt.Errorf("device %q: response contained no known parameters", dev.Name())
	}

	return readings, nil
}
