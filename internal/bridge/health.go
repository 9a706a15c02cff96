package bridge

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/mqtt"
)

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge and all gateway links are up.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running with issues
	// (bus disconnected, or one or more gateway links down).
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health report published on the bus.
// Topic: graylogic/health/dali
type HealthMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Gateways contains the per-gateway link states.
	Gateways []GatewayHealth `json:"gateways,omitempty"`

	// DevicesManaged is the number of known devices.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// GatewayHealth describes one gateway link in a health report.
type GatewayHealth struct {
	// SerialNumber is the gateway serial.
	SerialNumber string `json:"serial_number"`

	// Name is the human-readable gateway label from config.
	Name string `json:"name,omitempty"`

	// Status is the link state ("connected", "connecting",
	// "reconnecting", "disconnected").
	Status string `json:"status"`
}

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and
	// retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// DeviceCounter reports the number of managed devices. Satisfied by
// *device.Registry.
type DeviceCounter interface {
	Count() int
}

// HealthReporter publishes periodic retained health reports covering the
// bus connection and every gateway link.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	devices   DeviceCounter
	topics    mqtt.Topics

	// Per-gateway link states, keyed by serial.
	links   map[string]GatewayHealth
	linksMu sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the core bus client for publishing messages.
	Publisher HealthPublisher

	// Devices reports the managed device count. Optional.
	Devices DeviceCounter
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		devices:   cfg.Devices,
		links:     make(map[string]GatewayHealth),
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
//
// Parameters:
//   - ctx: Context for cancellation (reporting stops when cancelled)
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		// Best-effort during shutdown, nothing we can do if it fails
		//nolint:errcheck
		h.publishStatus(HealthStopping, "")
	})
}

// SetLinkState records the current state of a gateway link.
// Called by the bridge on every availability transition.
func (h *HealthReporter) SetLinkState(serialNumber, name, status string) {
	h.linksMu.Lock()
	h.links[serialNumber] = GatewayHealth{
		SerialNumber: serialNumber,
		Name:         name,
		Status:       status,
	}
	h.linksMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
// Called during bridge initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
// Useful for forcing an update after a significant event.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "bus disconnected"
	}

	h.linksMu.RLock()
	defer h.linksMu.RUnlock()

	for _, link := range h.links {
		if link.Status != "connected" {
			return HealthDegraded, "gateway " + link.SerialNumber + " " + link.Status
		}
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	deviceCount := 0
	if h.devices != nil {
		deviceCount = h.devices.Count()
	}

	msg := HealthMessage{
		Bridge:         h.bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.version,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		Gateways:       h.snapshotLinks(),
		DevicesManaged: deviceCount,
		Reason:         reason,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.topics.Health(), payload, 1, true)
}

// snapshotLinks returns the link states sorted by serial for stable output.
func (h *HealthReporter) snapshotLinks() []GatewayHealth {
	h.linksMu.RLock()
	defer h.linksMu.RUnlock()

	if len(h.links) == 0 {
		return nil
	}

	out := make([]GatewayHealth, 0, len(h.links))
	for _, link := range h.links {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SerialNumber < out[j].SerialNumber
	})
	return out
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
