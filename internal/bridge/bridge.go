package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/device"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/gateway"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid bus topic.
	minTopicParts = 4

	// requestTimeout bounds gateway request/response operations.
	requestTimeout = 10 * time.Second

	// discoveryTimeout bounds a full inventory refresh (devices, groups,
	// scenes) against one gateway.
	discoveryTimeout = 30 * time.Second
)

// Bridge orchestrates bidirectional translation between DALI gateways and
// the Gray Logic bus. It handles:
//   - Receiving commands from Core via MQTT and forwarding them to gateways
//   - Receiving gateway reports and publishing state/event updates to MQTT
//   - Bus scans, inventory discovery and registry reconciliation
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	id       string
	bus      BusClient
	registry DeviceRegistry
	metrics  MetricsWriter // Optional telemetry export
	health   *HealthReporter
	topics   mqtt.Topics

	// Gateway links keyed by serial.
	links   map[string]Link
	linksMu sync.RWMutex

	// Listener deregistration functions, collected for Stop.
	offFns []func()

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the minimal structured logging interface the bridge needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// BusClient is the interface for core bus MQTT operations.
// Satisfied by *mqtt.Client; allows mocking in tests.
type BusClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// GatewayClient is the protocol surface the bridge uses against one
// gateway. Satisfied by *dali.Client.
type GatewayClient interface {
	DiscoverDevices(ctx context.Context) ([]dali.Device, error)
	DiscoverGroups(ctx context.Context) ([]dali.Group, error)
	DiscoverScenes(ctx context.Context) ([]dali.Scene, error)
	ScanBus(ctx context.Context) error
	StopScan(ctx context.Context) error
	WriteDevice(dev dali.Device, props ...dali.Property) error
	ReadDevice(dev dali.Device, dpids ...int) error
	WriteGroup(channel, groupID int, props ...dali.Property) error
	ActivateScene(channel, sceneID int) error
}

// LinkConnection is the connection surface the bridge uses per gateway.
// Satisfied by *gateway.Connection.
type LinkConnection interface {
	// On registers a listener; the returned function deregisters it.
	On(event gateway.EventType, deviceID string, fn gateway.Handler) func()

	// State returns the current link state.
	State() gateway.State
}

// DeviceRegistry persists device state and inventory.
// Satisfied by *device.Registry.
type DeviceRegistry interface {
	Get(ctx context.Context, id string) (*device.Record, error)
	ApplyState(ctx context.Context, id string, update device.State) (*device.Record, error)
	SetOnline(ctx context.Context, id string, online bool) error
	SetGatewayAvailability(ctx context.Context, gatewaySN string, available bool) error
	SyncScanResults(ctx context.Context, gatewaySN string, discovered []dali.Device) (device.ScanDiff, error)
	SyncGroups(ctx context.Context, gatewaySN string, groups []dali.Group) error
	SyncScenes(ctx context.Context, gatewaySN string, scenes []dali.Scene) error
	Groups(ctx context.Context, gatewaySN string) ([]dali.Group, error)
	Scenes(ctx context.Context, gatewaySN string) ([]dali.Scene, error)
	Count() int
}

// MetricsWriter exports telemetry readings. Satisfied by *influxdb.Client.
// Optional: a nil writer disables export.
type MetricsWriter interface {
	WriteEnergy(deviceID, gatewaySN string, energyWh float64)
	WriteIlluminance(deviceID, gatewaySN string, lux float64)
	WriteMotion(deviceID, gatewaySN, state string, occupied bool)
	WriteGatewayAvailability(gatewaySN string, online bool)
}

// Link pairs one gateway connection with its protocol client.
type Link struct {
	// SerialNumber is the gateway serial.
	SerialNumber string

	// Name is the human-readable gateway label from config.
	Name string

	// Conn is the gateway connection.
	Conn LinkConnection

	// Client is the protocol client bound to Conn.
	Client GatewayClient
}

// Options holds configuration for creating a bridge.
type Options struct {
	// ID is the bridge identifier used in health and discovery messages.
	ID string

	// Version is the bridge software version.
	Version string

	// Bus is the core bus MQTT client.
	Bus BusClient

	// Links are the gateway connections to manage.
	Links []Link

	// Registry persists device state and inventory.
	Registry DeviceRegistry

	// Metrics is an optional telemetry writer.
	Metrics MetricsWriter

	// HealthInterval is how often to publish health status.
	HealthInterval time.Duration

	// Logger is an optional structured logger.
	Logger Logger
}

// New creates a bridge instance. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if len(opts.Links) == 0 {
		return nil, fmt.Errorf("at least one gateway link is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		id:        opts.ID,
		bus:       opts.Bus,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
		links:     make(map[string]Link, len(opts.Links)),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	for _, link := range opts.Links {
		if link.SerialNumber == "" || link.Conn == nil || link.Client == nil {
			ctxCancel()
			return nil, fmt.Errorf("gateway link %q is incomplete", link.SerialNumber)
		}
		b.links[link.SerialNumber] = link
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.ID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.Bus,
		Devices:   opts.Registry,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation: subscribes to command and request topics,
// registers gateway event listeners, and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	for _, link := range b.links {
		b.watchLink(link)
	}

	commandTopic := b.topics.AllCommands()
	if err := b.bus.Subscribe(commandTopic, 1, b.handleBusMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := b.topics.AllRequests()
	if err := b.bus.Subscribe(requestTopic, 1, b.handleBusMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.health.Start(ctx)

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.id,
		"gateways", len(b.links),
		"devices", b.registry.Count())

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()

		for _, off := range b.offFns {
			off()
		}

		b.health.Stop()
		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// watchLink registers listeners for every event category a gateway emits.
func (b *Bridge) watchLink(link Link) {
	sn := link.SerialNumber
	b.health.SetLinkState(sn, link.Name, link.Conn.State().String())

	on := func(evt gateway.EventType, fn gateway.Handler) {
		b.offFns = append(b.offFns, link.Conn.On(evt, "", fn))
	}

	on(gateway.EventAvailability, func(evt gateway.Event) {
		b.handleAvailability(link, evt)
	})
	on(gateway.EventDeviceStatus, b.handleDeviceStatus)
	on(gateway.EventOnlineStatus, b.handleOnlineStatus)
	on(gateway.EventEnergyReport, b.handleEnergyReport)
	on(gateway.EventMotionStatus, b.handleMotionStatus)
	on(gateway.EventIlluminanceStatus, b.handleIlluminanceStatus)
	on(gateway.EventPanelButton, b.handlePanelButton)
	on(gateway.EventScanProgress, func(evt gateway.Event) {
		b.handleScanProgress(link, evt)
	})
}

// =============================================================================
// Gateway event handlers
// =============================================================================

// handleAvailability reacts to a gateway link state transition.
func (b *Bridge) handleAvailability(link Link, evt gateway.Event) {
	online, ok := evt.Data.(bool)
	if !ok {
		return
	}

	b.health.SetLinkState(link.SerialNumber, link.Name, link.Conn.State().String())

	if err := b.registry.SetGatewayAvailability(b.ctx, evt.GatewaySN, online); err != nil {
		b.logError("failed to persist gateway availability", err)
	}

	b.publishJSON(b.topics.GatewayAvailability(evt.GatewaySN),
		NewAvailabilityMessage(online), true)

	if b.metrics != nil {
		b.metrics.WriteGatewayAvailability(evt.GatewaySN, online)
	}

	b.logInfo("gateway availability changed",
		"gateway_sn", evt.GatewaySN,
		"online", online)

	if online {
		// Refresh the inventory whenever a link comes up: the gateway's
		// commissioning may have changed while it was unreachable.
		// Discovery waits on gateway responses, so it must not run on the
		// dispatch loop delivering this event.
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := b.runDiscovery(link); err != nil {
				b.logError("post-connect discovery failed", err)
			}
		}()
	}
}

// handleDeviceStatus publishes a light's property report as canonical state.
func (b *Bridge) handleDeviceStatus(evt gateway.Event) {
	props, ok := evt.Data.([]dali.Property)
	if !ok {
		return
	}

	state := stateFromProperties(props)
	if len(state) == 0 {
		return
	}
	b.applyAndPublishState(evt.DeviceID, evt.GatewaySN, state)
}

// handleOnlineStatus updates a single device's availability.
func (b *Bridge) handleOnlineStatus(evt gateway.Event) {
	online, ok := evt.Data.(bool)
	if !ok {
		return
	}

	if err := b.registry.SetOnline(b.ctx, evt.DeviceID, online); err != nil {
		b.logError("failed to persist device online status", err)
	}

	b.publishJSON(b.topics.DeviceAvailability(evt.DeviceID),
		NewAvailabilityMessage(online), true)
}

// handleEnergyReport records an energy reading and folds it into state.
func (b *Bridge) handleEnergyReport(evt gateway.Event) {
	energyWh, ok := evt.Data.(float64)
	if !ok {
		return
	}

	if b.metrics != nil {
		b.metrics.WriteEnergy(evt.DeviceID, evt.GatewaySN, energyWh)
	}
	b.applyAndPublishState(evt.DeviceID, evt.GatewaySN,
		device.State{"energy_wh": energyWh})
}

// handleMotionStatus publishes a motion sensor transition as state and as
// an event.
func (b *Bridge) handleMotionStatus(evt gateway.Event) {
	motion, ok := evt.Data.(dali.MotionState)
	if !ok {
		return
	}

	occupied := motion == dali.MotionDetected ||
		motion == dali.MotionPresence ||
		motion == dali.MotionOccupancy

	if b.metrics != nil {
		b.metrics.WriteMotion(evt.DeviceID, evt.GatewaySN, string(motion), occupied)
	}

	b.applyAndPublishState(evt.DeviceID, evt.GatewaySN,
		device.State{"motion": string(motion)})

	if occupied {
		b.publishJSON(b.topics.DeviceEvent(evt.DeviceID),
			NewEventMessage(evt.DeviceID, evt.GatewaySN, "motion", map[string]any{
				"state": string(motion),
			}), false)
	}
}

// handleIlluminanceStatus publishes a lux reading.
func (b *Bridge) handleIlluminanceStatus(evt gateway.Event) {
	lux, ok := evt.Data.(float64)
	if !ok {
		return
	}

	if b.metrics != nil {
		b.metrics.WriteIlluminance(evt.DeviceID, evt.GatewaySN, lux)
	}
	b.applyAndPublishState(evt.DeviceID, evt.GatewaySN,
		device.State{"illuminance": lux})
}

// handlePanelButton publishes a panel interaction as a bus event.
func (b *Bridge) handlePanelButton(evt gateway.Event) {
	btn, ok := evt.Data.(dali.ButtonEvent)
	if !ok {
		return
	}

	data := map[string]any{"key": btn.Key}
	if btn.Action == dali.ActionRotate {
		data["delta"] = btn.RotateValue
	}

	b.publishJSON(b.topics.DeviceEvent(evt.DeviceID),
		NewEventMessage(evt.DeviceID, evt.GatewaySN, string(btn.Action), data), false)
}

// handleScanProgress relays scan progress and triggers an inventory refresh
// when the scan completes.
func (b *Bridge) handleScanProgress(link Link, evt gateway.Event) {
	progress, ok := evt.Data.(dali.ScanProgress)
	if !ok {
		return
	}

	b.publishJSON(b.topics.ScanProgress(evt.GatewaySN), map[string]any{
		"gateway_sn": evt.GatewaySN,
		"percent":    progress.Percent,
		"found":      progress.Found,
		"done":       progress.Done,
		"timestamp":  time.Now().UTC(),
	}, false)

	if progress.Done {
		// Discovery issues gateway requests that wait on responses, so it
		// must not run on the dispatch loop delivering this event.
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := b.runDiscovery(link); err != nil {
				b.logError("post-scan discovery failed", err)
			}
		}()
	}
}

// applyAndPublishState merges a state update into the registry and, when it
// changed something, publishes the merged state retained on the bus.
func (b *Bridge) applyAndPublishState(deviceID, gatewaySN string, update device.State) {
	rec, err := b.registry.ApplyState(b.ctx, deviceID, update)
	if err != nil {
		b.logError("failed to apply device state", err)
		return
	}
	if rec == nil {
		// Unknown device or no change.
		return
	}

	b.publishJSON(b.topics.DeviceState(deviceID),
		NewStateMessage(deviceID, gatewaySN, rec.State), true)
}

// stateFromProperties converts a gateway property report into canonical
// state keys.
func stateFromProperties(props []dali.Property) device.State {
	state := make(device.State)
	for _, prop := range props {
		switch prop.Code() {
		case dali.DpidSwitch:
			if v, ok := prop.Value.(bool); ok {
				state["on"] = v
			}
		case dali.DpidBrightness:
			if v, ok := numericValue(prop.Value); ok {
				state["brightness"] = dali.BrightnessToPercent(int(v))
			}
		case dali.DpidColorTemp:
			if v, ok := numericValue(prop.Value); ok {
				state["color_temp"] = int(v)
			}
		case dali.DpidColor:
			if s, ok := prop.Value.(string); ok {
				if hue, sat, val, err := dali.DecodeHSV(s); err == nil {
					state["hue"] = hue
					state["saturation"] = sat
					state["value"] = val
				}
			}
		case dali.DpidWhiteLevel:
			if v, ok := numericValue(prop.Value); ok {
				state["white_level"] = int(v)
			}
		}
	}
	return state
}

// numericValue coerces a decoded JSON number.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// =============================================================================
// Bus message handling
// =============================================================================

// handleBusMessage routes incoming bus messages by topic.
func (b *Bridge) handleBusMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return fmt.Errorf("invalid topic format: %s", topic)
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[3], payload)
	case "request":
		b.handleRequest(parts[3], payload)
	default:
		return fmt.Errorf("unknown message type: %s", parts[1])
	}
	return nil
}

// handleCommand processes a device command from Core.
func (b *Bridge) handleCommand(deviceID string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = deviceID
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	rec, err := b.registry.Get(b.ctx, cmd.DeviceID)
	if err != nil {
		b.publishAckError(cmd, ErrCodeUnknownDevice,
			fmt.Sprintf("device %s not known", cmd.DeviceID))
		return
	}

	link, ok := b.linkFor(rec.GatewaySN)
	if !ok {
		b.publishAckError(cmd, ErrCodeGatewayUnreachable,
			fmt.Sprintf("gateway %s not configured", rec.GatewaySN))
		return
	}

	if cmd.Command == CmdRead {
		if err := link.Client.ReadDevice(rec.Device); err != nil {
			b.publishAckError(cmd, ErrCodeGatewayUnreachable, err.Error())
			return
		}
		b.publishAck(cmd, AckAccepted)
		return
	}

	props, errCode, errMsg := buildProperties(rec.Device, cmd)
	if errCode != "" {
		b.publishAckError(cmd, errCode, errMsg)
		return
	}

	if err := link.Client.WriteDevice(rec.Device, props...); err != nil {
		b.publishAckError(cmd, ErrCodeGatewayUnreachable, err.Error())
		return
	}

	b.publishAck(cmd, AckAccepted)
}

// buildProperties translates a command into gateway properties.
// Returns an error code and message instead of an error so callers can ack
// with the right code.
func buildProperties(dev dali.Device, cmd CommandMessage) ([]dali.Property, string, string) {
	if !dali.IsLightDevice(dev.Type) {
		return nil, ErrCodeUnsupported,
			fmt.Sprintf("device type %s does not accept commands", dev.Type)
	}

	switch cmd.Command {
	case CmdOn:
		return []dali.Property{dali.SwitchProperty(true)}, "", ""

	case CmdOff:
		return []dali.Property{dali.SwitchProperty(false)}, "", ""

	case CmdBrightness:
		level, ok := paramNumber(cmd.Parameters, "level")
		if !ok {
			return nil, ErrCodeInvalidParameters, "missing 'level' parameter"
		}
		if level < 0 || level > 100 {
			return nil, ErrCodeInvalidParameters,
				fmt.Sprintf("'level' must be 0-100, got %.2f", level)
		}
		// Writing brightness implies the light should be on.
		return []dali.Property{
			dali.SwitchProperty(true),
			dali.BrightnessProperty(level),
		}, "", ""

	case CmdColorTemp:
		if !dali.IsColorTempDevice(dev.Type) {
			return nil, ErrCodeUnsupported, "device has no tunable white channel"
		}
		kelvin, ok := paramNumber(cmd.Parameters, "kelvin")
		if !ok {
			return nil, ErrCodeInvalidParameters, "missing 'kelvin' parameter"
		}
		return []dali.Property{dali.ColorTempProperty(int(kelvin))}, "", ""

	case CmdColor:
		if !dali.IsColorDevice(dev.Type) {
			return nil, ErrCodeUnsupported, "device has no colour channel"
		}
		hue, hok := paramNumber(cmd.Parameters, "hue")
		sat, sok := paramNumber(cmd.Parameters, "saturation")
		val, vok := paramNumber(cmd.Parameters, "value")
		if !hok || !sok || !vok {
			return nil, ErrCodeInvalidParameters,
				"color requires 'hue', 'saturation' and 'value' parameters"
		}
		return []dali.Property{dali.ColorProperty(hue, sat, val)}, "", ""

	case CmdWhiteLevel:
		level, ok := paramNumber(cmd.Parameters, "level")
		if !ok {
			return nil, ErrCodeInvalidParameters, "missing 'level' parameter"
		}
		return []dali.Property{dali.WhiteLevelProperty(int(level))}, "", ""

	default:
		return nil, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", cmd.Command)
	}
}

// paramNumber extracts a numeric parameter from a decoded JSON payload.
func paramNumber(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	return numericValue(v)
}

// handleRequest processes a bridge operation request from Core.
func (b *Bridge) handleRequest(operation string, payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"operation", operation)

	var resp ResponseMessage
	switch operation {
	case OpScan:
		resp = b.handleScan(req, true)
	case OpStopScan:
		resp = b.handleScan(req, false)
	case OpDiscover:
		resp = b.handleDiscover(req)
	case OpScene:
		resp = b.handleScene(req)
	case OpGroup:
		resp = b.handleGroup(req)
	case OpReadDevice:
		resp = b.handleReadDevice(req)
	default:
		resp = failResponse(req, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown operation: %s", operation))
	}

	b.publishJSON(b.topics.Response(req.RequestID), resp, false)
}

// handleScan starts or stops a bus scan on the targeted gateway.
func (b *Bridge) handleScan(req RequestMessage, start bool) ResponseMessage {
	link, resp, ok := b.requireLink(req)
	if !ok {
		return resp
	}

	ctx, cancel := context.WithTimeout(b.ctx, requestTimeout)
	defer cancel()

	var err error
	if start {
		err = link.Client.ScanBus(ctx)
	} else {
		err = link.Client.StopScan(ctx)
	}
	if err != nil {
		return failResponse(req, ErrCodeGatewayUnreachable, err.Error())
	}

	return okResponse(req, map[string]any{
		"gateway_sn": link.SerialNumber,
		"scanning":   start,
	})
}

// handleDiscover runs an immediate inventory refresh against one gateway.
func (b *Bridge) handleDiscover(req RequestMessage) ResponseMessage {
	link, resp, ok := b.requireLink(req)
	if !ok {
		return resp
	}

	if err := b.runDiscovery(link); err != nil {
		return failResponse(req, ErrCodeGatewayUnreachable, err.Error())
	}

	return okResponse(req, map[string]any{
		"gateway_sn": link.SerialNumber,
		"devices":    b.registry.Count(),
	})
}

// handleScene activates a DALI scene.
func (b *Bridge) handleScene(req RequestMessage) ResponseMessage {
	link, resp, ok := b.requireLink(req)
	if !ok {
		return resp
	}

	channel, cok := paramNumber(req.Parameters, "channel")
	sceneID, sok := paramNumber(req.Parameters, "scene_id")
	if !cok || !sok {
		return failResponse(req, ErrCodeInvalidParameters,
			"scene requires 'channel' and 'scene_id' parameters")
	}

	if err := link.Client.ActivateScene(int(channel), int(sceneID)); err != nil {
		return failResponse(req, ErrCodeGatewayUnreachable, err.Error())
	}

	return okResponse(req, map[string]any{
		"gateway_sn": link.SerialNumber,
		"scene_id":   int(sceneID),
	})
}

// handleGroup applies a device command to a DALI group.
func (b *Bridge) handleGroup(req RequestMessage) ResponseMessage {
	link, resp, ok := b.requireLink(req)
	if !ok {
		return resp
	}

	channel, cok := paramNumber(req.Parameters, "channel")
	groupID, gok := paramNumber(req.Parameters, "group_id")
	command, _ := req.Parameters["command"].(string)
	if !cok || !gok || command == "" {
		return failResponse(req, ErrCodeInvalidParameters,
			"group requires 'channel', 'group_id' and 'command' parameters")
	}

	// Group commands reuse the device command vocabulary. A group is
	// addressed blind: members ignore properties they lack, so the
	// capability check uses the most capable light type.
	cmd := CommandMessage{Command: command, Parameters: req.Parameters}
	props, errCode, errMsg := buildProperties(dali.Device{Type: dali.TypeRGBWA}, cmd)
	if errCode != "" {
		return failResponse(req, errCode, errMsg)
	}

	if err := link.Client.WriteGroup(int(channel), int(groupID), props...); err != nil {
		return failResponse(req, ErrCodeGatewayUnreachable, err.Error())
	}

	return okResponse(req, map[string]any{
		"gateway_sn": link.SerialNumber,
		"group_id":   int(groupID),
	})
}

// handleReadDevice asks the gateway to re-report a device's properties.
func (b *Bridge) handleReadDevice(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return failResponse(req, ErrCodeInvalidParameters, "device_id is required")
	}

	rec, err := b.registry.Get(b.ctx, req.DeviceID)
	if err != nil {
		return failResponse(req, ErrCodeUnknownDevice,
			fmt.Sprintf("device %s not known", req.DeviceID))
	}

	link, ok := b.linkFor(rec.GatewaySN)
	if !ok {
		return failResponse(req, ErrCodeGatewayUnreachable,
			fmt.Sprintf("gateway %s not configured", rec.GatewaySN))
	}

	if err := link.Client.ReadDevice(rec.Device); err != nil {
		return failResponse(req, ErrCodeGatewayUnreachable, err.Error())
	}

	return okResponse(req, map[string]any{
		"message": "read request sent, state updates will follow",
	})
}

// =============================================================================
// Discovery
// =============================================================================

// runDiscovery pulls the full inventory from one gateway, reconciles the
// registry, and publishes a retained discovery snapshot.
func (b *Bridge) runDiscovery(link Link) error {
	ctx, cancel := context.WithTimeout(b.ctx, discoveryTimeout)
	defer cancel()

	devices, err := link.Client.DiscoverDevices(ctx)
	if err != nil {
		return fmt.Errorf("discover devices: %w", err)
	}

	diff, err := b.registry.SyncScanResults(ctx, link.SerialNumber, devices)
	if err != nil {
		return fmt.Errorf("sync scan results: %w", err)
	}

	groups, err := link.Client.DiscoverGroups(ctx)
	if err != nil {
		b.logError("failed to discover groups", err)
	} else if err := b.registry.SyncGroups(ctx, link.SerialNumber, groups); err != nil {
		b.logError("failed to sync groups", err)
	}

	scenes, err := link.Client.DiscoverScenes(ctx)
	if err != nil {
		b.logError("failed to discover scenes", err)
	} else if err := b.registry.SyncScenes(ctx, link.SerialNumber, scenes); err != nil {
		b.logError("failed to sync scenes", err)
	}

	b.publishDiscovery(link.SerialNumber, devices, groups, scenes)

	// Newly found devices are reachable; removed ones never will be again.
	for _, dev := range diff.Added {
		b.publishJSON(b.topics.DeviceAvailability(dev.ID),
			NewAvailabilityMessage(true), true)
	}
	for _, dev := range diff.Removed {
		b.publishJSON(b.topics.DeviceAvailability(dev.ID),
			NewAvailabilityMessage(false), true)
	}

	b.logInfo("discovery complete",
		"gateway_sn", link.SerialNumber,
		"devices", len(devices),
		"added", len(diff.Added),
		"removed", len(diff.Removed))

	return nil
}

// publishDiscovery publishes the retained inventory snapshot.
func (b *Bridge) publishDiscovery(gatewaySN string, devices []dali.Device, groups []dali.Group, scenes []dali.Scene) {
	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.id,
		GatewaySN: gatewaySN,
		Devices:   make([]DiscoveredDevice, 0, len(devices)),
		Groups:    groups,
		Scenes:    scenes,
	}

	for _, dev := range devices {
		msg.Devices = append(msg.Devices, DiscoveredDevice{
			ID:           dev.ID,
			Type:         dev.Type,
			Name:         dev.Name,
			Channel:      dev.Channel,
			Address:      dev.Address,
			Capabilities: capabilitiesFor(dev.Type),
			Manufacturer: dali.Manufacturer,
		})
	}

	b.publishJSON(b.topics.Discovery(), msg, true)
}

// =============================================================================
// Helpers
// =============================================================================

// linkFor returns the link for a gateway serial.
func (b *Bridge) linkFor(gatewaySN string) (Link, bool) {
	b.linksMu.RLock()
	defer b.linksMu.RUnlock()
	link, ok := b.links[gatewaySN]
	return link, ok
}

// requireLink resolves the gateway targeted by a request.
func (b *Bridge) requireLink(req RequestMessage) (Link, ResponseMessage, bool) {
	if req.GatewaySN == "" {
		return Link{}, failResponse(req, ErrCodeInvalidParameters,
			"gateway_sn is required"), false
	}
	link, ok := b.linkFor(req.GatewaySN)
	if !ok {
		return Link{}, failResponse(req, ErrCodeGatewayUnreachable,
			fmt.Sprintf("gateway %s not configured", req.GatewaySN)), false
	}
	return link, ResponseMessage{}, true
}

// okResponse builds a success response.
func okResponse(req RequestMessage, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

// failResponse builds an error response.
func failResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error: &ResponseError{
			Code:    code,
			Message: message,
		},
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	b.publishJSON(b.topics.Ack(cmd.DeviceID), NewAckMessage(cmd, status), false)
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	b.publishJSON(b.topics.Ack(cmd.DeviceID), NewAckError(cmd, code, message), false)
	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

// publishJSON marshals and publishes a payload, logging failures.
func (b *Bridge) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal payload", err)
		return
	}
	if err := b.bus.Publish(topic, payload, 1, retained); err != nil {
		b.logError("failed to publish", fmt.Errorf("topic=%s: %w", topic, err))
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
