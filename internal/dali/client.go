package dali

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/gateway"
)

const (
	// commandQoS is used for all gateway traffic. The gateway's broker is a
	// single local hop; at-least-once is enough.
	commandQoS byte = 1

	// DefaultScanTimeout bounds a full bus scan. A four-channel bus with
	// addressing collisions can genuinely take this long.
	DefaultScanTimeout = 600 * time.Second

	// broadcastType targets every device on a channel in a write command.
	broadcastType = "FFFF"
)

// Conn is the subset of gateway.Connection the client needs. Narrowed for
// tests.
type Conn interface {
	Subscribe(topic string, qos byte, handler gateway.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Emit(evt gateway.Event)
	SerialNumber() string
}

// Client speaks the DALI Center protocol over an established gateway
// connection.
//
// Commands that expect an answer are correlated to it by message ID;
// unsolicited reports are decoded into typed events and emitted through the
// connection's listener table.
//
// Thread Safety: all methods are safe for concurrent use. Request methods
// block and must not be called from an event listener.
type Client struct {
	conn   Conn
	log    gateway.Logger
	topics Topics

	mu      sync.Mutex
	pending map[string]chan envelope
}

// NewClient creates a protocol client for one gateway connection.
// Call Start once the connection is up to begin receiving reports.
func NewClient(conn Conn, logger gateway.Logger) *Client {
	return &Client{
		conn:    conn,
		log:     logger,
		topics:  Topics{SerialNumber: conn.SerialNumber()},
		pending: make(map[string]chan envelope),
	}
}

// Start subscribes to the gateway's response and report topics. The
// connection restores both subscriptions automatically after a reconnect.
func (c *Client) Start() error {
	if err := c.conn.Subscribe(c.topics.Response(), commandQoS, c.handleResponse); err != nil {
		return fmt.Errorf("subscribing to responses: %w", err)
	}
	if err := c.conn.Subscribe(c.topics.Report(), commandQoS, c.handleReport); err != nil {
		return fmt.Errorf("subscribing to reports: %w", err)
	}
	return nil
}

// =============================================================================
// Discovery
// =============================================================================

// DiscoverDevices asks the gateway for every commissioned device.
func (c *Client) DiscoverDevices(ctx context.Context) ([]Device, error) {
	raw, err := c.request(ctx, cmdGetDevList, nil)
	if err != nil {
		return nil, err
	}

	var resp devListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding device list: %w", err)
	}

	sn := c.conn.SerialNumber()
	for i := range resp.Devices {
		resp.Devices[i].GatewaySN = sn
		if resp.Devices[i].ID == "" {
			d := &resp.Devices[i]
			d.ID = DeviceID(d.Type, d.Channel, d.Address, sn)
		}
	}
	return resp.Devices, nil
}

// DiscoverGroups asks the gateway for every configured group.
func (c *Client) DiscoverGroups(ctx context.Context) ([]Group, error) {
	raw, err := c.request(ctx, cmdGetGroupList, nil)
	if err != nil {
		return nil, err
	}

	var resp groupListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding group list: %w", err)
	}

	for i := range resp.Groups {
		resp.Groups[i].GatewaySN = c.conn.SerialNumber()
	}
	return resp.Groups, nil
}

// DiscoverScenes asks the gateway for every configured scene.
func (c *Client) DiscoverScenes(ctx context.Context) ([]Scene, error) {
	raw, err := c.request(ctx, cmdGetSceneList, nil)
	if err != nil {
		return nil, err
	}

	var resp sceneListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding scene list: %w", err)
	}

	for i := range resp.Scenes {
		resp.Scenes[i].GatewaySN = c.conn.SerialNumber()
	}
	return resp.Scenes, nil
}

// SceneDetail fetches a scene's per-device levels.
func (c *Client) SceneDetail(ctx context.Context, channel, sceneID int) (SceneDetail, error) {
	raw, err := c.request(ctx, cmdGetSceneDetail, sceneDetailData{Channel: channel, SceneID: sceneID})
	if err != nil {
		return SceneDetail{}, err
	}

	var detail SceneDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return SceneDetail{}, fmt.Errorf("decoding scene detail: %w", err)
	}
	detail.GatewaySN = c.conn.SerialNumber()
	return detail, nil
}

// =============================================================================
// Bus scan
// =============================================================================

// ScanBus starts a full bus scan. Progress arrives as scan progress events;
// run discovery again once the scan completes to pick up the new device
// list. The gateway acks the start before scanning.
func (c *Client) ScanBus(ctx context.Context) error {
	_, err := c.request(ctx, cmdSetBusScan, busScanData{Enable: true})
	return err
}

// StopScan aborts a running bus scan.
func (c *Client) StopScan(ctx context.Context) error {
	_, err := c.request(ctx, cmdSetBusScan, busScanData{Enable: false})
	return err
}

// =============================================================================
// Device control
// =============================================================================

// WriteDevice sends datapoint writes to one device. Fire and forget: the
// outcome shows up as a device status report.
func (c *Client) WriteDevice(dev Device, props ...Property) error {
	return c.send(cmdWriteDev, writeDevData{
		DevType:  dev.Type,
		Channel:  dev.Channel,
		Address:  dev.Address,
		Property: props,
	})
}

// ReadDevice asks a device to report the listed datapoints; with none
// listed it reports everything.
func (c *Client) ReadDevice(dev Device, dpids ...int) error {
	return c.send(cmdReadDev, readDevData{
		DevType: dev.Type,
		Channel: dev.Channel,
		Address: dev.Address,
		Dpid:    dpids,
	})
}

// WriteGroup sends datapoint writes to a DALI group.
func (c *Client) WriteGroup(channel, groupID int, props ...Property) error {
	return c.send(cmdWriteGroup, writeGroupData{
		Channel:  channel,
		GroupID:  groupID,
		Property: props,
	})
}

// ActivateScene recalls a scene on a channel.
func (c *Client) ActivateScene(channel, sceneID int) error {
	return c.send(cmdWriteScene, writeSceneData{
		Channel: channel,
		SceneID: sceneID,
	})
}

// Broadcast sends datapoint writes to every device on a channel.
func (c *Client) Broadcast(channel int, props ...Property) error {
	return c.send(cmdWriteDev, writeDevData{
		DevType:  broadcastType,
		Channel:  channel,
		Address:  0,
		Property: props,
	})
}

// =============================================================================
// Wire plumbing
// =============================================================================

// send publishes a command that expects no response.
func (c *Client) send(cmd string, data any) error {
	env, err := newEnvelope(cmd, data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", cmd, err)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", cmd, err)
	}
	return c.conn.Publish(c.topics.Command(), commandQoS, false, payload)
}

// request publishes a command and blocks until the matching response
// arrives or ctx expires.
func (c *Client) request(ctx context.Context, cmd string, data any) (json.RawMessage, error) {
	env, err := newEnvelope(cmd, data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", cmd, err)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", cmd, err)
	}

	resp := make(chan envelope, 1)
	c.mu.Lock()
	c.pending[env.MsgID] = resp
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, env.MsgID)
		c.mu.Unlock()
	}()

	if err := c.conn.Publish(c.topics.Command(), commandQoS, false, payload); err != nil {
		return nil, err
	}

	select {
	case got := <-resp:
		return got.Data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrRequestTimeout, cmd, ctx.Err())
	}
}

// handleResponse delivers a command response to its waiting request.
// Runs on the connection's dispatch loop.
func (c *Client) handleResponse(_ string, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logWarn("undecodable response", "error", err)
		return
	}

	c.mu.Lock()
	waiter := c.pending[env.MsgID]
	c.mu.Unlock()

	if waiter == nil {
		// Late answer to a request that already timed out.
		c.logDebug("unmatched response", "cmd", env.Cmd, "msg_id", env.MsgID)
		return
	}

	select {
	case waiter <- env:
	default:
	}
}

// handleReport decodes an unsolicited report into typed events.
// Runs on the connection's dispatch loop, so Emit is legal here.
func (c *Client) handleReport(_ string, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logWarn("undecodable report", "error", err)
		return
	}

	switch env.Cmd {
	case reportDevStatus:
		c.reportDevStatus(env.Data)
	case reportOnlineStatus:
		c.reportOnlineStatus(env.Data)
	case reportEnergy:
		c.reportEnergy(env.Data)
	case reportScanProgress:
		c.reportScanProgress(env.Data)
	default:
		c.logDebug("unhandled report", "cmd", env.Cmd)
	}
}

func (c *Client) reportDevStatus(data json.RawMessage) {
	var report devStatusReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logWarn("undecodable device status", "error", err)
		return
	}

	devType, _, _, _, err := ParseDeviceID(report.DevID)
	if err != nil {
		c.logWarn("device status for malformed device id", "dev_id", report.DevID)
		return
	}

	switch {
	case IsPanelDevice(devType):
		c.emitPanelEvents(report)
	case IsMotionSensor(devType):
		c.emitMotionStatus(report)
	case IsIlluminanceSensor(devType):
		c.emitIlluminanceStatus(report)
	default:
		c.conn.Emit(gateway.Event{
			Type:     gateway.EventDeviceStatus,
			DeviceID: report.DevID,
			Data:     report.Property,
		})
	}
}

// emitPanelEvents turns each button datapoint in a panel report into its own
// event. The rotary knob's rotation delta rides in the property value.
func (c *Client) emitPanelEvents(report devStatusReport) {
	for _, prop := range report.Property {
		action, ok := ButtonActionForDpid(prop.Code())
		if !ok {
			c.logDebug("unknown panel datapoint",
				"dev_id", report.DevID,
				"dpid", prop.Code(),
			)
			continue
		}

		evt := ButtonEvent{Key: prop.KeyNo, Action: action}
		if action == ActionRotate {
			evt.RotateValue = intValue(prop.Value)
		}

		c.conn.Emit(gateway.Event{
			Type:     gateway.EventPanelButton,
			DeviceID: report.DevID,
			Data:     evt,
		})
	}
}

func (c *Client) emitMotionStatus(report devStatusReport) {
	for _, prop := range report.Property {
		if prop.Code() != DpidMotionState {
			continue
		}
		c.conn.Emit(gateway.Event{
			Type:     gateway.EventMotionStatus,
			DeviceID: report.DevID,
			Data:     MotionStateFromCode(intValue(prop.Value)),
		})
	}
}

func (c *Client) emitIlluminanceStatus(report devStatusReport) {
	for _, prop := range report.Property {
		if prop.Code() != DpidIlluminance {
			continue
		}
		c.conn.Emit(gateway.Event{
			Type:     gateway.EventIlluminanceStatus,
			DeviceID: report.DevID,
			Data:     floatValue(prop.Value),
		})
	}
}

func (c *Client) reportOnlineStatus(data json.RawMessage) {
	var report onlineStatusReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logWarn("undecodable online status", "error", err)
		return
	}

	for _, dev := range report.Devices {
		c.conn.Emit(gateway.Event{
			Type:     gateway.EventOnlineStatus,
			DeviceID: dev.DevID,
			Data:     dev.Online,
		})
	}
}

func (c *Client) reportEnergy(data json.RawMessage) {
	var report energyReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logWarn("undecodable energy report", "error", err)
		return
	}

	c.conn.Emit(gateway.Event{
		Type:     gateway.EventEnergyReport,
		DeviceID: report.DevID,
		Data:     report.Energy,
	})
}

func (c *Client) reportScanProgress(data json.RawMessage) {
	var progress ScanProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		c.logWarn("undecodable scan progress", "error", err)
		return
	}

	c.conn.Emit(gateway.Event{
		Type: gateway.EventScanProgress,
		Data: progress,
	})
}

// intValue coerces a decoded JSON value to int. Numbers arrive as float64.
func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.log != nil {
		c.log.Debug(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.log != nil {
		c.log.Warn(msg, args...)
	}
}
