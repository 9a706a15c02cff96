package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/device"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/gateway"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/mqtt"
)

const testGatewaySN = "DA0C8E5A6B21"

// =============================================================================
// Mocks
// =============================================================================

// mockBus implements BusClient for testing.
type mockBus struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
	connected bool
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	Retained bool
}

func newMockBus() *mockBus {
	return &mockBus{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *mockBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

func (m *mockBus) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockBus) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// simulate delivers a message the way the broker would: matched against
// the registered wildcard subscriptions.
func (m *mockBus) simulate(t *testing.T, topic string, payload []byte) {
	t.Helper()

	m.mu.Lock()
	var handler mqtt.MessageHandler
	for pattern, h := range m.handlers {
		prefix := strings.TrimSuffix(pattern, "+")
		if strings.HasPrefix(topic, prefix) {
			handler = h
			break
		}
	}
	m.mu.Unlock()

	if handler == nil {
		t.Fatalf("no subscription matches topic %s", topic)
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
}

func (m *mockBus) getPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// lastOn returns the most recent publish on a topic.
func (m *mockBus) lastOn(t *testing.T, topic string) mockPublish {
	t.Helper()
	for _, p := range m.getPublished() {
		if p.Topic == topic {
			return p
		}
	}
	t.Fatalf("nothing published on %s", topic)
	return mockPublish{}
}

func (m *mockBus) hasPublished(topic string) bool {
	for _, p := range m.getPublished() {
		if p.Topic == topic {
			return true
		}
	}
	return false
}

// mockGatewayClient implements GatewayClient for testing.
type mockGatewayClient struct {
	mu          sync.Mutex
	writes      []mockWrite
	reads       []dali.Device
	groupWrites []mockGroupWrite
	scenes      []int
	scanning    bool
	writeErr    error

	discoverDevices []dali.Device
	discoverGroups  []dali.Group
	discoverScenes  []dali.Scene
	discoverErr     error
	discovered      int
}

type mockWrite struct {
	Device dali.Device
	Props  []dali.Property
}

type mockGroupWrite struct {
	Channel int
	GroupID int
	Props   []dali.Property
}

func (m *mockGatewayClient) DiscoverDevices(ctx context.Context) ([]dali.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discovered++
	return m.discoverDevices, m.discoverErr
}

func (m *mockGatewayClient) DiscoverGroups(ctx context.Context) ([]dali.Group, error) {
	return m.discoverGroups, nil
}

func (m *mockGatewayClient) DiscoverScenes(ctx context.Context) ([]dali.Scene, error) {
	return m.discoverScenes, nil
}

func (m *mockGatewayClient) ScanBus(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = true
	return nil
}

func (m *mockGatewayClient) StopScan(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = false
	return nil
}

func (m *mockGatewayClient) WriteDevice(dev dali.Device, props ...dali.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, mockWrite{Device: dev, Props: props})
	return nil
}

func (m *mockGatewayClient) ReadDevice(dev dali.Device, dpids ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, dev)
	return nil
}

func (m *mockGatewayClient) WriteGroup(channel, groupID int, props ...dali.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupWrites = append(m.groupWrites, mockGroupWrite{Channel: channel, GroupID: groupID, Props: props})
	return nil
}

func (m *mockGatewayClient) ActivateScene(channel, sceneID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes = append(m.scenes, sceneID)
	return nil
}

func (m *mockGatewayClient) lastWrite(t *testing.T) mockWrite {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		t.Fatal("no device writes recorded")
	}
	return m.writes[len(m.writes)-1]
}

// mockConn implements LinkConnection and lets tests fire gateway events.
type mockConn struct {
	mu       sync.Mutex
	state    gateway.State
	handlers map[gateway.EventType][]gateway.Handler
}

func newMockConn() *mockConn {
	return &mockConn{
		state:    gateway.StateConnected,
		handlers: make(map[gateway.EventType][]gateway.Handler),
	}
}

func (m *mockConn) On(event gateway.EventType, deviceID string, fn gateway.Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], fn)
	return func() {}
}

func (m *mockConn) State() gateway.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// emit delivers an event to registered listeners, stamping the serial the
// way a real connection does.
func (m *mockConn) emit(evt gateway.Event) {
	if evt.GatewaySN == "" {
		evt.GatewaySN = testGatewaySN
	}
	m.mu.Lock()
	handlers := append([]gateway.Handler(nil), m.handlers[evt.Type]...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(evt)
	}
}

// mockRegistry implements DeviceRegistry for testing.
type mockRegistry struct {
	mu           sync.Mutex
	records      map[string]*device.Record
	gatewayAvail map[string]bool
	groups       []dali.Group
	scenes       []dali.Scene
	synced       [][]dali.Device
	diff         device.ScanDiff
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		records:      make(map[string]*device.Record),
		gatewayAvail: make(map[string]bool),
	}
}

func (m *mockRegistry) add(rec device.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = &rec
}

func (m *mockRegistry) Get(ctx context.Context, id string) (*device.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	out := rec.DeepCopy()
	return out, nil
}

func (m *mockRegistry) ApplyState(ctx context.Context, id string, update device.State) (*device.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	if rec.State == nil {
		rec.State = make(device.State)
	}
	if !rec.State.Merge(update) {
		return nil, nil
	}
	out := rec.DeepCopy()
	return out, nil
}

func (m *mockRegistry) SetOnline(ctx context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		rec.Online = online
	}
	return nil
}

func (m *mockRegistry) SetGatewayAvailability(ctx context.Context, gatewaySN string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gatewayAvail[gatewaySN] = available
	return nil
}

func (m *mockRegistry) SyncScanResults(ctx context.Context, gatewaySN string, discovered []dali.Device) (device.ScanDiff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, discovered)
	return m.diff, nil
}

func (m *mockRegistry) SyncGroups(ctx context.Context, gatewaySN string, groups []dali.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = groups
	return nil
}

func (m *mockRegistry) SyncScenes(ctx context.Context, gatewaySN string, scenes []dali.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes = scenes
	return nil
}

func (m *mockRegistry) Groups(ctx context.Context, gatewaySN string) ([]dali.Group, error) {
	return m.groups, nil
}

func (m *mockRegistry) Scenes(ctx context.Context, gatewaySN string) ([]dali.Scene, error) {
	return m.scenes, nil
}

func (m *mockRegistry) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockMetrics implements MetricsWriter for testing.
type mockMetrics struct {
	mu      sync.Mutex
	energy  []float64
	lux     []float64
	motions []string
	gateway []bool
}

func (m *mockMetrics) WriteEnergy(deviceID, gatewaySN string, energyWh float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.energy = append(m.energy, energyWh)
}

func (m *mockMetrics) WriteIlluminance(deviceID, gatewaySN string, lux float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lux = append(m.lux, lux)
}

func (m *mockMetrics) WriteMotion(deviceID, gatewaySN, state string, occupied bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.motions = append(m.motions, state)
}

func (m *mockMetrics) WriteGatewayAvailability(gatewaySN string, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateway = append(m.gateway, online)
}

// =============================================================================
// Test setup helpers
// =============================================================================

type testHarness struct {
	bridge   *Bridge
	bus      *mockBus
	client   *mockGatewayClient
	conn     *mockConn
	registry *mockRegistry
	metrics  *mockMetrics
}

func newTestBridge(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		bus:      newMockBus(),
		client:   &mockGatewayClient{},
		conn:     newMockConn(),
		registry: newMockRegistry(),
		metrics:  &mockMetrics{},
	}

	b, err := New(Options{
		ID:      "dali",
		Version: "1.0.0",
		Bus:     h.bus,
		Links: []Link{{
			SerialNumber: testGatewaySN,
			Name:         "plant room",
			Conn:         h.conn,
			Client:       h.client,
		}},
		Registry:       h.registry,
		Metrics:        h.metrics,
		HealthInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	h.bridge = b

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(b.Stop)

	return h
}

func testLight(addr int) device.Record {
	id := dali.DeviceID(dali.TypeTunableWhite, 1, addr, testGatewaySN)
	return device.Record{
		Device: dali.Device{
			ID:        id,
			Type:      dali.TypeTunableWhite,
			Channel:   1,
			Address:   addr,
			Name:      fmt.Sprintf("Downlight %02d", addr),
			GatewaySN: testGatewaySN,
			Online:    true,
		},
		Available: true,
	}
}

func commandPayload(t *testing.T, deviceID, command string, params map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(CommandMessage{
		ID:         "cmd-1",
		Timestamp:  time.Now().UTC(),
		DeviceID:   deviceID,
		Command:    command,
		Parameters: params,
		Source:     "api",
	})
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	return payload
}

func requestPayload(t *testing.T, req RequestMessage) []byte {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return payload
}

func decodeAck(t *testing.T, p mockPublish) AckMessage {
	t.Helper()
	var ack AckMessage
	if err := json.Unmarshal(p.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func decodeResponse(t *testing.T, p mockPublish) ResponseMessage {
	t.Helper()
	var resp ResponseMessage
	if err := json.Unmarshal(p.Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// =============================================================================
// Construction and startup
// =============================================================================

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Fatal("New() with no options should fail")
	}

	_, err = New(Options{
		Bus:      newMockBus(),
		Registry: newMockRegistry(),
		Links:    []Link{{SerialNumber: "DA01"}},
	})
	if err == nil {
		t.Fatal("New() with incomplete link should fail")
	}
}

func TestStartSubscribesAndReportsHealth(t *testing.T) {
	h := newTestBridge(t)

	h.bus.mu.Lock()
	_, hasCommands := h.bus.handlers["graylogic/command/dali/+"]
	_, hasRequests := h.bus.handlers["graylogic/request/dali/+"]
	h.bus.mu.Unlock()

	if !hasCommands || !hasRequests {
		t.Error("expected subscriptions to command and request wildcards")
	}

	if !h.bus.hasPublished("graylogic/health/dali") {
		t.Error("expected a health report on startup")
	}
}

// =============================================================================
// Device commands
// =============================================================================

func TestCommandOn(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(2)
	h.registry.add(rec)

	h.bus.simulate(t, "graylogic/command/dali/"+rec.ID,
		commandPayload(t, rec.ID, CmdOn, nil))

	write := h.client.lastWrite(t)
	if write.Device.ID != rec.ID {
		t.Errorf("wrote to device %s, want %s", write.Device.ID, rec.ID)
	}
	if len(write.Props) != 1 || write.Props[0].Dpid != dali.DpidSwitch {
		t.Errorf("props = %+v, want single switch property", write.Props)
	}
	if on, _ := write.Props[0].Value.(bool); !on {
		t.Error("switch property should be true")
	}

	ack := decodeAck(t, h.bus.lastOn(t, "graylogic/ack/dali/"+rec.ID))
	if ack.Status != AckAccepted {
		t.Errorf("ack status = %s, want accepted", ack.Status)
	}
	if ack.CommandID != "cmd-1" {
		t.Errorf("ack command_id = %s, want cmd-1", ack.CommandID)
	}
}

func TestCommandBrightnessImpliesOn(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(2)
	h.registry.add(rec)

	h.bus.simulate(t, "graylogic/command/dali/"+rec.ID,
		commandPayload(t, rec.ID, CmdBrightness, map[string]any{"level": 50}))

	write := h.client.lastWrite(t)
	if len(write.Props) != 2 {
		t.Fatalf("props = %+v, want switch followed by brightness", write.Props)
	}
	if write.Props[0].Dpid != dali.DpidSwitch || write.Props[1].Dpid != dali.DpidBrightness {
		t.Errorf("unexpected dpids: %d, %d", write.Props[0].Dpid, write.Props[1].Dpid)
	}
	if write.Props[1].Value != 500 {
		t.Errorf("brightness permille = %v, want 500", write.Props[1].Value)
	}
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		params   map[string]any
		wantCode string
	}{
		{"unknown command", "explode", nil, ErrCodeInvalidCommand},
		{"missing level", CmdBrightness, nil, ErrCodeInvalidParameters},
		{"level out of range", CmdBrightness, map[string]any{"level": 250}, ErrCodeInvalidParameters},
		{"color on tunable white", CmdColor, map[string]any{"hue": 10, "saturation": 1, "value": 1}, ErrCodeUnsupported},
		{"color missing components", CmdColorTemp, nil, ErrCodeInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestBridge(t)
			rec := testLight(2)
			h.registry.add(rec)

			h.bus.simulate(t, "graylogic/command/dali/"+rec.ID,
				commandPayload(t, rec.ID, tt.command, tt.params))

			ack := decodeAck(t, h.bus.lastOn(t, "graylogic/ack/dali/"+rec.ID))
			if ack.Status != AckFailed {
				t.Fatalf("ack status = %s, want failed", ack.Status)
			}
			if ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("ack error = %+v, want code %s", ack.Error, tt.wantCode)
			}
		})
	}
}

func TestCommandUnknownDevice(t *testing.T) {
	h := newTestBridge(t)

	h.bus.simulate(t, "graylogic/command/dali/nope",
		commandPayload(t, "nope", CmdOn, nil))

	ack := decodeAck(t, h.bus.lastOn(t, "graylogic/ack/dali/nope"))
	if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != ErrCodeUnknownDevice {
		t.Errorf("ack = %+v, want failed with UNKNOWN_DEVICE", ack)
	}
}

func TestCommandWriteFailure(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(2)
	h.registry.add(rec)
	h.client.writeErr = errors.New("link down")

	h.bus.simulate(t, "graylogic/command/dali/"+rec.ID,
		commandPayload(t, rec.ID, CmdOn, nil))

	ack := decodeAck(t, h.bus.lastOn(t, "graylogic/ack/dali/"+rec.ID))
	if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != ErrCodeGatewayUnreachable {
		t.Errorf("ack = %+v, want failed with GATEWAY_UNREACHABLE", ack)
	}
}

func TestCommandRead(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(7)
	h.registry.add(rec)

	h.bus.simulate(t, "graylogic/command/dali/"+rec.ID,
		commandPayload(t, rec.ID, CmdRead, nil))

	h.client.mu.Lock()
	reads := len(h.client.reads)
	h.client.mu.Unlock()
	if reads != 1 {
		t.Errorf("read requests = %d, want 1", reads)
	}
}

// =============================================================================
// Requests
// =============================================================================

func TestRequestScan(t *testing.T) {
	h := newTestBridge(t)

	h.bus.simulate(t, "graylogic/request/dali/scan", requestPayload(t, RequestMessage{
		RequestID: "req-1",
		GatewaySN: testGatewaySN,
	}))

	h.client.mu.Lock()
	scanning := h.client.scanning
	h.client.mu.Unlock()
	if !scanning {
		t.Error("expected scan to start")
	}

	resp := decodeResponse(t, h.bus.lastOn(t, "graylogic/response/dali/req-1"))
	if !resp.Success {
		t.Errorf("response = %+v, want success", resp)
	}
}

func TestRequestScanMissingGateway(t *testing.T) {
	h := newTestBridge(t)

	h.bus.simulate(t, "graylogic/request/dali/scan", requestPayload(t, RequestMessage{
		RequestID: "req-2",
		GatewaySN: "UNKNOWN",
	}))

	resp := decodeResponse(t, h.bus.lastOn(t, "graylogic/response/dali/req-2"))
	if resp.Success || resp.Error == nil || resp.Error.Code != ErrCodeGatewayUnreachable {
		t.Errorf("response = %+v, want GATEWAY_UNREACHABLE failure", resp)
	}
}

func TestRequestScene(t *testing.T) {
	h := newTestBridge(t)

	h.bus.simulate(t, "graylogic/request/dali/scene", requestPayload(t, RequestMessage{
		RequestID:  "req-3",
		GatewaySN:  testGatewaySN,
		Parameters: map[string]any{"channel": 1, "scene_id": 4},
	}))

	h.client.mu.Lock()
	scenes := append([]int(nil), h.client.scenes...)
	h.client.mu.Unlock()
	if len(scenes) != 1 || scenes[0] != 4 {
		t.Errorf("activated scenes = %v, want [4]", scenes)
	}
}

func TestRequestGroup(t *testing.T) {
	h := newTestBridge(t)

	h.bus.simulate(t, "graylogic/request/dali/group", requestPayload(t, RequestMessage{
		RequestID: "req-4",
		GatewaySN: testGatewaySN,
		Parameters: map[string]any{
			"channel":  1,
			"group_id": 3,
			"command":  CmdBrightness,
			"level":    80,
		},
	}))

	h.client.mu.Lock()
	writes := append([]mockGroupWrite(nil), h.client.groupWrites...)
	h.client.mu.Unlock()
	if len(writes) != 1 {
		t.Fatalf("group writes = %d, want 1", len(writes))
	}
	if writes[0].GroupID != 3 || writes[0].Channel != 1 {
		t.Errorf("group write target = %+v", writes[0])
	}
	if len(writes[0].Props) != 2 {
		t.Errorf("group props = %+v, want switch and brightness", writes[0].Props)
	}
}

func TestRequestDiscover(t *testing.T) {
	h := newTestBridge(t)
	found := testLight(3)
	h.client.discoverDevices = []dali.Device{found.Device}
	h.client.discoverGroups = []dali.Group{{ID: 1, Channel: 0, Name: "Hall", GatewaySN: testGatewaySN}}

	h.bus.simulate(t, "graylogic/request/dali/discover", requestPayload(t, RequestMessage{
		RequestID: "req-5",
		GatewaySN: testGatewaySN,
	}))

	resp := decodeResponse(t, h.bus.lastOn(t, "graylogic/response/dali/req-5"))
	if !resp.Success {
		t.Fatalf("response = %+v, want success", resp)
	}

	h.registry.mu.Lock()
	synced := len(h.registry.synced)
	h.registry.mu.Unlock()
	if synced != 1 {
		t.Errorf("scan syncs = %d, want 1", synced)
	}

	disc := h.bus.lastOn(t, "graylogic/discovery/dali")
	if !disc.Retained {
		t.Error("discovery snapshot should be retained")
	}
	var msg DiscoveryMessage
	if err := json.Unmarshal(disc.Payload, &msg); err != nil {
		t.Fatalf("unmarshal discovery: %v", err)
	}
	if len(msg.Devices) != 1 || msg.Devices[0].ID != found.ID {
		t.Errorf("discovery devices = %+v", msg.Devices)
	}
	if msg.Devices[0].Manufacturer != dali.Manufacturer {
		t.Errorf("manufacturer = %s", msg.Devices[0].Manufacturer)
	}
	if len(msg.Groups) != 1 {
		t.Errorf("discovery groups = %+v", msg.Groups)
	}
}

// =============================================================================
// Gateway events
// =============================================================================

func TestDeviceStatusPublishesState(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(2)
	h.registry.add(rec)

	h.conn.emit(gateway.Event{
		Type:     gateway.EventDeviceStatus,
		DeviceID: rec.ID,
		Data: []dali.Property{
			{Dpid: dali.DpidSwitch, Value: true},
			{Dpid: dali.DpidBrightness, Value: float64(750)},
			{Dpid: dali.DpidColorTemp, Value: float64(4000)},
		},
	})

	p := h.bus.lastOn(t, "graylogic/state/dali/"+rec.ID)
	if !p.Retained {
		t.Error("state should be retained")
	}

	var msg StateMessage
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.State["on"] != true {
		t.Errorf("state on = %v", msg.State["on"])
	}
	if msg.State["brightness"] != 75.0 {
		t.Errorf("state brightness = %v, want 75", msg.State["brightness"])
	}
	if msg.State["color_temp"] != 4000.0 {
		t.Errorf("state color_temp = %v, want 4000", msg.State["color_temp"])
	}
	if msg.GatewaySN != testGatewaySN {
		t.Errorf("gateway_sn = %s", msg.GatewaySN)
	}
}

func TestDeviceStatusUnchangedNotRepublished(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(2)
	h.registry.add(rec)

	evt := gateway.Event{
		Type:     gateway.EventDeviceStatus,
		DeviceID: rec.ID,
		Data:     []dali.Property{{Dpid: dali.DpidSwitch, Value: true}},
	}
	h.conn.emit(evt)
	h.conn.emit(evt)

	count := 0
	for _, p := range h.bus.getPublished() {
		if p.Topic == "graylogic/state/dali/"+rec.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("state published %d times, want 1", count)
	}
}

func TestOnlineStatusPublishesAvailability(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(2)
	h.registry.add(rec)

	h.conn.emit(gateway.Event{
		Type:     gateway.EventOnlineStatus,
		DeviceID: rec.ID,
		Data:     false,
	})

	p := h.bus.lastOn(t, "graylogic/availability/dali/"+rec.ID)
	if !p.Retained {
		t.Error("availability should be retained")
	}
	var msg AvailabilityMessage
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		t.Fatalf("unmarshal availability: %v", err)
	}
	if msg.Online {
		t.Error("expected offline")
	}
}

func TestGatewayAvailability(t *testing.T) {
	h := newTestBridge(t)

	h.conn.emit(gateway.Event{Type: gateway.EventAvailability, Data: false})

	p := h.bus.lastOn(t, "graylogic/availability/dali/gateway/"+testGatewaySN)
	if !p.Retained {
		t.Error("gateway availability should be retained")
	}

	h.registry.mu.Lock()
	avail, recorded := h.registry.gatewayAvail[testGatewaySN]
	h.registry.mu.Unlock()
	if !recorded || avail {
		t.Error("expected gateway recorded unavailable in registry")
	}

	h.metrics.mu.Lock()
	writes := append([]bool(nil), h.metrics.gateway...)
	h.metrics.mu.Unlock()
	if len(writes) != 1 || writes[0] {
		t.Errorf("metric writes = %v, want [false]", writes)
	}
}

func TestPanelButtonEvent(t *testing.T) {
	h := newTestBridge(t)
	deviceID := dali.DeviceID(dali.TypePanelRotary, 1, 9, testGatewaySN)

	h.conn.emit(gateway.Event{
		Type:     gateway.EventPanelButton,
		DeviceID: deviceID,
		Data:     dali.ButtonEvent{Key: 1, Action: dali.ActionRotate, RotateValue: -3},
	})

	p := h.bus.lastOn(t, "graylogic/event/dali/"+deviceID)
	if p.Retained {
		t.Error("events must not be retained")
	}
	var msg EventMessage
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if msg.Event != "rotate" {
		t.Errorf("event = %s, want rotate", msg.Event)
	}
	if msg.Data["delta"] != -3.0 {
		t.Errorf("delta = %v, want -3", msg.Data["delta"])
	}
}

func TestMotionStatus(t *testing.T) {
	h := newTestBridge(t)
	deviceID := dali.DeviceID(dali.TypeMotionSensor, 1, 4, testGatewaySN)
	h.registry.add(device.Record{Device: dali.Device{
		ID: deviceID, Type: dali.TypeMotionSensor, Channel: 1, Address: 4, GatewaySN: testGatewaySN,
	}})

	h.conn.emit(gateway.Event{
		Type:     gateway.EventMotionStatus,
		DeviceID: deviceID,
		Data:     dali.MotionPresence,
	})

	var state StateMessage
	p := h.bus.lastOn(t, "graylogic/state/dali/"+deviceID)
	if err := json.Unmarshal(p.Payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.State["motion"] != "presence" {
		t.Errorf("motion state = %v", state.State["motion"])
	}

	if !h.bus.hasPublished("graylogic/event/dali/" + deviceID) {
		t.Error("expected a motion event for an occupied state")
	}

	h.metrics.mu.Lock()
	motions := append([]string(nil), h.metrics.motions...)
	h.metrics.mu.Unlock()
	if len(motions) != 1 || motions[0] != "presence" {
		t.Errorf("motion metrics = %v", motions)
	}
}

func TestEnergyReport(t *testing.T) {
	h := newTestBridge(t)
	rec := testLight(2)
	h.registry.add(rec)

	h.conn.emit(gateway.Event{
		Type:     gateway.EventEnergyReport,
		DeviceID: rec.ID,
		Data:     1234.5,
	})

	h.metrics.mu.Lock()
	energy := append([]float64(nil), h.metrics.energy...)
	h.metrics.mu.Unlock()
	if len(energy) != 1 || energy[0] != 1234.5 {
		t.Errorf("energy metrics = %v, want [1234.5]", energy)
	}

	var state StateMessage
	p := h.bus.lastOn(t, "graylogic/state/dali/"+rec.ID)
	if err := json.Unmarshal(p.Payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.State["energy_wh"] != 1234.5 {
		t.Errorf("energy_wh = %v", state.State["energy_wh"])
	}
}

func TestGatewayConnectTriggersDiscovery(t *testing.T) {
	h := newTestBridge(t)
	found := testLight(7)
	h.client.discoverDevices = []dali.Device{found.Device}

	h.conn.emit(gateway.Event{Type: gateway.EventAvailability, Data: true})

	waitFor(t, func() bool {
		return h.bus.hasPublished("graylogic/discovery/dali")
	}, "discovery snapshot never published after link came up")
}

func TestScanProgressDoneTriggersDiscovery(t *testing.T) {
	h := newTestBridge(t)
	found := testLight(3)
	h.client.discoverDevices = []dali.Device{found.Device}
	h.registry.diff = device.ScanDiff{Added: []dali.Device{found.Device}}

	h.conn.emit(gateway.Event{
		Type: gateway.EventScanProgress,
		Data: dali.ScanProgress{Percent: 100, Found: 1, Done: true},
	})

	if !h.bus.hasPublished("graylogic/event/dali/scan/" + testGatewaySN) {
		t.Error("expected scan progress published")
	}

	waitFor(t, func() bool {
		return h.bus.hasPublished("graylogic/discovery/dali")
	}, "discovery snapshot never published")

	waitFor(t, func() bool {
		return h.bus.hasPublished("graylogic/availability/dali/" + found.ID)
	}, "availability for added device never published")
}
