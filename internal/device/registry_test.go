package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
)

// mockRepository is an in-memory Repository for registry tests.
type mockRepository struct {
	mu      sync.Mutex
	devices map[string]*Record
	groups  map[string][]dali.Group
	scenes  map[string][]dali.Scene

	createErr error
	updates   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		devices: make(map[string]*Record),
		groups:  make(map[string][]dali.Group),
		scenes:  make(map[string][]dali.Scene),
	}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return rec.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.devices))
	for _, rec := range m.devices {
		out = append(out, *rec.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) ListByGateway(_ context.Context, sn string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.devices {
		if rec.GatewaySN == sn {
			out = append(out, *rec.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.devices[rec.ID]; ok {
		return ErrDeviceExists
	}
	m.devices[rec.ID] = rec.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[rec.ID]; !ok {
		return ErrDeviceNotFound
	}
	m.devices[rec.ID] = rec.DeepCopy()
	m.updates++
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *mockRepository) UpdateState(_ context.Context, id string, state State, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	rec.State = state.clone()
	rec.StateUpdatedAt = &at
	return nil
}

func (m *mockRepository) UpdateOnline(_ context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	rec.Online = online
	return nil
}

func (m *mockRepository) UpdateGatewayAvailability(_ context.Context, sn string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.devices {
		if rec.GatewaySN == sn {
			rec.Available = available
		}
	}
	return nil
}

func (m *mockRepository) ReplaceGroups(_ context.Context, sn string, groups []dali.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[sn] = groups
	return nil
}

func (m *mockRepository) ListGroups(_ context.Context, sn string) ([]dali.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups[sn], nil
}

func (m *mockRepository) ReplaceScenes(_ context.Context, sn string, scenes []dali.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes[sn] = scenes
	return nil
}

func (m *mockRepository) ListScenes(_ context.Context, sn string) ([]dali.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scenes[sn], nil
}

func seededRegistry(t *testing.T, records ...*Record) (*Registry, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	for _, rec := range records {
		if err := repo.Create(context.Background(), rec); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	reg := NewRegistry(repo)
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return reg, repo
}

func daliDevice(addr int) dali.Device {
	return dali.Device{
		ID:        dali.DeviceID(dali.TypeDimmer, 0, addr, testGatewaySN),
		Type:      dali.TypeDimmer,
		Channel:   0,
		Address:   addr,
		Name:      "Light",
		GatewaySN: testGatewaySN,
		Online:    true,
	}
}

// =============================================================================
// Cache behaviour
// =============================================================================

func TestRegistryGet(t *testing.T) {
	rec := testRecord(2)
	reg, _ := seededRegistry(t, rec)

	got, err := reg.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}

	// Mutating the returned copy must not poison the cache.
	got.Name = "mutated"
	again, err := reg.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if again.Name == "mutated" {
		t.Error("cache was mutated through a returned copy")
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg, _ := seededRegistry(t)

	_, err := reg.Get(context.Background(), "nope")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestApplyState(t *testing.T) {
	rec := testRecord(2)
	rec.State = State{"on": true, "brightness": float64(100)}
	reg, repo := seededRegistry(t, rec)

	got, err := reg.ApplyState(context.Background(), rec.ID, State{"brightness": float64(50)})
	if err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}
	if got == nil {
		t.Fatal("ApplyState() = nil, want updated record")
	}
	if got.State["brightness"] != float64(50) || got.State["on"] != true {
		t.Errorf("merged state = %v", got.State)
	}
	if got.StateUpdatedAt == nil {
		t.Error("StateUpdatedAt not set")
	}

	// Persisted too.
	stored, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.State["brightness"] != float64(50) {
		t.Errorf("stored state = %v", stored.State)
	}
}

func TestApplyStateNoChange(t *testing.T) {
	rec := testRecord(2)
	rec.State = State{"on": true}
	reg, _ := seededRegistry(t, rec)

	got, err := reg.ApplyState(context.Background(), rec.ID, State{"on": true})
	if err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}
	if got != nil {
		t.Errorf("ApplyState() with no change = %+v, want nil", got)
	}
}

func TestApplyStateUnknownDevice(t *testing.T) {
	reg, _ := seededRegistry(t)

	got, err := reg.ApplyState(context.Background(), "nope", State{"on": true})
	if err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}
	if got != nil {
		t.Errorf("ApplyState() for unknown device = %+v, want nil", got)
	}
}

func TestSetGatewayAvailability(t *testing.T) {
	a, b := testRecord(1), testRecord(2)
	reg, _ := seededRegistry(t, a, b)

	if err := reg.SetGatewayAvailability(context.Background(), testGatewaySN, false); err != nil {
		t.Fatalf("SetGatewayAvailability() error = %v", err)
	}

	for _, rec := range reg.ListByGateway(testGatewaySN) {
		if rec.Available {
			t.Errorf("device %s still available in cache", rec.ID)
		}
	}
}

// =============================================================================
// Scan reconciliation
// =============================================================================

func TestSyncScanResultsAddsAndRemoves(t *testing.T) {
	keep := testRecord(1)
	gone := testRecord(2)
	reg, _ := seededRegistry(t, keep, gone)

	discovered := []dali.Device{
		keep.Device,     // unchanged
		daliDevice(3),   // new
		daliDevice(4),   // new
	}

	diff, err := reg.SyncScanResults(context.Background(), testGatewaySN, discovered)
	if err != nil {
		t.Fatalf("SyncScanResults() error = %v", err)
	}

	if len(diff.Added) != 2 {
		t.Errorf("added = %d, want 2", len(diff.Added))
	}
	if len(diff.Removed) != 1 || diff.Removed[0].ID != gone.ID {
		t.Errorf("removed = %+v, want [%s]", diff.Removed, gone.ID)
	}

	if reg.Count() != 3 {
		t.Errorf("cache count = %d, want 3", reg.Count())
	}
	if _, err := reg.Get(context.Background(), gone.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("removed device still present: %v", err)
	}
}

func TestSyncScanResultsRename(t *testing.T) {
	rec := testRecord(1)
	reg, repo := seededRegistry(t, rec)

	renamed := rec.Device
	renamed.Name = "Renamed Light"

	diff, err := reg.SyncScanResults(context.Background(), testGatewaySN, []dali.Device{renamed})
	if err != nil {
		t.Fatalf("SyncScanResults() error = %v", err)
	}
	if !diff.Empty() {
		t.Errorf("diff = %+v, want empty for rename", diff)
	}
	if repo.updates != 1 {
		t.Errorf("repository updates = %d, want 1", repo.updates)
	}

	got, err := reg.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Renamed Light" {
		t.Errorf("name = %q, want renamed", got.Name)
	}
}

func TestSyncScanResultsNoChanges(t *testing.T) {
	rec := testRecord(1)
	reg, repo := seededRegistry(t, rec)

	diff, err := reg.SyncScanResults(context.Background(), testGatewaySN, []dali.Device{rec.Device})
	if err != nil {
		t.Fatalf("SyncScanResults() error = %v", err)
	}
	if !diff.Empty() {
		t.Errorf("diff = %+v, want empty", diff)
	}
	if repo.updates != 0 {
		t.Errorf("repository updates = %d, want 0", repo.updates)
	}
}

func TestSyncScanResultsKeepsState(t *testing.T) {
	rec := testRecord(1)
	rec.State = State{"on": true}
	reg, _ := seededRegistry(t, rec)

	_, err := reg.SyncScanResults(context.Background(), testGatewaySN, []dali.Device{rec.Device})
	if err != nil {
		t.Fatalf("SyncScanResults() error = %v", err)
	}

	got, err := reg.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State["on"] != true {
		t.Errorf("state lost during reconcile: %v", got.State)
	}
}
