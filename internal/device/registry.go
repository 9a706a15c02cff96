package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups on the
// report path, where every state change from a gateway lands.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// the mutating operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Record
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Record),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Record, len(records))
	for i := range records {
		rec := records[i]
		r.cache[rec.ID] = rec.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(records))
	return nil
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Record, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	rec, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[rec.ID] = rec.DeepCopy()
	r.cacheMu.Unlock()

	return rec, nil
}

// List returns all cached devices as deep copies.
func (r *Registry) List() []Record {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	out := make([]Record, 0, len(r.cache))
	for _, rec := range r.cache {
		out = append(out, *rec.DeepCopy())
	}
	return out
}

// ListByGateway returns the cached devices behind one gateway.
func (r *Registry) ListByGateway(gatewaySN string) []Record {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var out []Record
	for _, rec := range r.cache {
		if rec.GatewaySN == gatewaySN {
			out = append(out, *rec.DeepCopy())
		}
	}
	return out
}

// ApplyState folds a partial state update into a device, persisting and
// returning the merged result. Unknown devices are ignored with a debug log:
// reports can arrive for devices discovered after the last scan.
//
// Returns:
//   - *Record: The updated record (deep copy), or nil if the device is
//     unknown or the state did not change
//   - error: Persistence failure
func (r *Registry) ApplyState(ctx context.Context, id string, update State) (*Record, error) {
	r.cacheMu.Lock()
	rec, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		r.logger.Debug("state report for unknown device", "device_id", id)
		return nil, nil
	}

	if rec.State == nil {
		rec.State = make(State, len(update))
	}
	if !rec.State.Merge(update) {
		r.cacheMu.Unlock()
		return nil, nil
	}

	now := time.Now().UTC()
	rec.StateUpdatedAt = &now
	snapshot := rec.DeepCopy()
	r.cacheMu.Unlock()

	if err := r.repo.UpdateState(ctx, id, snapshot.State, now); err != nil {
		return nil, fmt.Errorf("persisting state for %s: %w", id, err)
	}
	return snapshot, nil
}

// SetOnline updates a device's bus presence flag.
func (r *Registry) SetOnline(ctx context.Context, id string, online bool) error {
	r.cacheMu.Lock()
	if rec, ok := r.cache[id]; ok {
		rec.Online = online
	}
	r.cacheMu.Unlock()

	err := r.repo.UpdateOnline(ctx, id, online)
	if errors.Is(err, ErrDeviceNotFound) {
		r.logger.Debug("online report for unknown device", "device_id", id)
		return nil
	}
	return err
}

// SetGatewayAvailability marks every device behind a gateway available or
// unavailable, in cache and store.
func (r *Registry) SetGatewayAvailability(ctx context.Context, gatewaySN string, available bool) error {
	r.cacheMu.Lock()
	for _, rec := range r.cache {
		if rec.GatewaySN == gatewaySN {
			rec.Available = available
		}
	}
	r.cacheMu.Unlock()

	return r.repo.UpdateGatewayAvailability(ctx, gatewaySN, available)
}

// SyncScanResults reconciles a bus scan's discovered devices against the
// stored inventory for one gateway.
//
// Devices found on the bus but not in the store are inserted; stored
// devices missing from the scan are deleted. Devices present in both keep
// their cached state but pick up renamed labels.
//
// Parameters:
//   - ctx: Context for persistence operations
//   - gatewaySN: The scanned gateway
//   - discovered: The scan's device list
//
// Returns:
//   - ScanDiff: What changed
//   - error: First persistence failure; the diff may be partially applied
func (r *Registry) SyncScanResults(ctx context.Context, gatewaySN string, discovered []dali.Device) (ScanDiff, error) {
	stored := r.ListByGateway(gatewaySN)

	var diff ScanDiff

	discoveredByID := make(map[string]dali.Device, len(discovered))
	for _, d := range discovered {
		discoveredByID[d.ID] = d
	}
	storedByID := make(map[string]Record, len(stored))
	for _, rec := range stored {
		storedByID[rec.ID] = rec
	}

	// Additions and renames.
	for _, d := range discovered {
		existing, ok := storedByID[d.ID]
		if !ok {
			rec := &Record{Device: d, Available: true}
			if err := r.repo.Create(ctx, rec); err != nil {
				return diff, fmt.Errorf("adding device %s: %w", d.ID, err)
			}
			r.cacheMu.Lock()
			r.cache[rec.ID] = rec.DeepCopy()
			r.cacheMu.Unlock()
			diff.Added = append(diff.Added, d)
			continue
		}

		if existing.Name != d.Name || existing.Online != d.Online {
			existing.Name = d.Name
			existing.Online = d.Online
			if err := r.repo.Update(ctx, &existing); err != nil {
				return diff, fmt.Errorf("updating device %s: %w", d.ID, err)
			}
			r.cacheMu.Lock()
			if cached, ok := r.cache[d.ID]; ok {
				cached.Name = d.Name
				cached.Online = d.Online
			}
			r.cacheMu.Unlock()
		}
	}

	// Removals.
	for _, rec := range stored {
		if _, ok := discoveredByID[rec.ID]; ok {
			continue
		}
		if err := r.repo.Delete(ctx, rec.ID); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			return diff, fmt.Errorf("removing device %s: %w", rec.ID, err)
		}
		r.cacheMu.Lock()
		delete(r.cache, rec.ID)
		r.cacheMu.Unlock()
		diff.Removed = append(diff.Removed, rec.Device)
	}

	if !diff.Empty() {
		r.logger.Info("scan reconciled",
			"gateway", gatewaySN,
			"added", len(diff.Added),
			"removed", len(diff.Removed),
		)
	}
	return diff, nil
}

// SyncGroups stores a gateway's discovered groups.
func (r *Registry) SyncGroups(ctx context.Context, gatewaySN string, groups []dali.Group) error {
	return r.repo.ReplaceGroups(ctx, gatewaySN, groups)
}

// SyncScenes stores a gateway's discovered scenes.
func (r *Registry) SyncScenes(ctx context.Context, gatewaySN string, scenes []dali.Scene) error {
	return r.repo.ReplaceScenes(ctx, gatewaySN, scenes)
}

// Groups returns the stored groups for one gateway.
func (r *Registry) Groups(ctx context.Context, gatewaySN string) ([]dali.Group, error) {
	return r.repo.ListGroups(ctx, gatewaySN)
}

// Scenes returns the stored scenes for one gateway.
func (r *Registry) Scenes(ctx context.Context, gatewaySN string) ([]dali.Scene, error) {
	return r.repo.ListScenes(ctx, gatewaySN)
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
