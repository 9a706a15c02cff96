package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its composite identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Record, error)

	// List retrieves all devices across every gateway.
	List(ctx context.Context) ([]Record, error)

	// ListByGateway retrieves all devices behind one gateway.
	ListByGateway(ctx context.Context, gatewaySN string) ([]Record, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, rec *Record) error

	// Update modifies an existing device's identity fields.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState replaces the stored state of a device.
	// Optimised for the report path: a single indexed write.
	UpdateState(ctx context.Context, id string, state State, at time.Time) error

	// UpdateOnline updates a device's bus presence flag.
	UpdateOnline(ctx context.Context, id string, online bool) error

	// UpdateGatewayAvailability marks every device behind a gateway
	// available or unavailable in one statement.
	UpdateGatewayAvailability(ctx context.Context, gatewaySN string, available bool) error

	// ReplaceGroups replaces a gateway's stored groups with the given set.
	ReplaceGroups(ctx context.Context, gatewaySN string, groups []dali.Group) error

	// ListGroups retrieves the stored groups for one gateway.
	ListGroups(ctx context.Context, gatewaySN string) ([]dali.Group, error)

	// ReplaceScenes replaces a gateway's stored scenes with the given set.
	ReplaceScenes(ctx context.Context, gatewaySN string, scenes []dali.Scene) error

	// ListScenes retrieves the stored scenes for one gateway.
	ListScenes(ctx context.Context, gatewaySN string) ([]dali.Scene, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, dev_type, channel, address, name, gateway_sn,
	online, available, state, state_updated_at, created_at, updated_at`

// GetByID retrieves a device by its composite identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return rec, nil
}

// List retrieves all devices ordered by gateway and bus position.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		ORDER BY gateway_sn, channel, address`
	return r.queryRecords(ctx, query)
}

// ListByGateway retrieves all devices behind one gateway.
func (r *SQLiteRepository) ListByGateway(ctx context.Context, gatewaySN string) ([]Record, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE gateway_sn = ?
		ORDER BY channel, address`
	return r.queryRecords(ctx, query, gatewaySN)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDevice)
	}

	stateJSON, err := marshalState(rec.State)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.Type, rec.Channel, rec.Address, rec.Name, rec.GatewaySN,
		rec.Online, rec.Available, stateJSON, rec.StateUpdatedAt,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDeviceExists, rec.ID)
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device's identity fields.
func (r *SQLiteRepository) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()

	query := `UPDATE devices
		SET dev_type = ?, channel = ?, address = ?, name = ?, online = ?,
			updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rec.Type, rec.Channel, rec.Address, rec.Name, rec.Online,
		rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRow(result, rec.ID)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result, id)
}

// UpdateState replaces the stored state of a device.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State, at time.Time) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	query := `UPDATE devices
		SET state = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, stateJSON, at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireRow(result, id)
}

// UpdateOnline updates a device's bus presence flag.
func (r *SQLiteRepository) UpdateOnline(ctx context.Context, id string, online bool) error {
	query := `UPDATE devices SET online = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, online, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating device online flag: %w", err)
	}
	return requireRow(result, id)
}

// UpdateGatewayAvailability marks every device behind a gateway available or
// unavailable.
func (r *SQLiteRepository) UpdateGatewayAvailability(ctx context.Context, gatewaySN string, available bool) error {
	query := `UPDATE devices SET available = ?, updated_at = ? WHERE gateway_sn = ?`

	if _, err := r.db.ExecContext(ctx, query, available, time.Now().UTC(), gatewaySN); err != nil {
		return fmt.Errorf("updating gateway availability: %w", err)
	}
	return nil
}

// ReplaceGroups replaces a gateway's stored groups with the given set.
// Runs in a transaction so readers never see a half-replaced inventory.
func (r *SQLiteRepository) ReplaceGroups(ctx context.Context, gatewaySN string, groups []dali.Group) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dali_groups WHERE gateway_sn = ?`, gatewaySN); err != nil {
			return fmt.Errorf("clearing groups: %w", err)
		}
		for _, g := range groups {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO dali_groups (gateway_sn, channel, group_id, name) VALUES (?, ?, ?, ?)`,
				gatewaySN, g.Channel, g.ID, g.Name,
			)
			if err != nil {
				return fmt.Errorf("inserting group %d/%d: %w", g.Channel, g.ID, err)
			}
		}
		return nil
	})
}

// ListGroups retrieves the stored groups for one gateway.
func (r *SQLiteRepository) ListGroups(ctx context.Context, gatewaySN string) ([]dali.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel, group_id, name FROM dali_groups WHERE gateway_sn = ? ORDER BY channel, group_id`,
		gatewaySN,
	)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var groups []dali.Group
	for rows.Next() {
		g := dali.Group{GatewaySN: gatewaySN}
		if err := rows.Scan(&g.Channel, &g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ReplaceScenes replaces a gateway's stored scenes with the given set.
func (r *SQLiteRepository) ReplaceScenes(ctx context.Context, gatewaySN string, scenes []dali.Scene) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dali_scenes WHERE gateway_sn = ?`, gatewaySN); err != nil {
			return fmt.Errorf("clearing scenes: %w", err)
		}
		for _, s := range scenes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO dali_scenes (gateway_sn, channel, scene_id, name) VALUES (?, ?, ?, ?)`,
				gatewaySN, s.Channel, s.ID, s.Name,
			)
			if err != nil {
				return fmt.Errorf("inserting scene %d/%d: %w", s.Channel, s.ID, err)
			}
		}
		return nil
	})
}

// ListScenes retrieves the stored scenes for one gateway.
func (r *SQLiteRepository) ListScenes(ctx context.Context, gatewaySN string) ([]dali.Scene, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel, scene_id, name FROM dali_scenes WHERE gateway_sn = ? ORDER BY channel, scene_id`,
		gatewaySN,
	)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	var scenes []dali.Scene
	for rows.Next() {
		s := dali.Scene{GatewaySN: gatewaySN}
		if err := rows.Scan(&s.Channel, &s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scanning scene: %w", err)
		}
		scenes = append(scenes, s)
	}
	return scenes, rows.Err()
}

// =============================================================================
// Internals
// =============================================================================

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		stateJSON sql.NullString
		stateAt   sql.NullTime
	)

	err := row.Scan(
		&rec.ID, &rec.Type, &rec.Channel, &rec.Address, &rec.Name,
		&rec.GatewaySN, &rec.Online, &rec.Available,
		&stateJSON, &stateAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if stateJSON.Valid && stateJSON.String != "" {
		if err := json.Unmarshal([]byte(stateJSON.String), &rec.State); err != nil {
			return nil, fmt.Errorf("decoding state for %s: %w", rec.ID, err)
		}
	}
	if stateAt.Valid {
		t := stateAt.Time
		rec.StateUpdatedAt = &t
	}

	return &rec, nil
}

func marshalState(state State) (any, error) {
	if state == nil {
		return nil, nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return string(raw), nil
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return nil
}
