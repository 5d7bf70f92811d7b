// Package hoststore is a SQLite host.Backend. It keeps the devices, keywords,
// historized values, recipients and configurations of every plugin a
// development host runs.
package hoststore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/host"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// Store is a host.Backend backed by a SQLite database.
type Store struct {
	db *sql.DB
}

var _ host.Backend = (*Store)(nil)

// Open opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps the busy handling simple
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := Bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Bootstrap creates tables and indexes if missing.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plugin_state (
  plugin     TEXT PRIMARY KEY,
  state      INTEGER NOT NULL,
  message_id TEXT NOT NULL DEFAULT '',
  data       JSON NOT NULL DEFAULT '{}',
  updated_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS plugin_configuration (
  plugin        TEXT PRIMARY KEY,
  configuration JSON NOT NULL DEFAULT '{}',
  fingerprint   TEXT NOT NULL,
  updated_at    TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS device (
  plugin     TEXT NOT NULL,
  name       TEXT NOT NULL,
  model      TEXT NOT NULL,
  details    JSON NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL,
  PRIMARY KEY (plugin, name)
);`,
		`CREATE TABLE IF NOT EXISTS keyword (
  plugin        TEXT NOT NULL,
  device        TEXT NOT NULL,
  name          TEXT NOT NULL,
  capacity      TEXT NOT NULL,
  capacity_unit TEXT NOT NULL DEFAULT '',
  capacity_type INTEGER NOT NULL,
  access_mode   INTEGER NOT NULL,
  data_type     INTEGER NOT NULL,
  units         TEXT NOT NULL DEFAULT '',
  type_info     TEXT NOT NULL DEFAULT '',
  measure       INTEGER NOT NULL,
  PRIMARY KEY (plugin, device, name),
  FOREIGN KEY (plugin, device) REFERENCES device(plugin, name) ON DELETE CASCADE
);`,
		`CREATE TABLE IF NOT EXISTS history (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  plugin  TEXT NOT NULL,
  device  TEXT NOT NULL,
  keyword TEXT NOT NULL,
  value   TEXT NOT NULL,
  at      TEXT NOT NULL,
  FOREIGN KEY (plugin, device, keyword) REFERENCES keyword(plugin, device, name) ON DELETE CASCADE
);`,
		`CREATE TABLE IF NOT EXISTS recipient_field (
  recipient_id INTEGER NOT NULL,
  field        TEXT NOT NULL,
  value        TEXT NOT NULL,
  PRIMARY KEY (recipient_id, field)
);`,
		`CREATE INDEX IF NOT EXISTS history_keyword_at_idx ON history(plugin, device, keyword, at);`,
		`CREATE INDEX IF NOT EXISTS recipient_field_field_value_idx ON recipient_field(field, value);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) SetPluginState(ctx context.Context, plugin string, state protocol.PluginState, messageID string, data *datacontainer.Container) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO plugin_state (plugin, state, message_id, data, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(plugin) DO UPDATE SET state = excluded.state, message_id = excluded.message_id, data = excluded.data, updated_at = excluded.updated_at`,
		plugin, int32(state), messageID, data.Serialize(), now())
	if err != nil {
		return fmt.Errorf("set plugin state: %w", err)
	}
	return nil
}

// PluginState returns the last state plugin reported.
func (s *Store) PluginState(ctx context.Context, plugin string) (host.StateReport, error) {
	var (
		state     int32
		messageID string
		data      string
	)
	err := s.db.QueryRowContext(ctx, `SELECT state, message_id, data FROM plugin_state WHERE plugin = ?`, plugin).
		Scan(&state, &messageID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return host.StateReport{}, fmt.Errorf("no state reported by %s: %w", plugin, err)
	}
	if err != nil {
		return host.StateReport{}, fmt.Errorf("plugin state: %w", err)
	}

	c, err := datacontainer.Parse(data)
	if err != nil {
		return host.StateReport{}, fmt.Errorf("plugin state data: %w", err)
	}
	return host.StateReport{State: protocol.PluginState(state), MessageID: messageID, Data: c}, nil
}

// DeclareDevice creates device or, if it exists, replaces its model and
// details and upserts the keywords.
func (s *Store) DeclareDevice(ctx context.Context, plugin, device, model string, keywords []protocol.Historizable, details *datacontainer.Container) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("declare device: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO device (plugin, name, model, details, created_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(plugin, name) DO UPDATE SET model = excluded.model, details = excluded.details`,
		plugin, device, model, details.Serialize(), now())
	if err != nil {
		return fmt.Errorf("declare device %s: %w", device, err)
	}

	for _, k := range keywords {
		if err := upsertKeyword(ctx, tx, plugin, device, k); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("declare device %s: %w", device, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertKeyword(ctx context.Context, db execer, plugin, device string, k protocol.Historizable) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO keyword (plugin, device, name, capacity, capacity_unit, capacity_type, access_mode, data_type, units, type_info, measure)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(plugin, device, name) DO UPDATE SET
  capacity = excluded.capacity, capacity_unit = excluded.capacity_unit, capacity_type = excluded.capacity_type,
  access_mode = excluded.access_mode, data_type = excluded.data_type, units = excluded.units,
  type_info = excluded.type_info, measure = excluded.measure`,
		plugin, device, k.Name, k.Capacity.Name, k.Capacity.Unit, int32(k.Capacity.Type),
		int32(k.AccessMode), int32(k.Type), k.Units, k.TypeInfo, int32(k.Measure))
	if err != nil {
		return fmt.Errorf("declare keyword %s.%s: %w", device, k.Name, err)
	}
	return nil
}

func (s *Store) DeclareKeyword(ctx context.Context, plugin, device string, keyword protocol.Historizable, _ *datacontainer.Container) error {
	exists, err := s.DeviceExists(ctx, plugin, device)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", host.ErrUnknownDevice, device)
	}
	return upsertKeyword(ctx, s.db, plugin, device, keyword)
}

func (s *Store) DeviceExists(ctx context.Context, plugin, device string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device WHERE plugin = ? AND name = ?`, plugin, device).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("device exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeviceDetails(ctx context.Context, plugin, device string) (*datacontainer.Container, error) {
	var details string
	err := s.db.QueryRowContext(ctx, `SELECT details FROM device WHERE plugin = ? AND name = ?`, plugin, device).Scan(&details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownDevice, device)
	}
	if err != nil {
		return nil, fmt.Errorf("device details: %w", err)
	}
	return datacontainer.Parse(details)
}

func (s *Store) KeywordExists(ctx context.Context, plugin, device, keyword string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keyword WHERE plugin = ? AND device = ? AND name = ?`, plugin, device, keyword).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("keyword exists: %w", err)
	}
	return n > 0, nil
}

// Keywords returns the keywords declared on device, sorted by name.
func (s *Store) Keywords(ctx context.Context, plugin, device string) ([]protocol.Historizable, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, capacity, capacity_unit, capacity_type, access_mode, data_type, units, type_info, measure
FROM keyword WHERE plugin = ? AND device = ? ORDER BY name`, plugin, device)
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	defer rows.Close()

	var out []protocol.Historizable
	for rows.Next() {
		var (
			k                                           protocol.Historizable
			capacityType, accessMode, dataType, measure int32
		)
		if err := rows.Scan(&k.Name, &k.Capacity.Name, &k.Capacity.Unit, &capacityType, &accessMode, &dataType, &k.Units, &k.TypeInfo, &measure); err != nil {
			return nil, fmt.Errorf("keywords: %w", err)
		}
		k.Capacity.Type = protocol.DataType(capacityType)
		k.AccessMode = protocol.AccessMode(accessMode)
		k.Type = protocol.DataType(dataType)
		k.Measure = protocol.Measure(measure)
		out = append(out, k)
	}
	return out, rows.Err()
}

// Historize records values in one transaction. Every keyword must have been declared.
func (s *Store) Historize(ctx context.Context, plugin, device string, values []protocol.HistorizedValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("historize: %w", err)
	}
	defer tx.Rollback()

	at := now()
	for _, v := range values {
		var n int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM keyword WHERE plugin = ? AND device = ? AND name = ?`,
			plugin, device, v.Historizable.Name).Scan(&n)
		if err != nil {
			return fmt.Errorf("historize: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s.%s", host.ErrUnknownKeyword, device, v.Historizable.Name)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO history (plugin, device, keyword, value, at) VALUES (?, ?, ?, ?, ?)`,
			plugin, device, v.Historizable.Name, v.FormattedValue, at)
		if err != nil {
			return fmt.Errorf("historize %s.%s: %w", device, v.Historizable.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("historize: %w", err)
	}
	return nil
}

// History returns the newest values of a keyword, oldest first. A
// non-positive limit returns everything.
func (s *Store) History(ctx context.Context, plugin, device, keyword string, limit int) ([]host.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT value, at FROM (
  SELECT id, value, at FROM history WHERE plugin = ? AND device = ? AND keyword = ? ORDER BY id DESC LIMIT ?
) ORDER BY id`, plugin, device, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []host.Record
	for rows.Next() {
		var value, at string
		if err := rows.Scan(&value, &at); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("history timestamp: %w", err)
		}
		out = append(out, host.Record{Plugin: plugin, Device: device, Keyword: keyword, Value: value, At: t})
	}
	return out, rows.Err()
}

// AddRecipient stores a recipient with its fields, replacing existing values.
func (s *Store) AddRecipient(ctx context.Context, id int32, fields map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add recipient: %w", err)
	}
	defer tx.Rollback()

	for field, value := range fields {
		_, err := tx.ExecContext(ctx, `
INSERT INTO recipient_field (recipient_id, field, value) VALUES (?, ?, ?)
ON CONFLICT(recipient_id, field) DO UPDATE SET value = excluded.value`, id, field, value)
		if err != nil {
			return fmt.Errorf("add recipient %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) RecipientValue(ctx context.Context, recipientID int32, field string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM recipient_field WHERE recipient_id = ? AND field = ?`, recipientID, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d has no field %s", host.ErrUnknownRecipient, recipientID, field)
	}
	if err != nil {
		return "", fmt.Errorf("recipient value: %w", err)
	}
	return value, nil
}

func (s *Store) FindRecipientsFromField(ctx context.Context, field, expected string) ([]int32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT recipient_id FROM recipient_field WHERE field = ? AND value = ? ORDER BY recipient_id`, field, expected)
	if err != nil {
		return nil, fmt.Errorf("find recipients: %w", err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("find recipients: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) RecipientFieldExists(ctx context.Context, field string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipient_field WHERE field = ?`, field).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("recipient field exists: %w", err)
	}
	return n > 0, nil
}

// SetConfiguration stores the configuration of plugin. It reports whether the
// stored configuration changed, comparing BLAKE3 fingerprints.
func (s *Store) SetConfiguration(ctx context.Context, plugin string, configuration *datacontainer.Container) (bool, error) {
	fingerprint := configuration.Fingerprint()

	var previous string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint FROM plugin_configuration WHERE plugin = ?`, plugin).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("set configuration: %w", err)
	}
	if previous == fingerprint {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO plugin_configuration (plugin, configuration, fingerprint, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(plugin) DO UPDATE SET configuration = excluded.configuration, fingerprint = excluded.fingerprint, updated_at = excluded.updated_at`,
		plugin, configuration.Serialize(), fingerprint, now())
	if err != nil {
		return false, fmt.Errorf("set configuration: %w", err)
	}
	return true, nil
}

// Configuration returns the stored configuration, or an empty one.
func (s *Store) Configuration(ctx context.Context, plugin string) (*datacontainer.Container, error) {
	var configuration string
	err := s.db.QueryRowContext(ctx, `SELECT configuration FROM plugin_configuration WHERE plugin = ?`, plugin).Scan(&configuration)
	if errors.Is(err, sql.ErrNoRows) {
		return datacontainer.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return datacontainer.Parse(configuration)
}
