// Package sqlite provides SQLite-backed persistence for the core: the
// Activities/ActivityUnits tables written by the activity orchestrator,
// the read-only TargetCat/Spacecraft catalog tables, and the *Parameters
// snapshot tables referenced from Activities rows.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required

	"github.com/sonata-sse/sse-core/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and idempotent migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/sse-core.db, enabling
// WAL mode, foreign keys, and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "sse-core.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dbPath, err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, WAL allows concurrent readers

	d := &DB{db: conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

// Conn returns the underlying *sql.DB, for callers (fabric.Site) that need
// the stdlib handle directly rather than this wrapper's repository methods.
func (d *DB) Conn() *sql.DB { return d.db }

// Ping verifies the connection is alive, used by the on-demand health
// checker (§5: database calls must be kept short).
func (d *DB) Ping() error { return d.db.Ping() }

func (d *DB) migrate() error {
	for _, stmt := range schema {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS activities (
		id                       INTEGER PRIMARY KEY AUTOINCREMENT,
		type                     TEXT NOT NULL,
		valid_observation        BOOLEAN NOT NULL DEFAULT 0,
		start_of_data_collection INTEGER,
		created_at               INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity_units (
		activity_id              INTEGER NOT NULL REFERENCES activities(id),
		target_id                INTEGER NOT NULL,
		primary_target_id        INTEGER NOT NULL,
		beam_number              INTEGER NOT NULL,
		dx_number                INTEGER NOT NULL,
		dx_name                  TEXT NOT NULL,
		dx_tune_freq_mhz         REAL NOT NULL,
		dx_low_freq_mhz          REAL NOT NULL,
		dx_high_freq_mhz         REAL NOT NULL,
		valid_observation        BOOLEAN NOT NULL DEFAULT 0,
		start_of_data_collection INTEGER,
		PRIMARY KEY (activity_id, dx_name)
	)`,
	`CREATE TABLE IF NOT EXISTS target_cat (
		target_id          INTEGER PRIMARY KEY,
		primary_target_id  INTEGER NOT NULL,
		catalog_tag         TEXT NOT NULL,
		ra_j2000_rad        REAL NOT NULL,
		dec_j2000_rad       REAL NOT NULL,
		pm_ra_mas_yr        REAL NOT NULL DEFAULT 0,
		pm_dec_mas_yr       REAL NOT NULL DEFAULT 0,
		parallax_mas        REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS spacecraft (
		spacecraft_id    INTEGER PRIMARY KEY,
		name             TEXT NOT NULL,
		ra_j2000_rad     REAL NOT NULL,
		dec_j2000_rad    REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS observed_freq_bands (
		target_id   INTEGER NOT NULL REFERENCES target_cat(target_id),
		low_mhz     REAL NOT NULL,
		high_mhz    REAL NOT NULL,
		observed_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observed_freq_bands_target ON observed_freq_bands(target_id)`,
	`CREATE TABLE IF NOT EXISTS candidate_signals (
		activity_id    INTEGER NOT NULL REFERENCES activities(id),
		target_id      INTEGER NOT NULL,
		beam_number    INTEGER NOT NULL,
		freq_mhz       REAL NOT NULL,
		power_db       REAL NOT NULL,
		classification TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS recent_rfi_signals (
		freq_mhz    REAL NOT NULL,
		observed_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recent_rfi_signals_freq ON recent_rfi_signals(freq_mhz)`,
	`CREATE TABLE IF NOT EXISTS scheduler_parameters (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		json_value      TEXT NOT NULL,
		created_at      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tuner_parameters (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		json_value      TEXT NOT NULL,
		created_at      INTEGER NOT NULL
	)`,
}

// InsertActivity creates a new Activities row and returns its
// database-assigned monotonic id — the scheduler's activityId.
func (d *DB) InsertActivity(kind domain.ActivityKind, now time.Time) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO activities (type, valid_observation, created_at) VALUES (?, 0, ?)`,
		string(kind), now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	return res.LastInsertId()
}

// UpdateActivity writes the final valid/start-of-collection fields for an
// Activities row, called from the Report stage.
func (d *DB) UpdateActivity(activityID int64, validObservation bool, startOfDataCollection time.Time) error {
	var sodc sql.NullInt64
	if !startOfDataCollection.IsZero() {
		sodc = sql.NullInt64{Int64: startOfDataCollection.Unix(), Valid: true}
	}
	_, err := d.db.Exec(
		`UPDATE activities SET valid_observation = ?, start_of_data_collection = ? WHERE id = ?`,
		validObservation, sodc, activityID,
	)
	if err != nil {
		return fmt.Errorf("update activity %d: %w", activityID, err)
	}
	return nil
}

// InsertActivityUnit writes one per-detector row, skipped entirely for
// tainted units per §4.1's "no ObsHistory rows for that unit" rule. It
// upserts on the (activity_id, dx_name) primary key so a Report-stage retry
// after a transient failure is safe to replay.
func (d *DB) InsertActivityUnit(u *domain.ActivityUnit) error {
	var sodc sql.NullInt64
	if !u.StartOfDataCollection.IsZero() {
		sodc = sql.NullInt64{Int64: u.StartOfDataCollection.Unix(), Valid: true}
	}
	_, err := d.db.Exec(
		`INSERT INTO activity_units
		 (activity_id, target_id, primary_target_id, beam_number, dx_number, dx_name,
		  dx_tune_freq_mhz, dx_low_freq_mhz, dx_high_freq_mhz, valid_observation, start_of_data_collection)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (activity_id, dx_name) DO UPDATE SET
		   target_id = excluded.target_id,
		   primary_target_id = excluded.primary_target_id,
		   beam_number = excluded.beam_number,
		   dx_number = excluded.dx_number,
		   dx_tune_freq_mhz = excluded.dx_tune_freq_mhz,
		   dx_low_freq_mhz = excluded.dx_low_freq_mhz,
		   dx_high_freq_mhz = excluded.dx_high_freq_mhz,
		   valid_observation = excluded.valid_observation,
		   start_of_data_collection = excluded.start_of_data_collection`,
		u.ActivityId, u.TargetId, u.PrimaryTargetId, u.BeamNumber, u.DxNumber, u.DxName,
		u.DxTuneFreqMhz, u.DxLowFreqMhz, u.DxHighFreqMhz, u.ValidObservation, sodc,
	)
	if err != nil {
		return fmt.Errorf("insert activity unit %s/%d: %w", u.DxName, u.ActivityId, err)
	}
	return nil
}

// ObservedBandsForTarget returns every band previously recorded as observed
// for targetID, used to seed Target.ObservedFreqBands on scheduler startup.
func (d *DB) ObservedBandsForTarget(targetID domain.TargetId) ([]domain.Band, error) {
	rows, err := d.db.Query(
		`SELECT low_mhz, high_mhz FROM observed_freq_bands WHERE target_id = ? ORDER BY low_mhz`,
		int64(targetID),
	)
	if err != nil {
		return nil, fmt.Errorf("query observed bands for target %d: %w", targetID, err)
	}
	defer rows.Close()

	var out []domain.Band
	for rows.Next() {
		var b domain.Band
		if err := rows.Scan(&b.LowMhz, &b.HighMhz); err != nil {
			return nil, fmt.Errorf("scan observed band: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RecordObservedBand appends a newly observed band for targetID.
func (d *DB) RecordObservedBand(targetID domain.TargetId, b domain.Band, now time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO observed_freq_bands (target_id, low_mhz, high_mhz, observed_at) VALUES (?, ?, ?, ?)`,
		int64(targetID), b.LowMhz, b.HighMhz, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record observed band for target %d: %w", targetID, err)
	}
	return nil
}

// InsertCandidateSignal records one resolved candidate for an ActivityUnit.
func (d *DB) InsertCandidateSignal(activityID int64, targetID domain.TargetId, beamNumber int, c domain.CandidateSignal) error {
	_, err := d.db.Exec(
		`INSERT INTO candidate_signals (activity_id, target_id, beam_number, freq_mhz, power_db, classification)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		activityID, int64(targetID), beamNumber, c.FreqMhz, c.PowerDb, c.Classification,
	)
	if err != nil {
		return fmt.Errorf("insert candidate signal: %w", err)
	}
	return nil
}

// RecentRfiFrequencies returns every signal frequency observed within the
// trailing window, sorted ascending, for RecentRfiMaskBuilder's input.
func (d *DB) RecentRfiFrequencies(since time.Time) ([]float64, error) {
	rows, err := d.db.Query(
		`SELECT freq_mhz FROM recent_rfi_signals WHERE observed_at >= ? ORDER BY freq_mhz ASC`,
		since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("query recent rfi signals: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var f float64
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan rfi signal: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RecordRfiSignal appends a new signal observation to the recent-RFI log.
func (d *DB) RecordRfiSignal(freqMhz float64, now time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO recent_rfi_signals (freq_mhz, observed_at) VALUES (?, ?)`,
		freqMhz, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record rfi signal: %w", err)
	}
	return nil
}

// ListTargetCat returns every TargetCat row as a domain.Target with its
// ObservedFreqBands already populated; read-only to the rest of the core.
// Catalog ingestion that populates target_cat itself is an external
// collaborator; this only re-reads whatever a separate ingestor wrote.
func (d *DB) ListTargetCat() ([]*domain.Target, error) {
	rows, err := d.db.Query(
		`SELECT target_id, primary_target_id, catalog_tag, ra_j2000_rad, dec_j2000_rad,
		        pm_ra_mas_yr, pm_dec_mas_yr, parallax_mas
		 FROM target_cat ORDER BY target_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query target_cat: %w", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		t := &domain.Target{}
		var targetID, primaryID int64
		if err := rows.Scan(&targetID, &primaryID, &t.CatalogTag, &t.RaJ2000Rad, &t.DecJ2000Rad,
			&t.PmRaMasYr, &t.PmDecMasYr, &t.ParallaxMas); err != nil {
			return nil, fmt.Errorf("scan target_cat row: %w", err)
		}
		t.TargetId = domain.TargetId(targetID)
		t.PrimaryTargetId = domain.PrimaryTargetId(primaryID)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range out {
		bands, err := d.ObservedBandsForTarget(t.TargetId)
		if err != nil {
			return nil, err
		}
		for _, b := range bands {
			t.AddObservedBand(b)
		}
	}
	return out, nil
}
