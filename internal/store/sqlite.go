package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/quartz"
	_ "github.com/mattn/go-sqlite3"

	"thirteen/internal/tourney"
)

// SQLite backs both stores with a single sqlite database. Tournament
// snapshots are stored as JSON documents next to a version counter that
// implements the conditional write.
type SQLite struct {
	db    *sql.DB
	clock quartz.Clock
}

// OpenSQLite opens (and if needed initializes) the database at path.
func OpenSQLite(path string, clock quartz.Clock) (*SQLite, error) {
	if clock == nil {
		clock = quartz.NewReal()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLite{db: db, clock: clock}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS connections (
			connection_id TEXT PRIMARY KEY,
			player_id     TEXT NOT NULL,
			player_name   TEXT NOT NULL,
			connected_at  INTEGER NOT NULL,
			last_ping     INTEGER NOT NULL,
			ttl           INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create connections table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tourneys (
			tourney_id TEXT PRIMARY KEY,
			version    INTEGER NOT NULL,
			snapshot   TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create tourneys table: %w", err)
	}
	return nil
}

// Connections returns the connection-store view.
func (s *SQLite) Connections() ConnectionStore { return sqliteConnections{s} }

// Tourneys returns the tournament-store view.
func (s *SQLite) Tourneys() TourneyStore { return sqliteTourneys{s} }

type sqliteConnections struct{ *SQLite }

func (s sqliteConnections) Put(ctx context.Context, conn Connection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (connection_id, player_id, player_name, connected_at, last_ping, ttl)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(connection_id) DO UPDATE SET
			player_id = excluded.player_id,
			player_name = excluded.player_name,
			connected_at = excluded.connected_at,
			last_ping = excluded.last_ping,
			ttl = excluded.ttl
	`, conn.ConnectionID, conn.PlayerID, conn.PlayerName, conn.ConnectedAt, conn.LastPing, conn.TTL)
	return err
}

func (s sqliteConnections) Get(ctx context.Context, connectionID string) (Connection, error) {
	var conn Connection
	err := s.db.QueryRowContext(ctx, `
		SELECT connection_id, player_id, player_name, connected_at, last_ping, ttl
		FROM connections WHERE connection_id = ? AND ttl > ?
	`, connectionID, s.clock.Now().Unix()).Scan(
		&conn.ConnectionID, &conn.PlayerID, &conn.PlayerName,
		&conn.ConnectedAt, &conn.LastPing, &conn.TTL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	if err != nil {
		return Connection{}, err
	}
	return conn, nil
}

func (s sqliteConnections) Delete(ctx context.Context, connectionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE connection_id = ?`, connectionID)
	return err
}

func (s sqliteConnections) Touch(ctx context.Context, connectionID string, lastPing int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE connections SET last_ping = ? WHERE connection_id = ? AND ttl > ?
	`, lastPing, connectionID, s.clock.Now().Unix())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s sqliteConnections) List(ctx context.Context) ([]Connection, error) {
	now := s.clock.Now().Unix()

	// Reap expired records opportunistically on scans.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE ttl <= ?`, now); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT connection_id, player_id, player_name, connected_at, last_ping, ttl
		FROM connections
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var conn Connection
		if err := rows.Scan(&conn.ConnectionID, &conn.PlayerID, &conn.PlayerName,
			&conn.ConnectedAt, &conn.LastPing, &conn.TTL); err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

type sqliteTourneys struct{ *SQLite }

func (s sqliteTourneys) Get(ctx context.Context, tourneyID string) (*tourney.Tourney, int64, error) {
	var (
		version  int64
		snapshot string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, snapshot FROM tourneys WHERE tourney_id = ?
	`, tourneyID).Scan(&version, &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	var t tourney.Tourney
	if err := json.Unmarshal([]byte(snapshot), &t); err != nil {
		return nil, 0, fmt.Errorf("decode tourney snapshot: %w", err)
	}
	t.Normalize()
	return &t, version, nil
}

func (s sqliteTourneys) Put(ctx context.Context, t *tourney.Tourney, expectedVersion int64) (int64, error) {
	snapshot, err := json.Marshal(t)
	if err != nil {
		return 0, err
	}

	if expectedVersion == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tourneys (tourney_id, version, snapshot) VALUES (?, 1, ?)
		`, t.ID, string(snapshot))
		if err != nil {
			// A concurrent insert won the race.
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tourneys SET version = version + 1, snapshot = ?
		WHERE tourney_id = ? AND version = ?
	`, string(snapshot), t.ID, expectedVersion)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}
