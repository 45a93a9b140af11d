package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"lochist/internal/model"
	"lochist/internal/table"
)

const schema = `
	DROP TABLE IF EXISTS events;
	CREATE TABLE events (
		position INTEGER PRIMARY KEY,
		indexTime TEXT NOT NULL,
		beginDate TEXT NOT NULL,
		beginTime TEXT NOT NULL,
		endDate TEXT NOT NULL,
		endTime TEXT NOT NULL,
		duration TEXT NOT NULL,
		weekDay INTEGER NOT NULL,
		address TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		distance INTEGER NOT NULL,
		track TEXT NOT NULL
	);
	CREATE INDEX idx_events_category ON events(category);
	CREATE INDEX idx_events_beginDate ON events(beginDate);
`

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// SaveSQLite replaces the events table in the database at path with t.
// Rows keep their table position.
func SaveSQLite(ctx context.Context, path string, t table.Table) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (position, indexTime, beginDate, beginTime, endDate, endTime,
			duration, weekDay, address, name, category, distance, track)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range t {
		track, err := encodeTrack(ev.Track)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, ev.IndexTime, ev.BeginDate, ev.BeginTime,
			ev.EndDate, ev.EndTime, ev.Duration, ev.WeekDay, ev.Address, ev.Name,
			ev.Category, ev.Distance, track); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadSQLite reads a table written by SaveSQLite.
func LoadSQLite(ctx context.Context, path string) (table.Table, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT indexTime, beginDate, beginTime, endDate, endTime, duration,
			weekDay, address, name, category, distance, track
		FROM events
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make(table.Table, 0)
	for rows.Next() {
		var ev model.Event
		var track string
		if err := rows.Scan(&ev.IndexTime, &ev.BeginDate, &ev.BeginTime, &ev.EndDate,
			&ev.EndTime, &ev.Duration, &ev.WeekDay, &ev.Address, &ev.Name,
			&ev.Category, &ev.Distance, &track); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Track, err = decodeTrack(track); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.IndexTime, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Tracks are stored as [[lon, lat], ...].
func encodeTrack(t model.Track) (string, error) {
	pairs := make([][2]string, len(t))
	for i, c := range t {
		pairs[i] = [2]string{c.Lon, c.Lat}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeTrack(s string) (model.Track, error) {
	var pairs [][2]string
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	t := make(model.Track, len(pairs))
	for i, p := range pairs {
		t[i] = model.Coord{Lon: p[0], Lat: p[1]}
	}
	return t, nil
}
