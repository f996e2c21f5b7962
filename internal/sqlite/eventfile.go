package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpggio/phasefold/internal/events"
)

// ChecksumKey is the header card holding the content digest.
const ChecksumKey = "DATASUM"

// Every container holds the event table as hdu 0 followed by its
// extensions in order.
const eventSchema = `
CREATE TABLE IF NOT EXISTS hdus (
    hdu INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS header (
    hdu INTEGER NOT NULL,
    position INTEGER NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (hdu, position),
    UNIQUE (hdu, key)
);
CREATE TABLE IF NOT EXISTS columns (
    hdu INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    format TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    data BLOB NOT NULL,
    PRIMARY KEY (hdu, position),
    UNIQUE (hdu, name)
);
`

// EventStore implements events.Store with one SQLite database per event file.
type EventStore struct{}

var _ events.Store = (*EventStore)(nil)

// NewEventStore creates an EventStore.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Read loads the table stored at path.
func (s *EventStore) Read(ctx context.Context, path string) (*events.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	db, err := New(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return readTable(ctx, db)
}

// Write stores t and its extensions at path. In-place writes replace the
// contents of an existing file inside one transaction. Other writes build a
// temporary database next to path and rename it over the target. A stale
// DATASUM card is dropped when Checksum is off.
func (s *EventStore) Write(ctx context.Context, path string, t *events.Table, opts events.WriteOptions) error {
	t = t.Clone()
	t.Header.Delete(ChecksumKey)
	if opts.Checksum {
		t.Header.Set(ChecksumKey, Checksum(t), "SHA-256 of header and column data")
	}
	if opts.InPlace {
		return s.writeInPlace(ctx, path, t)
	}
	return s.writeNew(ctx, path, t, opts.Overwrite)
}

func (s *EventStore) writeInPlace(ctx context.Context, path string, t *events.Table) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open event file: %w", err)
	}
	db, err := New(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return writeTable(ctx, db, t)
}

func (s *EventStore) writeNew(ctx context.Context, path string, t *events.Table, overwrite bool) error {
	_, err := os.Stat(path)
	switch {
	case err == nil && !overwrite:
		return fmt.Errorf("%w: %s", events.ErrFileExists, path)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to stat event file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".phasefold-*.db")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	db, err := New(tmpPath)
	if err != nil {
		return err
	}
	if err := writeTable(ctx, db, t); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close event file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace event file: %w", err)
	}
	committed = true
	return nil
}

func writeTable(ctx context.Context, db *DB, t *events.Table) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, eventSchema); err != nil {
		return fmt.Errorf("failed to create event schema: %w", err)
	}
	for _, table := range []string{"hdus", "header", "columns"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	hdus := append([]events.Extension{{Name: events.EventsExtension, Table: t}}, t.Extensions...)
	for hdu, ext := range hdus {
		if _, err := tx.ExecContext(ctx, `INSERT INTO hdus (hdu, name) VALUES (?, ?)`, hdu, ext.Name); err != nil {
			return fmt.Errorf("failed to write extension %s: %w", ext.Name, err)
		}
		if err := writeHDU(ctx, tx, hdu, ext.Table); err != nil {
			return fmt.Errorf("extension %s: %w", ext.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event file: %w", err)
	}
	return nil
}

// writeHDU stores the header and columns of t. Extensions of t itself are
// not stored.
func writeHDU(ctx context.Context, tx *sql.Tx, hdu int, t *events.Table) error {
	for i, c := range t.Header.Cards() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO header (hdu, position, key, value, comment) VALUES (?, ?, ?, ?, ?)`,
			hdu, i, c.Key, c.Value, c.Comment); err != nil {
			return fmt.Errorf("failed to write header card %s: %w", c.Key, err)
		}
	}
	for i, c := range t.Columns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO columns (hdu, position, name, format, unit, data) VALUES (?, ?, ?, ?, ?, ?)`,
			hdu, i, c.Name, c.Format, c.Unit, encodeValues(c.Values)); err != nil {
			return fmt.Errorf("failed to write column %s: %w", c.Name, err)
		}
	}
	return nil
}

func readTable(ctx context.Context, db *DB) (*events.Table, error) {
	rows, err := db.QueryContext(ctx, `SELECT hdu, name FROM hdus ORDER BY hdu`)
	if err != nil {
		return nil, fmt.Errorf("failed to read extensions: %w", err)
	}
	var hdus []events.Extension
	var ids []int
	for rows.Next() {
		var id int
		var ext events.Extension
		if err := rows.Scan(&id, &ext.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan extension: %w", err)
		}
		ids = append(ids, id)
		hdus = append(hdus, ext)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating extensions: %w", err)
	}
	rows.Close()
	if len(ids) == 0 || ids[0] != 0 {
		return nil, errors.New("event file has no event table")
	}

	for i, id := range ids {
		if hdus[i].Table, err = readHDU(ctx, db, id); err != nil {
			return nil, fmt.Errorf("extension %s: %w", hdus[i].Name, err)
		}
	}
	table := hdus[0].Table
	if len(hdus) > 1 {
		table.Extensions = hdus[1:]
	}
	return table, nil
}

func readHDU(ctx context.Context, db *DB, hdu int) (*events.Table, error) {
	header := events.NewHeader()
	rows, err := db.QueryContext(ctx, `SELECT key, value, comment FROM header WHERE hdu = ? ORDER BY position`, hdu)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for rows.Next() {
		var c events.Card
		if err := rows.Scan(&c.Key, &c.Value, &c.Comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan header card: %w", err)
		}
		header.Set(c.Key, c.Value, c.Comment)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating header rows: %w", err)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `SELECT name, format, unit, data FROM columns WHERE hdu = ? ORDER BY position`, hdu)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	var cols []events.Column
	for rows.Next() {
		var c events.Column
		var data []byte
		if err := rows.Scan(&c.Name, &c.Format, &c.Unit, &data); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if c.Values, err = decodeValues(data); err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return events.NewTable(header, cols...)
}

func encodeValues(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeValues(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of 8", len(data))
	}
	values := make([]float64, len(data)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return values, nil
}

// Checksum returns the hex SHA-256 digest of the header cards (except
// DATASUM) and the column data of the event table t. Extensions are not
// covered.
func Checksum(t *events.Table) string {
	h := sha256.New()
	for _, c := range t.Header.Cards() {
		if c.Key == ChecksumKey {
			continue
		}
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00", c.Key, c.Value, c.Comment)
	}
	for _, c := range t.Columns {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00", c.Name, c.Format, c.Unit)
		h.Write(encodeValues(c.Values))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChecksum reports whether the DATASUM card of t matches its content.
// Tables without the card verify as false.
func VerifyChecksum(t *events.Table) bool {
	sum, ok := t.Header.Get(ChecksumKey)
	return ok && strings.EqualFold(sum, Checksum(t))
}
