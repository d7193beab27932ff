package legacycache

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/text/encoding/unicode"

	"lerngruppe/internal/ports/output"
)

var _ output.LegacyCache = (*SQLiteCache)(nil)

// DefaultTable is the key/value table browsers use for localStorage files.
const DefaultTable = "ItemTable"

// SQLiteCache reads a localStorage-style SQLite file (key TEXT, value TEXT
// or BLOB) in read-only mode. A missing file behaves as an empty cache.
type SQLiteCache struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens path read-only. table defaults to DefaultTable.
func OpenSQLite(path, table string) (*SQLiteCache, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("legacy cache: invalid table name %q", table)
	}
	c := &SQLiteCache{table: table}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return c, nil
	} else if err != nil {
		return nil, fmt.Errorf("legacy cache: stat %s: %w", path, err)
	}

	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("legacy cache: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("legacy cache: ping %s: %w", path, err)
	}
	c.db = db
	return c, nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, error) {
	if c.db == nil {
		return "", output.ErrCacheMiss
	}
	var value []byte
	err := c.db.QueryRowContext(ctx, "SELECT value FROM "+c.table+" WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", output.ErrCacheMiss
	}
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return "", output.ErrCacheMiss
		}
		return "", fmt.Errorf("legacy cache: get %q: %w", key, err)
	}
	return decodeValue(value)
}

// decodeValue returns value as text. WebKit and older Chromium builds write
// localStorage values as UTF-16LE; UTF-8 text never contains a NUL byte.
func decodeValue(value []byte) (string, error) {
	if !bytes.ContainsRune(value, 0) {
		return string(value), nil
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(value)
	if err != nil {
		return "", fmt.Errorf("legacy cache: decode utf-16: %w", err)
	}
	return string(decoded), nil
}

// Close releases the file handle.
func (c *SQLiteCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func validIdentifier(s string) bool {
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return s != ""
}
