package sqlite

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// snapshotTable maps a JSONL file to its table. Tables with foreign keys
// come after the tables they reference.
type snapshotTable struct {
	file    string
	table   string
	columns []string
	// integers lists the columns that must decode as JSON integers.
	integers []string
	// selects overrides the SELECT expression per column on export.
	selects map[string]string
	// valid checks table-specific fields of a decoded record.
	valid func(obj map[string]any) bool
}

var snapshotTables = []snapshotTable{
	{file: "tags.jsonl", table: "tags", columns: []string{"id", "name"}, integers: []string{"id"}},
	{file: "items.jsonl", table: "items", columns: []string{"id", "name", "image_url"}, integers: []string{"id"}},
	{file: "item_tags.jsonl", table: "item_tags", columns: []string{"item_id", "tag_id"}, integers: []string{"item_id", "tag_id"}},
	{
		file:     "prices.jsonl",
		table:    "prices",
		columns:  []string{"id", "item_id", "price", "created_at"},
		integers: []string{"id", "item_id", "price"},
		selects:  map[string]string{"created_at": "strftime('%Y-%m-%d %H:%M:%f', created_at)"},
		valid:    validPriceRecord,
	},
}

// snapshotTimeLayouts are the created_at forms accepted on import.
var snapshotTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// validPriceRecord requires a positive price and a readable timestamp so
// restored rows aggregate like rows written by AddPrice.
func validPriceRecord(obj map[string]any) bool {
	if price, _ := obj["price"].(int64); price <= 0 {
		return false
	}
	created, ok := obj["created_at"].(string)
	if !ok {
		return false
	}
	for _, layout := range snapshotTimeLayouts {
		if _, err := time.Parse(layout, created); err == nil {
			return true
		}
	}
	return false
}

// accepts reports whether obj has the column types t needs.
func (t snapshotTable) accepts(obj map[string]any) bool {
	for _, col := range t.integers {
		if _, ok := obj[col].(int64); !ok {
			return false
		}
	}
	return t.valid == nil || t.valid(obj)
}

// SnapshotCounts reports rows written or restored per table.
type SnapshotCounts map[string]int

// Export writes every table to <dir>/<table>.jsonl, one JSON object per
// row, from a single read transaction. Each file is replaced atomically.
func (b *Backend) Export(ctx context.Context, dir string) (SnapshotCounts, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("beginning export", err)
	}
	defer tx.Rollback()

	counts := SnapshotCounts{}
	for _, t := range snapshotTables {
		records, err := exportTable(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		if err := writeJSONL(filepath.Join(dir, t.file), records); err != nil {
			return nil, fmt.Errorf("writing %s: %w", t.file, err)
		}
		counts[t.table] = len(records)
	}
	return counts, nil
}

// Import restores rows from JSONL files written by Export. Missing files,
// malformed lines and records with mistyped fields are skipped. Rows that collide with existing ids or
// names, break a constraint, or reference absent rows are skipped. All
// accepted rows are written in one transaction.
func (b *Backend) Import(ctx context.Context, dir string) (SnapshotCounts, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("beginning import", err)
	}
	defer tx.Rollback()

	counts := SnapshotCounts{}
	for _, t := range snapshotTables {
		records, err := readJSONL(filepath.Join(dir, t.file))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", t.file, err)
		}
		n, err := importRecords(ctx, tx, t, records)
		if err != nil {
			return nil, err
		}
		counts[t.table] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("committing import", err)
	}
	return counts, nil
}

func exportTable(ctx context.Context, q queryer, t snapshotTable) ([]json.RawMessage, error) {
	exprs := make([]string, len(t.columns))
	for i, col := range t.columns {
		exprs[i] = col
		if sel, ok := t.selects[col]; ok {
			exprs[i] = sel
		}
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(exprs, ", "), t.table)

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("querying "+t.table, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		values := make([]any, len(t.columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, storeErr("scanning "+t.table, err)
		}
		obj := make(map[string]any, len(t.columns))
		for i, col := range t.columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			obj[col] = values[i]
		}
		rec, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("encoding %s row: %w", t.table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating "+t.table, err)
	}
	return records, nil
}

// importRecords inserts records into t.table and returns how many were
// added. Only the mapped columns are read; other fields are ignored.
func importRecords(ctx context.Context, tx *sql.Tx, t snapshotTable, records []json.RawMessage) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		t.table, strings.Join(t.columns, ", "), placeholders,
	))
	if err != nil {
		return 0, storeErr("preparing import into "+t.table, err)
	}
	defer stmt.Close()

	added := 0
	for _, rec := range records {
		obj, err := decodeRecord(rec)
		if err != nil || !t.accepts(obj) {
			continue
		}
		args := make([]any, len(t.columns))
		for i, col := range t.columns {
			args[i] = obj[col]
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			if isConstraintViolation(err) {
				continue
			}
			return 0, storeErr("importing into "+t.table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	return added, nil
}

// decodeRecord decodes one JSON object, keeping integers exact.
func decodeRecord(rec json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(rec))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	for k, v := range obj {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			obj[k] = i
		} else if f, err := n.Float64(); err == nil {
			obj[k] = f
		}
	}
	return obj, nil
}

// readJSONL returns each non-empty, well-formed line of path. A missing
// file yields no records.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		records = append(records, json.RawMessage(bytes.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL replaces path with records through a synced temp file and a
// rename.
func writeJSONL(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
