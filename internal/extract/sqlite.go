package extract

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// extractSQLiteBytes writes content to a temporary file and dumps it, since
// the SQLite driver only opens databases from disk.
func extractSQLiteBytes(content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "kotae-extract-*.db")
	if err != nil {
		return "", fmt.Errorf("temp database: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp database: %w", err)
	}
	return extractSQLite(tmp.Name())
}

// extractSQLite dumps every user table as tab-separated text: a heading with
// the table name, the column names, then the rows. Internal sqlite_* tables
// are skipped.
func extractSQLite(path string) (string, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return "", fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		if err := dumpTable(db, table, &b); err != nil {
			return "", fmt.Errorf("dump table %q: %w", table, err)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func dumpTable(db *sql.DB, table string, b *strings.Builder) error {
	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM %q`, table))
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	b.WriteString("Table: " + table + "\n")
	b.WriteString(strings.Join(cols, "\t"))
	b.WriteByte('\n')

	values := make([]any, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return err
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			switch x := v.(type) {
			case nil:
				fields[i] = ""
			case []byte:
				fields[i] = string(x)
			default:
				fields[i] = fmt.Sprintf("%v", x)
			}
		}
		b.WriteString(strings.Join(fields, "\t"))
		b.WriteByte('\n')
	}
	return rows.Err()
}
