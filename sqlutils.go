package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/mattn/go-sqlite3"

	"tereborace.com/painelos/ordens"
)

// ==== Exportación SQLite e busca sen acentos ====

// snapshotTable é a táboa que leva o ficheiro exportado.
const snapshotTable = "ordens"

// asciiFold elimina diacríticos e pasa a minúsculas.
func asciiFold(s string) string {
	// Normalizamos a NFD e eliminamos marcas (Mn)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue // descarta a marca diacrítica
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// matchRecord: algunha columna contén q, sen ter en conta acentos nin maiúsculas.
func matchRecord(r ordens.Record, q string) bool {
	q = asciiFold(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, v := range r.Values {
		if strings.Contains(asciiFold(v), q) {
			return true
		}
	}
	return false
}

// searchRecords filtra recs con matchRecord; q baleiro devolve recs.
func searchRecords(recs []ordens.Record, q string) []ordens.Record {
	if strings.TrimSpace(q) == "" {
		return recs
	}
	out := []ordens.Record{}
	for _, r := range recs {
		if matchRecord(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func quoteIdent(id string) string {
	// minimal: wrap with double quotes and escape existing quotes
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// Rexistra unha función SQL chamada unaccent_lower(text) -> text
func registerSQLiteFuncs(db *sql.DB) error {
	conn, err := db.Conn(context.Background())
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(dc any) error {
		c, ok := dc.(*sqlite3.SQLiteConn)
		if !ok {
			return nil
		}
		return c.RegisterFunc("unaccent_lower", func(s any) any {
			switch v := s.(type) {
			case nil:
				return ""
			case string:
				return asciiFold(v)
			case []byte:
				return asciiFold(string(v))
			default:
				return asciiFold(fmt.Sprint(v))
			}
		}, true) // pure=true
	})
}

// snapshotColumns: as 19 columnas do ficheiro máis o mes derivado.
func snapshotColumns() []ordens.Field {
	cols := make([]ordens.Field, 0, ordens.FieldCount+1)
	for f := ordens.Field(0); int(f) < ordens.FieldCount; f++ {
		cols = append(cols, f)
	}
	return append(cols, ordens.Month)
}

// writeSQLiteSnapshot crea path cunha táboa "ordens" cos rexistros de recs.
// q non baleiro borra despois as filas que non casan, con unaccent_lower.
// Devolve as filas que quedan.
func writeSQLiteSnapshot(path string, recs []ordens.Record, q string) (int, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	// unha soa conexión: a función rexistrada vive nela
	db.SetMaxOpenConns(1)
	if err := registerSQLiteFuncs(db); err != nil {
		return 0, err
	}

	cols := snapshotColumns()
	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, f := range cols {
		names[i] = quoteIdent(f.Key())
		defs[i] = names[i] + " TEXT"
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(snapshotTable), strings.Join(defs, ", "))
	if _, err := db.Exec(create); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	ins, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(snapshotTable), strings.Join(names, ","), strings.Join(marks, ",")))
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	for _, r := range recs {
		args := make([]any, len(cols))
		for i, f := range cols {
			args[i] = r.Get(f)
		}
		if _, err := ins.Exec(args...); err != nil {
			_ = ins.Close()
			_ = tx.Rollback()
			return 0, err
		}
	}
	_ = ins.Close()
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	if where, args := buildWhereNotLike(names, q); where != "" {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s %s", quoteIdent(snapshotTable), where), args...); err != nil {
			return 0, err
		}
	}

	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(snapshotTable))).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// buildWhereNotLike: WHERE NOT (col1 LIKE ? OR ...), con unaccent_lower e os comodíns de q escapados.
func buildWhereNotLike(quotedCols []string, q string) (string, []any) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", nil
	}
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(asciiFold(q))
	like := "%" + esc + "%"
	parts := make([]string, 0, len(quotedCols))
	args := make([]any, 0, len(quotedCols))
	for _, c := range quotedCols {
		parts = append(parts, fmt.Sprintf(`unaccent_lower(%s) LIKE ? ESCAPE '\'`, c))
		args = append(args, like)
	}
	return "WHERE NOT (" + strings.Join(parts, " OR ") + ")", args
}

// openSQLite abre un ficheiro exportado en só lectura.
func openSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	// Read-only reforzado a nivel de sesión
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// snapshotCounts le de novo o ficheiro e conta os valores de f, como Frequencies.
func snapshotCounts(path string, f ordens.Field) ([]ordens.Count, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	id := quoteIdent(f.Key())
	// rowid mínimo = primeira aparición, para desempatar igual que o agregador
	q := fmt.Sprintf(`
		SELECT %s AS k, COUNT(*) AS c, MIN(rowid) AS first
		FROM %s
		GROUP BY %s
		ORDER BY c DESC, first ASC
	`, id, quoteIdent(snapshotTable), id)
	rows, err := db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ordens.Count{}
	for rows.Next() {
		var k sql.NullString
		var c, first int
		if err := rows.Scan(&k, &c, &first); err != nil {
			return nil, err
		}
		out = append(out, ordens.Count{Value: k.String, Count: c})
	}
	return out, rows.Err()
}

// verifySnapshot reabre o ficheiro en só lectura e comproba que ten want filas.
func verifySnapshot(path string, want int) error {
	counts, err := snapshotCounts(path, ordens.Month)
	if err != nil {
		return err
	}
	got := 0
	for _, c := range counts {
		got += c.Count
	}
	if got != want {
		return fmt.Errorf("sqlite: esperadas %d filas, o ficheiro ten %d", want, got)
	}
	return nil
}
