// Package sqlite is the local warehouse backend: a single-file database
// rebuilt from scratch on every run and swapped in atomically, so dashboards
// reading the live file never observe a half-loaded state.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"moonwalketl/internal/storage"
	"moonwalketl/internal/table"
)

// insertChunkRows bounds multi-row VALUES batches; SQLite caps bind
// variables per statement.
const insertChunkRows = 500

type Sink struct {
	path string
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite: missing database path")
	}
	return &Sink{path: cfg.DSN}, nil
}

func (s *Sink) Close() {}

// Load rebuilds the database in a sibling temp file and renames it over the
// live path only after every table, index and validation has succeeded.
func (s *Sink) Load(ctx context.Context, tables []*table.Table) error {
	tmp := s.path + ".tmp"
	_ = os.Remove(tmp)

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("sqlite: open %s: %w", tmp, err)
	}
	if err := s.build(ctx, db, tables); err != nil {
		_ = db.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sqlite: close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sqlite: swap in %s: %w", s.path, err)
	}
	log.Printf("[OK] sqlite: rebuilt %s", s.path)
	return nil
}

func (s *Sink) build(ctx context.Context, db *sql.DB, tables []*table.Table) error {
	loaded := map[string]bool{}
	for _, t := range tables {
		if err := loadTable(ctx, db, t); err != nil {
			return err
		}
		loaded[t.Name] = true
	}
	if err := createIndexes(ctx, db, loaded); err != nil {
		return err
	}
	if loaded["sales"] {
		if err := buildOrderLookup(ctx, db); err != nil {
			return err
		}
	}
	return validate(ctx, db, tables, loaded)
}

func loadTable(ctx context.Context, db *sql.DB, t *table.Table) error {
	rules := storage.RulesFor(t.Name)

	// Column projection with per-column kind; dropped columns never land.
	type loadCol struct {
		idx  int
		name string
		kind storage.ColumnKind
	}
	var cols []loadCol
	for i, name := range t.Columns {
		kind := rules.Classify(name)
		if kind == storage.KindDropped {
			continue
		}
		if kind == storage.KindText {
			kind = inferKind(t, i)
		}
		cols = append(cols, loadCol{idx: i, name: name, kind: kind})
	}

	var ddl strings.Builder
	ddl.WriteString("CREATE TABLE ")
	ddl.WriteString(sqlIdent(t.Name))
	ddl.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			ddl.WriteString(", ")
		}
		ddl.WriteString(sqlIdent(c.name))
		ddl.WriteString(" ")
		ddl.WriteString(sqliteType(c.kind))
	}
	ddl.WriteString(")")
	if _, err := db.ExecContext(ctx, ddl.String()); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", t.Name, err)
	}

	for start := 0; start < len(t.Rows); start += insertChunkRows {
		end := start + insertChunkRows
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		chunk := t.Rows[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(sqlIdent(t.Name))
		b.WriteString(" (")
		for i, c := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(sqlIdent(c.name))
		}
		b.WriteString(") VALUES ")

		args := make([]any, 0, len(chunk)*len(cols))
		for r, row := range chunk {
			if r > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(")
			for i, c := range cols {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString("?")
				args = append(args, sqliteValue(row[c.idx], c.kind))
			}
			b.WriteString(")")
		}

		if _, err := db.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("sqlite: insert into %s: %w", t.Name, err)
		}
	}
	log.Printf("[OK] sqlite: %s loaded (%d rows)", t.Name, len(t.Rows))
	return nil
}

// inferKind picks an affinity for untyped columns from the first non-nil
// cell; transform output columns are homogeneous.
func inferKind(t *table.Table, col int) storage.ColumnKind {
	for _, row := range t.Rows {
		switch row[col].(type) {
		case time.Time:
			return storage.KindDate
		case float64:
			return kindFloat
		case int64:
			return kindInt
		case string:
			return storage.KindText
		}
	}
	return storage.KindText
}

// Extra kinds local to this backend; the shared classifier never emits them.
const (
	kindInt storage.ColumnKind = iota + 100
	kindFloat
)

func sqliteType(kind storage.ColumnKind) string {
	switch kind {
	case storage.KindDate:
		return "DATE"
	case storage.KindBool:
		return "BOOLEAN"
	case storage.KindSmallInt:
		return "SMALLINT"
	case kindInt:
		return "INTEGER"
	case kindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// sqliteValue converts a staging cell into its bound representation. Dates
// are stored as YYYY-MM-DD text for easy debugging and stable round-trips.
func sqliteValue(v any, kind storage.ColumnKind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case storage.KindDate:
		if t, ok := v.(time.Time); ok {
			return t.Format("2006-01-02")
		}
		return table.FormatCell(v)
	case storage.KindBool, storage.KindSmallInt, kindInt:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			return int64(x)
		case bool:
			if x {
				return int64(1)
			}
			return int64(0)
		}
		return v
	default:
		return v
	}
}

// indexDDL pairs each index with its table so a run that skipped a table
// (a stale dim_period check, for example) does not fail on its indexes.
var indexDDL = []struct {
	table string
	ddl   string
}{
	{"sales", `CREATE INDEX idx_sales_customer ON sales ("CustomerID_Std")`},
	{"sales", `CREATE INDEX idx_sales_order ON sales ("OrderID_Std")`},
	{"sales", `CREATE INDEX idx_sales_cohort_month ON sales ("OrderCohortMonth")`},
	{"sales", `CREATE INDEX idx_sales_earned_date ON sales ("Earned_Date")`},
	{"sales", `CREATE INDEX idx_sales_txn_type ON sales ("Transaction_Type")`},
	{"items", `CREATE INDEX idx_items_customer ON items ("CustomerID_Std")`},
	{"items", `CREATE INDEX idx_items_order ON items ("OrderID_Std")`},
	{"items", `CREATE INDEX idx_items_date ON items ("ItemDate")`},
	{"customers", `CREATE INDEX idx_customers_id ON customers ("CustomerID_Std")`},
	{"customer_quality", `CREATE INDEX idx_cust_quality_id ON customer_quality ("CustomerID_Std")`},
	{"customer_quality", `CREATE INDEX idx_cust_quality_month ON customer_quality ("OrderCohortMonth")`},
	{"dim_period", `CREATE INDEX idx_period_date ON dim_period ("Date")`},
	{"dim_period", `CREATE INDEX idx_period_yearmonth ON dim_period ("YearMonth")`},
	{"dim_period", `CREATE INDEX idx_period_isoweeklabel ON dim_period ("ISOWeekLabel")`},
}

func createIndexes(ctx context.Context, db *sql.DB, loaded map[string]bool) error {
	for _, ix := range indexDDL {
		if !loaded[ix.table] {
			continue
		}
		if _, err := db.ExecContext(ctx, ix.ddl); err != nil {
			return fmt.Errorf("sqlite: %s: %w", ix.ddl, err)
		}
	}
	return nil
}

// buildOrderLookup materializes the order-to-subscription map dashboards use
// to join items against subscription context without scanning sales.
func buildOrderLookup(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE order_lookup AS
		 SELECT DISTINCT "OrderID_Std", "IsSubscriptionService" FROM sales`,
		`CREATE INDEX idx_order_lookup_id ON order_lookup ("OrderID_Std")`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: order_lookup: %w", err)
		}
	}
	return nil
}

// validate runs sanity queries against the freshly built file and logs the
// headline numbers. A query error fails the load; suspicious numbers only
// warn, retail data is allowed to look odd on slow months.
func validate(ctx context.Context, db *sql.DB, tables []*table.Table, loaded map[string]bool) error {
	for _, t := range tables {
		var n int64
		q := "SELECT COUNT(*) FROM " + sqlIdent(t.Name)
		if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return fmt.Errorf("sqlite: validate %s: %w", t.Name, err)
		}
		if int(n) != len(t.Rows) {
			return fmt.Errorf("sqlite: %s has %d rows, loaded %d", t.Name, n, len(t.Rows))
		}
	}
	if !loaded["sales"] {
		return nil
	}

	var earned sql.NullFloat64
	err := db.QueryRowContext(ctx,
		`SELECT SUM("Total_Num") FROM sales WHERE "Is_Earned" = 1`).Scan(&earned)
	if err != nil {
		return fmt.Errorf("sqlite: validate earned revenue: %w", err)
	}
	log.Printf("[OK] sqlite: earned revenue %.2f", earned.Float64)
	if !earned.Valid || earned.Float64 <= 0 {
		log.Printf("[WARN] sqlite: earned revenue is empty")
	}

	var minDate, maxDate sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT MIN("Earned_Date"), MAX("Earned_Date") FROM sales WHERE "Earned_Date" IS NOT NULL`).
		Scan(&minDate, &maxDate)
	if err != nil {
		return fmt.Errorf("sqlite: validate date range: %w", err)
	}
	log.Printf("[OK] sqlite: earned dates %s to %s", minDate.String, maxDate.String)
	return nil
}

// sqlIdent quotes an identifier for SQLite.
func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
