// Package postgres loads the warehouse tables into a remote Postgres
// database under the analytics schema. The remote copy mirrors the local
// sqlite warehouse so dashboards and notebooks can query either.
package postgres

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"moonwalketl/internal/storage"
	"moonwalketl/internal/table"
)

func init() {
	storage.Register("postgres", New)
}

// analyticsSchema is the schema every warehouse table lives in. It is also
// pinned as the connection search_path so generated SQL can stay unqualified
// in WHERE clauses while DDL stays explicit.
const analyticsSchema = "analytics"

// insertParamLimit caps the bound parameters per INSERT statement. Postgres
// rejects statements above 65535 parameters; staying well under leaves room
// for the encryption key arguments PII columns add.
const insertParamLimit = 60000

// maxRowsPerInsert bounds statement size even for narrow tables.
const maxRowsPerInsert = 2000

// Sink loads tables into Postgres. Each table is truncated and reloaded in
// its own transaction, so a failed load leaves the previous contents of the
// remaining tables intact.
type Sink struct {
	pool *pgxpool.Pool
	key  string
}

// New connects a pool to cfg.DSN with the analytics search_path applied.
//
// Errors:
//   - cfg.DSN empty or unparseable.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse DSN: %w", err)
	}
	pc.ConnConfig.RuntimeParams["search_path"] = analyticsSchema + ",public"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Sink{pool: pool, key: cfg.EncryptionKey}, nil
}

// Close closes the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// Load replaces the analytics schema contents with the given tables.
//
// Behavior:
//   - Schema and pgcrypto bootstrap commit before any table load. pgcrypto
//     backs pgp_sym_encrypt for the PII columns.
//   - Each table loads in one transaction: create if missing, truncate,
//     chunked inserts.
//   - Tables whose rules name PII columns refuse to load without an
//     encryption key. That check runs before any row is written.
//   - After sales loads, legacy rows are marked paid and order_lookup is
//     rebuilt server-side.
func (s *Sink) Load(ctx context.Context, tables []*table.Table) error {
	if err := checkEncryptionKey(tables, s.key); err != nil {
		return err
	}
	if err := s.bootstrap(ctx); err != nil {
		return err
	}

	loadedSales := false
	for _, t := range tables {
		rules := storage.RulesFor(t.Name)
		if err := s.loadTable(ctx, t, rules); err != nil {
			return fmt.Errorf("postgres: load %s: %w", t.Name, err)
		}
		if t.Name == "sales" {
			loadedSales = true
		}
	}

	if loadedSales {
		if err := s.fixupLegacyPaid(ctx); err != nil {
			return err
		}
		if err := s.rebuildOrderLookup(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkEncryptionKey refuses a load when any table's rules name PII columns
// and no key is configured. Runs before any statement so nothing is written.
func checkEncryptionKey(tables []*table.Table, key string) error {
	if key != "" {
		return nil
	}
	for _, t := range tables {
		rules := storage.RulesFor(t.Name)
		if len(rules.PIIColumns) > 0 {
			return fmt.Errorf(
				"postgres: refusing to load %s: ENCRYPTION_KEY is not set and %v would be stored as plaintext",
				t.Name, rules.PIIColumns)
		}
	}
	return nil
}

// bootstrap creates the schema and the pgcrypto extension. Committed outside
// the table transactions so a later rollback cannot undo them.
func (s *Sink) bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgIdent(analyticsSchema),
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: bootstrap: %w", err)
		}
	}
	return nil
}

func (s *Sink) loadTable(ctx context.Context, t *table.Table, rules storage.Rules) error {
	cols := planColumns(t, rules)
	if len(cols) == 0 {
		return fmt.Errorf("no loadable columns")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, buildCreateSQL(t.Name, cols)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, buildTruncateSQL(t.Name)); err != nil {
		return err
	}

	for start := 0; start < len(t.Rows); start += rowsPerInsert(len(cols)) {
		end := start + rowsPerInsert(len(cols))
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		sql, args := buildInsertSQL(t.Name, cols, t.Rows[start:end], s.key)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("postgres: loaded %s (%d rows)", t.Name, len(t.Rows))
	return nil
}

// fixupLegacyPaid marks historical rows paid. The legacy register only
// exported settled orders, but a handful carried a stale unpaid flag.
func (s *Sink) fixupLegacyPaid(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, `UPDATE `+qualified("sales")+
		` SET "Paid" = TRUE WHERE "Source" = 'Legacy' AND "Paid" = FALSE`)
	if err != nil {
		return fmt.Errorf("postgres: legacy paid fixup: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Printf("postgres: marked %d legacy sales rows paid", n)
	}
	return nil
}

// rebuildOrderLookup regenerates the order to subscription-flag map from the
// freshly loaded sales table.
func (s *Sink) rebuildOrderLookup(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + qualified("order_lookup") +
			` ("OrderID_Std" TEXT, "IsSubscriptionService" BOOLEAN)`,
		`TRUNCATE TABLE ` + qualified("order_lookup"),
		`INSERT INTO ` + qualified("order_lookup") +
			` SELECT DISTINCT "OrderID_Std", "IsSubscriptionService" FROM ` + qualified("sales") +
			` WHERE "OrderID_Std" IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: order_lookup: %w", err)
		}
	}
	return nil
}

// loadCol is one column of the insert plan.
type loadCol struct {
	idx  int
	name string
	kind storage.ColumnKind
}

// planColumns projects the table onto the columns that load, resolving each
// to a concrete kind. Untyped columns take the kind of their first non-nil
// cell; transform output columns are homogeneous.
func planColumns(t *table.Table, rules storage.Rules) []loadCol {
	cols := make([]loadCol, 0, len(t.Columns))
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
	return cols
}

// Local kinds for untyped columns resolved from cell values. Offset keeps
// them disjoint from the storage kinds.
const (
	kindInt storage.ColumnKind = iota + 100
	kindFloat
)

func inferKind(t *table.Table, idx int) storage.ColumnKind {
	for _, row := range t.Rows {
		switch row[idx].(type) {
		case nil:
			continue
		case time.Time:
			return storage.KindDate
		case float64:
			return kindFloat
		case int64:
			return kindInt
		default:
			return storage.KindText
		}
	}
	return storage.KindText
}

func pgType(kind storage.ColumnKind) string {
	switch kind {
	case storage.KindDate:
		return "DATE"
	case storage.KindBool:
		return "BOOLEAN"
	case storage.KindSmallInt:
		return "SMALLINT"
	case storage.KindPII:
		return "BYTEA"
	case kindInt:
		return "BIGINT"
	case kindFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// factTable reports whether a table carries a serial surrogate key. The fact
// tables have no natural single-column key (order ids repeat across payment
// legs and item lines), so they get a dense numeric id.
func factTable(name string) bool {
	return name == "sales" || name == "items"
}

func buildCreateSQL(name string, cols []loadCol) string {
	defs := make([]string, 0, len(cols)+1)
	if factTable(name) {
		defs = append(defs, pgIdent("id")+" SERIAL PRIMARY KEY")
	}
	for _, c := range cols {
		defs = append(defs, pgIdent(c.name)+" "+pgType(c.kind))
	}
	return "CREATE TABLE IF NOT EXISTS " + qualified(name) +
		" (" + strings.Join(defs, ", ") + ")"
}

// buildTruncateSQL resets a table for reload. The fact tables also reset
// their id sequences so the surrogate keys stay dense across refreshes.
func buildTruncateSQL(name string) string {
	stmt := "TRUNCATE TABLE " + qualified(name)
	if factTable(name) {
		stmt += " RESTART IDENTITY"
	}
	return stmt + " CASCADE"
}

// buildInsertSQL constructs one multi-row INSERT and its args.
//
// PII columns bind through pgp_sym_encrypt(value, key), consuming two
// placeholders per cell. Nil PII cells stay plain NULL. The function is pure
// so placeholder numbering and the encryption wrapping are unit testable
// without a database.
func buildInsertSQL(name string, cols []loadCol, rows [][]any, key string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(qualified(name))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c.name))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			v := pgValue(row[c.idx], c.kind)
			if c.kind == storage.KindPII && v != nil {
				fmt.Fprintf(&b, "pgp_sym_encrypt($%d, $%d)", p, p+1)
				args = append(args, v, key)
				p += 2
				continue
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, v)
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// pgValue normalizes a cell for binding. Empty strings and NaN become NULL,
// bool columns carried as 0/1 become real booleans.
func pgValue(v any, kind storage.ColumnKind) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return x
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		if kind == storage.KindBool {
			return x != 0
		}
		return x
	case int64:
		if kind == storage.KindBool {
			return x != 0
		}
		return x
	case bool:
		return x
	case time.Time:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func rowsPerInsert(nCols int) int {
	n := insertParamLimit / (nCols * 2)
	if n > maxRowsPerInsert {
		n = maxRowsPerInsert
	}
	if n < 1 {
		n = 1
	}
	return n
}

func qualified(name string) string {
	return pgIdent(analyticsSchema) + "." + pgIdent(name)
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
