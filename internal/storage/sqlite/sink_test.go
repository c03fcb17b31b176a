package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"moonwalketl/internal/storage"
	"moonwalketl/internal/table"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixtureTables() []*table.Table {
	sales := table.New("sales",
		"Source", "Transaction_Type", "CustomerID_Std", "OrderID_Std",
		"Earned_Date", "OrderCohortMonth", "Total_Num", "Is_Earned",
		"Paid", "Delivery", "IsSubscriptionService")
	sales.Rows = append(sales.Rows,
		[]any{"CC_2025", "Order", "CC-0101", "M-00123", day(2025, 1, 12), day(2025, 1, 1), 100.0, int64(1), int64(1), int64(1), int64(1)},
		[]any{"Legacy", "Order", "MW-0055", "R-1001", day(2023, 2, 15), day(2023, 2, 1), 120.5, int64(1), int64(1), int64(0), int64(0)},
		[]any{"CC_2025", "Order", "CC-0101", "M-00125", nil, nil, 40.0, int64(0), int64(0), int64(0), int64(0)},
	)

	items := table.New("items",
		"CustomerID_Std", "OrderID_Std", "ItemDate", "Quantity", "Total", "Express", "IsBusinessAccount")
	items.Rows = append(items.Rows,
		[]any{"CC-0101", "M-00123", day(2025, 1, 10), int64(2), 60.0, int64(0), int64(0)},
	)

	customers := table.New("customers",
		"CustomerID_Std", "CustomerName", "SignedUp_Date", "IsBusinessAccount", "Phone", "Email")
	customers.Rows = append(customers.Rows,
		[]any{"CC-0101", "Fatima Al Mansoori", day(2024, 3, 15), int64(0), "0501234567", "fatima@example.com"},
	)

	quality := table.New("customer_quality",
		"CustomerID_Std", "OrderCohortMonth", "Monthly_Revenue", "Is_Multi_Service")
	quality.Rows = append(quality.Rows,
		[]any{"CC-0101", day(2025, 1, 1), 350.0, int64(1)},
	)

	period := table.New("dim_period",
		"Date", "YearMonth", "ISOWeekLabel", "ISOWeekday", "IsWeekend")
	period.Rows = append(period.Rows,
		[]any{day(2025, 1, 12), "2025-01", "2025-W02", int64(7), int64(1)},
	)

	return []*table.Table{sales, items, customers, quality, period}
}

func TestLoadRebuildsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moonwalk.db")

	sink, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	defer sink.Close()

	if err := sink.Load(context.Background(), fixtureTables()); err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("live file missing after load: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open rebuilt file: %v", err)
	}
	defer db.Close()

	counts := map[string]int{
		"sales": 3, "items": 1, "customers": 1, "customer_quality": 1, "dim_period": 1,
	}
	for name, want := range counts {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + sqlIdent(name)).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != want {
			t.Errorf("%s rows=%d, want %d", name, n, want)
		}
	}

	// Dates stored as YYYY-MM-DD text. CAST keeps the driver from rehydrating
	// the DATE-declared column into time.Time.
	var earned string
	err = db.QueryRow(`SELECT CAST("Earned_Date" AS TEXT) FROM sales WHERE "OrderID_Std" = 'M-00123'`).Scan(&earned)
	if err != nil {
		t.Fatalf("select earned date: %v", err)
	}
	if earned != "2025-01-12" {
		t.Errorf("Earned_Date=%q, want 2025-01-12", earned)
	}

	// Delivery dropped from the stored schema.
	rows, err := db.Query(`SELECT name FROM pragma_table_info('sales')`)
	if err != nil {
		t.Fatalf("table_info: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			t.Fatalf("scan table_info: %v", err)
		}
		if col == "Delivery" {
			t.Errorf("Delivery column should be dropped")
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("table_info rows: %v", err)
	}

	// order_lookup materialized with its index.
	var flag int
	err = db.QueryRow(`SELECT "IsSubscriptionService" FROM order_lookup WHERE "OrderID_Std" = 'M-00123'`).Scan(&flag)
	if err != nil {
		t.Fatalf("order_lookup: %v", err)
	}
	if flag != 1 {
		t.Errorf("order_lookup flag=%d, want 1", flag)
	}
}

func TestLoadReplacesPreviousBuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moonwalk.db")

	sink, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	defer sink.Close()

	if err := sink.Load(context.Background(), fixtureTables()); err != nil {
		t.Fatalf("first Load() err=%v", err)
	}
	if err := sink.Load(context.Background(), fixtureTables()); err != nil {
		t.Fatalf("second Load() err=%v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open rebuilt file: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sales").Scan(&n); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if n != 3 {
		t.Errorf("sales rows=%d after rebuild, want 3", n)
	}
}

func TestLoadWithoutDimPeriod(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moonwalk.db")

	sink, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	defer sink.Close()

	var tables []*table.Table
	for _, tab := range fixtureTables() {
		if tab.Name != "dim_period" {
			tables = append(tables, tab)
		}
	}
	if err := sink.Load(context.Background(), tables); err != nil {
		t.Fatalf("Load() without dim_period err=%v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open rebuilt file: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_period%'`).Scan(&n); err != nil {
		t.Fatalf("index query: %v", err)
	}
	if n != 0 {
		t.Errorf("dim_period indexes created for a skipped table: %d", n)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_sales_customer'`).Scan(&n); err != nil {
		t.Fatalf("index query: %v", err)
	}
	if n != 1 {
		t.Errorf("sales index missing: %d", n)
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(context.Background(), storage.Config{Kind: "sqlite"}); err == nil {
		t.Fatalf("missing DSN should error")
	}
}
