package transform

import (
	"strings"
	"testing"
	"time"

	"moonwalketl/internal/table"
)

func ccOrdersFixture(t *testing.T) *table.Table {
	return makeTable(t, "raw_orders",
		[]string{"Order ID", "Customer ID", "Placed", "Total", "Store ID", "Store Name",
			"Ready By", "Cleaned", "Collected", "Pickup Date", "Payment Date", "Payment Type", "Paid", "Pieces", "Delivery"},
		[]any{"123", "101", "2025-01-10", "100", "36319", "Moon Walk AD",
			nil, "2025-01-12", "2025-01-14", nil, "2025-01-14", "Stripe", "1", "3", "1"},
		[]any{"124", "102", "2025-01-11", "500", "36319", "Moon Walk AD",
			nil, "2025-01-13", nil, nil, nil, "Del Account", "0", "10", "0"},
		[]any{"125", "101", "2025-02-02", "40", "36319", "Moon Walk AD",
			nil, nil, nil, nil, nil, "Cash", "0", "1", "0"},
	)
}

func invoicesFixture(t *testing.T) *table.Table {
	return makeTable(t, "raw_invoices",
		[]string{"Reference", "Customer", "Amount", "Payment Date", "Store ID", "Payment Method"},
		[]any{"Subscription Jan", "Fatima Al Mansoori", "250", "2025-01-05", "36319", "Stripe"},
		[]any{"INV-55", "Fatima Al Mansoori", "80", "2025-01-20", "36319", "Cash"},
		[]any{"INV-99", "Unknown Person", "10", nil, "36319", "Cash"},
	)
}

func salesFixture(t *testing.T) *table.Table {
	t.Helper()
	cc := ccCustomersFixture(t)
	legacy := legacyOrdersFixture(t)
	customers, err := Customers(cc, legacy)
	if err != nil {
		t.Fatalf("Customers() err=%v", err)
	}
	sales, err := Sales(SalesInput{
		Legacy:      legacy,
		Orders:      ccOrdersFixture(t),
		Invoices:    invoicesFixture(t),
		CCCustomers: cc,
		Customers:   customers,
	})
	if err != nil {
		t.Fatalf("Sales() err=%v", err)
	}
	return sales
}

func salesRowByOrder(t *testing.T, tbl *table.Table, orderID string) []any {
	t.Helper()
	idx := tbl.ColumnIndex("OrderID_Std")
	for _, row := range tbl.Rows {
		if row[idx] == orderID {
			return row
		}
	}
	t.Fatalf("no sales row with OrderID_Std=%q", orderID)
	return nil
}

func TestSalesLedger(t *testing.T) {
	sales := salesFixture(t)

	// 3 legacy + 2 CC orders (business 124 removed) + subscription + invoice
	// payment (the dateless non-subscription invoice is dropped).
	if len(sales.Rows) != 7 {
		t.Fatalf("rows=%d, want 7", len(sales.Rows))
	}

	order := salesRowByOrder(t, sales, "M-00123")
	col := func(name string) any { return order[sales.ColumnIndex(name)] }

	if col("Source") != "CC_2025" || col("Transaction_Type") != "Order" {
		t.Errorf("Source/Transaction_Type=%v/%v", col("Source"), col("Transaction_Type"))
	}
	if col("Payment_Type_Std") != "Stripe" {
		t.Errorf("Payment_Type_Std=%v", col("Payment_Type_Std"))
	}
	if col("Earned_Date") != time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Earned_Date=%v", col("Earned_Date"))
	}
	if col("OrderCohortMonth") != time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("OrderCohortMonth=%v", col("OrderCohortMonth"))
	}
	if col("Collections") != 100.0 {
		t.Errorf("Collections=%v, want full total for paid card order", col("Collections"))
	}
	if col("MonthsSinceCohort") != int64(10) {
		t.Errorf("MonthsSinceCohort=%v, want 10 (2024-03 cohort)", col("MonthsSinceCohort"))
	}
	if col("HasDelivery") != int64(1) || col("Delivery_Date") != time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC) {
		t.Errorf("delivery flags=%v/%v", col("HasDelivery"), col("Delivery_Date"))
	}
	if col("Processing_Days") != int64(2) || col("TimeInStore_Days") != int64(2) || col("DaysToPayment") != int64(4) {
		t.Errorf("time metrics=%v/%v/%v", col("Processing_Days"), col("TimeInStore_Days"), col("DaysToPayment"))
	}
	if col("IsSubscriptionService") != int64(1) {
		t.Errorf("order during active subscription not flagged")
	}
}

func TestSalesUnearnedPreserved(t *testing.T) {
	sales := salesFixture(t)

	// Order 125 has no cleaned date: kept in the ledger with Is_Earned=0.
	row := salesRowByOrder(t, sales, "M-00125")
	if row[sales.ColumnIndex("Is_Earned")] != int64(0) {
		t.Errorf("Is_Earned=%v, want 0", row[sales.ColumnIndex("Is_Earned")])
	}
	if row[sales.ColumnIndex("Earned_Date")] != nil {
		t.Errorf("Earned_Date=%v, want nil", row[sales.ColumnIndex("Earned_Date")])
	}
	if row[sales.ColumnIndex("Collections")] != 0.0 {
		t.Errorf("unpaid order Collections=%v, want 0", row[sales.ColumnIndex("Collections")])
	}
}

func TestSalesBusinessFilter(t *testing.T) {
	sales := salesFixture(t)
	idx := sales.ColumnIndex("CustomerID_Std")
	for _, row := range sales.Rows {
		if row[idx] == "CC-0102" {
			t.Fatalf("business-account transaction kept in ledger")
		}
	}
}

func TestSalesLegacyRows(t *testing.T) {
	sales := salesFixture(t)

	row := salesRowByOrder(t, sales, "R-1001")
	if row[sales.ColumnIndex("Source")] != "Legacy" {
		t.Errorf("Source=%v", row[sales.ColumnIndex("Source")])
	}
	if row[sales.ColumnIndex("Store_Std")] != "Moon Walk" {
		t.Errorf("Store_Std=%v, want legacy default store", row[sales.ColumnIndex("Store_Std")])
	}
	// No cleaned date in the archive: the placed date stands in as earned.
	if row[sales.ColumnIndex("Earned_Date")] != time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Earned_Date=%v", row[sales.ColumnIndex("Earned_Date")])
	}
	if row[sales.ColumnIndex("Payment_Type_Std")] != "Cash" {
		t.Errorf("Payment_Type_Std=%v", row[sales.ColumnIndex("Payment_Type_Std")])
	}
}

func TestSalesInvoiceRows(t *testing.T) {
	sales := salesFixture(t)

	txnIdx := sales.ColumnIndex("Transaction_Type")
	var sub, inv []any
	for _, row := range sales.Rows {
		switch row[txnIdx] {
		case "Subscription":
			sub = row
		case "Invoice Payment":
			inv = row
		}
	}
	if sub == nil || inv == nil {
		t.Fatalf("missing subscription or invoice payment row")
	}

	// Subscription revenue is earned; its customer resolved by name.
	if sub[sales.ColumnIndex("CustomerID_Std")] != "CC-0101" {
		t.Errorf("subscription customer=%v", sub[sales.ColumnIndex("CustomerID_Std")])
	}
	if sub[sales.ColumnIndex("Total_Num")] != 250.0 {
		t.Errorf("subscription Total_Num=%v", sub[sales.ColumnIndex("Total_Num")])
	}
	if oid, _ := sub[sales.ColumnIndex("OrderID_Std")].(string); !strings.HasPrefix(oid, "S-") {
		t.Errorf("subscription OrderID_Std=%v", sub[sales.ColumnIndex("OrderID_Std")])
	}

	// Invoice payments settle receivables: zero revenue, full collections.
	if inv[sales.ColumnIndex("Total_Num")] != 0.0 {
		t.Errorf("invoice payment Total_Num=%v, want 0", inv[sales.ColumnIndex("Total_Num")])
	}
	if inv[sales.ColumnIndex("Collections")] != 80.0 {
		t.Errorf("invoice payment Collections=%v, want 80", inv[sales.ColumnIndex("Collections")])
	}
	if oid, _ := inv[sales.ColumnIndex("OrderID_Std")].(string); !strings.HasPrefix(oid, "I-") {
		t.Errorf("invoice OrderID_Std=%v", inv[sales.ColumnIndex("OrderID_Std")])
	}
}
