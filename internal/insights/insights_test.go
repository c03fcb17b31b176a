package insights

import (
	"testing"
	"time"

	"moonwalketl/internal/table"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func makeTable(t *testing.T, name string, columns []string, rows ...[]any) *table.Table {
	t.Helper()
	tb := table.New(name, columns...)
	for _, row := range rows {
		if len(row) != len(columns) {
			t.Fatalf("%s fixture row has %d cells, want %d", name, len(row), len(columns))
		}
		tb.Rows = append(tb.Rows, row)
	}
	return tb
}

var salesCols = []string{
	"Source", "Transaction_Type", "Payment_Type_Std", "Collections", "Paid",
	"CustomerID_Std", "OrderCohortMonth", "Earned_Date", "Is_Earned", "Total_Num",
	"MonthsSinceCohort", "IsSubscriptionService", "HasDelivery", "HasPickup",
	"Route_Category", "DaysToPayment", "Processing_Days",
}

// fixtureInput anchors Today at 2025-02-10, so the monthly rules read
// January 2025 and the weekly rules read ISO week 2025-W06.
func fixtureInput(t *testing.T) Input {
	t.Helper()

	sales := makeTable(t, "sales", salesCols,
		// January, earned in week W06.
		[]any{"CC_2025", "Order", "Stripe", 100.0, int64(1), "CC-0101", date(2025, 1, 1), date(2025, 2, 5), int64(1), 100.0, int64(1), int64(0), int64(1), int64(0), "Inside Abu Dhabi", int64(3), int64(2)},
		[]any{"CC_2025", "Order", "Cash", 60.0, int64(1), "CC-0102", date(2025, 1, 1), date(2025, 2, 6), int64(1), 60.0, int64(0), int64(0), int64(0), int64(1), "Outside Abu Dhabi", nil, int64(4)},
		[]any{"CC_2025", "Subscription", "Stripe", 40.0, int64(1), "CC-0101", date(2025, 1, 1), date(2025, 2, 5), int64(1), 40.0, int64(1), int64(0), int64(0), int64(0), nil, nil, nil},
		[]any{"CC_2025", "Order", "Receivable", 0.0, int64(0), "CC-0101", date(2025, 1, 1), date(2025, 2, 7), int64(1), 20.0, int64(1), int64(0), int64(0), int64(0), nil, nil, nil},
		// December, earned in week W05.
		[]any{"CC_2025", "Order", "Cash", 50.0, int64(1), "CC-0102", date(2024, 12, 1), date(2025, 1, 30), int64(1), 50.0, int64(0), int64(0), int64(1), int64(0), "Inside Abu Dhabi", int64(5), int64(3)},
		// Same month last year.
		[]any{"CC_2025", "Order", "Cash", 80.0, int64(1), "CC-0101", date(2024, 1, 1), date(2024, 1, 20), int64(1), 80.0, int64(0), int64(0), int64(0), int64(0), nil, nil, nil},
	)

	items := makeTable(t, "items",
		[]string{"ItemDate", "Item_Category", "Service_Type", "Quantity", "Express"},
		[]any{date(2025, 1, 15), "Traditional Wear", "Dry Cleaning", int64(3), int64(1)},
		[]any{date(2025, 1, 16), "Bedding", "Laundry", int64(1), int64(0)},
	)

	quality := makeTable(t, "customer_quality",
		[]string{"CustomerID_Std", "OrderCohortMonth", "Is_Multi_Service"},
		[]any{"CC-0101", date(2025, 1, 1), int64(1)},
		[]any{"CC-0102", date(2025, 1, 1), int64(0)},
	)

	return Input{Sales: sales, Items: items, Quality: quality, Today: date(2025, 2, 10)}
}

func findRule(t *testing.T, rows []Row, ruleID string) Row {
	t.Helper()
	for _, r := range rows {
		if r.RuleID == ruleID {
			return r
		}
	}
	t.Fatalf("rule %s not generated", ruleID)
	return Row{}
}

func TestGenerateMonthlyRules(t *testing.T) {
	rows := Generate(fixtureInput(t))

	cases := []struct {
		ruleID    string
		headline  string
		sentiment string
	}{
		{"REV_MOM", "Revenue +340% vs last month", Positive},
		{"REV_YOY", "Revenue +175% vs same month last year", Positive},
		{"CUST_MOM", "Active customers +100% vs last month", Positive},
		{"NEW_CUST", "1 new customers (50% of active)", Positive},
		{"M1_RETENTION", "M1 retention: 100%", Positive},
		{"REACTIVATIONS", "1 customers reactivated after 3+ month gap", Positive},
		{"SUB_SHARE", "Subscription revenue at 18% of total (+18pp vs last month)", Positive},
		{"MULTI_SERVICE", "50% of customers use multiple services", Positive},
		{"CONCENTRATION", "Top 20% of customers generate 73% of revenue", Neutral},
		{"TOP_CATEGORY", "Top category: Traditional Wear (3 items)", Neutral},
		{"TOP_SERVICE", "Top service: Dry Cleaning (3 items)", Neutral},
		{"EXPRESS_SHARE", "Express orders: 75% of items", Positive},
		{"DELIVERY_RATE", "Delivery rate: 50% (1 deliveries, 1 pickups)", Neutral},
		{"REV_PER_DELIVERY", "Revenue per delivery: Dhs 100", Positive},
		{"GEO_SHIFT", "Inside Abu Dhabi stops: 50% (-50pp vs last month)", Neutral},
		{"DIGITAL_PAYMENT", "Digital payments: 70% of collections", Positive},
		{"COLLECTION_RATE", "Collection rate: 91% of revenue collected", Positive},
		{"AVG_DAYS_PAYMENT", "Avg days to payment: 3.0 days (-2.0 vs last month)", Positive},
		{"OUTSTANDING_PCT", "Outstanding: 9% of revenue (Dhs 20)", Neutral},
		{"PROCESSING_TIME", "Avg processing time: 3.0 days", Positive},
	}
	for _, tc := range cases {
		t.Run(tc.ruleID, func(t *testing.T) {
			r := findRule(t, rows, tc.ruleID)
			if r.Headline != tc.headline {
				t.Errorf("headline=%q, want %q", r.Headline, tc.headline)
			}
			if r.Sentiment != tc.sentiment {
				t.Errorf("sentiment=%q, want %q", r.Sentiment, tc.sentiment)
			}
			if r.Period != "2025-01" {
				t.Errorf("period=%q, want 2025-01", r.Period)
			}
			if r.Granularity != "monthly" {
				t.Errorf("granularity=%q", r.Granularity)
			}
		})
	}
}

func TestGenerateWeeklyRules(t *testing.T) {
	rows := Generate(fixtureInput(t))

	cases := []struct {
		ruleID    string
		headline  string
		sentiment string
	}{
		{"WRev_WOW", "Revenue +340% vs last week", Positive},
		{"WRev_TREND", "Revenue +238% vs 4-week average", Positive},
		{"WCust_WOW", "Active customers +100% vs last week", Positive},
		{"WStops_WOW", "Stops +100% vs last week", Positive},
		{"WProcessing", "Avg processing: 3.0 days", Positive},
		{"WCollection_Rate", "Collection rate: 91% of revenue collected", Positive},
		{"WDelivery_Rate", "Delivery rate: 50% (1 deliveries, 1 pickups)", Neutral},
	}
	for _, tc := range cases {
		t.Run(tc.ruleID, func(t *testing.T) {
			r := findRule(t, rows, tc.ruleID)
			if r.Headline != tc.headline {
				t.Errorf("headline=%q, want %q", r.Headline, tc.headline)
			}
			if r.Sentiment != tc.sentiment {
				t.Errorf("sentiment=%q, want %q", r.Sentiment, tc.sentiment)
			}
			if r.Period != "2025-W06" {
				t.Errorf("period=%q, want 2025-W06", r.Period)
			}
			if r.Granularity != "weekly" {
				t.Errorf("granularity=%q", r.Granularity)
			}
		})
	}

	// No items fell in the compared weeks, so the item rule is skipped.
	for _, r := range rows {
		if r.RuleID == "WItems_WOW" {
			t.Errorf("WItems_WOW should be skipped without weekly item data")
		}
	}
}

func TestGenerateSkipsRulesWithoutData(t *testing.T) {
	in := fixtureInput(t)
	in.Items = nil
	in.Quality = nil
	rows := Generate(in)

	for _, id := range []string{"TOP_CATEGORY", "TOP_SERVICE", "EXPRESS_SHARE", "MULTI_SERVICE"} {
		for _, r := range rows {
			if r.RuleID == id {
				t.Errorf("rule %s should be skipped without its source table", id)
			}
		}
	}
	// Sales-backed rules still fire.
	findRule(t, rows, "REV_MOM")
}

func TestTable(t *testing.T) {
	rows := []Row{
		{"2025-01", "REV_MOM", CategoryRevenue, "h", "d", Positive, "monthly"},
	}
	tb := Table(rows)
	if tb.Name != "insights" {
		t.Fatalf("name=%q", tb.Name)
	}
	if len(tb.Columns) != 7 || tb.Columns[0] != "period" || tb.Columns[6] != "granularity" {
		t.Fatalf("columns=%v", tb.Columns)
	}
	if len(tb.Rows) != 1 || tb.Rows[0][1] != "REV_MOM" {
		t.Fatalf("rows=%v", tb.Rows)
	}
}
