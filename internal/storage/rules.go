package storage

// Rules describes how a staging table is typed and trimmed at load time.
// Both backends share one rule set so the two copies of the warehouse stay
// column-compatible; only the physical types differ per engine.
type Rules struct {
	// DateColumns are stored as DATE.
	DateColumns []string
	// BoolColumns arrive as 0/1 cells and become the engine's boolean type.
	BoolColumns []string
	// SmallIntColumns are low-cardinality counters narrowed from floats.
	SmallIntColumns []string
	// DropColumns are staging-only helpers never loaded into a sink.
	DropColumns []string
	// PIIColumns hold contact details and must never be stored in the clear.
	PIIColumns []string
}

// TableRules keys load rules by staging table name.
var TableRules = map[string]Rules{
	"sales": {
		DateColumns: []string{
			"Placed_Date", "Earned_Date", "OrderCohortMonth", "CohortMonth",
			"Ready By", "Cleaned", "Collected", "Pickup Date", "Payment Date",
			"Delivery_Date",
		},
		BoolColumns:     []string{"Paid", "Is_Earned", "HasDelivery", "HasPickup", "IsSubscriptionService"},
		SmallIntColumns: []string{"MonthsSinceCohort", "Route #", "Processing_Days", "TimeInStore_Days", "DaysToPayment"},
		DropColumns:     []string{"Delivery"},
	},
	"items": {
		DateColumns: []string{"ItemDate", "ItemCohortMonth"},
		BoolColumns: []string{"Express", "IsBusinessAccount"},
	},
	"customers": {
		DateColumns: []string{"SignedUp_Date", "CohortMonth"},
		BoolColumns: []string{"IsBusinessAccount"},
		PIIColumns:  []string{"Phone", "Email"},
	},
	"customer_quality": {
		DateColumns: []string{"OrderCohortMonth"},
		BoolColumns: []string{"Is_Multi_Service"},
	},
	"dim_period": {
		DateColumns: []string{"Date", "MonthStart", "QuarterStart"},
		BoolColumns: []string{
			"IsFirstDayOfISOWeek", "IsLastDayOfISOWeek",
			"IsFirstDayOfMonth", "IsLastDayOfMonth", "IsWeekend", "IsWeekday",
			"IsCurrentMonth", "IsCurrentQuarter", "IsCurrentYear", "IsCurrentISOWeek",
		},
		DropColumns: []string{
			"QuarterSortOrder", "MonthSortOrder", "ISOWeekday",
			"FiscalYear", "FiscalQuarter", "DayOfWeekSortOrder",
		},
	},
}

// RulesFor returns the load rules for a table, zero rules when unknown.
func RulesFor(name string) Rules {
	return TableRules[name]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ColumnKind classifies a column under a table's rules.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindDate
	KindBool
	KindSmallInt
	KindDropped
	KindPII
)

// Classify returns how a column is handled at load time.
func (r Rules) Classify(column string) ColumnKind {
	switch {
	case contains(r.DropColumns, column):
		return KindDropped
	case contains(r.PIIColumns, column):
		return KindPII
	case contains(r.DateColumns, column):
		return KindDate
	case contains(r.BoolColumns, column):
		return KindBool
	case contains(r.SmallIntColumns, column):
		return KindSmallInt
	default:
		return KindText
	}
}
