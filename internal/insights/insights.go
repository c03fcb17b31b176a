// Package insights derives rules-based narrative findings from the warehouse
// tables. Each rule compares the most recent completed period against a
// reference (prior month, same month last year, prior week, trailing average)
// and emits a headline with a sentiment. The rows load into both warehouses
// like any other table, so dashboards read one insights table regardless of
// backend.
package insights

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"moonwalketl/internal/canonical"
	"moonwalketl/internal/table"
)

// Sentiment values carried on every insight row.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// Categories group rules for dashboard filtering.
const (
	CategoryRevenue    = "revenue"
	CategoryCustomers  = "customers"
	CategoryOperations = "operations"
	CategoryPayments   = "payments"
)

// Row is one generated insight.
type Row struct {
	Period      string
	RuleID      string
	Category    string
	Headline    string
	Detail      string
	Sentiment   string
	Granularity string
}

// Input carries the transform outputs the rules read. Today anchors the
// period selection; the most recent completed month and ISO week are always
// strictly before it.
type Input struct {
	Sales   *table.Table
	Items   *table.Table
	Quality *table.Table
	Today   time.Time
}

// Generate runs every monthly and weekly rule. Rules that lack data for
// their period are skipped rather than emitted empty.
func Generate(in Input) []Row {
	g := newGenerator(in)
	rows := g.monthly()
	return append(rows, g.weekly()...)
}

// Columns of the insights warehouse table.
var Columns = []string{
	"period", "rule_id", "category", "headline", "detail", "sentiment", "granularity",
}

// Table converts generated rows into the warehouse insights table.
func Table(rows []Row) *table.Table {
	t := table.New("insights", Columns...)
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.Period, r.RuleID, r.Category, r.Headline, r.Detail, r.Sentiment, r.Granularity,
		})
	}
	return t
}

// salesFact is one sales row projected onto the fields the rules read.
type salesFact struct {
	month       string
	monthDate   time.Time
	week        string
	earned      bool
	isEarned    bool
	customer    string
	txnType     string
	total       float64
	collections float64

	monthsSinceCohort int64
	hasCohortAge      bool

	isSubscription bool
	hasDelivery    bool
	hasPickup      bool
	route          string
	payType        string
	paid           bool
	source         string

	daysToPayment  float64
	hasDaysToPay   bool
	processingDays float64
	hasProcessing  bool
}

type itemFact struct {
	month    string
	week     string
	category string
	service  string
	quantity int64
	express  bool
}

type qualityFact struct {
	month    string
	customer string
	multi    bool
}

type generator struct {
	sales   []salesFact
	items   []itemFact
	quality []qualityFact

	curMonth   string
	priorMonth string
	yoyMonth   string

	curWeek   string
	priorWeek string
	thisWeek  string
}

func newGenerator(in Input) *generator {
	g := &generator{}

	cur := time.Date(in.Today.Year(), in.Today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	g.curMonth = monthLabel(cur)
	g.priorMonth = monthLabel(cur.AddDate(0, -1, 0))
	g.yoyMonth = monthLabel(cur.AddDate(-1, 0, 0))

	weekStart := isoWeekStart(in.Today)
	g.thisWeek = weekLabel(in.Today)
	g.curWeek = weekLabel(weekStart.AddDate(0, 0, -1))
	g.priorWeek = weekLabel(weekStart.AddDate(0, 0, -8))

	g.sales = salesFacts(in.Sales)
	g.items = itemFacts(in.Items)
	g.quality = qualityFacts(in.Quality)
	return g
}

func salesFacts(t *table.Table) []salesFact {
	if t == nil {
		return nil
	}
	var (
		iMonth   = t.ColumnIndex("OrderCohortMonth")
		iEarned  = t.ColumnIndex("Earned_Date")
		iIsEarn  = t.ColumnIndex("Is_Earned")
		iCust    = t.ColumnIndex("CustomerID_Std")
		iTxn     = t.ColumnIndex("Transaction_Type")
		iTotal   = t.ColumnIndex("Total_Num")
		iColl    = t.ColumnIndex("Collections")
		iMSC     = t.ColumnIndex("MonthsSinceCohort")
		iSub     = t.ColumnIndex("IsSubscriptionService")
		iDel     = t.ColumnIndex("HasDelivery")
		iPick    = t.ColumnIndex("HasPickup")
		iRoute   = t.ColumnIndex("Route_Category")
		iPay     = t.ColumnIndex("Payment_Type_Std")
		iPaid    = t.ColumnIndex("Paid")
		iSource  = t.ColumnIndex("Source")
		iDaysPay = t.ColumnIndex("DaysToPayment")
		iProc    = t.ColumnIndex("Processing_Days")
	)
	out := make([]salesFact, 0, len(t.Rows))
	for _, row := range t.Rows {
		f := salesFact{
			customer:    cellStr(row, iCust),
			txnType:     cellStr(row, iTxn),
			total:       cellFloat(row, iTotal),
			collections: cellFloat(row, iColl),

			isEarned:       cellInt(row, iIsEarn) != 0,
			isSubscription: cellInt(row, iSub) != 0,
			hasDelivery:    cellInt(row, iDel) != 0,
			hasPickup:      cellInt(row, iPick) != 0,
			paid:           cellInt(row, iPaid) != 0,

			route:   cellStr(row, iRoute),
			payType: cellStr(row, iPay),
			source:  cellStr(row, iSource),
		}
		if d, ok := cellTime(row, iMonth); ok {
			f.monthDate = d
			f.month = monthLabel(d)
		}
		if d, ok := cellTime(row, iEarned); ok {
			f.earned = true
			f.week = weekLabel(d)
		}
		if v, ok := cellIntOK(row, iMSC); ok {
			f.monthsSinceCohort = v
			f.hasCohortAge = true
		}
		if v, ok := cellFloatOK(row, iDaysPay); ok {
			f.daysToPayment = v
			f.hasDaysToPay = true
		}
		if v, ok := cellFloatOK(row, iProc); ok {
			f.processingDays = v
			f.hasProcessing = true
		}
		out = append(out, f)
	}
	return out
}

func itemFacts(t *table.Table) []itemFact {
	if t == nil {
		return nil
	}
	var (
		iDate = t.ColumnIndex("ItemDate")
		iCat  = t.ColumnIndex("Item_Category")
		iSvc  = t.ColumnIndex("Service_Type")
		iQty  = t.ColumnIndex("Quantity")
		iExp  = t.ColumnIndex("Express")
	)
	out := make([]itemFact, 0, len(t.Rows))
	for _, row := range t.Rows {
		f := itemFact{
			category: cellStr(row, iCat),
			service:  cellStr(row, iSvc),
			quantity: cellInt(row, iQty),
			express:  cellInt(row, iExp) != 0,
		}
		if d, ok := cellTime(row, iDate); ok {
			f.month = monthLabel(d)
			f.week = weekLabel(d)
		}
		out = append(out, f)
	}
	return out
}

func qualityFacts(t *table.Table) []qualityFact {
	if t == nil {
		return nil
	}
	var (
		iMonth = t.ColumnIndex("OrderCohortMonth")
		iCust  = t.ColumnIndex("CustomerID_Std")
		iMulti = t.ColumnIndex("Is_Multi_Service")
	)
	out := make([]qualityFact, 0, len(t.Rows))
	for _, row := range t.Rows {
		f := qualityFact{
			customer: cellStr(row, iCust),
			multi:    cellInt(row, iMulti) != 0,
		}
		if d, ok := cellTime(row, iMonth); ok {
			f.month = monthLabel(d)
		}
		out = append(out, f)
	}
	return out
}

func monthLabel(t time.Time) string { return t.Format("2006-01") }

func weekLabel(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// isoWeekStart returns the Monday of t's ISO week.
func isoWeekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7
	}
	return d.AddDate(0, 0, 1-wd)
}

// en formats numbers with thousands separators for headlines, the way the
// dashboards render amounts.
var en = message.NewPrinter(language.English)

func money(v float64) string { return en.Sprintf("Dhs %.0f", v) }
func count(v int64) string   { return en.Sprintf("%d", v) }

func percentile80(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := 0.8 * float64(len(sorted)-1)
	lo := int(pos)
	if lo == len(sorted)-1 {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func cellStr(row []any, idx int) string {
	if idx < 0 || row[idx] == nil {
		return ""
	}
	s, _ := row[idx].(string)
	return s
}

func cellFloat(row []any, idx int) float64 {
	v, _ := cellFloatOK(row, idx)
	return v
}

func cellFloatOK(row []any, idx int) (float64, bool) {
	if idx < 0 || row[idx] == nil {
		return 0, false
	}
	switch x := row[idx].(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func cellInt(row []any, idx int) int64 {
	v, _ := cellIntOK(row, idx)
	return v
}

func cellIntOK(row []any, idx int) (int64, bool) {
	if idx < 0 || row[idx] == nil {
		return 0, false
	}
	switch x := row[idx].(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return int64(f), err == nil
	}
	return 0, false
}

// cellTime accepts both typed cells and the text cells a staged CSV reloads
// as.
func cellTime(row []any, idx int) (time.Time, bool) {
	if idx < 0 || row[idx] == nil {
		return time.Time{}, false
	}
	switch x := row[idx].(type) {
	case time.Time:
		return x, true
	case string:
		return canonical.ParseDate(x)
	}
	return time.Time{}, false
}
