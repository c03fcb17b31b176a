package transform

import (
	"log"
	"time"

	"moonwalketl/internal/canonical"
	"moonwalketl/internal/table"
)

// salesColumns is the output schema of the unified sales ledger.
var salesColumns = []string{
	"Source", "Transaction_Type", "Payment_Type_Std", "Collections", "Paid",
	"Store_Std", "CustomerID_Std", "OrderID_Std",
	"Placed_Date", "Earned_Date", "OrderCohortMonth", "CohortMonth", "MonthsSinceCohort",
	"Total_Num", "Is_Earned", "Ready By", "Cleaned", "Collected", "Pickup Date", "Payment Date",
	"Delivery_Date", "Pieces", "Delivery", "HasDelivery", "HasPickup",
	"Route #", "Route_Category", "IsSubscriptionService",
	"Processing_Days", "TimeInStore_Days", "DaysToPayment",
}

// salesRow carries one transaction through the standardization passes.
type salesRow struct {
	source  string
	txnType string

	rawOrderID    any
	rawCustomerID any
	customerName  any
	storeID       any
	storeName     any
	paymentType   any

	placed, readyBy, cleaned, collected, pickup, payment any

	paid     int64
	pieces   int64
	delivery int64
	totalNum float64

	// invoice rows record their full amount here; order rows leave it nil
	collectionsInv any

	paymentTypeStd string
	collections    float64
	placedDate     any
	earnedDate     any
	cohortMonth    any
	orderCohort    any
	storeStd       any
	customerIDStd  any
	orderIDStd     any
	route          float64
	routeCategory  string
	months         any
	deliveryDate   any
	isEarned       int64
	hasDelivery    int64
	hasPickup      int64
	isSubscription int64
	processing     any
	inStore        any
	toPayment      any
}

// SalesInput bundles the tables the sales transform consumes; the raw
// CleanCloud extracts plus the already-merged customer table.
type SalesInput struct {
	Legacy      *table.Table
	Orders      *table.Table
	Invoices    *table.Table
	CCCustomers *table.Table
	Customers   *table.Table
}

// Sales builds the unified transaction ledger: legacy register orders,
// CleanCloud orders and invoice rows (subscription payments and receivable
// settlements), standardized to one schema and enriched with cohort, route,
// subscription and timing fields.
func Sales(in SalesInput) (*table.Table, error) {
	business := BusinessAccounts(in.CCCustomers)
	names := NameLookup(in.CCCustomers)
	cohorts, routes := CustomerLookups(in.Customers)
	windows := subscriptionWindows(in.Invoices, names)

	rows := loadLegacyOrders(in.Legacy)
	rows = append(rows, loadOrders(in.Orders)...)
	rows = append(rows, loadInvoices(in.Invoices)...)
	log.Printf("[OK] sales: %d combined transaction rows", len(rows))

	for _, r := range rows {
		r.paymentTypeStd = canonical.Payment(r.paymentType)

		r.placedDate = r.placed
		if r.source != canonical.SystemCurrent {
			if t, ok := cellTime(r.cleaned); ok {
				r.earnedDate = t
			} else {
				r.earnedDate = r.placedDate
			}
		} else {
			r.earnedDate = timeOrNil(r.cleaned)
		}
		if t, ok := cellTime(r.earnedDate); ok {
			r.orderCohort = canonical.MonthStart(t)
			r.isEarned = 1
		}

		// Collections: invoices carry their settled amount, unpaid and
		// receivable orders collect nothing yet.
		switch {
		case r.collectionsInv != nil:
			r.collections = floatOrZero(r.collectionsInv)
		case r.paid == 0:
			r.collections = 0
		case r.paymentTypeStd == canonical.PayReceivable:
			r.collections = 0
		default:
			r.collections = r.totalNum
		}

		r.storeStd = canonical.Store(r.storeID, r.storeName, r.source == canonical.SystemLegacy)
	}

	// Rows without a recognized store are out before order-ID numbering so
	// the generated sequence numbers stay stable.
	stored := rows[:0]
	var noStore int
	for _, r := range rows {
		if r.storeStd == nil {
			noStore++
			continue
		}
		stored = append(stored, r)
	}
	if noStore > 0 {
		log.Printf("[WARN] sales: %d rows with unrecognized store removed", noStore)
	}

	for i, r := range stored {
		r.customerIDStd = standardizeSalesCustomer(r)
		r.orderIDStd = canonical.StandardizeOrderID(r.rawOrderID, r.txnType, r.storeStd, i+1)

		// Subscriptions and invoice payments identify customers by name only.
		if r.txnType != canonical.TxnOrder {
			if name, ok := cellString(r.customerName); ok {
				if cid, found := names[canonical.MatchKey(name)]; found {
					r.customerIDStd = cid
				}
			}
		}
	}

	kept := stored[:0]
	var dropped, b2b int
	for _, r := range stored {
		if r.customerIDStd == nil || r.orderIDStd == nil {
			dropped++
			continue
		}
		cid := r.customerIDStd.(string)
		if _, ok := business[cid]; ok {
			b2b++
			continue
		}
		kept = append(kept, r)
	}
	log.Printf("[OK] sales: kept %d rows (%d unidentifiable, %d business removed)", len(kept), dropped, b2b)

	for _, r := range kept {
		cid := r.customerIDStd.(string)
		if t, ok := cohorts[cid]; ok {
			r.cohortMonth = t
		}
		r.route = routes[cid]
		r.routeCategory = canonical.RouteCategory(r.route)

		if r.delivery == 1 {
			r.hasDelivery = 1
			r.deliveryDate = timeOrNil(r.collected)
		}
		if _, ok := cellTime(r.pickup); ok {
			r.hasPickup = 1
		}

		if oc, ok := cellTime(r.orderCohort); ok {
			if cm, cok := cellTime(r.cohortMonth); cok {
				r.months = canonical.MonthsSinceCohort(oc, cm)
			}
		}

		if r.txnType == canonical.TxnOrder {
			if t, ok := cellTime(r.earnedDate); ok && windows.Covered(cid, t) {
				r.isSubscription = 1
			}
		}

		placed, hasPlaced := cellTime(r.placedDate)
		cleaned, hasCleaned := cellTime(r.cleaned)
		collected, hasCollected := cellTime(r.collected)
		payment, hasPayment := cellTime(r.payment)
		if r.txnType == canonical.TxnOrder {
			if hasPlaced && hasCleaned {
				r.processing = canonical.DayDiff(placed, cleaned)
			}
			if hasCleaned && hasCollected {
				r.inStore = canonical.DayDiff(cleaned, collected)
			}
		}
		if hasPlaced && hasPayment {
			r.toPayment = canonical.DayDiff(placed, payment)
		}
	}

	out := table.New("sales", salesColumns...)
	for _, r := range kept {
		out.Rows = append(out.Rows, []any{
			r.source, r.txnType, r.paymentTypeStd, r.collections, r.paid,
			r.storeStd, r.customerIDStd, r.orderIDStd,
			r.placedDate, r.earnedDate, r.orderCohort, r.cohortMonth, r.months,
			r.totalNum, r.isEarned, timeOrNil(r.readyBy), timeOrNil(r.cleaned),
			timeOrNil(r.collected), timeOrNil(r.pickup), timeOrNil(r.payment),
			r.deliveryDate, r.pieces, r.delivery, r.hasDelivery, r.hasPickup,
			r.route, r.routeCategory, r.isSubscription,
			r.processing, r.inStore, r.toPayment,
		})
	}
	if err := out.SortBy("OrderCohortMonth", "CustomerID_Std", "OrderID_Std"); err != nil {
		return nil, err
	}
	return out, nil
}

func standardizeSalesCustomer(r *salesRow) any {
	src := canonical.SourceCurrent
	if r.source == canonical.SystemLegacy {
		src = canonical.SourceLegacy
	}
	return canonical.StandardizeCustomerID(r.rawCustomerID, src)
}

// subscriptionWindows builds merged validity periods from invoice rows whose
// reference marks them as subscription payments.
func subscriptionWindows(invoices *table.Table, names map[string]string) canonical.SubscriptionWindows {
	refs := column(invoices, "Reference")
	customers := column(invoices, "Customer")
	payDates := parseDateColumn("sales", invoices, "Payment Date")

	payments := make(map[string][]time.Time)
	for i := range invoices.Rows {
		if !isSubscriptionRef(refs[i]) {
			continue
		}
		paid, ok := cellTime(payDates[i])
		if !ok {
			continue
		}
		name, ok := cellString(customers[i])
		if !ok {
			continue
		}
		cid, found := names[canonical.MatchKey(name)]
		if !found {
			continue
		}
		payments[cid] = append(payments[cid], paid)
	}
	return canonical.BuildSubscriptionWindows(payments)
}

func isSubscriptionRef(v any) bool {
	ref, ok := cellString(v)
	if !ok {
		return false
	}
	return hasFoldedPrefix(ref, "SUBSCRIPTION")
}

func loadLegacyOrders(t *table.Table) []*salesRow {
	return loadOrderRows(t, canonical.SystemLegacy)
}

func loadOrders(t *table.Table) []*salesRow {
	return loadOrderRows(t, canonical.SystemCurrent)
}

func loadOrderRows(t *table.Table, source string) []*salesRow {
	orderIDs := column(t, "Order ID")
	customerIDs := column(t, "Customer ID")
	totals := column(t, "Total")
	storeIDs := column(t, "Store ID")
	storeNames := column(t, "Store Name")
	paymentTypes := column(t, "Payment Type")
	paidCol := column(t, "Paid")
	pieces := column(t, "Pieces")
	delivery := column(t, "Delivery")

	placed := parseDateColumn("sales", t, "Placed")
	readyBy := parseDateColumn("sales", t, "Ready By")
	cleaned := parseDateColumn("sales", t, "Cleaned")
	collected := parseDateColumn("sales", t, "Collected")
	pickup := parseDateColumn("sales", t, "Pickup Date")
	payment := parseDateColumn("sales", t, "Payment Date")

	rows := make([]*salesRow, 0, len(t.Rows))
	for i := range t.Rows {
		rows = append(rows, &salesRow{
			source:        source,
			txnType:       canonical.TxnOrder,
			rawOrderID:    orderIDs[i],
			rawCustomerID: customerIDs[i],
			storeID:       storeIDs[i],
			storeName:     storeNames[i],
			paymentType:   paymentTypes[i],
			placed:        placed[i],
			readyBy:       readyBy[i],
			cleaned:       cleaned[i],
			collected:     collected[i],
			pickup:        pickup[i],
			payment:       payment[i],
			paid:          intOrZero(paidCol[i]),
			pieces:        intOrZero(pieces[i]),
			delivery:      intOrZero(delivery[i]),
			totalNum:      floatOrZero(totals[i]),
		})
	}
	return rows
}

// loadInvoices turns invoice rows into ledger rows. Subscription references
// become Subscription revenue; everything else is an invoice payment
// settling previously-earned receivable orders, so its amount counts toward
// collections only.
func loadInvoices(t *table.Table) []*salesRow {
	refs := column(t, "Reference")
	customers := column(t, "Customer")
	amounts := column(t, "Amount")
	storeIDs := column(t, "Store ID")
	storeNames := column(t, "Store Name")
	payDates := parseDateColumn("sales", t, "Payment Date")

	method := column(t, "Payment Method")
	if t.ColumnIndex("Payment Method") < 0 {
		method = column(t, "Payment Type")
	}

	var rows []*salesRow
	for i := range t.Rows {
		isSub := isSubscriptionRef(refs[i])
		paid, hasDate := cellTime(payDates[i])
		if !hasDate && !isSub {
			continue
		}

		r := &salesRow{
			source:         canonical.SystemCurrent,
			txnType:        canonical.TxnInvoicePayment,
			customerName:   customers[i],
			storeID:        storeIDs[i],
			storeName:      storeNames[i],
			paymentType:    method[i],
			paid:           1,
			collectionsInv: floatOrZero(amounts[i]),
		}
		if isSub {
			r.txnType = canonical.TxnSubscription
			r.totalNum = floatOrZero(amounts[i])
		}
		if hasDate {
			r.placed = paid
			r.cleaned = paid
			r.collected = paid
			r.payment = paid
		}
		rows = append(rows, r)
	}
	return rows
}
