package transform

import (
	"log"
	"time"

	"moonwalketl/internal/canonical"
	"moonwalketl/internal/table"
)

// qualityColumns is the output schema of the customer-quality rollup.
var qualityColumns = []string{
	"CustomerID_Std", "OrderCohortMonth",
	"Order_Revenue", "Subscription_Revenue", "Monthly_Revenue",
	"Monthly_Items", "Services_Used_10pct", "Is_Multi_Service",
}

// serviceShareThreshold is the minimum share of a month's revenue a service
// must contribute to count toward service diversity.
const serviceShareThreshold = 0.10

type custMonth struct {
	customer string
	month    time.Time
}

type monthlyAgg struct {
	revenue      float64
	orderRevenue float64
	subRevenue   float64
	isSubscriber bool
}

// CustomerQuality rolls earned sales and consumer items up to one row per
// customer-month: revenue split by transaction type, item volume, service
// diversity and the multi-service flag.
//
// Months are keyed by the item date where line items exist; legacy orders
// without items fall back to the order's earned month. Re-keying keeps the
// revenue and item columns aligned for orders placed near month boundaries.
func CustomerQuality(sales, items *table.Table) (*table.Table, error) {
	earned := sales.Filter(func(row []any) bool {
		return intOrZero(row[sales.ColumnIndex("Is_Earned")]) == 1
	})
	consumer := items.Filter(func(row []any) bool {
		return intOrZero(row[items.ColumnIndex("IsBusinessAccount")]) == 0
	})
	log.Printf("[OK] quality: %d earned sales rows, %d consumer item rows", len(earned.Rows), len(consumer.Rows))

	// Item month per order, first occurrence winning.
	orderMonth := make(map[string]time.Time)
	itemOrderIDs := column(consumer, "OrderID_Std")
	itemMonths := column(consumer, "ItemCohortMonth")
	for i := range consumer.Rows {
		oid, ok := cellString(itemOrderIDs[i])
		if !ok {
			continue
		}
		if m, mok := cellTime(itemMonths[i]); mok {
			if _, seen := orderMonth[oid]; !seen {
				orderMonth[oid] = m
			}
		}
	}

	// Sales re-keyed by item month, falling back to the earned month.
	salesCustomers := column(earned, "CustomerID_Std")
	salesMonths := column(earned, "OrderCohortMonth")
	salesOrders := column(earned, "OrderID_Std")
	salesTotals := column(earned, "Total_Num")
	salesTxn := column(earned, "Transaction_Type")
	salesSubSvc := column(earned, "IsSubscriptionService")

	byMonth := make(map[custMonth]*monthlyAgg)
	var keys []custMonth
	for i := range earned.Rows {
		cid, ok := cellString(salesCustomers[i])
		if !ok {
			continue
		}
		month, hasMonth := cellTime(salesMonths[i])
		if oid, ook := cellString(salesOrders[i]); ook {
			if m, mok := orderMonth[oid]; mok {
				month, hasMonth = m, true
			}
		}
		if !hasMonth {
			continue
		}

		key := custMonth{customer: cid, month: month}
		agg, ok := byMonth[key]
		if !ok {
			agg = &monthlyAgg{}
			byMonth[key] = agg
			keys = append(keys, key)
		}

		total := floatOrZero(salesTotals[i])
		agg.revenue += total
		txn, _ := cellString(salesTxn[i])
		switch txn {
		case canonical.TxnOrder:
			agg.orderRevenue += total
		case canonical.TxnSubscription:
			agg.subRevenue += total
			if total > 0 {
				agg.isSubscriber = true
			}
		}
		if floatOrZero(salesSubSvc[i]) > 0 {
			agg.isSubscriber = true
		}
	}

	// Item volume per customer-month.
	itemCustomers := column(consumer, "CustomerID_Std")
	itemQuantities := column(consumer, "Quantity")
	itemTotals := column(consumer, "Total")
	itemServices := column(consumer, "Service_Type")

	monthlyItems := make(map[custMonth]int64)
	serviceRevenue := make(map[custMonth]map[string]float64)
	for i := range consumer.Rows {
		cid, ok := cellString(itemCustomers[i])
		if !ok {
			continue
		}
		month, mok := cellTime(itemMonths[i])
		if !mok {
			continue
		}
		key := custMonth{customer: cid, month: month}
		monthlyItems[key] += intOrZero(itemQuantities[i])

		svc, _ := cellString(itemServices[i])
		if serviceRevenue[key] == nil {
			serviceRevenue[key] = make(map[string]float64)
		}
		serviceRevenue[key][svc] += floatOrZero(itemTotals[i])
	}

	out := table.New("customer_quality", qualityColumns...)
	for _, key := range keys {
		agg := byMonth[key]

		services := int64(0)
		if agg.revenue > 0 {
			for _, rev := range serviceRevenue[key] {
				if rev/agg.revenue >= serviceShareThreshold {
					services++
				}
			}
		}
		itemCount := monthlyItems[key]
		if services == 0 && itemCount > 0 {
			services = 1
		}

		multi := int64(0)
		if services >= 2 || agg.isSubscriber {
			multi = 1
		}

		out.Rows = append(out.Rows, []any{
			key.customer, key.month,
			agg.orderRevenue, agg.subRevenue, agg.revenue,
			itemCount, services, multi,
		})
	}

	if err := out.SortBy("OrderCohortMonth", "CustomerID_Std"); err != nil {
		return nil, err
	}
	log.Printf("[OK] quality: %d customer-month rows", len(out.Rows))
	return out, nil
}
