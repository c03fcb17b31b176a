package insights

import (
	"sort"
	"time"

	"moonwalketl/internal/canonical"
)

// monthly runs every monthly rule against the last completed month.
func (g *generator) monthly() []Row {
	var rows []Row
	add := func(ruleID, category, headline, detail, sentiment string) {
		rows = append(rows, Row{
			Period:      g.curMonth,
			RuleID:      ruleID,
			Category:    category,
			Headline:    headline,
			Detail:      detail,
			Sentiment:   sentiment,
			Granularity: "monthly",
		})
	}

	// REV_MOM
	cur, prior := g.monthRevenue(g.curMonth), g.monthRevenue(g.priorMonth)
	if prior > 0 {
		pct := (cur - prior) / prior * 100
		sent := Negative
		if pct > 0 {
			sent = Positive
		}
		add("REV_MOM", CategoryRevenue,
			en.Sprintf("Revenue %+.0f%% vs last month", pct),
			money(cur)+" this month vs "+money(prior)+" last month",
			sent)
	}

	// REV_YOY
	if yoy := g.monthRevenue(g.yoyMonth); yoy > 0 {
		pct := (cur - yoy) / yoy * 100
		add("REV_YOY", CategoryRevenue,
			en.Sprintf("Revenue %+.0f%% vs same month last year", pct),
			money(cur)+" this month vs "+money(yoy)+" in "+g.yoyMonth,
			trend(pct, 2, -2))
	}

	// CUST_MOM
	curCust, priorCust := g.activeCustomers(g.curMonth), g.activeCustomers(g.priorMonth)
	if priorCust > 0 {
		pct := float64(curCust-priorCust) / float64(priorCust) * 100
		sent := Negative
		if pct > 0 {
			sent = Positive
		}
		add("CUST_MOM", CategoryCustomers,
			en.Sprintf("Active customers %+.0f%% vs last month", pct),
			count(curCust)+" active this month vs "+count(priorCust)+" last month",
			sent)
	}

	// NEW_CUST
	newCust := g.customersAtCohortAge(g.curMonth, 0)
	if newCust > 0 && curCust > 0 {
		share := float64(newCust) / float64(curCust) * 100
		sent := Neutral
		if share >= 10 {
			sent = Positive
		}
		add("NEW_CUST", CategoryCustomers,
			en.Sprintf("%d new customers (%.0f%% of active)", newCust, share),
			"First-time customers in "+g.curMonth,
			sent)
	}

	// M1_RETENTION
	returned := g.customersAtCohortAge(g.curMonth, 1)
	priorNew := g.customersAtCohortAge(g.priorMonth, 0)
	if priorNew > 0 {
		ret := float64(returned) / float64(priorNew) * 100
		sent := Neutral
		switch {
		case ret >= 50:
			sent = Positive
		case ret < 30:
			sent = Negative
		}
		add("M1_RETENTION", CategoryCustomers,
			en.Sprintf("M1 retention: %.0f%%", ret),
			count(returned)+" of "+count(priorNew)+" prior new customers returned",
			sent)
	}

	// REACTIVATIONS
	if n := g.reactivations(); n > 0 {
		add("REACTIVATIONS", CategoryCustomers,
			en.Sprintf("%d customers reactivated after 3+ month gap", n),
			"Customers returning after dormancy in "+g.curMonth,
			Positive)
	}

	// SUB_SHARE
	curSub, priorSub := g.subscriptionRevenue(g.curMonth), g.subscriptionRevenue(g.priorMonth)
	priorTotal := g.monthRevenue(g.priorMonth)
	if cur > 0 && priorTotal > 0 {
		sc := curSub / cur * 100
		sp := priorSub / priorTotal * 100
		diff := sc - sp
		add("SUB_SHARE", CategoryRevenue,
			en.Sprintf("Subscription revenue at %.0f%% of total (%+.0fpp vs last month)", sc, diff),
			money(curSub)+" subscription of "+money(cur)+" total revenue",
			trend(diff, 0, -2))
	}

	// MULTI_SERVICE
	multi, totalQ := g.multiServiceCustomers(g.curMonth)
	if totalQ > 0 {
		pct := float64(multi) / float64(totalQ) * 100
		sent := Neutral
		if pct >= 20 {
			sent = Positive
		}
		add("MULTI_SERVICE", CategoryCustomers,
			en.Sprintf("%.0f%% of customers use multiple services", pct),
			count(multi)+" of "+count(totalQ)+" customers in "+g.curMonth,
			sent)
	}

	// CONCENTRATION
	if top, total := g.revenueConcentration(g.curMonth); total > 0 {
		share := top / total * 100
		sent := Neutral
		if share > 85 {
			sent = Negative
		}
		add("CONCENTRATION", CategoryRevenue,
			en.Sprintf("Top 20%% of customers generate %.0f%% of revenue", share),
			money(top)+" of "+money(total)+" total in "+g.curMonth,
			sent)
	}

	// TOP_CATEGORY
	if name, qty, ok := g.topByQuantity(g.curMonth, func(f itemFact) string { return f.category }); ok {
		add("TOP_CATEGORY", CategoryOperations,
			en.Sprintf("Top category: %s (%d items)", name, qty),
			"Highest volume item category in "+g.curMonth,
			Neutral)
	}

	// TOP_SERVICE
	if name, qty, ok := g.topByQuantity(g.curMonth, func(f itemFact) string { return f.service }); ok {
		add("TOP_SERVICE", CategoryOperations,
			en.Sprintf("Top service: %s (%d items)", name, qty),
			"Highest volume service type in "+g.curMonth,
			Neutral)
	}

	// EXPRESS_SHARE
	if express, items := g.expressItems(g.curMonth); items > 0 {
		pct := float64(express) / float64(items) * 100
		sent := Neutral
		if pct >= 20 {
			sent = Positive
		}
		add("EXPRESS_SHARE", CategoryOperations,
			en.Sprintf("Express orders: %.0f%% of items", pct),
			count(express)+" express of "+count(items)+" total items in "+g.curMonth,
			sent)
	}

	// DELIVERY_RATE
	deliveries, pickups := g.monthStops(g.curMonth)
	if deliveries+pickups > 0 {
		rate := float64(deliveries) / float64(deliveries+pickups) * 100
		add("DELIVERY_RATE", CategoryOperations,
			en.Sprintf("Delivery rate: %.0f%% (%d deliveries, %d pickups)", rate, deliveries, pickups),
			"Total stops: "+count(deliveries+pickups)+" in "+g.curMonth,
			Neutral)
	}

	// REV_PER_DELIVERY
	if deliveries > 0 {
		perStop := g.deliveryRevenue(g.curMonth) / float64(deliveries)
		sent := Neutral
		if perStop >= 100 {
			sent = Positive
		}
		add("REV_PER_DELIVERY", CategoryOperations,
			en.Sprintf("Revenue per delivery: Dhs %.0f", perStop),
			"Average revenue generated per delivery stop in "+g.curMonth,
			sent)
	}

	// GEO_SHIFT
	curIn, curTot := g.insideStops(g.curMonth)
	priorIn, priorTot := g.insideStops(g.priorMonth)
	if curTot > 0 && priorTot > 0 {
		pc := float64(curIn) / float64(curTot) * 100
		pp := float64(priorIn) / float64(priorTot) * 100
		add("GEO_SHIFT", CategoryOperations,
			en.Sprintf("Inside Abu Dhabi stops: %.0f%% (%+.0fpp vs last month)", pc, pc-pp),
			count(curIn)+" inside stops of "+count(curTot)+" total in "+g.curMonth,
			Neutral)
	}

	// DIGITAL_PAYMENT
	digital, collections := g.digitalCollections(g.curMonth)
	if collections > 0 {
		pct := digital / collections * 100
		sent := Neutral
		if pct >= 70 {
			sent = Positive
		}
		add("DIGITAL_PAYMENT", CategoryPayments,
			en.Sprintf("Digital payments: %.0f%% of collections", pct),
			money(digital)+" stripe+terminal of "+money(collections)+" total",
			sent)
	}

	// COLLECTION_RATE
	if cur > 0 {
		rate := collections / cur * 100
		sent := Neutral
		switch {
		case rate >= 90:
			sent = Positive
		case rate < 70:
			sent = Negative
		}
		add("COLLECTION_RATE", CategoryPayments,
			en.Sprintf("Collection rate: %.0f%% of revenue collected", rate),
			money(collections)+" collected of "+money(cur)+" earned",
			sent)
	}

	// AVG_DAYS_PAYMENT
	curDays, curOK := g.avgDaysToPayment(g.curMonth)
	priorDays, priorOK := g.avgDaysToPayment(g.priorMonth)
	if curOK && priorOK && priorDays > 0 {
		diff := curDays - priorDays
		sent := Neutral
		switch {
		case diff < 0:
			sent = Positive
		case diff > 1:
			sent = Negative
		}
		add("AVG_DAYS_PAYMENT", CategoryPayments,
			en.Sprintf("Avg days to payment: %.1f days (%+.1f vs last month)", curDays, diff),
			"Average collection cycle in "+g.curMonth,
			sent)
	}

	// OUTSTANDING_PCT
	if outstanding := g.outstandingRevenue(g.curMonth); cur > 0 {
		pct := outstanding / cur * 100
		sent := Positive
		switch {
		case pct > 10:
			sent = Negative
		case pct > 5:
			sent = Neutral
		}
		add("OUTSTANDING_PCT", CategoryPayments,
			en.Sprintf("Outstanding: %.0f%% of revenue (Dhs %.0f)", pct, outstanding),
			"Unpaid CC_2025 orders in "+g.curMonth,
			sent)
	}

	// PROCESSING_TIME
	if days, ok := g.avgProcessingDays(g.curMonth); ok {
		headline := en.Sprintf("Avg processing time: %.1f days", days)
		sent := Positive
		if days > 3.0 {
			headline += "  - above target"
			sent = Negative
		}
		add("PROCESSING_TIME", CategoryOperations,
			headline,
			"Average order processing cycle in "+g.curMonth,
			sent)
	}

	return rows
}

// trend maps a delta onto a sentiment given positive and negative cutoffs.
func trend(v, posAbove, negBelow float64) string {
	switch {
	case v > posAbove:
		return Positive
	case v < negBelow:
		return Negative
	default:
		return Neutral
	}
}

func (g *generator) monthRevenue(month string) float64 {
	var sum float64
	for _, f := range g.sales {
		if f.earned && f.month == month {
			sum += f.total
		}
	}
	return sum
}

func (g *generator) subscriptionRevenue(month string) float64 {
	var sum float64
	for _, f := range g.sales {
		if f.earned && f.month == month &&
			(f.txnType == canonical.TxnSubscription || f.isSubscription) {
			sum += f.total
		}
	}
	return sum
}

// activeCustomers counts distinct customers with earned activity, excluding
// bare invoice settlements which carry no service activity.
func (g *generator) activeCustomers(month string) int64 {
	seen := map[string]struct{}{}
	for _, f := range g.sales {
		if f.earned && f.month == month && f.customer != "" &&
			f.txnType != canonical.TxnInvoicePayment {
			seen[f.customer] = struct{}{}
		}
	}
	return int64(len(seen))
}

func (g *generator) customersAtCohortAge(month string, age int64) int64 {
	seen := map[string]struct{}{}
	for _, f := range g.sales {
		if f.earned && f.month == month && f.customer != "" &&
			f.hasCohortAge && f.monthsSinceCohort == age {
			seen[f.customer] = struct{}{}
		}
	}
	return int64(len(seen))
}

// reactivations counts customers whose first activity in the current month
// follows a gap of at least three months.
func (g *generator) reactivations() int64 {
	months := map[string]map[time.Time]struct{}{}
	for _, f := range g.sales {
		if !f.earned || f.customer == "" || f.monthDate.IsZero() ||
			f.txnType == canonical.TxnInvoicePayment {
			continue
		}
		if months[f.customer] == nil {
			months[f.customer] = map[time.Time]struct{}{}
		}
		months[f.customer][f.monthDate] = struct{}{}
	}

	var n int64
	for _, active := range months {
		dates := make([]time.Time, 0, len(active))
		for d := range active {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		for i := 1; i < len(dates); i++ {
			if monthLabel(dates[i]) == g.curMonth &&
				!dates[i].Before(dates[i-1].AddDate(0, 3, 0)) {
				n++
				break
			}
		}
	}
	return n
}

func (g *generator) multiServiceCustomers(month string) (multi, total int64) {
	seen := map[string]struct{}{}
	multiSeen := map[string]struct{}{}
	for _, f := range g.quality {
		if f.month != month || f.customer == "" {
			continue
		}
		seen[f.customer] = struct{}{}
		if f.multi {
			multiSeen[f.customer] = struct{}{}
		}
	}
	return int64(len(multiSeen)), int64(len(seen))
}

// revenueConcentration returns the revenue held by customers at or above the
// 80th percentile of per-customer revenue, and the total.
func (g *generator) revenueConcentration(month string) (top, total float64) {
	byCustomer := map[string]float64{}
	for _, f := range g.sales {
		if f.earned && f.month == month && f.customer != "" {
			byCustomer[f.customer] += f.total
		}
	}
	if len(byCustomer) == 0 {
		return 0, 0
	}
	revs := make([]float64, 0, len(byCustomer))
	for _, r := range byCustomer {
		revs = append(revs, r)
		total += r
	}
	p80 := percentile80(revs)
	for _, r := range revs {
		if r >= p80 {
			top += r
		}
	}
	return top, total
}

func (g *generator) topByQuantity(month string, key func(itemFact) string) (string, int64, bool) {
	totals := map[string]int64{}
	for _, f := range g.items {
		if f.month == month {
			totals[key(f)] += f.quantity
		}
	}
	best, bestQty, found := "", int64(0), false
	for name, qty := range totals {
		if !found || qty > bestQty || (qty == bestQty && name < best) {
			best, bestQty, found = name, qty, true
		}
	}
	return best, bestQty, found
}

func (g *generator) expressItems(month string) (express, total int64) {
	for _, f := range g.items {
		if f.month != month {
			continue
		}
		total += f.quantity
		if f.express {
			express += f.quantity
		}
	}
	return express, total
}

func (g *generator) monthStops(month string) (deliveries, pickups int64) {
	for _, f := range g.sales {
		if f.earned && f.month == month {
			if f.hasDelivery {
				deliveries++
			}
			if f.hasPickup {
				pickups++
			}
		}
	}
	return deliveries, pickups
}

func (g *generator) deliveryRevenue(month string) float64 {
	var sum float64
	for _, f := range g.sales {
		if f.earned && f.month == month && f.hasDelivery {
			sum += f.total
		}
	}
	return sum
}

func (g *generator) insideStops(month string) (inside, total int64) {
	for _, f := range g.sales {
		if !f.earned || f.month != month {
			continue
		}
		stops := int64(0)
		if f.hasDelivery {
			stops++
		}
		if f.hasPickup {
			stops++
		}
		total += stops
		if f.route == canonical.RouteInside {
			inside += stops
		}
	}
	return inside, total
}

func (g *generator) digitalCollections(month string) (digital, total float64) {
	for _, f := range g.sales {
		if !f.earned || f.month != month {
			continue
		}
		total += f.collections
		if f.payType == canonical.PayStripe || f.payType == canonical.PayTerminal {
			digital += f.collections
		}
	}
	return digital, total
}

func (g *generator) avgDaysToPayment(month string) (float64, bool) {
	var sum float64
	var n int
	for _, f := range g.sales {
		if f.earned && f.month == month && f.hasDaysToPay {
			sum += f.daysToPayment
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (g *generator) outstandingRevenue(month string) float64 {
	var sum float64
	for _, f := range g.sales {
		if f.earned && f.month == month && !f.paid && f.source == canonical.SystemCurrent {
			sum += f.total
		}
	}
	return sum
}

func (g *generator) avgProcessingDays(month string) (float64, bool) {
	var sum float64
	var n int
	for _, f := range g.sales {
		if f.earned && f.month == month && f.hasProcessing {
			sum += f.processingDays
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
