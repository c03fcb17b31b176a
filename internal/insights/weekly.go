package insights

import "sort"

// weekly runs the week-over-week rules against the last completed ISO week.
// Weekly rules key on Earned_Date so revenue lands in the week the work
// finished, not the week the order was placed.
func (g *generator) weekly() []Row {
	var rows []Row
	add := func(ruleID, category, headline, detail, sentiment string) {
		rows = append(rows, Row{
			Period:      g.curWeek,
			RuleID:      ruleID,
			Category:    category,
			Headline:    headline,
			Detail:      detail,
			Sentiment:   sentiment,
			Granularity: "weekly",
		})
	}

	// WRev_WOW
	cur, prior := g.weekRevenue(g.curWeek), g.weekRevenue(g.priorWeek)
	if prior > 0 {
		pct := (cur - prior) / prior * 100
		add("WRev_WOW", CategoryRevenue,
			en.Sprintf("Revenue %+.0f%% vs last week", pct),
			money(cur)+" this week vs "+money(prior)+" last week",
			trend(pct, 2, -2))
	}

	// WRev_TREND
	if curRev, avg, ok := g.weekTrend(); ok {
		pct := (curRev - avg) / avg * 100
		add("WRev_TREND", CategoryRevenue,
			en.Sprintf("Revenue %+.0f%% vs 4-week average", pct),
			money(curRev)+" this week vs "+money(avg)+" avg",
			trend(pct, 5, -5))
	}

	// WCust_WOW
	curCust, priorCust := g.weekCustomers(g.curWeek), g.weekCustomers(g.priorWeek)
	if priorCust > 0 {
		pct := float64(curCust-priorCust) / float64(priorCust) * 100
		sent := Negative
		if pct > 0 {
			sent = Positive
		}
		add("WCust_WOW", CategoryCustomers,
			en.Sprintf("Active customers %+.0f%% vs last week", pct),
			count(curCust)+" customers this week vs "+count(priorCust)+" last week",
			sent)
	}

	// WStops_WOW
	curStops, priorStops := g.weekStopCount(g.curWeek), g.weekStopCount(g.priorWeek)
	if priorStops > 0 {
		pct := float64(curStops-priorStops) / float64(priorStops) * 100
		sent := Negative
		if pct > 0 {
			sent = Positive
		}
		add("WStops_WOW", CategoryOperations,
			en.Sprintf("Stops %+.0f%% vs last week", pct),
			count(curStops)+" stops this week vs "+count(priorStops)+" last week",
			sent)
	}

	// WItems_WOW
	curItems, priorItems := g.weekItems(g.curWeek), g.weekItems(g.priorWeek)
	if priorItems > 0 {
		pct := float64(curItems-priorItems) / float64(priorItems) * 100
		sent := Negative
		if pct > 0 {
			sent = Positive
		}
		add("WItems_WOW", CategoryOperations,
			en.Sprintf("Items %+.0f%% vs last week", pct),
			count(curItems)+" items this week vs "+count(priorItems)+" last week",
			sent)
	}

	// WProcessing
	if days, ok := g.weekAvgProcessing(g.curWeek); ok {
		headline := en.Sprintf("Avg processing: %.1f days", days)
		sent := Positive
		if days > 3.0 {
			headline += "  - above target"
			sent = Negative
		}
		add("WProcessing", CategoryOperations,
			headline,
			"Average order processing time in "+g.curWeek,
			sent)
	}

	// WCollection_Rate
	collected, earned := g.weekCollections(g.curWeek)
	if earned > 0 {
		rate := collected / earned * 100
		sent := Neutral
		switch {
		case rate >= 90:
			sent = Positive
		case rate < 70:
			sent = Negative
		}
		add("WCollection_Rate", CategoryPayments,
			en.Sprintf("Collection rate: %.0f%% of revenue collected", rate),
			money(collected)+" collected of "+money(earned)+" earned in "+g.curWeek,
			sent)
	}

	// WDelivery_Rate
	deliveries, pickups := g.weekStops(g.curWeek)
	if deliveries+pickups > 0 {
		rate := float64(deliveries) / float64(deliveries+pickups) * 100
		add("WDelivery_Rate", CategoryOperations,
			en.Sprintf("Delivery rate: %.0f%% (%d deliveries, %d pickups)", rate, deliveries, pickups),
			"Total stops: "+count(deliveries+pickups)+" in "+g.curWeek,
			Neutral)
	}

	return rows
}

func (g *generator) weekRevenue(week string) float64 {
	var sum float64
	for _, f := range g.sales {
		if f.isEarned && f.week == week {
			sum += f.total
		}
	}
	return sum
}

// weekTrend compares the current completed week against the average of the
// four completed sales weeks before it.
func (g *generator) weekTrend() (cur, avg float64, ok bool) {
	byWeek := map[string]float64{}
	for _, f := range g.sales {
		if f.isEarned && f.week != "" && f.week != g.thisWeek {
			byWeek[f.week] += f.total
		}
	}
	labels := make([]string, 0, len(byWeek))
	for w := range byWeek {
		labels = append(labels, w)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(labels)))
	if len(labels) > 5 {
		labels = labels[:5]
	}

	var sum float64
	var n int
	found := false
	for _, w := range labels {
		if w == g.curWeek {
			cur = byWeek[w]
			found = true
			continue
		}
		sum += byWeek[w]
		n++
	}
	if !found || n == 0 || sum <= 0 {
		return 0, 0, false
	}
	return cur, sum / float64(n), true
}

func (g *generator) weekCustomers(week string) int64 {
	seen := map[string]struct{}{}
	for _, f := range g.sales {
		if f.isEarned && f.week == week && f.customer != "" {
			seen[f.customer] = struct{}{}
		}
	}
	return int64(len(seen))
}

func (g *generator) weekStops(week string) (deliveries, pickups int64) {
	for _, f := range g.sales {
		if f.isEarned && f.week == week {
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

func (g *generator) weekStopCount(week string) int64 {
	d, p := g.weekStops(week)
	return d + p
}

func (g *generator) weekItems(week string) int64 {
	var sum int64
	for _, f := range g.items {
		if f.week == week {
			sum += f.quantity
		}
	}
	return sum
}

func (g *generator) weekAvgProcessing(week string) (float64, bool) {
	var sum float64
	var n int
	for _, f := range g.sales {
		if f.isEarned && f.week == week && f.hasProcessing {
			sum += f.processingDays
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (g *generator) weekCollections(week string) (collected, earned float64) {
	for _, f := range g.sales {
		if f.isEarned && f.week == week {
			collected += f.collections
			earned += f.total
		}
	}
	return collected, earned
}
