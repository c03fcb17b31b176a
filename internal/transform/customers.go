package transform

import (
	"log"
	"strings"

	"moonwalketl/internal/canonical"
	"moonwalketl/internal/table"
)

// customerColumns is the output schema of the merged customer table.
var customerColumns = []string{
	"CustomerID_Std", "CustomerID_Raw", "CustomerName", "Store_Std",
	"SignedUp_Date", "CohortMonth", "Route #", "IsBusinessAccount",
	"Source_System", "Phone", "Email",
}

// junkPhones are placeholder values the POS accepts but carry no number.
var junkPhones = map[string]struct{}{
	"0": {}, "00": {}, "000000": {}, "00000000": {},
}

// Customers merges the CleanCloud roster with customers reconstructed from
// the legacy register archive. Legacy customers have no roster of their own;
// each one is derived from their order rows, signup date being the earliest
// order.
func Customers(cc, legacy *table.Table) (*table.Table, error) {
	out := table.New("customers", customerColumns...)

	// CleanCloud roster.
	signedParsed := parseDateColumn("customers", cc, "Signed Up Date")

	ids := column(cc, "Customer ID")
	names := column(cc, "Name")
	stores := column(cc, "Store ID")
	routes := column(cc, "Route #")
	bizIDs := column(cc, "Business ID")
	phones := column(cc, "Phone")
	emails := column(cc, "Email")

	for i := range cc.Rows {
		row := make([]any, len(customerColumns))
		row[0] = canonical.StandardizeCustomerID(ids[i], canonical.SourceCurrent)
		if f, ok := cellFloat(ids[i]); ok {
			row[1] = int64(f)
		}
		if name, ok := cellString(names[i]); ok {
			row[2] = name
		}
		row[3] = canonical.Store(stores[i], nil, false)
		if t, ok := cellTime(signedParsed[i]); ok {
			row[4] = t
			row[5] = canonical.MonthStart(t)
		}
		row[6] = intOrZero(routes[i])
		if _, ok := cellString(bizIDs[i]); ok {
			row[7] = int64(1)
		} else {
			row[7] = int64(0)
		}
		row[8] = canonical.SystemCurrent
		if phone, ok := cellString(phones[i]); ok {
			if _, junk := junkPhones[phone]; !junk {
				row[9] = phone
			}
		}
		if email, ok := cellString(emails[i]); ok {
			row[10] = strings.ToLower(email)
		}
		out.Rows = append(out.Rows, row)
	}
	ccCount := len(out.Rows)

	// Legacy customers grouped out of their order rows.
	placedParsed := parseDateColumn("customers", legacy, "Placed")
	legacyIDs := column(legacy, "Customer ID")
	legacyNames := column(legacy, "Customer")

	type legacyCustomer struct {
		row []any
	}
	groups := make(map[string]*legacyCustomer)
	var order []string
	for i := range legacy.Rows {
		std := canonical.StandardizeCustomerID(legacyIDs[i], canonical.SourceLegacy)
		key, _ := std.(string)
		g, ok := groups[key]
		if !ok {
			row := make([]any, len(customerColumns))
			row[0] = std
			if f, fok := cellFloat(legacyIDs[i]); fok {
				row[1] = int64(f)
			}
			row[3] = canonical.StoreMoonwalk
			row[6] = int64(0)
			row[7] = int64(0)
			row[8] = canonical.SystemLegacy
			g = &legacyCustomer{row: row}
			groups[key] = g
			order = append(order, key)
		}
		if g.row[2] == nil {
			if name, nok := cellString(legacyNames[i]); nok {
				g.row[2] = name
			}
		}
		if t, tok := cellTime(placedParsed[i]); tok {
			if cur, cok := cellTime(g.row[4]); !cok || t.Before(cur) {
				g.row[4] = t
				g.row[5] = canonical.MonthStart(t)
			}
		}
	}
	for _, key := range order {
		out.Rows = append(out.Rows, groups[key].row)
	}
	log.Printf("[OK] customers: %d CleanCloud + %d legacy", ccCount, len(order))

	if err := out.SortBy("CustomerID_Std"); err != nil {
		return nil, err
	}
	return out, nil
}

// CustomerLookups extracts the per-customer cohort month and route number
// used when enriching sales rows.
func CustomerLookups(customers *table.Table) (canonical.CohortMap, map[string]float64) {
	cohorts := make(canonical.CohortMap)
	routes := make(map[string]float64)
	ids := column(customers, "CustomerID_Std")
	months := column(customers, "CohortMonth")
	routeCol := column(customers, "Route #")
	for i := range customers.Rows {
		id, ok := cellString(ids[i])
		if !ok {
			continue
		}
		if t, tok := cellTime(months[i]); tok {
			cohorts[id] = t
		}
		routes[id] = floatOrZero(routeCol[i])
	}
	return cohorts, routes
}

// BusinessAccounts returns the standardized IDs of CleanCloud customers with
// a business registration.
func BusinessAccounts(cc *table.Table) map[string]struct{} {
	set := make(map[string]struct{})
	ids := column(cc, "Customer ID")
	bizIDs := column(cc, "Business ID")
	for i := range cc.Rows {
		if _, ok := cellString(bizIDs[i]); !ok {
			continue
		}
		if std, ok := canonical.StandardizeCustomerID(ids[i], canonical.SourceCurrent).(string); ok {
			set[std] = struct{}{}
		}
	}
	return set
}

// NameLookup maps the folded customer name to the standardized ID, first
// occurrence winning. Invoice rows carry only free-text names, this is the
// bridge back to the roster.
func NameLookup(cc *table.Table) map[string]string {
	lookup := make(map[string]string)
	ids := column(cc, "Customer ID")
	names := column(cc, "Name")
	for i := range cc.Rows {
		name, ok := cellString(names[i])
		if !ok {
			continue
		}
		key := canonical.MatchKey(name)
		if key == "" {
			continue
		}
		if _, seen := lookup[key]; seen {
			continue
		}
		if std, sok := canonical.StandardizeCustomerID(ids[i], canonical.SourceCurrent).(string); sok {
			lookup[key] = std
		}
	}
	return lookup
}
