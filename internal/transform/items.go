package transform

import (
	"log"

	"moonwalketl/internal/canonical"
	"moonwalketl/internal/table"
)

// itemColumns is the output schema of the item-level table.
var itemColumns = []string{
	"Source", "Store_Std", "CustomerID_Std", "OrderID_Std",
	"ItemDate", "ItemCohortMonth", "Item", "Section",
	"Quantity", "Total", "Express",
	"Item_Category", "Service_Type", "IsBusinessAccount",
}

// Items standardizes the CleanCloud item export: store and ID normalization,
// garment and service categorization, and the business-account flag used to
// keep B2B volume out of consumer analytics. Items only exist for CleanCloud
// orders; the legacy register never recorded line items.
func Items(items, ccCustomers *table.Table) (*table.Table, error) {
	business := BusinessAccounts(ccCustomers)

	itemDates := parseDateColumn("items", items, "Placed")
	storeIDs := column(items, "Store ID")
	customerIDs := column(items, "Customer ID")
	orderIDs := column(items, "Order ID")
	itemNames := column(items, "Item")
	sections := column(items, "Section")
	quantities := column(items, "Quantity")
	totals := column(items, "Total")
	express := column(items, "Express")

	out := table.New("items", itemColumns...)
	var noStore, b2b int
	for i := range items.Rows {
		storeStd := canonical.Store(storeIDs[i], nil, false)
		if storeStd == nil {
			noStore++
			continue
		}

		row := make([]any, len(itemColumns))
		row[0] = canonical.SystemCurrent
		row[1] = storeStd
		row[2] = canonical.StandardizeCustomerID(customerIDs[i], canonical.SourceCurrent)
		row[3] = canonical.StandardizeItemOrderID(orderIDs[i], storeStd)
		if t, ok := cellTime(itemDates[i]); ok {
			row[4] = t
			row[5] = canonical.MonthStart(t)
		}
		row[6] = itemNames[i]
		row[7] = sections[i]
		row[8] = intOrZero(quantities[i])
		row[9] = floatOrZero(totals[i])
		row[10] = intOrZero(express[i])
		row[11] = canonical.ItemCategory(itemNames[i], sections[i])
		row[12] = canonical.ServiceType(sections[i])

		row[13] = int64(0)
		if cid, ok := row[2].(string); ok {
			if _, isB2B := business[cid]; isB2B {
				row[13] = int64(1)
				b2b++
			}
		}
		out.Rows = append(out.Rows, row)
	}
	log.Printf("[OK] items: %d rows (%d unknown store removed, %d business-flagged)", len(out.Rows), noStore, b2b)

	if err := out.SortBy("Store_Std", "OrderID_Std", "Item"); err != nil {
		return nil, err
	}
	return out, nil
}
