package canonical

import (
	"fmt"
	"strings"
)

// IDSource identifies which POS system issued an identifier. Identifiers are
// never guessed from their shape; the source travels with the row.
type IDSource int

const (
	// SourceLegacy is the pre-2025 POS.
	SourceLegacy IDSource = iota
	// SourceCurrent is the current POS ("CC_2025" in the data).
	SourceCurrent
)

// Source system labels as they appear in the output tables.
const (
	SystemLegacy  = "Legacy"
	SystemCurrent = "CC_2025"
)

// String returns the output label for the source.
func (s IDSource) String() string {
	if s == SourceLegacy {
		return SystemLegacy
	}
	return SystemCurrent
}

// CustomerID is a canonical customer identifier: the issuing source plus the
// zero-padded native number.
type CustomerID struct {
	Source IDSource
	Native string
}

// String renders the id in its canonical prefixed form. Total: any value of
// CustomerID formats without error.
func (id CustomerID) String() string {
	if id.Source == SourceLegacy {
		return "MW-" + id.Native
	}
	return "CC-" + id.Native
}

// StandardizeCustomerID canonicalizes a raw customer id. Values already in
// canonical form (MW-/CC- prefix) pass through untouched; otherwise the
// digits are zero-padded to four and prefixed by source. No digits → nil.
func StandardizeCustomerID(raw any, src IDSource) any {
	s, _ := raw.(string)
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "MW-") || strings.HasPrefix(upper, "CC-") {
		return s
	}
	digits := Digits(s)
	if digits == "" {
		return nil
	}
	return CustomerID{Source: src, Native: zfill(digits, 4)}.String()
}

// Transaction types carried on sales rows.
const (
	TxnOrder          = "Order"
	TxnSubscription   = "Subscription"
	TxnInvoicePayment = "Invoice Payment"
)

// StandardizeOrderID canonicalizes a raw order id for a sales row.
//
// Subscription and invoice-payment rows have no native order id, so they get
// synthetic S-/I- ids from their position in the combined sales frame (rowIdx
// is 1-based). R-prefixed receipts are normalized, already-canonical H-/M-
// ids pass through, and plain numbers get the store prefix.
func StandardizeOrderID(raw any, txnType string, store any, rowIdx int) any {
	switch txnType {
	case TxnSubscription:
		return fmt.Sprintf("S-%05d", rowIdx)
	case TxnInvoicePayment:
		return fmt.Sprintf("I-%05d", rowIdx)
	}

	s, _ := raw.(string)
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "R-"):
		return s
	case strings.HasPrefix(upper, "R") && len(s) > 1:
		return "R-" + s[1:]
	case strings.HasPrefix(upper, "H-"), strings.HasPrefix(upper, "M-"):
		return s
	}

	digits := Digits(s)
	if digits == "" {
		return nil
	}
	return storePrefix(store) + zfill(digits, 5)
}

// StandardizeItemOrderID canonicalizes the order reference on an item row.
// Item exports always carry plain numeric order ids, so only the store
// prefix form applies.
func StandardizeItemOrderID(raw any, store any) any {
	s, _ := raw.(string)
	digits := Digits(s)
	if digits == "" {
		return nil
	}
	return storePrefix(store) + zfill(digits, 5)
}

func storePrefix(store any) string {
	if s, ok := store.(string); ok && s == StoreHielo {
		return "H-"
	}
	return "M-"
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
