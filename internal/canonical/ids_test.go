package canonical

import "testing"

func TestCustomerIDString(t *testing.T) {
	if got := (CustomerID{Source: SourceLegacy, Native: "0042"}).String(); got != "MW-0042" {
		t.Errorf("legacy = %q", got)
	}
	if got := (CustomerID{Source: SourceCurrent, Native: "0042"}).String(); got != "CC-0042" {
		t.Errorf("current = %q", got)
	}
}

func TestStandardizeCustomerID(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		src  IDSource
		want any
	}{
		{"legacy digits", "42", SourceLegacy, "MW-0042"},
		{"current digits", "42", SourceCurrent, "CC-0042"},
		{"long digits kept", "123456", SourceCurrent, "CC-123456"},
		{"preformatted mw", "MW-0007", SourceCurrent, "MW-0007"},
		{"preformatted cc", "CC-0007", SourceLegacy, "CC-0007"},
		{"digits in noise", "cust #3", SourceLegacy, "MW-0003"},
		{"no digits", "unknown", SourceLegacy, nil},
		{"nil", nil, SourceLegacy, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StandardizeCustomerID(tc.raw, tc.src); got != tc.want {
				t.Errorf("StandardizeCustomerID = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStandardizeOrderID(t *testing.T) {
	cases := []struct {
		name    string
		raw     any
		txnType string
		store   any
		rowIdx  int
		want    any
	}{
		{"subscription synthetic", nil, TxnSubscription, nil, 7, "S-00007"},
		{"invoice synthetic", nil, TxnInvoicePayment, nil, 12, "I-00012"},
		{"receipt dash kept", "R-100", TxnOrder, StoreMoonwalk, 1, "R-100"},
		{"receipt no dash", "R100", TxnOrder, StoreMoonwalk, 1, "R-100"},
		{"canonical h kept", "H-00033", TxnOrder, StoreMoonwalk, 1, "H-00033"},
		{"canonical m kept", "M-00033", TxnOrder, StoreHielo, 1, "M-00033"},
		{"plain number moonwalk", "33", TxnOrder, StoreMoonwalk, 1, "M-00033"},
		{"plain number hielo", "33", TxnOrder, StoreHielo, 1, "H-00033"},
		{"no digits", "???", TxnOrder, StoreMoonwalk, 1, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StandardizeOrderID(tc.raw, tc.txnType, tc.store, tc.rowIdx)
			if got != tc.want {
				t.Errorf("StandardizeOrderID = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStandardizeItemOrderID(t *testing.T) {
	if got := StandardizeItemOrderID("42", StoreHielo); got != "H-00042" {
		t.Errorf("hielo = %v", got)
	}
	if got := StandardizeItemOrderID("42", StoreMoonwalk); got != "M-00042" {
		t.Errorf("moonwalk = %v", got)
	}
	if got := StandardizeItemOrderID("none", StoreMoonwalk); got != nil {
		t.Errorf("no digits = %v, want nil", got)
	}
}
