package models

import "testing"

func TestDisplayId(t *testing.T) {
	inv := Invoice{ID: 159}
	if got := inv.DisplayId(); got != "159" {
		t.Fatalf("DisplayId = %q, want 159", got)
	}
	inv.CompositeId = CompositeId(158, 159)
	if got := inv.DisplayId(); got != "158_159" {
		t.Fatalf("DisplayId = %q, want 158_159", got)
	}
}

func TestIsSplitChild(t *testing.T) {
	if (&Invoice{ID: 158}).IsSplitChild() {
		t.Fatal("plain invoice reported as split child")
	}
	if !(&Invoice{CompositeId: "158_159"}).IsSplitChild() {
		t.Fatal("composite id not recognized as split child")
	}
}

func TestPaymentMethodIsPostpaid(t *testing.T) {
	cases := []struct {
		method PaymentMethod
		want   bool
	}{
		{PaymentMethod{Value: "postpaid"}, true},
		{PaymentMethod{Value: " Postpaid "}, true},
		{PaymentMethod{Name: "Post"}, false},
		{PaymentMethod{Name: "Postpaid Settlement"}, true},
		{PaymentMethod{Name: "Cash"}, false},
		{PaymentMethod{Name: "Cash", Value: "cash"}, false},
	}
	for _, tc := range cases {
		if got := tc.method.IsPostpaid(); got != tc.want {
			t.Errorf("IsPostpaid(%+v) = %v, want %v", tc.method, got, tc.want)
		}
	}
}
