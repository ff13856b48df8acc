package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"gorm.io/datatypes"
)

func testAddress() map[string]interface{} {
	return map[string]interface{}{
		"first_name": "Erika",
		"last_name":  "Muster",
		"address_1":  "Hauptstr. 1",
		"city":       "Berlin",
		"country":    "DE",
	}
}

func testLineItemsJSON(t *testing.T) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal([]map[string]interface{}{
		{"product_id": 7, "sku": "SKU-7", "name": "Widget", "quantity": 2, "price": 49.99},
	})
	if err != nil {
		t.Fatalf("marshal line items: %v", err)
	}
	return datatypes.JSON(data)
}

// testPair builds a local/remote pair that compares as identical
func testPair(t *testing.T) (*models.StoreOrder, *marketplace.RemoteOrder) {
	t.Helper()
	local := &models.StoreOrder{
		ID:              1,
		OrderNumber:     "SO-1001",
		RemoteOrderID:   5001,
		Status:          models.OrderStatusProcessing,
		TotalAmount:     109.98,
		ShippingAmount:  10.00,
		TaxAmount:       17.52,
		DiscountAmount:  0,
		PaymentMethod:   "wire_transfer",
		CustomerNote:    "leave at door",
		BillingAddress:  models.JSONB(testAddress()),
		ShippingAddress: models.JSONB(testAddress()),
		LineItems:       testLineItemsJSON(t),
		UpdatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	remote := &marketplace.RemoteOrder{
		ID:              5001,
		Status:          "processing",
		TotalAmount:     109.98,
		ShippingAmount:  10.00,
		TaxAmount:       17.52,
		DiscountAmount:  0,
		PaymentMethod:   "wire_transfer",
		CustomerNote:    "leave at door",
		BillingAddress:  testAddress(),
		ShippingAddress: testAddress(),
		Items: []marketplace.RemoteOrderItem{
			{ProductID: 7, SKU: "SKU-7", Name: "Widget", Quantity: 2, Price: 49.99},
		},
		UpdatedAt: time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
	}
	return local, remote
}

func TestCompare_IdenticalPairHasNoDifferences(t *testing.T) {
	local, remote := testPair(t)

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(diffs) != 0 {
		t.Errorf("expected no differences, got %d: %v", len(diffs), diffs)
	}
}

func TestCompare_RejectsInvalidInput(t *testing.T) {
	local, remote := testPair(t)

	if _, err := Compare(nil, remote); err == nil {
		t.Error("expected error for nil local order")
	}
	if _, err := Compare(local, nil); err == nil {
		t.Error("expected error for nil remote order")
	}
	if _, err := Compare(local, &marketplace.RemoteOrder{Status: "processing"}); err == nil {
		t.Error("expected error for remote order without id")
	}
	if _, err := Compare(local, &marketplace.RemoteOrder{ID: 5001}); err == nil {
		t.Error("expected error for remote order without status")
	}
}

func TestCompare_MoneyRoundingSuppressesFloatNoise(t *testing.T) {
	local, remote := testPair(t)
	local.TotalAmount = 109.98
	remote.TotalAmount = 109.98000000000001

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if _, ok := diffs[FieldTotalAmount]; ok {
		t.Error("sub-cent float noise should not register as a difference")
	}

	remote.TotalAmount = 110.00
	diffs, err = Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if _, ok := diffs[FieldTotalAmount]; !ok {
		t.Error("a real 2-decimal difference must register")
	}
}

func TestCompare_StatusTranslation(t *testing.T) {
	local, remote := testPair(t)

	// "shipped" on the marketplace means the same as local "completed"
	local.Status = models.OrderStatusCompleted
	remote.Status = "shipped"
	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if _, ok := diffs[FieldStatus]; ok {
		t.Error("shipped vs completed should compare equal")
	}

	remote.Status = "processing"
	diffs, err = Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if _, ok := diffs[FieldStatus]; !ok {
		t.Error("completed vs processing must register as a difference")
	}
}

func TestCompare_AddressKeyOrderIsIrrelevant(t *testing.T) {
	local, remote := testPair(t)

	// Same values, different insertion path: canonical JSON must match
	reordered := map[string]interface{}{
		"country":    "DE",
		"city":       "Berlin",
		"address_1":  "Hauptstr. 1",
		"last_name":  "Muster",
		"first_name": "Erika",
	}
	remote.BillingAddress = reordered

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if _, ok := diffs[FieldBillingAddress]; ok {
		t.Error("map key order should never register as a difference")
	}
}

func TestCompare_LineItemQuantityDifference(t *testing.T) {
	local, remote := testPair(t)
	remote.Items[0].Quantity = 3

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if _, ok := diffs[FieldLineItems]; !ok {
		t.Error("quantity change must register as a line-item difference")
	}
}

func TestNormalizeRemoteStatus(t *testing.T) {
	cases := map[string]string{
		"shipped":   "completed",
		"Complete":  "completed",
		"on-hold":   "on_hold",
		"canceled":  "cancelled",
		"cancelled": "cancelled",
		"weird":     "weird",
	}
	for in, want := range cases {
		if got := NormalizeRemoteStatus(in); got != want {
			t.Errorf("NormalizeRemoteStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
