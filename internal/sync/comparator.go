package sync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

// Compared field names. These are the keys of every FieldDiff map, the
// resolution policy table and the manual queue.
const (
	FieldStatus          = "status"
	FieldTotalAmount     = "total_amount"
	FieldShippingAmount  = "shipping_amount"
	FieldTaxAmount       = "tax_amount"
	FieldDiscountAmount  = "discount_amount"
	FieldBillingAddress  = "billing_address"
	FieldShippingAddress = "shipping_address"
	FieldLineItems       = "line_items"
	FieldPaymentMethod   = "payment_method"
	FieldCustomerNote    = "customer_note"
)

// remoteStatusMap translates marketplace statuses into the canonical local
// vocabulary before comparison. The marketplace reports fulfilment-centric
// states ("shipped") that mean the same thing as local "completed".
var remoteStatusMap = map[string]string{
	"pending":    "pending",
	"processing": "processing",
	"shipped":    "completed",
	"complete":   "completed",
	"completed":  "completed",
	"cancelled":  "cancelled",
	"canceled":   "cancelled",
	"refunded":   "refunded",
	"on-hold":    "on_hold",
	"on_hold":    "on_hold",
}

// fieldMapping binds one comparable field to its accessors. raw* feed the
// diff report; norm* are the canonical strings equality is decided on.
type fieldMapping struct {
	rawLocal   func(*models.StoreOrder) interface{}
	rawRemote  func(*marketplace.RemoteOrder) interface{}
	normLocal  func(*models.StoreOrder) string
	normRemote func(*marketplace.RemoteOrder) string
}

// comparisonFields is the static field table. Accessors are function values,
// not method names, so the whole table is checked at compile time.
var comparisonFields = map[string]fieldMapping{
	FieldStatus: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return string(o.Status) },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.Status },
		normLocal:  func(o *models.StoreOrder) string { return NormalizeLocalStatus(o.Status) },
		normRemote: func(r *marketplace.RemoteOrder) string { return NormalizeRemoteStatus(r.Status) },
	},
	FieldTotalAmount: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return o.TotalAmount },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.TotalAmount },
		normLocal:  func(o *models.StoreOrder) string { return normalizeMoney(o.TotalAmount) },
		normRemote: func(r *marketplace.RemoteOrder) string { return normalizeMoney(r.TotalAmount) },
	},
	FieldShippingAmount: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return o.ShippingAmount },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.ShippingAmount },
		normLocal:  func(o *models.StoreOrder) string { return normalizeMoney(o.ShippingAmount) },
		normRemote: func(r *marketplace.RemoteOrder) string { return normalizeMoney(r.ShippingAmount) },
	},
	FieldTaxAmount: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return o.TaxAmount },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.TaxAmount },
		normLocal:  func(o *models.StoreOrder) string { return normalizeMoney(o.TaxAmount) },
		normRemote: func(r *marketplace.RemoteOrder) string { return normalizeMoney(r.TaxAmount) },
	},
	FieldDiscountAmount: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return o.DiscountAmount },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.DiscountAmount },
		normLocal:  func(o *models.StoreOrder) string { return normalizeMoney(o.DiscountAmount) },
		normRemote: func(r *marketplace.RemoteOrder) string { return normalizeMoney(r.DiscountAmount) },
	},
	FieldBillingAddress: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return map[string]interface{}(o.BillingAddress) },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.BillingAddress },
		normLocal:  func(o *models.StoreOrder) string { return canonicalJSON(map[string]interface{}(o.BillingAddress)) },
		normRemote: func(r *marketplace.RemoteOrder) string { return canonicalJSON(r.BillingAddress) },
	},
	FieldShippingAddress: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return map[string]interface{}(o.ShippingAddress) },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.ShippingAddress },
		normLocal:  func(o *models.StoreOrder) string { return canonicalJSON(map[string]interface{}(o.ShippingAddress)) },
		normRemote: func(r *marketplace.RemoteOrder) string { return canonicalJSON(r.ShippingAddress) },
	},
	FieldLineItems: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return LocalLineItems(o) },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return remoteLineItems(r) },
		normLocal:  func(o *models.StoreOrder) string { return canonicalJSON(LocalLineItems(o)) },
		normRemote: func(r *marketplace.RemoteOrder) string { return canonicalJSON(remoteLineItems(r)) },
	},
	FieldPaymentMethod: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return o.PaymentMethod },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.PaymentMethod },
		normLocal:  func(o *models.StoreOrder) string { return o.PaymentMethod },
		normRemote: func(r *marketplace.RemoteOrder) string { return r.PaymentMethod },
	},
	FieldCustomerNote: {
		rawLocal:   func(o *models.StoreOrder) interface{} { return o.CustomerNote },
		rawRemote:  func(r *marketplace.RemoteOrder) interface{} { return r.CustomerNote },
		normLocal:  func(o *models.StoreOrder) string { return o.CustomerNote },
		normRemote: func(r *marketplace.RemoteOrder) string { return r.CustomerNote },
	},
}

// Compare computes the field-level differences between the local and remote
// views of one order. Equal fields are omitted; an empty map means the two
// sides agree. Pure and side-effect-free.
func Compare(local *models.StoreOrder, remote *marketplace.RemoteOrder) (map[string]FieldDiff, error) {
	if local == nil {
		return nil, fmt.Errorf("%w: local order is nil", ErrInvalidInput)
	}
	// Amounts are float64 on the wire, so a zero total is indistinguishable
	// from an absent one; presence is only enforceable for id and status.
	if remote == nil || remote.ID == 0 || remote.Status == "" {
		return nil, fmt.Errorf("%w: remote order is missing required fields", ErrInvalidInput)
	}

	diffs := make(map[string]FieldDiff)
	for field, mapping := range comparisonFields {
		if mapping.normLocal(local) != mapping.normRemote(remote) {
			diffs[field] = FieldDiff{
				Local:  mapping.rawLocal(local),
				Remote: mapping.rawRemote(remote),
			}
		}
	}
	return diffs, nil
}

// NormalizeLocalStatus canonicalizes a local status value
func NormalizeLocalStatus(status models.OrderStatus) string {
	return strings.ToLower(strings.TrimSpace(string(status)))
}

// NormalizeRemoteStatus translates a marketplace status into the canonical
// local vocabulary. Unknown statuses pass through lowercased.
func NormalizeRemoteStatus(status string) string {
	key := strings.ToLower(strings.TrimSpace(status))
	if mapped, ok := remoteStatusMap[key]; ok {
		return mapped
	}
	return key
}

// normalizeMoney rounds to 2 decimal places so float representation noise
// never registers as a conflict
func normalizeMoney(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// canonicalJSON renders a composite value in a canonical form: map keys are
// emitted sorted (encoding/json guarantees this), so key order can never
// register as a difference. Nil composites normalize to the empty object.
func canonicalJSON(v interface{}) string {
	if v == nil {
		return "{}"
	}
	if m, ok := v.(map[string]interface{}); ok && m == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("!unserializable:%v", v)
	}
	return string(data)
}

// LocalLineItems decodes the order's line items into comparable maps with
// rounded prices
func LocalLineItems(o *models.StoreOrder) []map[string]interface{} {
	if len(o.LineItems) == 0 {
		return []map[string]interface{}{}
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(o.LineItems, &raw); err != nil {
		return []map[string]interface{}{}
	}

	items := make([]map[string]interface{}, 0, len(raw))
	for _, line := range raw {
		items = append(items, normalizeLineItem(line))
	}
	return items
}

// remoteLineItems projects marketplace items into the same comparable shape
func remoteLineItems(r *marketplace.RemoteOrder) []map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, map[string]interface{}{
			"product_id": float64(item.ProductID),
			"sku":        item.SKU,
			"name":       item.Name,
			"quantity":   float64(item.Quantity),
			"price":      normalizeMoney(item.Price),
		})
	}
	return items
}

// normalizeLineItem reduces a decoded line to the compared keys only
func normalizeLineItem(line map[string]interface{}) map[string]interface{} {
	item := map[string]interface{}{
		"product_id": float64(0),
		"sku":        "",
		"name":       "",
		"quantity":   float64(0),
		"price":      normalizeMoney(0),
	}
	if v, ok := line["product_id"].(float64); ok {
		item["product_id"] = v
	}
	if v, ok := line["sku"].(string); ok {
		item["sku"] = v
	}
	if v, ok := line["name"].(string); ok {
		item["name"] = v
	}
	if v, ok := line["quantity"].(float64); ok {
		item["quantity"] = v
	}
	if v, ok := line["price"].(float64); ok {
		item["price"] = normalizeMoney(v)
	}
	return item
}
