package marketplace

import (
	"time"
)

// RemoteOrder is the marketplace's view of an order, normalized from the raw
// XML-RPC payload. Amounts are in the order currency; addresses keep the
// remote key layout so the comparator can deep-compare them against the
// local JSONB columns.
type RemoteOrder struct {
	ID              int64                  `json:"id"`
	Status          string                 `json:"status"`
	TotalAmount     float64                `json:"total_amount"`
	ShippingAmount  float64                `json:"shipping_amount"`
	TaxAmount       float64                `json:"tax_amount"`
	DiscountAmount  float64                `json:"discount_amount"`
	PaymentMethod   string                 `json:"payment_method"`
	CustomerNote    string                 `json:"customer_note"`
	BillingAddress  map[string]interface{} `json:"billing_address"`
	ShippingAddress map[string]interface{} `json:"shipping_address"`
	Items           []RemoteOrderItem      `json:"items"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// RemoteOrderItem is one order line as reported by the marketplace
type RemoteOrderItem struct {
	ProductID int64   `json:"product_id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// rawOrder mirrors the wire payload of the marketplace order model
type rawOrder struct {
	ID              int64                    `json:"id"`
	Status          string                   `json:"status"`
	AmountTotal     float64                  `json:"amount_total"`
	AmountShipping  float64                  `json:"amount_shipping"`
	AmountTax       float64                  `json:"amount_tax"`
	AmountDiscount  float64                  `json:"amount_discount"`
	PaymentMethod   string                   `json:"payment_method"`
	Note            string                   `json:"note"`
	BillingAddress  map[string]interface{}   `json:"billing_address"`
	ShippingAddress map[string]interface{}   `json:"shipping_address"`
	OrderLines      []map[string]interface{} `json:"order_lines"`
	WriteDate       string                   `json:"write_date"`
}
