package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus defines possible local order statuses
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOnHold     OrderStatus = "on_hold"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// StoreOrder is the local storefront view of an order. The marketplace keeps
// its own copy of the same logical order; the sync engine reconciles the two.
type StoreOrder struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	OrderNumber   string      `gorm:"uniqueIndex;not null" json:"order_number"`
	RemoteOrderID int64       `gorm:"index" json:"remote_order_id"` // marketplace order id, 0 = not linked yet
	Status        OrderStatus `gorm:"default:pending;index" json:"status"`

	// Totals (order currency)
	TotalAmount    float64 `json:"total_amount"`
	ShippingAmount float64 `json:"shipping_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	DiscountAmount float64 `json:"discount_amount"`

	PaymentMethod string `gorm:"type:varchar(100)" json:"payment_method"`
	CustomerNote  string `gorm:"type:text" json:"customer_note"`

	// Addresses stored as JSONB so the comparator can deep-compare them
	BillingAddress  JSONB `gorm:"type:jsonb" json:"billing_address"`
	ShippingAddress JSONB `gorm:"type:jsonb" json:"shipping_address"`

	// Line items: array of {product_id, sku, name, quantity, price}
	LineItems datatypes.JSON `json:"line_items"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (StoreOrder) TableName() string {
	return "store_orders"
}

// OrderNote is an audit note attached to a local order. The sync engine
// appends one for every conflict, manual resolution and failure.
type OrderNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	Author    string    `gorm:"type:varchar(100);default:'sync-engine'" json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name
func (OrderNote) TableName() string {
	return "order_notes"
}
