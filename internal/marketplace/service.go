package marketplace

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const orderModel = "sale.order"

// wireTimeLayout is the timestamp format the marketplace API uses
const wireTimeLayout = "2006-01-02 15:04:05"

// ErrOrderNotFound indicates the marketplace has no order with the given id
var ErrOrderNotFound = errors.New("marketplace: order not found")

var orderFields = []string{
	"status", "amount_total", "amount_shipping", "amount_tax", "amount_discount",
	"payment_method", "note", "billing_address", "shipping_address", "order_lines",
	"write_date",
}

// Config holds marketplace connection settings
type Config struct {
	URL      string
	Database string
	Username string
	Password string
}

// Service is the remote order source used by the sync engine. It lazily
// authenticates on first use and re-authenticates after auth failures.
type Service struct {
	mu     sync.Mutex
	client *Client
	authed bool
}

// NewService creates a new marketplace service
func NewService(cfg Config) *Service {
	return &Service{
		client: NewClient(cfg.URL, cfg.Database, cfg.Username, cfg.Password),
	}
}

// ensureAuth authenticates once and caches the session uid
func (s *Service) ensureAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authed {
		return nil
	}
	if s.client.URL == "" {
		return fmt.Errorf("marketplace URL not configured")
	}
	if _, err := s.client.Authenticate(); err != nil {
		return fmt.Errorf("marketplace auth: %w", err)
	}
	s.authed = true
	return nil
}

// FetchOrder fetches a single order by its marketplace id
func (s *Service) FetchOrder(remoteID int64) (*RemoteOrder, error) {
	if err := s.ensureAuth(); err != nil {
		return nil, err
	}

	var raw []rawOrder
	if err := s.client.Read(orderModel, []int64{remoteID}, orderFields, &raw); err != nil {
		return nil, fmt.Errorf("fetch order %d: %w", remoteID, err)
	}
	if len(raw) == 0 {
		return nil, ErrOrderNotFound
	}

	order := normalizeOrder(raw[0])
	return &order, nil
}

// ListOrders fetches all orders last modified inside the date range,
// paginating until the marketplace returns a short page.
func (s *Service) ListOrders(from, to time.Time) ([]RemoteOrder, error) {
	if err := s.ensureAuth(); err != nil {
		return nil, err
	}

	domain := []interface{}{
		[]interface{}{"write_date", ">=", from.UTC().Format(wireTimeLayout)},
		[]interface{}{"write_date", "<=", to.UTC().Format(wireTimeLayout)},
	}

	const pageSize = 500
	orders := make([]RemoteOrder, 0)

	for offset := 0; ; offset += pageSize {
		var raw []rawOrder
		err := s.client.SearchRead(orderModel, domain, orderFields, pageSize, offset, &raw)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}

		for _, r := range raw {
			orders = append(orders, normalizeOrder(r))
		}

		if len(raw) < pageSize {
			break
		}
	}

	log.Printf("📡 Marketplace: fetched %d orders in range %s .. %s",
		len(orders), from.Format("2006-01-02"), to.Format("2006-01-02"))
	return orders, nil
}

// normalizeOrder converts a wire payload into a RemoteOrder
func normalizeOrder(r rawOrder) RemoteOrder {
	order := RemoteOrder{
		ID:              r.ID,
		Status:          r.Status,
		TotalAmount:     r.AmountTotal,
		ShippingAmount:  r.AmountShipping,
		TaxAmount:       r.AmountTax,
		DiscountAmount:  r.AmountDiscount,
		PaymentMethod:   r.PaymentMethod,
		CustomerNote:    r.Note,
		BillingAddress:  r.BillingAddress,
		ShippingAddress: r.ShippingAddress,
	}

	if r.WriteDate != "" {
		if ts, err := time.Parse(wireTimeLayout, r.WriteDate); err == nil {
			order.UpdatedAt = ts
		}
	}

	for _, line := range r.OrderLines {
		item := RemoteOrderItem{}
		if v, ok := line["product_id"].(float64); ok {
			item.ProductID = int64(v)
		}
		if v, ok := line["sku"].(string); ok {
			item.SKU = v
		}
		if v, ok := line["name"].(string); ok {
			item.Name = v
		}
		if v, ok := line["quantity"].(float64); ok {
			item.Quantity = int(v)
		}
		if v, ok := line["price"].(float64); ok {
			item.Price = v
		}
		order.Items = append(order.Items, item)
	}

	return order
}
