package commerce

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

type wcOrderAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Postcode  string `json:"postcode"`
}

type wcOrderLine struct {
	ProductID   int64 `json:"product_id"`
	VariationID int64 `json:"variation_id,omitempty"`
	Quantity    int   `json:"quantity"`
}

type wcShippingLine struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

type wcOrderRequest struct {
	PaymentMethod      string           `json:"payment_method"`
	PaymentMethodTitle string           `json:"payment_method_title"`
	SetPaid            bool             `json:"set_paid"`
	Billing            wcOrderAddress   `json:"billing"`
	Shipping           wcOrderAddress   `json:"shipping"`
	LineItems          []wcOrderLine    `json:"line_items"`
	ShippingLines      []wcShippingLine `json:"shipping_lines"`
}

type wcOrderResponse struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	Status         string `json:"status"`
	DateCreatedGMT string `json:"date_created_gmt"`
	DateCreated    string `json:"date_created"`
}

// sanitizeItems drops lines without a valid product id and clamps
// quantities to at least one.
func sanitizeItems(items []domain.OrderItem) []wcOrderLine {
	out := make([]wcOrderLine, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, wcOrderLine{ProductID: it.ProductID, VariationID: it.VariationID, Quantity: qty})
	}
	return out
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// CreateOrder places a cash-on-delivery order. Items are validated
// before any network call; an invalid email is dropped rather than
// failing the whole order.
func (c *Client) CreateOrder(ctx context.Context, d domain.OrderDetails) (domain.PlacedOrder, error) {
	if !c.IsConfigured() {
		return domain.PlacedOrder{}, ErrNotConfigured
	}

	lines := sanitizeItems(d.Items)
	if len(lines) == 0 {
		return domain.PlacedOrder{}, ErrNoItems
	}

	first, last := splitName(d.Customer.Name)
	email := strings.TrimSpace(d.Customer.Email)
	if email != "" && !domain.ValidEmail(email) {
		email = ""
	}

	addr := wcOrderAddress{
		FirstName: first,
		LastName:  last,
		Address1:  d.Customer.Address,
		City:      d.Customer.District,
		State:     d.Customer.Upazila,
		Country:   "BD",
		Postcode:  d.Postcode,
	}
	billing := addr
	billing.Email = email
	billing.Phone = d.Customer.Phone

	shipping := d.Shipping
	if shipping == nil || shipping.MethodID == "" {
		opt := c.ChooseShippingForDistrict(ctx, d.Customer.District)
		shipping = &opt
	}

	req := wcOrderRequest{
		PaymentMethod:      "cod",
		PaymentMethodTitle: "Cash on Delivery",
		SetPaid:            false,
		Billing:            billing,
		Shipping:           addr,
		LineItems:          lines,
		ShippingLines: []wcShippingLine{{
			MethodID:    shipping.MethodID,
			MethodTitle: shipping.MethodTitle,
			Total:       shipping.Total,
		}},
	}

	var resp wcOrderResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return domain.PlacedOrder{}, err
	}
	return domain.PlacedOrder{ID: resp.ID, Number: resp.Number, Status: resp.Status}, nil
}

// getOrder fetches an order's current state.
func (c *Client) getOrder(ctx context.Context, orderID int64) (wcOrderResponse, error) {
	if !c.IsConfigured() {
		return wcOrderResponse{}, ErrNotConfigured
	}
	var resp wcOrderResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/orders/%d", orderID), nil, &resp); err != nil {
		return wcOrderResponse{}, err
	}
	return resp, nil
}

// CancelOrder cancels an order if it is still inside the cancellation
// window. Orders past the window are left untouched and the caller
// gets ErrCancelWindowExceeded.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) (domain.PlacedOrder, error) {
	order, err := c.getOrder(ctx, orderID)
	if err != nil {
		return domain.PlacedOrder{}, err
	}

	created, ok := parseOrderDate(order)
	if !ok || time.Since(created) > cancelWindow {
		return domain.PlacedOrder{}, ErrCancelWindowExceeded
	}

	var resp wcOrderResponse
	body := map[string]string{"status": "cancelled"}
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", orderID), body, &resp); err != nil {
		return domain.PlacedOrder{}, err
	}
	return domain.PlacedOrder{ID: resp.ID, Number: resp.Number, Status: resp.Status}, nil
}

// parseOrderDate reads the creation timestamp, preferring GMT.
func parseOrderDate(order wcOrderResponse) (time.Time, bool) {
	for _, s := range []string{order.DateCreatedGMT, order.DateCreated} {
		if s == "" {
			continue
		}
		for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
