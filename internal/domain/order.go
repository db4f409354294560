package domain

// OrderItem is one line of an order request.
type OrderItem struct {
	ProductID   int64 `json:"product_id"`
	VariationID int64 `json:"variation_id,omitempty"`
	Quantity    int   `json:"quantity"`
}

// OrderDetails is everything needed to place an order: the delivery
// profile plus the items. Items may be empty on input, in which case
// the caller falls back to the session's last shown product.
type OrderDetails struct {
	Customer Customer        `json:"customer"`
	Items    []OrderItem     `json:"items,omitempty"`
	Shipping *ShippingOption `json:"shipping,omitempty"`
	Postcode string          `json:"postcode,omitempty"`
}

// PlacedOrder is the confirmation view of a created order.
type PlacedOrder struct {
	ID     int64  `json:"id"`
	Number string `json:"number,omitempty"`
	Status string `json:"status,omitempty"`
}

// ShippingOption is one selectable shipping method, in the shape the
// storefront API expects for shipping_lines.
type ShippingOption struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}
