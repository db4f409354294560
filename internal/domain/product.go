package domain

// ProductRef is the trimmed product view sent to the model and the
// client. Full catalog records never cross the tool boundary.
type ProductRef struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Price        string   `json:"price"`
	RegularPrice string   `json:"regular_price,omitempty"`
	SalePrice    string   `json:"sale_price,omitempty"`
	OnSale       bool     `json:"on_sale,omitempty"`
	StockStatus  string   `json:"stock_status,omitempty"`
	Permalink    string   `json:"permalink,omitempty"`
	Images       []string `json:"images,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	ShortDesc    string   `json:"short_description,omitempty"`
}

// Category is a product category as exposed to the model.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// Variation is a purchasable variant of a variable product.
type Variation struct {
	ID         int64             `json:"id"`
	Price      string            `json:"price"`
	Attributes map[string]string `json:"attributes,omitempty"`
	InStock    bool              `json:"in_stock"`
}
