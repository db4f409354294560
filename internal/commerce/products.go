package commerce

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

// SearchParams selects catalog products.
type SearchParams struct {
	Search   string
	PerPage  int
	Category string
	MinPrice *float64
	MaxPrice *float64
}

func (p SearchParams) cacheKey() string {
	min, max := "", ""
	if p.MinPrice != nil {
		min = strconv.FormatFloat(*p.MinPrice, 'f', -1, 64)
	}
	if p.MaxPrice != nil {
		max = strconv.FormatFloat(*p.MaxPrice, 'f', -1, 64)
	}
	return fmt.Sprintf("%s|%d|%s|%s|%s", p.Search, p.PerPage, min, max, p.Category)
}

// wcProduct is the raw API product shape, trimmed to the fields we read.
type wcProduct struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
	OnSale       bool   `json:"on_sale"`
	Permalink    string `json:"permalink"`
	ShortDesc    string `json:"short_description"`
	StockStatus  string `json:"stock_status"`
	Images       []struct {
		Src string `json:"src"`
		Alt string `json:"alt"`
	} `json:"images"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
}

// safeFields trims a raw product to the view shared with the model and
// the client. At most three images survive.
func safeFields(p wcProduct) domain.ProductRef {
	ref := domain.ProductRef{
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price,
		RegularPrice: p.RegularPrice,
		SalePrice:    p.SalePrice,
		OnSale:       p.OnSale,
		StockStatus:  p.StockStatus,
		Permalink:    p.Permalink,
		ShortDesc:    p.ShortDesc,
	}
	for i, img := range p.Images {
		if i >= 3 {
			break
		}
		ref.Images = append(ref.Images, img.Src)
	}
	for _, c := range p.Categories {
		ref.Categories = append(ref.Categories, c.Name)
	}
	return ref
}

// SearchProducts fetches published products matching the params. Price
// bounds are applied client-side since the catalog API does not filter
// reliably on them.
func (c *Client) SearchProducts(ctx context.Context, p SearchParams) ([]domain.ProductRef, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	key := p.cacheKey()
	now := time.Now()
	if data, ok := c.products.get(key, now); ok {
		return data, nil
	}

	perPage := p.PerPage
	if perPage < 1 {
		perPage = 12
	}
	if perPage > 50 {
		perPage = 50
	}

	query := url.Values{}
	if p.Search != "" {
		query.Set("search", p.Search)
	}
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("status", "publish")
	if p.Category != "" {
		query.Set("category", p.Category)
	}

	var raw []wcProduct
	if err := c.getJSON(ctx, "/products", query, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.ProductRef, 0, len(raw))
	for _, rp := range raw {
		ref := safeFields(rp)
		if !priceInRange(ref.Price, p.MinPrice, p.MaxPrice) {
			continue
		}
		out = append(out, ref)
	}

	c.products.put(key, out, now)
	return out, nil
}

func priceInRange(price string, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	v, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return false
	}
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}

// ProductByID fetches a single product.
func (c *Client) ProductByID(ctx context.Context, id int64) (domain.ProductRef, error) {
	if !c.IsConfigured() {
		return domain.ProductRef{}, ErrNotConfigured
	}
	var raw wcProduct
	if err := c.getJSON(ctx, fmt.Sprintf("/products/%d", id), nil, &raw); err != nil {
		return domain.ProductRef{}, err
	}
	return safeFields(raw), nil
}

// Categories lists product categories, optionally filtered by search.
func (c *Client) Categories(ctx context.Context, search string, perPage int) ([]domain.Category, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if perPage < 1 {
		perPage = 50
	}
	if perPage > 100 {
		perPage = 100
	}
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	query.Set("per_page", strconv.Itoa(perPage))

	var raw []struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Slug  string `json:"slug"`
		Count int    `json:"count"`
	}
	if err := c.getJSON(ctx, "/products/categories", query, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Category, 0, len(raw))
	for _, rc := range raw {
		out = append(out, domain.Category{ID: rc.ID, Name: rc.Name, Slug: rc.Slug, Count: rc.Count})
	}
	return out, nil
}

// Variations lists purchasable variants of a variable product.
func (c *Client) Variations(ctx context.Context, productID int64) ([]domain.Variation, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	query := url.Values{}
	query.Set("per_page", "50")

	var raw []struct {
		ID          int64  `json:"id"`
		Price       string `json:"price"`
		StockStatus string `json:"stock_status"`
		Attributes  []struct {
			Name   string `json:"name"`
			Option string `json:"option"`
		} `json:"attributes"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/products/%d/variations", productID), query, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Variation, 0, len(raw))
	for _, rv := range raw {
		v := domain.Variation{
			ID:      rv.ID,
			Price:   rv.Price,
			InStock: rv.StockStatus == "instock",
		}
		if len(rv.Attributes) > 0 {
			v.Attributes = make(map[string]string, len(rv.Attributes))
			for _, a := range rv.Attributes {
				v.Attributes[a.Name] = a.Option
			}
		}
		out = append(out, v)
	}
	return out, nil
}
