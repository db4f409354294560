package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/commerce"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
)

// PlacedInfo is the order confirmation surfaced to the client.
type PlacedInfo struct {
	OrderID string `json:"orderId"`
	ETA     string `json:"eta"`
}

// CancelledInfo reports a cancellation outcome.
type CancelledInfo struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// ToolResult is the typed outcome of one tool invocation. Payload is
// what the model sees; the side-channel fields drive client events.
type ToolResult struct {
	Payload any

	Products  []domain.ProductRef
	Placed    *PlacedInfo
	Cancelled *CancelledInfo

	// ReplyTokens caps the follow-up reply for this tool.
	ReplyTokens int
}

// PayloadJSON renders the payload for the tool message. A payload that
// fails to marshal degrades to a generic failure rather than erroring
// the whole turn.
func (r ToolResult) PayloadJSON() string {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return `{"ok":false,"error":"TOOL_RESULT_ENCODING"}`
	}
	return string(data)
}

type toolHandler struct {
	spec        llm.ToolSpec
	replyTokens int
	run         func(ctx context.Context, sess *domain.Session, args json.RawMessage) ToolResult
}

// Toolset is the closed dispatch table of everything the model may
// invoke. Unknown tool names are rejected, never looked up dynamically.
type Toolset struct {
	handlers map[string]toolHandler
	specs    []llm.ToolSpec
	rng      *rand.Rand
	log      *logging.Logger
}

// NewToolset wires the tool catalog to the store client.
func NewToolset(shop *commerce.Client, rng *rand.Rand, log *logging.Logger) *Toolset {
	t := &Toolset{
		handlers: make(map[string]toolHandler),
		rng:      rng,
		log:      log.Sub("tools"),
	}

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "search_products",
			Description: "Search WooCommerce products and return concise info for recommendations",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"query":{"type":"string","description":"Search query like watch, phone, earbuds"},
				"per_page":{"type":"number","description":"How many results to return (1-20)"},
				"min_price":{"type":"number","description":"Minimum budget in Taka"},
				"max_price":{"type":"number","description":"Maximum budget in Taka"},
				"category":{"type":"string","description":"WooCommerce category slug or id"}},
				"required":["query"]}`),
		},
		replyTokens: 220,
		run: func(ctx context.Context, _ *domain.Session, args json.RawMessage) ToolResult {
			var a struct {
				Query    string   `json:"query"`
				PerPage  int      `json:"per_page"`
				MinPrice *float64 `json:"min_price"`
				MaxPrice *float64 `json:"max_price"`
				Category string   `json:"category"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return failure(err)
			}
			perPage := clampInt(a.PerPage, 1, 20, 3)
			products, err := searchWithVariants(ctx, shop, a.Query, commerce.SearchParams{
				PerPage:  perPage,
				Category: a.Category,
				MinPrice: a.MinPrice,
				MaxPrice: a.MaxPrice,
			})
			if err != nil {
				return failure(err)
			}
			return ToolResult{
				Payload:  map[string]any{"ok": true, "products": products},
				Products: products,
			}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "get_categories",
			Description: "List WooCommerce product categories (optional search and limit)",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"search":{"type":"string"},"per_page":{"type":"number"}},"required":[]}`),
		},
		replyTokens: 200,
		run: func(ctx context.Context, _ *domain.Session, args json.RawMessage) ToolResult {
			var a struct {
				Search  string `json:"search"`
				PerPage int    `json:"per_page"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return failure(err)
			}
			cats, err := shop.Categories(ctx, a.Search, a.PerPage)
			if err != nil {
				return failure(err)
			}
			return ToolResult{Payload: map[string]any{"ok": true, "categories": cats}}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "get_product_details",
			Description: "Get a single product by ID for price, stock, and image",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"id":{"type":"number","description":"WooCommerce product ID"}},"required":["id"]}`),
		},
		replyTokens: 220,
		run: func(ctx context.Context, _ *domain.Session, args json.RawMessage) ToolResult {
			var a struct {
				ID int64 `json:"id"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return failure(err)
			}
			product, err := shop.ProductByID(ctx, a.ID)
			if err != nil {
				return failure(err)
			}
			return ToolResult{Payload: map[string]any{"ok": true, "product": product}}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "get_variations",
			Description: "Fetch variations for a variable product to ask user for size/color",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"product_id":{"type":"number"}},"required":["product_id"]}`),
		},
		replyTokens: 220,
		run: func(ctx context.Context, _ *domain.Session, args json.RawMessage) ToolResult {
			var a struct {
				ProductID int64 `json:"product_id"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return failure(err)
			}
			variations, err := shop.Variations(ctx, a.ProductID)
			if err != nil {
				return failure(err)
			}
			return ToolResult{Payload: map[string]any{"ok": true, "variations": variations}}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "get_current_offer",
			Description: "Get a simple current offer like free delivery or discount",
			Parameters:  json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
		},
		replyTokens: 200,
		run: func(_ context.Context, _ *domain.Session, _ json.RawMessage) ToolResult {
			return ToolResult{Payload: map[string]any{
				"ok": true,
				"offer": map[string]any{
					"text":    "আজ অর্ডার করলে ফ্রি ডেলিভারি।",
					"code":    "FREE_DELIVERY",
					"expires": nil,
				},
			}}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "estimate_shipping_eta",
			Description: "Rough delivery ETA in Bangladesh by district",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"district":{"type":"string","description":"Customer district in Bangladesh"}},"required":["district"]}`),
		},
		replyTokens: 200,
		run: func(_ context.Context, _ *domain.Session, args json.RawMessage) ToolResult {
			var a struct {
				District string `json:"district"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return failure(err)
			}
			return ToolResult{Payload: map[string]any{"ok": true, "eta": commerce.EstimateETA(a.District)}}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "place_order",
			Description: "Place a WooCommerce COD order with customer details and line items",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"name":{"type":"string"},"phone":{"type":"string"},
				"address":{"type":"string"},"district":{"type":"string"},"upazila":{"type":"string"},
				"items":{"type":"array","items":{"type":"object","properties":{
					"product_id":{"type":"number"},"variation_id":{"type":"number"},"quantity":{"type":"number"}}}}},
				"required":["name","phone","address","district","items"]}`),
		},
		replyTokens: 240,
		run: func(ctx context.Context, sess *domain.Session, args json.RawMessage) ToolResult {
			var a struct {
				Name     string             `json:"name"`
				Phone    string             `json:"phone"`
				Address  string             `json:"address"`
				District string             `json:"district"`
				Upazila  string             `json:"upazila"`
				Items    []domain.OrderItem `json:"items"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return failure(err)
			}

			eta := deliveryETA(a.District)

			if !shop.IsConfigured() {
				// Demo path: acknowledge the order without a backing store.
				placed := &PlacedInfo{OrderID: strconv.Itoa(100000 + t.rng.Intn(900000)), ETA: eta}
				return ToolResult{
					Payload: map[string]any{"ok": true, "placed": placed},
					Placed:  placed,
				}
			}

			details := domain.OrderDetails{
				Customer: domain.Customer{
					Name: a.Name, Phone: a.Phone, Address: a.Address,
					District: a.District, Upazila: a.Upazila,
				}.Merge(sess.Customer),
				Items: a.Items,
			}
			order, err := shop.CreateOrder(ctx, details)
			if err != nil {
				return failure(err)
			}
			id := order.Number
			if id == "" {
				id = strconv.FormatInt(order.ID, 10)
			}
			placed := &PlacedInfo{OrderID: id, ETA: eta}
			return ToolResult{
				Payload: map[string]any{"ok": true, "placed": placed},
				Placed:  placed,
			}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "cancel_order",
			Description: "Cancel a WooCommerce order within 1 day of placement",
			Parameters: json.RawMessage(`{"type":"object","properties":{
				"order_id":{"type":"string"}},"required":["order_id"]}`),
		},
		replyTokens: 240,
		run: func(ctx context.Context, _ *domain.Session, args json.RawMessage) ToolResult {
			var a struct {
				OrderID string `json:"order_id"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return failure(err)
			}
			id, err := strconv.ParseInt(strings.TrimSpace(a.OrderID), 10, 64)
			if err != nil {
				return failure(fmt.Errorf("invalid order id %q", a.OrderID))
			}
			order, err := shop.CancelOrder(ctx, id)
			if err != nil {
				return failure(err)
			}
			cancelled := &CancelledInfo{OrderID: strconv.FormatInt(order.ID, 10), Status: order.Status}
			return ToolResult{
				Payload:   map[string]any{"ok": true, "cancelled": cancelled},
				Cancelled: cancelled,
			}
		},
	})

	t.register(toolHandler{
		spec: llm.ToolSpec{
			Name:        "get_saved_customer",
			Description: "Get previously saved customer details to reuse for new orders",
			Parameters:  json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
		},
		replyTokens: 220,
		run: func(_ context.Context, sess *domain.Session, _ json.RawMessage) ToolResult {
			return ToolResult{Payload: map[string]any{
				"ok":       !sess.Customer.IsEmpty(),
				"customer": sess.Customer,
			}}
		},
	})

	return t
}

func (t *Toolset) register(h toolHandler) {
	t.handlers[h.spec.Name] = h
	t.specs = append(t.specs, h.spec)
}

// Specs returns the tool catalog in registration order.
func (t *Toolset) Specs() []llm.ToolSpec {
	return t.specs
}

// Execute dispatches one tool call against the session. Only the first
// call of a model turn is ever executed; callers enforce that.
func (t *Toolset) Execute(ctx context.Context, sess *domain.Session, call llm.ToolCall) ToolResult {
	h, ok := t.handlers[call.Name]
	if !ok {
		t.log.Warn().Str("tool", call.Name).Msg("model requested unknown tool")
		return ToolResult{Payload: map[string]any{"ok": false, "error": "UNKNOWN_TOOL"}, ReplyTokens: 200}
	}
	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	result := h.run(ctx, sess, args)
	result.ReplyTokens = h.replyTokens
	return result
}

// searchWithVariants runs the catalog search across spelling variants,
// accumulating results until perPage items are found. Individual
// variant failures are skipped; only a total miss surfaces the error.
func searchWithVariants(ctx context.Context, shop *commerce.Client, query string, p commerce.SearchParams) ([]domain.ProductRef, error) {
	normalized := NormalizeQuery(query)
	if normalized == "" {
		normalized = query
	}

	seen := make(map[int64]bool)
	var out []domain.ProductRef
	var lastErr error
	for _, variant := range ExpandVariants(normalized) {
		if len(out) >= p.PerPage {
			break
		}
		vp := p
		vp.Search = variant
		products, err := shop.SearchProducts(ctx, vp)
		if err != nil {
			lastErr = err
			continue
		}
		for _, pr := range products {
			if seen[pr.ID] {
				continue
			}
			seen[pr.ID] = true
			out = append(out, pr)
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if len(out) > p.PerPage {
		out = out[:p.PerPage]
	}
	return out, nil
}

// deliveryETA is the confirmation-facing delivery estimate. Distinct
// from the estimate tool's wording so confirmations read consistently.
func deliveryETA(district string) string {
	if strings.Contains(strings.ToLower(district), "dhaka") || strings.Contains(district, "ঢাকা") {
		return "১–২ দিন"
	}
	return "২–৪ দিন"
}

func failure(err error) ToolResult {
	return ToolResult{Payload: map[string]any{"ok": false, "error": err.Error()}}
}

func clampInt(v, min, max, fallback int) int {
	if v == 0 {
		v = fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
