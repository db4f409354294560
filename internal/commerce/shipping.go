package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

type wcZone struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type wcZoneMethod struct {
	MethodID string `json:"method_id"`
	Title    string `json:"title"`
	Settings struct {
		Title struct {
			Value string `json:"value"`
		} `json:"title"`
		Cost json.RawMessage `json:"cost"`
	} `json:"settings"`
}

// title returns the configured display title, falling back to the
// method's own title.
func (m wcZoneMethod) title() string {
	if m.Settings.Title.Value != "" {
		return m.Settings.Title.Value
	}
	return m.Title
}

// cost extracts the method cost, which the API returns either as a
// plain string or as an object with a value field.
func (m wcZoneMethod) cost() string {
	raw := m.Settings.Cost
	if len(raw) == 0 {
		return "0.00"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != "" {
		return obj.Value
	}
	return "0.00"
}

func (c *Client) fetchZones(ctx context.Context) ([]wcZone, error) {
	now := time.Now()
	if zones, ok := c.shipping.getZones(now); ok {
		return zones, nil
	}
	var zones []wcZone
	if err := c.getJSON(ctx, "/shipping/zones", nil, &zones); err != nil {
		return nil, err
	}
	c.shipping.putZones(zones, now)
	return zones, nil
}

func (c *Client) fetchZoneMethods(ctx context.Context, zoneID int64) ([]wcZoneMethod, error) {
	if methods, ok := c.shipping.getMethods(zoneID); ok {
		return methods, nil
	}
	var methods []wcZoneMethod
	if err := c.getJSON(ctx, fmt.Sprintf("/shipping/zones/%d/methods", zoneID), nil, &methods); err != nil {
		return nil, err
	}
	c.shipping.putMethods(zoneID, methods)
	return methods, nil
}

// ChooseShippingForDistrict picks a shipping method by district name.
// The store is expected to have one zone with flat-rate instances
// titled in Bangla for inside/outside Dhaka. Any failure falls back to
// the default method so an order never blocks on shipping lookup.
func (c *Client) ChooseShippingForDistrict(ctx context.Context, district string) domain.ShippingOption {
	fallback := domain.ShippingOption{
		MethodID:    c.defaultShipping.MethodID,
		MethodTitle: c.defaultShipping.MethodTitle,
		Total:       c.defaultShipping.Total,
	}
	if !c.useZoneShipping {
		return fallback
	}

	zones, err := c.fetchZones(ctx)
	if err != nil || len(zones) == 0 {
		if err != nil {
			c.log.Warn().Err(err).Msg("shipping zone lookup failed, using defaults")
		}
		return fallback
	}
	methods, err := c.fetchZoneMethods(ctx, zones[0].ID)
	if err != nil || len(methods) == 0 {
		if err != nil {
			c.log.Warn().Err(err).Msg("shipping method lookup failed, using defaults")
		}
		return fallback
	}

	d := strings.ToLower(strings.TrimSpace(district))
	var preferred *wcZoneMethod
	for i := range methods {
		title := strings.ToLower(methods[i].title())
		if strings.Contains(d, "ঢাকা") &&
			(strings.Contains(title, "ঢাকা ভেতর") ||
				(strings.Contains(title, "dhaka") && strings.Contains(title, "inside"))) {
			preferred = &methods[i]
			break
		}
		if d != "" && !strings.Contains(d, "ঢাকা") &&
			(strings.Contains(title, "ঢাকার বাইরে") || strings.Contains(title, "outside")) {
			preferred = &methods[i]
		}
	}
	if preferred == nil {
		for i := range methods {
			if methods[i].MethodID == "flat_rate" {
				preferred = &methods[i]
				break
			}
		}
	}
	if preferred == nil {
		preferred = &methods[0]
	}

	return domain.ShippingOption{
		MethodID:    preferred.MethodID,
		MethodTitle: preferred.title(),
		Total:       preferred.cost(),
	}
}

// ListShippingOptions returns every method of the primary zone so the
// buyer can pick one. Failures degrade to the single default option.
func (c *Client) ListShippingOptions(ctx context.Context) []domain.ShippingOption {
	fallback := []domain.ShippingOption{{
		MethodID:    c.defaultShipping.MethodID,
		MethodTitle: c.defaultShipping.MethodTitle,
		Total:       c.defaultShipping.Total,
	}}

	zones, err := c.fetchZones(ctx)
	if err != nil || len(zones) == 0 {
		if err != nil {
			c.log.Warn().Err(err).Msg("listing shipping options failed")
		}
		return fallback
	}
	methods, err := c.fetchZoneMethods(ctx, zones[0].ID)
	if err != nil || len(methods) == 0 {
		if err != nil {
			c.log.Warn().Err(err).Msg("listing shipping options failed")
		}
		return fallback
	}

	out := make([]domain.ShippingOption, 0, len(methods))
	for _, m := range methods {
		id := m.MethodID
		if id == "" {
			id = "flat_rate"
		}
		title := m.title()
		if title == "" {
			title = "Shipping"
		}
		out = append(out, domain.ShippingOption{MethodID: id, MethodTitle: title, Total: m.cost()})
	}
	return out
}

// EstimateETA returns the delivery estimate for a district, in Bangla.
// Dhaka is next-day territory; everywhere else takes the courier a bit
// longer.
func EstimateETA(district string) string {
	d := strings.ToLower(strings.TrimSpace(district))
	if strings.Contains(d, "dhaka") || strings.Contains(d, "ঢাকা") {
		return "১-২ দিন"
	}
	return "২-৪ দিন"
}
