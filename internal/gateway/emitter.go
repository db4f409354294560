package gateway

import (
	"sync/atomic"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

// wsEmitter delivers engine output to one websocket client as events.
type wsEmitter struct {
	client *Client
	seq    *atomic.Int64
}

func (e *wsEmitter) next() int64 { return e.seq.Add(1) }

func (e *wsEmitter) Message(m domain.Message, keepTyping bool) {
	payload := map[string]any{"who": m.Who, "text": m.Text, "ts": m.TS}
	if keepTyping {
		payload["keepTyping"] = true
	}
	e.client.SendEvent(EventMessage, payload, e.next())
}

func (e *wsEmitter) Typing(on bool) {
	e.client.SendEvent(EventTyping, map[string]bool{"on": on}, e.next())
}

func (e *wsEmitter) OrderConfirmed(summary, eta, orderID string) {
	e.client.SendEvent(EventConfirm, map[string]string{
		"summary": summary,
		"eta":     eta,
		"orderId": orderID,
	}, e.next())
}

func (e *wsEmitter) ShippingChoices(options []domain.ShippingOption) {
	e.client.SendEvent(EventOrderOptions, map[string]any{
		"code":    "NEED_SHIPPING",
		"options": options,
	}, e.next())
}

// collectEmitter buffers engine output for synchronous channels that
// answer with a single flattened reply, such as webhooks.
type collectEmitter struct {
	messages []domain.Message
	placed   string
}

func (e *collectEmitter) Message(m domain.Message, keepTyping bool) {
	e.messages = append(e.messages, m)
}

func (e *collectEmitter) Typing(bool) {}

func (e *collectEmitter) OrderConfirmed(summary, eta, orderID string) {
	e.placed = orderID
}

func (e *collectEmitter) ShippingChoices([]domain.ShippingOption) {}

// replyText joins the collected bot messages into one plain-text body.
func (e *collectEmitter) replyText(fallback string) string {
	out := ""
	for _, m := range e.messages {
		if out != "" {
			out += "\n"
		}
		out += m.Text
	}
	if out == "" {
		return fallback
	}
	return out
}
