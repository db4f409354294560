package agent

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/commerce"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/store"
)

type fakeEmitter struct {
	messages  []domain.Message
	keep      []bool
	typing    []bool
	confirmed []string
	shipping  [][]domain.ShippingOption
}

func (f *fakeEmitter) Message(m domain.Message, keepTyping bool) {
	f.messages = append(f.messages, m)
	f.keep = append(f.keep, keepTyping)
}
func (f *fakeEmitter) Typing(on bool) { f.typing = append(f.typing, on) }
func (f *fakeEmitter) OrderConfirmed(summary, eta, orderID string) {
	f.confirmed = append(f.confirmed, orderID)
}
func (f *fakeEmitter) ShippingChoices(options []domain.ShippingOption) {
	f.shipping = append(f.shipping, options)
}

func (f *fakeEmitter) lastText() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1].Text
}

func newTestRunner(t *testing.T, client llm.Client, shop *commerce.Client) (*Runner, ConversationStore) {
	t.Helper()
	if shop == nil {
		shop = commerce.New(config.WooConfig{}, logging.New(nil, "silent"))
	}
	log := logging.New(nil, "silent")
	cs := store.NewMemoryConversationStore()
	cfg := config.SessionConfig{HistoryLimit: 40, HydrateLimit: 16, IdleMinutes: 30}
	rng := rand.New(rand.NewSource(1))

	tools := NewToolset(shop, rng, log)
	bridge := NewBridge(client, tools, log)
	registry := NewRegistry(cs, cfg, log)
	r := NewRunner(registry, bridge, shop, client, cs, cfg, rng, log)

	// No real sleeping in tests.
	r.sleep = func(time.Duration) {}
	r.retry.sleep = func(time.Duration) {}
	return r, cs
}

// jsonProducts serves the same product list for every catalog search.
func jsonProducts(items ...map[string]any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(items)
	})
}

// orderHandler accepts an order POST and answers shipping lookups with
// empty lists so the default method wins.
func orderHandler(t *testing.T, id int64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{
				"id": id, "number": strconv.FormatInt(id, 10), "status": "processing",
			})
			return
		}
		json.NewEncoder(w).Encode([]any{})
	})
}

func TestHandleMessage_PlainReply(t *testing.T) {
	client := &llm.MockClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			if len(req.Tools) > 0 {
				return &llm.ChatResponse{Content: "জি স্যার, বলুন কী খুঁজছেন?"}, nil
			}
			return &llm.ChatResponse{Content: "summary text"}, nil
		},
	}
	r, cs := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleMessage(context.Background(), entry, "ঘড়ি দেখান", em)

	require.Len(t, em.messages, 1)
	assert.Equal(t, "জি স্যার, বলুন কী খুঁজছেন?", em.messages[0].Text)
	assert.Equal(t, []bool{true, false, false}, em.typing)

	// User turn and bot turn both persisted.
	history := cs.RecentMessages("s1", 10)
	require.Len(t, history, 2)
	assert.Equal(t, domain.WhoUser, history[0].Who)
	assert.Equal(t, domain.WhoBot, history[1].Who)

	// The opportunistic summary landed too.
	assert.Equal(t, "summary text", cs.LoadSummary("s1"))
}

func TestHandleMessage_EmptyReplyGetsDefault(t *testing.T) {
	client := &llm.MockClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Content: "   "}, nil
		},
	}
	r, _ := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleMessage(context.Background(), entry, "hmm", em)

	require.NotEmpty(t, em.messages)
	assert.Equal(t, defaultReply, em.messages[0].Text)
}

func TestHandleMessage_ProviderFailureFallsBack(t *testing.T) {
	client := &llm.MockClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return nil, &llm.ProviderError{Provider: "openai", Status: 500, Message: "down"}
		},
	}
	r, cs := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleMessage(context.Background(), entry, "hello", em)

	require.Len(t, em.messages, 1)
	assert.Equal(t, fallbackReply, em.messages[0].Text)
	assert.Len(t, cs.RecentMessages("s1", 10), 2)
}

func TestHandleMessage_SearchToolFlow(t *testing.T) {
	shop := testShop(t, jsonProducts(
		map[string]any{"id": 1, "name": "Smart Watch", "price": "1500",
			"permalink": "https://shop/p/1",
			"images":    []map[string]string{{"src": "https://cdn/1.jpg"}}},
	))

	calls := 0
	client := &llm.MockClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			if calls == 1 {
				return &llm.ChatResponse{
					ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_products", Arguments: `{"query":"watch","per_page":3}`}},
				}, nil
			}
			// Follow-up reply after the tool result.
			assert.Equal(t, llm.RoleTool, req.Messages[len(req.Messages)-1].Role)
			return &llm.ChatResponse{Content: "এই ঘড়িটি দেখুন স্যার"}, nil
		},
	}
	r, _ := newTestRunner(t, client, shop)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleMessage(context.Background(), entry, "ঘড়ি দেখান", em)

	require.Len(t, em.messages, 3)
	assert.Contains(t, em.messages[0].Text, "পণ্যগুলো খুঁজে দেখছি—")
	assert.True(t, em.keep[0])
	assert.Equal(t, "এই ঘড়িটি দেখুন স্যার", em.messages[1].Text)
	assert.True(t, em.keep[1], "reply keeps typing on while the gallery follows")
	assert.Contains(t, em.messages[2].Text, "<img")
	assert.Contains(t, em.messages[2].Text, "১৫০০ টাকা")

	require.Len(t, entry.Session.LastProducts, 1)
	assert.Equal(t, domain.StageBrowse, entry.Session.Stage)
	assert.Equal(t, 2, calls, "tool turns do not refresh the summary")
}

func TestHandleMessage_CooldownNotice(t *testing.T) {
	client := &llm.MockClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Content: "ok"}, nil
		},
	}
	r, _ := newTestRunner(t, client, nil)

	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }

	entry, _ := r.Sessions().GetOrCreate("s1")
	entry.Session.CoolDownUntil = time.Now().Add(4 * time.Second)

	em := &fakeEmitter{}
	r.HandleMessage(context.Background(), entry, "আছেন?", em)

	require.NotEmpty(t, em.messages)
	assert.Equal(t, DefaultWaitMessage, em.messages[0].Text)
	assert.True(t, em.keep[0])
	require.NotEmpty(t, slept)
	assert.GreaterOrEqual(t, slept[0], 1200*time.Millisecond)
	assert.LessOrEqual(t, slept[0], 6*time.Second)
}

func TestHandleMessage_TruncatesLongInput(t *testing.T) {
	var gotUser string
	client := &llm.MockClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			if len(req.Tools) > 0 {
				gotUser = req.Messages[len(req.Messages)-1].Content
			}
			return &llm.ChatResponse{Content: "ok"}, nil
		},
	}
	r, _ := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	long := make([]rune, 5000)
	for i := range long {
		long[i] = 'ক'
	}
	r.HandleMessage(context.Background(), entry, string(long), &fakeEmitter{})
	assert.Len(t, []rune(gotUser), maxUserTextRunes)
}

func TestHandleOrderDetails_Validation(t *testing.T) {
	client := &llm.MockClient{}
	r, _ := newTestRunner(t, client, nil)
	entry, _ := r.Sessions().GetOrCreate("s1")

	em := &fakeEmitter{}
	r.HandleOrderDetails(context.Background(), entry, domain.OrderDetails{
		Customer: domain.Customer{Name: "Rahim", Phone: "123", Address: "Mirpur"},
	}, em)
	assert.Equal(t, invalidPhoneReply, em.lastText())

	em = &fakeEmitter{}
	r.HandleOrderDetails(context.Background(), entry, domain.OrderDetails{
		Customer: domain.Customer{Phone: "01712345678"},
	}, em)
	assert.Equal(t, missingNameReply, em.lastText())

	em = &fakeEmitter{}
	r.HandleOrderDetails(context.Background(), entry, domain.OrderDetails{
		Customer: domain.Customer{Name: "Rahim", Phone: "01712345678", Address: "Mirpur"},
	}, em)
	assert.Equal(t, noItemsReply, em.lastText(), "no items and nothing browsed")
}

func TestHandleOrderDetails_PlacesOrder(t *testing.T) {
	shop := testShop(t, orderHandler(t, 77))
	r, cs := newTestRunner(t, &llm.MockClient{}, shop)

	entry, _ := r.Sessions().GetOrCreate("s1")
	entry.Session.LastProducts = []domain.ProductRef{{ID: 9, Name: "Watch", Price: "1000"}}

	em := &fakeEmitter{}
	r.HandleOrderDetails(context.Background(), entry, domain.OrderDetails{
		Customer: domain.Customer{Name: "Rahim Uddin", Phone: "01712345678", Address: "Mirpur", District: "Dhaka"},
	}, em)

	require.Len(t, em.confirmed, 1)
	assert.Equal(t, "77", em.confirmed[0])
	assert.Contains(t, em.lastText(), "<strong>77</strong>")
	assert.Contains(t, em.lastText(), "১–২ দিন")

	// Profile saved for repeat orders.
	assert.Equal(t, "Rahim Uddin", cs.LoadCustomer("s1").Name)
	assert.Equal(t, domain.StageOrder, entry.Session.Stage)
}

func TestHandleOrderDetails_MergesSavedProfile(t *testing.T) {
	shop := testShop(t, orderHandler(t, 78))
	r, _ := newTestRunner(t, &llm.MockClient{}, shop)

	entry, _ := r.Sessions().GetOrCreate("s1")
	entry.Session.Customer = domain.Customer{Name: "Rahim", Phone: "01712345678", Address: "Mirpur", District: "Dhaka"}
	entry.Session.LastProducts = []domain.ProductRef{{ID: 9}}

	em := &fakeEmitter{}
	r.HandleOrderDetails(context.Background(), entry, domain.OrderDetails{}, em)
	require.Len(t, em.confirmed, 1, "a saved profile fills every missing field")
}

func TestHandleImage_NoIntentAcknowledges(t *testing.T) {
	client := &llm.MockClient{
		VisionFunc: func(ctx context.Context, req llm.VisionRequest) (string, error) {
			return "কিছু একটা ছবি", nil
		},
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Content: `{"query":"","category":null,"per_page":null}`}, nil
		},
	}
	r, cs := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleImage(context.Background(), entry, "/uploads/a.jpg", em)

	require.NotEmpty(t, em.messages)
	assert.Equal(t, imageReceivedReply, em.lastText())

	history := cs.RecentMessages("s1", 10)
	require.NotEmpty(t, history)
	assert.Equal(t, domain.AttachmentPrefix+"/uploads/a.jpg", history[0].Text)
}

func TestHandleImage_SearchesFromIntent(t *testing.T) {
	shop := testShop(t, jsonProducts(
		map[string]any{"id": 3, "name": "Black Watch", "price": "2000",
			"permalink": "https://shop/p/3",
			"images":    []map[string]string{{"src": "https://cdn/3.jpg"}}},
	))
	client := &llm.MockClient{
		VisionFunc: func(ctx context.Context, req llm.VisionRequest) (string, error) {
			return "মনে হচ্ছে একটি কালো ঘড়ি", nil
		},
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Content: "```json\n{\"query\":\"black watch\",\"per_page\":4}\n```"}, nil
		},
	}
	r, _ := newTestRunner(t, client, shop)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleImage(context.Background(), entry, "https://cdn/user.jpg", em)

	texts := make([]string, 0, len(em.messages))
	for _, m := range em.messages {
		texts = append(texts, m.Text)
	}
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Contains(t, texts[len(texts)-2], "মনে হচ্ছে black watch")
	assert.Contains(t, texts[len(texts)-1], "<img")
	assert.Equal(t, domain.StageBrowse, entry.Session.Stage)
}

func TestHandleImage_VisionFailure(t *testing.T) {
	client := &llm.MockClient{
		VisionFunc: func(ctx context.Context, req llm.VisionRequest) (string, error) {
			return "", &llm.ProviderError{Provider: "openai", Status: 500, Message: "down"}
		},
	}
	r, _ := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleImage(context.Background(), entry, "/uploads/a.jpg", em)
	assert.Equal(t, imageFailedReply, em.lastText())
}

func TestHandleImage_RetriesWithSimplerPrompt(t *testing.T) {
	var prompts []string
	client := &llm.MockClient{
		VisionFunc: func(ctx context.Context, req llm.VisionRequest) (string, error) {
			prompts = append(prompts, req.Prompt)
			assert.Equal(t, visionPersona, req.System)
			if len(prompts) == 1 {
				return "", &llm.ProviderError{Provider: "openai", Status: 500, Message: "down"}
			}
			return "একটি ঘড়ির ছবি", nil
		},
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Content: `{"query":"","category":null,"per_page":null}`}, nil
		},
	}
	r, _ := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	em := &fakeEmitter{}
	r.HandleImage(context.Background(), entry, "/uploads/a.jpg", em)

	assert.Equal(t, []string{visionPrompt, visionFallbackPrompt}, prompts)
	assert.Equal(t, imageReceivedReply, em.lastText(), "retry result flows into the normal intent path")
}

func TestHandleImage_BoundsVisionAndIntentCalls(t *testing.T) {
	client := &llm.MockClient{
		VisionFunc: func(ctx context.Context, req llm.VisionRequest) (string, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok, "vision call must carry a deadline")
			assert.LessOrEqual(t, time.Until(deadline), visionCallTimeout)
			return "কিছু একটা ছবি", nil
		},
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok, "intent call must carry a deadline")
			assert.LessOrEqual(t, time.Until(deadline), chatCallTimeout)
			return &llm.ChatResponse{Content: `{"query":"","category":null,"per_page":null}`}, nil
		},
	}
	r, _ := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	r.HandleImage(context.Background(), entry, "/uploads/a.jpg", &fakeEmitter{})
}

func TestHandleMessage_BoundsSummaryCall(t *testing.T) {
	client := &llm.MockClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok, "every model call must carry a deadline")
			assert.LessOrEqual(t, time.Until(deadline), chatCallTimeout)
			return &llm.ChatResponse{Content: "ok"}, nil
		},
	}
	r, _ := newTestRunner(t, client, nil)

	entry, _ := r.Sessions().GetOrCreate("s1")
	r.HandleMessage(context.Background(), entry, "hello", &fakeEmitter{})
	assert.Len(t, client.ChatCalls, 2, "turn call plus summary refresh")
}
