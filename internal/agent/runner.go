// Package agent is the conversation engine: it owns live sessions,
// paces the model, dispatches tools, and shapes every buyer-facing
// reply. Transport layers hand it raw events and an Emitter.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/commerce"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
)

// maxUserTextRunes caps a single user turn before it reaches the model.
const maxUserTextRunes = 1000

// Emitter delivers engine output to one connected client. A websocket
// client implements it directly; webhook channels collect the calls
// and flatten them into a single response.
type Emitter interface {
	// Message delivers a bot message. keepTyping signals that more
	// output follows, so the client should keep its indicator on.
	Message(m domain.Message, keepTyping bool)

	// Typing toggles the typing indicator.
	Typing(on bool)

	// OrderConfirmed announces a placed order.
	OrderConfirmed(summary, eta, orderID string)

	// ShippingChoices asks the buyer to pick a shipping method.
	ShippingChoices(options []domain.ShippingOption)
}

// ImageResolver turns a client-supplied image URL into something the
// model can fetch, typically a data URL for local uploads.
type ImageResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// Runner orchestrates turns end to end. All session mutation happens
// under the session's turn lock, so concurrent events from one buyer
// are handled strictly one at a time.
type Runner struct {
	registry *Registry
	bridge   *Bridge
	shop     *commerce.Client
	llm      llm.Client
	store    ConversationStore
	images   ImageResolver

	historyLimit int
	log          *logging.Logger
	rng          *rand.Rand
	retry        *retrier
	sleep        func(time.Duration)
	now          func() time.Time
}

// NewRunner assembles the engine.
func NewRunner(
	registry *Registry,
	bridge *Bridge,
	shop *commerce.Client,
	client llm.Client,
	store ConversationStore,
	cfg config.SessionConfig,
	rng *rand.Rand,
	log *logging.Logger,
) *Runner {
	return &Runner{
		registry:     registry,
		bridge:       bridge,
		shop:         shop,
		llm:          client,
		store:        store,
		historyLimit: cfg.HistoryLimit,
		log:          log.Sub("agent"),
		rng:          rng,
		retry:        newRetrier(rng),
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// Sessions exposes the session registry for connection handling.
func (r *Runner) Sessions() *Registry { return r.registry }

// SetImageResolver installs the resolver for uploaded images.
func (r *Runner) SetImageResolver(res ImageResolver) { r.images = res }

// HandleMessage runs one text turn for a session.
func (r *Runner) HandleMessage(ctx context.Context, entry *SessionEntry, text string, em Emitter) {
	entry.Do(func(sess *domain.Session) {
		now := r.now()
		log := r.log.Session(sess.ID)

		text = truncateRunes(strings.TrimSpace(text), maxUserTextRunes)
		history := r.history(sess)

		userMsg := sess.AppendUser(text, now)
		r.store.SaveMessage(sess.ID, userMsg)
		sess.Touch(now)
		r.store.SaveSession(sess)

		if wait := sess.CoolDownUntil.Sub(now); wait > 0 {
			if allowWaitNotice(sess, now) {
				r.sendBot(sess, em, DefaultWaitMessage, true)
			}
			r.sleep(clampDuration(wait, 1200*time.Millisecond, 6*time.Second))
		}

		em.Typing(true)
		defer em.Typing(false)

		summary := r.store.LoadSummary(sess.ID)
		onToolStart := func(tool string) {
			if allowWaitNotice(sess, r.now()) {
				r.sendBot(sess, em, WaitMessage(tool, r.rng), true)
			}
		}

		result, err := r.retry.run(ctx, sess, entry.Limiter, history, func(h []domain.Message) (*TurnResult, error) {
			return r.bridge.RunTurn(ctx, sess, h, summary, text, onToolStart)
		})
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			r.sendBot(sess, em, fallbackReply, false)
			r.store.SaveSession(sess)
			return
		}

		if result.UsedTool {
			r.deliverToolReply(sess, em, result)
			r.store.SaveSession(sess)
			return
		}

		reply := strings.TrimSpace(result.Reply)
		if reply == "" {
			reply = defaultReply
		}
		r.sleep(TypingDelay(reply, r.rng))
		em.Typing(false)
		r.sendBot(sess, em, reply, false)
		r.store.SaveSession(sess)

		r.refreshSummary(ctx, sess, history, text, reply)
	})
}

// deliverToolReply sends the reply for a tool-backed turn. Tool turns
// skip the typing delay since the lookup already took real time.
func (r *Runner) deliverToolReply(sess *domain.Session, em Emitter, result *TurnResult) {
	if result.ToolName == "place_order" {
		if result.Placed != nil {
			em.OrderConfirmed(orderPlacedSummary, result.Placed.ETA, result.Placed.OrderID)
			r.sendBot(sess, em, OrderConfirmationHTML(result.Placed.OrderID, result.Placed.ETA), false)
			sess.Stage = domain.StageOrder
		} else {
			r.sendBot(sess, em, orderFailedReply, false)
		}
		return
	}

	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		reply = "…"
	}

	if result.ToolName == "search_products" && len(result.Products) > 0 {
		sess.LastProducts = result.Products
		sess.Stage = domain.StageBrowse
		r.sendBot(sess, em, reply, true)
		if gallery := ProductGallery(result.Products); gallery != "" {
			r.sendBot(sess, em, gallery, false)
		}
		return
	}

	r.sendBot(sess, em, reply, false)
}

// HandleImage runs the image turn: describe the photo, guess a search
// intent, and show matching products.
func (r *Runner) HandleImage(ctx context.Context, entry *SessionEntry, imageURL string, em Emitter) {
	entry.Do(func(sess *domain.Session) {
		now := r.now()
		log := r.log.Session(sess.ID)

		userMsg := sess.AppendUser(domain.AttachmentPrefix+imageURL, now)
		r.store.SaveMessage(sess.ID, userMsg)
		sess.Touch(now)
		r.store.SaveSession(sess)

		em.Typing(true)
		defer em.Typing(false)

		resolved := imageURL
		if r.images != nil {
			if u, err := r.images.Resolve(ctx, imageURL); err == nil && u != "" {
				resolved = u
			} else if err != nil {
				log.Warn().Err(err).Msg("image resolve failed, passing url through")
			}
		}

		visionText, err := r.describeImage(ctx, resolved)
		if err != nil {
			log.Error().Err(err).Msg("vision failed")
			r.sendBot(sess, em, imageFailedReply, false)
			return
		}

		intent := r.extractIntent(ctx, visionText)
		if intent.Query == "" {
			r.sendBot(sess, em, imageReceivedReply, false)
			r.store.SaveSession(sess)
			return
		}

		if allowWaitNotice(sess, r.now()) {
			r.sendBot(sess, em, WaitMessage("search_products", r.rng), true)
		}

		perPage := clampInt(intent.PerPage, 3, 8, 6)
		products, err := searchWithVariants(ctx, r.shop, intent.Query, commerce.SearchParams{
			PerPage:  perPage,
			Category: intent.Category,
		})
		if err != nil {
			log.Warn().Err(err).Str("query", intent.Query).Msg("image-driven search failed")
			r.sendBot(sess, em, imageNoSearchReply, false)
			r.store.SaveSession(sess)
			return
		}

		r.sendBot(sess, em, fmt.Sprintf("জি স্যার, মনে হচ্ছে %s — নীচে কিছু মিল আছে:", intent.Query), true)
		if gallery := ProductGallery(products); gallery != "" {
			sess.LastProducts = products
			sess.Stage = domain.StageBrowse
			r.sendBot(sess, em, gallery, false)
		} else {
			r.sendBot(sess, em, imageNoMatchReply, false)
		}
		r.store.SaveSession(sess)
	})
}

// describeImage asks the vision model what the buyer photographed. A
// failed call gets one retry with a terser prompt before giving up.
func (r *Runner) describeImage(ctx context.Context, imageURL string) (string, error) {
	visionCtx, cancel := context.WithTimeout(ctx, visionCallTimeout)
	text, err := r.llm.Vision(visionCtx, llm.VisionRequest{
		System:   visionPersona,
		Prompt:   visionPrompt,
		ImageURL: imageURL,
	})
	cancel()
	if err == nil {
		return text, nil
	}

	retryCtx, cancel := context.WithTimeout(ctx, visionCallTimeout)
	defer cancel()
	return r.llm.Vision(retryCtx, llm.VisionRequest{
		System:   visionPersona,
		Prompt:   visionFallbackPrompt,
		ImageURL: imageURL,
	})
}

// imageIntent is the strict-JSON shape the intent extraction returns.
type imageIntent struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	PerPage  int    `json:"per_page"`
}

// extractIntent asks the model to reduce a vision description to a
// catalog query. Any parse failure yields an empty intent; the turn
// then degrades to a plain acknowledgement.
func (r *Runner) extractIntent(ctx context.Context, visionText string) imageIntent {
	callCtx, cancel := context.WithTimeout(ctx, chatCallTimeout)
	defer cancel()

	temp := 0.2
	resp, err := r.llm.Chat(callCtx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: intentPrompt},
			{Role: llm.RoleUser, Content: visionText},
		},
		MaxTokens:   100,
		Temperature: &temp,
	})
	if err != nil {
		return imageIntent{}
	}

	raw := resp.Content
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	var intent imageIntent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return imageIntent{}
	}
	intent.Query = strings.TrimSpace(intent.Query)
	return intent
}

// HandleOrderDetails places an order from a structured order form.
func (r *Runner) HandleOrderDetails(ctx context.Context, entry *SessionEntry, details domain.OrderDetails, em Emitter) {
	entry.Do(func(sess *domain.Session) {
		now := r.now()
		log := r.log.Session(sess.ID)
		sess.Touch(now)

		details.Customer = details.Customer.Merge(sess.Customer)
		c := details.Customer

		if !domain.ValidBDPhone(c.Phone) {
			r.sendBot(sess, em, invalidPhoneReply, false)
			return
		}
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Address) == "" {
			r.sendBot(sess, em, missingNameReply, false)
			return
		}

		if len(details.Items) == 0 {
			if len(sess.LastProducts) == 0 {
				r.sendBot(sess, em, noItemsReply, false)
				return
			}
			details.Items = []domain.OrderItem{{ProductID: sess.LastProducts[0].ID, Quantity: 1}}
		}

		if details.Shipping == nil {
			if options := r.shop.ListShippingOptions(ctx); len(options) > 1 {
				em.ShippingChoices(options)
				r.sendBot(sess, em, ShippingOptionsHTML(options), false)
				return
			}
		}

		placed, err := r.shop.CreateOrder(ctx, details)
		if err != nil {
			if errors.Is(err, commerce.ErrNoItems) {
				r.sendBot(sess, em, noItemsReply, false)
				return
			}
			log.Error().Err(err).Msg("order failed")
			r.sendBot(sess, em, orderRetryReply, false)
			return
		}

		orderID := placed.Number
		if orderID == "" {
			orderID = strconv.FormatInt(placed.ID, 10)
		}
		eta := deliveryETA(c.District)

		em.OrderConfirmed(orderPlacedSummary, eta, orderID)
		r.sendBot(sess, em, OrderConfirmationHTML(orderID, eta), false)

		sess.Customer = c
		sess.Stage = domain.StageOrder
		r.store.SaveCustomer(sess.ID, c)
		r.store.SaveSession(sess)
	})
}

// refreshSummary keeps a rolling conversation summary in the store.
// Failures only cost the next turn some context, so they are logged
// and swallowed.
func (r *Runner) refreshSummary(ctx context.Context, sess *domain.Session, history []domain.Message, userText, reply string) {
	convo := make([]domain.Message, 0, len(history)+2)
	convo = append(convo, history...)
	convo = append(convo,
		domain.Message{Who: domain.WhoUser, Text: userText},
		domain.Message{Who: domain.WhoBot, Text: reply},
	)
	convo = tail(convo, 20)

	msgs := make([]llm.Message, 0, len(convo)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: summaryPrompt})
	for _, m := range convo {
		role := llm.RoleAssistant
		if m.Who == domain.WhoUser {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}

	callCtx, cancel := context.WithTimeout(ctx, chatCallTimeout)
	defer cancel()

	temp := 0.2
	resp, err := r.llm.Chat(callCtx, llm.ChatRequest{Messages: msgs, MaxTokens: 120, Temperature: &temp})
	if err != nil {
		r.log.Session(sess.ID).Debug().Err(err).Msg("summary refresh failed")
		return
	}
	if text := strings.TrimSpace(resp.Content); text != "" {
		r.store.SaveSummary(sess.ID, text, r.now().UnixMilli())
	}
}

// sendBot records and delivers one bot message.
func (r *Runner) sendBot(sess *domain.Session, em Emitter, text string, keepTyping bool) {
	m := sess.AppendBot(text, r.now())
	r.store.SaveMessage(sess.ID, m)
	em.Message(m, keepTyping)
}

// history loads recent turns, preferring the store over the in-memory
// tail so a hydrated session sees its full recent context.
func (r *Runner) history(sess *domain.Session) []domain.Message {
	if h := r.store.RecentMessages(sess.ID, r.historyLimit); len(h) > 0 {
		return h
	}
	return sess.RecentMessages(r.historyLimit)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
