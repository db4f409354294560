package agent

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
)

const (
	// llmSpacing is the minimum gap between model turns per session.
	llmSpacing = 2500 * time.Millisecond

	// coolDownPeriod is how long a session stays throttled after the
	// retry ladder is exhausted.
	coolDownPeriod = 10 * time.Second

	firstRetryHistory  = 25
	secondRetryHistory = 12
)

// retrier walks a fixed ladder on provider rate limits: retry with a
// trimmed history, then retry with an even shorter one, then give up
// and put the session in a cooldown. Clock and sleep are injectable
// for tests.
type retrier struct {
	sleep func(time.Duration)
	now   func() time.Time
	rng   *rand.Rand
}

func newRetrier(rng *rand.Rand) *retrier {
	return &retrier{sleep: time.Sleep, now: time.Now, rng: rng}
}

// run invokes the turn with per-session spacing and rate-limit
// retries. invoke receives the history slice to use for that attempt.
func (r *retrier) run(
	ctx context.Context,
	sess *domain.Session,
	limiter *rate.Limiter,
	history []domain.Message,
	invoke func(history []domain.Message) (*TurnResult, error),
) (*TurnResult, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	sess.LastLLMAt = r.now()

	result, err := invoke(history)
	if err == nil || !llm.IsRateLimited(err) {
		return result, err
	}

	r.sleep(3000*time.Millisecond + time.Duration(r.rng.Intn(400))*time.Millisecond)
	result, err = invoke(tail(history, firstRetryHistory))
	if err == nil || !llm.IsRateLimited(err) {
		return result, err
	}

	r.sleep(5000*time.Millisecond + time.Duration(r.rng.Intn(600))*time.Millisecond)
	result, err = invoke(tail(history, secondRetryHistory))
	if err != nil {
		sess.CoolDownUntil = r.now().Add(coolDownPeriod)
	}
	return result, err
}

func tail(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
