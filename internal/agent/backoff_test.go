package agent

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
)

func testRetrier() (*retrier, *[]time.Duration) {
	var slept []time.Duration
	r := &retrier{
		sleep: func(d time.Duration) { slept = append(slept, d) },
		now:   func() time.Time { return time.Unix(1000, 0) },
		rng:   rand.New(rand.NewSource(1)),
	}
	return r, &slept
}

func manyMessages(n int) []domain.Message {
	out := make([]domain.Message, n)
	for i := range out {
		out[i] = domain.Message{Who: domain.WhoUser, Text: "m", TS: int64(i)}
	}
	return out
}

func rateLimited() error {
	return &llm.ProviderError{Provider: "openai", Status: http.StatusTooManyRequests, Message: "slow down"}
}

func TestRetrier_SuccessFirstTry(t *testing.T) {
	r, slept := testRetrier()
	sess := domain.NewSession("s", time.Unix(0, 0))

	calls := 0
	result, err := r.run(context.Background(), sess, nil, manyMessages(40), func(h []domain.Message) (*TurnResult, error) {
		calls++
		assert.Len(t, h, 40)
		return &TurnResult{Reply: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Reply)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
	assert.True(t, sess.CoolDownUntil.IsZero())
}

func TestRetrier_LadderTrimsHistory(t *testing.T) {
	r, slept := testRetrier()
	sess := domain.NewSession("s", time.Unix(0, 0))

	var lens []int
	result, err := r.run(context.Background(), sess, nil, manyMessages(40), func(h []domain.Message) (*TurnResult, error) {
		lens = append(lens, len(h))
		if len(lens) < 3 {
			return nil, rateLimited()
		}
		return &TurnResult{Reply: "recovered"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Reply)
	assert.Equal(t, []int{40, firstRetryHistory, secondRetryHistory}, lens)

	require.Len(t, *slept, 2)
	assert.GreaterOrEqual(t, (*slept)[0], 3000*time.Millisecond)
	assert.Less(t, (*slept)[0], 3400*time.Millisecond)
	assert.GreaterOrEqual(t, (*slept)[1], 5000*time.Millisecond)
	assert.Less(t, (*slept)[1], 5600*time.Millisecond)
	assert.True(t, sess.CoolDownUntil.IsZero(), "recovery must not trigger cooldown")
}

func TestRetrier_ExhaustionSetsCooldown(t *testing.T) {
	r, _ := testRetrier()
	sess := domain.NewSession("s", time.Unix(0, 0))

	calls := 0
	_, err := r.run(context.Background(), sess, nil, manyMessages(40), func(h []domain.Message) (*TurnResult, error) {
		calls++
		return nil, rateLimited()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, time.Unix(1000, 0).Add(coolDownPeriod), sess.CoolDownUntil)
}

func TestRetrier_NonRateLimitErrorFailsFast(t *testing.T) {
	r, slept := testRetrier()
	sess := domain.NewSession("s", time.Unix(0, 0))

	boom := errors.New("boom")
	calls := 0
	_, err := r.run(context.Background(), sess, nil, manyMessages(40), func(h []domain.Message) (*TurnResult, error) {
		calls++
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
	assert.True(t, sess.CoolDownUntil.IsZero())
}

func TestTail(t *testing.T) {
	msgs := manyMessages(5)
	assert.Len(t, tail(msgs, 10), 5)
	assert.Len(t, tail(msgs, 3), 3)
	assert.Equal(t, int64(2), tail(msgs, 3)[0].TS)
}
