package agent

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

func TestTypingDelay_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for range 50 {
		short := TypingDelay("ok", rng)
		assert.GreaterOrEqual(t, short, minTypingDelay)

		long := TypingDelay(strings.Repeat("অনেক লম্বা বার্তা ", 500), rng)
		assert.LessOrEqual(t, long, maxTypingDelay)
	}
}

func TestTypingDelay_GrowsWithLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	short := TypingDelay("hi", rng)
	long := TypingDelay(strings.Repeat("medium length reply text ", 20), rng)
	assert.Greater(t, long, short)
}

func TestWaitMessage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	msg := WaitMessage("search_products", rng)
	assert.True(t, strings.HasPrefix(msg, "পণ্যগুলো খুঁজে দেখছি—"), "got %q", msg)

	assert.Equal(t, DefaultWaitMessage, WaitMessage("place_order", rng))
	assert.Equal(t, DefaultWaitMessage, WaitMessage("", rng))
}

func TestAllowWaitNotice_Throttles(t *testing.T) {
	sess := domain.NewSession("s1", time.Now())
	now := time.Now()

	assert.True(t, allowWaitNotice(sess, now))
	assert.False(t, allowWaitNotice(sess, now.Add(2*time.Second)))
	assert.True(t, allowWaitNotice(sess, now.Add(waitNoticeInterval)))
}
