package agent

import (
	"math"
	"math/rand"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

const (
	minTypingDelay = 600 * time.Millisecond
	maxTypingDelay = 8 * time.Second

	// typingWPM is the simulated typing speed used to pace replies so
	// the bot reads as a human agent rather than an instant responder.
	typingWPM = 140

	// waitNoticeInterval throttles "please wait" messages per session.
	waitNoticeInterval = 5 * time.Second
)

// TypingDelay estimates how long a human would take to type text, with
// a small jitter so consecutive replies do not land on a fixed beat.
func TypingDelay(text string, rng *rand.Rand) time.Duration {
	words := math.Max(1, math.Round(float64(len(text))/5))
	ms := words/typingWPM*60000 + 250
	ms *= 0.9 + rng.Float64()*0.2

	d := time.Duration(ms) * time.Millisecond
	if d < minTypingDelay {
		return minTypingDelay
	}
	if d > maxTypingDelay {
		return maxTypingDelay
	}
	return d
}

var waitSuffixes = []string{
	"একটু অপেক্ষা করুন, দেখে জানাচ্ছি…",
	"অল্প সময় দিন, চেক করে জানাচ্ছি…",
	"দয়া করে একটু অপেক্ষা করবেন, যাচাই করছি…",
	"একটু অপেক্ষা করুন—তথ্য মিলিয়ে জানাচ্ছি…",
}

var waitPrefixes = map[string]string{
	"search_products":       "পণ্যগুলো খুঁজে দেখছি—",
	"get_product_details":   "পণ্যের বিস্তারিত যাচাই করছি—",
	"estimate_shipping_eta": "ডেলিভারি সময় যাচাই করছি—",
	"get_current_offer":     "বর্তমান অফার দেখছি—",
}

// DefaultWaitMessage is the generic hold notice.
const DefaultWaitMessage = "একটু অপেক্ষা করুন, দেখে জানাচ্ছি…"

// WaitMessage builds a hold notice for a tool lookup, varying the
// wording so repeats do not read canned.
func WaitMessage(tool string, rng *rand.Rand) string {
	prefix, ok := waitPrefixes[tool]
	if !ok {
		return DefaultWaitMessage
	}
	return prefix + waitSuffixes[rng.Intn(len(waitSuffixes))]
}

// allowWaitNotice reports whether a hold notice may be sent now, and
// records the send time when it may. At most one notice goes out per
// waitNoticeInterval.
func allowWaitNotice(s *domain.Session, now time.Time) bool {
	if now.Sub(s.LastWaitAt) < waitNoticeInterval {
		return false
	}
	s.LastWaitAt = now
	return true
}
