package agent

import (
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/llm"
)

// salesPersona is the system prompt for every sales turn. The model
// replies in Bangla with a small HTML whitelist; product names may
// stay in English.
const salesPersona = `You are a friendly, human-like Bangla sales assistant. Output must be in Bangla and simple HTML (no markdown). Allowed tags: <b>, <strong>, <a href="...">, <br>, <img src="..." alt="...">. Tone: warm, concise, respectful; address the customer as “স্যার” (e.g., “জি স্যার”). Vary phrasing to avoid sounding robotic. Prefer short sentences; one idea per line; end with one focused question that moves the sale forward. Use Bengali numerals for prices. Avoid filler like “পেয়েছি/গট ইট”. When showing products, speak naturally about value/benefits before price; state availability (স্টকে আছে / স্টক আউট) clearly. Ask for budget only when it helps. Correct obvious misspellings and try a few keyword variants before concluding no results. For repeat orders, fetch saved details and show the actual values, then ask: “আগের তথ্যই ব্যবহার করবো, স্যার?”. Product names may remain in English; everything else in Bangla. No scripts or other tags.`

// visionPersona steers the fallback image-analysis call.
const visionPersona = `You are a helpful sales assistant. Based on the image, briefly suggest possible products, categories, brands, models, colors, or styles in English product names but with the rest in Bangla. Always address the customer as “স্যার”. If uncertain, phrase it as a possibility (e.g., “It seems like…” / “It could be…”), and never say it’s impossible. Always ask 1 follow-up question. HTML is supported: <b>, <strong>, <a>, <br>, <img>.`

const (
	visionPrompt         = "ছবিটি সংক্ষেপে বিশ্লেষণ করুন এবং সম্ভাব্য পণ্য/ক্যাটেগরি/ব্র্যান্ড উল্লেখ করুন। শেষে ১টি ফলো-আপ প্রশ্ন করুন।"
	visionFallbackPrompt = "ছবিটি বিশ্লেষণ করুন এবং কীওয়ার্ড দিন।"

	intentPrompt = `Return ONLY strict JSON with fields: {"query": string, "category": string|null, "per_page": number|null}. No commentary.`

	summaryPrompt = "নিম্নে কথোপকথনের সারাংশ ২-৩টি বাক্যে লিখুন (গ্রাহকের চাহিদা, বাজেট, জেলা, আগ্রহ)।"
)

// Canned Bangla replies for the conversational edges.
const (
	// Greeting opens every brand-new session.
	Greeting = "হ্যালো! আমি আপনার সহায়ক। আজ কোন পণ্যটি খুঁজছেন?"

	// WebhookFallbackReply answers a webhook turn that produced no
	// output, so the channel never returns an empty body.
	WebhookFallbackReply = "জি স্যার, কীভাবে সাহায্য করতে পারি?"

	defaultReply  = "বুঝেছি। আপনি কি দৈনন্দিন ব্যবহার নাকি গিফট হিসেবে চান? 🙂"
	fallbackReply = "দুঃখিত, একটু সমস্যা হয়েছে। বলবেন কি—আপনার বাজেট কতের মধ্যে?"

	orderPlacedSummary = "অর্ডার প্লেস হয়েছে ✅"
	orderFailedReply   = "দুঃখিত, অর্ডার সম্পন্ন করা যায়নি। একটু পরে আবার চেষ্টা করবেন, বা সাপোর্টে যোগাযোগ করুন।"
	orderRetryReply    = "দুঃখিত, অর্ডার সম্পন্ন করা যায়নি। পরে চেষ্টা করুন।"

	invalidPhoneReply  = "মোবাইল নম্বরটি সঠিক নয়। অনুগ্রহ করে BD মোবাইল নম্বর দিন (01XXXXXXXXX)."
	missingNameReply   = "নাম ও ঠিকানা প্রয়োজন।"
	noItemsReply       = "কোন পণ্যটি নিতে চান? তালিকা থেকে একটি নির্বাচন করুন বা লিংক পাঠান।"
	imageReceivedReply = "স্যার, ছবিটি পেয়েছি। আপনি কি নির্দিষ্ট কোনো পণ্য খুঁজছেন?"
	imageNoMatchReply  = "আপনি কোন রঙ/ডিজাইন বা বাজেট পছন্দ করবেন, স্যার? জানালে ঠিক মিলিয়ে দেখাচ্ছি।"
	imageNoSearchReply = "ছবির ভিত্তিতে ধারণা পেলাম, স্যার। আপনি কোন দিকটা প্রাধান্য দেবেন—ডিজাইন, রঙ, নাকি বাজেট?"
	imageFailedReply   = "একটু নেটওয়ার্ক সমস্যা হয়েছে স্যার—দয়া করে আবার ছবিটি পাঠাবেন?"
)

// buildMessages assembles the model conversation: persona, optional
// running summary, recent history, and the new user turn.
func buildMessages(history []domain.Message, summary, userText string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: salesPersona})
	if summary != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: "সংক্ষিপ্ত সারাংশ: " + summary})
	}
	for _, m := range history {
		role := llm.RoleAssistant
		if m.Who == domain.WhoUser {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})
	return msgs
}
