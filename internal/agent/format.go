package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

// maxGalleryItems caps how many product cards one message carries.
const maxGalleryItems = 8

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// ProductGallery renders search results as linked image cards with the
// price in Bengali numerals. Products without an image are skipped.
// An empty string means nothing was renderable.
func ProductGallery(products []domain.ProductRef) string {
	var b strings.Builder
	count := 0
	for _, p := range products {
		if count >= maxGalleryItems {
			break
		}
		if len(p.Images) == 0 || p.Images[0] == "" {
			continue
		}
		name := escapeHTML(p.Name)
		fmt.Fprintf(&b,
			`<a href="%s" target="_blank" rel="noopener noreferrer nofollow"><img src="%s" alt="%s"></a><br><b>%s</b> — %s টাকা<br><br>`,
			p.Permalink, p.Images[0], name, name, ToBanglaDigits(p.Price))
		count++
	}
	return b.String()
}

// OrderConfirmationHTML is the rich confirmation sent after an order
// is placed.
func OrderConfirmationHTML(orderID, eta string) string {
	return fmt.Sprintf(
		"<b>ধন্যবাদ!</b> আপনার অর্ডার আইডি: <strong>%s</strong><br>আনুমানিক ডেলিভারি: %s. আপডেটের জন্য যোগাযোগ করতে চাইলে জানাবেন।",
		orderID, eta)
}

// ShippingOptionsHTML lists selectable shipping methods as a numbered
// menu the buyer answers with a digit.
func ShippingOptionsHTML(options []domain.ShippingOption) string {
	var b strings.Builder
	b.WriteString("শিপিং অপশন নির্বাচন করুন:<br>")
	for i, opt := range options {
		fmt.Fprintf(&b, "<b>%d.</b> %s — ফি: %s টাকা<br>", i+1, escapeHTML(opt.MethodTitle), ToBanglaDigits(opt.Total))
	}
	b.WriteString("উদাহরণ: 1 লিখুন।")
	return b.String()
}

var (
	htmlTags     = regexp.MustCompile(`<[^>]*>`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// StripHTML flattens a rich reply to plain text for channels that
// cannot render markup, such as Messenger.
func StripHTML(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = htmlTags.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
